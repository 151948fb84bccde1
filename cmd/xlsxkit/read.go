package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
)

var (
	dumpCSV      bool
	dumpFormulas bool
)

var sheetsCmd = &cobra.Command{
	Use:   "sheets <file>",
	Short: "List the sheets of a workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runSheets,
}

var dumpCmd = &cobra.Command{
	Use:   "dump <file> [range]",
	Short: "Print the cells of a range",
	Long: `Print the displayed values of a range as a table, CSV or JSON.

Without a range the used range of the sheet is printed.

Examples:
  xlsxkit dump report.xlsx
  xlsxkit dump report.xlsx "Summary!A1:D20" --csv
  xlsxkit dump report.xlsx B2:C5 --formulas`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDump,
}

var getCmd = &cobra.Command{
	Use:   "get <file> <address>...",
	Short: "Show cells with their type, formula and style",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runGet,
}

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Summarize sheets, merges, tables, print areas and defined names",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var evalCmd = &cobra.Command{
	Use:   "eval <file> <formula>",
	Short: "Evaluate a formula against the workbook without changing it",
	Long: `Evaluate a formula as if it were entered on a sheet. Referenced cells
contribute their stored values; nothing is written back.

Examples:
  xlsxkit eval report.xlsx "=SUM(B2:B10)"
  xlsxkit eval report.xlsx -s Summary "AVERAGE(Totals)"`,
	Args: cobra.ExactArgs(2),
	RunE: runEval,
}

func init() {
	dumpCmd.Flags().BoolVar(&dumpCSV, "csv", false, "Output CSV")
	dumpCmd.Flags().BoolVar(&dumpFormulas, "formulas", false, "Show formulas instead of their results")
	rootCmd.AddCommand(sheetsCmd, dumpCmd, getCmd, infoCmd, evalCmd)
}

type sheetInfo struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Visibility string `json:"visibility"`
	Dimension  string `json:"dimension,omitempty"`
	Cells      int    `json:"cells"`
}

func runSheets(cmd *cobra.Command, args []string) error {
	wb, err := openWorkbook(args[0])
	if err != nil {
		return err
	}
	defer wb.Close()

	var infos []sheetInfo
	for i, ws := range wb.Sheets() {
		info := sheetInfo{
			Index:      i,
			Name:       ws.Name(),
			Kind:       ws.Kind().String(),
			Visibility: ws.Visibility().String(),
			Cells:      ws.CellCount(),
		}
		if dim, ok := ws.Dimension(); ok {
			info.Dimension = dim.String()
		}
		infos = append(infos, info)
	}
	if viper.GetBool("json") {
		return jsonPrint(cmd.OutOrStdout(), infos)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	headerColor.Fprintln(w, "#\tNAME\tKIND\tVISIBILITY\tRANGE\tCELLS")
	for _, info := range infos {
		visibility := info.Visibility
		if visibility != xlsxkit.Visible.String() {
			visibility = mutedColor.Sprint(visibility)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n", info.Index, info.Name, info.Kind, visibility, info.Dimension, info.Cells)
	}
	return w.Flush()
}

// grid renders a range as rows of strings.
func grid(wb *xlsxkit.Workbook, ws *xlsxkit.Worksheet, r cellref.Range, formulas bool) [][]string {
	out := make([][]string, r.Rows())
	for i := range out {
		out[i] = make([]string, r.Cols())
		for j := range out[i] {
			c := ws.Cell(cellref.Ref{Row: r.Start.Row + i, Col: r.Start.Col + j})
			if formulas {
				out[i][j] = c.Value.Input()
			} else {
				out[i][j] = wb.DisplayValue(c)
			}
		}
	}
	return out
}

func runDump(cmd *cobra.Command, args []string) error {
	wb, err := openWorkbook(args[0])
	if err != nil {
		return err
	}
	defer wb.Close()

	var ws *xlsxkit.Worksheet
	var r cellref.Range
	if len(args) > 1 {
		if ws, r, err = resolve(wb, args[1]); err != nil {
			return err
		}
	} else {
		if ws, err = defaultSheet(wb); err != nil {
			return err
		}
		dim, ok := ws.Dimension()
		if !ok {
			log.WithField("sheet", ws.Name()).Info("sheet is empty")
			return nil
		}
		r = cellref.NewRange(cellref.Ref{Row: 1, Col: 1}, dim.End)
	}

	rows := grid(wb, ws, r, dumpFormulas)
	out := cmd.OutOrStdout()
	switch {
	case viper.GetBool("json"):
		return jsonPrint(out, map[string]any{
			"sheet": ws.Name(),
			"range": r.String(),
			"rows":  rows,
		})
	case dumpCSV:
		w := csv.NewWriter(out)
		w.WriteAll(rows)
		return w.Error()
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := []string{""}
	for col := r.Start.Col; col <= r.End.Col; col++ {
		header = append(header, cellref.ColumnName(col))
	}
	headerColor.Fprintln(w, strings.Join(header, "\t"))
	for i, row := range rows {
		fmt.Fprintf(w, "%s\t%s\n", headerColor.Sprint(r.Start.Row+i), strings.Join(row, "\t"))
	}
	return w.Flush()
}

type cellInfo struct {
	Address string `json:"address"`
	Type    string `json:"type"`
	Value   string `json:"value"`
	Display string `json:"display"`
	Formula string `json:"formula,omitempty"`
	Style   int    `json:"style"`
	Merge   string `json:"merge,omitempty"`
}

func runGet(cmd *cobra.Command, args []string) error {
	wb, err := openWorkbook(args[0])
	if err != nil {
		return err
	}
	defer wb.Close()

	var cells []cellInfo
	for _, addr := range args[1:] {
		ws, r, err := resolve(wb, addr)
		if err != nil {
			return err
		}
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Col; col <= r.End.Col; col++ {
				ref := cellref.Ref{Row: row, Col: col}
				c := ws.Cell(ref)
				info := cellInfo{
					Address: cellref.FormatAddress(ws.Name(), cellref.CellRange(ref)),
					Type:    c.Value.Kind.String(),
					Value:   c.Value.String(),
					Display: wb.DisplayValue(c),
					Style:   c.Style,
				}
				if c.Value.Kind == xlsxkit.KindFormula {
					info.Formula = c.Value.Input()
				}
				if m, ok := ws.MergeAt(ref); ok {
					info.Merge = m.String()
				}
				cells = append(cells, info)
			}
		}
	}
	if viper.GetBool("json") {
		return jsonPrint(cmd.OutOrStdout(), cells)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, c := range cells {
		fmt.Fprintf(w, "%s\t%s\t%s", headerColor.Sprint(c.Address), mutedColor.Sprint(c.Type), c.Display)
		if c.Formula != "" {
			fmt.Fprintf(w, "\t%s", formulaColor.Sprint(c.Formula))
		}
		if c.Merge != "" {
			fmt.Fprintf(w, "\t%s", mutedColor.Sprint("merged "+c.Merge))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func runInfo(cmd *cobra.Command, args []string) error {
	wb, err := openWorkbook(args[0])
	if err != nil {
		return err
	}
	defer wb.Close()

	data := wb.Export(xlsxkit.ExportOptions{Mode: xlsxkit.ExportStandard, Tables: xlsxkit.DefaultTableParams()})
	for name, sheet := range data.Sheets {
		sheet.Rows = nil
		data.Sheets[name] = sheet
	}
	if viper.GetBool("json") {
		return jsonPrint(cmd.OutOrStdout(), data)
	}

	out := cmd.OutOrStdout()
	headerColor.Fprintf(out, "%s\n", args[0])
	if wb.Date1904() {
		fmt.Fprintln(out, "  date system: 1904")
	}
	for _, name := range data.SheetOrder {
		sheet := data.Sheets[name]
		title := name
		if sheet.Hidden != "" {
			title += mutedColor.Sprintf(" (%s)", sheet.Hidden)
		}
		if sheet.Kind != "" {
			title += mutedColor.Sprintf(" [%s]", sheet.Kind)
		}
		fmt.Fprintf(out, "\n%s\n", headerColor.Sprint(title))
		printList(out, "range", []string{sheet.Dimension})
		printList(out, "merges", sheet.Merges)
		printList(out, "tables", sheet.TableCandidates)
		var areas []string
		for _, a := range sheet.PrintAreas {
			areas = append(areas, cellref.NewRange(cellref.Ref{Row: a.R1, Col: a.C1}, cellref.Ref{Row: a.R2, Col: a.C2}).String())
		}
		printList(out, "print areas", areas)
	}
	if len(data.Names) > 0 {
		headerColor.Fprintln(out, "\nDefined names")
		for _, n := range data.Names {
			scope := ""
			if n.Scope != "" {
				scope = mutedColor.Sprintf(" (%s)", n.Scope)
			}
			fmt.Fprintf(out, "  %s%s = %s\n", n.Name, scope, formulaColor.Sprint(n.RefersTo))
		}
	}
	return nil
}

func printList(out io.Writer, label string, items []string) {
	if len(items) == 0 || (len(items) == 1 && items[0] == "") {
		return
	}
	fmt.Fprintf(out, "  %-12s %s\n", label+":", strings.Join(items, ", "))
}

func runEval(cmd *cobra.Command, args []string) error {
	wb, err := openWorkbook(args[0])
	if err != nil {
		return err
	}
	defer wb.Close()

	ws, err := defaultSheet(wb)
	if err != nil {
		return err
	}
	v, err := wb.Evaluate(ws.Name(), args[1])
	if err != nil {
		return err
	}
	if viper.GetBool("json") {
		return jsonPrint(cmd.OutOrStdout(), map[string]string{
			"type":  v.Kind.String(),
			"value": v.String(),
		})
	}
	if v.Kind == xlsxkit.KindError {
		errorColor.Fprintln(cmd.OutOrStdout(), v.String())
		return &ExitError{Code: 2}
	}
	fmt.Fprintln(cmd.OutOrStdout(), v.String())
	return nil
}
