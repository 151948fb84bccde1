package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/styles"
)

var (
	editOutput string
	editFormat string
	editScope  string
)

var newCmd = &cobra.Command{
	Use:   "new <file> [sheet...]",
	Short: "Create an empty workbook",
	Long: `Create a workbook with the given sheets, or a single "Sheet1".
An existing file is not overwritten.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNew,
}

var setCmd = &cobra.Command{
	Use:   "set <file> <address=value>...",
	Short: "Set cell values and formulas and save the workbook",
	Long: `Set cell values or formulas and save the result.

Each edit is specified as address=value. Use a leading = for formulas (double =).
Numbers, TRUE/FALSE and error codes such as #N/A are recognized; anything else
is text. An empty value or null clears the cell but keeps its style.

Use --format/-f to apply an Excel number format to every edited cell.

Examples:
  xlsxkit set report.xlsx "Sheet1!A1=42"
  xlsxkit set report.xlsx A1=Hello B1=42
  xlsxkit set report.xlsx "Summary!B5==SUM(B1:B4)"      # formula (double =)
  xlsxkit set report.xlsx "C3=45000" -f "yyyy-mm-dd"    # value + format`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSet,
}

var mergeCmd = &cobra.Command{
	Use:   "merge <file> <range>...",
	Short: "Merge cell ranges",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRanges(cmd, args, "merged", (*xlsxkit.Worksheet).MergeRange)
	},
}

var unmergeCmd = &cobra.Command{
	Use:   "unmerge <file> <range>...",
	Short: "Remove merged ranges",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRanges(cmd, args, "unmerged", (*xlsxkit.Worksheet).Unmerge)
	},
}

var addSheetCmd = &cobra.Command{
	Use:   "add-sheet <file> <name>...",
	Short: "Append empty worksheets",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAddSheet,
}

var removeSheetCmd = &cobra.Command{
	Use:   "remove-sheet <file> <name>...",
	Short: "Delete sheets; formulas referring to them become #REF!",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRemoveSheet,
}

var renameSheetCmd = &cobra.Command{
	Use:   "rename-sheet <file> <old> <new>",
	Short: "Rename a sheet and update every formula referring to it",
	Args:  cobra.ExactArgs(3),
	RunE:  runRenameSheet,
}

var moveSheetCmd = &cobra.Command{
	Use:   "move-sheet <file> <name> <position>",
	Short: "Move a sheet to a 0-based tab position",
	Args:  cobra.ExactArgs(3),
	RunE:  runMoveSheet,
}

var defineCmd = &cobra.Command{
	Use:   "define <file> <name> <refers-to>",
	Short: "Add a defined name",
	Long: `Add a workbook-wide defined name, or one local to a sheet with --scope.

Examples:
  xlsxkit define report.xlsx Totals "Summary!$B$1:$B$12"
  xlsxkit define report.xlsx Rate 0.2 --scope Summary`,
	Args: cobra.ExactArgs(3),
	RunE: runDefine,
}

var printAreaCmd = &cobra.Command{
	Use:   "print-area <file> <sheet> [range...]",
	Short: "Set the print areas of a sheet; no ranges clears them",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runPrintArea,
}

var deleteRowsCmd = &cobra.Command{
	Use:   "delete-rows <file> <sheet> <row> [count]",
	Short: "Delete rows and move the rows below up",
	Long: `Delete count rows (default 1) starting at row. Formulas and defined
names follow the move; references to deleted rows become #REF!.`,
	Args: cobra.RangeArgs(3, 4),
	RunE: runDeleteLines,
}

var deleteColsCmd = &cobra.Command{
	Use:   "delete-cols <file> <sheet> <column> [count]",
	Short: "Delete columns and move the columns to the right left",
	Long: `Delete count columns (default 1) starting at column, given as a letter
or a number.

Examples:
  xlsxkit delete-cols report.xlsx Data C 2
  xlsxkit delete-cols report.xlsx Data 3`,
	Args: cobra.RangeArgs(3, 4),
	RunE: runDeleteLines,
}

var calcCmd = &cobra.Command{
	Use:   "calc <file>",
	Short: "Recalculate formulas and update cached values in the workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runCalc,
}

func init() {
	for _, cmd := range []*cobra.Command{setCmd, mergeCmd, unmergeCmd, addSheetCmd, removeSheetCmd, renameSheetCmd, moveSheetCmd, defineCmd, printAreaCmd, deleteRowsCmd, deleteColsCmd, calcCmd} {
		addOutputFlag(cmd.Flags())
		rootCmd.AddCommand(cmd)
	}
	setCmd.Flags().StringVarP(&editFormat, "format", "f", "", "Excel number format to apply to the edited cells")
	defineCmd.Flags().StringVar(&editScope, "scope", "", "Sheet the name is local to")
	rootCmd.AddCommand(newCmd)
}

func addOutputFlag(flags *pflag.FlagSet) {
	flags.StringVarP(&editOutput, "output", "o", "", "Write the result to this file instead of the input")
}

// edit loads path, applies fn and saves the workbook.
func edit(cmd *cobra.Command, path string, fn func(wb *xlsxkit.Workbook) error) error {
	wb, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer wb.Close()
	if err := fn(wb); err != nil {
		return err
	}
	return save(cmd, wb, path)
}

func save(cmd *cobra.Command, wb *xlsxkit.Workbook, path string) error {
	target := path
	if editOutput != "" {
		target = editOutput
	}
	if err := wb.Save(target); err != nil {
		return err
	}
	log.WithField("file", target).Info("saved workbook")
	if !viper.GetBool("json") {
		okColor.Fprintf(cmd.OutOrStdout(), "Saved %s\n", target)
	}
	return nil
}

func runNew(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	names := args[1:]
	if len(names) == 0 {
		names = []string{"Sheet1"}
	}
	wb := xlsxkit.New(xlsxkit.WithLogger(log))
	defer wb.Close()
	for _, name := range names {
		if _, err := wb.AddSheet(name); err != nil {
			return err
		}
	}
	return save(cmd, wb, path)
}

// cellEdit is one address=value argument.
type cellEdit struct {
	Address string
	Value   xlsxkit.Value
}

// parseCellEdit parses "Sheet1!A1=42". The address ends at the first '='
// that follows a valid address, so sheet names may contain '=' and
// "A1==SUM(A:A)" sets a formula.
func parseCellEdit(arg string) (cellEdit, error) {
	for i := 0; i < len(arg); i++ {
		if arg[i] != '=' {
			continue
		}
		address, remainder := arg[:i], arg[i+1:]
		if _, _, err := cellref.ParseAddress(address); err != nil {
			continue
		}
		if strings.EqualFold(remainder, "null") {
			return cellEdit{Address: address, Value: xlsxkit.Empty()}, nil
		}
		return cellEdit{Address: address, Value: xlsxkit.ParseValue(remainder)}, nil
	}
	return cellEdit{}, fmt.Errorf("invalid edit %q: expected address=value", arg)
}

func runSet(cmd *cobra.Command, args []string) error {
	edits := make([]cellEdit, 0, len(args)-1)
	for _, arg := range args[1:] {
		e, err := parseCellEdit(arg)
		if err != nil {
			return err
		}
		edits = append(edits, e)
	}

	return edit(cmd, args[0], func(wb *xlsxkit.Workbook) error {
		style := -1
		if editFormat != "" {
			var err error
			if style, err = wb.AddStyle(styles.Style{NumFmt: editFormat}); err != nil {
				return err
			}
		}
		for _, e := range edits {
			ws, r, err := resolve(wb, e.Address)
			if err != nil {
				return err
			}
			if !r.IsCell() {
				return fmt.Errorf("invalid edit %q: expected a single cell", e.Address)
			}
			if err := ws.SetCell(r.Start, e.Value); err != nil {
				return err
			}
			if style >= 0 {
				if err := ws.SetStyle(r.Start, style); err != nil {
					return err
				}
			}
			log.WithFields(logrus.Fields{"sheet": ws.Name(), "cell": r.Start.String()}).Debug("set cell")
		}
		return nil
	})
}

func editRanges(cmd *cobra.Command, args []string, verb string, fn func(*xlsxkit.Worksheet, cellref.Range) error) error {
	return edit(cmd, args[0], func(wb *xlsxkit.Workbook) error {
		for _, addr := range args[1:] {
			ws, r, err := resolve(wb, addr)
			if err != nil {
				return err
			}
			if err := fn(ws, r); err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"sheet": ws.Name(), "range": r.String()}).Info(verb)
		}
		return nil
	})
}

func runAddSheet(cmd *cobra.Command, args []string) error {
	return edit(cmd, args[0], func(wb *xlsxkit.Workbook) error {
		for _, name := range args[1:] {
			if _, err := wb.AddSheet(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func runRemoveSheet(cmd *cobra.Command, args []string) error {
	return edit(cmd, args[0], func(wb *xlsxkit.Workbook) error {
		for _, name := range args[1:] {
			if err := wb.RemoveSheet(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func runRenameSheet(cmd *cobra.Command, args []string) error {
	return edit(cmd, args[0], func(wb *xlsxkit.Workbook) error {
		return wb.RenameSheet(args[1], args[2])
	})
}

func runMoveSheet(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid position %q: %w", args[2], err)
	}
	return edit(cmd, args[0], func(wb *xlsxkit.Workbook) error {
		return wb.MoveSheet(args[1], index)
	})
}

func runDefine(cmd *cobra.Command, args []string) error {
	return edit(cmd, args[0], func(wb *xlsxkit.Workbook) error {
		return wb.AddDefinedName(xlsxkit.DefinedName{Name: args[1], Scope: editScope, RefersTo: args[2]})
	})
}

func runPrintArea(cmd *cobra.Command, args []string) error {
	areas := make([]cellref.Range, 0, len(args)-2)
	for _, arg := range args[2:] {
		r, err := cellref.ParseRange(strings.ReplaceAll(arg, "$", ""))
		if err != nil {
			return fmt.Errorf("invalid range %q: %w", arg, err)
		}
		areas = append(areas, r)
	}
	return edit(cmd, args[0], func(wb *xlsxkit.Workbook) error {
		return wb.SetPrintArea(args[1], areas...)
	})
}

func runDeleteLines(cmd *cobra.Command, args []string) error {
	columns := cmd.Name() == "delete-cols"
	start, err := strconv.Atoi(args[2])
	if err != nil && columns {
		start, err = cellref.ColumnNumber(args[2])
	}
	if err != nil {
		return fmt.Errorf("invalid start %q: %w", args[2], err)
	}
	count := 1
	if len(args) == 4 {
		if count, err = strconv.Atoi(args[3]); err != nil {
			return fmt.Errorf("invalid count %q: %w", args[3], err)
		}
	}
	return edit(cmd, args[0], func(wb *xlsxkit.Workbook) error {
		ws, err := wb.Sheet(args[1])
		if err != nil {
			return err
		}
		if columns {
			return ws.DeleteColumns(start, count)
		}
		return ws.DeleteRows(start, count)
	})
}

func runCalc(cmd *cobra.Command, args []string) error {
	return edit(cmd, args[0], func(wb *xlsxkit.Workbook) error {
		if err := wb.Recalculate(); err != nil {
			return err
		}
		log.WithField("file", args[0]).Info("recalculated")
		return nil
	})
}
