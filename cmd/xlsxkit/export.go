package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/models"
)

var (
	outputPath    string
	pretty        bool
	mode          string
	sheetsDir     string
	printAreasDir string
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export cells, merges, tables and print areas as JSON",
	Long: `Export structured data (cells, merges, table candidates, print areas,
defined names) from a workbook as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	exportCmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	exportCmd.Flags().StringVar(&mode, "mode", "standard", "Extraction mode: light, standard, verbose")
	exportCmd.Flags().StringVar(&sheetsDir, "sheets-dir", "", "Directory for per-sheet output files")
	exportCmd.Flags().StringVar(&printAreasDir, "print-areas-dir", "", "Directory for per-print-area output files")
	rootCmd.AddCommand(exportCmd)
}

func parseMode(s string) (xlsxkit.ExportMode, error) {
	switch m := xlsxkit.ExportMode(s); m {
	case xlsxkit.ExportLight, xlsxkit.ExportStandard, xlsxkit.ExportVerbose:
		return m, nil
	}
	return "", fmt.Errorf("invalid mode: %s (must be light, standard, or verbose)", s)
}

func runExport(cmd *cobra.Command, args []string) error {
	exportMode, err := parseMode(mode)
	if err != nil {
		return err
	}
	wb, err := openWorkbook(args[0])
	if err != nil {
		return err
	}
	defer wb.Close()

	opts := xlsxkit.DefaultExportOptions()
	opts.Mode = exportMode
	data := wb.Export(opts)

	jsonData, err := toJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, jsonData, 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	} else if sheetsDir == "" && printAreasDir == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
	}

	if sheetsDir != "" {
		if err := writeSheetFiles(data, sheetsDir); err != nil {
			return fmt.Errorf("failed to write sheet files: %w", err)
		}
	}

	if printAreasDir != "" {
		if err := writePrintAreaFiles(wb.PrintAreaViews(opts), printAreasDir); err != nil {
			return fmt.Errorf("failed to write print area files: %w", err)
		}
	}
	return nil
}

func writeSheetFiles(wb *models.WorkbookData, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for sheetName, sheet := range wb.Sheets {
		jsonData, err := toJSON(sheet, pretty)
		if err != nil {
			return err
		}
		filename := filepath.Join(dir, sheetName+".json")
		if err := os.WriteFile(filename, jsonData, 0644); err != nil {
			return err
		}
	}
	return nil
}

func writePrintAreaFiles(views []models.PrintAreaView, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, view := range views {
		counts[view.SheetName]++
		jsonData, err := toJSON(view, pretty)
		if err != nil {
			return err
		}
		filename := filepath.Join(dir, fmt.Sprintf("%s_area%d.json", view.SheetName, counts[view.SheetName]))
		if err := os.WriteFile(filename, jsonData, 0644); err != nil {
			return err
		}
	}
	return nil
}
