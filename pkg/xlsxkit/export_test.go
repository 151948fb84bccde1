package xlsxkit

import (
	"encoding/json"
	"path/filepath"
	"slices"
	"testing"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/styles"
	"github.com/xuri/excelize/v2"
)

// exportFixture writes a workbook with a header row, numbers, a merge,
// a hyperlink and a print area.
func exportFixture(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"
	f.SetCellValue(sheetName, "A1", "Header1")
	f.SetCellValue(sheetName, "B1", "Header2")
	f.SetCellValue(sheetName, "A2", 100)
	f.SetCellValue(sheetName, "B2", 200.5)
	f.SetCellValue(sheetName, "A3", "Text")
	f.SetCellValue(sheetName, "D6", "note")
	f.SetCellValue(sheetName, "D7", true)
	if err := f.MergeCell(sheetName, "D6", "E6"); err != nil {
		t.Fatalf("MergeCell failed: %v", err)
	}
	if err := f.SetCellHyperLink(sheetName, "A3", "https://example.com/", "External"); err != nil {
		t.Fatalf("SetCellHyperLink failed: %v", err)
	}
	if err := f.SetDefinedName(&excelize.DefinedName{
		Name:     "_xlnm.Print_Area",
		RefersTo: "Sheet1!$A$1:$B$3",
		Scope:    sheetName,
	}); err != nil {
		t.Fatalf("SetDefinedName failed: %v", err)
	}
	f.NewSheet("Empty")

	path := filepath.Join(t.TempDir(), "export.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save test file: %v", err)
	}
	return path
}

func TestExport(t *testing.T) {
	wb := mustLoad(t, exportFixture(t))
	data := wb.Export(DefaultExportOptions())

	if data.BookName != "export.xlsx" {
		t.Errorf("BookName = %q", data.BookName)
	}
	if !slices.Equal(data.SheetOrder, []string{"Sheet1", "Empty"}) {
		t.Errorf("SheetOrder = %v", data.SheetOrder)
	}
	sheet := data.Sheets["Sheet1"]
	rows := sheet.Rows
	if len(rows) != 5 {
		t.Fatalf("Expected 5 rows, got %d", len(rows))
	}
	if rows[0].R != 1 || rows[0].C["1"] != "Header1" {
		t.Errorf("first row = %+v", rows[0])
	}
	if rows[1].C["1"] != int64(100) {
		t.Errorf("Expected int64(100), got %v (type: %T)", rows[1].C["1"], rows[1].C["1"])
	}
	if rows[1].C["2"] != 200.5 {
		t.Errorf("Expected 200.5, got %v", rows[1].C["2"])
	}
	if rows[4].R != 7 || rows[4].C["4"] != true {
		t.Errorf("last row = %+v", rows[4])
	}
	if rows[2].Links != nil {
		t.Errorf("standard mode exported links: %v", rows[2].Links)
	}

	if sheet.Dimension != "A1:D7" {
		t.Errorf("Dimension = %q", sheet.Dimension)
	}
	if !slices.Equal(sheet.Merges, []string{"D6:E6"}) {
		t.Errorf("Merges = %v", sheet.Merges)
	}
	if !slices.Equal(sheet.TableCandidates, []string{"A1:B3"}) {
		t.Errorf("TableCandidates = %v", sheet.TableCandidates)
	}
	if len(sheet.PrintAreas) != 1 || sheet.PrintAreas[0].R2 != 3 || sheet.PrintAreas[0].C2 != 2 {
		t.Errorf("PrintAreas = %+v", sheet.PrintAreas)
	}
	if len(data.Names) != 1 || data.Names[0].Scope != "Sheet1" {
		t.Errorf("Names = %+v", data.Names)
	}
	if empty := data.Sheets["Empty"]; len(empty.Rows) != 0 || empty.Dimension != "" {
		t.Errorf("Empty sheet = %+v", empty)
	}

	if _, err := json.Marshal(data); err != nil {
		t.Errorf("json.Marshal failed: %v", err)
	}
}

func TestExportModes(t *testing.T) {
	wb := mustLoad(t, exportFixture(t))

	light := wb.Export(ExportOptions{Mode: ExportLight, Tables: DefaultTableParams()})
	sheet := light.Sheets["Sheet1"]
	if sheet.Merges != nil || sheet.PrintAreas != nil || light.Names != nil {
		t.Errorf("light export = %+v", sheet)
	}

	verbose := wb.Export(ExportOptions{Mode: ExportVerbose, Tables: DefaultTableParams()})
	rows := verbose.Sheets["Sheet1"].Rows
	if got := rows[2].Links["1"]; got != "https://example.com/" {
		t.Errorf("A3 link = %q", got)
	}

	off := false
	opts := ExportOptions{Mode: ExportVerbose, IncludeLinks: &off, IncludePrintAreas: &off}
	if opts.ShouldIncludeLinks() || opts.ShouldIncludePrintAreas() {
		t.Error("explicit false overridden by mode")
	}
}

func TestExportDatesAndFormulas(t *testing.T) {
	wb, ws := newSheet(t)
	date, _ := wb.AddStyle(styles.Style{NumFmtID: 14})
	ws.SetCell(ref(t, "A1"), Number(45000))
	ws.SetStyle(ref(t, "A1"), date)
	ws.SetCell(ref(t, "B1"), FormulaWithResult("=1/4", Number(0.25)))
	ws.SetCell(ref(t, "C1"), Formula("=1+1"))
	ws.SetCell(ref(t, "D1"), ErrorCode("#REF!"))

	rows := wb.Export(DefaultExportOptions()).Sheets["Sheet1"].Rows
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	want := map[string]interface{}{"1": "2023-03-15", "2": 0.25, "4": "#REF!"}
	for col, v := range want {
		if rows[0].C[col] != v {
			t.Errorf("column %s = %v (type: %T), want %v", col, rows[0].C[col], rows[0].C[col], v)
		}
	}
	if _, ok := rows[0].C["3"]; ok {
		t.Error("formula without a result was exported")
	}
}

func TestPrintAreaViews(t *testing.T) {
	wb := mustLoad(t, exportFixture(t))
	views := wb.PrintAreaViews(DefaultExportOptions())
	if len(views) != 1 {
		t.Fatalf("Expected 1 view, got %d", len(views))
	}
	v := views[0]
	if v.SheetName != "Sheet1" || v.BookName != "export.xlsx" {
		t.Errorf("view = %+v", v)
	}
	if len(v.Rows) != 3 {
		t.Errorf("Expected 3 rows inside the area, got %d", len(v.Rows))
	}
	if v.Merges != nil {
		t.Errorf("Merges = %v", v.Merges)
	}
	if !slices.Equal(v.TableCandidates, []string{"A1:B3"}) {
		t.Errorf("TableCandidates = %v", v.TableCandidates)
	}
	if !v.Area.Contains(2, 2) || v.Area.Contains(4, 1) {
		t.Errorf("Area = %+v", v.Area)
	}
}
