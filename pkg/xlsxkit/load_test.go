package xlsxkit

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"github.com/xuri/excelize/v2"
)

func TestLoadCellTypes(t *testing.T) {
	path := newFixture(`<dimension ref="A1:G1"/><sheetData><row r="1">` +
		`<c r="A1" t="s"><v>1</v></c>` +
		`<c r="B1"><v>2.5</v></c>` +
		`<c r="C1" t="b"><v>1</v></c>` +
		`<c r="D1" t="e"><v>#N/A</v></c>` +
		`<c r="E1" t="inlineStr"><is><t>inline</t></is></c>` +
		`<c r="F1" t="str"><f>A1&amp;"!"</f><v>beta!</v></c>` +
		`<c r="G1"><f>B1*2</f><v>5</v></c>` +
		`</row></sheetData>`).write(t)

	wb := mustLoad(t, path)
	tests := []struct {
		addr string
		want Value
	}{
		{"A1", Text("beta")},
		{"B1", Number(2.5)},
		{"C1", Bool(true)},
		{"D1", ErrorCode("#N/A")},
		{"E1", Text("inline")},
		{"F1", FormulaWithResult(`A1&"!"`, Text("beta!"))},
		{"G1", FormulaWithResult("B1*2", Number(5))},
		{"H1", Empty()},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got := mustCell(t, wb, "Data", tt.addr).Value
			if !got.Equal(tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
	if wb.State() != StateLoaded {
		t.Errorf("state = %v, want loaded", wb.State())
	}
	if wb.Modified() {
		t.Error("freshly loaded workbook reports modified")
	}
}

func TestLoadDerivesMissingCellReferences(t *testing.T) {
	path := newFixture(`<sheetData><row><c><v>1</v></c><c><v>2</v></c></row><row><c r="C2"><v>3</v></c></row></sheetData>`).write(t)
	wb := mustLoad(t, path)
	for addr, want := range map[string]float64{"A1": 1, "B1": 2, "C2": 3} {
		if got := mustCell(t, wb, "Data", addr).Value; !got.Equal(Number(want)) {
			t.Errorf("%s = %v, want %v", addr, got, want)
		}
	}
}

func TestLoadExpandsSharedFormulas(t *testing.T) {
	path := newFixture(`<sheetData>` +
		`<row r="1"><c r="A1"><v>1</v></c><c r="B1"><f t="shared" ref="B1:B3" si="0">A1*2</f><v>2</v></c></row>` +
		`<row r="2"><c r="A2"><v>2</v></c><c r="B2"><f t="shared" si="0"/><v>4</v></c></row>` +
		`<row r="3"><c r="A3"><v>3</v></c><c r="B3"><f t="shared" si="0"/><v>6</v></c></row>` +
		`</sheetData>`).write(t)
	wb := mustLoad(t, path)

	for addr, want := range map[string]string{"B1": "A1*2", "B2": "A2*2", "B3": "A3*2"} {
		c := mustCell(t, wb, "Data", addr)
		if c.Value.Kind != KindFormula || c.Value.Formula != want {
			t.Errorf("%s = %#v, want formula %q", addr, c.Value, want)
		}
	}

	out := filepath.Join(t.TempDir(), "out.xlsx")
	if err := wb.Save(out); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	part := readPart(t, out, "xl/worksheets/sheet1.xml")
	if strings.Contains(part, `t="shared"`) {
		t.Errorf("shared formula attributes written back: %s", part)
	}
	if !strings.Contains(part, `<c r="B3"><f>A3*2</f><v>6</v></c>`) {
		t.Errorf("expanded formula missing: %s", part)
	}
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name     string
		fixture  *fixture
		target   error
		kind     errs.Kind
		wantPart string
		wantCell string
	}{
		{
			name:     "shared string index out of range",
			fixture:  newFixture(`<sheetData><row r="1"><c r="B1" t="s"><v>7</v></c></row></sheetData>`),
			target:   errs.ErrInvalidIndex,
			kind:     errs.Reference,
			wantPart: "xl/worksheets/sheet1.xml",
			wantCell: "B1",
		},
		{
			name:     "style index out of range",
			fixture:  newFixture(`<sheetData><row r="1"><c r="A1" s="9"><v>1</v></c></row></sheetData>`),
			target:   errs.ErrInvalidIndex,
			kind:     errs.Reference,
			wantPart: "xl/worksheets/sheet1.xml",
			wantCell: "A1",
		},
		{
			name:     "dangling relationship",
			fixture:  newFixture(`<sheetData/><drawing r:id="rId5"/>`),
			target:   errs.ErrDanglingRelationship,
			kind:     errs.Reference,
			wantPart: "xl/worksheets/sheet1.xml",
		},
		{
			name:     "NaN number",
			fixture:  newFixture(`<sheetData><row r="1"><c r="A1"><v>NaN</v></c></row></sheetData>`),
			target:   errs.ErrSchema,
			kind:     errs.Format,
			wantPart: "xl/worksheets/sheet1.xml",
			wantCell: "A1",
		},
		{
			name:     "infinite number",
			fixture:  newFixture(`<sheetData><row r="1"><c r="C1"><v>+Inf</v></c></row></sheetData>`),
			target:   errs.ErrSchema,
			kind:     errs.Format,
			wantPart: "xl/worksheets/sheet1.xml",
			wantCell: "C1",
		},
		{
			name:     "overlapping merges",
			fixture:  newFixture(`<sheetData/><mergeCells count="2"><mergeCell ref="A1:B2"/><mergeCell ref="B2:C3"/></mergeCells>`),
			target:   errs.ErrOverlap,
			kind:     errs.Range,
			wantPart: "xl/worksheets/sheet1.xml",
		},
		{
			name:     "formula on missing sheet",
			fixture:  newFixture(`<sheetData><row r="1"><c r="A1"><f>Missing!A1+1</f></c></row></sheetData>`),
			target:   errs.ErrSheetNotFound,
			kind:     errs.Reference,
			wantPart: "xl/worksheets/sheet1.xml",
			wantCell: "A1",
		},
		{
			name:     "malformed worksheet",
			fixture:  newFixture(`<sheetData><row r="1"><c r="A1"><v>1</v></row></sheetData>`),
			target:   errs.ErrSchema,
			kind:     errs.Format,
			wantPart: "xl/worksheets/sheet1.xml",
		},
		{
			name: "missing worksheet part",
			fixture: newFixture("").set("xl/_rels/workbook.xml.rels", strings.Replace(fixtureWorkbookRels,
				"worksheets/sheet1.xml", "worksheets/sheet9.xml", 1)),
			target:   errs.ErrMissingPart,
			kind:     errs.Format,
			wantPart: "xl/worksheets/sheet9.xml",
		},
		{
			name: "sheet without relationship",
			fixture: newFixture("").set("xl/workbook.xml", strings.Replace(fixtureWorkbook,
				`r:id="rId1"`, `r:id="rId7"`, 1)),
			target:   errs.ErrDanglingRelationship,
			kind:     errs.Reference,
			wantPart: "xl/workbook.xml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb, err := Load(tt.fixture.write(t))
			if wb != nil {
				t.Fatal("Load returned a workbook along with the error")
			}
			wantErr(t, err, tt.target, tt.kind)
			var e *errs.Error
			if !errors.As(err, &e) {
				t.Fatalf("error %v is not an *errs.Error", err)
			}
			if e.Part != tt.wantPart {
				t.Errorf("part = %q, want %q", e.Part, tt.wantPart)
			}
			if tt.wantCell != "" && !strings.HasSuffix(e.Cell, tt.wantCell) {
				t.Errorf("cell = %q, want %q", e.Cell, tt.wantCell)
			}
		})
	}
}

func TestLoadMalformedXMLReportsLine(t *testing.T) {
	path := newFixture("<sheetData>\n<row r=\"1\">\n<c r=\"A1\"><v>1</v></c>\n</sheetData>").write(t)
	_, err := Load(path)
	var e *errs.Error
	if !errors.As(err, &e) {
		t.Fatalf("error %v is not an *errs.Error", err)
	}
	if e.Line < 2 {
		t.Errorf("line = %d, want the line of the mismatched tag", e.Line)
	}
}

func TestLoadResolvesDefinedNamesAndScopes(t *testing.T) {
	workbook := strings.Replace(fixtureWorkbook, `<calcPr`,
		`<definedNames><definedName name="_xlnm.Print_Area" localSheetId="0">Data!$A$1:$B$2</definedName>`+
			`<definedName name="Total">Data!$C$1</definedName></definedNames><calcPr`, 1)
	path := newFixture(`<sheetData/>`).set("xl/workbook.xml", workbook).write(t)
	wb := mustLoad(t, path)

	names := wb.DefinedNames()
	if len(names) != 2 {
		t.Fatalf("got %d names, want 2", len(names))
	}
	if names[0].Scope != "Data" || names[1].Scope != "" {
		t.Errorf("scopes = %q, %q", names[0].Scope, names[1].Scope)
	}
	areas, err := wb.PrintArea("data")
	if err != nil {
		t.Fatalf("PrintArea failed: %v", err)
	}
	want := cellref.Range{Start: cellref.Ref{Row: 1, Col: 1}, End: cellref.Ref{Row: 2, Col: 2}}
	if len(areas) != 1 || areas[0] != want {
		t.Errorf("print areas = %v, want [%v]", areas, want)
	}
}

func TestLoadRejectsBadLocalSheetID(t *testing.T) {
	workbook := strings.Replace(fixtureWorkbook, `<calcPr`,
		`<definedNames><definedName name="X" localSheetId="3">Data!$A$1</definedName></definedNames><calcPr`, 1)
	_, err := Load(newFixture(`<sheetData/>`).set("xl/workbook.xml", workbook).write(t))
	wantErr(t, err, errs.ErrInvalidIndex, errs.Reference)
}

func TestLoadExcelizeWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Name")
	f.SetCellValue("Sheet1", "B1", 42)
	f.SetCellValue("Sheet1", "C1", true)
	f.SetCellFormula("Sheet1", "A2", "B1*2")
	f.MergeCell("Sheet1", "D1", "E2")
	if _, err := f.NewSheet("Other"); err != nil {
		t.Fatalf("NewSheet failed: %v", err)
	}
	f.SetCellValue("Other", "A1", 3.25)

	path := filepath.Join(t.TempDir(), "excelize.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save test file: %v", err)
	}

	wb := mustLoad(t, path)
	if got := wb.SheetNames(); len(got) != 2 || got[0] != "Sheet1" || got[1] != "Other" {
		t.Fatalf("SheetNames() = %v", got)
	}
	if got := mustCell(t, wb, "Sheet1", "A1").Value; !got.Equal(Text("Name")) {
		t.Errorf("A1 = %#v", got)
	}
	if got := mustCell(t, wb, "Sheet1", "B1").Value; !got.Equal(Number(42)) {
		t.Errorf("B1 = %#v", got)
	}
	if got := mustCell(t, wb, "Sheet1", "C1").Value; !got.Equal(Bool(true)) {
		t.Errorf("C1 = %#v", got)
	}
	if got := mustCell(t, wb, "Sheet1", "A2").Value; got.Kind != KindFormula || got.Formula != "B1*2" {
		t.Errorf("A2 = %#v", got)
	}
	if got := mustCell(t, wb, "Other", "A1").Value; !got.Equal(Number(3.25)) {
		t.Errorf("Other!A1 = %#v", got)
	}
	ws, _ := wb.Sheet("Sheet1")
	merges := ws.MergedRanges()
	if len(merges) != 1 || merges[0].String() != "D1:E2" {
		t.Errorf("merges = %v", merges)
	}
}

func TestLoadIsConcurrencyIndependent(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range []string{"One", "Two", "Three", "Four"} {
		if i == 0 {
			f.SetSheetName("Sheet1", name)
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("NewSheet failed: %v", err)
		}
		for row := 1; row <= 50; row++ {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			f.SetCellValue(name, cell, name+"-"+cell)
		}
	}
	path := filepath.Join(t.TempDir(), "many.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save test file: %v", err)
	}

	serial, err := Load(path, WithConcurrency(1))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer serial.Close()
	parallel, err := Load(path, WithConcurrency(8))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer parallel.Close()

	for _, name := range serial.SheetNames() {
		a, _ := serial.Sheet(name)
		b, _ := parallel.Sheet(name)
		if a.CellCount() != 50 || b.CellCount() != 50 {
			t.Fatalf("%s: cell counts %d and %d", name, a.CellCount(), b.CellCount())
		}
		for ref, cells := range a.Rows() {
			for _, c := range cells {
				if got := b.Cell(c.Ref).Value; !got.Equal(c.Value) {
					t.Errorf("%s row %d: %v != %v", name, ref, got, c.Value)
				}
			}
		}
	}
	if serial.SharedStrings() != parallel.SharedStrings() {
		t.Errorf("shared strings %d != %d", serial.SharedStrings(), parallel.SharedStrings())
	}
}

func TestLoadWithRecalculate(t *testing.T) {
	path := newFixture(`<sheetData><row r="1"><c r="A1"><v>2</v></c><c r="B1"><f>A1*10</f><v>0</v></c></row></sheetData>`).write(t)
	wb, err := Load(path, WithRecalculate(true))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer wb.Close()
	c := mustCell(t, wb, "Data", "B1")
	if c.Value.Result == nil || !c.Value.Result.Equal(Number(20)) {
		t.Errorf("B1 result = %v, want 20", c.Value.Result)
	}
	if wb.Modified() {
		t.Error("recalculation on load marks the workbook modified")
	}
}
