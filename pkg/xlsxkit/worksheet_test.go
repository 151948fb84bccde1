package xlsxkit

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/styles"
)

func ref(t *testing.T, addr string) cellref.Ref {
	t.Helper()
	r, err := cellref.ParseRef(addr)
	if err != nil {
		t.Fatalf("ParseRef(%q) failed: %v", addr, err)
	}
	return r
}

func rng(t *testing.T, s string) cellref.Range {
	t.Helper()
	r, err := cellref.ParseRange(s)
	if err != nil {
		t.Fatalf("ParseRange(%q) failed: %v", s, err)
	}
	return r
}

func newSheet(t *testing.T) (*Workbook, *Worksheet) {
	t.Helper()
	wb := New()
	if _, err := wb.AddSheet("Sheet1"); err != nil {
		t.Fatalf("AddSheet failed: %v", err)
	}
	ws, err := wb.Sheet("Sheet1")
	if err != nil {
		t.Fatalf("Sheet failed: %v", err)
	}
	return wb, ws
}

func TestSetCellAndRows(t *testing.T) {
	_, ws := newSheet(t)
	for _, addr := range []string{"C3", "A1", "B3", "A3", "Z1"} {
		if err := ws.SetCell(ref(t, addr), Text(addr)); err != nil {
			t.Fatalf("SetCell(%s) failed: %v", addr, err)
		}
	}

	var got []string
	for row, cells := range ws.Rows() {
		for _, c := range cells {
			if c.Ref.Row != row {
				t.Errorf("cell %s yielded with row %d", c.Ref, row)
			}
			got = append(got, c.Ref.String())
		}
	}
	if want := "A1 Z1 A3 B3 C3"; strings.Join(got, " ") != want {
		t.Errorf("Rows() order = %v, want %s", got, want)
	}

	// The sequence can be iterated again and stopped early.
	n := 0
	for range ws.Rows() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("early stop yielded %d rows", n)
	}

	dim, ok := ws.Dimension()
	if !ok || dim.String() != "A1:Z3" {
		t.Errorf("Dimension() = %v, %v", dim, ok)
	}
	if ws.CellCount() != 5 {
		t.Errorf("CellCount() = %d", ws.CellCount())
	}
}

func TestSetCellValidation(t *testing.T) {
	wb, ws := newSheet(t)
	ws.SetCell(ref(t, "A1"), Number(1))

	tests := []struct {
		name   string
		ref    cellref.Ref
		value  Value
		target error
		kind   errs.Kind
	}{
		{"row out of bounds", cellref.Ref{Row: cellref.MaxRows + 1, Col: 1}, Number(1), errs.ErrOutOfBounds, errs.Range},
		{"column out of bounds", cellref.Ref{Row: 1, Col: cellref.MaxCols + 1}, Number(1), errs.ErrOutOfBounds, errs.Range},
		{"text too long", cellref.Ref{Row: 1, Col: 1}, Text(strings.Repeat("x", MaxTextLength+1)), errs.ErrOutOfBounds, errs.Range},
		{"formula syntax", cellref.Ref{Row: 1, Col: 1}, Formula("=SUM(A1"), errs.ErrSyntax, errs.Formula},
		{"formula on missing sheet", cellref.Ref{Row: 1, Col: 1}, Formula("=Nowhere!A1"), errs.ErrSheetNotFound, errs.Reference},
		{"unknown error code", cellref.Ref{Row: 1, Col: 1}, ErrorCode("#OOPS"), errs.ErrSyntax, errs.Formula},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sst := wb.SharedStrings()
			err := ws.SetCell(tt.ref, tt.value)
			wantErr(t, err, tt.target, tt.kind)
			if got := ws.Cell(ref(t, "A1")).Value; !got.Equal(Number(1)) {
				t.Errorf("A1 changed to %#v", got)
			}
			if wb.SharedStrings() != sst {
				t.Errorf("failed SetCell interned a string")
			}
		})
	}
}

func TestSetCellKeepsStyleAndInterns(t *testing.T) {
	wb, ws := newSheet(t)
	bold, err := wb.AddStyle(styles.Style{Font: &styles.Font{Bold: true}})
	if err != nil {
		t.Fatalf("AddStyle failed: %v", err)
	}
	a1 := ref(t, "A1")
	if err := ws.SetStyle(a1, bold); err != nil {
		t.Fatalf("SetStyle failed: %v", err)
	}
	ws.SetCell(a1, Text("same"))
	ws.SetCell(ref(t, "A2"), Text("same"))
	if c := ws.Cell(a1); c.Style != bold {
		t.Errorf("style = %d, want %d", c.Style, bold)
	}
	if wb.SharedStrings() != 1 {
		t.Errorf("shared strings = %d, want 1", wb.SharedStrings())
	}

	ws.SetCell(a1, Empty())
	if c := ws.Cell(a1); c.Style != bold || !c.Value.IsEmpty() {
		t.Errorf("emptied styled cell = %#v", c)
	}
	ws.Clear(a1)
	if ws.CellCount() != 1 {
		t.Errorf("CellCount() after Clear = %d", ws.CellCount())
	}

	err = ws.SetStyle(a1, 99)
	wantErr(t, err, errs.ErrInvalidIndex, errs.Reference)
}

func TestMergeRange(t *testing.T) {
	_, ws := newSheet(t)
	if err := ws.MergeRange(rng(t, "A1:B2")); err != nil {
		t.Fatalf("MergeRange failed: %v", err)
	}

	tests := []struct {
		name   string
		r      string
		target error
	}{
		{"overlap", "B2:C3", errs.ErrOverlap},
		{"contained", "A1:A2", errs.ErrOverlap},
		{"single cell", "D4", errs.ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ws.MergeRange(rng(t, tt.r))
			wantErr(t, err, tt.target, errs.Range)
			if got := ws.MergedRanges(); len(got) != 1 {
				t.Errorf("merges after failure = %v", got)
			}
		})
	}

	if err := ws.MergeRange(rng(t, "C1:D1")); err != nil {
		t.Fatalf("adjacent MergeRange failed: %v", err)
	}
	if m, ok := ws.MergeAt(ref(t, "B2")); !ok || m.String() != "A1:B2" {
		t.Errorf("MergeAt(B2) = %v, %v", m, ok)
	}
	if err := ws.Unmerge(rng(t, "A1:B2")); err != nil {
		t.Fatalf("Unmerge failed: %v", err)
	}
	if err := ws.Unmerge(rng(t, "A1:B2")); err == nil {
		t.Error("Unmerge of an unmerged range succeeded")
	}
	if got := ws.MergedRanges(); len(got) != 1 || got[0].String() != "C1:D1" {
		t.Errorf("merges = %v", got)
	}
}

func TestRowAndColumnMetadata(t *testing.T) {
	wb, ws := newSheet(t)
	if err := ws.SetRowHeight(3, 24.5); err != nil {
		t.Fatalf("SetRowHeight failed: %v", err)
	}
	ws.SetRowHidden(4, true)
	ws.SetColumnWidth(2, 18)
	ws.SetColumnHidden(2, true)
	ws.SetColumnHidden(5, true)

	if err := ws.SetRowHeight(1, 500); err == nil {
		t.Error("SetRowHeight accepted 500pt")
	}

	path := filepath.Join(t.TempDir(), "meta.xlsx")
	if err := wb.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded := mustLoad(t, path)
	ls, _ := loaded.Sheet("Sheet1")
	if got := ls.Row(3); got.Height != 24.5 || got.Hidden {
		t.Errorf("row 3 = %+v", got)
	}
	if got := ls.Row(4); !got.Hidden {
		t.Errorf("row 4 = %+v", got)
	}
	if got := ls.Column(2); got.Width != 18 || !got.Hidden {
		t.Errorf("column B = %+v", got)
	}
	if got := ls.Column(5); !got.Hidden || got.Width != 0 {
		t.Errorf("column E = %+v", got)
	}
	if got := ls.Column(3); got != (ColMeta{}) {
		t.Errorf("column C = %+v", got)
	}

	ls.SetRowHeight(3, 0)
	if got := ls.Row(3); got.Height != 0 {
		t.Errorf("row 3 after reset = %+v", got)
	}
}

func TestColumnSpanSplitting(t *testing.T) {
	path := newFixture(`<cols><col min="1" max="5" width="12" customWidth="1"/></cols><sheetData/>`).write(t)
	wb := mustLoad(t, path)
	ws, _ := wb.Sheet("Data")
	if err := ws.SetColumnWidth(3, 30); err != nil {
		t.Fatalf("SetColumnWidth failed: %v", err)
	}
	for col, want := range map[int]float64{1: 12, 2: 12, 3: 30, 4: 12, 5: 12, 6: 0} {
		if got := ws.Column(col).Width; got != want {
			t.Errorf("column %d width = %v, want %v", col, got, want)
		}
	}

	out := filepath.Join(t.TempDir(), "out.xlsx")
	if err := wb.Save(out); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	part := readPart(t, out, "xl/worksheets/sheet1.xml")
	if !strings.Contains(part, `<col min="1" max="2" width="12" customWidth="1"/><col min="3" max="3" width="30" customWidth="1"/><col min="4" max="5"`) {
		t.Errorf("cols not split: %s", part)
	}
}

func TestSheetVisibility(t *testing.T) {
	wb, ws := newSheet(t)
	err := ws.SetVisibility(Hidden)
	wantErr(t, err, errs.ErrLastVisibleSheet, errs.Range)

	wb.AddSheet("Sheet2")
	if err := ws.SetVisibility(VeryHidden); err != nil {
		t.Fatalf("SetVisibility failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "hidden.xlsx")
	if err := wb.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if part := readPart(t, path, "xl/workbook.xml"); !strings.Contains(part, `state="veryHidden"`) {
		t.Errorf("state not written: %s", part)
	}
	loaded := mustLoad(t, path)
	ls, _ := loaded.Sheet("Sheet1")
	if ls.Visibility() != VeryHidden {
		t.Errorf("visibility = %v", ls.Visibility())
	}
}
