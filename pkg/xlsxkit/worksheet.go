package xlsxkit

import (
	"encoding/xml"
	"iter"
	"math"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/formula"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/internal/xmlnode"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/opc"
)

// MaxTextLength is the longest text a cell can hold.
const MaxTextLength = 32767

// SheetKind distinguishes editable worksheets from sheets whose content
// is kept opaque.
type SheetKind int

const (
	SheetWorksheet SheetKind = iota
	SheetChartsheet
	SheetDialogsheet
	SheetMacrosheet
)

func (k SheetKind) String() string {
	switch k {
	case SheetChartsheet:
		return "chartsheet"
	case SheetDialogsheet:
		return "dialogsheet"
	case SheetMacrosheet:
		return "macrosheet"
	default:
		return "worksheet"
	}
}

// Visibility is the tab state of a sheet.
type Visibility int

const (
	Visible Visibility = iota
	Hidden
	VeryHidden
)

func (v Visibility) String() string {
	switch v {
	case Hidden:
		return "hidden"
	case VeryHidden:
		return "veryHidden"
	default:
		return "visible"
	}
}

func parseVisibility(s string) Visibility {
	switch s {
	case "hidden":
		return Hidden
	case "veryHidden":
		return VeryHidden
	}
	return Visible
}

// Cell is one populated address of a worksheet.
type Cell struct {
	Ref   cellref.Ref
	Value Value
	Style int

	// sst is the shared-string index of text values plus one, 0 for none.
	sst  int
	meta *cellMeta
}

// cellMeta carries what a loaded cell had beyond its value, so unchanged
// cells are written back as they were read.
type cellMeta struct {
	// typ is the original t attribute of inline and date text.
	typ   string
	attr  []xml.Attr
	fAttr []xml.Attr
}

// RowMeta is the height and visibility of a row. Height 0 means the
// default height.
type RowMeta struct {
	Height float64
	Hidden bool
}

// ColMeta is the width and visibility of a column. Width 0 means the
// default width.
type ColMeta struct {
	Width  float64
	Hidden bool
}

type row struct {
	index int
	cells []Cell
	// attr holds every row attribute except r and spans.
	attr []xml.Attr
}

// colSpan is one <col> element; attr holds everything except min and max.
type colSpan struct {
	min, max int
	attr     []xml.Attr
}

// Worksheet is one sheet of a workbook. Cells are stored sparsely: a
// sorted row index with per-row cells sorted by column.
type Worksheet struct {
	wb         *Workbook
	name       string
	sheetID    int
	kind       SheetKind
	visibility Visibility

	rows   []*row
	merges []cellref.Range
	cols   []colSpan

	// part is the package part the sheet was loaded from or last saved
	// to, and relID the workbook relationship pointing at it.
	part  string
	relID string
	rels  *opc.Relationships
	// root is the start tag of the sheet part; preserved holds every
	// element of it the model does not own.
	root      xml.StartElement
	preserved []element
	// sheetAttr holds the attributes of the <sheet> entry of the
	// workbook part other than name, sheetId, state and r:id.
	sheetAttr []xml.Attr
}

func newWorksheet(wb *Workbook, name string, id int) *Worksheet {
	return &Worksheet{
		wb:      wb,
		name:    name,
		sheetID: id,
		rels:    opc.NewRelationships(),
		root:    defaultWorksheetRoot(),
	}
}

// Name returns the sheet name.
func (ws *Worksheet) Name() string { return ws.name }

// ID returns the sheetId the workbook part records for the sheet.
func (ws *Worksheet) ID() int { return ws.sheetID }

// Kind returns the sheet kind.
func (ws *Worksheet) Kind() SheetKind { return ws.kind }

// Visibility returns the tab state.
func (ws *Worksheet) Visibility() Visibility { return ws.visibility }

func (ws *Worksheet) editable() error {
	if ws.kind != SheetWorksheet {
		return errs.New(errs.Range, errs.ErrNotWorksheet, "%q is a %s", ws.name, ws.kind)
	}
	return nil
}

func (ws *Worksheet) findRow(index int) (int, bool) {
	return slices.BinarySearchFunc(ws.rows, index, func(r *row, index int) int { return r.index - index })
}

func (r *row) find(col int) (int, bool) {
	return slices.BinarySearchFunc(r.cells, col, func(c Cell, col int) int { return c.Ref.Col - col })
}

func (ws *Worksheet) lookup(ref cellref.Ref) *Cell {
	i, ok := ws.findRow(ref.Row)
	if !ok {
		return nil
	}
	r := ws.rows[i]
	j, ok := r.find(ref.Col)
	if !ok {
		return nil
	}
	return &r.cells[j]
}

// rowAt returns the row with the given index, creating it when needed.
func (ws *Worksheet) rowAt(index int) *row {
	i, ok := ws.findRow(index)
	if ok {
		return ws.rows[i]
	}
	r := &row{index: index}
	ws.rows = slices.Insert(ws.rows, i, r)
	return r
}

// put stores c, replacing any cell at the same address.
func (ws *Worksheet) put(c Cell) {
	r := ws.rowAt(c.Ref.Row)
	j, ok := r.find(c.Ref.Col)
	if ok {
		r.cells[j] = c
		return
	}
	r.cells = slices.Insert(r.cells, j, c)
}

func (ws *Worksheet) remove(ref cellref.Ref) {
	i, ok := ws.findRow(ref.Row)
	if !ok {
		return
	}
	r := ws.rows[i]
	j, ok := r.find(ref.Col)
	if !ok {
		return
	}
	r.cells = slices.Delete(r.cells, j, j+1)
	if len(r.cells) == 0 && len(r.attr) == 0 {
		ws.rows = slices.Delete(ws.rows, i, i+1)
	}
}

func checkRef(ref cellref.Ref) error {
	if !ref.Valid() {
		return errs.New(errs.Range, errs.ErrOutOfBounds, "row %d, column %d", ref.Row, ref.Col)
	}
	return nil
}

func checkRange(r cellref.Range) error {
	if err := checkRef(r.Start); err != nil {
		return err
	}
	if err := checkRef(r.End); err != nil {
		return err
	}
	if r.Start.Row > r.End.Row || r.Start.Col > r.End.Col {
		return errs.New(errs.Range, errs.ErrInvalidRange, "%s", r)
	}
	return nil
}

// Cell returns the cell at ref. Unset addresses yield an empty cell with
// the default style.
func (ws *Worksheet) Cell(ref cellref.Ref) Cell {
	if c := ws.lookup(ref); c != nil {
		return *c
	}
	return Cell{Ref: ref}
}

// SetCell replaces the value at ref, keeping the cell's style. Formulas
// are checked for syntax and for references to missing sheets before
// anything changes. Setting an empty value on an unstyled cell removes it.
func (ws *Worksheet) SetCell(ref cellref.Ref, v Value) error {
	return ws.wb.mutate(func() error {
		if err := ws.editable(); err != nil {
			return err
		}
		if err := checkRef(ref); err != nil {
			return err
		}
		if err := ws.wb.checkValue(v); err != nil {
			return errs.InCell(err, cellref.FormatAddress(ws.name, cellref.CellRange(ref)))
		}

		c := Cell{Ref: ref, Value: v}
		if old := ws.lookup(ref); old != nil {
			c.Style = old.Style
		}
		if v.Kind == KindEmpty && c.Style == 0 {
			ws.remove(ref)
			return nil
		}
		if v.Kind == KindText {
			c.sst = ws.wb.sst.Intern(v.Text) + 1
		}
		if v.Kind == KindFormula {
			ws.wb.stale = true
		}
		ws.put(c)
		return nil
	})
}

// checkValue validates v for storage in a cell.
func (wb *Workbook) checkValue(v Value) error {
	switch v.Kind {
	case KindNumber:
		if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
			return errs.New(errs.Range, errs.ErrInvalidValue, "number %v is not finite", v.Number)
		}
	case KindText:
		if err := checkText(v.Text); err != nil {
			return err
		}
		if utf8.RuneCountInString(v.Text) > MaxTextLength {
			return errs.New(errs.Range, errs.ErrOutOfBounds, "text longer than %d characters", MaxTextLength)
		}
	case KindError:
		if !slices.Contains(formula.ErrorCodes, v.Error) {
			return errs.New(errs.Formula, errs.ErrSyntax, "unknown error code %q", v.Error)
		}
	case KindFormula:
		if err := checkText(v.Formula); err != nil {
			return err
		}
		if v.Result != nil {
			if v.Result.Kind == KindFormula {
				return errs.New(errs.Formula, errs.ErrSyntax, "cached result of %q is a formula", v.Formula)
			}
			if err := wb.checkValue(*v.Result); err != nil {
				return err
			}
		}
		return wb.checkFormula(v.Formula)
	}
	return nil
}

// checkText rejects text that cannot be written to an XML part unchanged.
func checkText(s string) error {
	if !xmlnode.IsValidText(s) {
		return errs.New(errs.Range, errs.ErrInvalidValue, "text %q contains invalid UTF-8 or characters XML cannot represent", s)
	}
	return nil
}

// checkFormula verifies formula syntax and that every sheet the formula
// names exists.
func (wb *Workbook) checkFormula(text string) error {
	refs, err := formula.ExtractReferences(text)
	if err != nil {
		return err
	}
	for _, r := range refs {
		if r.External || r.Sheet == "" {
			continue
		}
		if wb.sheetIndex(r.Sheet) < 0 {
			return errs.New(errs.Reference, errs.ErrSheetNotFound, "%q in formula %q", r.Sheet, text)
		}
	}
	return nil
}

// SetStyle applies a cell format index to ref.
func (ws *Worksheet) SetStyle(ref cellref.Ref, style int) error {
	return ws.wb.mutate(func() error {
		if err := ws.editable(); err != nil {
			return err
		}
		if err := checkRef(ref); err != nil {
			return err
		}
		if style < 0 || style >= ws.wb.styles.Len() {
			return errs.New(errs.Reference, errs.ErrInvalidIndex, "style %d of %d", style, ws.wb.styles.Len())
		}
		c := ws.Cell(ref)
		c.Style = style
		if c.Value.IsEmpty() && style == 0 {
			ws.remove(ref)
			return nil
		}
		ws.put(c)
		return nil
	})
}

// Clear removes the cell at ref, value and style.
func (ws *Worksheet) Clear(ref cellref.Ref) error {
	return ws.wb.mutate(func() error {
		if err := ws.editable(); err != nil {
			return err
		}
		if err := checkRef(ref); err != nil {
			return err
		}
		ws.remove(ref)
		return nil
	})
}

// Rows yields each populated row with its cells in column order. The
// sequence reflects the sheet when iteration starts.
func (ws *Worksheet) Rows() iter.Seq2[int, []Cell] {
	return func(yield func(int, []Cell) bool) {
		snapshot := slices.Clone(ws.rows)
		for _, r := range snapshot {
			if len(r.cells) == 0 {
				continue
			}
			if !yield(r.index, slices.Clone(r.cells)) {
				return
			}
		}
	}
}

// CellCount returns the number of populated cells.
func (ws *Worksheet) CellCount() int {
	n := 0
	for _, r := range ws.rows {
		n += len(r.cells)
	}
	return n
}

// Dimension returns the smallest range covering every populated cell, and
// false for a sheet without cells.
func (ws *Worksheet) Dimension() (cellref.Range, bool) {
	var dim cellref.Range
	found := false
	for _, r := range ws.rows {
		if len(r.cells) == 0 {
			continue
		}
		span := cellref.Range{
			Start: cellref.Ref{Row: r.index, Col: r.cells[0].Ref.Col},
			End:   cellref.Ref{Row: r.index, Col: r.cells[len(r.cells)-1].Ref.Col},
		}
		if !found {
			dim, found = span, true
			continue
		}
		dim = dim.Union(span)
	}
	return dim, found
}

// MergeRange merges a block of cells. It fails without changes when the
// block is a single cell or overlaps an existing merge.
func (ws *Worksheet) MergeRange(r cellref.Range) error {
	return ws.wb.mutate(func() error {
		if err := ws.editable(); err != nil {
			return err
		}
		if err := checkRange(r); err != nil {
			return err
		}
		if r.IsCell() {
			return errs.New(errs.Range, errs.ErrInvalidRange, "cannot merge the single cell %s", r)
		}
		for _, m := range ws.merges {
			if m.Overlaps(r) {
				return errs.New(errs.Range, errs.ErrOverlap, "%s overlaps %s", r, m)
			}
		}
		ws.merges = append(ws.merges, r)
		return nil
	})
}

// Unmerge removes the merge covering exactly r.
func (ws *Worksheet) Unmerge(r cellref.Range) error {
	return ws.wb.mutate(func() error {
		if err := ws.editable(); err != nil {
			return err
		}
		i := slices.Index(ws.merges, r)
		if i < 0 {
			return errs.New(errs.Range, errs.ErrInvalidRange, "%s is not merged", r)
		}
		ws.merges = slices.Delete(ws.merges, i, i+1)
		return nil
	})
}

// MergedRanges returns the merges in the order they were added.
func (ws *Worksheet) MergedRanges() []cellref.Range {
	return slices.Clone(ws.merges)
}

// MergeAt returns the merge containing ref, if any.
func (ws *Worksheet) MergeAt(ref cellref.Ref) (cellref.Range, bool) {
	for _, m := range ws.merges {
		if m.Contains(ref) {
			return m, true
		}
	}
	return cellref.Range{}, false
}

// Row returns the metadata of a row.
func (ws *Worksheet) Row(index int) RowMeta {
	i, ok := ws.findRow(index)
	if !ok {
		return RowMeta{}
	}
	return rowMeta(ws.rows[i].attr)
}

func rowMeta(attr []xml.Attr) RowMeta {
	var m RowMeta
	if v, ok := attrValue(attr, "ht"); ok {
		m.Height, _ = strconv.ParseFloat(v, 64)
	}
	v, _ := attrValue(attr, "hidden")
	m.Hidden = isTrue(v)
	return m
}

func checkRow(index int) error {
	if index < 1 || index > cellref.MaxRows {
		return errs.New(errs.Range, errs.ErrOutOfBounds, "row %d", index)
	}
	return nil
}

func checkCol(col int) error {
	if col < 1 || col > cellref.MaxCols {
		return errs.New(errs.Range, errs.ErrOutOfBounds, "column %d", col)
	}
	return nil
}

// SetRowHeight sets a custom row height in points; 0 restores the
// default.
func (ws *Worksheet) SetRowHeight(index int, height float64) error {
	return ws.wb.mutate(func() error {
		if err := ws.editable(); err != nil {
			return err
		}
		if err := checkRow(index); err != nil {
			return err
		}
		if height < 0 || height > 409 {
			return errs.New(errs.Range, errs.ErrOutOfBounds, "row height %g", height)
		}
		r := ws.rowAt(index)
		if height == 0 {
			r.attr = unsetAttr(unsetAttr(r.attr, "ht"), "customHeight")
		} else {
			r.attr = setAttr(r.attr, "ht", formatFloat(height))
			r.attr = setAttr(r.attr, "customHeight", "1")
		}
		ws.dropEmptyRow(index)
		return nil
	})
}

// SetRowHidden hides or shows a row.
func (ws *Worksheet) SetRowHidden(index int, hidden bool) error {
	return ws.wb.mutate(func() error {
		if err := ws.editable(); err != nil {
			return err
		}
		if err := checkRow(index); err != nil {
			return err
		}
		r := ws.rowAt(index)
		if hidden {
			r.attr = setAttr(r.attr, "hidden", "1")
		} else {
			r.attr = unsetAttr(r.attr, "hidden")
		}
		ws.dropEmptyRow(index)
		return nil
	})
}

func (ws *Worksheet) dropEmptyRow(index int) {
	if i, ok := ws.findRow(index); ok && len(ws.rows[i].cells) == 0 && len(ws.rows[i].attr) == 0 {
		ws.rows = slices.Delete(ws.rows, i, i+1)
	}
}

// Column returns the metadata of a column.
func (ws *Worksheet) Column(col int) ColMeta {
	for _, s := range ws.cols {
		if col >= s.min && col <= s.max {
			var m ColMeta
			if v, ok := attrValue(s.attr, "width"); ok {
				m.Width, _ = strconv.ParseFloat(v, 64)
			}
			v, _ := attrValue(s.attr, "hidden")
			m.Hidden = isTrue(v)
			return m
		}
	}
	return ColMeta{}
}

// SetColumnWidth sets a custom column width in characters; 0 restores the
// default.
func (ws *Worksheet) SetColumnWidth(col int, width float64) error {
	return ws.wb.mutate(func() error {
		if err := ws.editable(); err != nil {
			return err
		}
		if err := checkCol(col); err != nil {
			return err
		}
		if width < 0 || width > 255 {
			return errs.New(errs.Range, errs.ErrOutOfBounds, "column width %g", width)
		}
		ws.updateColumn(col, func(attr []xml.Attr) []xml.Attr {
			if width == 0 {
				return unsetAttr(unsetAttr(attr, "width"), "customWidth")
			}
			attr = setAttr(attr, "width", formatFloat(width))
			return setAttr(attr, "customWidth", "1")
		})
		return nil
	})
}

// SetColumnHidden hides or shows a column.
func (ws *Worksheet) SetColumnHidden(col int, hidden bool) error {
	return ws.wb.mutate(func() error {
		if err := ws.editable(); err != nil {
			return err
		}
		if err := checkCol(col); err != nil {
			return err
		}
		ws.updateColumn(col, func(attr []xml.Attr) []xml.Attr {
			if hidden {
				return setAttr(attr, "hidden", "1")
			}
			return unsetAttr(attr, "hidden")
		})
		return nil
	})
}

// updateColumn applies fn to the attributes of column col alone, splitting
// the span that contains it. Spans left without attributes are dropped.
func (ws *Worksheet) updateColumn(col int, fn func([]xml.Attr) []xml.Attr) {
	i := slices.IndexFunc(ws.cols, func(s colSpan) bool { return col >= s.min && col <= s.max })
	if i < 0 {
		i, _ = slices.BinarySearchFunc(ws.cols, col, func(s colSpan, col int) int { return s.min - col })
		ws.cols = slices.Insert(ws.cols, i, colSpan{min: col, max: col})
	} else {
		s := ws.cols[i]
		var parts []colSpan
		if s.min < col {
			parts = append(parts, colSpan{min: s.min, max: col - 1, attr: slices.Clone(s.attr)})
		}
		parts = append(parts, colSpan{min: col, max: col, attr: slices.Clone(s.attr)})
		if s.max > col {
			parts = append(parts, colSpan{min: col + 1, max: s.max, attr: slices.Clone(s.attr)})
		}
		ws.cols = slices.Replace(ws.cols, i, i+1, parts...)
		if s.min < col {
			i++
		}
	}
	ws.cols[i].attr = fn(ws.cols[i].attr)
	if len(ws.cols[i].attr) == 0 {
		ws.cols = slices.Delete(ws.cols, i, i+1)
	}
}

// SetVisibility changes the tab state. The last visible sheet cannot be
// hidden.
func (ws *Worksheet) SetVisibility(v Visibility) error {
	return ws.wb.mutate(func() error {
		if v != Visible && ws.visibility == Visible {
			visible := 0
			for _, s := range ws.wb.sheets {
				if s.visibility == Visible {
					visible++
				}
			}
			if visible <= 1 {
				return errs.New(errs.Range, errs.ErrLastVisibleSheet, "%q", ws.name)
			}
		}
		ws.visibility = v
		return nil
	})
}

func attrValue(attr []xml.Attr, local string) (string, bool) {
	for _, a := range attr {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

func setAttr(attr []xml.Attr, local, value string) []xml.Attr {
	for i, a := range attr {
		if a.Name.Space == "" && a.Name.Local == local {
			attr[i].Value = value
			return attr
		}
	}
	return append(attr, xml.Attr{Name: xml.Name{Local: local}, Value: value})
}

func unsetAttr(attr []xml.Attr, local string) []xml.Attr {
	return slices.DeleteFunc(attr, func(a xml.Attr) bool { return a.Name.Space == "" && a.Name.Local == local })
}

func isTrue(s string) bool {
	return s == "1" || s == "true"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
