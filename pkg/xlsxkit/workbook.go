// Package xlsxkit is an in-memory model of spreadsheet workbooks stored as
// .xlsx packages. A Workbook is loaded from a package, edited through its
// worksheets and saved back; parts the model does not understand are
// carried over unchanged.
package xlsxkit

import (
	"encoding/xml"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/formula"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/internal/xmlnode"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/opc"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/sst"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/styles"
)

// State is the lifecycle stage of a workbook.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateMutating
	StateSaving
	StateSaved
	// StateError follows a failed save. The model is intact and can be
	// edited or saved again.
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateMutating:
		return "mutating"
	case StateSaving:
		return "saving"
	case StateSaved:
		return "saved"
	case StateError:
		return "error"
	default:
		return "unloaded"
	}
}

// Workbook owns the sheets, the shared-string table, the style registry
// and the defined names of one spreadsheet. It is not safe for
// concurrent use.
type Workbook struct {
	opts Options
	log  logrus.FieldLogger
	pkg  *opc.Container

	sst    *sst.Table
	styles *styles.Registry
	sheets []*Worksheet
	names  []*definedName

	// part is the workbook part; rootRels and rels are the package and
	// workbook relationships.
	part     string
	rootRels *opc.Relationships
	rels     *opc.Relationships
	// root is the start tag of the workbook part and children the
	// elements of it kept verbatim. calcPr is kept apart because its
	// fullCalcOnLoad flag follows the model.
	root     xml.StartElement
	children []element
	calcPr   *xmlnode.Node

	stylesPart, stylesID string
	sstPart, sstID       string

	date1904 bool
	// stale is set while some formula has no up-to-date cached result.
	stale    bool
	modified bool
	state    State
}

func newWorkbook(opts Options) *Workbook {
	return &Workbook{
		opts:  opts,
		log:   opts.Logger,
		state: StateUnloaded,
	}
}

// New returns an empty workbook. Add at least one sheet before saving.
func New(opts ...Option) *Workbook {
	wb := newWorkbook(buildOptions(opts))
	wb.pkg = opc.New()
	wb.sst = sst.New()
	wb.styles = styles.Default()
	wb.part = "xl/workbook.xml"
	wb.rootRels = opc.NewRelationships()
	wb.rootRels.Add(opc.RelTypeOfficeDocument, wb.part)
	wb.rels = opc.NewRelationships()
	wb.root = xml.StartElement{
		Name: xml.Name{Local: "workbook"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: sst.NamespaceMain},
			{Name: xml.Name{Space: "xmlns", Local: "r"}, Value: nsRelationships},
		},
	}
	wb.stylesPart = "xl/styles.xml"
	wb.sstPart = "xl/sharedStrings.xml"
	wb.state = StateLoaded
	return wb
}

func defaultWorksheetRoot() xml.StartElement {
	return xml.StartElement{
		Name: xml.Name{Local: "worksheet"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: sst.NamespaceMain},
			{Name: xml.Name{Space: "xmlns", Local: "r"}, Value: nsRelationships},
		},
	}
}

// Close releases the package the workbook was loaded from. The model
// stays readable.
func (wb *Workbook) Close() error {
	if wb.pkg == nil {
		return nil
	}
	return wb.pkg.Close()
}

// State returns the lifecycle stage.
func (wb *Workbook) State() State { return wb.state }

// Modified reports whether the workbook changed since it was loaded or
// last saved.
func (wb *Workbook) Modified() bool { return wb.modified }

// Date1904 reports whether date serials count from 1904.
func (wb *Workbook) Date1904() bool { return wb.date1904 }

// Path returns the file the workbook was loaded from or last saved to.
func (wb *Workbook) Path() string {
	if wb.pkg == nil {
		return ""
	}
	return wb.pkg.Path()
}

// mutate runs fn as one edit. A failing fn must leave the model as it was.
func (wb *Workbook) mutate(fn func() error) error {
	prev := wb.state
	wb.state = StateMutating
	if err := fn(); err != nil {
		wb.state = prev
		return err
	}
	wb.modified = true
	wb.state = StateLoaded
	return nil
}

// foldName folds a sheet or defined name for case-insensitive comparison.
func foldName(s string) string {
	return cellref.FoldSheetName(s)
}

func (wb *Workbook) sheetIndex(name string) int {
	key := foldName(name)
	return slices.IndexFunc(wb.sheets, func(ws *Worksheet) bool { return foldName(ws.name) == key })
}

// Sheet returns the sheet with the given name, compared case-insensitively.
func (wb *Workbook) Sheet(name string) (*Worksheet, error) {
	i := wb.sheetIndex(name)
	if i < 0 {
		return nil, errs.New(errs.Reference, errs.ErrSheetNotFound, "%q", name)
	}
	return wb.sheets[i], nil
}

// SheetAt returns the sheet at a 0-based tab position.
func (wb *Workbook) SheetAt(index int) (*Worksheet, error) {
	if index < 0 || index >= len(wb.sheets) {
		return nil, errs.New(errs.Range, errs.ErrOutOfBounds, "sheet index %d of %d", index, len(wb.sheets))
	}
	return wb.sheets[index], nil
}

// SheetCount returns the number of sheets.
func (wb *Workbook) SheetCount() int { return len(wb.sheets) }

// SheetNames returns the sheet names in tab order.
func (wb *Workbook) SheetNames() []string {
	names := make([]string, len(wb.sheets))
	for i, ws := range wb.sheets {
		names[i] = ws.name
	}
	return names
}

// Sheets returns the sheets in tab order.
func (wb *Workbook) Sheets() []*Worksheet {
	return slices.Clone(wb.sheets)
}

func (wb *Workbook) checkNewSheetName(name string, self *Worksheet) error {
	if err := cellref.ValidateSheetName(name); err != nil {
		return err
	}
	if i := wb.sheetIndex(name); i >= 0 && wb.sheets[i] != self {
		return errs.New(errs.Range, errs.ErrDuplicateName, "sheet %q already exists", wb.sheets[i].name)
	}
	return nil
}

// AddSheet appends an empty worksheet and returns its sheet id.
func (wb *Workbook) AddSheet(name string) (int, error) {
	var id int
	err := wb.mutate(func() error {
		if err := wb.checkNewSheetName(name, nil); err != nil {
			return err
		}
		id = 1
		for _, ws := range wb.sheets {
			id = max(id, ws.sheetID+1)
		}
		wb.sheets = append(wb.sheets, newWorksheet(wb, name, id))
		return nil
	})
	if err != nil {
		return 0, err
	}
	wb.log.WithField("sheet", name).Debug("added sheet")
	return id, nil
}

// RemoveSheet deletes a sheet. References to it in formulas and defined
// names become #REF!, and names scoped to it are deleted.
func (wb *Workbook) RemoveSheet(name string) error {
	return wb.mutate(func() error {
		i := wb.sheetIndex(name)
		if i < 0 {
			return errs.New(errs.Reference, errs.ErrSheetNotFound, "%q", name)
		}
		ws := wb.sheets[i]
		if ws.visibility == Visible && len(wb.sheets) > 1 && wb.visibleCount() == 1 {
			return errs.New(errs.Range, errs.ErrLastVisibleSheet, "%q", ws.name)
		}

		edits, err := wb.rewriteFormulas(func(_ *Worksheet, text string) (string, error) {
			return formula.InvalidateSheet(text, ws.name)
		})
		if err != nil {
			return err
		}
		key := foldName(ws.name)
		names := slices.DeleteFunc(slices.Clone(wb.names), func(n *definedName) bool {
			return n.Scope != "" && foldName(n.Scope) == key
		})
		nameEdits := make([]string, len(names))
		for j, n := range names {
			if nameEdits[j], err = formula.InvalidateSheet("="+n.RefersTo, ws.name); err != nil {
				return errs.InCell(err, n.Name)
			}
		}

		edits.apply()
		if len(edits) > 0 {
			wb.stale = true
		}
		for j, n := range names {
			n.RefersTo = nameEdits[j][1:]
		}
		wb.names = names
		wb.sheets = slices.Delete(wb.sheets, i, i+1)
		wb.log.WithField("sheet", ws.name).Debug("removed sheet")
		return nil
	})
}

func (wb *Workbook) visibleCount() int {
	n := 0
	for _, ws := range wb.sheets {
		if ws.visibility == Visible {
			n++
		}
	}
	return n
}

// RenameSheet renames a sheet and rewrites every formula and defined
// name that refers to it.
func (wb *Workbook) RenameSheet(oldName, newName string) error {
	return wb.mutate(func() error {
		i := wb.sheetIndex(oldName)
		if i < 0 {
			return errs.New(errs.Reference, errs.ErrSheetNotFound, "%q", oldName)
		}
		ws := wb.sheets[i]
		if err := wb.checkNewSheetName(newName, ws); err != nil {
			return err
		}
		rename := func(text string) (string, error) {
			return formula.RenameSheet(text, ws.name, newName)
		}
		edits, err := wb.rewriteFormulas(func(_ *Worksheet, text string) (string, error) {
			return rename(text)
		})
		if err != nil {
			return err
		}
		nameEdits := make([]string, len(wb.names))
		for j, n := range wb.names {
			if nameEdits[j], err = rename("=" + n.RefersTo); err != nil {
				return errs.InCell(err, n.Name)
			}
		}

		edits.apply()
		key := foldName(ws.name)
		for j, n := range wb.names {
			n.RefersTo = nameEdits[j][1:]
			if n.Scope != "" && foldName(n.Scope) == key {
				n.Scope = newName
			}
		}
		wb.log.WithFields(logrus.Fields{"sheet": ws.name, "to": newName}).Debug("renamed sheet")
		ws.name = newName
		return nil
	})
}

// MoveSheet moves a sheet to a 0-based tab position.
func (wb *Workbook) MoveSheet(name string, index int) error {
	return wb.mutate(func() error {
		i := wb.sheetIndex(name)
		if i < 0 {
			return errs.New(errs.Reference, errs.ErrSheetNotFound, "%q", name)
		}
		if index < 0 || index >= len(wb.sheets) {
			return errs.New(errs.Range, errs.ErrOutOfBounds, "sheet index %d of %d", index, len(wb.sheets))
		}
		ws := wb.sheets[i]
		wb.sheets = slices.Insert(slices.Delete(wb.sheets, i, i+1), index, ws)
		return nil
	})
}

// formulaEdit is a pending replacement of one formula expression.
type formulaEdit struct {
	cell *Cell
	text string
}

type formulaEdits []formulaEdit

// apply stores the new expressions. Cached results are kept.
func (e formulaEdits) apply() {
	for _, edit := range e {
		edit.cell.Value.Formula = edit.text
	}
}

// rewriteFormulas computes fn for every formula of every worksheet
// without changing anything, so the caller can commit all edits at once.
// fn receives the sheet holding the formula.
func (wb *Workbook) rewriteFormulas(fn func(*Worksheet, string) (string, error)) (formulaEdits, error) {
	var edits formulaEdits
	for _, ws := range wb.sheets {
		for _, r := range ws.rows {
			for j := range r.cells {
				c := &r.cells[j]
				if c.Value.Kind != KindFormula {
					continue
				}
				text, err := fn(ws, "="+c.Value.Formula)
				if err != nil {
					return nil, errs.InCell(err, cellref.FormatAddress(ws.name, cellref.CellRange(c.Ref)))
				}
				if text = text[1:]; text != c.Value.Formula {
					edits = append(edits, formulaEdit{cell: c, text: text})
				}
			}
		}
	}
	return edits, nil
}

// SetCell sets the value at an address such as "B2" on the named sheet.
func (wb *Workbook) SetCell(sheet, addr string, v Value) error {
	ws, ref, err := wb.locate(sheet, addr)
	if err != nil {
		return err
	}
	return ws.SetCell(ref, v)
}

// Cell returns the cell at an address on the named sheet.
func (wb *Workbook) Cell(sheet, addr string) (Cell, error) {
	ws, ref, err := wb.locate(sheet, addr)
	if err != nil {
		return Cell{}, err
	}
	return ws.Cell(ref), nil
}

func (wb *Workbook) locate(sheet, addr string) (*Worksheet, cellref.Ref, error) {
	ws, err := wb.Sheet(sheet)
	if err != nil {
		return nil, cellref.Ref{}, err
	}
	ref, err := cellref.ParseRef(addr)
	if err != nil {
		return nil, cellref.Ref{}, err
	}
	return ws, ref, nil
}

// AddStyle registers a cell format and returns its index for SetStyle.
// Identical formats share one index.
func (wb *Workbook) AddStyle(s styles.Style) (int, error) {
	var index int
	err := wb.mutate(func() error {
		var err error
		index, err = wb.styles.Register(s)
		return err
	})
	return index, err
}

// Style returns the cell format at index.
func (wb *Workbook) Style(index int) (styles.Style, error) {
	return wb.styles.Resolve(index)
}

// SetCellStyle applies a cell format index to an address on the named
// sheet.
func (wb *Workbook) SetCellStyle(sheet, addr string, style int) error {
	ws, ref, err := wb.locate(sheet, addr)
	if err != nil {
		return err
	}
	return ws.SetStyle(ref, style)
}

// SharedStrings returns the number of entries in the shared-string table.
func (wb *Workbook) SharedStrings() int { return wb.sst.Len() }
