package xlsxkit

import (
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/formula"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/internal/xmlnode"
)

// DeleteRows removes count rows from start on and moves the rows below
// up. Cells, row heights, merges and hyperlinks move with their rows;
// formulas on every sheet and defined names are rewritten, and references
// to deleted rows become #REF!.
func (ws *Worksheet) DeleteRows(start, count int) error {
	return ws.deleteLines(cellref.RowAxis, start, count)
}

// DeleteColumns removes count columns from start on and moves the columns
// to the right left, as DeleteRows does for rows.
func (ws *Worksheet) DeleteColumns(start, count int) error {
	return ws.deleteLines(cellref.ColumnAxis, start, count)
}

func (ws *Worksheet) deleteLines(axis cellref.Axis, start, count int) error {
	return ws.wb.mutate(func() error {
		if err := ws.editable(); err != nil {
			return err
		}
		if start < 1 || count < 1 || start > axis.Limit()-count+1 {
			return errs.New(errs.Range, errs.ErrOutOfBounds, "%d %s from %d", count, axis, start)
		}
		wb := ws.wb
		edits, err := wb.rewriteFormulas(func(home *Worksheet, text string) (string, error) {
			return formula.DeleteLines(text, ws.name, home.name, axis, start, count)
		})
		if err != nil {
			return err
		}
		nameEdits := make([]string, len(wb.names))
		for j, n := range wb.names {
			if nameEdits[j], err = formula.DeleteLines("="+n.RefersTo, ws.name, "", axis, start, count); err != nil {
				return errs.InCell(err, n.Name)
			}
		}

		// Formula edits point into the cell slices, so they go in before
		// any cell moves.
		edits.apply()
		if len(edits) > 0 {
			wb.stale = true
		}
		for j, n := range wb.names {
			n.RefersTo = nameEdits[j][1:]
		}
		if axis == cellref.RowAxis {
			ws.removeRows(start, count)
		} else {
			ws.removeColumns(start, count)
		}
		ws.collapseMerges(axis, start, count)
		ws.collapseHyperlinks(axis, start, count)
		wb.log.WithFields(logrus.Fields{"sheet": ws.name, axis.String(): start, "count": count}).Debug("deleted lines")
		return nil
	})
}

func (ws *Worksheet) removeRows(start, count int) {
	end := start + count - 1
	ws.rows = slices.DeleteFunc(ws.rows, func(r *row) bool { return r.index >= start && r.index <= end })
	for _, r := range ws.rows {
		if r.index > end {
			r.index -= count
		}
		for j := range r.cells {
			r.cells[j].Ref.Row = r.index
			collapseArrayRef(&r.cells[j], cellref.RowAxis, start, count)
		}
	}
}

func (ws *Worksheet) removeColumns(start, count int) {
	end := start + count - 1
	for _, r := range ws.rows {
		r.cells = slices.DeleteFunc(r.cells, func(c Cell) bool { return c.Ref.Col >= start && c.Ref.Col <= end })
		for j := range r.cells {
			if r.cells[j].Ref.Col > end {
				r.cells[j].Ref.Col -= count
			}
			collapseArrayRef(&r.cells[j], cellref.ColumnAxis, start, count)
		}
	}
	ws.rows = slices.DeleteFunc(ws.rows, func(r *row) bool { return len(r.cells) == 0 && len(r.attr) == 0 })

	var cols []colSpan
	for _, s := range ws.cols {
		if lo, hi, ok := cellref.CollapseSpan(s.min, s.max, start, count); ok {
			s.min, s.max = lo, hi
			cols = append(cols, s)
		}
	}
	ws.cols = cols
}

// collapseArrayRef keeps the ref attribute of an array formula in step
// with a deletion. The master cell survives, so the block never vanishes.
func collapseArrayRef(c *Cell, axis cellref.Axis, start, count int) {
	if c.meta == nil {
		return
	}
	v, ok := attrValue(c.meta.fAttr, "ref")
	if !ok {
		return
	}
	r, err := cellref.ParseRange(v)
	if err != nil {
		return
	}
	if r, ok = r.Collapse(axis, start, count); !ok {
		return
	}
	meta := *c.meta
	meta.fAttr = setAttr(slices.Clone(meta.fAttr), "ref", r.String())
	c.meta = &meta
}

// collapseMerges drops merges whose cells are all deleted or that shrink
// to a single cell, and moves or shrinks the rest.
func (ws *Worksheet) collapseMerges(axis cellref.Axis, start, count int) {
	var merges []cellref.Range
	for _, m := range ws.merges {
		if m, ok := m.Collapse(axis, start, count); ok && !m.IsCell() {
			merges = append(merges, m)
		}
	}
	ws.merges = merges
}

// collapseHyperlinks moves hyperlink anchors and drops links whose cells
// are all deleted. An emptied hyperlinks element is dropped with them.
func (ws *Worksheet) collapseHyperlinks(axis cellref.Axis, start, count int) {
	ws.preserved = slices.DeleteFunc(ws.preserved, func(e element) bool {
		if e.node == nil || e.node.Local() != "hyperlinks" {
			return false
		}
		e.node.Children = slices.DeleteFunc(e.node.Children, func(h *xmlnode.Node) bool {
			if h.Local() != "hyperlink" {
				return false
			}
			rng, err := cellref.ParseRange(h.Value("ref"))
			if err != nil {
				return false
			}
			rng, ok := rng.Collapse(axis, start, count)
			if !ok {
				return true
			}
			h.Set("ref", rng.String())
			return false
		})
		return len(e.node.Children) == 0
	})
}
