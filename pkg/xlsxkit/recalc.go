package xlsxkit

import (
	"github.com/sirupsen/logrus"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/formula"
)

// overlayKey addresses a computed result; sheet is folded.
type overlayKey struct {
	sheet string
	ref   cellref.Ref
}

// evalContext serves cell values to the evaluator. Results computed in
// the current pass shadow the stored cached values.
type evalContext struct {
	wb      *Workbook
	sheet   string
	overlay map[overlayKey]formula.Value
}

func (c *evalContext) resolve(sheet string) *Worksheet {
	if sheet == "" {
		sheet = c.sheet
	}
	if i := c.wb.sheetIndex(sheet); i >= 0 {
		return c.wb.sheets[i]
	}
	return nil
}

func (c *evalContext) Cell(sheet string, ref cellref.Ref) (formula.Value, bool) {
	ws := c.resolve(sheet)
	if ws == nil {
		return formula.Value{}, false
	}
	if v, ok := c.overlay[overlayKey{foldName(ws.name), ref}]; ok {
		return v, true
	}
	if cell := ws.lookup(ref); cell != nil {
		return cell.Value.scalar(), true
	}
	return formula.Value{}, true
}

func (c *evalContext) Used(sheet string) (cellref.Range, bool) {
	ws := c.resolve(sheet)
	if ws == nil {
		return cellref.Range{}, false
	}
	if dim, ok := ws.Dimension(); ok {
		return dim, true
	}
	return cellref.CellRange(cellref.Ref{Row: 1, Col: 1}), true
}

func (c *evalContext) Name(sheet, name string) (string, bool) {
	scope := c.sheet
	if sheet != "" {
		ws := c.resolve(sheet)
		if ws == nil {
			return "", false
		}
		scope = ws.name
	}
	dn, ok := c.wb.LookupName(scope, name)
	if !ok {
		return "", false
	}
	return dn.RefersTo, true
}

// pending is a formula cell taking part in a recalculation.
type pending struct {
	ws   *Worksheet
	cell *Cell
	node formula.Node
}

// calculable reports whether a formula is evaluated by Recalculate.
// Array and data-table formulas keep the results stored in the file.
func calculable(c *Cell) bool {
	if c.meta == nil {
		return true
	}
	t, _ := attrValue(c.meta.fAttr, "t")
	return t != "array" && t != "dataTable"
}

// Recalculate evaluates every formula in dependency order and stores the
// results as cached values. Nothing is stored unless every formula
// evaluates: a circular reference or an unknown function fails the whole
// call. Formulas outside the supported grammar keep their cached values.
func (wb *Workbook) Recalculate() error {
	return wb.mutate(func() error {
		graph := formula.NewGraph()
		cells := make(map[overlayKey]pending)
		skipped := 0
		for _, ws := range wb.sheets {
			for _, r := range ws.rows {
				for j := range r.cells {
					c := &r.cells[j]
					if c.Value.Kind != KindFormula || !calculable(c) {
						continue
					}
					node, err := formula.ParseFormula(c.Value.Formula)
					if err != nil {
						skipped++
						continue
					}
					key := formula.CellKey{Sheet: ws.name, Ref: c.Ref}
					graph.Add(key, wb.dependencies(ws.name, node))
					cells[overlayKey{foldName(ws.name), c.Ref}] = pending{ws: ws, cell: c, node: node}
				}
			}
		}

		order, err := graph.Order()
		if err != nil {
			return err
		}
		ctx := &evalContext{wb: wb, overlay: make(map[overlayKey]formula.Value, len(order))}
		for _, key := range order {
			k := overlayKey{foldName(key.Sheet), key.Ref}
			p := cells[k]
			ctx.sheet = p.ws.name
			v, err := formula.Eval(p.node, ctx)
			if err != nil {
				return errs.InCell(err, key.String())
			}
			if v.Kind == formula.KindEmpty {
				v = formula.NumberValue(0)
			}
			ctx.overlay[k] = v
		}

		for k, v := range ctx.overlay {
			result := fromScalar(v)
			cells[k].cell.Value.Result = &result
		}
		wb.stale = false
		wb.log.WithFields(logrus.Fields{
			"formulas": len(order),
			"skipped":  skipped,
		}).Debug("recalculated workbook")
		return nil
	})
}

// dependencies lists the references a formula reads, including those
// behind the defined names it uses.
func (wb *Workbook) dependencies(sheet string, node formula.Node) []formula.Reference {
	var deps []formula.Reference
	for _, r := range formula.References(node) {
		deps = append(deps, formula.Reference{Sheet: r.Sheet, Range: r.Range(), External: r.External})
	}
	formula.Walk(node, func(n formula.Node) {
		name, ok := n.(*formula.Name)
		if !ok {
			return
		}
		scope := sheet
		if name.Sheet != "" {
			scope = name.Sheet
		}
		dn, ok := wb.LookupName(scope, name.Name)
		if !ok {
			return
		}
		refs, err := formula.ExtractReferences("=" + dn.RefersTo)
		if err != nil {
			return
		}
		deps = append(deps, refs...)
	})
	return deps
}

// Evaluate computes expr as if it were entered on sheet, without storing
// anything. Cells read by expr contribute their cached values.
func (wb *Workbook) Evaluate(sheet, expr string) (Value, error) {
	ws, err := wb.Sheet(sheet)
	if err != nil {
		return Value{}, err
	}
	node, err := formula.ParseFormula(expr)
	if err != nil {
		return Value{}, err
	}
	v, err := formula.Eval(node, &evalContext{wb: wb, sheet: ws.name})
	if err != nil {
		return Value{}, err
	}
	return fromScalar(v), nil
}
