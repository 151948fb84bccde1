package xlsxkit

import (
	"strconv"
	"strings"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/formula"
)

// PrintAreas returns the print areas of every sheet that has them, keyed
// by sheet name.
func (wb *Workbook) PrintAreas() map[string][]cellref.Range {
	result := make(map[string][]cellref.Range)
	for _, n := range wb.names {
		if !strings.EqualFold(n.Name, NamePrintArea) || n.Scope == "" {
			continue
		}
		if areas := parsePrintAreaReference(n.RefersTo, n.Scope); len(areas) > 0 {
			result[n.Scope] = append(result[n.Scope], areas...)
		}
	}
	return result
}

// PrintArea returns the print areas of one sheet.
func (wb *Workbook) PrintArea(sheet string) ([]cellref.Range, error) {
	ws, err := wb.Sheet(sheet)
	if err != nil {
		return nil, err
	}
	if i := wb.findName(NamePrintArea, ws.name); i >= 0 {
		return parsePrintAreaReference(wb.names[i].RefersTo, ws.name), nil
	}
	return nil, nil
}

// parsePrintAreaReference lists the areas of a print-area definition such
// as 'My Sheet'!$A$1:$D$10,'My Sheet'!$F$1:$G$4. Areas on other sheets
// and #REF! entries are skipped.
func parsePrintAreaReference(ref, sheet string) []cellref.Range {
	refs, err := formula.ExtractReferences("=" + ref)
	if err != nil {
		return nil
	}
	var areas []cellref.Range
	for _, r := range refs {
		if r.External || (r.Sheet != "" && foldName(r.Sheet) != foldName(sheet)) {
			continue
		}
		areas = append(areas, r.Range)
	}
	return areas
}

// SetPrintArea replaces the print areas of a sheet. No areas clears them.
func (wb *Workbook) SetPrintArea(sheet string, areas ...cellref.Range) error {
	ws, err := wb.Sheet(sheet)
	if err != nil {
		return err
	}
	for _, a := range areas {
		if err := checkRange(a); err != nil {
			return err
		}
	}
	return wb.mutate(func() error {
		i := wb.findName(NamePrintArea, ws.name)
		if len(areas) == 0 {
			if i >= 0 {
				wb.names = append(wb.names[:i], wb.names[i+1:]...)
			}
			return nil
		}
		parts := make([]string, len(areas))
		for j, a := range areas {
			parts[j] = cellref.QuoteSheetName(ws.name) + "!" + absoluteRange(a)
		}
		refersTo := strings.Join(parts, ",")
		if i >= 0 {
			wb.names[i].RefersTo = refersTo
			return nil
		}
		if ws.kind != SheetWorksheet {
			return errs.New(errs.Range, errs.ErrNotWorksheet, "%q is a %s", ws.name, ws.kind)
		}
		wb.names = append(wb.names, &definedName{DefinedName: DefinedName{
			Name:     NamePrintArea,
			Scope:    ws.name,
			RefersTo: refersTo,
		}})
		return nil
	})
}

// absoluteRange renders r as $A$1:$D$10, or $A$1 for a single cell.
func absoluteRange(r cellref.Range) string {
	abs := func(ref cellref.Ref) string {
		return "$" + cellref.ColumnName(ref.Col) + "$" + strconv.Itoa(ref.Row)
	}
	if r.IsCell() {
		return abs(r.Start)
	}
	return abs(r.Start) + ":" + abs(r.End)
}
