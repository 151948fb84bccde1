package xlsxkit

import (
	"math"
	"path/filepath"
	"strconv"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/models"
)

// ExportMode selects how much of a workbook Export includes.
type ExportMode string

const (
	// ExportLight includes cells and table candidates only.
	ExportLight ExportMode = "light"
	// ExportStandard adds merges, print areas and defined names.
	ExportStandard ExportMode = "standard"
	// ExportVerbose adds cell hyperlinks.
	ExportVerbose ExportMode = "verbose"
)

// ExportOptions configures Export.
type ExportOptions struct {
	Mode ExportMode
	// IncludeLinks specifies whether to include cell hyperlinks.
	// If nil, defaults to true for verbose mode, false otherwise.
	IncludeLinks *bool
	// IncludePrintAreas specifies whether to include print areas.
	// If nil, defaults to false for light mode, true otherwise.
	IncludePrintAreas *bool
	// Tables are the table detection parameters.
	Tables TableDetectionParams
}

// DefaultExportOptions returns standard-mode options.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{Mode: ExportStandard, Tables: DefaultTableParams()}
}

// ShouldIncludeLinks returns whether to include cell hyperlinks.
func (o ExportOptions) ShouldIncludeLinks() bool {
	if o.IncludeLinks != nil {
		return *o.IncludeLinks
	}
	return o.Mode == ExportVerbose
}

// ShouldIncludePrintAreas returns whether to include print areas.
func (o ExportOptions) ShouldIncludePrintAreas() bool {
	if o.IncludePrintAreas != nil {
		return *o.IncludePrintAreas
	}
	return o.Mode != ExportLight
}

// Export builds the JSON view of the workbook.
func (wb *Workbook) Export(opts ExportOptions) *models.WorkbookData {
	bookName := ""
	if p := wb.Path(); p != "" {
		bookName = filepath.Base(p)
	}
	data := &models.WorkbookData{
		BookName: bookName,
		Sheets:   make(map[string]models.SheetData, len(wb.sheets)),
	}

	var printAreas map[string][]cellref.Range
	if opts.ShouldIncludePrintAreas() {
		printAreas = wb.PrintAreas()
	}
	for _, ws := range wb.sheets {
		data.SheetOrder = append(data.SheetOrder, ws.name)
		sheet := models.SheetData{Rows: wb.exportRows(ws, opts.ShouldIncludeLinks(), nil)}
		if ws.kind != SheetWorksheet {
			sheet.Kind = ws.kind.String()
		}
		if ws.visibility != Visible {
			sheet.Hidden = ws.visibility.String()
		}
		if dim, ok := ws.Dimension(); ok {
			sheet.Dimension = dim.String()
		}
		for _, t := range ws.DetectTables(opts.Tables) {
			sheet.TableCandidates = append(sheet.TableCandidates, t.String())
		}
		if opts.Mode != ExportLight {
			for _, m := range ws.merges {
				sheet.Merges = append(sheet.Merges, m.String())
			}
		}
		for _, a := range printAreas[ws.name] {
			sheet.PrintAreas = append(sheet.PrintAreas, toPrintArea(a))
		}
		data.Sheets[ws.name] = sheet
	}

	if opts.Mode != ExportLight {
		for _, n := range wb.names {
			data.Names = append(data.Names, models.DefinedName{
				Name:     n.Name,
				Scope:    n.Scope,
				RefersTo: n.RefersTo,
				Hidden:   n.Hidden,
			})
		}
	}
	return data
}

// PrintAreaViews returns one view per print area, restricted to the cells,
// merges and table candidates inside it.
func (wb *Workbook) PrintAreaViews(opts ExportOptions) []models.PrintAreaView {
	bookName := ""
	if p := wb.Path(); p != "" {
		bookName = filepath.Base(p)
	}
	areas := wb.PrintAreas()
	var views []models.PrintAreaView
	for _, ws := range wb.sheets {
		for _, a := range areas[ws.name] {
			view := models.PrintAreaView{
				BookName:  bookName,
				SheetName: ws.name,
				Area:      toPrintArea(a),
				Rows:      wb.exportRows(ws, opts.ShouldIncludeLinks(), &a),
			}
			for _, m := range ws.merges {
				if m.Overlaps(a) {
					view.Merges = append(view.Merges, m.String())
				}
			}
			for _, t := range ws.DetectTables(opts.Tables) {
				if t.Overlaps(a) {
					view.TableCandidates = append(view.TableCandidates, t.String())
				}
			}
			views = append(views, view)
		}
	}
	return views
}

// exportRows extracts the non-empty rows of a sheet, optionally limited to
// an area.
func (wb *Workbook) exportRows(ws *Worksheet, includeLinks bool, within *cellref.Range) []models.CellRow {
	var links map[cellref.Ref]string
	if includeLinks {
		links = ws.Hyperlinks()
	}
	var result []models.CellRow
	for _, r := range ws.rows {
		cellMap := make(map[string]interface{})
		linkMap := make(map[string]string)
		for _, c := range r.cells {
			if within != nil && !within.Contains(c.Ref) {
				continue
			}
			value := wb.exportValue(c)
			if value == nil {
				continue
			}
			colStr := strconv.Itoa(c.Ref.Col)
			cellMap[colStr] = value
			if target, ok := links[c.Ref]; ok {
				linkMap[colStr] = target
			}
		}
		if len(cellMap) == 0 {
			continue
		}
		cellRow := models.CellRow{R: r.index, C: cellMap}
		if len(linkMap) > 0 {
			cellRow.Links = linkMap
		}
		result = append(result, cellRow)
	}
	return result
}

// exportValue returns int64 for integral numbers, float64 for other
// numbers, bool, or the display string. Empty cells yield nil.
func (wb *Workbook) exportValue(c Cell) interface{} {
	v := c.Value
	if v.Kind == KindFormula {
		if v.Result == nil {
			return nil
		}
		v = *v.Result
	}
	switch v.Kind {
	case KindEmpty:
		return nil
	case KindBool:
		return v.Bool
	case KindNumber:
		if wb.styles.IsDateFormatID(wb.styles.NumFmtOf(c.Style)) {
			return wb.DisplayValue(c)
		}
		if v.Number == math.Trunc(v.Number) && math.Abs(v.Number) < 1<<53 {
			return int64(v.Number)
		}
		return v.Number
	}
	return v.String()
}

func toPrintArea(r cellref.Range) models.PrintArea {
	return models.PrintArea{R1: r.Start.Row, C1: r.Start.Col, R2: r.End.Row, C2: r.End.Col}
}
