package xlsxkit

import (
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
)

// TableDetectionParams holds parameters for table detection.
type TableDetectionParams struct {
	// DensityMin is the minimum share of non-empty cells in a candidate's
	// bounding box.
	DensityMin float64
	// CoverageMin is the minimum share of the box's columns filled in its
	// first row, which is taken as the header.
	CoverageMin      float64
	MinNonemptyCells int
}

// DefaultTableParams returns default table detection parameters.
func DefaultTableParams() TableDetectionParams {
	return TableDetectionParams{
		DensityMin:       0.04,
		CoverageMin:      0.2,
		MinNonemptyCells: 3,
	}
}

// band is a run of consecutive non-empty rows.
type band struct {
	rows   []*row
	bounds cellref.Range
	filled int
}

// DetectTables returns the table-like regions of the sheet. Blocks of
// rows separated by at least one empty row are considered separately;
// a block qualifies when it has enough non-empty cells, is dense enough
// and its first row covers enough of its columns.
func (ws *Worksheet) DetectTables(params TableDetectionParams) []cellref.Range {
	var tables []cellref.Range
	for _, b := range ws.bands() {
		if b.filled < params.MinNonemptyCells {
			continue
		}
		total := b.bounds.Rows() * b.bounds.Cols()
		if float64(b.filled)/float64(total) < params.DensityMin {
			continue
		}
		header := 0
		for _, c := range b.rows[0].cells {
			if !c.Value.IsEmpty() {
				header++
			}
		}
		if float64(header)/float64(b.bounds.Cols()) < params.CoverageMin {
			continue
		}
		tables = append(tables, b.bounds)
	}
	return tables
}

// bands splits the populated rows of the sheet into blocks.
func (ws *Worksheet) bands() []band {
	var out []band
	var cur *band
	last := 0
	for _, r := range ws.rows {
		minCol, maxCol, filled := 0, 0, 0
		for _, c := range r.cells {
			if c.Value.IsEmpty() {
				continue
			}
			if filled == 0 {
				minCol = c.Ref.Col
			}
			maxCol = c.Ref.Col
			filled++
		}
		if filled == 0 {
			continue
		}
		rowRange := cellref.Range{
			Start: cellref.Ref{Row: r.index, Col: minCol},
			End:   cellref.Ref{Row: r.index, Col: maxCol},
		}
		if cur == nil || r.index > last+1 {
			out = append(out, band{bounds: rowRange})
			cur = &out[len(out)-1]
		} else {
			cur.bounds = cur.bounds.Union(rowRange)
		}
		cur.rows = append(cur.rows, r)
		cur.filled += filled
		last = r.index
	}
	return out
}
