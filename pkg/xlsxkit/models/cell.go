// Package models defines the JSON views a workbook is exported to.
package models

// CellRow represents a single row of cells with optional hyperlinks.
type CellRow struct {
	// R is the row index (1-based).
	R int `json:"r"`
	// C maps column index (string) to cell value: int64 or float64 for
	// numbers, bool, or string for text, errors and dates.
	C map[string]interface{} `json:"c"`
	// Links maps column index to hyperlink target (optional).
	Links map[string]string `json:"links,omitempty"`
}
