package models

// SheetData represents structured data for a single sheet.
type SheetData struct {
	// Kind is the sheet kind when it is not a worksheet (chartsheet,
	// dialogsheet, macrosheet).
	Kind string `json:"kind,omitempty"`
	// Hidden is "hidden" or "veryHidden" for sheets that are not visible.
	Hidden string `json:"hidden,omitempty"`
	// Dimension is the used range, e.g. "A1:D10".
	Dimension string `json:"dimension,omitempty"`
	// Rows contains extracted rows with cell values and links.
	Rows []CellRow `json:"rows,omitempty"`
	// Merges contains the merged ranges.
	Merges []string `json:"merges,omitempty"`
	// TableCandidates contains cell ranges likely representing tables.
	TableCandidates []string `json:"table_candidates,omitempty"`
	// PrintAreas contains user-defined print areas.
	PrintAreas []PrintArea `json:"print_areas,omitempty"`
}
