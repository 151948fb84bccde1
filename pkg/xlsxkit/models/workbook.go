package models

// WorkbookData represents workbook-level container with per-sheet data.
type WorkbookData struct {
	// BookName is the workbook file name (no path).
	BookName string `json:"book_name"`
	// SheetOrder lists the sheet names in tab order.
	SheetOrder []string `json:"sheet_order"`
	// Sheets maps sheet name to SheetData.
	Sheets map[string]SheetData `json:"sheets"`
	// Names lists the defined names.
	Names []DefinedName `json:"names,omitempty"`
}

// DefinedName is a named reference of the workbook.
type DefinedName struct {
	Name string `json:"name"`
	// Scope is the sheet the name is local to; empty for workbook scope.
	Scope    string `json:"scope,omitempty"`
	RefersTo string `json:"refers_to"`
	Hidden   bool   `json:"hidden,omitempty"`
}
