package cellref

import (
	"errors"
	"testing"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		input   string
		want    Ref
		wantErr error
	}{
		{"A1", Ref{1, 1}, nil},
		{"$B$2", Ref{2, 2}, nil},
		{"aa100", Ref{100, 27}, nil},
		{"XFD1048576", Ref{MaxRows, MaxCols}, nil},
		{"XFE1", Ref{}, errs.ErrOutOfBounds},
		{"A1048577", Ref{}, errs.ErrOutOfBounds},
		{"A0", Ref{}, errs.ErrOutOfBounds},
		{"1A", Ref{}, errs.ErrInvalidAddress},
		{"", Ref{}, errs.ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRef(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseRef(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				if !errs.IsKind(err, errs.Range) {
					t.Errorf("ParseRef(%q) error kind = %v, want range", tt.input, errs.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseRef(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestColumnName(t *testing.T) {
	tests := []struct {
		col  int
		want string
	}{
		{1, "A"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{702, "ZZ"},
		{703, "AAA"},
		{MaxCols, "XFD"},
	}
	for _, tt := range tests {
		if got := ColumnName(tt.col); got != tt.want {
			t.Errorf("ColumnName(%d) = %q, want %q", tt.col, got, tt.want)
		}
		back, err := ColumnNumber(tt.want)
		if err != nil || back != tt.col {
			t.Errorf("ColumnNumber(%q) = %d, %v, want %d", tt.want, back, err, tt.col)
		}
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input   string
		sheet   string
		rng     string
		wantErr bool
	}{
		{"Sheet1!A1:Z50", "Sheet1", "A1:Z50", false},
		{"'My Sheet'!C3:D4", "My Sheet", "C3:D4", false},
		{"'It''s'!A1", "It's", "A1", false},
		{"Sheet1!$A$1:$B$2", "Sheet1", "A1:B2", false},
		{"Sheet1!B2:A1", "Sheet1", "A1:B2", false},
		{"B7", "", "B7", false},
		{"'Open!A1", "", "", true},
		{"Sheet1!", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			sheet, r, err := ParseAddress(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.input, err)
			}
			if sheet != tt.sheet || r.String() != tt.rng {
				t.Errorf("ParseAddress(%q) = (%q, %s), want (%q, %s)", tt.input, sheet, r, tt.sheet, tt.rng)
			}
		})
	}
}

func TestRangeOverlaps(t *testing.T) {
	mustRange := func(s string) Range {
		r, err := ParseRange(s)
		if err != nil {
			t.Fatalf("ParseRange(%q): %v", s, err)
		}
		return r
	}
	tests := []struct {
		a, b string
		want bool
	}{
		{"A1:B2", "B2:C3", true},
		{"A1:B2", "C1:D2", false},
		{"A1:A10", "A5", true},
		{"A1:C3", "B2", true},
		{"A1:B2", "A3:B4", false},
	}
	for _, tt := range tests {
		if got := mustRange(tt.a).Overlaps(mustRange(tt.b)); got != tt.want {
			t.Errorf("%s overlaps %s = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if got := mustRange(tt.b).Overlaps(mustRange(tt.a)); got != tt.want {
			t.Errorf("%s overlaps %s = %v, want %v", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestValidateSheetName(t *testing.T) {
	valid := []string{"Sheet1", "My Sheet", "Données", "a", "1234567890123456789012345678901"}
	for _, name := range valid {
		if err := ValidateSheetName(name); err != nil {
			t.Errorf("ValidateSheetName(%q) = %v, want nil", name, err)
		}
	}
	invalid := []string{"", "a:b", `a\b`, "a/b", "a?", "a*", "[a]", "'quoted", "12345678901234567890123456789012",
		"tab\tname", "line\nbreak", "bell\x07", "del\x7f", "bad\xffutf8"}
	for _, name := range invalid {
		err := ValidateSheetName(name)
		if !errors.Is(err, errs.ErrInvalidName) {
			t.Errorf("ValidateSheetName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestQuoteSheetName(t *testing.T) {
	tests := map[string]string{
		"Sheet1":   "Sheet1",
		"My Sheet": "'My Sheet'",
		"It's":     "'It''s'",
		"2020":     "'2020'",
		"A1":       "'A1'",
		"Data.v2":  "Data.v2",
	}
	for in, want := range tests {
		if got := QuoteSheetName(in); got != want {
			t.Errorf("QuoteSheetName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatAddress(t *testing.T) {
	r := NewRange(Ref{Row: 50, Col: 26}, Ref{Row: 1, Col: 1})
	if got := FormatAddress("Sheet1", r); got != "Sheet1!A1:Z50" {
		t.Errorf("FormatAddress = %q, want %q", got, "Sheet1!A1:Z50")
	}
	if got := FormatAddress("My Sheet", CellRange(Ref{Row: 5, Col: 3})); got != "'My Sheet'!C5" {
		t.Errorf("FormatAddress single cell = %q", got)
	}
}

func TestSameSheet(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Sheet1", "sheet1", true},
		{"Straße", "STRASSE", true},
		{"Données", "DONNÉES", true},
		{"Sheet1", "Sheet2", false},
		{"Straße", "Strase", false},
	}
	for _, tt := range tests {
		if got := SameSheet(tt.a, tt.b); got != tt.want {
			t.Errorf("SameSheet(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCollapseSpan(t *testing.T) {
	tests := []struct {
		name         string
		lo, hi       int
		start, count int
		wantLo       int
		wantHi       int
		wantOK       bool
	}{
		{"before", 1, 3, 5, 2, 1, 3, true},
		{"after", 8, 9, 5, 2, 6, 7, true},
		{"inside", 5, 6, 5, 2, 0, 0, false},
		{"single deleted", 4, 4, 4, 1, 0, 0, false},
		{"tail deleted", 2, 5, 4, 3, 2, 3, true},
		{"head deleted", 4, 9, 3, 3, 3, 6, true},
		{"spans deletion", 1, 10, 4, 2, 1, 8, true},
		{"adjacent after", 6, 6, 4, 2, 4, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, ok := CollapseSpan(tt.lo, tt.hi, tt.start, tt.count)
			if ok != tt.wantOK || ok && (lo != tt.wantLo || hi != tt.wantHi) {
				t.Errorf("CollapseSpan(%d, %d, %d, %d) = %d, %d, %v, want %d, %d, %v",
					tt.lo, tt.hi, tt.start, tt.count, lo, hi, ok, tt.wantLo, tt.wantHi, tt.wantOK)
			}
		})
	}
}

func TestRangeCollapse(t *testing.T) {
	r := NewRange(Ref{Row: 2, Col: 2}, Ref{Row: 6, Col: 5})
	got, ok := r.Collapse(ColumnAxis, 3, 2)
	if want := NewRange(Ref{Row: 2, Col: 2}, Ref{Row: 6, Col: 3}); !ok || got != want {
		t.Errorf("column collapse = %s, %v, want %s", got, ok, want)
	}
	got, ok = r.Collapse(RowAxis, 1, 1)
	if want := NewRange(Ref{Row: 1, Col: 2}, Ref{Row: 5, Col: 5}); !ok || got != want {
		t.Errorf("row collapse = %s, %v, want %s", got, ok, want)
	}
	if _, ok := r.Collapse(RowAxis, 2, 5); ok {
		t.Error("a range whose rows are all deleted survived")
	}
}
