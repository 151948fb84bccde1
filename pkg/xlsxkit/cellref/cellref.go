// Package cellref parses and formats A1-style cell addresses, ranges and
// sheet-qualified references.
package cellref

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"golang.org/x/text/cases"
)

// Format limits of the spreadsheet grid.
const (
	MaxRows = 1048576
	MaxCols = 16384
	// MaxSheetNameLength is the longest permitted worksheet name.
	MaxSheetNameLength = 31
)

// cellRefRe matches a cell reference like A1, $B$2, AA100
var cellRefRe = regexp.MustCompile(`^\$?([A-Za-z]{1,3})\$?([0-9]+)$`)

// Ref is a 1-based cell coordinate.
type Ref struct {
	Row int
	Col int
}

// Valid reports whether r lies inside the grid.
func (r Ref) Valid() bool {
	return r.Row >= 1 && r.Row <= MaxRows && r.Col >= 1 && r.Col <= MaxCols
}

// String returns the A1 form of r.
func (r Ref) String() string {
	return ColumnName(r.Col) + strconv.Itoa(r.Row)
}

// Less orders references by row, then column.
func (r Ref) Less(o Ref) bool {
	if r.Row != o.Row {
		return r.Row < o.Row
	}
	return r.Col < o.Col
}

// ParseRef parses "A1" or "$A$1".
func ParseRef(s string) (Ref, error) {
	m := cellRefRe.FindStringSubmatch(s)
	if m == nil {
		return Ref{}, errs.New(errs.Range, errs.ErrInvalidAddress, "%q", s)
	}
	col, err := ColumnNumber(m[1])
	if err != nil {
		return Ref{}, err
	}
	row, err := strconv.Atoi(m[2])
	if err != nil || row < 1 || row > MaxRows {
		return Ref{}, errs.New(errs.Range, errs.ErrOutOfBounds, "row of %q", s)
	}
	return Ref{Row: row, Col: col}, nil
}

// Range is a rectangular block of cells with Start at the top-left corner.
type Range struct {
	Start Ref
	End   Ref
}

// NewRange builds a normalized range from two opposite corners.
func NewRange(a, b Ref) Range {
	if a.Row > b.Row {
		a.Row, b.Row = b.Row, a.Row
	}
	if a.Col > b.Col {
		a.Col, b.Col = b.Col, a.Col
	}
	return Range{Start: a, End: b}
}

// CellRange returns the one-cell range at r.
func CellRange(r Ref) Range {
	return Range{Start: r, End: r}
}

// IsCell reports whether the range covers exactly one cell.
func (r Range) IsCell() bool {
	return r.Start == r.End
}

// Rows is the number of rows covered.
func (r Range) Rows() int {
	return r.End.Row - r.Start.Row + 1
}

// Cols is the number of columns covered.
func (r Range) Cols() int {
	return r.End.Col - r.Start.Col + 1
}

// Contains reports whether ref lies inside r.
func (r Range) Contains(ref Ref) bool {
	return ref.Row >= r.Start.Row && ref.Row <= r.End.Row &&
		ref.Col >= r.Start.Col && ref.Col <= r.End.Col
}

// Overlaps reports whether r and o share at least one cell.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Row <= o.End.Row && o.Start.Row <= r.End.Row &&
		r.Start.Col <= o.End.Col && o.Start.Col <= r.End.Col
}

// Union returns the smallest range covering r and o.
func (r Range) Union(o Range) Range {
	return Range{
		Start: Ref{Row: min(r.Start.Row, o.Start.Row), Col: min(r.Start.Col, o.Start.Col)},
		End:   Ref{Row: max(r.End.Row, o.End.Row), Col: max(r.End.Col, o.End.Col)},
	}
}

// String returns "A1:B3", or "A1" for a single cell.
func (r Range) String() string {
	if r.IsCell() {
		return r.Start.String()
	}
	return r.Start.String() + ":" + r.End.String()
}

// Axis is the direction of a row or column deletion.
type Axis int

const (
	RowAxis Axis = iota
	ColumnAxis
)

func (a Axis) String() string {
	if a == ColumnAxis {
		return "columns"
	}
	return "rows"
}

// Limit is the number of lines along the axis.
func (a Axis) Limit() int {
	if a == ColumnAxis {
		return MaxCols
	}
	return MaxRows
}

// CollapseSpan adjusts the span lo..hi for the deletion of count lines
// from start on: spans behind the deletion move back and spans that lose
// some lines shrink. It reports false when every line of the span is
// deleted.
func CollapseSpan(lo, hi, start, count int) (int, int, bool) {
	end := start + count - 1
	switch {
	case hi < start:
		return lo, hi, true
	case lo > end:
		return lo - count, hi - count, true
	case lo >= start && hi <= end:
		return 0, 0, false
	}
	if lo > start {
		lo = start
	}
	if hi > end {
		hi -= count
	} else {
		hi = start - 1
	}
	return lo, hi, true
}

// Collapse applies CollapseSpan to the rows or columns of r.
func (r Range) Collapse(axis Axis, start, count int) (Range, bool) {
	var ok bool
	if axis == ColumnAxis {
		r.Start.Col, r.End.Col, ok = CollapseSpan(r.Start.Col, r.End.Col, start, count)
	} else {
		r.Start.Row, r.End.Row, ok = CollapseSpan(r.Start.Row, r.End.Row, start, count)
	}
	return r, ok
}

// ParseRange parses "A1:B3" or a single "A1". Reversed corners are
// normalized.
func ParseRange(s string) (Range, error) {
	from, to, hasColon := strings.Cut(s, ":")
	if !hasColon {
		to = from
	}
	a, err := ParseRef(from)
	if err != nil {
		return Range{}, err
	}
	b, err := ParseRef(to)
	if err != nil {
		return Range{}, err
	}
	return NewRange(a, b), nil
}

// ColumnName converts a 1-based column number to letters.
func ColumnName(col int) string {
	var buf [3]byte
	i := len(buf)
	for col > 0 && i > 0 {
		col--
		i--
		buf[i] = byte('A' + col%26)
		col /= 26
	}
	return string(buf[i:])
}

// ColumnNumber converts column letters (case-insensitive) to a 1-based
// column number.
func ColumnNumber(letters string) (int, error) {
	if letters == "" || len(letters) > 3 {
		return 0, errs.New(errs.Range, errs.ErrInvalidAddress, "column %q", letters)
	}
	col := 0
	for _, c := range letters {
		c = unicode.ToUpper(c)
		if c < 'A' || c > 'Z' {
			return 0, errs.New(errs.Range, errs.ErrInvalidAddress, "column %q", letters)
		}
		col = col*26 + int(c-'A'+1)
	}
	if col > MaxCols {
		return 0, errs.New(errs.Range, errs.ErrOutOfBounds, "column %q", letters)
	}
	return col, nil
}

// ValidateSheetName checks the naming rules shared by every spreadsheet
// application: 1–31 characters, none of : \ / ? * [ ] or control
// characters, and no leading or trailing apostrophe.
func ValidateSheetName(name string) error {
	if !utf8.ValidString(name) {
		return errs.New(errs.Range, errs.ErrInvalidName, "sheet name %q is not valid UTF-8", name)
	}
	if i := strings.IndexFunc(name, unicode.IsControl); i >= 0 {
		return errs.New(errs.Range, errs.ErrInvalidName, "sheet name %q contains the control character %U", name, []rune(name[i:])[0])
	}
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxSheetNameLength {
		return errs.New(errs.Range, errs.ErrInvalidName, "sheet name %q must be 1-%d characters", name, MaxSheetNameLength)
	}
	if i := strings.IndexAny(name, `:\/?*[]`); i >= 0 {
		return errs.New(errs.Range, errs.ErrInvalidName, "sheet name %q contains %q", name, name[i])
	}
	if strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return errs.New(errs.Range, errs.ErrInvalidName, "sheet name %q starts or ends with an apostrophe", name)
	}
	return nil
}

// FoldSheetName folds a sheet or defined name for case-insensitive
// comparison, using full Unicode case folding.
func FoldSheetName(name string) string {
	return cases.Fold().String(name)
}

// SameSheet reports whether two sheet names refer to the same sheet.
func SameSheet(a, b string) bool {
	return a == b || FoldSheetName(a) == FoldSheetName(b)
}

// NeedsQuote reports whether a sheet name must be quoted inside a formula.
func NeedsQuote(name string) bool {
	if name == "" {
		return true
	}
	if r, _ := utf8.DecodeRuneInString(name); unicode.IsDigit(r) {
		return true
	}
	for _, r := range name {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.') {
			return true
		}
	}
	if cellRefRe.MatchString(name) {
		return true
	}
	u := strings.ToUpper(name)
	return u == "TRUE" || u == "FALSE"
}

// QuoteSheetName returns name in the form used before '!' in formulas.
func QuoteSheetName(name string) string {
	if !NeedsQuote(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// SplitSheet splits "Sheet1!A1" or "'My Sheet'!A1:B2" into the unquoted
// sheet name and the remainder. An address without '!' yields an empty
// sheet.
func SplitSheet(addr string) (sheet, rest string, err error) {
	if strings.HasPrefix(addr, "'") {
		var b strings.Builder
		for i := 1; i < len(addr); i++ {
			if addr[i] != '\'' {
				b.WriteByte(addr[i])
				continue
			}
			if i+1 < len(addr) && addr[i+1] == '\'' {
				b.WriteByte('\'')
				i++
				continue
			}
			if i+1 >= len(addr) || addr[i+1] != '!' {
				return "", "", errs.New(errs.Range, errs.ErrInvalidAddress, "%q", addr)
			}
			return b.String(), addr[i+2:], nil
		}
		return "", "", errs.New(errs.Range, errs.ErrInvalidAddress, "unterminated sheet name in %q", addr)
	}
	if i := strings.LastIndexByte(addr, '!'); i >= 0 {
		return addr[:i], addr[i+1:], nil
	}
	return "", addr, nil
}

// ParseAddress parses an optionally sheet-qualified range such as
// "Sheet1!A1:Z50", "'My Sheet'!C3" or "B2".
func ParseAddress(addr string) (sheet string, r Range, err error) {
	sheet, rest, err := SplitSheet(addr)
	if err != nil {
		return "", Range{}, err
	}
	r, err = ParseRange(rest)
	if err != nil {
		return "", Range{}, err
	}
	return sheet, r, nil
}

// FormatAddress builds "Sheet1!A1:Z50", quoting the sheet when needed.
func FormatAddress(sheet string, r Range) string {
	if sheet == "" {
		return r.String()
	}
	return QuoteSheetName(sheet) + "!" + r.String()
}
