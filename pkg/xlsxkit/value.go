package xlsxkit

import (
	"math"
	"strconv"
	"strings"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/formula"
)

// Kind is the type of a cell value.
type Kind int

const (
	KindEmpty Kind = iota
	KindNumber
	KindText
	KindBool
	KindFormula
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindFormula:
		return "formula"
	case KindError:
		return "error"
	default:
		return "empty"
	}
}

// Value is the content of a cell.
type Value struct {
	Kind   Kind
	Number float64
	Text   string
	Bool   bool
	// Error holds the code of error values, e.g. "#DIV/0!".
	Error string
	// Formula is the expression of formula values, without the leading "=".
	Formula string
	// Result is the cached result of a formula. It is nil until the
	// formula has been calculated and is never itself a formula.
	Result *Value
}

// Empty returns the empty value.
func Empty() Value { return Value{} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{Kind: KindNumber, Number: n} }

// Text returns a text value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// ErrorCode returns an error value such as "#N/A".
func ErrorCode(code string) Value { return Value{Kind: KindError, Error: code} }

// Formula returns a formula value without a cached result. A leading "="
// is removed.
func Formula(expr string) Value {
	return Value{Kind: KindFormula, Formula: strings.TrimPrefix(expr, "=")}
}

// FormulaWithResult returns a formula value with a cached result.
func FormulaWithResult(expr string, result Value) Value {
	v := Formula(expr)
	if result.Kind != KindFormula {
		v.Result = &result
	}
	return v
}

// IsEmpty reports whether v is the empty value.
func (v Value) IsEmpty() bool { return v.Kind == KindEmpty }

// Equal reports whether two values are the same, comparing cached
// formula results by content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Number == o.Number
	case KindText:
		return v.Text == o.Text
	case KindBool:
		return v.Bool == o.Bool
	case KindError:
		return v.Error == o.Error
	case KindFormula:
		if v.Formula != o.Formula || (v.Result == nil) != (o.Result == nil) {
			return false
		}
		return v.Result == nil || v.Result.Equal(*o.Result)
	}
	return true
}

// String renders v as a cell shows it without number formatting. Formulas
// show their cached result.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return formula.FormatNumber(v.Number)
	case KindText:
		return v.Text
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindError:
		return v.Error
	case KindFormula:
		if v.Result != nil {
			return v.Result.String()
		}
	}
	return ""
}

// Input renders v the way a user would type it: formulas with "=".
func (v Value) Input() string {
	if v.Kind == KindFormula {
		return "=" + v.Formula
	}
	return v.String()
}

// scalar converts v for the evaluator. Formulas yield their cached result.
func (v Value) scalar() formula.Value {
	switch v.Kind {
	case KindNumber:
		return formula.NumberValue(v.Number)
	case KindText:
		return formula.TextValue(v.Text)
	case KindBool:
		return formula.BoolValue(v.Bool)
	case KindError:
		return formula.ErrorValue(v.Error)
	case KindFormula:
		if v.Result != nil {
			return v.Result.scalar()
		}
	}
	return formula.Value{}
}

func fromScalar(fv formula.Value) Value {
	switch fv.Kind {
	case formula.KindNumber:
		if math.IsNaN(fv.Num) || math.IsInf(fv.Num, 0) {
			return ErrorCode(formula.ErrNum)
		}
		return Number(fv.Num)
	case formula.KindText:
		return Text(fv.Str)
	case formula.KindBool:
		return Bool(fv.Bool)
	case formula.KindError:
		return ErrorCode(fv.Err)
	}
	return Empty()
}

// ParseValue infers a value from user input: "=" starts a formula, then
// numbers, TRUE/FALSE and error literals are recognized, and anything else
// is text. Dates stay text; apply a date number format to a serial number
// instead.
func ParseValue(input string) Value {
	if input == "" {
		return Empty()
	}
	if strings.HasPrefix(input, "=") && len(input) > 1 {
		return Formula(input)
	}
	trimmed := strings.TrimSpace(input)
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) && isNumeric(trimmed) {
		return Number(n)
	}
	switch strings.ToUpper(trimmed) {
	case "TRUE":
		return Bool(true)
	case "FALSE":
		return Bool(false)
	}
	for _, code := range formula.ErrorCodes {
		if strings.EqualFold(trimmed, code) {
			return ErrorCode(code)
		}
	}
	return Text(input)
}

// isNumeric rejects the spellings strconv accepts that a spreadsheet does
// not, such as "0x1p3", "1_000" and "Inf".
func isNumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return false
		}
	}
	return true
}
