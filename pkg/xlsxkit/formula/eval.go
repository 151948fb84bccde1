package formula

import (
	"math"
	"strconv"
	"strings"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
)

// Error values produced by evaluation.
const (
	ErrDiv0  = "#DIV/0!"
	ErrValue = "#VALUE!"
	ErrRef   = "#REF!"
	ErrName  = "#NAME?"
	ErrNA    = "#N/A"
	ErrNum   = "#NUM!"
)

// ValueKind is the type of an evaluated value.
type ValueKind int

const (
	KindEmpty ValueKind = iota
	KindNumber
	KindText
	KindBool
	KindError
)

// Value is the result of evaluating an expression or reading a cell.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Bool bool
	// Err holds the error code of KindError values.
	Err string
}

// NumberValue returns a number.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// TextValue returns a text value.
func TextValue(s string) Value { return Value{Kind: KindText, Str: s} }

// BoolValue returns a boolean.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// ErrorValue returns an error value such as #DIV/0!.
func ErrorValue(code string) Value { return Value{Kind: KindError, Err: code} }

// IsError reports whether v is an error value.
func (v Value) IsError() bool { return v.Kind == KindError }

// String renders v the way a cell shows it in General format.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return FormatNumber(v.Num)
	case KindText:
		return v.Str
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindError:
		return v.Err
	}
	return ""
}

// FormatNumber renders a number in General style with up to 15
// significant digits.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	s := strconv.FormatFloat(n, 'g', 15, 64)
	if strings.Contains(s, "e") {
		return s
	}
	return strconv.FormatFloat(mustParse(s), 'f', -1, 64)
}

func mustParse(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// Context supplies cell values and names to the evaluator.
type Context interface {
	// Cell returns the value of a cell. Sheet "" is the formula's own
	// sheet. ok is false when the sheet does not exist.
	Cell(sheet string, ref cellref.Ref) (v Value, ok bool)
	// Used returns the populated area of a sheet, so whole-column and
	// whole-row references stay bounded.
	Used(sheet string) (cellref.Range, bool)
	// Name returns the reference text of a defined name visible from the
	// formula's sheet.
	Name(sheet, name string) (string, bool)
}

// area is a range operand that has not been reduced to a single value.
type area struct {
	sheet string
	rng   cellref.Range
}

// operand is what an expression evaluates to before functions or
// operators consume it.
type operand struct {
	v    Value
	area *area
}

type evaluator struct {
	ctx   Context
	depth int
}

const maxNameDepth = 16

// Eval evaluates a parsed expression. Spreadsheet errors such as #DIV/0!
// are returned as values; the error result is reserved for formulas the
// evaluator cannot run, such as calls to unknown functions.
func Eval(n Node, ctx Context) (Value, error) {
	e := &evaluator{ctx: ctx}
	op, err := e.eval(n)
	if err != nil {
		return Value{}, err
	}
	return e.scalar(op), nil
}

func (e *evaluator) eval(n Node) (operand, error) {
	switch n := n.(type) {
	case *Number:
		return operand{v: NumberValue(n.Value)}, nil
	case *String:
		return operand{v: TextValue(n.Value)}, nil
	case *Bool:
		return operand{v: BoolValue(n.Value)}, nil
	case *ErrorLit:
		return operand{v: ErrorValue(n.Code)}, nil
	case *Missing:
		return operand{}, nil
	case *Paren:
		return e.eval(n.X)
	case *Ref:
		if _, ok := e.ctx.Used(n.Sheet); !ok {
			return operand{v: ErrorValue(ErrRef)}, nil
		}
		return operand{area: &area{sheet: n.Sheet, rng: n.Range()}}, nil
	case *Name:
		return e.name(n)
	case *Unary:
		x, err := e.eval(n.X)
		if err != nil {
			return operand{}, err
		}
		v := toNumber(e.scalar(x))
		if v.IsError() {
			return operand{v: v}, nil
		}
		switch n.Op {
		case "-":
			return operand{v: NumberValue(-v.Num)}, nil
		case "%":
			return operand{v: NumberValue(v.Num / 100)}, nil
		}
		return operand{v: v}, nil
	case *Binary:
		return e.binary(n)
	case *Call:
		fn, ok := functions[n.Name]
		if !ok {
			return operand{}, errs.New(errs.Formula, errs.ErrUnknownFunction, "%s", n.Name)
		}
		v, err := fn(e, n.Args)
		if err != nil {
			return operand{}, err
		}
		return operand{v: v}, nil
	}
	return operand{v: ErrorValue(ErrValue)}, nil
}

func (e *evaluator) name(n *Name) (operand, error) {
	text, ok := e.ctx.Name(n.Sheet, n.Name)
	if !ok || e.depth >= maxNameDepth {
		return operand{v: ErrorValue(ErrName)}, nil
	}
	node, err := ParseFormula(text)
	if err != nil {
		return operand{v: ErrorValue(ErrName)}, nil
	}
	e.depth++
	defer func() { e.depth-- }()
	return e.eval(node)
}

// scalar reduces an operand to one value. A multi-cell area in a scalar
// position is #VALUE!.
func (e *evaluator) scalar(op operand) Value {
	if op.area == nil {
		return op.v
	}
	if !op.area.rng.IsCell() {
		return ErrorValue(ErrValue)
	}
	v, ok := e.ctx.Cell(op.area.sheet, op.area.rng.Start)
	if !ok {
		return ErrorValue(ErrRef)
	}
	return v
}

// cells calls fn for every populated cell of an area, row by row.
func (e *evaluator) cells(a *area, fn func(Value) bool) {
	used, ok := e.ctx.Used(a.sheet)
	if !ok || !used.Overlaps(a.rng) {
		return
	}
	r := cellref.Range{
		Start: cellref.Ref{Row: max(used.Start.Row, a.rng.Start.Row), Col: max(used.Start.Col, a.rng.Start.Col)},
		End:   cellref.Ref{Row: min(used.End.Row, a.rng.End.Row), Col: min(used.End.Col, a.rng.End.Col)},
	}
	for row := r.Start.Row; row <= r.End.Row; row++ {
		for col := r.Start.Col; col <= r.End.Col; col++ {
			v, _ := e.ctx.Cell(a.sheet, cellref.Ref{Row: row, Col: col})
			if v.Kind == KindEmpty {
				continue
			}
			if !fn(v) {
				return
			}
		}
	}
}

func (e *evaluator) binary(n *Binary) (operand, error) {
	lo, err := e.eval(n.L)
	if err != nil {
		return operand{}, err
	}
	ro, err := e.eval(n.R)
	if err != nil {
		return operand{}, err
	}
	l, r := e.scalar(lo), e.scalar(ro)
	if l.IsError() {
		return operand{v: l}, nil
	}
	if r.IsError() {
		return operand{v: r}, nil
	}

	switch n.Op {
	case "&":
		return operand{v: TextValue(l.String() + r.String())}, nil
	case "=", "<>", "<", ">", "<=", ">=":
		c := compare(l, r)
		var b bool
		switch n.Op {
		case "=":
			b = c == 0
		case "<>":
			b = c != 0
		case "<":
			b = c < 0
		case ">":
			b = c > 0
		case "<=":
			b = c <= 0
		case ">=":
			b = c >= 0
		}
		return operand{v: BoolValue(b)}, nil
	}

	ln, rn := toNumber(l), toNumber(r)
	if ln.IsError() {
		return operand{v: ln}, nil
	}
	if rn.IsError() {
		return operand{v: rn}, nil
	}
	var out float64
	switch n.Op {
	case "+":
		out = ln.Num + rn.Num
	case "-":
		out = ln.Num - rn.Num
	case "*":
		out = ln.Num * rn.Num
	case "/":
		if rn.Num == 0 {
			return operand{v: ErrorValue(ErrDiv0)}, nil
		}
		out = ln.Num / rn.Num
	case "^":
		out = math.Pow(ln.Num, rn.Num)
	default:
		return operand{v: ErrorValue(ErrValue)}, nil
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return operand{v: ErrorValue(ErrNum)}, nil
	}
	return operand{v: NumberValue(out)}, nil
}

// toNumber coerces a scalar the way arithmetic operators do.
func toNumber(v Value) Value {
	switch v.Kind {
	case KindNumber, KindError:
		return v
	case KindBool:
		if v.Bool {
			return NumberValue(1)
		}
		return NumberValue(0)
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return ErrorValue(ErrValue)
		}
		return NumberValue(f)
	}
	return NumberValue(0)
}

// toBool coerces a scalar to a condition.
func toBool(v Value) Value {
	switch v.Kind {
	case KindBool, KindError:
		return v
	case KindNumber:
		return BoolValue(v.Num != 0)
	case KindText:
		switch strings.ToUpper(v.Str) {
		case "TRUE":
			return BoolValue(true)
		case "FALSE":
			return BoolValue(false)
		}
		return ErrorValue(ErrValue)
	}
	return BoolValue(false)
}

// typeRank orders values of different types: numbers < text < booleans.
func typeRank(v Value) int {
	switch v.Kind {
	case KindText:
		return 1
	case KindBool:
		return 2
	}
	return 0
}

// compare orders two non-error scalars. Text compares case-insensitively
// and empty cells compare equal to 0, "" and FALSE.
func compare(l, r Value) int {
	if l.Kind == KindEmpty {
		l = zeroLike(r)
	}
	if r.Kind == KindEmpty {
		r = zeroLike(l)
	}
	if lr, rr := typeRank(l), typeRank(r); lr != rr {
		return lr - rr
	}
	switch l.Kind {
	case KindText:
		return strings.Compare(strings.ToLower(l.Str), strings.ToLower(r.Str))
	case KindBool:
		switch {
		case l.Bool == r.Bool:
			return 0
		case r.Bool:
			return -1
		}
		return 1
	}
	switch {
	case l.Num < r.Num:
		return -1
	case l.Num > r.Num:
		return 1
	}
	return 0
}

func zeroLike(v Value) Value {
	switch v.Kind {
	case KindText:
		return TextValue("")
	case KindBool:
		return BoolValue(false)
	}
	return NumberValue(0)
}
