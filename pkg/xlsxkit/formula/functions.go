package formula

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

type function func(e *evaluator, args []Node) (Value, error)

var functions map[string]function

func init() {
	functions = map[string]function{
		"SUM":         fnSum,
		"AVERAGE":     fnAverage,
		"MIN":         fnMin,
		"MAX":         fnMax,
		"COUNT":       fnCount,
		"COUNTA":      fnCountA,
		"IF":          fnIf,
		"AND":         fnAnd,
		"OR":          fnOr,
		"NOT":         fnNot,
		"ABS":         fnAbs,
		"ROUND":       fnRound,
		"LEN":         fnLen,
		"CONCATENATE": fnConcatenate,
	}
}

// Functions returns the names of the supported functions, sorted.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsFunction reports whether name is a supported function.
func IsFunction(name string) bool {
	_, ok := functions[strings.ToUpper(name)]
	return ok
}

// numbers collects the numeric arguments of an aggregate. Values inside
// ranges count only when they are numbers; direct arguments are coerced.
func (e *evaluator) numbers(args []Node) ([]float64, Value, error) {
	var out []float64
	for _, a := range args {
		op, err := e.eval(a)
		if err != nil {
			return nil, Value{}, err
		}
		if op.area != nil {
			var bad Value
			e.cells(op.area, func(v Value) bool {
				switch v.Kind {
				case KindNumber:
					out = append(out, v.Num)
				case KindError:
					bad = v
					return false
				}
				return true
			})
			if bad.IsError() {
				return nil, bad, nil
			}
			continue
		}
		if op.v.Kind == KindEmpty {
			continue
		}
		n := toNumber(op.v)
		if n.IsError() {
			return nil, n, nil
		}
		out = append(out, n.Num)
	}
	return out, Value{}, nil
}

func aggregate(e *evaluator, args []Node, fn func([]float64) Value) (Value, error) {
	nums, bad, err := e.numbers(args)
	if err != nil || bad.IsError() {
		return bad, err
	}
	return fn(nums), nil
}

func fnSum(e *evaluator, args []Node) (Value, error) {
	return aggregate(e, args, func(nums []float64) Value {
		var s float64
		for _, n := range nums {
			s += n
		}
		return NumberValue(s)
	})
}

func fnAverage(e *evaluator, args []Node) (Value, error) {
	return aggregate(e, args, func(nums []float64) Value {
		if len(nums) == 0 {
			return ErrorValue(ErrDiv0)
		}
		var s float64
		for _, n := range nums {
			s += n
		}
		return NumberValue(s / float64(len(nums)))
	})
}

func fnMin(e *evaluator, args []Node) (Value, error) {
	return aggregate(e, args, func(nums []float64) Value {
		if len(nums) == 0 {
			return NumberValue(0)
		}
		m := nums[0]
		for _, n := range nums[1:] {
			m = math.Min(m, n)
		}
		return NumberValue(m)
	})
}

func fnMax(e *evaluator, args []Node) (Value, error) {
	return aggregate(e, args, func(nums []float64) Value {
		if len(nums) == 0 {
			return NumberValue(0)
		}
		m := nums[0]
		for _, n := range nums[1:] {
			m = math.Max(m, n)
		}
		return NumberValue(m)
	})
}

func fnCount(e *evaluator, args []Node) (Value, error) {
	count := 0
	for _, a := range args {
		op, err := e.eval(a)
		if err != nil {
			return Value{}, err
		}
		if op.area != nil {
			e.cells(op.area, func(v Value) bool {
				if v.Kind == KindNumber {
					count++
				}
				return true
			})
			continue
		}
		if n := toNumber(op.v); op.v.Kind != KindEmpty && !n.IsError() && op.v.Kind != KindError {
			count++
		}
	}
	return NumberValue(float64(count)), nil
}

func fnCountA(e *evaluator, args []Node) (Value, error) {
	count := 0
	for _, a := range args {
		op, err := e.eval(a)
		if err != nil {
			return Value{}, err
		}
		if op.area != nil {
			e.cells(op.area, func(Value) bool {
				count++
				return true
			})
			continue
		}
		if _, missing := a.(*Missing); !missing {
			count++
		}
	}
	return NumberValue(float64(count)), nil
}

func fnIf(e *evaluator, args []Node) (Value, error) {
	if len(args) < 1 || len(args) > 3 {
		return ErrorValue(ErrValue), nil
	}
	op, err := e.eval(args[0])
	if err != nil {
		return Value{}, err
	}
	cond := toBool(e.scalar(op))
	if cond.IsError() {
		return cond, nil
	}
	branch := 1
	if !cond.Bool {
		branch = 2
	}
	if branch >= len(args) {
		// IF(FALSE, x) yields FALSE; IF(TRUE) cannot happen here.
		return BoolValue(cond.Bool), nil
	}
	if _, missing := args[branch].(*Missing); missing {
		return NumberValue(0), nil
	}
	res, err := e.eval(args[branch])
	if err != nil {
		return Value{}, err
	}
	return e.scalar(res), nil
}

// logical folds the boolean arguments of AND and OR. Text inside ranges is
// ignored; no boolean at all is #VALUE!.
func logical(e *evaluator, args []Node, fold func(acc, b bool) bool, start bool) (Value, error) {
	acc, seen := start, false
	for _, a := range args {
		op, err := e.eval(a)
		if err != nil {
			return Value{}, err
		}
		if op.area != nil {
			var bad Value
			e.cells(op.area, func(v Value) bool {
				switch v.Kind {
				case KindNumber, KindBool:
					acc = fold(acc, toBool(v).Bool)
					seen = true
				case KindError:
					bad = v
					return false
				}
				return true
			})
			if bad.IsError() {
				return bad, nil
			}
			continue
		}
		if op.v.Kind == KindEmpty {
			continue
		}
		b := toBool(op.v)
		if b.IsError() {
			return b, nil
		}
		acc = fold(acc, b.Bool)
		seen = true
	}
	if !seen {
		return ErrorValue(ErrValue), nil
	}
	return BoolValue(acc), nil
}

func fnAnd(e *evaluator, args []Node) (Value, error) {
	return logical(e, args, func(acc, b bool) bool { return acc && b }, true)
}

func fnOr(e *evaluator, args []Node) (Value, error) {
	return logical(e, args, func(acc, b bool) bool { return acc || b }, false)
}

// scalarArgs evaluates exactly n arguments to scalars.
func (e *evaluator) scalarArgs(args []Node, n int) ([]Value, Value, error) {
	if len(args) != n {
		return nil, ErrorValue(ErrValue), nil
	}
	out := make([]Value, n)
	for i, a := range args {
		op, err := e.eval(a)
		if err != nil {
			return nil, Value{}, err
		}
		out[i] = e.scalar(op)
		if out[i].IsError() {
			return nil, out[i], nil
		}
	}
	return out, Value{}, nil
}

func fnNot(e *evaluator, args []Node) (Value, error) {
	vals, bad, err := e.scalarArgs(args, 1)
	if vals == nil {
		return bad, err
	}
	b := toBool(vals[0])
	if b.IsError() {
		return b, nil
	}
	return BoolValue(!b.Bool), nil
}

func fnAbs(e *evaluator, args []Node) (Value, error) {
	vals, bad, err := e.scalarArgs(args, 1)
	if vals == nil {
		return bad, err
	}
	n := toNumber(vals[0])
	if n.IsError() {
		return n, nil
	}
	return NumberValue(math.Abs(n.Num)), nil
}

// fnRound rounds half away from zero, as spreadsheets do.
func fnRound(e *evaluator, args []Node) (Value, error) {
	vals, bad, err := e.scalarArgs(args, 2)
	if vals == nil {
		return bad, err
	}
	x, d := toNumber(vals[0]), toNumber(vals[1])
	if x.IsError() {
		return x, nil
	}
	if d.IsError() {
		return d, nil
	}
	digits := math.Trunc(d.Num)
	if digits < 0 {
		p := math.Pow(10, -digits)
		return NumberValue(math.Round(x.Num/p) * p), nil
	}
	p := math.Pow(10, digits)
	return NumberValue(math.Round(x.Num*p) / p), nil
}

func fnLen(e *evaluator, args []Node) (Value, error) {
	vals, bad, err := e.scalarArgs(args, 1)
	if vals == nil {
		return bad, err
	}
	return NumberValue(float64(utf8.RuneCountInString(vals[0].String()))), nil
}

func fnConcatenate(e *evaluator, args []Node) (Value, error) {
	if len(args) == 0 {
		return ErrorValue(ErrValue), nil
	}
	var b strings.Builder
	for _, a := range args {
		op, err := e.eval(a)
		if err != nil {
			return Value{}, err
		}
		v := e.scalar(op)
		if v.IsError() {
			return v, nil
		}
		b.WriteString(v.String())
	}
	return TextValue(b.String()), nil
}
