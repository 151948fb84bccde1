package formula

import (
	"errors"
	"strings"
	"testing"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
)

// testContext is an in-memory workbook: sheet name to address to value.
// The first sheet, "Sheet1", is the formula's own sheet.
type testContext struct {
	sheets map[string]map[cellref.Ref]Value
	names  map[string]string
}

func newTestContext(cells map[string]Value) *testContext {
	ctx := &testContext{
		sheets: map[string]map[cellref.Ref]Value{"sheet1": {}},
		names:  map[string]string{},
	}
	for addr, v := range cells {
		sheet, r, err := cellref.ParseAddress(addr)
		if err != nil {
			panic(err)
		}
		if sheet == "" {
			sheet = "Sheet1"
		}
		key := strings.ToLower(sheet)
		if ctx.sheets[key] == nil {
			ctx.sheets[key] = map[cellref.Ref]Value{}
		}
		ctx.sheets[key][r.Start] = v
	}
	return ctx
}

func (c *testContext) sheet(name string) (map[cellref.Ref]Value, bool) {
	if name == "" {
		name = "Sheet1"
	}
	s, ok := c.sheets[strings.ToLower(name)]
	return s, ok
}

func (c *testContext) Cell(sheet string, ref cellref.Ref) (Value, bool) {
	s, ok := c.sheet(sheet)
	if !ok {
		return Value{}, false
	}
	return s[ref], true
}

func (c *testContext) Used(sheet string) (cellref.Range, bool) {
	s, ok := c.sheet(sheet)
	if !ok {
		return cellref.Range{}, false
	}
	var used cellref.Range
	first := true
	for ref := range s {
		if first {
			used, first = cellref.CellRange(ref), false
			continue
		}
		used = used.Union(cellref.CellRange(ref))
	}
	return used, true
}

func (c *testContext) Name(_, name string) (string, bool) {
	text, ok := c.names[strings.ToUpper(name)]
	return text, ok
}

func TestEval(t *testing.T) {
	ctx := newTestContext(map[string]Value{
		"A1":        NumberValue(1),
		"A2":        NumberValue(2),
		"A3":        NumberValue(3),
		"B1":        TextValue("x"),
		"B2":        BoolValue(true),
		"C1":        ErrorValue(ErrNA),
		"Sheet2!A1": NumberValue(10),
	})
	ctx.names["DATA"] = "Sheet1!$A$1:$A$3"
	ctx.names["LOOP"] = "LOOP+1"

	tests := []struct {
		input string
		want  Value
	}{
		{"=SUM(A1:A3)+2", NumberValue(8)},
		{"=SUM(A:A)", NumberValue(6)},
		{"=SUM(A1:B3)", NumberValue(6)},
		{"=SUM(A1,5,TRUE)", NumberValue(7)},
		{"=SUM(A1:C1)", ErrorValue(ErrNA)},
		{"=AVERAGE(A1:A3)", NumberValue(2)},
		{"=AVERAGE(B1)", ErrorValue(ErrDiv0)},
		{`=IF(A1>0,"pos","neg")`, TextValue("pos")},
		{"=IF(A1>5,1/0,7)", NumberValue(7)},
		{"=IF(FALSE,1)", BoolValue(false)},
		{"=1/0", ErrorValue(ErrDiv0)},
		{"=A1+B1", ErrorValue(ErrValue)},
		{"=A1:A3+1", ErrorValue(ErrValue)},
		{"=C1+1", ErrorValue(ErrNA)},
		{"=Sheet2!A1*2", NumberValue(20)},
		{"=Missing!A1", ErrorValue(ErrRef)},
		{"=D9", Value{}},
		{"=D9+1", NumberValue(1)},
		{`=D9=""`, BoolValue(true)},
		{"=SUM(Data)", NumberValue(6)},
		{"=Unknown+1", ErrorValue(ErrName)},
		{"=LOOP", ErrorValue(ErrName)},
		{"=MIN(A1:A3)", NumberValue(1)},
		{"=MAX(A1:A3,7)", NumberValue(7)},
		{"=COUNT(A1:C3)", NumberValue(3)},
		{"=COUNTA(A1:C3)", NumberValue(6)},
		{"=ABS(-4.5)", NumberValue(4.5)},
		{"=ROUND(2.5,0)", NumberValue(3)},
		{"=ROUND(-2.5,0)", NumberValue(-3)},
		{"=ROUND(1234.5678,-2)", NumberValue(1200)},
		{"=AND(A1:A3)", BoolValue(true)},
		{"=OR(B2,FALSE)", BoolValue(true)},
		{"=AND(B1)", ErrorValue(ErrValue)},
		{"=NOT(0)", BoolValue(true)},
		{`=LEN("héllo")`, NumberValue(5)},
		{`=CONCATENATE("a",A2,B2)`, TextValue("a2TRUE")},
		{`="n="&A3`, TextValue("n=3")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := ParseFormula(tt.input)
			if err != nil {
				t.Fatalf("ParseFormula(%q) failed: %v", tt.input, err)
			}
			got, err := Eval(n, ctx)
			if err != nil {
				t.Fatalf("Eval(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEvalUnknownFunction(t *testing.T) {
	n, err := ParseFormula("=FROBNICATE(1)")
	if err != nil {
		t.Fatalf("ParseFormula failed: %v", err)
	}
	_, err = Eval(n, newTestContext(nil))
	if !errors.Is(err, errs.ErrUnknownFunction) {
		t.Fatalf("error = %v, want ErrUnknownFunction", err)
	}
	if !errs.IsKind(err, errs.Formula) {
		t.Errorf("error kind = %v, want formula", errs.KindOf(err))
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{42, "42"},
		{-3, "-3"},
		{0.30000000000000004, "0.3"},
		{1.5, "1.5"},
		{1e20, "1e+20"},
		{1.0 / 3, "0.333333333333333"},
	}

	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NumberValue(42), "42"},
		{TextValue("Hello"), "Hello"},
		{BoolValue(true), "TRUE"},
		{ErrorValue(ErrDiv0), "#DIV/0!"},
		{Value{}, ""},
	}

	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.v, got, tt.want)
		}
	}
}
