package formula

import (
	"strconv"
	"strings"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
)

// Node is a parsed formula expression.
type Node interface {
	node()
}

// Number is a numeric literal. Text keeps the literal as written.
type Number struct {
	Value float64
	Text  string
}

// String is a string literal.
type String struct {
	Value string
}

// Bool is TRUE or FALSE.
type Bool struct {
	Value bool
}

// ErrorLit is an error literal such as #N/A.
type ErrorLit struct {
	Code string
}

// Name is a reference to a defined name.
type Name struct {
	Sheet string
	Name  string
}

// Missing is an omitted function argument, as in IF(A1,,1).
type Missing struct{}

// Unary is a prefix sign or the postfix percent operator.
type Unary struct {
	Op string
	X  Node
}

// Binary is an infix operation.
type Binary struct {
	Op   string
	L, R Node
}

// Call is a function call. Name is upper-case.
type Call struct {
	Name string
	Args []Node
}

// Paren is a parenthesized expression.
type Paren struct {
	X Node
}

// RefKind distinguishes cell areas from whole columns and rows.
type RefKind int

const (
	RefCells RefKind = iota
	RefColumns
	RefRows
)

// Corner is one end of a reference. Row is 0 for whole columns and Col is
// 0 for whole rows.
type Corner struct {
	Row, Col       int
	RowAbs, ColAbs bool
}

// Ref is a cell, range, column or row reference.
type Ref struct {
	Sheet    string
	External bool
	Kind     RefKind
	From, To Corner
}

func (*Number) node()   {}
func (*String) node()   {}
func (*Bool) node()     {}
func (*ErrorLit) node() {}
func (*Name) node()     {}
func (*Missing) node()  {}
func (*Unary) node()    {}
func (*Binary) node()   {}
func (*Call) node()     {}
func (*Paren) node()    {}
func (*Ref) node()      {}

// IsCell reports whether the reference covers exactly one cell.
func (r *Ref) IsCell() bool {
	return r.Kind == RefCells && r.From == r.To
}

// Range returns the covered area. Whole columns and rows extend to the
// grid limits.
func (r *Ref) Range() cellref.Range {
	switch r.Kind {
	case RefColumns:
		return cellref.NewRange(cellref.Ref{Row: 1, Col: r.From.Col}, cellref.Ref{Row: cellref.MaxRows, Col: r.To.Col})
	case RefRows:
		return cellref.NewRange(cellref.Ref{Row: r.From.Row, Col: 1}, cellref.Ref{Row: r.To.Row, Col: cellref.MaxCols})
	}
	return cellref.NewRange(cellref.Ref{Row: r.From.Row, Col: r.From.Col}, cellref.Ref{Row: r.To.Row, Col: r.To.Col})
}

// parseRefText parses the part of a reference token after its sheet
// prefix: A1, $A$1, A:C or 1:3.
func parseRefText(text string) (*Ref, bool) {
	if from, to, ok := strings.Cut(text, ":"); ok {
		a, okA := parseCorner(from)
		b, okB := parseCorner(to)
		if !okA || !okB {
			return nil, false
		}
		switch {
		case a.Row == 0 && b.Row == 0 && a.Col > 0 && b.Col > 0:
			return &Ref{Kind: RefColumns, From: a, To: b}, true
		case a.Col == 0 && b.Col == 0 && a.Row > 0 && b.Row > 0:
			return &Ref{Kind: RefRows, From: a, To: b}, true
		}
		return nil, false
	}
	c, ok := parseCorner(text)
	if !ok || c.Row == 0 || c.Col == 0 {
		return nil, false
	}
	return &Ref{Kind: RefCells, From: c, To: c}, true
}

// parseCorner parses "$A$1", "A", "$3" and the like.
func parseCorner(s string) (Corner, bool) {
	var c Corner
	i := 0
	if i < len(s) && s[i] == '$' {
		c.ColAbs = true
		i++
	}
	j := i
	for j < len(s) && (s[j] >= 'A' && s[j] <= 'Z' || s[j] >= 'a' && s[j] <= 'z') {
		j++
	}
	if j > i {
		col, err := cellref.ColumnNumber(s[i:j])
		if err != nil {
			return c, false
		}
		c.Col = col
	} else if c.ColAbs {
		// "$3": the dollar belongs to the row.
		c.ColAbs = false
		c.RowAbs = true
	}
	if j < len(s) && s[j] == '$' {
		if c.Col == 0 {
			return c, false
		}
		c.RowAbs = true
		j++
	}
	if j == len(s) {
		return c, c.Col > 0
	}
	row, err := strconv.Atoi(s[j:])
	if err != nil || row < 1 || row > cellref.MaxRows {
		return c, false
	}
	c.Row = row
	return c, true
}

func (c Corner) render(b *strings.Builder, kind RefKind) {
	if kind != RefRows {
		if c.ColAbs {
			b.WriteByte('$')
		}
		b.WriteString(cellref.ColumnName(c.Col))
	}
	if kind != RefColumns {
		if c.RowAbs {
			b.WriteByte('$')
		}
		b.WriteString(strconv.Itoa(c.Row))
	}
}

// String renders the reference with its sheet prefix.
func (r *Ref) String() string {
	var b strings.Builder
	if r.Sheet != "" {
		b.WriteString(cellref.QuoteSheetName(r.Sheet))
		b.WriteByte('!')
	}
	r.From.render(&b, r.Kind)
	if r.Kind != RefCells || r.From != r.To {
		b.WriteByte(':')
		r.To.render(&b, r.Kind)
	}
	return b.String()
}

// Render prints a node as formula text without the leading "=".
func Render(n Node) string {
	var b strings.Builder
	render(&b, n)
	return b.String()
}

func render(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Number:
		if n.Text != "" {
			b.WriteString(n.Text)
		} else {
			b.WriteString(FormatNumber(n.Value))
		}
	case *String:
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(n.Value, `"`, `""`))
		b.WriteByte('"')
	case *Bool:
		if n.Value {
			b.WriteString("TRUE")
		} else {
			b.WriteString("FALSE")
		}
	case *ErrorLit:
		b.WriteString(n.Code)
	case *Name:
		if n.Sheet != "" {
			b.WriteString(cellref.QuoteSheetName(n.Sheet))
			b.WriteByte('!')
		}
		b.WriteString(n.Name)
	case *Missing:
	case *Unary:
		if n.Op == "%" {
			render(b, n.X)
			b.WriteByte('%')
			return
		}
		b.WriteString(n.Op)
		render(b, n.X)
	case *Binary:
		render(b, n.L)
		b.WriteString(n.Op)
		render(b, n.R)
	case *Call:
		b.WriteString(n.Name)
		b.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			render(b, a)
		}
		b.WriteByte(')')
	case *Paren:
		b.WriteByte('(')
		render(b, n.X)
		b.WriteByte(')')
	case *Ref:
		b.WriteString(n.String())
	}
}

// References lists the references of a node in source order.
func References(n Node) []*Ref {
	var refs []*Ref
	Walk(n, func(n Node) {
		if r, ok := n.(*Ref); ok {
			refs = append(refs, r)
		}
	})
	return refs
}

// Walk calls fn for n and every node below it, parents first.
func Walk(n Node, fn func(Node)) {
	fn(n)
	switch n := n.(type) {
	case *Unary:
		Walk(n.X, fn)
	case *Binary:
		Walk(n.L, fn)
		Walk(n.R, fn)
	case *Call:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *Paren:
		Walk(n.X, fn)
	}
}
