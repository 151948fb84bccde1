package formula

import (
	"strconv"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
)

// binary operator precedence, lowest first
var precedence = []map[string]bool{
	{"=": true, "<>": true, "<": true, ">": true, "<=": true, ">=": true},
	{"&": true},
	{"+": true, "-": true},
	{"*": true, "/": true},
	{"^": true},
}

const powLevel = 4

type parser struct {
	text   string
	tokens []Token
	pos    int
}

// ParseFormula tokenizes and parses formula text. A leading "=" is
// optional.
func ParseFormula(text string) (Node, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	return parse(text, tokens)
}

// Parse builds the expression tree of a token sequence.
func Parse(tokens []Token) (Node, error) {
	return parse("", tokens)
}

func parse(text string, tokens []Token) (Node, error) {
	p := &parser{text: text, tokens: tokens}
	if len(tokens) == 0 {
		return nil, syntaxError(text, 0, "empty formula")
	}
	n, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, p.unexpected()
	}
	return n, nil
}

func (p *parser) peek() *Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *parser) unexpected() error {
	t := p.peek()
	if t == nil {
		return syntaxError(p.text, len(p.text), "unexpected end of formula")
	}
	switch t.Kind {
	case TokArrayOpen, TokArrayClose, TokArraySep:
		return syntaxError(p.text, t.Pos, "array constants are not supported")
	case TokStructured:
		return syntaxError(p.text, t.Pos, "structured references are not supported")
	}
	return syntaxError(p.text, t.Pos, "unexpected %s %q", t.Kind, t.Text)
}

func (p *parser) expr(level int) (Node, error) {
	if level >= len(precedence) {
		return p.unary()
	}
	left, err := p.expr(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t == nil || t.Kind != TokOp || !precedence[level][t.Text] {
			return left, nil
		}
		p.pos++
		next := level + 1
		if level == powLevel {
			next = level
		}
		right, err := p.expr(next)
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.Text, L: left, R: right}
		if level == powLevel {
			return left, nil
		}
	}
}

func (p *parser) unary() (Node, error) {
	if t := p.peek(); t != nil && t.Kind == TokOp && (t.Text == "-" || t.Text == "+") {
		p.pos++
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: t.Text, X: x}, nil
	}
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t == nil || t.Kind != TokOp || t.Text != "%" {
			return x, nil
		}
		p.pos++
		x = &Unary{Op: "%", X: x}
	}
}

func (p *parser) primary() (Node, error) {
	t := p.peek()
	if t == nil {
		return nil, p.unexpected()
	}
	switch t.Kind {
	case TokNumber:
		p.pos++
		v, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, syntaxError(p.text, t.Pos, "invalid number %q", t.Text)
		}
		return &Number{Value: v, Text: t.Text}, nil
	case TokString:
		p.pos++
		return &String{Value: t.Text}, nil
	case TokBool:
		p.pos++
		return &Bool{Value: t.Text == "TRUE"}, nil
	case TokError:
		p.pos++
		return &ErrorLit{Code: t.Text}, nil
	case TokName:
		p.pos++
		if t.External {
			return nil, syntaxError(p.text, t.Pos, "external references are not supported")
		}
		return &Name{Sheet: t.Sheet, Name: t.Text}, nil
	case TokRef:
		return p.reference()
	case TokFunc:
		return p.call()
	case TokLParen:
		p.pos++
		x, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if c := p.peek(); c == nil || c.Kind != TokRParen {
			return nil, p.unexpected()
		}
		p.pos++
		return &Paren{X: x}, nil
	}
	return nil, p.unexpected()
}

// reference parses a reference and an optional ":" joining it with a
// second cell reference into a range.
func (p *parser) reference() (Node, error) {
	t := p.tokens[p.pos]
	if t.External {
		return nil, syntaxError(p.text, t.Pos, "external references are not supported")
	}
	ref, ok := parseRefText(t.Text)
	if !ok {
		return nil, syntaxError(p.text, t.RefPos, "invalid reference %q", t.Text)
	}
	ref.Sheet = t.Sheet
	p.pos++

	if ref.Kind != RefCells || p.pos+1 >= len(p.tokens) {
		return ref, nil
	}
	colon, end := p.tokens[p.pos], p.tokens[p.pos+1]
	if colon.Kind != TokOp || colon.Text != ":" || end.Kind != TokRef {
		return ref, nil
	}
	if end.Sheet != "" && !cellref.SameSheet(end.Sheet, t.Sheet) {
		return nil, syntaxError(p.text, end.Pos, "range spans sheets")
	}
	to, ok := parseRefText(end.Text)
	if !ok || to.Kind != RefCells {
		return nil, syntaxError(p.text, end.RefPos, "invalid range end %q", end.Text)
	}
	p.pos += 2
	ref.To = to.From
	normalize(ref)
	return ref, nil
}

// normalize orders the corners of a cell range top-left first.
func normalize(r *Ref) {
	if r.From.Row > r.To.Row {
		r.From.Row, r.To.Row = r.To.Row, r.From.Row
		r.From.RowAbs, r.To.RowAbs = r.To.RowAbs, r.From.RowAbs
	}
	if r.From.Col > r.To.Col {
		r.From.Col, r.To.Col = r.To.Col, r.From.Col
		r.From.ColAbs, r.To.ColAbs = r.To.ColAbs, r.From.ColAbs
	}
}

func (p *parser) call() (Node, error) {
	t := p.tokens[p.pos]
	p.pos++
	c := &Call{Name: t.Text}
	if n := p.peek(); n != nil && n.Kind == TokRParen {
		p.pos++
		return c, nil
	}
	for {
		var arg Node = &Missing{}
		if n := p.peek(); n == nil || (n.Kind != TokComma && n.Kind != TokRParen) {
			x, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			arg = x
		}
		c.Args = append(c.Args, arg)
		n := p.peek()
		if n == nil {
			return nil, syntaxError(p.text, len(p.text), "missing ) after arguments of %s", c.Name)
		}
		p.pos++
		switch n.Kind {
		case TokComma:
			continue
		case TokRParen:
			return c, nil
		}
		p.pos--
		return nil, p.unexpected()
	}
}
