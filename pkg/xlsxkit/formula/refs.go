package formula

import (
	"strings"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/xuri/efp"
)

// Reference is a reference found in formula text.
type Reference struct {
	// Sheet is "" for references to the formula's own sheet.
	Sheet string
	Range cellref.Range
	// External marks references into other workbooks.
	External bool
}

// ExtractReferences lists the cell references of a formula. Formulas the
// parser accepts are read from their expression tree; the few it rejects
// for grammar it does not cover fall back to the efp tokenizer.
func ExtractReferences(text string) ([]Reference, error) {
	if n, err := ParseFormula(text); err == nil {
		var out []Reference
		for _, r := range References(n) {
			out = append(out, Reference{Sheet: r.Sheet, Range: r.Range(), External: r.External})
		}
		return out, nil
	} else if tokens, lexErr := Tokenize(text); lexErr != nil || !unparsable(tokens) {
		return nil, err
	}
	return extractWithEfp(text), nil
}

// unparsable reports whether tokens hold constructs the parser leaves to
// efp: array constants, structured references, external links and
// top-level unions such as print areas. Unbalanced input is never handed
// over.
func unparsable(tokens []Token) bool {
	depth, other := 0, false
	for _, tok := range tokens {
		switch {
		case tok.Kind == TokFunc || tok.Kind == TokLParen || tok.Kind == TokArrayOpen:
			depth++
		case tok.Kind == TokRParen || tok.Kind == TokArrayClose:
			depth--
		case tok.Kind == TokComma && depth == 0:
			other = true
		}
		if depth < 0 {
			return false
		}
		if tok.Kind == TokArrayOpen || tok.Kind == TokStructured || tok.External {
			other = true
		}
	}
	return depth == 0 && other
}

func extractWithEfp(text string) []Reference {
	ps := efp.ExcelParser()
	tokens := ps.Parse(strings.TrimPrefix(text, "="))
	var out []Reference
	for _, token := range tokens {
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}
		value := token.TValue
		external := strings.HasPrefix(value, "[") || strings.Contains(value, "]")
		sheet, rest, err := cellref.SplitSheet(value)
		if err != nil {
			continue
		}
		if strings.HasPrefix(sheet, "[") {
			external = true
		}
		if strings.Contains(rest, "[") {
			// structured reference
			continue
		}
		ref, ok := parseEfpRange(strings.TrimSpace(rest))
		if !ok {
			// defined name
			continue
		}
		out = append(out, Reference{Sheet: sheet, Range: ref.Range(), External: external})
	}
	return out
}

// parseEfpRange parses an efp range operand, which keeps A1:B2 as one
// value.
func parseEfpRange(s string) (*Ref, bool) {
	if ref, ok := parseRefText(s); ok {
		return ref, true
	}
	from, to, ok := strings.Cut(s, ":")
	if !ok {
		return nil, false
	}
	a, okA := parseRefText(from)
	b, okB := parseRefText(to)
	if !okA || !okB || a.Kind != RefCells || b.Kind != RefCells {
		return nil, false
	}
	ref := &Ref{Kind: RefCells, From: a.From, To: b.From}
	normalize(ref)
	return ref, true
}

// Shift moves the relative parts of every reference by dRow rows and dCol
// columns, as when a formula is copied. References pushed off the grid
// become #REF!. Text outside references is kept as written.
func Shift(text string, dRow, dCol int) (string, error) {
	if dRow == 0 && dCol == 0 {
		return text, nil
	}
	return rewrite(text, func(t Token) (string, bool) {
		if t.Kind != TokRef || t.External {
			return "", false
		}
		ref, ok := parseRefText(t.Text)
		if !ok {
			return "", false
		}
		prefix := text[t.Pos:t.RefPos]
		if !shiftCorner(&ref.From, ref.Kind, dRow, dCol) || !shiftCorner(&ref.To, ref.Kind, dRow, dCol) {
			return prefix + "#REF!", true
		}
		return prefix + ref.String(), true
	})
}

// RenameSheet rewrites the sheet prefix of every reference to oldName.
func RenameSheet(text, oldName, newName string) (string, error) {
	return rewrite(text, func(t Token) (string, bool) {
		if t.Sheet == "" || t.External || !cellref.SameSheet(t.Sheet, oldName) {
			return "", false
		}
		return cellref.QuoteSheetName(newName) + "!" + text[t.RefPos:t.End], true
	})
}

// InvalidateSheet replaces every reference to sheet with #REF!, as when
// the sheet is deleted. A range is replaced as a whole.
func InvalidateSheet(text, sheet string) (string, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	last := 0
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.Sheet == "" || t.External || !cellref.SameSheet(t.Sheet, sheet) {
			continue
		}
		end := t.End
		if t.Kind == TokRef && i+2 < len(tokens) && tokens[i+1].Kind == TokOp && tokens[i+1].Text == ":" && tokens[i+2].Kind == TokRef {
			end = tokens[i+2].End
			i += 2
		}
		b.WriteString(text[last:t.Pos])
		b.WriteString("#REF!")
		last = end
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// DeleteLines rewrites the references to sheet after count rows or
// columns from start on are deleted from it. Unqualified references belong
// to home, the sheet holding the formula; pass "" for defined names.
// Absolute and relative references move alike. A range that loses some of
// its lines shrinks and a reference left with none becomes #REF!.
func DeleteLines(text, sheet, home string, axis cellref.Axis, start, count int) (string, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	last := 0
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.Kind != TokRef {
			continue
		}
		ref, ok := parseRefText(t.Text)
		if !ok {
			continue
		}
		end, pair := t.End, false
		if ref.Kind == RefCells && i+2 < len(tokens) && tokens[i+1].Kind == TokOp && tokens[i+1].Text == ":" {
			if next := tokens[i+2]; next.Kind == TokRef && next.Sheet == "" {
				if to, ok := parseRefText(next.Text); ok && to.Kind == RefCells {
					ref.To = to.From
					end, pair = next.End, true
					i += 2
				}
			}
		}
		target := t.Sheet
		if target == "" {
			target = home
		}
		if t.External || target == "" || !cellref.SameSheet(target, sheet) {
			continue
		}
		normalize(ref)
		before := *ref
		repl := "#REF!"
		if collapseRef(ref, axis, start, count) {
			if *ref == before {
				continue
			}
			var sb strings.Builder
			ref.From.render(&sb, ref.Kind)
			if pair || ref.Kind != RefCells {
				sb.WriteByte(':')
				ref.To.render(&sb, ref.Kind)
			}
			repl = sb.String()
		}
		b.WriteString(text[last:t.RefPos])
		b.WriteString(repl)
		last = end
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// collapseRef applies a deletion to the lines of r along axis and reports
// whether any remain. Whole columns are untouched by row deletions and
// whole rows by column deletions.
func collapseRef(r *Ref, axis cellref.Axis, start, count int) bool {
	var ok bool
	switch {
	case axis == cellref.RowAxis && r.Kind != RefColumns:
		r.From.Row, r.To.Row, ok = cellref.CollapseSpan(r.From.Row, r.To.Row, start, count)
	case axis == cellref.ColumnAxis && r.Kind != RefRows:
		r.From.Col, r.To.Col, ok = cellref.CollapseSpan(r.From.Col, r.To.Col, start, count)
	default:
		return true
	}
	return ok
}

// ReferencesSheet reports whether the formula refers to the named sheet.
func ReferencesSheet(text, sheet string) bool {
	tokens, err := Tokenize(text)
	if err != nil {
		return false
	}
	for _, t := range tokens {
		if t.Sheet != "" && !t.External && cellref.SameSheet(t.Sheet, sheet) {
			return true
		}
	}
	return false
}

// rewrite replaces the source span of each token for which fn reports a
// change and copies everything else unchanged.
func rewrite(text string, fn func(Token) (string, bool)) (string, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	last := 0
	for _, t := range tokens {
		repl, ok := fn(t)
		if !ok {
			continue
		}
		b.WriteString(text[last:t.Pos])
		b.WriteString(repl)
		last = t.End
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// shiftCorner moves the relative parts of c and reports whether it stays
// inside the grid.
func shiftCorner(c *Corner, kind RefKind, dRow, dCol int) bool {
	if kind != RefRows && !c.ColAbs {
		c.Col += dCol
		if c.Col < 1 || c.Col > cellref.MaxCols {
			return false
		}
	}
	if kind != RefColumns && !c.RowAbs {
		c.Row += dRow
		if c.Row < 1 || c.Row > cellref.MaxRows {
			return false
		}
	}
	return true
}
