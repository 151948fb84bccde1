// Package formula tokenizes, parses and evaluates spreadsheet formulas.
package formula

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
)

// TokenKind classifies a token.
type TokenKind int

const (
	TokNumber TokenKind = iota + 1
	TokString
	TokBool
	TokError
	// TokRef is a cell reference, or a whole-column / whole-row range such
	// as A:C or 1:3, with an optional sheet prefix.
	TokRef
	// TokName is a defined name, optionally sheet-qualified.
	TokName
	// TokFunc is a function name; the following "(" is part of the token.
	TokFunc
	TokOp
	TokLParen
	TokRParen
	TokComma
	// TokArrayOpen, TokArrayClose and TokArraySep belong to array
	// constants, which the tokenizer accepts and the parser does not.
	TokArrayOpen
	TokArrayClose
	TokArraySep
	// TokStructured is a bracketed structured reference such as
	// Table1[Column].
	TokStructured
)

func (k TokenKind) String() string {
	switch k {
	case TokNumber:
		return "number"
	case TokString:
		return "string"
	case TokBool:
		return "boolean"
	case TokError:
		return "error"
	case TokRef:
		return "reference"
	case TokName:
		return "name"
	case TokFunc:
		return "function"
	case TokOp:
		return "operator"
	case TokLParen:
		return "("
	case TokRParen:
		return ")"
	case TokComma:
		return ","
	case TokArrayOpen, TokArrayClose, TokArraySep:
		return "array constant"
	case TokStructured:
		return "structured reference"
	default:
		return "token"
	}
}

// Token is one lexical unit. Pos and End are byte offsets into the
// tokenized text; RefPos is where the reference follows its sheet prefix.
type Token struct {
	Kind TokenKind
	// Text is the token without sheet prefix. Strings are unquoted and
	// function names are upper-cased.
	Text     string
	Sheet    string
	External bool
	Pos      int
	RefPos   int
	End      int
}

// ErrorCodes lists the error literals a formula may contain.
var ErrorCodes = []string{"#NULL!", "#DIV/0!", "#VALUE!", "#REF!", "#NAME?", "#NUM!", "#N/A", "#GETTING_DATA", "#SPILL!", "#CALC!"}

var (
	cellTokenRe   = regexp.MustCompile(`^\$?[A-Za-z]{1,3}\$?[0-9]+$`)
	columnRangeRe = regexp.MustCompile(`^\$?[A-Za-z]{1,3}:\$?[A-Za-z]{1,3}`)
	rowRangeRe    = regexp.MustCompile(`^\$?[0-9]+:\$?[0-9]+`)
)

func syntaxError(text string, pos int, format string, args ...any) error {
	return errs.New(errs.Formula, errs.ErrSyntax, "%s at position %d in %q", fmt.Sprintf(format, args...), pos+1, text)
}

type lexer struct {
	text   string
	pos    int
	tokens []Token
}

// Tokenize splits a formula into tokens. A leading "=" is ignored.
func Tokenize(text string) ([]Token, error) {
	lx := &lexer{text: text}
	if strings.HasPrefix(text, "=") {
		lx.pos = 1
	}
	for lx.pos < len(text) {
		if err := lx.next(); err != nil {
			return nil, err
		}
	}
	return lx.tokens, nil
}

func (lx *lexer) emit(kind TokenKind, text string, start int) {
	lx.tokens = append(lx.tokens, Token{Kind: kind, Text: text, Pos: start, RefPos: start, End: lx.pos})
}

func (lx *lexer) next() error {
	s, start := lx.text, lx.pos
	c := s[start]
	switch {
	case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		lx.pos++
		return nil
	case c == '"':
		return lx.stringLiteral()
	case c == '#':
		return lx.errorLiteral()
	case c == '\'':
		return lx.quotedSheet(start)
	case c == '[':
		return lx.bracketed(start)
	case c >= '0' && c <= '9' || c == '.' && start+1 < len(s) && isDigit(s[start+1]):
		if m := rowRangeRe.FindString(s[start:]); m != "" {
			lx.pos += len(m)
			lx.emit(TokRef, m, start)
			return nil
		}
		return lx.number()
	case c == '$' || c == '_' || c == '\\' || isLetterStart(s[start:]):
		return lx.word(start)
	}

	lx.pos++
	switch c {
	case '(':
		lx.emit(TokLParen, "(", start)
	case ')':
		lx.emit(TokRParen, ")", start)
	case ',':
		lx.emit(TokComma, ",", start)
	case '{':
		lx.emit(TokArrayOpen, "{", start)
	case '}':
		lx.emit(TokArrayClose, "}", start)
	case ';':
		lx.emit(TokArraySep, ";", start)
	case '+', '-', '*', '/', '^', '&', '=', ':', '%':
		lx.emit(TokOp, string(c), start)
	case '<':
		if lx.pos < len(s) && (s[lx.pos] == '=' || s[lx.pos] == '>') {
			lx.pos++
		}
		lx.emit(TokOp, s[start:lx.pos], start)
	case '>':
		if lx.pos < len(s) && s[lx.pos] == '=' {
			lx.pos++
		}
		lx.emit(TokOp, s[start:lx.pos], start)
	default:
		return syntaxError(s, start, "unexpected character %q", c)
	}
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetterStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '$' || r == '\\'
}

func (lx *lexer) number() error {
	s, start := lx.text, lx.pos
	i := start
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	lx.pos = i
	lx.emit(TokNumber, s[start:i], start)
	return nil
}

func (lx *lexer) stringLiteral() error {
	s, start := lx.text, lx.pos
	var b strings.Builder
	for i := start + 1; i < len(s); i++ {
		if s[i] != '"' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '"' {
			b.WriteByte('"')
			i++
			continue
		}
		lx.pos = i + 1
		lx.emit(TokString, b.String(), start)
		return nil
	}
	return syntaxError(s, start, "unterminated string")
}

func (lx *lexer) errorLiteral() error {
	s, start := lx.text, lx.pos
	for _, code := range ErrorCodes {
		if len(s)-start >= len(code) && strings.EqualFold(s[start:start+len(code)], code) {
			lx.pos += len(code)
			lx.emit(TokError, code, start)
			return nil
		}
	}
	return syntaxError(s, start, "unknown error literal")
}

// quotedSheet reads 'Sheet Name'! and the reference that follows.
func (lx *lexer) quotedSheet(start int) error {
	s := lx.text
	var b strings.Builder
	i := start + 1
	for ; i < len(s); i++ {
		if s[i] != '\'' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			b.WriteByte('\'')
			i++
			continue
		}
		break
	}
	if i >= len(s) {
		return syntaxError(s, start, "unterminated sheet name")
	}
	if i+1 >= len(s) || s[i+1] != '!' {
		return syntaxError(s, start, "quoted name must be followed by '!'")
	}
	lx.pos = i + 2
	return lx.afterSheet(start, b.String(), false)
}

// bracketed reads a [..] span: an external workbook prefix when a sheet
// follows, otherwise a structured reference tail.
func (lx *lexer) bracketed(start int) error {
	s := lx.text
	end, err := lx.matchBracket(start)
	if err != nil {
		return err
	}
	lx.pos = end
	if lx.pos < len(s) && s[lx.pos] == '\'' {
		if err := lx.quotedSheet(lx.pos); err != nil {
			return err
		}
		lx.markExternal(start)
		return nil
	}
	if lx.pos < len(s) {
		j := lx.pos
		for j < len(s) {
			r, size := utf8.DecodeRuneInString(s[j:])
			if !isWordRune(r) {
				break
			}
			j += size
		}
		if j > lx.pos && j < len(s) && s[j] == '!' {
			if err := lx.word(lx.pos); err != nil {
				return err
			}
			lx.markExternal(start)
			return nil
		}
	}
	lx.emit(TokStructured, s[start:end], start)
	return nil
}

func (lx *lexer) markExternal(start int) {
	last := &lx.tokens[len(lx.tokens)-1]
	last.External = true
	last.Pos = start
}

func (lx *lexer) matchBracket(start int) (int, error) {
	depth := 0
	for i := start; i < len(lx.text); i++ {
		switch lx.text[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, syntaxError(lx.text, start, "unterminated '['")
}

// word reads names, function names, booleans, cell references and
// unquoted sheet prefixes.
func (lx *lexer) word(start int) error {
	s := lx.text
	if m := columnRangeRe.FindString(s[start:]); m != "" {
		after := start + len(m)
		if after >= len(s) || !isWordByte(s[after]) {
			lx.pos = after
			lx.emit(TokRef, m, start)
			return nil
		}
	}
	i := start
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isWordRune(r) {
			break
		}
		i += size
	}
	w := s[start:i]
	lx.pos = i

	if i < len(s) && s[i] == '!' {
		lx.pos = i + 1
		return lx.afterSheet(start, w, true)
	}
	if i < len(s) && s[i] == '[' {
		end, err := lx.matchBracket(i)
		if err != nil {
			return err
		}
		lx.pos = end
		lx.emit(TokStructured, s[start:end], start)
		return nil
	}
	if j := skipSpaces(s, i); j < len(s) && s[j] == '(' {
		lx.pos = j + 1
		lx.emit(TokFunc, strings.ToUpper(w), start)
		return nil
	}
	switch {
	case cellTokenRe.MatchString(w):
		lx.emit(TokRef, w, start)
	case strings.EqualFold(w, "TRUE"), strings.EqualFold(w, "FALSE"):
		lx.emit(TokBool, strings.ToUpper(w), start)
	default:
		lx.emit(TokName, w, start)
	}
	return nil
}

func isWordByte(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || isDigit(c) || c == '_' || c == '.' || c >= 0x80
}

func skipSpaces(s string, i int) int {
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return i
}

// afterSheet reads the reference or name following a sheet prefix.
func (lx *lexer) afterSheet(start int, sheet string, unquoted bool) error {
	s := lx.text
	refStart := lx.pos
	external := strings.Contains(sheet, "[")
	if unquoted && strings.ContainsAny(sheet, "$") {
		return syntaxError(s, start, "invalid sheet name %q", sheet)
	}
	var text string
	kind := TokRef
	switch {
	case refStart < len(s) && s[refStart] == '#':
		if len(s)-refStart >= 5 && strings.EqualFold(s[refStart:refStart+5], "#REF!") {
			lx.pos = refStart + 5
			lx.tokens = append(lx.tokens, Token{Kind: TokError, Text: "#REF!", Sheet: sheet, External: external, Pos: start, RefPos: refStart, End: lx.pos})
			return nil
		}
		return syntaxError(s, refStart, "invalid reference after sheet %q", sheet)
	default:
		if m := columnRangeRe.FindString(s[refStart:]); m != "" {
			text = m
		} else if m := rowRangeRe.FindString(s[refStart:]); m != "" {
			text = m
		} else {
			i := refStart
			for i < len(s) {
				r, size := utf8.DecodeRuneInString(s[i:])
				if !isWordRune(r) {
					break
				}
				i += size
			}
			text = s[refStart:i]
			if text == "" {
				return syntaxError(s, refStart, "missing reference after sheet %q", sheet)
			}
			if !cellTokenRe.MatchString(text) {
				kind = TokName
			}
		}
	}
	lx.pos = refStart + len(text)
	lx.tokens = append(lx.tokens, Token{Kind: kind, Text: text, Sheet: sheet, External: external, Pos: start, RefPos: refStart, End: lx.pos})
	return nil
}
