// Package errs defines the error taxonomy shared by every xlsxkit package.
//
// Each failure is an *Error carrying a Kind, the package part and cell it
// concerns (when known) and a cause. Causes are the sentinel values below,
// so callers can test with errors.Is and recover context with errors.As.
package errs

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error.
type Kind int

const (
	// IO covers file-system failures: not found, permission, disk full.
	IO Kind = iota + 1
	// Format covers corrupt archives, missing parts and schema violations.
	Format
	// Reference covers dangling shared-string, style and relationship ids.
	Reference
	// Range covers address bounds, merge overlaps and sheet naming.
	Range
	// Formula covers syntax errors, unknown functions and cycles.
	Formula
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "io error"
	case Format:
		return "format error"
	case Reference:
		return "reference error"
	case Range:
		return "range error"
	case Formula:
		return "formula error"
	default:
		return "error"
	}
}

// Format causes.
var (
	ErrMissingPart    = errors.New("missing part")
	ErrCorruptArchive = errors.New("corrupt archive")
	ErrSchema         = errors.New("schema violation")
	ErrEncrypted      = errors.New("encrypted workbook")
	ErrLegacyFormat   = errors.New("legacy binary workbook")
)

// Reference causes.
var (
	ErrInvalidIndex         = errors.New("invalid index")
	ErrDanglingRelationship = errors.New("dangling relationship")
	ErrSheetNotFound        = errors.New("sheet not found")
)

// Range causes.
var (
	ErrOverlap        = errors.New("overlapping merge range")
	ErrDuplicateName  = errors.New("duplicate name")
	ErrInvalidName    = errors.New("invalid name")
	ErrOutOfBounds    = errors.New("address out of bounds")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidRange   = errors.New("invalid range")
	ErrNotWorksheet   = errors.New("not a worksheet")
	// ErrInvalidValue rejects cell content the file format cannot store,
	// such as NaN or text with XML-illegal characters.
	ErrInvalidValue = errors.New("invalid value")
	// ErrLastVisibleSheet rejects hiding the only visible sheet.
	ErrLastVisibleSheet = errors.New("last visible sheet")
)

// Formula causes.
var (
	ErrSyntax            = errors.New("syntax error")
	ErrUnknownFunction   = errors.New("unknown function")
	ErrCircularReference = errors.New("circular reference")
)

// Error is the concrete error type returned by xlsxkit.
type Error struct {
	Kind Kind
	// Part is the package part name, e.g. "xl/worksheets/sheet1.xml".
	Part string
	// Cell is the cell address, sheet-qualified when the sheet is known.
	Cell string
	// Line is the 1-based line within Part, 0 when unknown.
	Line int
	// Offset is the byte offset within Part, -1 when unknown.
	Offset int64
	// Detail is a human-readable description.
	Detail string
	// Err is the cause, usually one of the sentinels of this package.
	Err error
}

// Error renders the error with all known context.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Part != "" {
		b.WriteString(" in ")
		b.WriteString(e.Part)
		if e.Line > 0 {
			fmt.Fprintf(&b, " at line %d", e.Line)
		} else if e.Offset > 0 {
			fmt.Fprintf(&b, " at offset %d", e.Offset)
		}
	}
	if e.Cell != "" {
		fmt.Fprintf(&b, " (%s)", e.Cell)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: -1, Err: cause, Detail: fmt.Sprintf(format, args...)}
}

// WithPart returns a copy of e annotated with a part name.
func (e *Error) WithPart(part string) *Error {
	c := *e
	c.Part = part
	return &c
}

// WithCell returns a copy of e annotated with a cell address.
func (e *Error) WithCell(cell string) *Error {
	c := *e
	c.Cell = cell
	return &c
}

// WithLine returns a copy of e annotated with a line number.
func (e *Error) WithLine(line int) *Error {
	c := *e
	c.Line = line
	return &c
}

// IsKind reports whether any error in err's chain is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// InPart annotates err with a part name. Errors that are not *Error are
// wrapped as format errors; an existing part annotation is kept. An *Error
// wrapped by other errors keeps that chain under the new annotation.
func InPart(err error, part string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Kind: Format, Part: part, Offset: -1, Err: ErrSchema, Detail: err.Error()}
	}
	switch {
	case e.Part != "":
		return err
	case err == error(e):
		return e.WithPart(part)
	}
	return &Error{Kind: e.Kind, Part: part, Offset: -1, Err: err}
}

// InCell annotates err with a cell address, following the rules of
// InPart.
func InCell(err error, cell string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Kind: Format, Cell: cell, Offset: -1, Err: ErrSchema, Detail: err.Error()}
	}
	switch {
	case e.Cell != "":
		return err
	case err == error(e):
		return e.WithCell(cell)
	}
	return &Error{Kind: e.Kind, Cell: cell, Offset: -1, Err: err}
}

// IOError wraps a file-system failure. The *os.PathError inside err
// already names the file.
func IOError(err error) *Error {
	return &Error{Kind: IO, Offset: -1, Err: err}
}

// Decode converts an XML decoding failure inside part into a format error,
// keeping the line reported by the decoder.
func Decode(err error, part string) error {
	if err == nil {
		return nil
	}
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		return &Error{Kind: Format, Part: part, Line: se.Line, Offset: -1, Err: ErrSchema, Detail: se.Msg}
	}
	return InPart(err, part)
}
