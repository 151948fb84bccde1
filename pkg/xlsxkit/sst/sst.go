// Package sst implements the shared string table of a workbook: the pool
// of text values that cells reference by index.
package sst

import (
	"bytes"
	"encoding/xml"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
)

// NamespaceMain is the SpreadsheetML main namespace.
const NamespaceMain = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"

// item is one <si> entry. raw holds the original inner XML of rich-text
// entries, which are written back unchanged.
type item struct {
	text string
	raw  []byte
}

// Table is an append-only pool of strings. Indices are dense, start at 0
// and never change once assigned.
type Table struct {
	items  []item
	index  map[string]int
	refs   int
	nsDecl []xml.Attr
}

// New returns an empty table.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// Intern returns the index of text, appending it when no plain entry with
// the same content exists.
func (t *Table) Intern(text string) int {
	if i, ok := t.index[text]; ok {
		return i
	}
	i := len(t.items)
	t.items = append(t.items, item{text: text})
	t.index[text] = i
	return i
}

// Lookup returns the index of text without interning it.
func (t *Table) Lookup(text string) (int, bool) {
	i, ok := t.index[text]
	return i, ok
}

// Get returns the text stored at index.
func (t *Table) Get(index int) (string, error) {
	if index < 0 || index >= len(t.items) {
		return "", errs.New(errs.Reference, errs.ErrInvalidIndex, "shared string %d of %d", index, len(t.items))
	}
	return t.items[index].text, nil
}

// IsRich reports whether the entry at index carries formatted runs.
func (t *Table) IsRich(index int) bool {
	return index >= 0 && index < len(t.items) && t.items[index].raw != nil
}

// Len returns the number of unique entries.
func (t *Table) Len() int {
	return len(t.items)
}

// All yields (index, text) pairs in index order.
func (t *Table) All() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for i, it := range t.items {
			if !yield(i, it.text) {
				return
			}
		}
	}
}

// SetRefCount records how many cells reference the table; it is written as
// the count attribute.
func (t *Table) SetRefCount(n int) {
	t.refs = n
}

// RefCount returns the value recorded by SetRefCount or read from the part.
func (t *Table) RefCount() int {
	return t.refs
}

// Parse reads a sharedStrings part.
func Parse(r io.Reader) (*Table, error) {
	t := New()
	decoder := xml.NewDecoder(r)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "sst":
			for _, attr := range se.Attr {
				switch {
				case attr.Name.Local == "count" && attr.Name.Space == "":
					t.refs, _ = strconv.Atoi(attr.Value)
				case attr.Name.Space == "xmlns":
					t.nsDecl = append(t.nsDecl, attr)
				}
			}
		case "si":
			it, err := parseItem(decoder, se)
			if err != nil {
				return nil, err
			}
			i := len(t.items)
			t.items = append(t.items, it)
			if it.raw == nil {
				if _, dup := t.index[it.text]; !dup {
					t.index[it.text] = i
				}
			}
		}
	}
	return t, nil
}

type xlsxSI struct {
	T     *xlsxT  `xml:"t"`
	R     []xlsxR `xml:"r"`
	RPh   []xlsxR `xml:"rPh"`
	Inner []byte  `xml:",innerxml"`
}

type xlsxR struct {
	T xlsxT `xml:"t"`
}

type xlsxT struct {
	Val string `xml:",chardata"`
}

func parseItem(decoder *xml.Decoder, start xml.StartElement) (item, error) {
	var si xlsxSI
	if err := decoder.DecodeElement(&si, &start); err != nil {
		return item{}, err
	}
	if len(si.R) == 0 && len(si.RPh) == 0 {
		var text string
		if si.T != nil {
			text = si.T.Val
		}
		return item{text: text}, nil
	}
	var b strings.Builder
	if si.T != nil {
		b.WriteString(si.T.Val)
	}
	for _, r := range si.R {
		b.WriteString(r.T.Val)
	}
	return item{text: b.String(), raw: si.Inner}, nil
}

// WriteTo writes the table as a sharedStrings part, preserving index
// order.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	buf.WriteString(`<sst xmlns="` + NamespaceMain + `"`)
	for _, attr := range t.nsDecl {
		buf.WriteString(` xmlns:` + attr.Name.Local + `="`)
		xml.EscapeText(&buf, []byte(attr.Value))
		buf.WriteByte('"')
	}
	count := t.refs
	if count < len(t.items) {
		count = len(t.items)
	}
	buf.WriteString(` count="` + strconv.Itoa(count) + `" uniqueCount="` + strconv.Itoa(len(t.items)) + `">`)
	for _, it := range t.items {
		buf.WriteString("<si>")
		if it.raw != nil {
			buf.Write(it.raw)
		} else {
			WriteText(&buf, it.text)
		}
		buf.WriteString("</si>")
	}
	buf.WriteString("</sst>")
	return buf.WriteTo(w)
}

// WriteText writes a <t> element, marking it space-preserving when the
// text has leading or trailing whitespace.
func WriteText(buf *bytes.Buffer, text string) {
	if text != strings.TrimSpace(text) {
		buf.WriteString(`<t xml:space="preserve">`)
	} else {
		buf.WriteString("<t>")
	}
	xml.EscapeText(buf, []byte(text))
	buf.WriteString("</t>")
}
