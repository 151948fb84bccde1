package xlsxkit

import (
	"bytes"
	"encoding/xml"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/formula"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/internal/xmlnode"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/opc"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/sst"
)

// sheetLoader holds what worksheet parsing reads from the workbook. It is
// shared by parallel parses and must not change while they run.
type sheetLoader struct {
	sst         *sst.Table
	styles      int
	sheetExists func(name string) bool
}

// sharedFormula is the master cell of a shared formula group.
type sharedFormula struct {
	ref  cellref.Ref
	text string
}

func inputLine(d *xml.Decoder) int {
	line, _ := d.InputPos()
	return line
}

func withLine(err error, line int) error {
	if e, ok := err.(*errs.Error); ok && e.Line == 0 {
		return e.WithLine(line)
	}
	return err
}

// parseWorksheet reads a worksheet part into ws. Errors carry the line
// and, for cell-level failures, the cell address; the caller adds the
// part name.
func (l *sheetLoader) parseWorksheet(ws *Worksheet, r io.Reader) error {
	d := xml.NewDecoder(r)
	root, err := xmlnode.NextStart(d)
	if err != nil {
		return err
	}
	if root.Name.Local != "worksheet" {
		return errs.New(errs.Format, errs.ErrSchema, "root element <%s>, want <worksheet>", root.Name.Local)
	}
	ws.root = root.Copy()
	ns := namespaces(nil, root.Attr)

	rank := -1
	for {
		token, err := d.RawToken()
		if err == io.EOF {
			return &xml.SyntaxError{Msg: "unexpected EOF inside <worksheet>", Line: inputLine(d)}
		}
		if err != nil {
			return err
		}
		if _, ok := token.(xml.EndElement); ok {
			return nil
		}
		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		rank = rankOf(worksheetOrder, se.Name.Local, rank)
		switch se.Name.Local {
		case "sheetData":
			if err := l.parseSheetData(ws, d); err != nil {
				return withLine(err, inputLine(d))
			}
			continue
		}

		n, err := xmlnode.Read(d, se)
		if err != nil {
			return err
		}
		switch n.Local() {
		case "dimension":
			// recomputed on save
		case "cols":
			if err := ws.readCols(n); err != nil {
				return withLine(err, inputLine(d))
			}
		case "mergeCells":
			if err := ws.readMerges(n); err != nil {
				return withLine(err, inputLine(d))
			}
		default:
			err := relIDs(ns, n, func(id string) error {
				if _, ok := ws.rels.Get(id); !ok {
					return errs.New(errs.Reference, errs.ErrDanglingRelationship, "%s in <%s>", id, n.Local())
				}
				return nil
			})
			if err != nil {
				return withLine(err, inputLine(d))
			}
			ws.preserved = append(ws.preserved, element{rank: rank, node: n})
		}
	}
}

func (l *sheetLoader) parseSheetData(ws *Worksheet, d *xml.Decoder) error {
	shared := make(map[string]sharedFormula)
	prev := 0
	for {
		token, err := d.RawToken()
		if err == io.EOF {
			return &xml.SyntaxError{Msg: "unexpected EOF inside <sheetData>", Line: inputLine(d)}
		}
		if err != nil {
			return err
		}
		switch t := token.(type) {
		case xml.EndElement:
			return nil
		case xml.StartElement:
			if t.Name.Local != "row" {
				if _, err := xmlnode.Read(d, t); err != nil {
					return err
				}
				continue
			}
			index := prev + 1
			if v, ok := attrValue(t.Attr, "r"); ok {
				index, err = strconv.Atoi(v)
				if err != nil || index < 1 || index > cellref.MaxRows {
					return errs.New(errs.Format, errs.ErrSchema, "invalid row number %q", v)
				}
			}
			if index <= prev {
				return errs.New(errs.Format, errs.ErrSchema, "row %d follows row %d", index, prev)
			}
			prev = index
			r := &row{index: index, attr: withoutAttrs(t.Attr, "r", "spans")}
			if len(r.attr) == 0 {
				r.attr = nil
			}
			if err := l.parseRow(ws, d, r, shared); err != nil {
				return err
			}
			if len(r.cells) > 0 || len(r.attr) > 0 {
				ws.rows = append(ws.rows, r)
			}
		}
	}
}

func (l *sheetLoader) parseRow(ws *Worksheet, d *xml.Decoder, r *row, shared map[string]sharedFormula) error {
	prev := 0
	for {
		token, err := d.RawToken()
		if err == io.EOF {
			return &xml.SyntaxError{Msg: "unexpected EOF inside <row>", Line: inputLine(d)}
		}
		if err != nil {
			return err
		}
		switch t := token.(type) {
		case xml.EndElement:
			return nil
		case xml.StartElement:
			n, err := xmlnode.Read(d, t)
			if err != nil {
				return err
			}
			if n.Local() != "c" {
				continue
			}
			c, err := l.parseCell(ws, n, r.index, prev, shared)
			if err != nil {
				return withLine(err, inputLine(d))
			}
			prev = c.Ref.Col
			r.cells = append(r.cells, c)
		}
	}
}

func (l *sheetLoader) parseCell(ws *Worksheet, n *xmlnode.Node, rowIndex, prev int, shared map[string]sharedFormula) (Cell, error) {
	ref := cellref.Ref{Row: rowIndex, Col: prev + 1}
	if v, ok := n.Get("r"); ok {
		var err error
		if ref, err = cellref.ParseRef(v); err != nil {
			return Cell{}, errs.New(errs.Format, errs.ErrSchema, "invalid cell reference %q", v)
		}
		if ref.Row != rowIndex {
			return Cell{}, errs.New(errs.Format, errs.ErrSchema, "cell %s inside row %d", v, rowIndex)
		}
	}
	addr := cellref.FormatAddress(ws.name, cellref.CellRange(ref))
	if ref.Col <= prev || ref.Col > cellref.MaxCols {
		return Cell{}, errs.New(errs.Format, errs.ErrSchema, "cell out of order").WithCell(addr)
	}

	c := Cell{Ref: ref}
	if v, ok := n.Get("s"); ok {
		s, err := strconv.Atoi(v)
		if err != nil || s < 0 || s >= l.styles {
			return Cell{}, errs.New(errs.Reference, errs.ErrInvalidIndex, "style %q of %d", v, l.styles).WithCell(addr)
		}
		c.Style = s
	}

	raw, hasValue := "", false
	if v := n.Child("v"); v != nil {
		raw, hasValue = v.Text, true
	}
	var meta cellMeta
	var value Value
	switch typ := n.Value("t"); typ {
	case "", "n":
		if hasValue && strings.TrimSpace(raw) != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return Cell{}, errs.New(errs.Format, errs.ErrSchema, "invalid number %q", raw).WithCell(addr)
			}
			value = Number(f)
		}
	case "s":
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || i < 0 || i >= l.sst.Len() {
			return Cell{}, errs.New(errs.Reference, errs.ErrInvalidIndex, "shared string %q of %d", raw, l.sst.Len()).WithCell(addr)
		}
		text, _ := l.sst.Get(i)
		value = Text(text)
		c.sst = i + 1
	case "str":
		value = Text(raw)
	case "inlineStr":
		value = Text(inlineText(n.Child("is")))
		meta.typ = typ
	case "d":
		value = Text(raw)
		meta.typ = typ
	case "b":
		value = Bool(isTrue(strings.TrimSpace(raw)))
	case "e":
		value = ErrorCode(strings.TrimSpace(raw))
	default:
		return Cell{}, errs.New(errs.Format, errs.ErrSchema, "unknown cell type %q", typ).WithCell(addr)
	}

	if f := n.Child("f"); f != nil {
		text, fAttr, err := l.readFormula(f, ref, shared)
		if err != nil {
			return Cell{}, errs.InCell(err, addr)
		}
		meta.fAttr = fAttr
		if value.Kind == KindEmpty {
			value = Formula(text)
		} else {
			value = FormulaWithResult(text, value)
		}
		c.sst = 0
		meta.typ = ""
	}
	c.Value = value

	meta.attr = withoutAttrs(n.Attr, "r", "s", "t")
	if len(meta.attr) == 0 {
		meta.attr = nil
	}
	if meta.typ != "" || meta.attr != nil || meta.fAttr != nil {
		c.meta = &meta
	}
	return c, nil
}

// readFormula returns the expression of an <f> element. Members of a
// shared group get the master's expression shifted to their position and
// lose their group attributes; array and data-table formulas keep theirs.
func (l *sheetLoader) readFormula(f *xmlnode.Node, ref cellref.Ref, shared map[string]sharedFormula) (string, []xml.Attr, error) {
	text := f.Text
	attr := f.Attr
	switch f.Value("t") {
	case "shared":
		si := f.Value("si")
		if text != "" {
			shared[si] = sharedFormula{ref: ref, text: text}
		} else {
			master, ok := shared[si]
			if !ok {
				return "", nil, errs.New(errs.Format, errs.ErrSchema, "shared formula %q has no master cell", si)
			}
			var err error
			if text, err = formula.Shift(master.text, ref.Row-master.ref.Row, ref.Col-master.ref.Col); err != nil {
				return "", nil, err
			}
		}
		attr = withoutAttrs(attr, "t", "si", "ref")
	case "dataTable":
		return text, attr, nil
	}
	if len(attr) == 0 {
		attr = nil
	}
	refs, err := formula.ExtractReferences(text)
	if err != nil {
		return "", nil, err
	}
	for _, r := range refs {
		if !r.External && r.Sheet != "" && !l.sheetExists(r.Sheet) {
			return "", nil, errs.New(errs.Reference, errs.ErrSheetNotFound, "%q in formula %q", r.Sheet, text)
		}
	}
	return text, attr, nil
}

// inlineText returns the plain text of an <is> element; phonetic runs
// are left out.
func inlineText(is *xmlnode.Node) string {
	if is == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range is.Children {
		switch c.Local() {
		case "t":
			b.WriteString(c.Text)
		case "r":
			if t := c.Child("t"); t != nil {
				b.WriteString(t.Text)
			}
		}
	}
	return b.String()
}

func (ws *Worksheet) readCols(n *xmlnode.Node) error {
	for _, c := range n.Children {
		if c.Local() != "col" {
			continue
		}
		lo, err1 := strconv.Atoi(c.Value("min"))
		hi, err2 := strconv.Atoi(c.Value("max"))
		if err1 != nil || err2 != nil || lo < 1 || hi < lo || hi > cellref.MaxCols {
			return errs.New(errs.Format, errs.ErrSchema, "invalid column span %q:%q", c.Value("min"), c.Value("max"))
		}
		if k := len(ws.cols); k > 0 && ws.cols[k-1].max >= lo {
			return errs.New(errs.Format, errs.ErrSchema, "column span %d:%d overlaps %d:%d", lo, hi, ws.cols[k-1].min, ws.cols[k-1].max)
		}
		ws.cols = append(ws.cols, colSpan{min: lo, max: hi, attr: withoutAttrs(c.Attr, "min", "max")})
	}
	return nil
}

func (ws *Worksheet) readMerges(n *xmlnode.Node) error {
	for _, c := range n.Children {
		if c.Local() != "mergeCell" {
			continue
		}
		r, err := cellref.ParseRange(c.Value("ref"))
		if err != nil {
			return errs.New(errs.Format, errs.ErrSchema, "invalid merge range %q", c.Value("ref"))
		}
		if r.IsCell() {
			continue
		}
		for _, m := range ws.merges {
			if m.Overlaps(r) {
				return errs.New(errs.Range, errs.ErrOverlap, "%s overlaps %s", r, m)
			}
		}
		ws.merges = append(ws.merges, r)
	}
	return nil
}

// flushSize is the buffered size at which a streamed part is written out.
const flushSize = 64 << 10

// partWriter buffers XML and writes it out in chunks.
type partWriter struct {
	w   io.Writer
	buf bytes.Buffer
	err error
}

func (pw *partWriter) flush(force bool) {
	if pw.err != nil || (!force && pw.buf.Len() < flushSize) {
		return
	}
	_, pw.err = pw.w.Write(pw.buf.Bytes())
	pw.buf.Reset()
}

// writeTo serializes the worksheet part. Elements kept from the file
// surround the generated dimension, cols, sheetData and mergeCells in
// schema order.
func (ws *Worksheet) writeTo(w io.Writer) error {
	pw := &partWriter{w: w}
	buf := &pw.buf
	p := ws.root.Name.Space
	if p != "" {
		p += ":"
	}
	buf.WriteString(opc.XMLHeader)
	xmlnode.Start(buf, ws.root.Name, ws.root.Attr)

	gen := []element{
		generated(worksheetOrder, "dimension", func(buf *bytes.Buffer) {
			ref := "A1"
			if dim, ok := ws.Dimension(); ok {
				ref = dim.String()
			}
			buf.WriteString("<" + p + `dimension ref="` + ref + `"/>`)
		}),
		generated(worksheetOrder, "sheetData", func(buf *bytes.Buffer) {
			if len(ws.rows) == 0 {
				buf.WriteString("<" + p + "sheetData/>")
				return
			}
			buf.WriteString("<" + p + "sheetData>")
			for _, r := range ws.rows {
				ws.writeRow(buf, p, r)
				pw.flush(false)
			}
			buf.WriteString("</" + p + "sheetData>")
		}),
	}
	if len(ws.cols) > 0 {
		gen = append(gen, generated(worksheetOrder, "cols", func(buf *bytes.Buffer) {
			buf.WriteString("<" + p + "cols>")
			for _, s := range ws.cols {
				buf.WriteString("<" + p + `col min="` + strconv.Itoa(s.min) + `" max="` + strconv.Itoa(s.max) + `"`)
				xmlnode.WriteAttrs(buf, s.attr)
				buf.WriteString("/>")
			}
			buf.WriteString("</" + p + "cols>")
		}))
	}
	if len(ws.merges) > 0 {
		gen = append(gen, generated(worksheetOrder, "mergeCells", func(buf *bytes.Buffer) {
			buf.WriteString("<" + p + `mergeCells count="` + strconv.Itoa(len(ws.merges)) + `">`)
			for _, m := range ws.merges {
				buf.WriteString("<" + p + `mergeCell ref="` + m.String() + `"/>`)
			}
			buf.WriteString("</" + p + "mergeCells>")
		}))
	}

	for _, e := range arrange(ws.preserved, gen) {
		writeElements(buf, []element{e})
		pw.flush(false)
	}
	xmlnode.End(buf, ws.root.Name)
	pw.flush(true)
	return pw.err
}

func (ws *Worksheet) writeRow(buf *bytes.Buffer, p string, r *row) {
	buf.WriteString("<" + p + `row r="` + strconv.Itoa(r.index) + `"`)
	xmlnode.WriteAttrs(buf, r.attr)
	if len(r.cells) == 0 {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	for i := range r.cells {
		writeCell(buf, p, &r.cells[i])
	}
	buf.WriteString("</" + p + "row>")
}

func writeCell(buf *bytes.Buffer, p string, c *Cell) {
	buf.WriteString("<" + p + `c r="` + c.Ref.String() + `"`)
	if c.Style != 0 {
		buf.WriteString(` s="` + strconv.Itoa(c.Style) + `"`)
	}
	v := c.Value
	var typ string
	if v.Kind == KindFormula {
		if v.Result != nil {
			typ = cellType(c, *v.Result)
		}
	} else {
		typ = cellType(c, v)
	}
	if typ != "" {
		buf.WriteString(` t="` + typ + `"`)
	}
	if c.meta != nil {
		xmlnode.WriteAttrs(buf, c.meta.attr)
	}
	if v.Kind == KindEmpty {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')

	if v.Kind == KindFormula {
		buf.WriteString("<" + p + "f")
		if c.meta != nil {
			xmlnode.WriteAttrs(buf, c.meta.fAttr)
		}
		if v.Formula == "" {
			buf.WriteString("/>")
		} else {
			buf.WriteByte('>')
			xml.EscapeText(buf, []byte(v.Formula))
			buf.WriteString("</" + p + "f>")
		}
		if v.Result != nil {
			writeValue(buf, p, rawValue(*v.Result))
		}
	} else if typ == "inlineStr" {
		buf.WriteString("<" + p + "is><" + p + "t")
		if v.Text != strings.TrimSpace(v.Text) {
			buf.WriteString(` xml:space="preserve"`)
		}
		buf.WriteByte('>')
		xml.EscapeText(buf, []byte(v.Text))
		buf.WriteString("</" + p + "t></" + p + "is>")
	} else if typ == "s" {
		writeValue(buf, p, strconv.Itoa(c.sst-1))
	} else {
		writeValue(buf, p, rawValue(v))
	}
	buf.WriteString("</" + p + "c>")
}

// cellType returns the t attribute for a stored value.
func cellType(c *Cell, v Value) string {
	switch v.Kind {
	case KindText:
		if c.Value.Kind == KindFormula {
			return "str"
		}
		if c.sst > 0 {
			return "s"
		}
		if c.meta != nil && c.meta.typ == "d" {
			return "d"
		}
		return "inlineStr"
	case KindBool:
		return "b"
	case KindError:
		return "e"
	}
	return ""
}

func rawValue(v Value) string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case KindText:
		return v.Text
	case KindBool:
		if v.Bool {
			return "1"
		}
		return "0"
	case KindError:
		return v.Error
	}
	return ""
}

func writeValue(buf *bytes.Buffer, p, s string) {
	buf.WriteString("<" + p + "v>")
	xml.EscapeText(buf, []byte(s))
	buf.WriteString("</" + p + "v>")
}
