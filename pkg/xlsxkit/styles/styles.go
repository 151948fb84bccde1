// Package styles implements the style registry of a workbook: number
// formats, fonts, fills, borders and the cell formats composing them.
//
// Every record is kept as the XML element it was read from, so records
// the registry does not model round-trip unchanged. Deduplication compares
// the canonical serialization of a record.
package styles

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"

	"github.com/tiendc/go-deepcopy"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/internal/xmlnode"
)

// NamespaceMain is the SpreadsheetML main namespace.
const NamespaceMain = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"

// Font describes a cell font. The zero value of Size and Name means
// Calibri 11.
type Font struct {
	Name      string  `json:"name,omitempty"`
	Size      float64 `json:"size,omitempty"`
	Bold      bool    `json:"bold,omitempty"`
	Italic    bool    `json:"italic,omitempty"`
	Strike    bool    `json:"strike,omitempty"`
	Underline string  `json:"underline,omitempty"`
	// Color is an ARGB hex value such as "FFFF0000".
	Color string `json:"color,omitempty"`
}

// Fill describes a pattern fill.
type Fill struct {
	Pattern string `json:"pattern,omitempty"`
	FgColor string `json:"fgColor,omitempty"`
	BgColor string `json:"bgColor,omitempty"`
}

// BorderEdge is one side of a border.
type BorderEdge struct {
	Style string `json:"style,omitempty"`
	Color string `json:"color,omitempty"`
}

// Border describes the borders of a cell.
type Border struct {
	Left     BorderEdge `json:"left"`
	Right    BorderEdge `json:"right"`
	Top      BorderEdge `json:"top"`
	Bottom   BorderEdge `json:"bottom"`
	Diagonal BorderEdge `json:"diagonal"`
}

// Alignment describes text placement inside a cell.
type Alignment struct {
	Horizontal   string `json:"horizontal,omitempty"`
	Vertical     string `json:"vertical,omitempty"`
	WrapText     bool   `json:"wrapText,omitempty"`
	ShrinkToFit  bool   `json:"shrinkToFit,omitempty"`
	Indent       int    `json:"indent,omitempty"`
	TextRotation int    `json:"textRotation,omitempty"`
}

// Protection describes cell protection.
type Protection struct {
	Locked bool `json:"locked"`
	Hidden bool `json:"hidden"`
}

// Style is a complete cell format. Nil components select the workbook
// default. NumFmt takes precedence over NumFmtID when both are set.
type Style struct {
	NumFmtID   int         `json:"numFmtId"`
	NumFmt     string      `json:"numFmt,omitempty"`
	Font       *Font       `json:"font,omitempty"`
	Fill       *Fill       `json:"fill,omitempty"`
	Border     *Border     `json:"border,omitempty"`
	Alignment  *Alignment  `json:"alignment,omitempty"`
	Protection *Protection `json:"protection,omitempty"`
}

type numFmt struct {
	id   int
	code string
}

// pool is an ordered list of records with a reverse index over their
// serialization. Duplicates read from a file keep their own index.
type pool struct {
	name  xml.Name
	attr  []xml.Attr
	items []*xmlnode.Node
	index map[string]int
}

func newPool(local string) *pool {
	return &pool{name: xml.Name{Local: local}, index: make(map[string]int)}
}

func (p *pool) append(n *xmlnode.Node) int {
	i := len(p.items)
	p.items = append(p.items, n)
	if _, ok := p.index[n.String()]; !ok {
		p.index[n.String()] = i
	}
	return i
}

func (p *pool) intern(n *xmlnode.Node) int {
	if i, ok := p.index[n.String()]; ok {
		return i
	}
	return p.append(n)
}

// Registry owns the styles of one workbook.
type Registry struct {
	root      xml.StartElement
	numFmts   []numFmt
	fonts     *pool
	fills     *pool
	borders   *pool
	cellXfs   *pool
	preserved map[string]*xmlnode.Node
	extra     []*xmlnode.Node
	resolved  []*Style
}

func newRegistry() *Registry {
	return &Registry{
		root: xml.StartElement{
			Name: xml.Name{Local: "styleSheet"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: NamespaceMain}},
		},
		fonts:     newPool("fonts"),
		fills:     newPool("fills"),
		borders:   newPool("borders"),
		cellXfs:   newPool("cellXfs"),
		preserved: make(map[string]*xmlnode.Node),
	}
}

// Default returns the registry of a new workbook: Calibri 11, the two
// mandatory fills, an empty border and the Normal cell style.
func Default() *Registry {
	r := newRegistry()
	r.ensureDefaults()
	return r
}

func (r *Registry) ensureDefaults() {
	if len(r.fonts.items) == 0 {
		r.fonts.append(xmlnode.New("font").Add(
			xmlnode.New("sz", "val", "11"),
			xmlnode.New("color", "theme", "1"),
			xmlnode.New("name", "val", "Calibri"),
			xmlnode.New("family", "val", "2"),
			xmlnode.New("scheme", "val", "minor"),
		))
	}
	if len(r.fills.items) == 0 {
		r.fills.append(xmlnode.New("fill").Add(xmlnode.New("patternFill", "patternType", "none")))
		r.fills.append(xmlnode.New("fill").Add(xmlnode.New("patternFill", "patternType", "gray125")))
	}
	if len(r.borders.items) == 0 {
		r.borders.append(xmlnode.New("border").Add(
			xmlnode.New("left"), xmlnode.New("right"), xmlnode.New("top"),
			xmlnode.New("bottom"), xmlnode.New("diagonal"),
		))
	}
	if _, ok := r.preserved["cellStyleXfs"]; !ok {
		r.preserved["cellStyleXfs"] = xmlnode.New("cellStyleXfs", "count", "1").Add(
			xmlnode.New("xf", "numFmtId", "0", "fontId", "0", "fillId", "0", "borderId", "0"))
	}
	if len(r.cellXfs.items) == 0 {
		r.cellXfs.append(xmlnode.New("xf", "numFmtId", "0", "fontId", "0", "fillId", "0", "borderId", "0", "xfId", "0"))
	}
	if _, ok := r.preserved["cellStyles"]; !ok {
		r.preserved["cellStyles"] = xmlnode.New("cellStyles", "count", "1").Add(
			xmlnode.New("cellStyle", "name", "Normal", "xfId", "0", "builtinId", "0"))
	}
}

// Len returns the number of cell formats.
func (r *Registry) Len() int {
	return len(r.cellXfs.items)
}

// NumberFormat returns the code of a number format id, or "" for reserved
// locale-specific ids.
func (r *Registry) NumberFormat(id int) string {
	for _, nf := range r.numFmts {
		if nf.id == id {
			return nf.code
		}
	}
	code, _ := BuiltInNumFmt(id)
	return code
}

func (r *Registry) hasNumFmt(id int) bool {
	if id < FirstCustomNumFmtID {
		return id >= 0
	}
	for _, nf := range r.numFmts {
		if nf.id == id {
			return true
		}
	}
	return false
}

// numFmtID returns the id for code, and whether a new custom format would
// have to be added for it.
func (r *Registry) numFmtID(code string) (int, bool) {
	if id, ok := builtInNumFmtID[code]; ok {
		return id, false
	}
	next := FirstCustomNumFmtID
	for _, nf := range r.numFmts {
		if nf.code == code {
			return nf.id, false
		}
		if nf.id >= next {
			next = nf.id + 1
		}
	}
	return next, true
}

// Register returns the index of the cell format described by s, adding
// it and any new components when no equal format exists.
func (r *Registry) Register(s Style) (int, error) {
	numFmtID := s.NumFmtID
	newNumFmt := false
	if s.NumFmt != "" {
		numFmtID, newNumFmt = r.numFmtID(s.NumFmt)
	} else if !r.hasNumFmt(numFmtID) {
		return 0, errs.New(errs.Reference, errs.ErrInvalidIndex, "number format %d", numFmtID)
	}

	var font, fill, border *xmlnode.Node
	if s.Font != nil {
		font = buildFont(s.Font)
	}
	if s.Fill != nil {
		fill = buildFill(s.Fill)
	}
	if s.Border != nil {
		border = buildBorder(s.Border)
	}

	if newNumFmt {
		r.numFmts = append(r.numFmts, numFmt{id: numFmtID, code: s.NumFmt})
	}
	fontID, fillID, borderID := 0, 0, 0
	if font != nil {
		fontID = r.fonts.intern(font)
	}
	if fill != nil {
		fillID = r.fills.intern(fill)
	}
	if border != nil {
		borderID = r.borders.intern(border)
	}

	xf := xmlnode.New("xf",
		"numFmtId", strconv.Itoa(numFmtID),
		"fontId", strconv.Itoa(fontID),
		"fillId", strconv.Itoa(fillID),
		"borderId", strconv.Itoa(borderID),
		"xfId", "0",
	)
	if numFmtID != 0 {
		xf.Set("applyNumberFormat", "1")
	}
	if fontID != 0 {
		xf.Set("applyFont", "1")
	}
	if fillID != 0 {
		xf.Set("applyFill", "1")
	}
	if borderID != 0 {
		xf.Set("applyBorder", "1")
	}
	if s.Alignment != nil {
		xf.Set("applyAlignment", "1")
		xf.Add(buildAlignment(s.Alignment))
	}
	if s.Protection != nil {
		xf.Set("applyProtection", "1")
		xf.Add(buildProtection(s.Protection))
	}
	return r.cellXfs.intern(xf), nil
}

// Resolve returns the fully materialized cell format at index. The result
// shares no memory with the registry.
func (r *Registry) Resolve(index int) (Style, error) {
	if index < 0 || index >= len(r.cellXfs.items) {
		return Style{}, errs.New(errs.Reference, errs.ErrInvalidIndex, "style %d of %d", index, len(r.cellXfs.items))
	}
	for len(r.resolved) < len(r.cellXfs.items) {
		r.resolved = append(r.resolved, nil)
	}
	if r.resolved[index] == nil {
		r.resolved[index] = r.materialize(r.cellXfs.items[index])
	}
	var out Style
	if err := deepcopy.Copy(&out, *r.resolved[index]); err != nil {
		return Style{}, err
	}
	return out, nil
}

// NumFmtOf returns the number format id of the cell format at index, or 0
// for an invalid index.
func (r *Registry) NumFmtOf(index int) int {
	if index < 0 || index >= len(r.cellXfs.items) {
		return 0
	}
	return atoi(r.cellXfs.items[index].Value("numFmtId"))
}

func (r *Registry) materialize(xf *xmlnode.Node) *Style {
	s := &Style{NumFmtID: atoi(xf.Value("numFmtId"))}
	s.NumFmt = r.NumberFormat(s.NumFmtID)
	if i := atoi(xf.Value("fontId")); i < len(r.fonts.items) {
		s.Font = readFont(r.fonts.items[i])
	}
	if i := atoi(xf.Value("fillId")); i < len(r.fills.items) {
		s.Fill = readFill(r.fills.items[i])
	}
	if i := atoi(xf.Value("borderId")); i < len(r.borders.items) {
		s.Border = readBorder(r.borders.items[i])
	}
	if n := xf.Child("alignment"); n != nil {
		s.Alignment = readAlignment(n)
	}
	if n := xf.Child("protection"); n != nil {
		s.Protection = &Protection{Locked: n.Value("locked") != "0", Hidden: isTrue(n.Value("hidden"))}
	}
	return s
}

// Parse reads a styles part.
func Parse(rd io.Reader) (*Registry, error) {
	d := xml.NewDecoder(rd)
	root, err := xmlnode.NextStart(d)
	if err != nil {
		return nil, err
	}
	if root.Name.Local != "styleSheet" {
		return nil, errs.New(errs.Format, errs.ErrSchema, "root element <%s>, want <styleSheet>", root.Name.Local)
	}
	r := newRegistry()
	r.root = root.Copy()
	if !hasDefaultNamespace(r.root.Attr) {
		r.root.Attr = append(r.root.Attr, xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: NamespaceMain})
	}

	for {
		token, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if _, ok := token.(xml.EndElement); ok {
			break
		}
		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		n, err := xmlnode.Read(d, se)
		if err != nil {
			return nil, err
		}
		r.addSection(n)
	}
	r.ensureDefaults()
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func hasDefaultNamespace(attrs []xml.Attr) bool {
	for _, a := range attrs {
		if a.Name.Space == "" && a.Name.Local == "xmlns" {
			return true
		}
	}
	return false
}

func (r *Registry) addSection(n *xmlnode.Node) {
	var p *pool
	switch n.Local() {
	case "numFmts":
		for _, c := range n.Children {
			if id, err := strconv.Atoi(c.Value("numFmtId")); err == nil {
				r.numFmts = append(r.numFmts, numFmt{id: id, code: c.Value("formatCode")})
			}
		}
		return
	case "fonts":
		p = r.fonts
	case "fills":
		p = r.fills
	case "borders":
		p = r.borders
	case "cellXfs":
		p = r.cellXfs
	case "cellStyleXfs", "cellStyles", "dxfs", "tableStyles", "colors", "extLst":
		r.preserved[n.Local()] = n
		return
	default:
		r.extra = append(r.extra, n)
		return
	}
	p.name = n.Name
	p.attr = nil
	for _, a := range n.Attr {
		if a.Name.Space == "" && a.Name.Local == "count" {
			continue
		}
		p.attr = append(p.attr, a)
	}
	for _, c := range n.Children {
		p.append(c)
	}
}

func (r *Registry) validate() error {
	for i, xf := range r.cellXfs.items {
		checks := []struct {
			attr string
			n    int
		}{
			{"fontId", len(r.fonts.items)},
			{"fillId", len(r.fills.items)},
			{"borderId", len(r.borders.items)},
		}
		for _, c := range checks {
			if v := atoi(xf.Value(c.attr)); v < 0 || v >= c.n {
				return errs.New(errs.Reference, errs.ErrInvalidIndex, "cellXfs[%d] %s %d of %d", i, c.attr, v, c.n)
			}
		}
		if id := atoi(xf.Value("numFmtId")); !r.hasNumFmt(id) {
			return errs.New(errs.Reference, errs.ErrInvalidIndex, "cellXfs[%d] numFmtId %d is not defined", i, id)
		}
	}
	return nil
}

var sectionOrder = []string{"cellStyles", "dxfs", "tableStyles", "colors"}

// WriteTo writes the registry as a styles part.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	xmlnode.Start(&buf, r.root.Name, r.root.Attr)
	if len(r.numFmts) > 0 {
		buf.WriteString(`<numFmts count="` + strconv.Itoa(len(r.numFmts)) + `">`)
		for _, nf := range r.numFmts {
			xmlnode.New("numFmt", "numFmtId", strconv.Itoa(nf.id), "formatCode", nf.code).Write(&buf)
		}
		buf.WriteString("</numFmts>")
	}
	r.fonts.write(&buf)
	r.fills.write(&buf)
	r.borders.write(&buf)
	if n, ok := r.preserved["cellStyleXfs"]; ok {
		n.Write(&buf)
	}
	r.cellXfs.write(&buf)
	for _, name := range sectionOrder {
		if n, ok := r.preserved[name]; ok {
			n.Write(&buf)
		}
	}
	for _, n := range r.extra {
		n.Write(&buf)
	}
	if n, ok := r.preserved["extLst"]; ok {
		n.Write(&buf)
	}
	xmlnode.End(&buf, r.root.Name)
	return buf.WriteTo(w)
}

func (p *pool) write(buf *bytes.Buffer) {
	attrs := append([]xml.Attr{{Name: xml.Name{Local: "count"}, Value: strconv.Itoa(len(p.items))}}, p.attr...)
	xmlnode.Start(buf, p.name, attrs)
	for _, n := range p.items {
		n.Write(buf)
	}
	xmlnode.End(buf, p.name)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func isTrue(s string) bool {
	return s == "1" || s == "true"
}
