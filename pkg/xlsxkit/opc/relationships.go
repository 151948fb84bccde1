package opc

import (
	"bytes"
	"encoding/xml"
	"io"
	"path"
	"strconv"
	"strings"
)

// Relationship types, transitional namespace. TypeIs also accepts the
// strict-conformance namespace.
const (
	RelTypeOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	RelTypeWorksheet      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet"
	RelTypeChartsheet     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/chartsheet"
	RelTypeDialogsheet    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/dialogsheet"
	RelTypeMacrosheet     = "http://schemas.microsoft.com/office/2006/relationships/xlMacrosheet"
	RelTypeStyles         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	RelTypeSharedStrings  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings"
)

// TargetModeExternal marks relationships pointing outside the package.
const TargetModeExternal = "External"

// xlsxRelationships contains the relationships of a source part.
type xlsxRelationships struct {
	XMLName       xml.Name           `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Relationships []xlsxRelationship `xml:"Relationship"`
}

type xlsxRelationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:",attr"`
	Target     string `xml:",attr"`
	TargetMode string `xml:",attr,omitempty"`
}

// Relationship links a source part to a target.
type Relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

// External reports whether the target lies outside the package.
func (r Relationship) External() bool {
	return r.TargetMode == TargetModeExternal
}

// TypeIs compares relationship types by their final path segment, so the
// transitional and strict namespaces of the same type match.
func TypeIs(relType, want string) bool {
	return relType == want || path.Base(relType) == path.Base(want)
}

// Relationships is the ordered relationship set of one source part.
type Relationships struct {
	items []Relationship
}

// NewRelationships returns an empty set.
func NewRelationships() *Relationships {
	return &Relationships{}
}

// ParseRelationships decodes a .rels stream.
func ParseRelationships(r io.Reader) (*Relationships, error) {
	var x xlsxRelationships
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, err
	}
	rels := &Relationships{}
	for _, rel := range x.Relationships {
		rels.items = append(rels.items, Relationship(rel))
	}
	return rels, nil
}

// Len returns the number of relationships.
func (r *Relationships) Len() int {
	return len(r.items)
}

// All returns a copy of the relationships in order.
func (r *Relationships) All() []Relationship {
	return append([]Relationship(nil), r.items...)
}

// Get looks a relationship up by id.
func (r *Relationships) Get(id string) (Relationship, bool) {
	for _, rel := range r.items {
		if rel.ID == id {
			return rel, true
		}
	}
	return Relationship{}, false
}

// FirstOfType returns the first relationship of the given type.
func (r *Relationships) FirstOfType(relType string) (Relationship, bool) {
	for _, rel := range r.items {
		if TypeIs(rel.Type, relType) {
			return rel, true
		}
	}
	return Relationship{}, false
}

// NextID returns an unused id of the form rIdN.
func (r *Relationships) NextID() string {
	n := 0
	for _, rel := range r.items {
		if v, err := strconv.Atoi(strings.TrimPrefix(rel.ID, "rId")); err == nil && v > n {
			n = v
		}
	}
	return "rId" + strconv.Itoa(n+1)
}

// Add appends a relationship with a fresh id and returns the id.
func (r *Relationships) Add(relType, target string) string {
	id := r.NextID()
	r.items = append(r.items, Relationship{ID: id, Type: relType, Target: target})
	return id
}

// Set replaces the relationship with the same id, or appends it.
func (r *Relationships) Set(rel Relationship) {
	for i := range r.items {
		if r.items[i].ID == rel.ID {
			r.items[i] = rel
			return
		}
	}
	r.items = append(r.items, rel)
}

// Remove deletes the relationship with the given id.
func (r *Relationships) Remove(id string) {
	for i := range r.items {
		if r.items[i].ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return
		}
	}
}

// WriteTo encodes the set as a .rels stream.
func (r *Relationships) WriteTo(w io.Writer) (int64, error) {
	x := xlsxRelationships{}
	for _, rel := range r.items {
		x.Relationships = append(x.Relationships, xlsxRelationship(rel))
	}
	var buf bytes.Buffer
	buf.WriteString(XMLHeader)
	if err := xml.NewEncoder(&buf).Encode(x); err != nil {
		return 0, err
	}
	return buf.WriteTo(w)
}

// RelsPartName returns the name of the relationships part belonging to
// source. The package itself is the empty source.
func RelsPartName(source string) string {
	if source == "" {
		return "_rels/.rels"
	}
	dir, file := path.Split(source)
	return dir + "_rels/" + file + ".rels"
}

// ResolveTarget resolves a relationship target against its source part.
func ResolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return path.Clean(target[1:])
	}
	return path.Clean(path.Join(path.Dir(source), target))
}

// RelativeTarget expresses part as a target relative to source, stepping
// up with ".." where the two live in different directories.
func RelativeTarget(source, part string) string {
	dir := path.Dir(source)
	if dir == "." {
		return part
	}
	from := strings.Split(dir, "/")
	to := strings.Split(part, "/")
	common := 0
	for common < len(from) && common < len(to)-1 && from[common] == to[common] {
		common++
	}
	return strings.Repeat("../", len(from)-common) + strings.Join(to[common:], "/")
}
