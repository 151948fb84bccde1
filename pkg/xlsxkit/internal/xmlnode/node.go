// Package xmlnode holds XML elements as small trees that are written back
// exactly as they were read: prefixes, attribute order and namespace
// declarations are kept verbatim.
package xmlnode

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Node is one element. Name.Space holds the prefix as written, not the
// namespace URI. Text is only kept for elements without child elements.
type Node struct {
	Name     xml.Name
	Attr     []xml.Attr
	Children []*Node
	Text     string
}

// New builds an unprefixed element from name and attribute pairs.
func New(local string, attrs ...string) *Node {
	n := &Node{Name: xml.Name{Local: local}}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, xml.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	return n
}

// Read consumes the content of start from d, which must be used through
// RawToken only, and returns the whole element.
func Read(d *xml.Decoder, start xml.StartElement) (*Node, error) {
	n := &Node{Name: start.Name, Attr: append([]xml.Attr(nil), start.Attr...)}
	var text strings.Builder
	for {
		token, err := d.RawToken()
		if err == io.EOF {
			return nil, &xml.SyntaxError{Msg: "unexpected EOF inside <" + qname(start.Name) + ">", Line: line(d)}
		}
		if err != nil {
			return nil, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			child, err := Read(d, t)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		case xml.EndElement:
			if t.Name != start.Name {
				return nil, &xml.SyntaxError{
					Msg:  fmt.Sprintf("element <%s> closed by </%s>", qname(start.Name), qname(t.Name)),
					Line: line(d),
				}
			}
			if len(n.Children) == 0 {
				n.Text = text.String()
			}
			return n, nil
		case xml.CharData:
			text.Write(t)
		}
	}
}

func line(d *xml.Decoder) int {
	l, _ := d.InputPos()
	return l
}

// Local returns the element name without prefix.
func (n *Node) Local() string {
	return n.Name.Local
}

// Get returns the value of an unprefixed attribute.
func (n *Node) Get(local string) (string, bool) {
	for _, a := range n.Attr {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// Value returns the attribute value, or "" when absent.
func (n *Node) Value(local string) string {
	v, _ := n.Get(local)
	return v
}

// Set replaces or appends an unprefixed attribute.
func (n *Node) Set(local, value string) {
	for i, a := range n.Attr {
		if a.Name.Space == "" && a.Name.Local == local {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xml.Attr{Name: xml.Name{Local: local}, Value: value})
}

// Unset removes an unprefixed attribute.
func (n *Node) Unset(local string) {
	for i, a := range n.Attr {
		if a.Name.Space == "" && a.Name.Local == local {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Child returns the first child with the given local name.
func (n *Node) Child(local string) *Node {
	for _, c := range n.Children {
		if c.Name.Local == local {
			return c
		}
	}
	return nil
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Write serializes the element.
func (n *Node) Write(buf *bytes.Buffer) {
	buf.WriteByte('<')
	buf.WriteString(qname(n.Name))
	WriteAttrs(buf, n.Attr)
	if len(n.Children) == 0 && n.Text == "" {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	if len(n.Children) == 0 {
		xml.EscapeText(buf, []byte(n.Text))
	}
	for _, c := range n.Children {
		c.Write(buf)
	}
	buf.WriteString("</")
	buf.WriteString(qname(n.Name))
	buf.WriteByte('>')
}

// String returns the serialized element. Equal strings mean structurally
// equal elements.
func (n *Node) String() string {
	var buf bytes.Buffer
	n.Write(&buf)
	return buf.String()
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	c := &Node{Name: n.Name, Attr: append([]xml.Attr(nil), n.Attr...), Text: n.Text}
	for _, child := range n.Children {
		c.Children = append(c.Children, child.Clone())
	}
	return c
}

// WriteAttrs writes attributes with a leading space each.
func WriteAttrs(buf *bytes.Buffer, attrs []xml.Attr) {
	for _, a := range attrs {
		buf.WriteByte(' ')
		buf.WriteString(qname(a.Name))
		buf.WriteString(`="`)
		xml.EscapeText(buf, []byte(a.Value))
		buf.WriteByte('"')
	}
}

// Start writes an opening tag.
func Start(buf *bytes.Buffer, name xml.Name, attrs []xml.Attr) {
	buf.WriteByte('<')
	buf.WriteString(qname(name))
	WriteAttrs(buf, attrs)
	buf.WriteByte('>')
}

// End writes a closing tag.
func End(buf *bytes.Buffer, name xml.Name) {
	buf.WriteString("</")
	buf.WriteString(qname(name))
	buf.WriteByte('>')
}

func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// NextStart advances d to the next start element, skipping prolog,
// comments and character data.
func NextStart(d *xml.Decoder) (xml.StartElement, error) {
	for {
		token, err := d.RawToken()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := token.(xml.StartElement); ok {
			return se, nil
		}
	}
}

// IsValidText reports whether s is valid UTF-8 made only of characters
// XML 1.0 allows in character data.
func IsValidText(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r == '\t', r == '\n', r == '\r':
		case r >= 0x20 && r <= 0xD7FF, r >= 0xE000 && r <= 0xFFFD, r >= 0x10000 && r <= utf8.MaxRune:
		default:
			return false
		}
	}
	return true
}
