package xmlnode

import (
	"encoding/xml"
	"errors"
	"strings"
	"testing"
)

func parse(t *testing.T, s string) (*Node, error) {
	t.Helper()
	d := xml.NewDecoder(strings.NewReader(s))
	start, err := NextStart(d)
	if err != nil {
		t.Fatalf("NextStart failed: %v", err)
	}
	return Read(d, start)
}

func TestRoundTrip(t *testing.T) {
	tests := []string{
		`<x:ext uri="{A}" xmlns:x="urn:x"><x:item b="2" a="1"/><note>a &amp; b &lt; c</note></x:ext>`,
		`<empty/>`,
		`<mc:AlternateContent xmlns:mc="urn:mc"><mc:Choice Requires="x14"><v/></mc:Choice><mc:Fallback/></mc:AlternateContent>`,
	}
	for _, input := range tests {
		n, err := parse(t, `<?xml version="1.0"?>`+input)
		if err != nil {
			t.Fatalf("Read(%q) failed: %v", input, err)
		}
		if got := n.String(); got != input {
			t.Errorf("String() = %q, want %q", got, input)
		}
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name, input string
	}{
		{"mismatched end", "<a>\n<b></c></a>"},
		{"unexpected EOF", "<a><b/>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.input)
			var syntax *xml.SyntaxError
			if !errors.As(err, &syntax) {
				t.Fatalf("error = %v, want *xml.SyntaxError", err)
			}
			if syntax.Line < 1 {
				t.Errorf("Line = %d", syntax.Line)
			}
		})
	}
}

func TestAttributes(t *testing.T) {
	n := New("col", "min", "1", "max", "3")
	n.Set("width", "12")
	n.Set("min", "2")
	n.Unset("max")
	n.Unset("missing")
	if got := n.String(); got != `<col min="2" width="12"/>` {
		t.Errorf("String() = %s", got)
	}
	if _, ok := n.Get("max"); ok {
		t.Error("Get found a removed attribute")
	}
	if n.Value("width") != "12" || n.Value("nope") != "" {
		t.Errorf("Value() = %q, %q", n.Value("width"), n.Value("nope"))
	}
}

func TestCloneIsDeep(t *testing.T) {
	n, err := parse(t, `<a k="v"><b><c/></b></a>`)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	c := n.Clone()
	c.Set("k", "changed")
	c.Child("b").Add(New("d"))
	if got := n.String(); got != `<a k="v"><b><c/></b></a>` {
		t.Errorf("original changed: %s", got)
	}
	if got := c.String(); got != `<a k="changed"><b><c/><d/></b></a>` {
		t.Errorf("clone = %s", got)
	}
	if n.Child("missing") != nil {
		t.Error("Child found a missing element")
	}
}
