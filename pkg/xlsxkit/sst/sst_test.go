package sst

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
)

func TestInternIsIdempotent(t *testing.T) {
	table := New()
	a := table.Intern("Hello")
	b := table.Intern("World")
	again := table.Intern("Hello")

	if a != 0 || b != 1 {
		t.Errorf("indices = %d, %d, want 0, 1", a, b)
	}
	if again != a {
		t.Errorf("second Intern(Hello) = %d, want %d", again, a)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
}

func TestGetInvalidIndex(t *testing.T) {
	table := New()
	table.Intern("x")
	for _, i := range []int{-1, 1, 100} {
		_, err := table.Get(i)
		if !errors.Is(err, errs.ErrInvalidIndex) || !errs.IsKind(err, errs.Reference) {
			t.Errorf("Get(%d) error = %v, want reference/ErrInvalidIndex", i, err)
		}
	}
}

func TestParsePreservesOrderAndRichText(t *testing.T) {
	input := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="5" uniqueCount="4">` +
		`<si><t>beta</t></si>` +
		`<si><t xml:space="preserve"> padded </t></si>` +
		`<si><r><rPr><b/></rPr><t>bold</t></r><r><t> tail</t></r></si>` +
		`<si><t>alpha</t></si>` +
		`</sst>`

	table, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	var got []string
	for _, text := range table.All() {
		got = append(got, text)
	}
	want := []string{"beta", " padded ", "bold tail", "alpha"}
	if !slices.Equal(got, want) {
		t.Errorf("All() = %q, want %q", got, want)
	}
	if !table.IsRich(2) || table.IsRich(0) {
		t.Error("rich-text detection wrong")
	}
	if table.RefCount() != 5 {
		t.Errorf("RefCount() = %d, want 5", table.RefCount())
	}

	// Rich entries are never dedup targets.
	if i := table.Intern("bold tail"); i != 4 {
		t.Errorf("Intern(bold tail) = %d, want 4", i)
	}
	if i := table.Intern("alpha"); i != 3 {
		t.Errorf("Intern(alpha) = %d, want 3", i)
	}

	var buf bytes.Buffer
	if _, err := table.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `<r><rPr><b/></rPr><t>bold</t></r>`) {
		t.Errorf("rich run not preserved: %s", out)
	}
	if !strings.Contains(out, `<t xml:space="preserve"> padded </t>`) {
		t.Errorf("whitespace not preserved: %s", out)
	}

	back, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse of written table failed: %v", err)
	}
	for i, text := range table.All() {
		if got, _ := back.Get(i); got != text {
			t.Errorf("index %d = %q after round trip, want %q", i, got, text)
		}
	}
}

func TestWriteIsStable(t *testing.T) {
	table := New()
	for _, s := range []string{"a", "b & c", "<tag>", "a"} {
		table.Intern(s)
	}
	table.SetRefCount(4)

	var first bytes.Buffer
	table.WriteTo(&first)
	back, err := Parse(bytes.NewReader(first.Bytes()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var second bytes.Buffer
	back.WriteTo(&second)
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Errorf("output differs after reload:\n%s\n%s", first.String(), second.String())
	}
}
