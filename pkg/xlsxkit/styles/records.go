package styles

import (
	"strconv"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/internal/xmlnode"
)

func buildFont(f *Font) *xmlnode.Node {
	n := xmlnode.New("font")
	if f.Bold {
		n.Add(xmlnode.New("b"))
	}
	if f.Italic {
		n.Add(xmlnode.New("i"))
	}
	if f.Strike {
		n.Add(xmlnode.New("strike"))
	}
	switch f.Underline {
	case "":
	case "single":
		n.Add(xmlnode.New("u"))
	default:
		n.Add(xmlnode.New("u", "val", f.Underline))
	}
	size := f.Size
	if size == 0 {
		size = 11
	}
	n.Add(xmlnode.New("sz", "val", strconv.FormatFloat(size, 'f', -1, 64)))
	if f.Color != "" {
		n.Add(xmlnode.New("color", "rgb", f.Color))
	}
	name := f.Name
	if name == "" {
		name = "Calibri"
	}
	n.Add(xmlnode.New("name", "val", name))
	return n
}

func readFont(n *xmlnode.Node) *Font {
	f := &Font{}
	for _, c := range n.Children {
		switch c.Local() {
		case "b":
			f.Bold = flag(c)
		case "i":
			f.Italic = flag(c)
		case "strike":
			f.Strike = flag(c)
		case "u":
			f.Underline = "single"
			if v, ok := c.Get("val"); ok {
				f.Underline = v
			}
			if f.Underline == "none" {
				f.Underline = ""
			}
		case "sz":
			f.Size, _ = strconv.ParseFloat(c.Value("val"), 64)
		case "color":
			f.Color = c.Value("rgb")
		case "name":
			f.Name = c.Value("val")
		}
	}
	return f
}

// flag reads a boolean property element such as <b/> or <b val="0"/>.
func flag(n *xmlnode.Node) bool {
	v, ok := n.Get("val")
	return !ok || isTrue(v)
}

func buildFill(f *Fill) *xmlnode.Node {
	pattern := f.Pattern
	if pattern == "" {
		pattern = "none"
		if f.FgColor != "" {
			pattern = "solid"
		}
	}
	pf := xmlnode.New("patternFill", "patternType", pattern)
	if f.FgColor != "" {
		pf.Add(xmlnode.New("fgColor", "rgb", f.FgColor))
	}
	if f.BgColor != "" {
		pf.Add(xmlnode.New("bgColor", "rgb", f.BgColor))
	}
	return xmlnode.New("fill").Add(pf)
}

func readFill(n *xmlnode.Node) *Fill {
	f := &Fill{}
	if n.Child("gradientFill") != nil {
		f.Pattern = "gradient"
		return f
	}
	pf := n.Child("patternFill")
	if pf == nil {
		return f
	}
	f.Pattern = pf.Value("patternType")
	if c := pf.Child("fgColor"); c != nil {
		f.FgColor = c.Value("rgb")
	}
	if c := pf.Child("bgColor"); c != nil {
		f.BgColor = c.Value("rgb")
	}
	return f
}

func buildBorder(b *Border) *xmlnode.Node {
	n := xmlnode.New("border")
	edges := []struct {
		name string
		edge BorderEdge
	}{
		{"left", b.Left}, {"right", b.Right}, {"top", b.Top}, {"bottom", b.Bottom}, {"diagonal", b.Diagonal},
	}
	for _, e := range edges {
		en := xmlnode.New(e.name)
		if e.edge.Style != "" {
			en.Set("style", e.edge.Style)
		}
		if e.edge.Color != "" {
			en.Add(xmlnode.New("color", "rgb", e.edge.Color))
		}
		n.Add(en)
	}
	return n
}

func readBorder(n *xmlnode.Node) *Border {
	b := &Border{}
	for _, c := range n.Children {
		edge := BorderEdge{Style: c.Value("style")}
		if color := c.Child("color"); color != nil {
			edge.Color = color.Value("rgb")
		}
		switch c.Local() {
		case "left", "start":
			b.Left = edge
		case "right", "end":
			b.Right = edge
		case "top":
			b.Top = edge
		case "bottom":
			b.Bottom = edge
		case "diagonal":
			b.Diagonal = edge
		}
	}
	return b
}

func buildAlignment(a *Alignment) *xmlnode.Node {
	n := xmlnode.New("alignment")
	if a.Horizontal != "" {
		n.Set("horizontal", a.Horizontal)
	}
	if a.Vertical != "" {
		n.Set("vertical", a.Vertical)
	}
	if a.TextRotation != 0 {
		n.Set("textRotation", strconv.Itoa(a.TextRotation))
	}
	if a.WrapText {
		n.Set("wrapText", "1")
	}
	if a.Indent != 0 {
		n.Set("indent", strconv.Itoa(a.Indent))
	}
	if a.ShrinkToFit {
		n.Set("shrinkToFit", "1")
	}
	return n
}

func readAlignment(n *xmlnode.Node) *Alignment {
	return &Alignment{
		Horizontal:   n.Value("horizontal"),
		Vertical:     n.Value("vertical"),
		WrapText:     isTrue(n.Value("wrapText")),
		ShrinkToFit:  isTrue(n.Value("shrinkToFit")),
		Indent:       atoi(n.Value("indent")),
		TextRotation: atoi(n.Value("textRotation")),
	}
}

func buildProtection(p *Protection) *xmlnode.Node {
	n := xmlnode.New("protection")
	if !p.Locked {
		n.Set("locked", "0")
	}
	if p.Hidden {
		n.Set("hidden", "1")
	}
	return n
}
