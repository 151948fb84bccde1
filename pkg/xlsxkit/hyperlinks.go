package xlsxkit

import (
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
)

// Hyperlinks returns the hyperlink targets of the sheet keyed by the top
// left cell of each link. External links resolve through the sheet's
// relationships; links inside the workbook yield their location, such as
// "Sheet2!A1".
func (ws *Worksheet) Hyperlinks() map[cellref.Ref]string {
	links := make(map[cellref.Ref]string)
	rootNS := namespaces(nil, ws.root.Attr)
	for _, e := range ws.preserved {
		if e.node == nil || e.node.Local() != "hyperlinks" {
			continue
		}
		ns := namespaces(rootNS, e.node.Attr)
		for _, h := range e.node.Children {
			if h.Local() != "hyperlink" {
				continue
			}
			rng, err := cellref.ParseRange(h.Value("ref"))
			if err != nil {
				continue
			}
			target := h.Value("location")
			if id, ok := relID(namespaces(ns, h.Attr), h.Attr, "id"); ok {
				if rel, ok := ws.rels.Get(id); ok {
					target = rel.Target
					if loc := h.Value("location"); loc != "" {
						target += "#" + loc
					}
				}
			}
			if target != "" {
				links[rng.Start] = target
			}
		}
	}
	return links
}
