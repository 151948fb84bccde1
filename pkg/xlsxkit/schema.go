package xlsxkit

import (
	"bytes"
	"encoding/xml"
	"slices"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/internal/xmlnode"
)

// Child element order of the workbook and worksheet roots.
var (
	workbookOrder = []string{
		"fileVersion", "fileSharing", "workbookPr", "absPath", "AlternateContent", "revisionPtr",
		"workbookProtection", "bookViews", "sheets", "functionGroups", "externalReferences",
		"definedNames", "calcPr", "oleSize", "customWorkbookViews", "pivotCaches", "smartTagPr",
		"smartTagTypes", "webPublishing", "fileRecoveryPr", "webPublishObjects", "extLst",
	}
	worksheetOrder = []string{
		"sheetPr", "dimension", "sheetViews", "sheetFormatPr", "cols", "sheetData", "sheetCalcPr",
		"sheetProtection", "protectedRanges", "scenarios", "autoFilter", "sortState",
		"dataConsolidate", "customSheetViews", "mergeCells", "phoneticPr", "conditionalFormatting",
		"dataValidations", "hyperlinks", "printOptions", "pageMargins", "pageSetup", "headerFooter",
		"rowBreaks", "colBreaks", "customProperties", "cellWatches", "ignoredErrors", "smartTags",
		"drawing", "legacyDrawing", "legacyDrawingHF", "drawingHF", "picture", "oleObjects",
		"controls", "webPublishItems", "tableParts", "extLst",
	}
)

// Relationship namespaces that r:id attributes may be bound to.
const (
	nsRelationships       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsRelationshipsStrict = "http://purl.oclc.org/ooxml/officeDocument/relationships"
)

// element is a child of a workbook or worksheet root: either an element
// kept verbatim from the file or one produced from the model on write.
type element struct {
	rank  int
	node  *xmlnode.Node
	write func(*bytes.Buffer)
}

// rankOf returns the schema position of local. Unknown elements take the
// rank of the element before them, so they stay where they were.
func rankOf(order []string, local string, prev int) int {
	if i := slices.Index(order, local); i >= 0 {
		return i
	}
	return prev
}

// generated returns a model-owned element.
func generated(order []string, local string, write func(*bytes.Buffer)) element {
	return element{rank: slices.Index(order, local), write: write}
}

// arrange merges kept and generated elements in schema order. On equal
// rank a generated element comes first: a kept element only shares its
// rank when it is unknown and followed the generated one in the file.
func arrange(kept, gen []element) []element {
	all := make([]element, 0, len(kept)+len(gen))
	all = append(all, gen...)
	all = append(all, kept...)
	slices.SortStableFunc(all, func(a, b element) int {
		if a.rank != b.rank {
			return a.rank - b.rank
		}
		return boolRank(a.node != nil) - boolRank(b.node != nil)
	})
	return all
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func writeElements(buf *bytes.Buffer, elems []element) {
	for _, e := range elems {
		if e.node != nil {
			e.node.Write(buf)
			continue
		}
		e.write(buf)
	}
}

// namespaces maps the prefixes declared by attrs onto parent, without
// modifying parent.
func namespaces(parent map[string]string, attrs []xml.Attr) map[string]string {
	var ns map[string]string
	for _, a := range attrs {
		if a.Name.Space != "xmlns" {
			continue
		}
		if ns == nil {
			ns = make(map[string]string, len(parent)+1)
			for k, v := range parent {
				ns[k] = v
			}
		}
		ns[a.Name.Local] = a.Value
	}
	if ns == nil {
		return parent
	}
	return ns
}

// relID returns the value of a relationship id attribute such as r:id,
// whatever prefix the relationships namespace is bound to.
func relID(ns map[string]string, attrs []xml.Attr, local string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local != local || a.Name.Space == "" {
			continue
		}
		if uri := ns[a.Name.Space]; uri == nsRelationships || uri == nsRelationshipsStrict {
			return a.Value, true
		}
	}
	return "", false
}

// relIDs calls fn with every relationship id found in the subtree of n.
func relIDs(ns map[string]string, n *xmlnode.Node, fn func(id string) error) error {
	ns = namespaces(ns, n.Attr)
	for _, a := range n.Attr {
		if a.Name.Space == "" || a.Name.Space == "xmlns" {
			continue
		}
		if uri := ns[a.Name.Space]; uri == nsRelationships || uri == nsRelationshipsStrict {
			if err := fn(a.Value); err != nil {
				return err
			}
		}
	}
	for _, c := range n.Children {
		if err := relIDs(ns, c, fn); err != nil {
			return err
		}
	}
	return nil
}

// withoutAttrs returns a copy of attrs without the unprefixed attributes
// named in drop.
func withoutAttrs(attrs []xml.Attr, drop ...string) []xml.Attr {
	return slices.DeleteFunc(slices.Clone(attrs), func(a xml.Attr) bool {
		return a.Name.Space == "" && slices.Contains(drop, a.Name.Local)
	})
}
