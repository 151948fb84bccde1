package xlsxkit

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/internal/xmlnode"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/opc"
)

// sheetEntry is one <sheet> of the workbook part.
type sheetEntry struct {
	name  string
	id    int
	state Visibility
	relID string
	attr  []xml.Attr
}

// parseWorkbookPart reads the workbook part: the sheet list, the defined
// names and calcPr go into the model, every other element is kept.
func (wb *Workbook) parseWorkbookPart(r io.Reader) ([]sheetEntry, error) {
	d := xml.NewDecoder(r)
	root, err := xmlnode.NextStart(d)
	if err != nil {
		return nil, err
	}
	if root.Name.Local != "workbook" {
		return nil, errs.New(errs.Format, errs.ErrSchema, "root element <%s>, want <workbook>", root.Name.Local)
	}
	wb.root = root.Copy()
	ns := namespaces(nil, root.Attr)

	var entries []sheetEntry
	var scopes []int
	rank := -1
	for {
		token, err := d.RawToken()
		if err == io.EOF {
			return nil, &xml.SyntaxError{Msg: "unexpected EOF inside <workbook>", Line: inputLine(d)}
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
		rank = rankOf(workbookOrder, n.Local(), rank)
		switch n.Local() {
		case "sheets":
			sheetsNS := namespaces(ns, n.Attr)
			for _, s := range n.Children {
				if s.Local() != "sheet" {
					continue
				}
				e, err := parseSheetEntry(namespaces(sheetsNS, s.Attr), s)
				if err != nil {
					return nil, withLine(err, inputLine(d))
				}
				entries = append(entries, e)
			}
		case "definedNames":
			for _, c := range n.Children {
				if c.Local() != "definedName" {
					continue
				}
				dn, scope, err := parseDefinedName(c)
				if err != nil {
					return nil, withLine(err, inputLine(d))
				}
				wb.names = append(wb.names, dn)
				scopes = append(scopes, scope)
			}
		case "calcPr":
			wb.calcPr = n
			wb.stale = isTrue(n.Value("fullCalcOnLoad"))
		default:
			if n.Local() == "workbookPr" {
				wb.date1904 = isTrue(n.Value("date1904"))
			}
			wb.children = append(wb.children, element{rank: rank, node: n})
		}
	}

	for i, scope := range scopes {
		if scope < 0 {
			continue
		}
		if scope >= len(entries) {
			return nil, errs.New(errs.Reference, errs.ErrInvalidIndex, "localSheetId %d of defined name %q", scope, wb.names[i].Name)
		}
		wb.names[i].Scope = entries[scope].name
	}
	return entries, nil
}

func parseSheetEntry(ns map[string]string, s *xmlnode.Node) (sheetEntry, error) {
	e := sheetEntry{name: s.Value("name"), state: parseVisibility(s.Value("state"))}
	if e.name == "" {
		return e, errs.New(errs.Format, errs.ErrSchema, "<sheet> without name")
	}
	id, err := strconv.Atoi(s.Value("sheetId"))
	if err != nil || id < 1 {
		return e, errs.New(errs.Format, errs.ErrSchema, "sheet %q has invalid sheetId %q", e.name, s.Value("sheetId"))
	}
	e.id = id
	rid, ok := relID(ns, s.Attr, "id")
	if !ok {
		return e, errs.New(errs.Format, errs.ErrSchema, "sheet %q has no relationship id", e.name)
	}
	e.relID = rid
	for _, a := range withoutAttrs(s.Attr, "name", "sheetId", "state") {
		if a.Name.Local == "id" && a.Value == rid && a.Name.Space != "" {
			continue
		}
		e.attr = append(e.attr, a)
	}
	return e, nil
}

// parseDefinedName returns the name and its localSheetId, -1 for a
// workbook-wide name.
func parseDefinedName(n *xmlnode.Node) (*definedName, int, error) {
	dn := &definedName{DefinedName: DefinedName{
		Name:     n.Value("name"),
		RefersTo: n.Text,
		Hidden:   isTrue(n.Value("hidden")),
		Comment:  n.Value("comment"),
	}}
	if dn.Name == "" {
		return nil, 0, errs.New(errs.Format, errs.ErrSchema, "<definedName> without name")
	}
	scope := -1
	if v, ok := n.Get("localSheetId"); ok {
		var err error
		if scope, err = strconv.Atoi(v); err != nil || scope < 0 {
			return nil, 0, errs.New(errs.Format, errs.ErrSchema, "defined name %q has invalid localSheetId %q", dn.Name, v)
		}
	}
	dn.attr = withoutAttrs(n.Attr, "name", "localSheetId", "hidden", "comment")
	if len(dn.attr) == 0 {
		dn.attr = nil
	}
	return dn, scope, nil
}

// relPrefix returns the prefix the workbook root binds to the
// relationships namespace, declaring "r" when there is none.
func relPrefix(root *xml.StartElement) string {
	for _, a := range root.Attr {
		if a.Name.Space == "xmlns" && (a.Value == nsRelationships || a.Value == nsRelationshipsStrict) {
			return a.Name.Local
		}
	}
	root.Attr = append(root.Attr, xml.Attr{Name: xml.Name{Space: "xmlns", Local: "r"}, Value: nsRelationships})
	return "r"
}

// writeWorkbookPart serializes the workbook part. relIDs holds the
// relationship id of each sheet, in tab order.
func (wb *Workbook) writeWorkbookPart(w io.Writer, relIDs []string) error {
	var buf bytes.Buffer
	root := wb.root
	root.Attr = append([]xml.Attr(nil), root.Attr...)
	rp := relPrefix(&root)
	name := func(local string) xml.Name { return xml.Name{Space: root.Name.Space, Local: local} }

	buf.WriteString(opc.XMLHeader)
	xmlnode.Start(&buf, root.Name, root.Attr)

	gen := []element{generated(workbookOrder, "sheets", func(buf *bytes.Buffer) {
		sheets := &xmlnode.Node{Name: name("sheets")}
		for i, ws := range wb.sheets {
			s := &xmlnode.Node{Name: name("sheet")}
			s.Set("name", ws.name)
			s.Set("sheetId", strconv.Itoa(ws.sheetID))
			if ws.visibility != Visible {
				s.Set("state", ws.visibility.String())
			}
			s.Attr = append(s.Attr, xml.Attr{Name: xml.Name{Space: rp, Local: "id"}, Value: relIDs[i]})
			s.Attr = append(s.Attr, ws.sheetAttr...)
			sheets.Add(s)
		}
		sheets.Write(buf)
	})}

	if len(wb.names) > 0 {
		gen = append(gen, generated(workbookOrder, "definedNames", func(buf *bytes.Buffer) {
			names := &xmlnode.Node{Name: name("definedNames")}
			for _, dn := range wb.names {
				n := &xmlnode.Node{Name: name("definedName"), Text: dn.RefersTo}
				n.Set("name", dn.Name)
				if dn.Scope != "" {
					n.Set("localSheetId", strconv.Itoa(wb.sheetIndex(dn.Scope)))
				}
				if dn.Hidden {
					n.Set("hidden", "1")
				}
				if dn.Comment != "" {
					n.Set("comment", dn.Comment)
				}
				n.Attr = append(n.Attr, dn.attr...)
				names.Add(n)
			}
			names.Write(buf)
		}))
	}

	if wb.calcPr != nil || wb.stale {
		gen = append(gen, generated(workbookOrder, "calcPr", func(buf *bytes.Buffer) {
			calcPr := &xmlnode.Node{Name: name("calcPr")}
			if wb.calcPr != nil {
				calcPr = wb.calcPr.Clone()
			}
			if wb.stale {
				calcPr.Set("fullCalcOnLoad", "1")
			} else {
				calcPr.Unset("fullCalcOnLoad")
			}
			calcPr.Write(buf)
		}))
	}

	writeElements(&buf, arrange(wb.children, gen))
	xmlnode.End(&buf, root.Name)
	_, err := buf.WriteTo(w)
	return err
}
