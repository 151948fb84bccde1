package opc

import (
	"bytes"
	"encoding/xml"
	"io"
	"path"
	"slices"
	"strings"
)

// Content types used by spreadsheet packages.
const (
	ContentTypeRelationships = "application/vnd.openxmlformats-package.relationships+xml"
	ContentTypeXML           = "application/xml"
	ContentTypeWorkbook      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"
	ContentTypeWorksheet     = "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"
	ContentTypeStyles        = "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"
	ContentTypeSharedStrings = "application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"
)

// ContentTypesPart is the name of the content-types stream.
const ContentTypesPart = "[Content_Types].xml"

// XMLHeader is written at the top of every XML part.
const XMLHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// xlsxTypes directly maps the types element of content types for relationship
// parts, it takes a Multipurpose Internet Mail Extension (MIME) media type as a
// value.
type xlsxTypes struct {
	XMLName   xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []xlsxDefault  `xml:"Default"`
	Overrides []xlsxOverride `xml:"Override"`
}

type xlsxOverride struct {
	PartName    string `xml:",attr"`
	ContentType string `xml:",attr"`
}

type xlsxDefault struct {
	Extension   string `xml:",attr"`
	ContentType string `xml:",attr"`
}

// ContentTypes is the ordered content-type table of a package. Part names
// are stored without the leading slash.
type ContentTypes struct {
	defaults  []xlsxDefault
	overrides []xlsxOverride
}

// NewContentTypes returns the table every spreadsheet package starts with.
func NewContentTypes() *ContentTypes {
	return &ContentTypes{
		defaults: []xlsxDefault{
			{Extension: "rels", ContentType: ContentTypeRelationships},
			{Extension: "xml", ContentType: ContentTypeXML},
		},
	}
}

// ParseContentTypes decodes a [Content_Types].xml stream.
func ParseContentTypes(r io.Reader) (*ContentTypes, error) {
	var t xlsxTypes
	if err := xml.NewDecoder(r).Decode(&t); err != nil {
		return nil, err
	}
	ct := &ContentTypes{defaults: t.Defaults}
	for _, o := range t.Overrides {
		o.PartName = strings.TrimPrefix(o.PartName, "/")
		ct.overrides = append(ct.overrides, o)
	}
	return ct, nil
}

// Lookup returns the content type of a part: its override, else the
// default registered for its extension, else "".
func (ct *ContentTypes) Lookup(name string) string {
	name = strings.TrimPrefix(name, "/")
	for _, o := range ct.overrides {
		if strings.EqualFold(o.PartName, name) {
			return o.ContentType
		}
	}
	return ct.defaultFor(name)
}

func (ct *ContentTypes) defaultFor(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	for _, d := range ct.defaults {
		if strings.EqualFold(d.Extension, ext) {
			return d.ContentType
		}
	}
	return ""
}

// Override returns the override declared for a part, if any.
func (ct *ContentTypes) Override(name string) (string, bool) {
	name = strings.TrimPrefix(name, "/")
	for _, o := range ct.overrides {
		if strings.EqualFold(o.PartName, name) {
			return o.ContentType, true
		}
	}
	return "", false
}

// SetOverride records the content type of a part. An override equal to
// the extension default is not needed and is removed instead.
func (ct *ContentTypes) SetOverride(name, contentType string) {
	name = strings.TrimPrefix(name, "/")
	for i, o := range ct.overrides {
		if strings.EqualFold(o.PartName, name) {
			ct.overrides[i].ContentType = contentType
			return
		}
	}
	if ct.defaultFor(name) == contentType {
		return
	}
	ct.overrides = append(ct.overrides, xlsxOverride{PartName: name, ContentType: contentType})
}

// RemoveOverride drops the override of a part, if any.
func (ct *ContentTypes) RemoveOverride(name string) {
	name = strings.TrimPrefix(name, "/")
	for i, o := range ct.overrides {
		if strings.EqualFold(o.PartName, name) {
			ct.overrides = append(ct.overrides[:i], ct.overrides[i+1:]...)
			return
		}
	}
}

// SetDefault registers the content type of an extension.
func (ct *ContentTypes) SetDefault(ext, contentType string) {
	for i, d := range ct.defaults {
		if strings.EqualFold(d.Extension, ext) {
			ct.defaults[i].ContentType = contentType
			return
		}
	}
	ct.defaults = append(ct.defaults, xlsxDefault{Extension: ext, ContentType: contentType})
}

// MergeDefaults adds the extension defaults of src that ct lacks.
func (ct *ContentTypes) MergeDefaults(src *ContentTypes) {
	for _, d := range src.defaults {
		if !slices.ContainsFunc(ct.defaults, func(x xlsxDefault) bool { return strings.EqualFold(x.Extension, d.Extension) }) {
			ct.defaults = append(ct.defaults, d)
		}
	}
}

// WriteTo encodes the table as a [Content_Types].xml stream.
func (ct *ContentTypes) WriteTo(w io.Writer) (int64, error) {
	t := xlsxTypes{Defaults: ct.defaults}
	for _, o := range ct.overrides {
		t.Overrides = append(t.Overrides, xlsxOverride{PartName: "/" + o.PartName, ContentType: o.ContentType})
	}
	var buf bytes.Buffer
	buf.WriteString(XMLHeader)
	if err := xml.NewEncoder(&buf).Encode(t); err != nil {
		return 0, err
	}
	return buf.WriteTo(w)
}
