package xlsxkit

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
)

const fixtureTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/><Override PartName="/xl/worksheets/sheet1.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/><Override PartName="/xl/sharedStrings.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"/></Types>`

const fixtureRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/></Relationships>`

const fixtureWorkbook = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><workbookPr/><bookViews><workbookView activeTab="0"/></bookViews><sheets><sheet name="Data" sheetId="1" r:id="rId1"/></sheets><calcPr calcId="191029"/></workbook>`

const fixtureWorkbookRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/><Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings" Target="sharedStrings.xml"/></Relationships>`

const fixtureSST = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="2" uniqueCount="2"><si><t>alpha</t></si><si><t>beta</t></si></sst>`

// sheetXML wraps the children of a <worksheet> element.
func sheetXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` + body + `</worksheet>`
}

// fixture is a package under construction: part name to content, written
// in insertion order.
type fixture struct {
	names []string
	parts map[string]string
}

// newFixture returns a one-sheet workbook named "Data" whose worksheet
// has the given body. The shared-string table holds "alpha" and "beta";
// there is no styles part.
func newFixture(body string) *fixture {
	f := &fixture{parts: make(map[string]string)}
	f.set("[Content_Types].xml", fixtureTypes)
	f.set("_rels/.rels", fixtureRootRels)
	f.set("xl/workbook.xml", fixtureWorkbook)
	f.set("xl/_rels/workbook.xml.rels", fixtureWorkbookRels)
	f.set("xl/sharedStrings.xml", fixtureSST)
	f.set("xl/worksheets/sheet1.xml", sheetXML(body))
	return f
}

func (f *fixture) set(name, content string) *fixture {
	if _, ok := f.parts[name]; !ok {
		f.names = append(f.names, name)
	}
	f.parts[name] = content
	return f
}

func (f *fixture) write(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.xlsx")
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer out.Close()
	zw := zip.NewWriter(out)
	for _, name := range f.names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to add %s: %v", name, err)
		}
		w.Write([]byte(f.parts[name]))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return path
}

// readPart returns one part of a saved package.
func readPart(t *testing.T, path, name string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer zr.Close()
	for _, zf := range zr.File {
		if zf.Name != name {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			t.Fatalf("Failed to open %s: %v", name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		io.Copy(&buf, rc)
		return buf.String()
	}
	t.Fatalf("%s has no part %s", path, name)
	return ""
}

// partNames lists the parts of a saved package in archive order.
func partNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer zr.Close()
	var names []string
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	return names
}

func mustLoad(t *testing.T, path string) *Workbook {
	t.Helper()
	wb, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Cleanup(func() { wb.Close() })
	return wb
}

func mustCell(t *testing.T, wb *Workbook, sheet, addr string) Cell {
	t.Helper()
	c, err := wb.Cell(sheet, addr)
	if err != nil {
		t.Fatalf("Cell(%s, %s) failed: %v", sheet, addr, err)
	}
	return c
}

func wantErr(t *testing.T, err, target error, kind errs.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", target)
	}
	if !errors.Is(err, target) {
		t.Errorf("error %v is not %v", err, target)
	}
	if !errs.IsKind(err, kind) {
		t.Errorf("error %v has kind %v, want %v", err, errs.KindOf(err), kind)
	}
}
