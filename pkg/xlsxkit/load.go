package xlsxkit

import (
	"context"
	"path"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/opc"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/sst"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/styles"
	"golang.org/x/sync/errgroup"
)

// Load opens the package at path and reads it into a workbook. Every
// shared-string, style and relationship reference is checked; on any
// error no workbook is returned.
func Load(path string, opts ...Option) (*Workbook, error) {
	wb := newWorkbook(buildOptions(opts))
	wb.state = StateLoading
	start := time.Now()

	pkg, err := opc.Open(path)
	if err != nil {
		return nil, err
	}
	wb.pkg = pkg
	if err := wb.load(); err != nil {
		pkg.Close()
		return nil, err
	}
	wb.state = StateLoaded

	if wb.opts.Recalculate {
		if err := wb.Recalculate(); err != nil {
			pkg.Close()
			return nil, err
		}
		wb.modified = false
	}
	wb.log.WithFields(logrus.Fields{
		"path":    path,
		"sheets":  len(wb.sheets),
		"elapsed": time.Since(start),
	}).Debug("loaded workbook")
	return wb, nil
}

func (wb *Workbook) readRels(source string) (*opc.Relationships, error) {
	name := opc.RelsPartName(source)
	if !wb.pkg.HasPart(name) {
		return opc.NewRelationships(), nil
	}
	rc, err := wb.pkg.OpenPart(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	rels, err := opc.ParseRelationships(rc)
	if err != nil {
		return nil, errs.Decode(err, name)
	}
	return rels, nil
}

func (wb *Workbook) load() error {
	var err error
	if wb.rootRels, err = wb.readRels(""); err != nil {
		return err
	}
	doc, ok := wb.rootRels.FirstOfType(opc.RelTypeOfficeDocument)
	if !ok {
		return errs.New(errs.Format, errs.ErrMissingPart, "no office document relationship").WithPart(opc.RelsPartName(""))
	}
	wb.part = opc.ResolveTarget("", doc.Target)
	wb.log.WithField("part", wb.part).Debug("reading workbook part")

	rc, err := wb.pkg.OpenPart(wb.part)
	if err != nil {
		return err
	}
	entries, err := wb.parseWorkbookPart(rc)
	rc.Close()
	if err != nil {
		return errs.Decode(err, wb.part)
	}
	if wb.rels, err = wb.readRels(wb.part); err != nil {
		return err
	}
	if err := wb.loadStyles(); err != nil {
		return err
	}
	if err := wb.loadSharedStrings(); err != nil {
		return err
	}
	if err := wb.buildSheets(entries); err != nil {
		return err
	}
	for _, dn := range wb.names {
		if err := wb.checkFormula("=" + dn.RefersTo); err != nil {
			return errs.InPart(errs.InCell(err, dn.Name), wb.part)
		}
	}
	return wb.parseSheets()
}

func (wb *Workbook) loadStyles() error {
	rel, ok := wb.rels.FirstOfType(opc.RelTypeStyles)
	if !ok {
		wb.styles = styles.Default()
		wb.stylesPart = sibling(wb.part, "styles.xml")
		return nil
	}
	wb.stylesPart = opc.ResolveTarget(wb.part, rel.Target)
	wb.stylesID = rel.ID
	rc, err := wb.pkg.OpenPart(wb.stylesPart)
	if err != nil {
		return err
	}
	defer rc.Close()
	if wb.styles, err = styles.Parse(rc); err != nil {
		return errs.Decode(err, wb.stylesPart)
	}
	return nil
}

func (wb *Workbook) loadSharedStrings() error {
	rel, ok := wb.rels.FirstOfType(opc.RelTypeSharedStrings)
	if !ok {
		wb.sst = sst.New()
		wb.sstPart = sibling(wb.part, "sharedStrings.xml")
		return nil
	}
	wb.sstPart = opc.ResolveTarget(wb.part, rel.Target)
	wb.sstID = rel.ID
	rc, err := wb.pkg.OpenPart(wb.sstPart)
	if err != nil {
		return err
	}
	defer rc.Close()
	if wb.sst, err = sst.Parse(rc); err != nil {
		return errs.Decode(err, wb.sstPart)
	}
	return nil
}

// buildSheets creates the sheets of the workbook part and resolves their
// relationships. Cell content is read later by parseSheets.
func (wb *Workbook) buildSheets(entries []sheetEntry) error {
	for _, e := range entries {
		if wb.sheetIndex(e.name) >= 0 {
			return errs.New(errs.Range, errs.ErrDuplicateName, "sheet %q", e.name).WithPart(wb.part)
		}
		rel, ok := wb.rels.Get(e.relID)
		if !ok || rel.External() {
			return errs.New(errs.Reference, errs.ErrDanglingRelationship, "%s of sheet %q", e.relID, e.name).WithPart(wb.part)
		}
		ws := newWorksheet(wb, e.name, e.id)
		ws.visibility = e.state
		ws.relID = e.relID
		ws.sheetAttr = e.attr
		switch {
		case opc.TypeIs(rel.Type, opc.RelTypeWorksheet):
			ws.kind = SheetWorksheet
		case opc.TypeIs(rel.Type, opc.RelTypeChartsheet):
			ws.kind = SheetChartsheet
		case opc.TypeIs(rel.Type, opc.RelTypeDialogsheet):
			ws.kind = SheetDialogsheet
		case opc.TypeIs(rel.Type, opc.RelTypeMacrosheet):
			ws.kind = SheetMacrosheet
		default:
			return errs.New(errs.Format, errs.ErrSchema, "sheet %q has relationship type %s", e.name, rel.Type).WithPart(wb.part)
		}
		ws.part = opc.ResolveTarget(wb.part, rel.Target)
		if !wb.pkg.HasPart(ws.part) {
			return errs.New(errs.Format, errs.ErrMissingPart, "sheet %q", e.name).WithPart(ws.part)
		}
		var err error
		if ws.rels, err = wb.readRels(ws.part); err != nil {
			return err
		}
		wb.sheets = append(wb.sheets, ws)
	}
	return nil
}

// parseSheets reads the worksheet parts in parallel. Each goroutine fills
// its own Worksheet and reads only the shared-string table and the style
// count, which do not change until loading completes.
func (wb *Workbook) parseSheets() error {
	loader := &sheetLoader{
		sst:    wb.sst,
		styles: wb.styles.Len(),
		sheetExists: func(name string) bool {
			return wb.sheetIndex(name) >= 0
		},
	}
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(wb.opts.Concurrency)
	for _, ws := range wb.sheets {
		if ws.kind != SheetWorksheet {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			wb.log.WithFields(logrus.Fields{"sheet": ws.name, "part": ws.part}).Debug("parsing worksheet")
			rc, err := wb.pkg.OpenPart(ws.part)
			if err != nil {
				return err
			}
			defer rc.Close()
			if err := loader.parseWorksheet(ws, rc); err != nil {
				return errs.Decode(err, ws.part)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	wb.sst.SetRefCount(wb.sharedStringRefs())
	return nil
}

// sibling names a part in the same directory as part.
func sibling(part, name string) string {
	return path.Join(path.Dir(part), name)
}
