package xlsxkit

import (
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/opc"
)

const relTypeCalcChain = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/calcChain"

// sheetRelTypes are the workbook relationships owned by the sheet list.
var sheetRelTypes = []string{
	opc.RelTypeWorksheet,
	opc.RelTypeChartsheet,
	opc.RelTypeDialogsheet,
	opc.RelTypeMacrosheet,
}

func isSheetRel(relType string) bool {
	for _, t := range sheetRelTypes {
		if opc.TypeIs(relType, t) {
			return true
		}
	}
	return false
}

// savePlan is the layout of the package being written. It is applied to
// the workbook only once the package is on disk.
type savePlan struct {
	rels     *opc.Relationships
	sheetIDs []string
	parts    []string
	stylesID string
	sstID    string
	writeSST bool

	// sheetRels holds each worksheet's relationships re-targeted for its
	// planned part.
	sheetRels []*opc.Relationships
}

// Save writes the workbook to path. The package is built in a temporary
// file and renamed over path; a failed save leaves both the file and the
// workbook as they were. The package the workbook was loaded from may be
// the target.
func (wb *Workbook) Save(path string) error {
	if len(wb.sheets) == 0 {
		return errs.New(errs.Format, errs.ErrSchema, "workbook has no sheets")
	}
	wb.state = StateSaving
	start := time.Now()

	plan := wb.planSave()
	out, err := wb.stage(plan)
	if err == nil {
		err = out.Finalize(path)
	}
	if err != nil {
		wb.state = StateError
		wb.log.WithError(err).WithField("path", path).Debug("save failed")
		return err
	}

	if wb.pkg != nil {
		wb.pkg.Close()
	}
	wb.pkg = out
	wb.rels = plan.rels
	wb.stylesID = plan.stylesID
	wb.sstID = plan.sstID
	for i, ws := range wb.sheets {
		ws.relID = plan.sheetIDs[i]
		ws.part = plan.parts[i]
		if plan.sheetRels[i] != nil {
			ws.rels = plan.sheetRels[i]
		}
	}
	wb.modified = false
	wb.state = StateSaved
	wb.log.WithFields(logrus.Fields{
		"path":    path,
		"sheets":  len(wb.sheets),
		"elapsed": time.Since(start),
	}).Debug("saved workbook")
	return nil
}

// planSave assigns part names and relationship ids. Worksheets are
// numbered sheetN.xml in tab order; other sheet kinds keep their parts.
// Relationship ids already in use are kept where they do not clash.
func (wb *Workbook) planSave() *savePlan {
	plan := &savePlan{writeSST: wb.sst.Len() > 0}

	taken := make(map[string]bool)
	var kept []opc.Relationship
	for _, rel := range wb.rels.All() {
		if isSheetRel(rel.Type) || opc.TypeIs(rel.Type, opc.RelTypeStyles) ||
			opc.TypeIs(rel.Type, opc.RelTypeSharedStrings) || opc.TypeIs(rel.Type, relTypeCalcChain) {
			continue
		}
		kept = append(kept, rel)
		taken[rel.ID] = true
	}
	claim := func(id string) string {
		if id == "" || taken[id] {
			return ""
		}
		taken[id] = true
		return id
	}
	plan.sheetIDs = make([]string, len(wb.sheets))
	for i, ws := range wb.sheets {
		plan.sheetIDs[i] = claim(ws.relID)
	}
	plan.stylesID = claim(wb.stylesID)
	if plan.writeSST {
		plan.sstID = claim(wb.sstID)
	}
	next := 0
	fresh := func() string {
		for {
			next++
			id := "rId" + strconv.Itoa(next)
			if !taken[id] {
				taken[id] = true
				return id
			}
		}
	}
	for i := range plan.sheetIDs {
		if plan.sheetIDs[i] == "" {
			plan.sheetIDs[i] = fresh()
		}
	}
	if plan.stylesID == "" {
		plan.stylesID = fresh()
	}
	if plan.writeSST && plan.sstID == "" {
		plan.sstID = fresh()
	}

	reserved := make(map[string]bool)
	for _, ws := range wb.sheets {
		if ws.kind != SheetWorksheet {
			reserved[strings.ToLower(ws.part)] = true
		}
	}
	dir := path.Join(path.Dir(wb.part), "worksheets")
	plan.parts = make([]string, len(wb.sheets))
	n := 0
	for i, ws := range wb.sheets {
		if ws.kind != SheetWorksheet {
			plan.parts[i] = ws.part
			continue
		}
		for {
			n++
			name := dir + "/sheet" + strconv.Itoa(n) + ".xml"
			if !reserved[strings.ToLower(name)] {
				plan.parts[i] = name
				break
			}
		}
	}

	plan.sheetRels = make([]*opc.Relationships, len(wb.sheets))
	for i, ws := range wb.sheets {
		if ws.kind == SheetWorksheet && ws.rels != nil {
			plan.sheetRels[i] = movedRels(ws.rels, ws.part, plan.parts[i])
		}
	}

	plan.rels = opc.NewRelationships()
	for i, ws := range wb.sheets {
		relType := opc.RelTypeWorksheet
		if ws.kind != SheetWorksheet {
			if rel, ok := wb.rels.Get(ws.relID); ok {
				relType = rel.Type
			}
		}
		plan.rels.Set(opc.Relationship{ID: plan.sheetIDs[i], Type: relType, Target: opc.RelativeTarget(wb.part, plan.parts[i])})
	}
	for _, rel := range kept {
		plan.rels.Set(rel)
	}
	plan.rels.Set(opc.Relationship{ID: plan.stylesID, Type: opc.RelTypeStyles, Target: opc.RelativeTarget(wb.part, wb.stylesPart)})
	if plan.writeSST {
		plan.rels.Set(opc.Relationship{ID: plan.sstID, Type: opc.RelTypeSharedStrings, Target: opc.RelativeTarget(wb.part, wb.sstPart)})
	}
	return plan
}

// ownedParts lists the parts of the source package the model rewrites or
// drops, lower-cased.
func (wb *Workbook) ownedParts() map[string]bool {
	owned := map[string]bool{
		strings.ToLower(opc.RelsPartName("")):      true,
		strings.ToLower(wb.part):                   true,
		strings.ToLower(opc.RelsPartName(wb.part)): true,
		strings.ToLower(wb.stylesPart):             true,
		strings.ToLower(wb.sstPart):                true,
	}
	for _, rel := range wb.rels.All() {
		if rel.External() {
			continue
		}
		if isSheetRel(rel.Type) || opc.TypeIs(rel.Type, relTypeCalcChain) {
			target := opc.ResolveTarget(wb.part, rel.Target)
			owned[strings.ToLower(target)] = true
			owned[strings.ToLower(opc.RelsPartName(target))] = true
		}
	}
	for _, ws := range wb.sheets {
		if ws.part != "" {
			owned[strings.ToLower(ws.part)] = true
			owned[strings.ToLower(opc.RelsPartName(ws.part))] = true
		}
	}
	return owned
}

// stage builds the output container in the documented part order.
func (wb *Workbook) stage(plan *savePlan) (*opc.Container, error) {
	out := opc.New()
	if wb.pkg != nil {
		out.ContentTypes().MergeDefaults(wb.pkg.ContentTypes())
	}
	generated := make(map[string]bool)
	write := func(name, contentType string, w io.WriterTo) {
		generated[strings.ToLower(name)] = true
		out.StreamPart(name, contentType, func(dst io.Writer) error {
			_, err := w.WriteTo(dst)
			return err
		})
	}

	write(opc.RelsPartName(""), "", wb.rootRels)

	wbType := opc.ContentTypeWorkbook
	if wb.pkg != nil {
		if ct, ok := wb.pkg.ContentTypes().Override(wb.part); ok {
			wbType = ct
		}
	}
	generated[strings.ToLower(wb.part)] = true
	out.StreamPart(wb.part, wbType, func(w io.Writer) error {
		return wb.writeWorkbookPart(w, plan.sheetIDs)
	})
	write(opc.RelsPartName(wb.part), "", plan.rels)
	write(wb.stylesPart, opc.ContentTypeStyles, wb.styles)
	if plan.writeSST {
		wb.sst.SetRefCount(wb.sharedStringRefs())
		write(wb.sstPart, opc.ContentTypeSharedStrings, wb.sst)
	}

	for i, ws := range wb.sheets {
		part := plan.parts[i]
		if ws.kind != SheetWorksheet {
			generated[strings.ToLower(part)] = true
			if err := out.CopyPart(wb.pkg, part); err != nil {
				return nil, err
			}
			if rels := opc.RelsPartName(part); wb.pkg.HasPart(rels) {
				generated[strings.ToLower(rels)] = true
				if err := out.CopyPart(wb.pkg, rels); err != nil {
					return nil, err
				}
			}
			continue
		}
		generated[strings.ToLower(part)] = true
		out.StreamPart(part, opc.ContentTypeWorksheet, ws.writeTo)
		if rels := plan.sheetRels[i]; rels != nil && rels.Len() > 0 {
			write(opc.RelsPartName(part), "", rels)
		}
	}

	if wb.pkg == nil {
		return out, nil
	}
	owned := wb.ownedParts()
	for name := range wb.pkg.Parts() {
		key := strings.ToLower(name)
		if owned[key] || generated[key] {
			continue
		}
		if err := out.CopyPart(wb.pkg, name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// movedRels re-targets the relationships of a part moving from oldPart to
// newPart. Targets are unchanged when the directory stays the same.
func movedRels(rels *opc.Relationships, oldPart, newPart string) *opc.Relationships {
	if oldPart == "" || path.Dir(oldPart) == path.Dir(newPart) {
		return rels
	}
	moved := opc.NewRelationships()
	for _, rel := range rels.All() {
		if !rel.External() {
			rel.Target = opc.RelativeTarget(newPart, opc.ResolveTarget(oldPart, rel.Target))
		}
		moved.Set(rel)
	}
	return moved
}

// sharedStringRefs counts the cells that reference the shared-string
// table.
func (wb *Workbook) sharedStringRefs() int {
	refs := 0
	for _, ws := range wb.sheets {
		for _, r := range ws.rows {
			for _, c := range r.cells {
				if c.sst > 0 {
					refs++
				}
			}
		}
	}
	return refs
}
