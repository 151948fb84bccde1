package xlsxkit

import (
	"encoding/xml"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
)

// Built-in defined names.
const (
	NamePrintArea   = "_xlnm.Print_Area"
	NamePrintTitles = "_xlnm.Print_Titles"
)

const maxDefinedNameLength = 255

// DefinedName is a named reference or formula.
type DefinedName struct {
	Name string
	// Scope is the sheet the name is local to, or "" for a workbook-wide
	// name.
	Scope string
	// RefersTo is the reference or formula, without a leading "=".
	RefersTo string
	Hidden   bool
	Comment  string
}

type definedName struct {
	DefinedName
	// attr holds the attributes of the element other than name,
	// localSheetId, hidden and comment.
	attr []xml.Attr
}

var (
	definedNameRe = regexp.MustCompile(`^[\p{L}_\\][\p{L}\p{N}_.\\?]*$`)
	rcNameRe      = regexp.MustCompile(`(?i)^(r|c|r[0-9]*c[0-9]*|r[0-9]+|c[0-9]+)$`)
)

// ValidateDefinedName checks that name can be used as a defined name: it
// starts with a letter, underscore or backslash and is not a cell
// address.
func ValidateDefinedName(name string) error {
	if name == "" || utf8.RuneCountInString(name) > maxDefinedNameLength {
		return errs.New(errs.Range, errs.ErrInvalidName, "defined name %q must be 1-%d characters", name, maxDefinedNameLength)
	}
	if !definedNameRe.MatchString(name) {
		return errs.New(errs.Range, errs.ErrInvalidName, "defined name %q contains invalid characters", name)
	}
	if _, err := cellref.ParseRef(name); err == nil || rcNameRe.MatchString(name) {
		return errs.New(errs.Range, errs.ErrInvalidName, "defined name %q looks like a cell reference", name)
	}
	return nil
}

func (wb *Workbook) findName(name, scope string) int {
	nameKey, scopeKey := foldName(name), foldName(scope)
	return slices.IndexFunc(wb.names, func(n *definedName) bool {
		return foldName(n.Name) == nameKey && foldName(n.Scope) == scopeKey
	})
}

// DefinedNames returns the defined names in file order.
func (wb *Workbook) DefinedNames() []DefinedName {
	out := make([]DefinedName, len(wb.names))
	for i, n := range wb.names {
		out[i] = n.DefinedName
	}
	return out
}

// LookupName returns the defined name visible from sheet: a name local
// to sheet wins over a workbook-wide one.
func (wb *Workbook) LookupName(sheet, name string) (DefinedName, bool) {
	if sheet != "" {
		if i := wb.findName(name, sheet); i >= 0 {
			return wb.names[i].DefinedName, true
		}
	}
	if i := wb.findName(name, ""); i >= 0 {
		return wb.names[i].DefinedName, true
	}
	return DefinedName{}, false
}

// AddDefinedName adds a name. The scope sheet must exist, the name must
// be unique within its scope and RefersTo must be a valid formula whose
// sheets exist.
func (wb *Workbook) AddDefinedName(dn DefinedName) error {
	return wb.mutate(func() error {
		dn.RefersTo = strings.TrimPrefix(dn.RefersTo, "=")
		if err := wb.checkDefinedName(dn); err != nil {
			return err
		}
		if i := wb.findName(dn.Name, dn.Scope); i >= 0 {
			return errs.New(errs.Range, errs.ErrDuplicateName, "defined name %q", dn.Name)
		}
		if dn.Scope != "" {
			dn.Scope = wb.sheets[wb.sheetIndex(dn.Scope)].name
		}
		wb.names = append(wb.names, &definedName{DefinedName: dn})
		return nil
	})
}

func (wb *Workbook) checkDefinedName(dn DefinedName) error {
	if !strings.HasPrefix(dn.Name, "_xlnm.") {
		if err := ValidateDefinedName(dn.Name); err != nil {
			return err
		}
	}
	if dn.Scope != "" && wb.sheetIndex(dn.Scope) < 0 {
		return errs.New(errs.Reference, errs.ErrSheetNotFound, "scope %q of defined name %q", dn.Scope, dn.Name)
	}
	if dn.RefersTo == "" {
		return errs.New(errs.Formula, errs.ErrSyntax, "defined name %q refers to nothing", dn.Name)
	}
	if err := checkText(dn.RefersTo); err != nil {
		return err
	}
	if err := checkText(dn.Comment); err != nil {
		return err
	}
	return wb.checkFormula("=" + dn.RefersTo)
}

// RemoveDefinedName deletes the name with the given scope.
func (wb *Workbook) RemoveDefinedName(name, scope string) error {
	return wb.mutate(func() error {
		i := wb.findName(name, scope)
		if i < 0 {
			return errs.New(errs.Reference, errs.ErrInvalidName, "defined name %q is not defined", name)
		}
		wb.names = slices.Delete(wb.names, i, i+1)
		return nil
	})
}
