package main

import (
	"encoding/json"
	"io"

	"github.com/fatih/color"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
)

// ExitError signals a non-zero exit code without printing an error message.
type ExitError struct{ Code int }

func (e *ExitError) Error() string { return "" }

// exitCode maps a failure to the process exit status.
func exitCode(err error) int {
	switch errs.KindOf(err) {
	case errs.IO:
		return 3
	case errs.Format:
		return 4
	case errs.Reference, errs.Range:
		return 5
	case errs.Formula:
		return 6
	}
	return 1
}

var (
	headerColor  = color.New(color.Bold)
	errorColor   = color.New(color.FgRed)
	formulaColor = color.New(color.FgCyan)
	mutedColor   = color.New(color.Faint)
	okColor      = color.New(color.FgGreen)
)

func jsonPrint(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// toJSON serializes v, indented when pretty is set.
func toJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
