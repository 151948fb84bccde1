package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
	"github.com/xuri/excelize/v2"
)

// execute runs the CLI with args and returns what it printed. Flags are
// reset first since cobra keeps their values between runs.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	reset := func(flags *pflag.FlagSet) {
		flags.VisitAll(func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("xlsxkit %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestParseCellEdit(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		address string
		want    xlsxkit.Value
		wantErr bool
	}{
		{name: "number value", arg: "Sheet1!A1=42", address: "Sheet1!A1", want: xlsxkit.Number(42)},
		{name: "float value", arg: "B2=3.14", address: "B2", want: xlsxkit.Number(3.14)},
		{name: "formula via double equals", arg: "Sheet1!A1==SUM(A:A)", address: "Sheet1!A1", want: xlsxkit.Formula("=SUM(A:A)")},
		{name: "string value", arg: "A1=hello", address: "A1", want: xlsxkit.Text("hello")},
		{name: "boolean", arg: "A1=true", address: "A1", want: xlsxkit.Bool(true)},
		{name: "error code", arg: "A1=#n/a", address: "A1", want: xlsxkit.ErrorCode("#N/A")},
		{name: "null clears cell", arg: "A1=null", address: "A1", want: xlsxkit.Empty()},
		{name: "empty clears cell", arg: "A1=", address: "A1", want: xlsxkit.Empty()},
		{name: "value with equals sign", arg: "A1=a=b", address: "A1", want: xlsxkit.Text("a=b")},
		{name: "quoted sheet", arg: "'Q1 Data'!C3=x!", address: "'Q1 Data'!C3", want: xlsxkit.Text("x!")},
		{name: "missing value", arg: "A1", wantErr: true},
		{name: "empty address", arg: "=42", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCellEdit(tt.arg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %+v", tt.arg, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCellEdit(%q) failed: %v", tt.arg, err)
			}
			if got.Address != tt.address || !got.Value.Equal(tt.want) {
				t.Errorf("parseCellEdit(%q) = %+v, want %s = %+v", tt.arg, got, tt.address, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.New(errs.Format, errs.ErrSchema, "x"), 4},
		{errs.New(errs.Reference, errs.ErrSheetNotFound, "x"), 5},
		{errs.New(errs.Formula, errs.ErrCircularReference, "x"), 6},
		{errs.IOError(os.ErrNotExist), 3},
		{errors.New("plain"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestEditWorkflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	mustExecute(t, "new", path, "Data")
	if _, err := execute(t, "new", path); err == nil {
		t.Error("new overwrote an existing file")
	}

	mustExecute(t, "set", path, "A1=Hello", "A2=40", "A3=2", "B1==SUM(A2:A3)")
	mustExecute(t, "calc", path)
	mustExecute(t, "merge", path, "Data!C1:D2")
	mustExecute(t, "rename-sheet", path, "Data", "Input Data")

	out := mustExecute(t, "get", "--json", path, "'Input Data'!B1", "C2")
	var cells []cellInfo
	if err := json.Unmarshal([]byte(out), &cells); err != nil {
		t.Fatalf("get output is not JSON: %v\n%s", err, out)
	}
	if len(cells) != 2 {
		t.Fatalf("got %d cells", len(cells))
	}
	if cells[0].Formula != "=SUM(A2:A3)" || cells[0].Display != "42" {
		t.Errorf("B1 = %+v", cells[0])
	}
	if cells[1].Merge != "C1:D2" {
		t.Errorf("C2 = %+v", cells[1])
	}

	out = mustExecute(t, "dump", "--csv", path, "A1:B3")
	if want := "Hello,42\n40,\n2,\n"; out != want {
		t.Errorf("dump --csv = %q, want %q", out, want)
	}

	out = mustExecute(t, "eval", path, "=A2*2")
	if strings.TrimSpace(out) != "80" {
		t.Errorf("eval = %q", out)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("excelize cannot open the result: %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue("Input Data", "A1"); v != "Hello" {
		t.Errorf("excelize A1 = %q", v)
	}
}

func TestEditErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	mustExecute(t, "new", path)

	tests := []struct {
		name string
		args []string
		kind errs.Kind
	}{
		{"missing sheet", []string{"set", path, "Nope!A1=1"}, errs.Reference},
		{"bad formula", []string{"set", path, "A1==SUM("}, errs.Formula},
		{"single-cell merge", []string{"merge", path, "A1"}, errs.Range},
		{"missing file", []string{"sheets", path + ".missing"}, errs.IO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errs.IsKind(err, tt.kind) {
				t.Errorf("error %v has kind %v, want %v", err, errs.KindOf(err), tt.kind)
			}
		})
	}
}

func TestDeleteLinesCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	mustExecute(t, "new", path, "Data")
	mustExecute(t, "set", path, "A1=keep", "A2=drop", "A3=3", "B3=4", "C3=5", "D1==SUM(A3:C3)")

	mustExecute(t, "delete-rows", path, "Data", "2")
	out := mustExecute(t, "dump", "--csv", path, "A1:C2")
	if want := "keep,,\n3,4,5\n"; out != want {
		t.Errorf("after delete-rows = %q, want %q", out, want)
	}

	mustExecute(t, "delete-cols", path, "Data", "B", "2")
	out = mustExecute(t, "get", "--json", path, "Data!B1")
	var cells []cellInfo
	if err := json.Unmarshal([]byte(out), &cells); err != nil {
		t.Fatalf("get output is not JSON: %v\n%s", err, out)
	}
	if len(cells) != 1 || cells[0].Formula != "=SUM(A2:A2)" {
		t.Errorf("B1 = %+v", cells)
	}

	for _, args := range [][]string{
		{"delete-rows", path, "Data", "0"},
		{"delete-cols", path, "Data", "A", "0"},
		{"delete-rows", path, "Nope", "1"},
		{"delete-rows", path, "Data", "x"},
	} {
		if _, err := execute(t, args...); err == nil {
			t.Errorf("xlsxkit %s succeeded", strings.Join(args, " "))
		}
	}
}

func TestEditOutputFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.xlsx")
	copyPath := filepath.Join(dir, "out.xlsx")
	mustExecute(t, "new", path)
	mustExecute(t, "set", path, "A1=1", "-o", copyPath)

	out := mustExecute(t, "dump", "--csv", copyPath)
	if out != "1\n" {
		t.Errorf("copy = %q", out)
	}
	if out := mustExecute(t, "dump", "--csv", path); out != "" {
		t.Errorf("input changed: %q", out)
	}
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")
	mustExecute(t, "new", path, "Sheet1")
	mustExecute(t, "set", path, "A1=Header1", "B1=Header2", "A2=100", "B2=200.5")
	mustExecute(t, "print-area", path, "Sheet1", "A1:B2")

	out := mustExecute(t, "export", path)
	var data struct {
		BookName string `json:"book_name"`
		Sheets   map[string]struct {
			Rows []struct {
				R int            `json:"r"`
				C map[string]any `json:"c"`
			} `json:"rows"`
		} `json:"sheets"`
	}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		t.Fatalf("export output is not JSON: %v\n%s", err, out)
	}
	rows := data.Sheets["Sheet1"].Rows
	if len(rows) != 2 || rows[1].C["1"] != float64(100) {
		t.Errorf("rows = %+v", rows)
	}

	areas := filepath.Join(dir, "areas")
	sheets := filepath.Join(dir, "sheets")
	mustExecute(t, "export", path, "--print-areas-dir", areas, "--sheets-dir", sheets)
	for _, name := range []string{filepath.Join(areas, "Sheet1_area1.json"), filepath.Join(sheets, "Sheet1.json")} {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	if _, err := execute(t, "export", path, "--mode", "huge"); err == nil {
		t.Error("invalid mode accepted")
	}
}

func TestCommandsAreRegistered(t *testing.T) {
	want := []string{"sheets", "dump", "get", "info", "eval", "export", "new", "set", "merge", "unmerge",
		"add-sheet", "remove-sheet", "rename-sheet", "move-sheet", "define", "print-area", "delete-rows", "delete-cols", "calc"}
	have := make(map[string]*cobra.Command)
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = c
	}
	for _, name := range want {
		if have[name] == nil {
			t.Errorf("command %q is not registered", name)
		}
	}
}
