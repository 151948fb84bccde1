package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
)

var (
	cfgFile string
	log     = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "xlsxkit",
	Short: "Read and edit .xlsx workbooks",
	Long: `xlsxkit reads, edits and writes Office Open XML workbooks (.xlsx, .xlsm)
without a spreadsheet application. Content it does not model is kept as-is.

Addresses are A1 references, optionally sheet-qualified: B2, Sheet1!A1:C10,
'My Sheet'!D4. Without a sheet name the --sheet flag applies, then the first
sheet.

Every flag can also be set in the config file (default $HOME/.xlsxkit.yaml)
or through an XLSXKIT_ environment variable, e.g. XLSXKIT_CONCURRENCY=2.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	cobra.OnInitialize(initConfig)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.xlsxkit.yaml)")
	flags.BoolP("verbose", "v", false, "Verbose mode. Report load and save progress.")
	flags.BoolP("debug", "d", false, "Debug mode. Log every step.")
	flags.Bool("no-color", false, "Disable colored output")
	flags.Bool("json", false, "Output JSON instead of human-formatted text")
	flags.StringP("sheet", "s", "", "Sheet for addresses without a sheet name (default: first sheet)")
	flags.Int("concurrency", 0, "Worksheets parsed in parallel (default: one per CPU)")
	flags.Bool("recalc", false, "Recalculate every formula after loading")

	for _, name := range []string{"verbose", "debug", "no-color", "json", "sheet", "concurrency", "recalc"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".xlsxkit")
	}
	viper.SetEnvPrefix("xlsxkit")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	configureOutput()
	if err == nil {
		log.WithField("file", viper.ConfigFileUsed()).Info("using config file")
	} else if cfgFile != "" {
		log.WithError(err).Warn("cannot read config file")
	}
}

// configureOutput applies the logging and color settings.
func configureOutput() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	switch {
	case viper.GetBool("debug"):
		log.SetLevel(logrus.DebugLevel)
	case viper.GetBool("verbose"):
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetLevel(logrus.WarnLevel)
	}
	if viper.GetBool("no-color") {
		color.NoColor = true
	}
}

func openWorkbook(path string) (*xlsxkit.Workbook, error) {
	wb, err := xlsxkit.Load(path,
		xlsxkit.WithLogger(log),
		xlsxkit.WithConcurrency(viper.GetInt("concurrency")),
		xlsxkit.WithRecalculate(viper.GetBool("recalc")),
	)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"file": path, "sheets": wb.SheetCount()}).Info("loaded workbook")
	return wb, nil
}

// defaultSheet returns the sheet named by --sheet, or the first sheet.
func defaultSheet(wb *xlsxkit.Workbook) (*xlsxkit.Worksheet, error) {
	if name := viper.GetString("sheet"); name != "" {
		return wb.Sheet(name)
	}
	return wb.SheetAt(0)
}

// resolve parses an address and finds its sheet.
func resolve(wb *xlsxkit.Workbook, addr string) (*xlsxkit.Worksheet, cellref.Range, error) {
	sheet, r, err := cellref.ParseAddress(addr)
	if err != nil {
		return nil, cellref.Range{}, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if sheet == "" {
		ws, err := defaultSheet(wb)
		return ws, r, err
	}
	ws, err := wb.Sheet(sheet)
	return ws, r, err
}
