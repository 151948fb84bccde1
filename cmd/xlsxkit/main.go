// Package main provides the CLI entry point for xlsxkit.
package main

import (
	"errors"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		errorColor.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
