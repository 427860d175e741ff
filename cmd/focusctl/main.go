// Package main is the entry point for the focusctl operator tool.
package main

import (
	"os"

	"github.com/good-yellow-bee/focusdial/cmd/focusctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
