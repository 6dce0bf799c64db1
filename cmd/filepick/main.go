// Package main provides the entry point for the filepick CLI.
package main

import (
	"os"

	"github.com/fastfind/filepick/cmd/filepick/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
