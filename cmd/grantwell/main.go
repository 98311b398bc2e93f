// Package main provides the entry point for the grantwell CLI.
package main

import (
	"os"

	"github.com/grantwell/grantwell/cmd/grantwell/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
