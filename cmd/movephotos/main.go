// Package main provides the CLI entry point for movephotos.
package main

import (
	"os"

	"movephotos/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
