// Package main is the entry point for the chatsentry CLI.
package main

import (
	"os"

	"github.com/chatsentry/chatsentry/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
