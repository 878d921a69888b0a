// Package main provides the entry point for the bcfeed CLI.
package main

import (
	"github.com/bcfeed/bcfeed/internal/cli"
)

func main() {
	cli.Execute()
}
