package core

import (
	"fmt"
	"os"
)

// Eprint writes msg to stderr when verbose is true.
func Eprint(msg string, verbose bool) {
	if verbose {
		fmt.Fprintln(os.Stderr, msg)
	}
}

// ProgressPrint writes msg to stderr unless quiet is true.
func ProgressPrint(msg string, quiet bool) {
	if !quiet {
		fmt.Fprintln(os.Stderr, msg)
	}
}
