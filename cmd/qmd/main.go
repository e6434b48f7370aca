// Command qmd is an on-device document search engine for personal text
// corpora: markdown notes, transcripts, and documentation.
package main

import (
	"fmt"
	"os"

	"github.com/qmd-search/qmd/cmd/qmd/cmd"
	qmderrors "github.com/qmd-search/qmd/internal/errors"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, qmderrors.FormatForCLI(err))
		return exitCodeFor(err)
	}
	return 0
}

// exitCodeFor maps a failure to spec.md §6's CLI exit code contract: 1 for
// a user-caused error (bad input, unknown name), 2 for an I/O or system
// failure.
func exitCodeFor(err error) int {
	switch qmderrors.GetCategory(err) {
	case qmderrors.CategoryNotFound, qmderrors.CategoryConflict, qmderrors.CategoryOversize:
		return 1
	default:
		return 2
	}
}
