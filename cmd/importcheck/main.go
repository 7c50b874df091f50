package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/faunatrack/server/internal/conservation"
	"github.com/faunatrack/server/internal/importer"
	"github.com/faunatrack/server/internal/species"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run validates one spreadsheet without touching a database and prints the
// import summary. Files rejected as a whole exit with status 1.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("importcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("file", "", "CSV or XLSX file to check")
	kind := fs.String("kind", "plans", "record kind: plans or species")
	limit := fs.Int("limit", importer.DefaultSkippedDetailsLimit, "number of skip reasons to print")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *path == "" {
		fmt.Fprintln(stderr, "-file is required")
		return 2
	}

	var dryRun func(string, []byte, int) (importer.Summary, error)
	switch *kind {
	case "plans":
		dryRun = conservation.DryRun
	case "species":
		dryRun = species.DryRun
	default:
		fmt.Fprintf(stderr, "unknown kind %q\n", *kind)
		return 2
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(stderr, "read %s: %v\n", *path, err)
		return 1
	}

	summary, err := dryRun(filepath.Base(*path), data, *limit)
	if err != nil {
		fmt.Fprintf(stderr, "import check failed: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		fmt.Fprintf(stderr, "write summary: %v\n", err)
		return 1
	}
	return 0
}
