package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/JonMunkholm/ClientImport/internal/core"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPreview(w io.Writer, file string, p core.PreviewResult) {
	fmt.Fprintf(w, "%s: %d rows\n", file, p.TotalRows)
	fmt.Fprintln(w, color.GreenString("  valid:      %d", p.ValidCount))
	fmt.Fprintln(w, color.RedString("  invalid:    %d", p.InvalidCount))
	fmt.Fprintln(w, color.YellowString("  duplicates: %d", p.DuplicateCount))
	if p.WarningCount > 0 {
		fmt.Fprintln(w, color.YellowString("  warnings:   %d", p.WarningCount))
	}

	if len(p.SampleErrors) == 0 {
		return
	}
	fmt.Fprintln(w, "First errors:")
	for _, e := range p.SampleErrors {
		fmt.Fprintf(w, "  row %-5d %-14s %s\n", e.Row, e.Field, e.Message)
	}
	if shown := len(p.SampleErrors); shown < p.InvalidCount+p.DuplicateCount {
		fmt.Fprintln(w, "  ... more rows have errors; use --json for the full report")
	}
}

// printOutcomes lists every row that will not be imported.
func printOutcomes(w io.Writer, outcomes []core.ValidationOutcome) {
	for _, o := range outcomes {
		if o.Status == core.StatusValid && !o.HasWarnings() {
			continue
		}
		msgs := make([]string, 0, len(o.Errors))
		for _, e := range o.Errors {
			msgs = append(msgs, e.Error())
		}
		line := fmt.Sprintf("row %-5d %-18s %s", o.Record.SourceRow, o.Status, strings.Join(msgs, "; "))
		c := color.New(color.FgRed)
		if o.Status == core.StatusValid {
			c = color.New(color.FgYellow)
		}
		fmt.Fprintln(w, c.Sprint(line))
	}
}

func printSummary(w io.Writer, s core.ImportSummary) {
	printPreview(w, s.File, s.Preview)
	fmt.Fprintln(w, color.GreenString("Stored %d clients (run %s)", s.Committed, s.RunID))
}
