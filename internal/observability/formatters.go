// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/creativecommons/quantify/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintPlan outputs the query plan registered for a source.
func (p *Printer) PrintPlan(source string, plan []types.Query) {
	if len(plan) == 0 {
		return
	}

	var sb strings.Builder
	count := min(len(plan), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", plan[i].Term))
	}
	if len(plan) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(plan)-maxItemsToShow))
	}

	p.printBox(fmt.Sprintf("QUERY PLAN: %s (%d queries)", source, len(plan)),
		strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRecords outputs a human-readable summary of fetched records.
func (p *Printer) PrintRecords(source string, records []types.Record) {
	if len(records) == 0 {
		p.printBox(fmt.Sprintf("FETCHED: %s", source), "(no records)")
		return
	}

	var sb strings.Builder
	count := min(len(records), maxItemsToShow)
	for i := 0; i < count; i++ {
		r := records[i]
		sb.WriteString(fmt.Sprintf("  %-40s %d\n", r.Query, r.Count))
	}
	if len(records) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(records)-maxItemsToShow))
	}

	p.printBox(fmt.Sprintf("FETCHED: %s (%d records)", source, len(records)),
		strings.TrimSuffix(sb.String(), "\n"))
}
