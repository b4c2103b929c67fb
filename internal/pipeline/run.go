// Package pipeline orchestrates one end-to-end run: fetch each
// configured source, snapshot the results, and publish the changed
// files. Execution is strictly sequential; one source's pagination
// completes before the next begins.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/creativecommons/quantify/internal/fetcher"
	"github.com/creativecommons/quantify/internal/gitops"
	"github.com/creativecommons/quantify/internal/observability"
	"github.com/creativecommons/quantify/internal/retry"
	"github.com/creativecommons/quantify/internal/snapshot"
)

// State names the phase a run is in. Saving and Publishing are skipped
// entirely when disabled by configuration.
type State string

const (
	StateInit       State = "init"
	StateFetching   State = "fetching"
	StateSaving     State = "saving"
	StatePublishing State = "publishing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Process exit codes, surfaced through ExitCodeFor.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitAuth    = 2
)

// Publisher is the subset of gitops.Publisher a run needs.
type Publisher interface {
	Publish(ctx context.Context, paths []string, message string) (gitops.Result, error)
}

// RunOptions wires one run together. EnableSave and EnableGit mirror
// the --enable-save / --enable-git flags; with neither set the run is a
// dry run that fetches, reports, and discards.
type RunOptions struct {
	Pagers     []fetcher.Pager
	Limit      int // max records per source; negative means no cap
	EnableSave bool
	EnableGit  bool
	DataDir    string
	Publisher  Publisher
	Policy     retry.Policy
	AsOf       time.Time // defaults to now
	Verbose    bool
	Out        io.Writer
}

// SourceResult is the per-source outcome of a run.
type SourceResult struct {
	Source  string
	Records int
	Pages   int
	Path    string // snapshot path, empty when saving was disabled
	Err     error
}

// Report summarizes a finished run.
type Report struct {
	RunID    uuid.UUID
	State    State
	Results  []SourceResult
	CommitID string
	NoOp     bool
}

// Failed reports whether the run ended in the failed state.
func (r *Report) Failed() bool {
	return r.State == StateFailed
}

// Run executes the fetch -> (save) -> (publish) pipeline. A source
// whose retry budget is exhausted aborts that source only; remaining
// sources still attempt to complete. An auth failure is fatal to the
// whole run. Snapshot files already written are never rolled back.
func Run(ctx context.Context, opts RunOptions) (*Report, error) {
	report := &Report{RunID: uuid.New(), State: StateInit}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	printer := observability.NewPrinter(out)
	writer := snapshot.Writer{Dir: opts.DataDir}

	fmt.Fprintf(out, "Run %s: %d source(s), limit %d, save=%t, git=%t\n",
		report.RunID, len(opts.Pagers), opts.Limit, opts.EnableSave, opts.EnableGit)

	report.State = StateFetching
	var written []string
	var fatal error

	for _, pager := range opts.Pagers {
		source := pager.Source()
		fmt.Fprintf(out, "Fetching %s...\n", source)

		records, pages, err := fetcher.Collect(ctx, pager, opts.Limit, opts.Policy)
		result := SourceResult{Source: source, Records: len(records), Pages: pages, Err: err}

		if err != nil {
			fmt.Fprintf(out, "Fetching %s failed after %d page(s): %v\n", source, pages, err)
		} else {
			fmt.Fprintf(out, "Fetched %d record(s) from %s in %d page(s)\n", len(records), source, pages)
			if opts.Verbose {
				printer.PrintRecords(source, records)
			}
		}

		// Preserve whatever was fetched, even for a failed source. A
		// header-only file still records that the source ran.
		if opts.EnableSave {
			report.State = StateSaving
			snap, werr := writer.Write(records, source, asOf)
			if werr != nil {
				result.Err = errors.Join(result.Err, werr)
			} else {
				result.Path = snap.Path
				written = append(written, snap.Path)
				fmt.Fprintf(out, "Saved snapshot: %s (%d record(s))\n", snap.Path, snap.Records)
			}
			report.State = StateFetching
		}

		report.Results = append(report.Results, result)

		var authErr *fetcher.AuthError
		if errors.As(err, &authErr) {
			fatal = err
			break
		}
	}

	if fatal != nil {
		report.State = StateFailed
		return report, fatal
	}

	if opts.EnableGit && len(written) > 0 {
		report.State = StatePublishing
		if opts.Publisher == nil {
			report.State = StateFailed
			return report, fmt.Errorf("publishing enabled but no publisher configured")
		}
		message := commitMessage(report, asOf)
		fmt.Fprintf(out, "Publishing %d file(s)...\n", len(written))
		res, err := opts.Publisher.Publish(ctx, written, message)
		if err != nil {
			report.State = StateFailed
			return report, fmt.Errorf("publish failed: %w", err)
		}
		report.CommitID = res.CommitID
		report.NoOp = res.NoOp
		if res.NoOp {
			fmt.Fprintf(out, "No net changes; nothing committed\n")
		} else {
			fmt.Fprintf(out, "Committed %s\n", res.CommitID)
		}
	}

	if failedSources(report.Results) > 0 {
		report.State = StateFailed
		return report, firstError(report.Results)
	}

	report.State = StateDone
	return report, nil
}

// commitMessage builds the fixed-format data commit message from the
// sources that produced a snapshot.
func commitMessage(report *Report, asOf time.Time) string {
	sources := make([]string, 0, len(report.Results))
	for _, r := range report.Results {
		if r.Path != "" && r.Err == nil {
			sources = append(sources, r.Source)
		}
	}
	sort.Strings(sources)
	short := report.RunID.String()[:8]
	return fmt.Sprintf("Add data: %s %s (run %s)",
		strings.Join(sources, ", "), snapshot.Quarter(asOf), short)
}

func failedSources(results []SourceResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func firstError(results []SourceResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// ExitCodeFor maps an error from Run onto the process exit code
// convention: 2 for credential failures, 1 for anything else, 0 for nil.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	var authErr *fetcher.AuthError
	if errors.As(err, &authErr) {
		return ExitAuth
	}
	return ExitFailure
}
