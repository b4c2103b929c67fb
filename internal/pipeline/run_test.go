package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creativecommons/quantify/internal/fetcher"
	"github.com/creativecommons/quantify/internal/gitops"
	"github.com/creativecommons/quantify/internal/retry"
	"github.com/creativecommons/quantify/internal/types"
)

// fakePager replays scripted pages for one source.
type fakePager struct {
	source string
	pages  [][]types.Record
	errs   []error
	calls  int
}

func (p *fakePager) Source() string {
	return p.source
}

func (p *fakePager) NextPage(_ context.Context) ([]types.Record, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.pages) {
		return nil, fetcher.ErrExhausted
	}
	return p.pages[i], nil
}

// fakePublisher records publish calls.
type fakePublisher struct {
	calls   int
	paths   []string
	message string
	result  gitops.Result
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, paths []string, message string) (gitops.Result, error) {
	p.calls++
	p.paths = paths
	p.message = message
	return p.result, p.err
}

func records(source string, n int) []types.Record {
	out := make([]types.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, types.Record{
			Source:    source,
			Query:     "q",
			Count:     int64(i),
			FetchedAt: time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}

func quietPolicy() retry.Policy {
	return retry.Policy{BaseDelay: time.Millisecond, Multiplier: 2, MaxAttempts: 3,
		Sleep: func(time.Duration) {}}
}

func TestRun_DryRunFetchesAndDiscards(t *testing.T) {
	pager := &fakePager{source: "github", pages: [][]types.Record{records("github", 3)}}
	dataDir := t.TempDir()

	report, err := Run(context.Background(), RunOptions{
		Pagers:  []fetcher.Pager{pager},
		Limit:   -1,
		DataDir: dataDir,
		Policy:  quietPolicy(),
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 3, report.Results[0].Records)
	assert.Empty(t, report.Results[0].Path)

	// Nothing written in a dry run
	entries, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_SaveWritesSnapshotPerSource(t *testing.T) {
	asOf := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	a := &fakePager{source: "github", pages: [][]types.Record{records("github", 2)}}
	b := &fakePager{source: "google_custom_search", pages: [][]types.Record{}}
	dataDir := t.TempDir()

	report, err := Run(context.Background(), RunOptions{
		Pagers:     []fetcher.Pager{a, b},
		Limit:      -1,
		EnableSave: true,
		DataDir:    dataDir,
		Policy:     quietPolicy(),
		AsOf:       asOf,
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	require.Len(t, report.Results, 2)

	// Source with records
	content, err := os.ReadFile(report.Results[0].Path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(content), "\n")) // header + 2 rows

	// Empty source still gets a header-only snapshot
	content, err = os.ReadFile(report.Results[1].Path)
	require.NoError(t, err)
	assert.Equal(t, "SOURCE,QUERY,COUNT,FETCHED_AT\n", string(content))
	assert.Equal(t, filepath.Join(dataDir, "2026Q3", "1-fetch", "google_custom_search.csv"),
		report.Results[1].Path)
}

func TestRun_AuthErrorIsFatalAndSkipsRemainingSources(t *testing.T) {
	a := &fakePager{source: "google_custom_search",
		errs: []error{&fetcher.AuthError{Source: "google_custom_search", Message: "bad key"}}}
	b := &fakePager{source: "github", pages: [][]types.Record{records("github", 2)}}

	report, err := Run(context.Background(), RunOptions{
		Pagers: []fetcher.Pager{a, b},
		Limit:  -1,
		Policy: quietPolicy(),
	})
	require.Error(t, err)
	assert.Equal(t, StateFailed, report.State)
	assert.True(t, report.Failed())

	var authErr *fetcher.AuthError
	assert.ErrorAs(t, err, &authErr)
	assert.Equal(t, ExitAuth, ExitCodeFor(err))

	// Exactly one attempt, no retries, and the second source never ran
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 0, b.calls)
	assert.Len(t, report.Results, 1)
}

func TestRun_FetchFailureIsolatedToOneSource(t *testing.T) {
	boom := &fetcher.TransientError{Source: "google_custom_search", Message: "503"}
	a := &fakePager{source: "google_custom_search", errs: []error{boom, boom, boom}}
	b := &fakePager{source: "github", pages: [][]types.Record{records("github", 2)}}
	dataDir := t.TempDir()

	report, err := Run(context.Background(), RunOptions{
		Pagers:     []fetcher.Pager{a, b},
		Limit:      -1,
		EnableSave: true,
		DataDir:    dataDir,
		Policy:     quietPolicy(),
	})
	require.Error(t, err)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, ExitFailure, ExitCodeFor(err))

	var failedErr *fetcher.FetchFailedError
	assert.ErrorAs(t, err, &failedErr)

	// The healthy source still completed and its snapshot survives
	require.Len(t, report.Results, 2)
	assert.Error(t, report.Results[0].Err)
	assert.NoError(t, report.Results[1].Err)
	_, statErr := os.Stat(report.Results[1].Path)
	assert.NoError(t, statErr)
}

func TestRun_PublishCommitsChangedFiles(t *testing.T) {
	asOf := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	pager := &fakePager{source: "github", pages: [][]types.Record{
		records("github", 20), records("github", 20), records("github", 10),
	}}
	pub := &fakePublisher{result: gitops.Result{CommitID: "abc123"}}

	report, err := Run(context.Background(), RunOptions{
		Pagers:     []fetcher.Pager{pager},
		Limit:      50,
		EnableSave: true,
		EnableGit:  true,
		DataDir:    t.TempDir(),
		Publisher:  pub,
		Policy:     quietPolicy(),
		AsOf:       asOf,
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, "abc123", report.CommitID)

	// End-to-end: 3 pages of 20/20/10 capped at 50, one changed file
	require.Len(t, report.Results, 1)
	assert.Equal(t, 50, report.Results[0].Records)
	assert.Equal(t, 3, report.Results[0].Pages)
	assert.Equal(t, 1, pub.calls)
	require.Len(t, pub.paths, 1)
	assert.Contains(t, pub.message, "github")
	assert.Contains(t, pub.message, "2026Q3")

	content, err := os.ReadFile(pub.paths[0])
	require.NoError(t, err)
	assert.Equal(t, 51, strings.Count(string(content), "\n"))
}

func TestRun_PublishNoOpOnIdenticalRefetch(t *testing.T) {
	pager := &fakePager{source: "github", pages: [][]types.Record{records("github", 2)}}
	pub := &fakePublisher{result: gitops.Result{NoOp: true}}

	report, err := Run(context.Background(), RunOptions{
		Pagers:     []fetcher.Pager{pager},
		Limit:      -1,
		EnableSave: true,
		EnableGit:  true,
		DataDir:    t.TempDir(),
		Publisher:  pub,
		Policy:     quietPolicy(),
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.True(t, report.NoOp)
	assert.Empty(t, report.CommitID)
}

func TestRun_PublishFailureIsFatal(t *testing.T) {
	pager := &fakePager{source: "github", pages: [][]types.Record{records("github", 2)}}
	pub := &fakePublisher{err: &gitops.ConflictError{Message: "push rejected twice"}}
	dataDir := t.TempDir()

	report, err := Run(context.Background(), RunOptions{
		Pagers:     []fetcher.Pager{pager},
		Limit:      -1,
		EnableSave: true,
		EnableGit:  true,
		DataDir:    dataDir,
		Publisher:  pub,
		Policy:     quietPolicy(),
	})
	require.Error(t, err)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, ExitFailure, ExitCodeFor(err))

	var conflictErr *gitops.ConflictError
	assert.ErrorAs(t, err, &conflictErr)

	// The snapshot written before the failed publish is preserved
	_, statErr := os.Stat(report.Results[0].Path)
	assert.NoError(t, statErr)
}

func TestRun_GitWithoutSaveHasNothingToPublish(t *testing.T) {
	pager := &fakePager{source: "github", pages: [][]types.Record{records("github", 2)}}
	pub := &fakePublisher{}

	report, err := Run(context.Background(), RunOptions{
		Pagers:    []fetcher.Pager{pager},
		Limit:     -1,
		EnableGit: true,
		Publisher: pub,
		Policy:    quietPolicy(),
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 0, pub.calls)
}

func TestRun_VerboseOutput(t *testing.T) {
	var buf bytes.Buffer
	pager := &fakePager{source: "github", pages: [][]types.Record{records("github", 2)}}

	_, err := Run(context.Background(), RunOptions{
		Pagers:  []fetcher.Pager{pager},
		Limit:   -1,
		Policy:  quietPolicy(),
		Verbose: true,
		Out:     &buf,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Fetched 2 record(s) from github")
	assert.Contains(t, buf.String(), "FETCHED: github")
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"Nil", nil, ExitOK},
		{"Auth", &fetcher.AuthError{Source: "s"}, ExitAuth},
		{"Wrapped auth", errors.Join(errors.New("run failed"), &fetcher.AuthError{Source: "s"}), ExitAuth},
		{"Fetch failed", &fetcher.FetchFailedError{Source: "s", Attempts: 5, Cause: errors.New("x")}, ExitFailure},
		{"Plain", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExitCodeFor(tt.err))
		})
	}
}
