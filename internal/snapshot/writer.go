// Package snapshot serializes fetched records into dated CSV files
// under the quarter-based data tree. Snapshot files are append-only as
// a series: a file, once written, is only ever replaced wholesale by a
// re-run for the same source and quarter, never edited in place.
package snapshot

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/creativecommons/quantify/internal/types"
)

// phaseDir is the fetch phase directory inside each quarter, matching
// the data tree consumed by the downstream process and report phases.
const phaseDir = "1-fetch"

// header is the fixed CSV column set. A header-only file distinguishes
// "ran, found nothing" from "did not run".
var header = []string{"SOURCE", "QUERY", "COUNT", "FETCHED_AT"}

// Writer writes snapshot files under Dir.
type Writer struct {
	Dir string
}

// Quarter returns the YYYYQn label for t, the directory granularity of
// the data tree.
func Quarter(t time.Time) string {
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("%dQ%d", t.Year(), q)
}

// Path returns the deterministic snapshot location for a source and
// date. Re-running with the same source in the same quarter resolves to
// the same file.
func (w Writer) Path(source string, asOf time.Time) string {
	return filepath.Join(w.Dir, Quarter(asOf), phaseDir, source+".csv")
}

// Write serializes records to the snapshot file for (source, asOf),
// creating missing directories and overwriting any previous file at
// that path. Zero records still produces a header-only file. Output is
// byte-stable for identical input.
func (w Writer) Write(records []types.Record, source string, asOf time.Time) (types.Snapshot, error) {
	snap := types.Snapshot{
		Source:  source,
		AsOf:    asOf.UTC(),
		Path:    w.Path(source, asOf),
		Records: len(records),
	}
	if err := os.MkdirAll(filepath.Dir(snap.Path), 0o755); err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	f, err := os.Create(snap.Path)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to write snapshot header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Source,
			r.Query,
			strconv.FormatInt(r.Count, 10),
			r.FetchedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return types.Snapshot{}, fmt.Errorf("failed to write snapshot row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to flush snapshot: %w", err)
	}

	return snap, nil
}
