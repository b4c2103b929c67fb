// Package types defines the immutable values exchanged between the
// fetch, snapshot, and publish stages of a run.
package types

import "time"

// Query describes one thing to count at one data source. Queries come
// from a source's plan at construction time and are never mutated.
type Query struct {
	Source string `json:"source"`
	Term   string `json:"term"`
}

// Record is one fetched result row: the matched count for a single
// query at a single source. A Record is immutable once produced.
type Record struct {
	Source    string    `json:"source"`
	Query     string    `json:"query"`
	Count     int64     `json:"count"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Snapshot describes one written snapshot file on disk.
type Snapshot struct {
	Source  string    `json:"source"`
	AsOf    time.Time `json:"as_of"`
	Path    string    `json:"path"`
	Records int       `json:"records"`
}
