// Package githubsearch fetches counts of public GitHub repositories
// declaring Creative Commons licenses, via the repository search API.
package githubsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/creativecommons/quantify/internal/fetcher"
	"github.com/creativecommons/quantify/internal/types"
)

// SourceName labels records and snapshot files produced by this source.
const SourceName = "github"

const (
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 30 * time.Second

	// apiVersion pins the REST API media version.
	apiVersion = "2022-11-28"
)

// Config holds the GitHub credentials and client settings. BaseURL is
// overridable so tests can point the pager at an httptest server.
type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// Pager walks the SPDX license plan one query at a time. Each page is
// one search call with per_page=1 (the search API allows up to 100, but
// only total_count is consumed) yielding one record.
type Pager struct {
	client  *http.Client
	baseURL string
	token   string
	plan    []types.Query
	next    int // cursor: index of the next plan entry
	now     func() time.Time
}

// NewPager creates a Pager over the default SPDX license plan.
func NewPager(cfg Config) (*Pager, error) {
	if cfg.Token == "" {
		return nil, &fetcher.AuthError{
			Source:  SourceName,
			Message: "GITHUB_TOKEN is required",
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Pager{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		plan:    DefaultPlan(),
		now:     time.Now,
	}, nil
}

// Source implements fetcher.Pager.
func (p *Pager) Source() string {
	return SourceName
}

// searchResponse is the subset of the search API response consumed here.
type searchResponse struct {
	TotalCount int64 `json:"total_count"`
}

// NextPage issues one repository search for the next license in the
// plan and yields one record with its total repository count. The
// cursor advances only after a successful call, so a retried page
// re-issues the same query.
func (p *Pager) NextPage(ctx context.Context) ([]types.Record, error) {
	if p.next >= len(p.plan) {
		return nil, fetcher.ErrExhausted
	}

	q := p.plan[p.next]
	endpoint := fmt.Sprintf("%s/search/repositories?q=%s&per_page=1",
		p.baseURL, url.QueryEscape("license:"+q.Term))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %q: %w", q.Term, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &fetcher.TransientError{Source: SourceName, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("malformed response for %q: %w", q.Term, err)
	}

	p.next++
	return []types.Record{{
		Source:    SourceName,
		Query:     q.Term,
		Count:     result.TotalCount,
		FetchedAt: p.now().UTC(),
	}}, nil
}

// classifyStatus maps non-200 search responses onto the fetch error
// taxonomy. GitHub signals both primary and secondary rate limits with
// 403, distinguished by the x-ratelimit-remaining and retry-after
// headers.
func classifyStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := fmt.Sprintf("HTTP status %d: %s", resp.StatusCode, string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &fetcher.AuthError{Source: SourceName, Message: "invalid token"}
	case resp.StatusCode == http.StatusForbidden:
		if resp.Header.Get("x-ratelimit-remaining") == "0" || resp.Header.Get("retry-after") != "" {
			return &fetcher.RateLimitError{Source: SourceName, Message: detail}
		}
		return &fetcher.AuthError{Source: SourceName, Message: detail}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &fetcher.RateLimitError{Source: SourceName, Message: detail}
	case resp.StatusCode >= 500:
		return &fetcher.TransientError{Source: SourceName, Message: detail}
	}
	return fmt.Errorf("unexpected response: %s", detail)
}

// DefaultPlan enumerates the SPDX identifiers GitHub's license
// detection recognizes for Creative Commons tools.
func DefaultPlan() []types.Query {
	ids := []string{"cc0-1.0", "cc-by-4.0", "cc-by-sa-4.0"}
	plan := make([]types.Query, 0, len(ids))
	for _, id := range ids {
		plan = append(plan, types.Query{Source: SourceName, Term: id})
	}
	return plan
}
