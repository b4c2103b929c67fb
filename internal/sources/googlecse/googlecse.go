// Package googlecse fetches Creative Commons legal tool usage counts
// from the Google Custom Search JSON API.
package googlecse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/creativecommons/quantify/internal/fetcher"
	"github.com/creativecommons/quantify/internal/types"
)

// SourceName labels records and snapshot files produced by this source.
const SourceName = "google_custom_search"

// Config holds the Custom Search credentials. They are injected here
// rather than read from the environment so the pager stays testable
// with mock credentials.
type Config struct {
	APIKey string
	CX     string
}

// Pager walks the legal tool plan one query at a time. Each page is a
// single Cse.List call; only the total result count is consumed, so the
// call requests one item regardless of the API's page-size maximum of
// ten.
type Pager struct {
	svc  *customsearch.Service
	cx   string
	plan []types.Query
	next int // cursor: index of the next plan entry
	now  func() time.Time
}

// NewPager creates a Pager over the default legal tool plan. Extra
// client options are forwarded to the customsearch service (tests use
// option.WithEndpoint).
func NewPager(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Pager, error) {
	if cfg.APIKey == "" || cfg.CX == "" {
		return nil, &fetcher.AuthError{
			Source:  SourceName,
			Message: "GCS_DEVELOPER_KEY and GCS_CX are required",
		}
	}

	opts = append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}

	return &Pager{
		svc:  svc,
		cx:   cfg.CX,
		plan: DefaultPlan(),
		now:  time.Now,
	}, nil
}

// Source implements fetcher.Pager.
func (p *Pager) Source() string {
	return SourceName
}

// NextPage issues one Custom Search query for the next legal tool in
// the plan and yields one record with its total match count. The cursor
// advances only after a successful call, so a retried page re-issues
// the same query.
func (p *Pager) NextPage(ctx context.Context) ([]types.Record, error) {
	if p.next >= len(p.plan) {
		return nil, fetcher.ErrExhausted
	}

	q := p.plan[p.next]
	resp, err := p.svc.Cse.List().Context(ctx).Cx(p.cx).Q(fmt.Sprintf("%q", q.Term)).Num(1).Do()
	if err != nil {
		return nil, classify(err)
	}

	if resp.SearchInformation == nil {
		return nil, fmt.Errorf("malformed response for %q: missing searchInformation", q.Term)
	}
	count, err := strconv.ParseInt(resp.SearchInformation.TotalResults, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed total for %q: %w", q.Term, err)
	}

	p.next++
	return []types.Record{{
		Source:    SourceName,
		Query:     q.Term,
		Count:     count,
		FetchedAt: p.now().UTC(),
	}}, nil
}

// classify maps customsearch failures onto the fetch error taxonomy.
// 403 is ambiguous at this API: quota exhaustion and bad credentials
// share the status code, so the error reason decides.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &fetcher.TransientError{Source: SourceName, Message: "request failed", Cause: err}
	}

	switch {
	case gerr.Code == http.StatusUnauthorized:
		return &fetcher.AuthError{Source: SourceName, Message: "invalid developer key", Cause: err}
	case gerr.Code == http.StatusForbidden:
		if isQuotaReason(gerr) {
			return &fetcher.RateLimitError{Source: SourceName, Message: "daily quota exceeded", Cause: err}
		}
		return &fetcher.AuthError{Source: SourceName, Message: "access forbidden", Cause: err}
	case gerr.Code == http.StatusTooManyRequests:
		return &fetcher.RateLimitError{Source: SourceName, Message: "too many requests", Cause: err}
	case gerr.Code >= 500:
		return &fetcher.TransientError{Source: SourceName, Message: fmt.Sprintf("HTTP status %d", gerr.Code), Cause: err}
	}
	return err
}

func isQuotaReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded", "quotaExceeded":
			return true
		}
	}
	return false
}
