// Package fetcher defines the pagination contract shared by all data
// sources and the collection loop that drives it.
package fetcher

import (
	"context"
	"errors"

	"github.com/creativecommons/quantify/internal/retry"
	"github.com/creativecommons/quantify/internal/types"
)

// Pager produces successive pages of records for one external source.
// A Pager owns its pagination cursor, advances it monotonically, and is
// not restartable. NextPage returns ErrExhausted once no pages remain.
type Pager interface {
	Source() string
	NextPage(ctx context.Context) ([]types.Record, error)
}

// Collect drives pager to completion or limit, wrapping every page call
// in the retry policy. A negative limit means no cap; limit zero means
// no page is requested at all. Records are returned in fetch order,
// truncated to limit, along with the number of pages fetched.
//
// ErrExhausted from the pager ends collection successfully. A page call
// whose retry budget is spent returns a FetchFailedError together with
// the records accumulated so far.
func Collect(ctx context.Context, pager Pager, limit int, policy retry.Policy) ([]types.Record, int, error) {
	var records []types.Record
	pages := 0

	for limit < 0 || len(records) < limit {
		var page []types.Record
		attempts, err := policy.Do(ctx, IsRetryable, func() error {
			var perr error
			page, perr = pager.NextPage(ctx)
			return perr
		})
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			if IsRetryable(err) {
				err = &FetchFailedError{Source: pager.Source(), Attempts: attempts, Cause: err}
			}
			return truncate(records, limit), pages, err
		}
		pages++
		records = append(records, page...)
	}

	return truncate(records, limit), pages, nil
}

func truncate(records []types.Record, limit int) []types.Record {
	if limit >= 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
