// Package retry provides bounded exponential backoff for single page
// calls against rate-limited external APIs.
package retry

import (
	"context"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"
)

const (
	defaultBaseDelay   = 1 * time.Second
	defaultMultiplier  = 2.0
	defaultMaxAttempts = 5
	defaultMaxJitter   = 500 * time.Millisecond
)

// Policy describes the backoff schedule for one wrapped call.
type Policy struct {
	BaseDelay   time.Duration // delay before the second attempt
	Multiplier  float64       // growth factor per further attempt
	MaxAttempts int           // total attempts, including the first
	MaxJitter   time.Duration // random extra delay added to each wait

	// Sleep overrides the wait between attempts. Tests use it to
	// record the schedule instead of sleeping.
	Sleep func(time.Duration)
}

// DefaultPolicy returns the standard backoff schedule, with overrides
// from QF_RETRY_BASE_DELAY and QF_RETRY_MAX_ATTEMPTS.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   getEnvDuration("QF_RETRY_BASE_DELAY", defaultBaseDelay),
		Multiplier:  defaultMultiplier,
		MaxAttempts: getEnvInt("QF_RETRY_MAX_ATTEMPTS", defaultMaxAttempts),
		MaxJitter:   defaultMaxJitter,
	}
}

// Delay returns the jitter-free wait after the given attempt number
// (1-based). Attempt 1 waits BaseDelay, each further attempt grows by
// Multiplier.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	return time.Duration(d)
}

// Do invokes fn until it succeeds, returns an error retryable reports
// false for, or the attempt budget is spent. It returns the number of
// attempts made and the last error (nil on success).
func (p Policy) Do(ctx context.Context, retryable func(error) bool, fn func() error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return attempt, nil
		}
		if !retryable(err) || attempt >= maxAttempts {
			return attempt, err
		}
		if werr := p.wait(ctx, p.Delay(attempt)+p.jitter()); werr != nil {
			return attempt, werr
		}
	}
}

func (p Policy) jitter() time.Duration {
	if p.MaxJitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(p.MaxJitter)))
}

func (p Policy) wait(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		p.Sleep(d)
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
