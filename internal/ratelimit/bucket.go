// Package ratelimit implements spec §4 "Rate limiter": a token bucket
// per adapter, backed by golang.org/x/time/rate, the idiomatic Go
// limiter (SPEC_FULL.md §B).
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiters holds one token bucket per venue; a blocked Wait sleeps
// until the bucket's next token is due (spec §5's suspension-point list).
type Limiters struct {
	mu       sync.Mutex
	perVenue map[string]*rate.Limiter
	newFn    func() *rate.Limiter
}

// New constructs a Limiters set where each venue gets ratePerSec
// tokens/sec with the given burst.
func New(ratePerSec float64, burst int) *Limiters {
	return &Limiters{
		perVenue: make(map[string]*rate.Limiter),
		newFn:    func() *rate.Limiter { return rate.NewLimiter(rate.Limit(ratePerSec), burst) },
	}
}

func (l *Limiters) limiterFor(venue string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.perVenue[venue]
	if !ok {
		lim = l.newFn()
		l.perVenue[venue] = lim
	}
	return lim
}

// Wait blocks until venue's bucket has a token, or ctx is done.
func (l *Limiters) Wait(ctx context.Context, venue string) error {
	return l.limiterFor(venue).Wait(ctx)
}

// Allow is a non-blocking check, useful where the caller wants to
// short-circuit rather than poll.
func (l *Limiters) Allow(venue string) bool {
	return l.limiterFor(venue).Allow()
}
