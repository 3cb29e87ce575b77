// Package throttle rate-limits a stream of async operations under one of
// three policies, shared by the sitemap walker's recursion fan-out and the
// download pool so a configured rate is a true global (see design note in
// the crawler's throttler integration section).
package throttle

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Kind identifies which throttling strategy a Policy applies.
type Kind int

const (
	// KindConcurrent bounds the number of in-flight operations; no pacing.
	KindConcurrent Kind = iota
	// KindPerSecond holds up to N permits, refilled continuously at N/s
	// (one every 1/N s), not all at once on each second boundary.
	KindPerSecond
	// KindDelay refills a single permit every d; a minimum pacing between starts.
	KindDelay
)

// Policy is an immutable throttling configuration.
type Policy struct {
	kind  Kind
	n     int
	delay time.Duration
}

// Concurrent caps the number of simultaneously in-flight operations at n.
func Concurrent(n int) Policy { return Policy{kind: KindConcurrent, n: n} }

// PerSecond allows n operation starts per second, via a token bucket of n
// permits that refills one permit every 1/n seconds; the bucket is not
// refilled in a single step once per second.
func PerSecond(n int) Policy { return Policy{kind: KindPerSecond, n: n} }

// Delay paces operation starts at most once every d.
func Delay(d time.Duration) Policy { return Policy{kind: KindDelay, delay: d} }

// Kind reports which strategy the policy uses.
func (p Policy) Kind() Kind { return p.kind }

// Validate enforces the strictly-positive invariants from CrawlerConfig.
func (p Policy) Validate() error {
	switch p.kind {
	case KindConcurrent, KindPerSecond:
		if p.n < 1 {
			return fmt.Errorf("throttle: n must be >= 1, got %d", p.n)
		}
	case KindDelay:
		if p.delay <= 0 {
			return fmt.Errorf("throttle: delay must be > 0, got %v", p.delay)
		}
	default:
		return fmt.Errorf("throttle: unknown policy kind %d", p.kind)
	}
	return nil
}

// Throttler rate-controls a stream of operations under a single Policy. A
// Throttler is shared by every call site that must observe the same global
// rate; do not construct more than one per run.
type Throttler struct {
	policy  Policy
	sem     chan struct{}
	limiter *rate.Limiter
}

// New constructs a Throttler for the given policy.
func New(policy Policy) (*Throttler, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	t := &Throttler{policy: policy}
	switch policy.kind {
	case KindConcurrent:
		t.sem = make(chan struct{}, policy.n)
	case KindPerSecond:
		t.limiter = rate.NewLimiter(rate.Limit(policy.n), policy.n)
	case KindDelay:
		t.limiter = rate.NewLimiter(rate.Every(policy.delay), 1)
	}
	return t, nil
}

// Acquire blocks until the policy admits one more operation start and
// returns a release func to call when the operation completes. For
// KindConcurrent, release frees the in-flight slot. For KindPerSecond and
// KindDelay the permit is consumed by the start, not returned on
// completion, so release is a no-op — this matches the token-bucket
// refill-is-time-driven semantics in the policy description.
func (t *Throttler) Acquire(ctx context.Context) (release func(), err error) {
	switch t.policy.kind {
	case KindConcurrent:
		select {
		case t.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return func() { <-t.sem }, nil
	default:
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return func() {}, nil
	}
}

// Run acquires a permit, runs fn, and always releases the permit regardless
// of fn's outcome. It is the usual way to wrap a single download or
// sitemap-recursion fetch.
func Run[T any](ctx context.Context, t *Throttler, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	release, err := t.Acquire(ctx)
	if err != nil {
		return zero, err
	}
	defer release()
	return fn(ctx)
}
