// Package counters holds the two atomic counters the Supervisor owns to
// decide when a run is quiescent: the number of URLs accepted into the
// pipeline (in) and the number of pages that have finished scraping (out).
// Every producer that admits a URL bumps In exactly once. A URL that
// reaches a worker and finishes scraping, successfully or not under
// on_scrap_error=SkipAndLog, bumps Out exactly once. A URL dropped earlier
// by a download error under on_dl_error=SkipAndLog never reaches a worker,
// so it instead undoes its own In bump (DropIn) rather than bumping Out —
// either way in >= out holds at every instant and in == out at quiescence.
//
// The type lives in its own package, rather than supervisor, so the
// sitemap walker, download pool, and worker pool can all mutate it without
// importing the Supervisor that owns the rest of the pipeline's wiring.
package counters

import "sync/atomic"

// Counters is safe for concurrent use.
type Counters struct {
	in         atomic.Int64
	out        atomic.Int64
	walkerDone atomic.Bool
}

// New returns a zeroed Counters.
func New() *Counters {
	return &Counters{}
}

// BumpIn records one more URL admitted into the pipeline.
func (c *Counters) BumpIn() int64 {
	return c.in.Add(1)
}

// DropIn undoes a BumpIn for a URL that was counted in-flight but never
// actually entered the pipeline, e.g. a send aborted by context
// cancellation before the receiver could pick it up.
func (c *Counters) DropIn() int64 {
	return c.in.Add(-1)
}

// BumpOut records one more page having finished, regardless of outcome.
func (c *Counters) BumpOut() int64 {
	return c.out.Add(1)
}

// Snapshot returns the current (in, out) pair.
func (c *Counters) Snapshot() (in, out int64) {
	return c.in.Load(), c.out.Load()
}

// MarkWalkerDone records that the sitemap walker has finished enumerating
// every seed (or, for a Pages seed, pushed every explicit URL). It is
// idempotent and safe to call from the single walker task only.
func (c *Counters) MarkWalkerDone() {
	c.walkerDone.Store(true)
}

// WalkerDone reports whether the walker has finished enumeration.
func (c *Counters) WalkerDone() bool {
	return c.walkerDone.Load()
}

// Quiescent reports whether every admitted URL has finished AND the
// walker has finished enumeration — the full termination criterion from
// §4.5's quiescence detector, not just the counter equality half of it.
func (c *Counters) Quiescent() bool {
	in, out := c.Snapshot()
	return in == out && c.WalkerDone()
}
