// Package download is the Download Pool (C3): it drains the URL channel,
// fetches each URL through the shared Throttler, and pushes the resulting
// Page into the bounded page channel that provides the pipeline's only
// backpressure signal.
package download

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/corvid-labs/sitescrape/counters"
	"github.com/corvid-labs/sitescrape/httpfetch"
	"github.com/corvid-labs/sitescrape/scraper"
	"github.com/corvid-labs/sitescrape/seed"
	"github.com/corvid-labs/sitescrape/throttle"
)

// Logger is the minimal structured-logging surface the pool needs; it is
// satisfied by *charmbracelet/log.Logger without importing it here.
type Logger interface {
	Warn(msg string, keyvals ...any)
}

// Pool drives URL->Page fetching. One Pool instance is constructed per run
// by the Supervisor, which owns the channels it reads from and writes to.
type Pool struct {
	client    *http.Client
	throttler *throttle.Throttler
	userAgent string
	onErr     seed.ErrorPolicy
	counters  *counters.Counters
	log       Logger
}

// New constructs a Pool. client, throttler, and counters are shared with
// the rest of the run per the Supervisor's ownership model.
func New(client *http.Client, throttler *throttle.Throttler, userAgent string, onErr seed.ErrorPolicy, c *counters.Counters, log Logger) *Pool {
	return &Pool{
		client:    client,
		throttler: throttler,
		userAgent: userAgent,
		onErr:     onErr,
		counters:  c,
		log:       log,
	}
}

// Run consumes urls until the channel closes, stop fires, or ctx is
// cancelled, fetching each through the throttler and sending a Page to
// pages. It returns the first error observed under on_dl_error=Fail;
// under SkipAndLog it logs and continues, decrementing the in-flight
// counter so the quiescence invariant (in == out) still holds for the
// dropped URL. stop is closed by the Supervisor once quiescence is
// detected, the same clean-shutdown signal used to release the URL
// channel's reader when the walker will never produce more work.
//
// Because downloads race the throttler independently, on_dl_error=Fail
// only guarantees the error is eventually observed and propagated — some
// already-fetched pages may still reach pages before Run returns (see the
// at-least-one-page-after-Fail design note).
func (p *Pool) Run(ctx context.Context, urls <-chan string, pages chan<- scraper.Page, stop <-chan struct{}) error {
	eg, egCtx := errgroup.WithContext(ctx)

drain:
	for {
		select {
		case <-egCtx.Done():
			break drain
		case <-stop:
			break drain
		case rawURL, ok := <-urls:
			if !ok {
				break drain
			}
			eg.Go(func() error {
				return p.fetchAndForward(egCtx, rawURL, pages)
			})
		}
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// fetchAndForward downloads one URL through the throttler and forwards the
// result to pages. Each call runs on its own goroutine so that a
// Concurrent(N)/PerSecond(N) throttle policy actually admits up to N
// fetches in flight at once, rather than serializing every download behind
// a single loop iteration.
func (p *Pool) fetchAndForward(ctx context.Context, rawURL string, pages chan<- scraper.Page) error {
	page, err := p.fetch(ctx, rawURL)
	if err != nil {
		if p.onErr == seed.Fail {
			return fmt.Errorf("download %s: %w", rawURL, err)
		}
		if p.log != nil {
			p.log.Warn("download failed, skipping", "url", rawURL, "err", err)
		}
		p.counters.DropIn()
		return nil
	}
	select {
	case pages <- page:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) fetch(ctx context.Context, rawURL string) (scraper.Page, error) {
	body, err := throttle.Run(ctx, p.throttler, func(ctx context.Context) ([]byte, error) {
		return httpfetch.Get(ctx, p.client, rawURL, p.userAgent)
	})
	if err != nil {
		return scraper.Page{}, err
	}
	return scraper.Page{
		Body:     string(body),
		Location: scraper.PageLocation{URL: rawURL},
	}, nil
}
