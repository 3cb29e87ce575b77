package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/corvid-labs/sitescrape/seed"
	"github.com/corvid-labs/sitescrape/throttle"
)

// stringList accumulates repeated -sitemap/-page flag occurrences.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// parseErrorPolicy maps the flag values "fail" and "skip" (the default)
// onto seed.ErrorPolicy.
func parseErrorPolicy(v string) (seed.ErrorPolicy, error) {
	switch strings.ToLower(v) {
	case "", "skip", "skip_and_log":
		return seed.SkipAndLog, nil
	case "fail":
		return seed.Fail, nil
	default:
		return 0, fmt.Errorf("unknown error policy %q (want \"skip\" or \"fail\")", v)
	}
}

// throttleFlags holds the three mutually-exclusive throttle options; at
// most one may be set.
type throttleFlags struct {
	concurrent int
	perSecond  int
	delay      time.Duration
}

func (f throttleFlags) resolve() (*throttle.Policy, error) {
	set := 0
	var policy throttle.Policy
	if f.concurrent > 0 {
		set++
		policy = throttle.Concurrent(f.concurrent)
	}
	if f.perSecond > 0 {
		set++
		policy = throttle.PerSecond(f.perSecond)
	}
	if f.delay > 0 {
		set++
		policy = throttle.Delay(f.delay)
	}
	if set > 1 {
		return nil, fmt.Errorf("at most one of -throttle-concurrent, -throttle-rps, -throttle-delay may be set")
	}
	if set == 0 {
		return nil, nil
	}
	return &policy, nil
}
