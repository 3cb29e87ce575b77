package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/corvid-labs/sitescrape/examplescraper"
	"github.com/corvid-labs/sitescrape/seed"
	"github.com/corvid-labs/sitescrape/sink"
	"github.com/corvid-labs/sitescrape/supervisor"
	"github.com/corvid-labs/sitescrape/tui"
)

// runCrawl implements the `crawl` operator surface: sitemap-seeded or
// robots-seeded, multi-worker, writing records to a file or stdout.
func runCrawl(args []string) int {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)

	var sitemaps, pages stringList
	fs.Var(&sitemaps, "sitemap", "sitemap URL to walk (repeatable)")
	fs.Var(&pages, "page", "explicit page URL to scrape, bypassing sitemap walking (repeatable)")
	robotsURL := fs.String("robots", "", "robots.txt URL to seed from (mutually exclusive with -sitemap/-page)")
	robotOverride := fs.String("robot", "", "robots.txt URL override (conflicts with -robots seed)")

	userAgent := fs.String("user-agent", "", "User-Agent header (default \"SWSbot\")")
	numWorkers := fs.Int("workers", 0, "worker pool size (default max(1, cpus-2))")
	pageBuffer := fs.Int("page-buffer", 0, "download->worker bounded queue capacity (default 10000)")

	var throttleOpts throttleFlags
	fs.IntVar(&throttleOpts.concurrent, "throttle-concurrent", 0, "cap in-flight downloads at N")
	fs.IntVar(&throttleOpts.perSecond, "throttle-rps", 0, "cap downloads at N per second")
	fs.DurationVar(&throttleOpts.delay, "throttle-delay", 0, "minimum delay between download starts")

	onDLErr := fs.String("on-dl-error", "skip", "\"skip\" or \"fail\"")
	onXMLErr := fs.String("on-xml-error", "skip", "\"skip\" or \"fail\"")
	onScrapErr := fs.String("on-scrap-error", "skip", "\"skip\" or \"fail\"")

	output := fs.String("output", "", "output file path (default stdout)")
	followLinks := fs.Bool("follow-links", false, "feed discovered anchor hrefs back into the crawl")
	noTUI := fs.Bool("no-tui", false, "disable the interactive progress display")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	sd, err := resolveSeed(sitemaps, pages, *robotsURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}

	onDL, err1 := parseErrorPolicy(*onDLErr)
	onXML, err2 := parseErrorPolicy(*onXMLErr)
	onScrap, err3 := parseErrorPolicy(*onScrapErr)
	if err := firstErr(err1, err2, err3); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}

	policy, err := throttleOpts.resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}

	cfg := seed.DefaultCrawlerConfig()
	if *userAgent != "" {
		cfg.UserAgent = *userAgent
	}
	if *numWorkers > 0 {
		cfg.NumWorkers = *numWorkers
	}
	if *pageBuffer > 0 {
		cfg.PageBuffer = *pageBuffer
	}
	cfg.Throttle = policy
	cfg.OnDownloadErr = onDL
	cfg.OnXMLErr = onXML
	cfg.OnScrapErr = onScrap
	cfg.RobotURL = *robotOverride

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "sitescrape",
	})

	recordSink, err := openSink(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	factory := examplescraper.New(examplescraper.Config{Seed: sd, FollowLinks: *followLinks})
	sup := supervisor.New(cfg, factory, recordSink, supervisor.WithLogger(logger))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, runErr := execute(ctx, cancel, sup, logger, *noTUI)
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", runErr)
		return 1
	}
	logger.Info("crawl complete", "in", result.InCount, "out", result.OutCount, "sink_failures", result.SinkFailures)
	return 0
}

// execute runs sup either under the Bubble Tea TUI or, with -no-tui, as a
// plain blocking call with periodic log lines.
func execute(ctx context.Context, cancel context.CancelFunc, sup *supervisor.Supervisor, logger *log.Logger, noTUI bool) (supervisor.Result, error) {
	if noTUI {
		progress := make(chan supervisor.ProgressEvent, 1)
		supervisor.WithProgress(progress)(sup)
		go func() {
			for evt := range progress {
				logger.Info("progress", "in", evt.In, "out", evt.Out, "walker_done", evt.WalkerDone)
			}
		}()
		return sup.Run(ctx)
	}

	progress := make(chan supervisor.ProgressEvent, 1)
	supervisor.WithProgress(progress)(sup)

	model := tui.NewModel(ctx, cancel, sup, progress)
	program := tea.NewProgram(model)
	finalModel, err := program.Run()
	if err != nil {
		return supervisor.Result{}, fmt.Errorf("run tui: %w", err)
	}
	m := finalModel.(tui.Model)
	if m.Failed() {
		return m.Result(), fmt.Errorf("run failed")
	}
	return m.Result(), nil
}

func resolveSeed(sitemaps, pages stringList, robotsURL string) (seed.Seed, error) {
	set := 0
	if len(sitemaps) > 0 {
		set++
	}
	if len(pages) > 0 {
		set++
	}
	if robotsURL != "" {
		set++
	}
	if set == 0 {
		return seed.Seed{}, fmt.Errorf("exactly one of -sitemap, -page, or -robots is required")
	}
	if set > 1 {
		return seed.Seed{}, fmt.Errorf("only one of -sitemap, -page, or -robots may be set")
	}
	switch {
	case len(sitemaps) > 0:
		return seed.Sitemaps(sitemaps...), nil
	case len(pages) > 0:
		return seed.Pages(pages...), nil
	default:
		return seed.RobotsTxt(robotsURL), nil
	}
}

func openSink(path string) (*sink.Sink, error) {
	if path == "" {
		return sink.New(os.Stdout, sink.DefaultConfig()), nil
	}
	return sink.Open(path, sink.DefaultConfig())
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
