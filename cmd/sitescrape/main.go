// Command sitescrape is the sitescrape operator surface: a `crawl`
// subcommand (sitemap- or robots.txt-seeded, multi-worker) and a `scrap`
// subcommand (a single URL or a glob of local files, bypassing sitemap
// walking).
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var code int
	switch os.Args[1] {
	case "crawl":
		code = runCrawl(os.Args[2:])
	case "scrap":
		code = runScrap(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		code = 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		usage()
		code = 2
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: sitescrape <command> [flags]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  crawl   walk a sitemap (or robots.txt) and scrape every accepted page")
	fmt.Fprintln(os.Stderr, "  scrap   scrape a single URL or a glob of local files")
	fmt.Fprintln(os.Stderr, "Run 'sitescrape <command> -h' for command-specific flags.")
}
