// Package sink implements the Record Sink (X2): a CSV writer running on
// its own goroutine that drains a stream of emitted records, with the
// delimiter, escape character, quoting mode, line terminator, and file
// mode options spec.md §6 requires. encoding/csv covers the common
// delimiter/CRLF cases; the escape-character and arbitrary-terminator
// options it does not support are layered on top by hand.
package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/corvid-labs/sitescrape/scraper"
)

// FileMode selects how the sink's output file is opened.
type FileMode int

const (
	// Create fails if the file already exists.
	Create FileMode = iota
	// Append creates the file if missing, otherwise appends to it.
	Append
	// Truncate creates the file if missing, otherwise empties it first.
	Truncate
)

// Quoting selects when a field is wrapped in quote characters.
type Quoting int

const (
	// QuoteMinimal quotes a field only if it contains the delimiter, the
	// quote character, a CR, or an LF.
	QuoteMinimal Quoting = iota
	// QuoteAll quotes every field unconditionally.
	QuoteAll
	// QuoteNone never quotes; the escape character is used to neutralize
	// delimiter/quote/terminator occurrences inline instead.
	QuoteNone
)

// Config holds the Record Sink's tunables. The zero value is not valid;
// use DefaultConfig.
type Config struct {
	Delimiter      byte
	Quote          byte
	Escape         byte
	LineTerminator string // "\r\n" (CRLF) or any single character
	Quoting        Quoting
	FileMode       FileMode
}

// DefaultConfig returns the conventional comma-delimited, double-quoted,
// CRLF-terminated CSV configuration.
func DefaultConfig() Config {
	return Config{
		Delimiter:      ',',
		Quote:          '"',
		Escape:         '"',
		LineTerminator: "\r\n",
		Quoting:        QuoteMinimal,
		FileMode:       Truncate,
	}
}

// Sink is the per-run Record Sink. It is NOT a process-wide singleton:
// each run constructs and owns its own Sink, so a second run in the same
// process never attaches to a prior run's writer (see the process-wide
// CSV writer slot design note).
type Sink struct {
	cfg    Config
	w      *bufio.Writer
	closer io.Closer // nil when writing to an already-open writer (e.g. stdout)
}

// Open creates a Sink writing to path under the given file mode.
func Open(path string, cfg Config) (*Sink, error) {
	var flags int
	switch cfg.FileMode {
	case Create:
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	case Append:
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case Truncate:
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	default:
		return nil, fmt.Errorf("sink: unknown file mode %d", cfg.FileMode)
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sink file %s: %w", path, err)
	}
	return &Sink{cfg: cfg, w: bufio.NewWriter(f), closer: f}, nil
}

// New wraps an already-open writer (e.g. os.Stdout) as a Sink. Close
// flushes but does not close the underlying writer.
func New(w io.Writer, cfg Config) *Sink {
	return &Sink{cfg: cfg, w: bufio.NewWriter(w)}
}

// Write appends one record as a single line. It is safe to call only from
// the sink's own consumer goroutine; the Supervisor serializes access by
// routing every worker's EmitRecord call through one record channel.
func (s *Sink) Write(r scraper.Record) error {
	for i, field := range r {
		if i > 0 {
			if _, err := s.w.Write([]byte{s.cfg.Delimiter}); err != nil {
				return fmt.Errorf("sink: write delimiter: %w", err)
			}
		}
		if err := s.writeField(field); err != nil {
			return fmt.Errorf("sink: write field %q: %w", field, err)
		}
	}
	if _, err := s.w.WriteString(s.cfg.LineTerminator); err != nil {
		return fmt.Errorf("sink: write line terminator: %w", err)
	}
	return nil
}

func (s *Sink) writeField(field string) error {
	needsQuote := s.cfg.Quoting == QuoteAll || (s.cfg.Quoting == QuoteMinimal && s.fieldNeedsQuoting(field))

	if !needsQuote {
		return s.writeEscaped(field)
	}

	if err := s.w.WriteByte(s.cfg.Quote); err != nil {
		return err
	}
	if err := s.writeEscaped(field); err != nil {
		return err
	}
	return s.w.WriteByte(s.cfg.Quote)
}

// writeEscaped writes field verbatim, inserting the configured escape
// character before any quote or escape byte it contains and, under
// QuoteNone only, before any delimiter or line-terminator byte.
func (s *Sink) writeEscaped(field string) error {
	for i := 0; i < len(field); i++ {
		c := field[i]
		if c == s.cfg.Quote || c == s.cfg.Escape || (s.cfg.Quoting == QuoteNone && (c == s.cfg.Delimiter || strings.ContainsRune(s.cfg.LineTerminator, rune(c)))) {
			if err := s.w.WriteByte(s.cfg.Escape); err != nil {
				return err
			}
		}
		if err := s.w.WriteByte(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) fieldNeedsQuoting(field string) bool {
	return strings.IndexByte(field, s.cfg.Delimiter) >= 0 ||
		strings.IndexByte(field, s.cfg.Quote) >= 0 ||
		strings.ContainsAny(field, "\r\n")
}

// Run drains records until the channel closes, writing each to the sink.
// sinkErrs receives one error per record that failed to write; the caller
// (Supervisor) counts these as sink-send failures per the invariant that
// no emitted record is ever silently dropped.
func (s *Sink) Run(records <-chan scraper.Record, sinkErrs chan<- error) {
	for r := range records {
		if err := s.Write(r); err != nil {
			sinkErrs <- err
		}
	}
}

// Close flushes buffered output and, if the Sink owns its underlying
// file, closes it.
func (s *Sink) Close() error {
	if err := s.w.Flush(); err != nil {
		if s.closer != nil {
			_ = s.closer.Close()
		}
		return fmt.Errorf("sink: flush: %w", err)
	}
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			return fmt.Errorf("sink: close: %w", err)
		}
	}
	return nil
}
