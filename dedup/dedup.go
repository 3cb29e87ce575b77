// Package dedup provides a disk-backed bloom filter for deduplicating
// sitemap URLs seen by the sitemap walker, so a malformed sitemap index
// that references itself or a sibling in a cycle is walked only once. Page
// URLs listed in a urlset are not checked against it: a page listed in
// more than one urlset is pushed once per listing. A memory-mapped backing
// file keeps memory flat regardless of crawl size; NewForCrawl sizes it for
// 100,000 URLs at a 0.1% false-positive rate.
package dedup

import (
	"errors"
	"fmt"
	"os"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/edsrzf/mmap-go"
)

// Tracker is a concurrency-safe, disk-backed "have I seen this string
// before" set. Bloom filters have false positives but no false negatives:
// Seen may wrongly say true for a URL never seen, but never wrongly says
// false for one it already recorded.
type Tracker struct {
	mu        sync.Mutex
	filter    *bloom.BloomFilter
	file      *os.File
	mmap      mmap.MMap
	tmpPath   string
	count     uint64
	syncEvery uint64
	lastErr   error
}

// New creates a Tracker sized for n items at the given false-positive
// rate, backed by a temp file memory-mapped for constant memory use.
func New(n uint, falsePositiveRate float64) (*Tracker, error) {
	filter := bloom.NewWithEstimates(n, falsePositiveRate)

	tmpFile, err := os.CreateTemp(os.TempDir(), "sitescrape-dedup-*.bloom")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	size := int64(filter.Cap())
	if err := tmpFile.Truncate(size); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("truncate temp file: %w", err)
	}

	mapped, err := mmap.MapRegion(tmpFile, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("mmap temp file: %w", err)
	}

	data, err := filter.MarshalBinary()
	if err != nil {
		_ = mapped.Unmap()
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("marshal bloom filter: %w", err)
	}
	if len(data) > len(mapped) {
		_ = mapped.Unmap()
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("filter data (%d) exceeds mmap size (%d)", len(data), len(mapped))
	}
	copy(mapped, data)

	return &Tracker{
		filter:    filter,
		file:      tmpFile,
		mmap:      mapped,
		tmpPath:   tmpPath,
		syncEvery: 1000,
	}, nil
}

// NewForCrawl sizes a Tracker for the teacher's original target: 100,000
// URLs at a 0.1% false-positive rate.
func NewForCrawl() (*Tracker, error) {
	return New(100_000, 0.001)
}

// SeenOrMark atomically checks membership and records s if it was absent.
// Returns true if s had already been marked (a duplicate).
func (t *Tracker) SeenOrMark(s string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.filter.TestString(s) {
		return true
	}
	t.filter.AddString(s)
	t.count++
	if t.count >= t.syncEvery {
		if err := t.syncLocked(); err != nil {
			t.lastErr = err
		}
	}
	return false
}

func (t *Tracker) syncLocked() error {
	data, err := t.filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal bloom filter: %w", err)
	}
	if len(data) <= len(t.mmap) {
		copy(t.mmap, data)
	}
	if err := t.mmap.Flush(); err != nil {
		return fmt.Errorf("flush mmap: %w", err)
	}
	t.count = 0
	return nil
}

// LastError returns the last background sync error, if any.
func (t *Tracker) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Close flushes pending state and releases the backing file.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	if t.lastErr != nil {
		errs = append(errs, t.lastErr)
	}
	if t.mmap != nil {
		if t.count > 0 {
			if err := t.syncLocked(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := t.mmap.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap: %w", err))
		}
		t.mmap = nil
	}
	if t.file != nil {
		if err := t.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file: %w", err))
		}
		t.file = nil
	}
	if t.tmpPath != "" {
		if err := os.Remove(t.tmpPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove temp file: %w", err))
		}
		t.tmpPath = ""
	}
	if len(errs) > 0 {
		return fmt.Errorf("close dedup tracker: %w", errors.Join(errs...))
	}
	return nil
}
