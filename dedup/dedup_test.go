package dedup_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/sitescrape/dedup"
)

func TestSeenOrMark(t *testing.T) {
	tr, err := dedup.New(1000, 0.01)
	require.NoError(t, err)
	defer tr.Close()

	assert.False(t, tr.SeenOrMark("http://example.com/a"))
	assert.True(t, tr.SeenOrMark("http://example.com/a"))
	assert.False(t, tr.SeenOrMark("http://example.com/b"))
}

func TestSyncUnderLoad(t *testing.T) {
	tr, err := dedup.New(1000, 0.01)
	require.NoError(t, err)
	defer tr.Close()

	// More inserts than the tracker's sync interval (1000), so the
	// marshal-and-flush path runs at least once.
	for i := 0; i < 2500; i++ {
		tr.SeenOrMark(fmt.Sprintf("http://example.com/%d", i))
	}
	assert.NoError(t, tr.LastError())
}

func TestClose(t *testing.T) {
	tr, err := dedup.New(1000, 0.01)
	require.NoError(t, err)
	assert.NoError(t, tr.Close())
}
