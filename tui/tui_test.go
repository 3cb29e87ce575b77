package tui

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/sitescrape/supervisor"
)

type fakeRunner struct {
	result supervisor.Result
	err    error
}

func (r fakeRunner) Run(context.Context) (supervisor.Result, error) { return r.result, r.err }

func TestNewModel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	progressCh := make(chan supervisor.ProgressEvent, 10)
	model := NewModel(ctx, cancel, fakeRunner{}, progressCh)

	assert.Equal(t, ctx, model.ctx)
	assert.NotNil(t, model.cancel)
	assert.False(t, model.done)
	assert.Equal(t, int64(0), model.in)
	assert.Equal(t, int64(0), model.out)
}

func TestUpdateAppliesProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	progressCh := make(chan supervisor.ProgressEvent, 10)
	model := NewModel(ctx, cancel, fakeRunner{}, progressCh)

	updated, _ := model.Update(RunProgressMsg{In: 5, Out: 2, WalkerDone: true})
	m := updated.(Model)
	assert.Equal(t, int64(5), m.in)
	assert.Equal(t, int64(2), m.out)
	assert.True(t, m.walkerDone)
}

func TestUpdateAppliesDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	progressCh := make(chan supervisor.ProgressEvent, 10)
	model := NewModel(ctx, cancel, fakeRunner{}, progressCh)

	res := supervisor.Result{InCount: 3, OutCount: 3}
	updated, cmd := model.Update(RunDoneMsg{Result: res})
	m := updated.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.done)
	assert.Equal(t, res, m.Result())
	assert.False(t, m.Failed())
}

func TestRenderSummaryReportsSinkFailures(t *testing.T) {
	out := RenderSummary(supervisor.Result{InCount: 2, OutCount: 2, SinkFailures: 1})
	assert.True(t, strings.Contains(out, "1 sink write failures"))
}

func TestRenderSummarySuccess(t *testing.T) {
	out := RenderSummary(supervisor.Result{InCount: 2, OutCount: 2})
	assert.True(t, strings.Contains(out, "2 pages scraped"))
}
