package usecase

import (
	"context"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T, d drepo.Dispatcher, r drepo.Reporter, m drepo.Metrics) *Coordinator {
	t.Helper()
	return NewCoordinator(d, r, m, testLogger(t), CoordinatorConfig{DispatchTimeout: time.Second})
}

func TestCoordinatorRunDispatchesUniverse(t *testing.T) {
	d := newFakeDispatcher()
	reporter := &fakeReporter{}
	c := newTestCoordinator(t, d, reporter, newFakeMetrics())

	summary, err := c.Run(context.Background(), []string{"AAPL", "MSFT", "GOOG"}, testBase, testBase.Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Universe)
	assert.Equal(t, 3, summary.Dispatched)
	assert.Zero(t, summary.Failures)
	assert.Len(t, summary.Handles(), 3)
	require.Len(t, reporter.runs, 1)
	assert.Equal(t, summary.RunID, reporter.runs[0].RunID)
}

func TestCoordinatorRunEmptyUniverse(t *testing.T) {
	c := newTestCoordinator(t, newFakeDispatcher(), &fakeReporter{}, newFakeMetrics())

	_, err := c.Run(context.Background(), nil, testBase, testBase.Add(time.Hour))

	require.ErrorIs(t, err, drepo.ErrEmptyUniverse)
}

func TestCoordinatorRunDeduplicatesSymbols(t *testing.T) {
	d := newFakeDispatcher()
	c := newTestCoordinator(t, d, &fakeReporter{}, newFakeMetrics())

	summary, err := c.Run(context.Background(), []string{"AAPL", "AAPL", "MSFT"}, testBase, testBase.Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Universe, "duplicate does not widen the universe")
	assert.Equal(t, 2, summary.Dispatched)
	assert.Equal(t, 1, summary.Duplicates)
	require.Len(t, summary.Symbols, 3)

	// the duplicate entry reuses the first handle
	assert.Equal(t, models.DispatchDuplicate, summary.Symbols[1].Status)
	assert.Equal(t, summary.Symbols[0].Handle, summary.Symbols[1].Handle)
	assert.Len(t, summary.Handles(), 2, "duplicates never appear as extra handles")
}

func TestCoordinatorRunPartialFailure(t *testing.T) {
	d := newFakeDispatcher()
	d.reject["MSFT"] = true
	metrics := newFakeMetrics()
	c := newTestCoordinator(t, d, &fakeReporter{}, metrics)

	summary, err := c.Run(context.Background(), []string{"AAPL", "MSFT", "GOOG"}, testBase, testBase.Add(time.Hour))

	require.NoError(t, err, "one rejected symbol must not fail the run")
	assert.Equal(t, 2, summary.Dispatched)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, models.DispatchFailed, summary.Symbols[1].Status)
	assert.NotEmpty(t, summary.Symbols[1].Err)
	assert.Equal(t, 1, metrics.dispatches[string(models.DispatchFailed)])
}

func TestCoordinatorRunAllRejected(t *testing.T) {
	d := newFakeDispatcher()
	d.reject["AAPL"] = true
	d.reject["MSFT"] = true
	c := newTestCoordinator(t, d, &fakeReporter{}, newFakeMetrics())

	summary, err := c.Run(context.Background(), []string{"AAPL", "MSFT"}, testBase, testBase.Add(time.Hour))

	require.ErrorIs(t, err, drepo.ErrDispatchFailed)
	assert.Equal(t, 2, summary.Failures, "summary still records every attempt")
}

func TestCoordinatorPollPassthrough(t *testing.T) {
	d := newFakeDispatcher()
	c := newTestCoordinator(t, d, &fakeReporter{}, newFakeMetrics())

	summary, err := c.Run(context.Background(), []string{"AAPL"}, testBase, testBase.Add(time.Hour))
	require.NoError(t, err)

	h := drepo.Handle(summary.Handles()[0])
	state, err := c.Poll(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, drepo.StatePending, state)

	_, err = c.Poll(context.Background(), "no-such-handle")
	require.ErrorIs(t, err, drepo.ErrHandleNotFound)
}
