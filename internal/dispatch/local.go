package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	drepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/usecase"
	applogger "TradePulse/pkg/logger"
)

// LocalDispatcher runs SymbolWorkers on an in-process pool. Concurrency is
// bounded so a large universe cannot overwhelm the market source or the
// result store. Dispatch acknowledges once the task is buffered; analytic
// completion is observable only through Poll.
type LocalDispatcher struct {
	worker  *usecase.SymbolWorker
	logger  *applogger.Logger
	tasks   chan localTask
	states  map[drepo.Handle]drepo.DispatchState
	mu      sync.RWMutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
	seq     int64
}

type localTask struct {
	handle drepo.Handle
	symbol string
	params drepo.DispatchParams
}

// NewLocalDispatcher creates a pool with the given worker count and task
// buffer. workers <= 0 defaults to 4, buffer <= 0 to 64.
func NewLocalDispatcher(worker *usecase.SymbolWorker, logger *applogger.Logger, workers, buffer int) *LocalDispatcher {
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 64
	}
	d := &LocalDispatcher{
		worker: worker,
		logger: logger,
		tasks:  make(chan localTask, buffer),
		states: make(map[drepo.Handle]drepo.DispatchState),
	}
	d.startWorkers(workers)
	return d
}

func (d *LocalDispatcher) startWorkers(n int) {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.started = true
	for i := 0; i < n; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
}

func (d *LocalDispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-d.tasks:
			if !ok {
				return
			}
			o := d.worker.Process(ctx, t.symbol, t.params.From, t.params.To)
			state := drepo.StateSucceeded
			if o.Failed() {
				state = drepo.StateFailed
			}
			d.setState(t.handle, state)
		}
	}
}

// Dispatch buffers one task. When the buffer is full, the acknowledgment wait
// is bounded by timeout; an unacknowledged dispatch is a failure and is not
// retried here.
func (d *LocalDispatcher) Dispatch(ctx context.Context, symbol string, params drepo.DispatchParams, timeout time.Duration) (drepo.Handle, error) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return "", fmt.Errorf("%w: dispatcher stopped", drepo.ErrDispatchFailed)
	}
	d.seq++
	h := drepo.Handle(fmt.Sprintf("%s-%s-%d", params.RunID, symbol, d.seq))
	d.states[h] = drepo.StatePending
	d.mu.Unlock()

	t := localTask{handle: h, symbol: symbol, params: params}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d.tasks <- t:
		return h, nil
	case <-timer.C:
		d.setState(h, drepo.StateFailed)
		return "", fmt.Errorf("%w: no acknowledgment within %s", drepo.ErrDispatchFailed, timeout)
	case <-ctx.Done():
		d.setState(h, drepo.StateFailed)
		return "", fmt.Errorf("%w: %v", drepo.ErrDispatchFailed, ctx.Err())
	}
}

// Poll returns the state of a dispatched task.
func (d *LocalDispatcher) Poll(_ context.Context, h drepo.Handle) (drepo.DispatchState, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	state, ok := d.states[h]
	if !ok {
		return "", drepo.ErrHandleNotFound
	}
	return state, nil
}

// Stop drains the pool: buffered tasks are abandoned, running tasks get the
// cancellation and finish on their own.
func (d *LocalDispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	if d.logger != nil {
		d.logger.Info("local dispatcher stopped")
	}
}

func (d *LocalDispatcher) setState(h drepo.Handle, s drepo.DispatchState) {
	d.mu.Lock()
	d.states[h] = s
	d.mu.Unlock()
}

var _ drepo.Dispatcher = (*LocalDispatcher)(nil)
