package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	drepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/usecase"
	"TradePulse/pkg/queue"
)

// AnalyzeJob consumes dispatched analysis tasks from the Redis queue and runs
// the SymbolWorker. It is the remote counterpart of RedisDispatcher: it
// writes the handle's terminal state so Poll sees completion across process
// boundaries.
type AnalyzeJob struct {
	worker *usecase.SymbolWorker
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewAnalyzeJob(worker *usecase.SymbolWorker, client *redis.Client) *AnalyzeJob {
	return &AnalyzeJob{
		worker: worker,
		client: client,
		prefix: defaultStatusPrefix,
		ttl:    defaultStatusTTL,
	}
}

func (j *AnalyzeJob) Name() string { return "symbol-analysis" }

func (j *AnalyzeJob) Type() string { return TypeAnalyzeSymbol }

// Handle runs one symbol analysis. A failed outcome returns an error so the
// queue's retry policy applies; reprocessing is idempotent because the
// worker supersedes its table wholesale.
func (j *AnalyzeJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[AnalyzePayload](payload)
	if err != nil {
		return fmt.Errorf("analyze payload: %w", err)
	}

	o := j.worker.Process(ctx, p.Symbol, p.From, p.To)

	state := drepo.StateSucceeded
	if o.Failed() {
		state = drepo.StateFailed
	}
	if p.Handle != "" {
		key := statusKey(j.prefix, drepo.Handle(p.Handle))
		if err := j.client.Set(ctx, key, string(state), j.ttl).Err(); err != nil {
			return fmt.Errorf("status update %s: %w", p.Handle, err)
		}
	}

	if o.Failed() {
		return fmt.Errorf("symbol %s: %s (%s)", p.Symbol, o.Err, o.ErrKind)
	}
	return nil
}

var _ queue.Job = (*AnalyzeJob)(nil)
