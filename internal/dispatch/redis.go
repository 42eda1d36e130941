package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	drepo "TradePulse/internal/domain/repository"
	"TradePulse/pkg/queue"
)

const (
	// TypeAnalyzeSymbol is the queue message type for symbol analysis tasks.
	TypeAnalyzeSymbol = "analyze-symbol"

	defaultStatusPrefix = "tradepulse:dispatch:status"
	defaultStatusTTL    = 24 * time.Hour
)

// AnalyzePayload crosses the dispatch boundary as JSON; the consuming worker
// may live in another process or on another machine.
type AnalyzePayload struct {
	Handle string    `json:"handle"`
	Symbol string    `json:"symbol"`
	RunID  string    `json:"run_id"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

// RedisDispatcher starts workers through the Redis queue and tracks their
// state in a status key per handle. It assumes nothing about where the
// consuming worker runs.
type RedisDispatcher struct {
	queue  queue.QueueService
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisDispatcherOption configures RedisDispatcher.
type RedisDispatcherOption func(*RedisDispatcher)

// WithStatusPrefix overrides the status key prefix.
func WithStatusPrefix(prefix string) RedisDispatcherOption {
	return func(d *RedisDispatcher) { d.prefix = prefix }
}

// WithStatusTTL overrides how long handle states stay queryable.
func WithStatusTTL(ttl time.Duration) RedisDispatcherOption {
	return func(d *RedisDispatcher) { d.ttl = ttl }
}

func NewRedisDispatcher(q queue.QueueService, client *redis.Client, opts ...RedisDispatcherOption) *RedisDispatcher {
	d := &RedisDispatcher{
		queue:  q,
		client: client,
		prefix: defaultStatusPrefix,
		ttl:    defaultStatusTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch enqueues one analysis task and marks its handle pending. The
// timeout bounds the enqueue acknowledgment only; the task itself runs
// whenever a queue worker picks it up.
func (d *RedisDispatcher) Dispatch(ctx context.Context, symbol string, params drepo.DispatchParams, timeout time.Duration) (drepo.Handle, error) {
	h := drepo.Handle(fmt.Sprintf("%s-%s-%d", params.RunID, strings.ToLower(symbol), time.Now().UnixNano()))

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.client.Set(cctx, statusKey(d.prefix, h), string(drepo.StatePending), d.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: status init: %v", drepo.ErrDispatchFailed, err)
	}

	payload := AnalyzePayload{
		Handle: string(h),
		Symbol: symbol,
		RunID:  params.RunID,
		From:   params.From,
		To:     params.To,
	}
	if err := d.queue.PublishMessage(cctx, TypeAnalyzeSymbol, payload); err != nil {
		_ = d.client.Set(context.Background(), statusKey(d.prefix, h), string(drepo.StateFailed), d.ttl).Err()
		return "", fmt.Errorf("%w: enqueue: %v", drepo.ErrDispatchFailed, err)
	}
	return h, nil
}

// Poll reads the handle's state from Redis.
func (d *RedisDispatcher) Poll(ctx context.Context, h drepo.Handle) (drepo.DispatchState, error) {
	v, err := d.client.Get(ctx, statusKey(d.prefix, h)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", drepo.ErrHandleNotFound
		}
		return "", fmt.Errorf("poll handle: %w", err)
	}
	return drepo.DispatchState(v), nil
}

func statusKey(prefix string, h drepo.Handle) string {
	return prefix + ":" + string(h)
}

var _ drepo.Dispatcher = (*RedisDispatcher)(nil)
