package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/handler/api"
	"TradePulse/internal/usecase"
	pkgch "TradePulse/pkg/clickhouse"
	"TradePulse/pkg/config"
	xhttp "TradePulse/pkg/http"
	pkgkafka "TradePulse/pkg/kafka"
	applogger "TradePulse/pkg/logger"
	"TradePulse/pkg/queue"
)

// App encapsulates the application lifecycle across its run modes.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	coordinator *usecase.Coordinator
	aggregator  *usecase.PortfolioAggregator
	store       drepo.ResultStore
	reporter    drepo.Reporter
	consumer    *pkgkafka.Consumer
	hub         *api.ProgressHub
	jobQueue    *queue.RedisQueue
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler

	// stopDispatcher shuts down an in-process dispatcher pool, if one is
	// configured. Nil for the Redis dispatcher.
	stopDispatcher func()
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	coordinator *usecase.Coordinator,
	aggregator *usecase.PortfolioAggregator,
	store drepo.ResultStore,
	reporter drepo.Reporter,
	consumer *pkgkafka.Consumer,
	hub *api.ProgressHub,
	jobQueue *queue.RedisQueue,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		coordinator: coordinator,
		aggregator:  aggregator,
		store:       store,
		reporter:    reporter,
		consumer:    consumer,
		hub:         hub,
		jobQueue:    jobQueue,
		chClient:    chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetDispatcherStop registers the shutdown hook of an in-process dispatcher.
func (a *App) SetDispatcherStop(stop func()) { a.stopDispatcher = stop }

// RunOnce triggers one full analysis run over the configured universe and
// waits for every accepted dispatch to reach a terminal state.
func (a *App) RunOnce(ctx context.Context) error {
	to := time.Now()
	from := to.Add(-a.cfg.Run.Lookback)

	summary, err := a.coordinator.Run(ctx, a.cfg.Run.Symbols, from, to)
	if err != nil {
		return err
	}

	a.logger.Info("run dispatched",
		applogger.String("run_id", summary.RunID),
		applogger.Int("dispatched", summary.Dispatched),
		applogger.Int("duplicates", summary.Duplicates),
		applogger.Int("failures", summary.Failures))

	if err := a.waitForRun(ctx, summary); err != nil {
		return err
	}
	return a.close()
}

// waitForRun polls every accepted handle until all are terminal or the
// context expires.
func (a *App) waitForRun(ctx context.Context, summary models.RunSummary) error {
	pending := make([]drepo.Handle, 0, summary.Dispatched)
	for _, h := range summary.Handles() {
		pending = append(pending, drepo.Handle(h))
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("run interrupted with %d symbols pending: %w", len(pending), ctx.Err())
		case <-ticker.C:
		}

		next := pending[:0]
		for _, h := range pending {
			state, err := a.coordinator.Poll(ctx, h)
			if err != nil {
				a.logger.Warn("handle poll failed",
					applogger.String("handle", string(h)), applogger.Error(err))
				continue
			}
			if state == drepo.StatePending {
				next = append(next, h)
				continue
			}
			a.logger.Info("symbol finished",
				applogger.String("handle", string(h)),
				applogger.String("state", string(state)))
		}
		pending = next
	}
	return nil
}

// AggregateOnce computes the portfolio summary over the configured universe
// and writes it to stdout as JSON.
func (a *App) AggregateOnce(ctx context.Context) error {
	summary, err := a.aggregator.Aggregate(ctx, a.cfg.Run.Symbols)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return a.close()
}

// Worker consumes dispatched analysis jobs from the Redis queue until
// interrupted. Only meaningful with the Redis dispatcher.
func (a *App) Worker(ctx context.Context) error {
	if a.jobQueue == nil {
		return fmt.Errorf("worker mode requires the redis dispatcher")
	}

	if err := a.jobQueue.Start(); err != nil {
		return fmt.Errorf("start job queue: %w", err)
	}
	a.jobQueue.StartRetryProcessor()
	a.logger.Info("worker started", applogger.Int("workers", a.cfg.Run.LocalWorkers))

	a.waitForSignal(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.jobQueue.Stop(stopCtx); err != nil {
		a.logger.Warn("job queue stop error", applogger.Error(err))
	}
	return a.close()
}

// Serve runs the control-plane HTTP server, the websocket progress stream,
// and the Kafka outcome feed until interrupted.
func (a *App) Serve(ctx context.Context) error {
	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.logger, time.Second),
		xhttp.WithMetricsEndpoint(a.cfg.Metrics.Enabled, a.cfg.Metrics.Path),
	)

	if a.consumer != nil && a.hub != nil {
		a.consumer.RegisterHandler(api.NewOutcomeFeed(a.cfg.Kafka.OutcomeTopic, a.hub))
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("outcome feed started", applogger.String("topic", a.cfg.Kafka.OutcomeTopic))
	}

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http server start: %w", err)
	}
	a.logger.Info("server started", applogger.Int("port", a.cfg.Server.Port))

	a.waitForSignal(ctx)
	return a.shutdown()
}

func (a *App) waitForSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		a.logger.Info("shutdown signal received")
	case <-ctx.Done():
	}
}

// shutdown gracefully stops serve-mode services.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.hub != nil {
		a.hub.Close()
	}
	return a.close()
}

// close releases shared infrastructure clients.
func (a *App) close() error {
	if a.stopDispatcher != nil {
		a.stopDispatcher()
	}
	if a.reporter != nil {
		if err := a.reporter.Close(); err != nil {
			a.logger.Warn("reporter close error", applogger.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("result store close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	a.logger.RemoveCollector()
	return nil
}
