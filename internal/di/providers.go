package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"TradePulse/internal/dispatch"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/handler/api"
	internalrepo "TradePulse/internal/repository"
	icache "TradePulse/internal/service/cache"
	"TradePulse/internal/service/marketdata"
	"TradePulse/internal/signal"
	"TradePulse/internal/usecase"
	pkgcache "TradePulse/pkg/cache"
	pkgch "TradePulse/pkg/clickhouse"
	"TradePulse/pkg/config"
	xhttp "TradePulse/pkg/http"
	pkgkafka "TradePulse/pkg/kafka"
	applogger "TradePulse/pkg/logger"
	"TradePulse/pkg/metrics"
	"TradePulse/pkg/queue"
	"TradePulse/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{
		Level:  "info",
		Format: format,
		Output: "stdout",
	})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideResultStore creates the ClickHouse result store and its schema.
func ProvideResultStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) (drepo.ResultStore, error) {
	store := internalrepo.NewCHResultStore(chClient, cfg.ClickHouse.Database, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = chClient.Close()
		return nil, fmt.Errorf("result store schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideReporter creates the Kafka outcome/run reporter.
func ProvideReporter(producer *pkgkafka.Producer, cfg *config.Config) drepo.Reporter {
	return internalrepo.NewKafkaReporter(producer, cfg.Kafka.OutcomeTopic, cfg.Kafka.RunTopic)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideRedisClient creates the shared Redis client. Connections are opened
// lazily, so local-dispatcher runs that never touch Redis stay offline.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideMarketSource creates the rate-limited market-data client.
func ProvideMarketSource(cfg *config.Config) (drepo.MarketSource, error) {
	opts := []marketdata.Option{
		marketdata.WithTimeout(cfg.MarketData.Timeout),
	}
	if cfg.MarketData.RatePerSec > 0 {
		opts = append(opts, marketdata.WithRateLimit(cfg.MarketData.RatePerSec, cfg.MarketData.RateBurst))
	}
	if cfg.MarketData.CacheContext {
		redisCache, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(redisHost(cfg.Redis.Addr)),
			pkgcache.WithRedisPort(redisPort(cfg.Redis.Addr)),
			pkgcache.WithRedisPassword(cfg.Redis.Password),
			pkgcache.WithRedisDB(cfg.Redis.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("context cache: %w", err)
		}
		layered := pkgcache.NewLayeredCache(redisCache)
		opts = append(opts, marketdata.WithCache(layered, cfg.MarketData.ContextTTL))
	}
	return marketdata.New(cfg.MarketData.BaseURL, cfg.MarketData.APIKey, opts...), nil
}

func redisHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func redisPort(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 6379
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 6379
	}
	return n
}

// ProvideEngine creates the signal engine with standard parameters.
func ProvideEngine() *signal.Engine {
	return signal.NewEngine(signal.DefaultParams())
}

// ProvideSymbolWorker creates the per-symbol analysis worker.
func ProvideSymbolWorker(
	source drepo.MarketSource,
	store drepo.ResultStore,
	reporter drepo.Reporter,
	m drepo.Metrics,
	engine *signal.Engine,
	l *applogger.Logger,
) *usecase.SymbolWorker {
	return usecase.NewSymbolWorker(source, store, reporter, m, engine, l)
}

// ProvideDispatcher selects the dispatcher backend from config.
func ProvideDispatcher(
	cfg *config.Config,
	worker *usecase.SymbolWorker,
	client *redis.Client,
	l *applogger.Logger,
	app *appHooks,
) drepo.Dispatcher {
	if cfg.Run.Dispatcher == "redis" {
		publisher := queue.NewRedisPublisher(l, client)
		return dispatch.NewRedisDispatcher(publisher, client)
	}

	d := dispatch.NewLocalDispatcher(worker, l, cfg.Run.LocalWorkers, cfg.Run.LocalQueueSize)
	app.stopDispatcher = d.Stop
	return d
}

// appHooks carries wiring side channels that are attached to the App after
// construction.
type appHooks struct {
	stopDispatcher func()
}

// ProvideAppHooks creates the hook carrier.
func ProvideAppHooks() *appHooks { return &appHooks{} }

// ProvideCoordinator creates the run coordinator.
func ProvideCoordinator(
	dispatcher drepo.Dispatcher,
	reporter drepo.Reporter,
	m drepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Coordinator {
	return usecase.NewCoordinator(dispatcher, reporter, m, l, usecase.CoordinatorConfig{
		DispatchTimeout: cfg.Run.DispatchTimeout,
	})
}

// ProvideAggregator creates the portfolio aggregator.
func ProvideAggregator(store drepo.ResultStore, l *applogger.Logger, cfg *config.Config) *usecase.PortfolioAggregator {
	return usecase.NewPortfolioAggregator(store, l, usecase.AggregatorConfig{
		Bucket:          cfg.Aggregator.BucketSize,
		PeriodsPerYear:  cfg.Aggregator.PeriodsPerYear,
		LoadConcurrency: cfg.Aggregator.LoadConcurrency,
	})
}

// ProvideProgressHub creates the websocket fan-out hub.
func ProvideProgressHub(l *applogger.Logger) *api.ProgressHub {
	return api.NewProgressHub(l)
}

// ProvideKafkaConsumer creates the outcome-feed consumer for serve mode.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NoopHook{})
	return consumer, nil
}

// ProvideJobQueue creates the worker-mode queue consumer. It carries the
// analysis job so dispatched symbols can be processed out of process.
func ProvideJobQueue(
	cfg *config.Config,
	l *applogger.Logger,
	client *redis.Client,
	worker *usecase.SymbolWorker,
) *queue.RedisQueue {
	job := dispatch.NewAnalyzeJob(worker, client)
	return queue.NewRedisConsumer(l, &queue.QueueConfig{
		Workers:    cfg.Run.LocalWorkers,
		QueueSize:  cfg.Run.LocalQueueSize,
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
	}, client, []queue.Job{job})
}

// ProvideHTTPHandler creates the control-plane handler with response caching.
func ProvideHTTPHandler(
	l *applogger.Logger,
	coordinator *usecase.Coordinator,
	aggregator *usecase.PortfolioAggregator,
	hub *api.ProgressHub,
	store drepo.ResultStore,
	cfg *config.Config,
) xhttp.Handler {
	h := api.NewRunsEchoHandler(l, coordinator, aggregator, hub, store, cfg.Run.Lookback)
	if cfg.Redis.Addr != "" {
		h.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	producer *pkgkafka.Producer,
	coordinator *usecase.Coordinator,
	aggregator *usecase.PortfolioAggregator,
	store drepo.ResultStore,
	reporter drepo.Reporter,
	consumer *pkgkafka.Consumer,
	hub *api.ProgressHub,
	jobQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	handler xhttp.Handler,
	hooks *appHooks,
) *server.App {
	// Aggregate repeated error logs onto the run topic's ops stream so noisy
	// failures do not flood the log sink.
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          "tradepulse.logs",
		Publisher:      producer,
	})

	app := server.New(cfg, l, coordinator, aggregator, store, reporter, consumer, hub, jobQueue, chClient)
	app.SetHTTPHandler(handler)
	if hooks.stopDispatcher != nil {
		app.SetDispatcherStop(hooks.stopDispatcher)
	}
	return app
}
