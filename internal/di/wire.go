//go:build wireinject
// +build wireinject

package di

import (
	"TradePulse/pkg/config"
	"TradePulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,

		// Adapters
		ProvideResultStore,
		ProvideReporter,
		ProvideMarketSource,

		// Use cases
		ProvideEngine,
		ProvideSymbolWorker,
		ProvideAppHooks,
		ProvideDispatcher,
		ProvideCoordinator,
		ProvideAggregator,
		ProvideJobQueue,

		// HTTP surface
		ProvideProgressHub,
		ProvideHTTPHandler,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
