//go:build wireinject
// +build wireinject

package di

import (
	"FluxFeed/pkg/config"
	"FluxFeed/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application and a
// cleanup that closes infrastructure clients.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideRedisCache,
		ProvideCache,
		ProvideResponseCache,
		ProvideClickHouseClient,

		// Providers and session
		ProvideSession,
		ProvideRateLimiter,
		ProvideProviders,
		ProvideQuoteSources,
		ProvideCandleSources,
		ProvideProfileSources,
		ProvidePollers,
		ProvidePriceStream,

		// Repositories
		ProvideTickStorage,
		ProvideTickPublisher,
		ProvideCandleStore,

		// Use cases
		ProvideSnapshotStore,
		ProvidePriceResolver,
		ProvideTickProcessor,
		ProvidePipeline,
		ProvidePriceFeed,
		ProvideJobQueue,
		ProvideBackfillJob,
		ProvideChartUseCase,
		ProvideMarketInfo,

		// Background and transport
		ProvideScheduler,
		ProvideKafkaConsumer,
		ProvideHTTPHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
