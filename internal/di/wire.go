//go:build wireinject
// +build wireinject

package di

import (
	"RecoBoard/pkg/config"
	"RecoBoard/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Core
		ProvideLogger,
		ProvideMetrics,
		ProvideEngine,
		ProvideWindowResolver,

		// Infrastructure clients
		ProvideRedis,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideFeedClient,

		// Repositories and caches
		ProvideNoticeCache,
		ProvidePayloadCache,
		ProvideAuditStore,
		ProvideSnapshotStore,
		ProvideEventPublisher,
		ProvideQueue,

		// Use cases
		ProvideHub,
		ProvidePresenter,
		ProvideFeedRefresher,
		ProvideKafkaFeedHandler,
		ProvideNoticeService,

		// Transport
		ProvideHealthChecks,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
