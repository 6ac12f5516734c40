//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"MarketBrief/internal/usecase"
	"MarketBrief/pkg/config"
	"MarketBrief/pkg/server"
)

var coreSet = wire.NewSet(
	// Infrastructure
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideRecorder,
	ProvideMetrics,
	ProvideCache,

	// Repositories
	ProvideReportStore,
	ProvideRunHistory,
	ProvideOutcomePublisher,

	// Upstream services
	ProvidePriceResolver,
	ProvideFeedAggregator,
	ProvideModelClient,
	ProvideModelInvoker,
	ProvideNotifier,
	ProvidePromptBuilder,

	// Use cases
	ProvidePipeline,
	ProvideReportService,
)

// InitializeApp wires the long-running server: HTTP trigger plus scheduler.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		coreSet,
		ProvideScheduler,
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeReportService wires a single-shot run for the CLI.
func InitializeReportService(cfg *config.Config) (*usecase.ReportService, func(), error) {
	wire.Build(coreSet)
	return nil, nil, nil
}
