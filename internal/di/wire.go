//go:build wireinject
// +build wireinject

package di

import (
	"CryptoAssist/pkg/config"
	"CryptoAssist/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Collaborators
		ProvideReasoningBackend,
		ProvidePriceSource,
		ProvideSignalGenerator,
		ProvideRiskManager,
		ProvideExecutor,
		ProvidePortfolioTracker,

		// Delivery
		ProvideHub,
		ProvideSignalPublisher,
		ProvideNotifier,

		// Use cases
		ProvideOrchestrator,
		ProvideDigestJob,

		// Handlers
		ProvideAssistantHandler,
		ProvideAnalyzeHandler,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
