package service

import (
	"context"

	"CryptoAssist/internal/domain/models"
)

// ReasoningBackend answers free-text prompts. CloseSessions releases any
// remote sessions held on behalf of the orchestrator.
type ReasoningBackend interface {
	Ask(ctx context.Context, prompt string) (string, error)
	CloseSessions(ctx context.Context) error
}

// SignalGenerator builds a candidate signal. A nil signal with nil error means skip.
type SignalGenerator interface {
	Generate(ctx context.Context, symbol string, opp models.Opportunity, sentiment models.Sentiment) (*models.TradingSignal, error)
}

type RiskEvaluator interface {
	Evaluate(ctx context.Context, signal models.TradingSignal) (models.RiskAssessment, error)
	SizePosition(ctx context.Context, symbol string, entry, stop float64) (float64, error)
}

// BatchRiskEvaluator counts approvals within one batch toward its limits.
// BeginBatch is called before each batch, once the previous one is stored.
type BatchRiskEvaluator interface {
	RiskEvaluator
	BeginBatch()
}

// Notifier delivers a batch of signals and the overview that produced them.
type Notifier interface {
	Send(ctx context.Context, signals []models.TradingSignal, overview *models.MarketOverview) error
}

// MessageSender delivers free-form messages (manual notifications, digests).
type MessageSender interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

type Executor interface {
	Execute(ctx context.Context, signal models.TradingSignal) error
}

type PortfolioTracker interface {
	Summary(ctx context.Context, signals []models.TradingSignal) (models.PortfolioSummary, error)
}

type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
}
