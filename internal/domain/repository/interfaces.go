package repository

import (
	"context"
	"time"

	"CryptoAssist/internal/domain/models"
)

// SignalPublisher streams approved signal batches to downstream consumers.
type SignalPublisher interface {
	PublishSignals(ctx context.Context, signals []models.TradingSignal, overview *models.MarketOverview) error
	Close() error
}

// Cache stores manual analysis answers. Get returns an error on miss.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Locker guards jobs that must run once across replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Metrics interface {
	RecordIteration(result string, seconds float64)
	RecordScanError(symbol string)
	RecordSignal(outcome string)
	SetActiveSignals(n int)
	SetBreakerState(state models.BreakerState)
	RecordNotification(result string)
	RecordBackendCall(op string, seconds float64)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RecordIteration(string, float64)     {}
func (NopMetrics) RecordScanError(string)              {}
func (NopMetrics) RecordSignal(string)                 {}
func (NopMetrics) SetActiveSignals(int)                {}
func (NopMetrics) SetBreakerState(models.BreakerState) {}
func (NopMetrics) RecordNotification(string)           {}
func (NopMetrics) RecordBackendCall(string, float64)   {}
