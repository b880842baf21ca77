package usecase

import (
	"context"
	"fmt"
	"time"

	"CryptoAssist/internal/domain/models"
	drepo "CryptoAssist/internal/domain/repository"
	dservice "CryptoAssist/internal/domain/service"
	"CryptoAssist/pkg/logger"
)

// Dispatcher is the best-effort bridge to the notifier. Nothing it does
// reaches the caller.
type Dispatcher struct {
	notifier    dservice.Notifier
	metrics     drepo.Metrics
	log         *logger.Logger
	callTimeout time.Duration
}

func NewDispatcher(notifier dservice.Notifier, metrics drepo.Metrics, log *logger.Logger, callTimeout time.Duration) *Dispatcher {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{notifier: notifier, metrics: metrics, log: log, callTimeout: callTimeout}
}

// Notify does nothing when there are no signals and the overview is not an
// important update. It reports whether the notifier was called successfully.
func (d *Dispatcher) Notify(ctx context.Context, signals []models.TradingSignal, overview *models.MarketOverview) bool {
	if len(signals) == 0 && (overview == nil || !overview.ImportantUpdate) {
		return false
	}
	if d.notifier == nil {
		d.metrics.RecordNotification("skipped")
		d.log.Debug("no notifier configured", logger.Int("signals", len(signals)))
		return false
	}

	if err := d.send(ctx, signals, overview); err != nil {
		d.metrics.RecordNotification("error")
		d.log.Error("send notification failed", logger.Int("signals", len(signals)), logger.Error(err))
		return false
	}
	d.metrics.RecordNotification("ok")
	return true
}

func (d *Dispatcher) send(ctx context.Context, signals []models.TradingSignal, overview *models.MarketOverview) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in notifier: %v", r)
		}
	}()
	callCtx, cancel := detached(ctx, d.callTimeout)
	defer cancel()
	return d.notifier.Send(callCtx, signals, overview)
}
