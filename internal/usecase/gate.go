package usecase

import (
	"context"
	"fmt"
	"time"

	"CryptoAssist/internal/domain/models"
	dservice "CryptoAssist/internal/domain/service"
	"CryptoAssist/pkg/logger"
)

// ExecutionGate forwards approved signals to the executor only when auto-trading is on.
type ExecutionGate struct {
	executor    dservice.Executor
	log         *logger.Logger
	callTimeout time.Duration
}

func NewExecutionGate(executor dservice.Executor, log *logger.Logger, callTimeout time.Duration) *ExecutionGate {
	if log == nil {
		log = logger.Nop()
	}
	return &ExecutionGate{executor: executor, log: log, callTimeout: callTimeout}
}

// MaybeExecute returns the number of signals the executor accepted. One
// failing signal does not stop the rest.
func (g *ExecutionGate) MaybeExecute(ctx context.Context, signals []models.TradingSignal, autoTradingEnabled bool) int {
	if len(signals) == 0 {
		return 0
	}
	if !autoTradingEnabled {
		g.log.Info("auto-trading disabled, signals left for manual review", logger.Int("signals", len(signals)))
		return 0
	}
	if g.executor == nil {
		g.log.Warn("auto-trading enabled but no executor configured", logger.Int("signals", len(signals)))
		return 0
	}

	executed := 0
	for _, sig := range signals {
		g.log.Warn("auto-trading: forwarding signal",
			logger.String("symbol", sig.Symbol),
			logger.String("action", string(sig.Action)),
		)
		if err := g.executeOne(ctx, sig); err != nil {
			g.log.Error("execute signal failed", logger.String("symbol", sig.Symbol), logger.Error(err))
			continue
		}
		executed++
	}
	return executed
}

func (g *ExecutionGate) executeOne(ctx context.Context, sig models.TradingSignal) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in executor: %v", r)
		}
	}()
	callCtx, cancel := detached(ctx, g.callTimeout)
	defer cancel()
	return g.executor.Execute(callCtx, sig)
}
