package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CryptoAssist/internal/domain/models"
	"CryptoAssist/pkg/logger"

	"github.com/shopspring/decimal"
)

// Fill is a simulated execution of one signal.
type Fill struct {
	SignalID string          `json:"signal_id"`
	Symbol   string          `json:"symbol"`
	Side     models.Action   `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Fee      decimal.Decimal `json:"fee"`
	FilledAt time.Time       `json:"filled_at"`
}

// PaperExecutor fills signals at their entry price without touching an
// exchange. It is the executor used when auto trading is enabled.
type PaperExecutor struct {
	feeRate decimal.Decimal
	log     *logger.Logger
	now     func() time.Time

	mu    sync.Mutex
	fills []Fill
}

func NewPaperExecutor(feeRate float64, log *logger.Logger) *PaperExecutor {
	if log == nil {
		log = logger.Nop()
	}
	return &PaperExecutor{
		feeRate: decimal.NewFromFloat(feeRate),
		log:     log.With(logger.String("component", "paper_executor")),
		now:     time.Now,
	}
}

func (p *PaperExecutor) Execute(ctx context.Context, sig models.TradingSignal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sig.Action != models.ActionBuy && sig.Action != models.ActionSell {
		return fmt.Errorf("execute %s: action %s is not tradable", sig.Symbol, sig.Action)
	}
	price := decimal.NewFromFloat(sig.EntryPrice)
	if !price.IsPositive() {
		return fmt.Errorf("execute %s: invalid entry price %v", sig.Symbol, sig.EntryPrice)
	}

	notional := decimal.NewFromFloat(sig.PositionSizeUSD)
	fill := Fill{
		SignalID: sig.ID,
		Symbol:   sig.Symbol,
		Side:     sig.Action,
		Price:    price,
		Quantity: notional.DivRound(price, 8),
		Fee:      notional.Mul(p.feeRate).Round(8),
		FilledAt: p.now(),
	}

	p.mu.Lock()
	p.fills = append(p.fills, fill)
	p.mu.Unlock()

	p.log.Info("DRY RUN fill",
		logger.String("signal_id", sig.ID),
		logger.String("symbol", sig.Symbol),
		logger.String("side", string(sig.Action)),
		logger.String("qty", fill.Quantity.String()),
		logger.String("price", price.String()),
		logger.String("fee", fill.Fee.String()),
	)
	return nil
}

// Fills returns a copy of the simulated fills in execution order.
func (p *PaperExecutor) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Fill, len(p.fills))
	copy(out, p.fills)
	return out
}
