package portfolio

import (
	"context"
	"time"

	"CryptoAssist/internal/domain/models"

	"github.com/shopspring/decimal"
)

// Tracker derives exposure from the retained signals against a fixed
// account balance.
type Tracker struct {
	balance decimal.Decimal
	now     func() time.Time
}

func NewTracker(accountBalance float64) *Tracker {
	return &Tracker{balance: decimal.NewFromFloat(accountBalance), now: time.Now}
}

func (t *Tracker) Summary(_ context.Context, signals []models.TradingSignal) (models.PortfolioSummary, error) {
	type acc struct {
		n        int
		exposure decimal.Decimal
		net      decimal.Decimal
	}
	by := make(map[string]*acc)
	total := decimal.Zero

	for _, s := range signals {
		size := decimal.NewFromFloat(s.PositionSizeUSD)
		a, ok := by[s.Symbol]
		if !ok {
			a = &acc{}
			by[s.Symbol] = a
		}
		a.n++
		a.exposure = a.exposure.Add(size)
		switch s.Action {
		case models.ActionBuy:
			a.net = a.net.Add(size)
		case models.ActionSell:
			a.net = a.net.Sub(size)
		}
		total = total.Add(size)
	}

	out := models.PortfolioSummary{
		TotalValueUSD:   t.balance.InexactFloat64(),
		OpenExposureUSD: total.Round(2).InexactFloat64(),
		OpenSignals:     len(signals),
		BySymbol:        make(map[string]models.SymbolExposure, len(by)),
		UpdatedAt:       t.now(),
	}
	for sym, a := range by {
		side := models.ActionHold
		switch a.net.Sign() {
		case 1:
			side = models.ActionBuy
		case -1:
			side = models.ActionSell
		}
		out.BySymbol[sym] = models.SymbolExposure{
			Signals:     a.n,
			ExposureUSD: a.exposure.Round(2).InexactFloat64(),
			NetSide:     side,
		}
	}
	return out, nil
}
