package signals

import (
	"context"
	"fmt"
	"time"

	"CryptoAssist/internal/domain/models"
	dservice "CryptoAssist/internal/domain/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// counterTrendPenalty is taken off the confidence of a signal that goes
// against the market sentiment.
const counterTrendPenalty = 0.1

type Config struct {
	StopLossPct   float64
	TakeProfitPct float64
	Timeframe     string
}

// Generator turns an opportunity into a candidate signal priced at the
// current market price.
type Generator struct {
	prices dservice.PriceSource
	cfg    Config
	now    func() time.Time
}

func NewGenerator(prices dservice.PriceSource, cfg Config) *Generator {
	if cfg.StopLossPct <= 0 {
		cfg.StopLossPct = 0.02
	}
	if cfg.TakeProfitPct <= 0 {
		cfg.TakeProfitPct = 0.04
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "1h"
	}
	return &Generator{prices: prices, cfg: cfg, now: time.Now}
}

// Generate returns nil for HOLD opportunities.
func (g *Generator) Generate(ctx context.Context, symbol string, opp models.Opportunity, sentiment models.Sentiment) (*models.TradingSignal, error) {
	if opp.Action != models.ActionBuy && opp.Action != models.ActionSell {
		return nil, nil
	}

	price, err := g.prices.Price(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("price %s: %w", symbol, err)
	}
	entry := decimal.NewFromFloat(price)
	if !entry.IsPositive() {
		return nil, fmt.Errorf("price %s: non-positive %v", symbol, price)
	}

	stop, target := g.levels(entry, opp)

	confidence := opp.Confidence
	if against(opp.Action, sentiment) {
		confidence -= counterTrendPenalty
		if confidence < 0 {
			confidence = 0
		}
	}

	return &models.TradingSignal{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Action:     opp.Action,
		Confidence: confidence,
		EntryPrice: entry.InexactFloat64(),
		StopLoss:   stop.InexactFloat64(),
		TakeProfit: target.InexactFloat64(),
		Timeframe:  g.cfg.Timeframe,
		Reasoning:  opp.RawText,
		Timestamp:  g.now(),
	}, nil
}

// levels places stop and target at the configured distances from entry. A
// support or resistance level from the analysis replaces the default when it
// lies on the correct side of entry and is closer.
func (g *Generator) levels(entry decimal.Decimal, opp models.Opportunity) (stop, target decimal.Decimal) {
	one := decimal.NewFromInt(1)
	sl := decimal.NewFromFloat(g.cfg.StopLossPct)
	tp := decimal.NewFromFloat(g.cfg.TakeProfitPct)
	support := decimal.NewFromFloat(opp.PriceLevels.Support)
	resistance := decimal.NewFromFloat(opp.PriceLevels.Resistance)

	if opp.Action == models.ActionBuy {
		stop = entry.Mul(one.Sub(sl))
		target = entry.Mul(one.Add(tp))
		if support.IsPositive() && support.LessThan(entry) && support.GreaterThan(stop) {
			stop = support
		}
		if resistance.GreaterThan(entry) && resistance.LessThan(target) {
			target = resistance
		}
		return stop, target
	}

	stop = entry.Mul(one.Add(sl))
	target = entry.Mul(one.Sub(tp))
	if resistance.GreaterThan(entry) && resistance.LessThan(stop) {
		stop = resistance
	}
	if support.IsPositive() && support.LessThan(entry) && support.GreaterThan(target) {
		target = support
	}
	return stop, target
}

func against(action models.Action, sentiment models.Sentiment) bool {
	return (action == models.ActionBuy && sentiment == models.SentimentBearish) ||
		(action == models.ActionSell && sentiment == models.SentimentBullish)
}
