package signals

import (
	"context"
	"errors"
	"math"
	"testing"

	"CryptoAssist/internal/domain/models"
)

type fixedPrice struct {
	price float64
	err   error
}

func (f fixedPrice) Price(context.Context, string) (float64, error) { return f.price, f.err }

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestGenerateLevels(t *testing.T) {
	tests := []struct {
		name       string
		opp        models.Opportunity
		stop, take float64
	}{
		{
			name: "buy default distances",
			opp:  models.Opportunity{Action: models.ActionBuy, Confidence: 0.8},
			stop: 98, take: 104,
		},
		{
			name: "sell default distances",
			opp:  models.Opportunity{Action: models.ActionSell, Confidence: 0.8},
			stop: 102, take: 96,
		},
		{
			name: "buy uses closer support and resistance",
			opp: models.Opportunity{Action: models.ActionBuy, Confidence: 0.8,
				PriceLevels: models.PriceLevels{Support: 99, Resistance: 103}},
			stop: 99, take: 103,
		},
		{
			name: "buy ignores levels on the wrong side",
			opp: models.Opportunity{Action: models.ActionBuy, Confidence: 0.8,
				PriceLevels: models.PriceLevels{Support: 101, Resistance: 95}},
			stop: 98, take: 104,
		},
		{
			name: "sell uses closer resistance and support",
			opp: models.Opportunity{Action: models.ActionSell, Confidence: 0.8,
				PriceLevels: models.PriceLevels{Support: 97, Resistance: 101}},
			stop: 101, take: 97,
		},
	}

	g := NewGenerator(fixedPrice{price: 100}, Config{StopLossPct: 0.02, TakeProfitPct: 0.04, Timeframe: "4h"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := g.Generate(context.Background(), "BTCUSDT", tt.opp, models.SentimentNeutral)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if !almost(sig.StopLoss, tt.stop) || !almost(sig.TakeProfit, tt.take) {
				t.Errorf("levels = %v/%v, want %v/%v", sig.StopLoss, sig.TakeProfit, tt.stop, tt.take)
			}
			if sig.EntryPrice != 100 || sig.Timeframe != "4h" || sig.ID == "" || sig.Timestamp.IsZero() {
				t.Errorf("signal = %+v", sig)
			}
		})
	}
}

func TestGenerateHoldIsSkipped(t *testing.T) {
	g := NewGenerator(fixedPrice{err: errors.New("must not be called")}, Config{})
	sig, err := g.Generate(context.Background(), "BTCUSDT", models.Opportunity{Action: models.ActionHold, Confidence: 0.9}, models.SentimentBullish)
	if err != nil || sig != nil {
		t.Fatalf("got %v, %v; want nil, nil", sig, err)
	}
}

func TestGeneratePriceError(t *testing.T) {
	g := NewGenerator(fixedPrice{err: errors.New("exchange down")}, Config{})
	if _, err := g.Generate(context.Background(), "BTCUSDT", models.Opportunity{Action: models.ActionBuy}, models.SentimentNeutral); err == nil {
		t.Fatal("expected error")
	}

	g = NewGenerator(fixedPrice{price: 0}, Config{})
	if _, err := g.Generate(context.Background(), "BTCUSDT", models.Opportunity{Action: models.ActionBuy}, models.SentimentNeutral); err == nil {
		t.Fatal("expected error for zero price")
	}
}

func TestGenerateCounterSentiment(t *testing.T) {
	g := NewGenerator(fixedPrice{price: 100}, Config{})

	sig, err := g.Generate(context.Background(), "BTCUSDT", models.Opportunity{Action: models.ActionBuy, Confidence: 0.8}, models.SentimentBearish)
	if err != nil {
		t.Fatal(err)
	}
	if !almost(sig.Confidence, 0.7) {
		t.Errorf("confidence = %v, want 0.7", sig.Confidence)
	}

	sig, _ = g.Generate(context.Background(), "BTCUSDT", models.Opportunity{Action: models.ActionSell, Confidence: 0.8}, models.SentimentBearish)
	if sig.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", sig.Confidence)
	}
}
