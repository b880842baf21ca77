package risk

import (
	"context"
	"strings"
	"testing"

	"CryptoAssist/internal/domain/models"
)

func defaultConfig() Config {
	return Config{
		AccountBalance: 10000,
		RiskPerTrade:   0.01,
		MaxPositionUSD: 2000,
		MaxRiskScore:   0.7,
		MinRiskReward:  1.5,
		MaxOpenSignals: 3,
	}
}

func buy(conf, entry, stop, take float64) models.TradingSignal {
	return models.TradingSignal{Symbol: "BTCUSDT", Action: models.ActionBuy, Confidence: conf, EntryPrice: entry, StopLoss: stop, TakeProfit: take}
}

func TestEvaluateApproves(t *testing.T) {
	m := NewManager(defaultConfig())
	ra, err := m.Evaluate(context.Background(), buy(0.8, 100, 98, 104))
	if err != nil {
		t.Fatal(err)
	}
	if !ra.Approved {
		t.Fatalf("rejected: %s", ra.Reason)
	}
	if ra.RiskScore != 0.26 {
		t.Errorf("score = %v, want 0.26", ra.RiskScore)
	}
}

func TestEvaluateRejects(t *testing.T) {
	tests := []struct {
		name   string
		sig    models.TradingSignal
		open   int
		reason string
	}{
		{"hold", models.TradingSignal{Action: models.ActionHold, EntryPrice: 100}, 0, "not tradable"},
		{"zero entry", buy(0.8, 0, 0, 1), 0, "invalid entry"},
		{"stop above entry", buy(0.8, 100, 101, 104), 0, "stop loss"},
		{"target below entry", buy(0.8, 100, 98, 99), 0, "take profit"},
		{"poor reward", buy(0.8, 100, 98, 101), 0, "risk/reward"},
		{"high score", buy(0, 100, 80, 140), 0, "risk score"},
		{"too many open", buy(0.8, 100, 98, 104), 3, "open signals"},
		{
			"sell stop below entry",
			models.TradingSignal{Action: models.ActionSell, Confidence: 0.8, EntryPrice: 100, StopLoss: 99, TakeProfit: 96},
			0, "stop loss",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(defaultConfig())
			open := tt.open
			m.SetOpenSignalCounter(func() int { return open })

			ra, err := m.Evaluate(context.Background(), tt.sig)
			if err != nil {
				t.Fatal(err)
			}
			if ra.Approved {
				t.Fatal("expected rejection")
			}
			if !strings.Contains(ra.Reason, tt.reason) {
				t.Errorf("reason = %q, want it to mention %q", ra.Reason, tt.reason)
			}
		})
	}
}

func TestSizePosition(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		entry, stop float64
		want        float64
	}{
		{"uncapped", Config{AccountBalance: 10000, RiskPerTrade: 0.01}, 100, 90, 1000},
		{"capped by max position", Config{AccountBalance: 10000, RiskPerTrade: 0.01, MaxPositionUSD: 2000}, 100, 98, 2000},
		{"capped by balance", Config{AccountBalance: 1000, RiskPerTrade: 0.02}, 100, 99, 1000},
		{"short side", Config{AccountBalance: 10000, RiskPerTrade: 0.01}, 100, 110, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewManager(tt.cfg).SizePosition(context.Background(), "BTCUSDT", tt.entry, tt.stop)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("size = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := NewManager(defaultConfig()).SizePosition(context.Background(), "BTCUSDT", 100, 100); err == nil {
		t.Fatal("expected error for zero stop distance")
	}
}

func TestOpenSignalLimitCountsCurrentBatch(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxOpenSignals = 1
	m := NewManager(cfg)
	stored := 0
	m.SetOpenSignalCounter(func() int { return stored })

	m.BeginBatch()
	approved := 0
	for i := 0; i < 3; i++ {
		ra, err := m.Evaluate(context.Background(), buy(0.8, 100, 98, 104))
		if err != nil {
			t.Fatal(err)
		}
		if ra.Approved {
			approved++
		} else if !strings.Contains(ra.Reason, "open signals") {
			t.Errorf("unexpected reason %q", ra.Reason)
		}
	}
	if approved != 1 {
		t.Fatalf("approved %d signals in one batch, limit is 1", approved)
	}

	// the approved signal is now stored
	stored = 1
	m.BeginBatch()
	if ra, _ := m.Evaluate(context.Background(), buy(0.8, 100, 98, 104)); ra.Approved {
		t.Fatal("stored signal must still count toward the limit")
	}

	stored = 0
	m.BeginBatch()
	if ra, _ := m.Evaluate(context.Background(), buy(0.8, 100, 98, 104)); !ra.Approved {
		t.Fatalf("expected approval after the signal expired: %s", ra.Reason)
	}
}
