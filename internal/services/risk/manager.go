package risk

import (
	"context"
	"fmt"
	"sync"

	"CryptoAssist/internal/domain/models"

	"github.com/shopspring/decimal"
)

type Config struct {
	AccountBalance float64
	RiskPerTrade   float64
	MaxPositionUSD float64
	MaxRiskScore   float64
	MinRiskReward  float64
	MaxOpenSignals int
}

// Score weights. A stop further than wideStop from entry counts as maximal.
var (
	weightConfidence = decimal.RequireFromString("0.5")
	weightStop       = decimal.RequireFromString("0.3")
	weightReward     = decimal.RequireFromString("0.2")
	wideStop         = decimal.RequireFromString("0.10")
)

// Manager scores signals and sizes positions with fixed-fraction risk.
type Manager struct {
	cfg Config

	mu          sync.Mutex
	openSignals func() int
	// approvals since BeginBatch, not yet visible through openSignals
	pending int
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// SetOpenSignalCounter installs the source of the current open signal count
// used by the MaxOpenSignals check.
func (m *Manager) SetOpenSignalCounter(fn func() int) {
	m.mu.Lock()
	m.openSignals = fn
	m.mu.Unlock()
}

// BeginBatch starts a new evaluation batch. Approvals from the previous batch
// must already be reflected by the open signal counter.
func (m *Manager) BeginBatch() {
	m.mu.Lock()
	m.pending = 0
	m.mu.Unlock()
}

// reserve counts one more open signal unless the limit is reached.
func (m *Manager) reserve() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.pending
	if m.openSignals != nil {
		n += m.openSignals()
	}
	if n >= m.cfg.MaxOpenSignals {
		return n, false
	}
	m.pending++
	return n, true
}

func (m *Manager) Evaluate(_ context.Context, sig models.TradingSignal) (models.RiskAssessment, error) {
	reject := func(score float64, format string, args ...interface{}) (models.RiskAssessment, error) {
		return models.RiskAssessment{Approved: false, RiskScore: score, Reason: fmt.Sprintf(format, args...)}, nil
	}

	if sig.Action != models.ActionBuy && sig.Action != models.ActionSell {
		return reject(1, "action %s is not tradable", sig.Action)
	}

	entry := decimal.NewFromFloat(sig.EntryPrice)
	stop := decimal.NewFromFloat(sig.StopLoss)
	target := decimal.NewFromFloat(sig.TakeProfit)
	if !entry.IsPositive() {
		return reject(1, "invalid entry price %v", sig.EntryPrice)
	}

	var risk, reward decimal.Decimal
	if sig.Action == models.ActionBuy {
		risk, reward = entry.Sub(stop), target.Sub(entry)
	} else {
		risk, reward = stop.Sub(entry), entry.Sub(target)
	}
	if !risk.IsPositive() {
		return reject(1, "stop loss %v on the wrong side of entry %v", sig.StopLoss, sig.EntryPrice)
	}
	if !reward.IsPositive() {
		return reject(1, "take profit %v on the wrong side of entry %v", sig.TakeProfit, sig.EntryPrice)
	}

	rr := reward.Div(risk)
	score := m.score(sig.Confidence, risk.Div(entry), rr)
	scoreF := score.InexactFloat64()

	if rr.LessThan(decimal.NewFromFloat(m.cfg.MinRiskReward)) {
		return reject(scoreF, "risk/reward %s below %v", rr.StringFixed(2), m.cfg.MinRiskReward)
	}
	if m.cfg.MaxRiskScore > 0 && score.GreaterThan(decimal.NewFromFloat(m.cfg.MaxRiskScore)) {
		return reject(scoreF, "risk score %s above %v", score.StringFixed(2), m.cfg.MaxRiskScore)
	}
	if m.cfg.MaxOpenSignals > 0 {
		if n, ok := m.reserve(); !ok {
			return reject(scoreF, "%d open signals, limit %d", n, m.cfg.MaxOpenSignals)
		}
	}

	return models.RiskAssessment{
		Approved:  true,
		RiskScore: scoreF,
		Reason:    fmt.Sprintf("risk/reward %s", rr.StringFixed(2)),
	}, nil
}

// score is in [0,1]: low confidence, wide stops and poor reward raise it.
func (m *Manager) score(confidence float64, stopPct, rr decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	conf := decimal.NewFromFloat(confidence)
	if conf.GreaterThan(one) {
		conf = one
	}
	if conf.IsNegative() {
		conf = decimal.Zero
	}

	stopTerm := decimal.Min(stopPct.Div(wideStop), one)
	rewardTerm := decimal.Min(one.Div(rr), one)

	return weightConfidence.Mul(one.Sub(conf)).
		Add(weightStop.Mul(stopTerm)).
		Add(weightReward.Mul(rewardTerm)).
		Round(4)
}

// SizePosition risks RiskPerTrade of the balance between entry and stop,
// capped at MaxPositionUSD and the balance itself.
func (m *Manager) SizePosition(_ context.Context, symbol string, entry, stop float64) (float64, error) {
	e := decimal.NewFromFloat(entry)
	dist := e.Sub(decimal.NewFromFloat(stop)).Abs()
	if !e.IsPositive() || dist.IsZero() {
		return 0, fmt.Errorf("size %s: invalid entry %v / stop %v", symbol, entry, stop)
	}

	balance := decimal.NewFromFloat(m.cfg.AccountBalance)
	riskAmount := balance.Mul(decimal.NewFromFloat(m.cfg.RiskPerTrade))
	size := riskAmount.Div(dist).Mul(e)

	if m.cfg.MaxPositionUSD > 0 {
		size = decimal.Min(size, decimal.NewFromFloat(m.cfg.MaxPositionUSD))
	}
	size = decimal.Min(size, balance)
	return size.Round(2).InexactFloat64(), nil
}
