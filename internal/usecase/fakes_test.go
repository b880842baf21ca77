package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"CryptoAssist/internal/domain/models"
)

// fakeBackend answers by matching the prompt: the overview prompt gets
// overview, a prompt naming a symbol gets answers[symbol].
type fakeBackend struct {
	mu          sync.Mutex
	overview    string
	overviewErr error
	answers     map[string]string
	failFor     map[string]error
	panicFor    map[string]bool
	delay       time.Duration
	asked       []string
	closed      int
	closeErr    error
}

func (b *fakeBackend) Ask(ctx context.Context, prompt string) (string, error) {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if prompt == overviewPrompt {
		b.asked = append(b.asked, "overview")
		return b.overview, b.overviewErr
	}
	for sym, answer := range b.answers {
		if strings.Contains(prompt, sym) {
			b.asked = append(b.asked, sym)
			if b.panicFor[sym] {
				panic("backend blew up")
			}
			if err := b.failFor[sym]; err != nil {
				return "", err
			}
			return answer, nil
		}
	}
	b.asked = append(b.asked, prompt)
	return "no view", nil
}

func (b *fakeBackend) CloseSessions(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return b.closeErr
}

func (b *fakeBackend) askedSymbols() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.asked))
	for _, a := range b.asked {
		if a != "overview" {
			out = append(out, a)
		}
	}
	return out
}

func (b *fakeBackend) setOverviewErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overviewErr = err
}

func (b *fakeBackend) closeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// fakeGenerator builds a BUY signal at a fixed price unless told otherwise.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []string
	nilFor  map[string]bool
	errFor  map[string]error
	panicOn map[string]bool
}

func (g *fakeGenerator) Generate(_ context.Context, symbol string, opp models.Opportunity, _ models.Sentiment) (*models.TradingSignal, error) {
	g.mu.Lock()
	g.calls = append(g.calls, symbol)
	g.mu.Unlock()

	if g.panicOn[symbol] {
		panic("generator blew up")
	}
	if err := g.errFor[symbol]; err != nil {
		return nil, err
	}
	if g.nilFor[symbol] {
		return nil, nil
	}
	return &models.TradingSignal{
		Symbol:     symbol,
		Action:     opp.Action,
		Confidence: opp.Confidence,
		EntryPrice: 100,
		StopLoss:   98,
		TakeProfit: 104,
		Reasoning:  opp.RawText,
	}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeRisk struct {
	mu         sync.Mutex
	rejectFor  map[string]string
	errFor     map[string]error
	score      float64
	size       float64
	sizeCalls  int
	evaluateCt int
}

func (r *fakeRisk) Evaluate(_ context.Context, sig models.TradingSignal) (models.RiskAssessment, error) {
	r.mu.Lock()
	r.evaluateCt++
	r.mu.Unlock()
	if err := r.errFor[sig.Symbol]; err != nil {
		return models.RiskAssessment{}, err
	}
	if reason, ok := r.rejectFor[sig.Symbol]; ok {
		return models.RiskAssessment{Approved: false, RiskScore: 0.9, Reason: reason}, nil
	}
	return models.RiskAssessment{Approved: true, RiskScore: r.score, Reason: "ok"}, nil
}

func (r *fakeRisk) SizePosition(context.Context, string, float64, float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizeCalls++
	return r.size, nil
}

type fakeExecutor struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]bool
}

func (e *fakeExecutor) Execute(_ context.Context, sig models.TradingSignal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, sig.Symbol)
	if e.failOn[sig.Symbol] {
		return errors.New("exchange down")
	}
	return nil
}

func (e *fakeExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type fakeNotifier struct {
	mu      sync.Mutex
	batches [][]models.TradingSignal
	err     error
	panics  bool
}

func (n *fakeNotifier) Send(_ context.Context, signals []models.TradingSignal, _ *models.MarketOverview) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, signals)
	if n.panics {
		panic("notifier blew up")
	}
	return n.err
}

func (n *fakeNotifier) sendCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.batches)
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return errors.New("miss")
	}
	*dest.(*string) = v
	return nil
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]string)
	}
	c.data[key] = value.(string)
	return nil
}

func intPtr(v int) *int { return &v }

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
