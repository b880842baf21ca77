package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"CryptoAssist/internal/domain/models"
	"CryptoAssist/internal/services/risk"
)

func testCatalog() []models.SymbolEntry {
	return []models.SymbolEntry{
		{Symbol: "XUSDT", Group: models.GroupMajorPairs, Enabled: true, Priority: intPtr(2)},
		{Symbol: "YUSDT", Group: models.GroupMajorPairs, Enabled: true, Priority: intPtr(1)},
		{Symbol: "ZUSDT", Group: models.GroupAltcoins, Enabled: true},
	}
}

func testConfig() OrchestratorConfig {
	return OrchestratorConfig{
		ScanInterval:  time.Hour,
		CallTimeout:   time.Second,
		MinConfidence: 0.6,
		Breaker: BreakerConfig{
			BaseBackoff:      time.Millisecond,
			MaxBackoff:       2 * time.Millisecond,
			FailureThreshold: 3,
			OpenTimeout:      time.Hour,
		},
		SignalCapacity:  50,
		SignalRetention: time.Hour,
		CacheTTL:        time.Minute,
	}
}

type orchestratorFixture struct {
	backend  *fakeBackend
	gen      *fakeGenerator
	risk     *fakeRisk
	notifier *fakeNotifier
	metrics  *recordingMetrics
	deps     OrchestratorDeps
}

func newFixture() *orchestratorFixture {
	f := &orchestratorFixture{
		backend: &fakeBackend{
			overview: "Bullish market, uptrend with high volume",
			answers: map[string]string{
				"XUSDT": "weak buy",
				"YUSDT": "strong buy",
				"ZUSDT": "clear sell",
			},
		},
		gen:      &fakeGenerator{},
		risk:     &fakeRisk{score: 0.3, size: 150},
		notifier: &fakeNotifier{},
		metrics:  newRecordingMetrics(),
	}
	f.deps = OrchestratorDeps{
		Backend:   f.backend,
		Generator: f.gen,
		Risk:      f.risk,
		Notifier:  f.notifier,
		Metrics:   f.metrics,
	}
	return f
}

func stop(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o.Stop(ctx)
}

func TestStartRequiresCollaborators(t *testing.T) {
	f := newFixture()
	f.deps.Backend = nil
	o := NewOrchestrator(testConfig(), testCatalog(), f.deps)

	if err := o.Start(context.Background()); !errors.Is(err, ErrStartupConfig) {
		t.Fatalf("expected ErrStartupConfig, got %v", err)
	}
	if o.Running() {
		t.Fatal("session must not run without a backend")
	}

	f = newFixture()
	cfg := testConfig()
	cfg.AutoTrading = true
	o = NewOrchestrator(cfg, testCatalog(), f.deps)
	if err := o.Start(context.Background()); !errors.Is(err, ErrStartupConfig) {
		t.Fatalf("auto-trading without executor: expected ErrStartupConfig, got %v", err)
	}

	f = newFixture()
	o = NewOrchestrator(testConfig(), nil, f.deps)
	if err := o.Start(context.Background()); !errors.Is(err, ErrStartupConfig) {
		t.Fatalf("empty catalog: expected ErrStartupConfig, got %v", err)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	f := newFixture()
	o := NewOrchestrator(testConfig(), testCatalog(), f.deps)

	o.Stop(context.Background())
	if f.backend.closeCount() != 0 {
		t.Fatal("stop before start must be a no-op")
	}

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := o.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	stop(t, o)
	stop(t, o)

	if o.Running() {
		t.Fatal("still running after stop")
	}
	if f.backend.closeCount() != 1 {
		t.Fatalf("expected one CloseSessions call, got %d", f.backend.closeCount())
	}
	if st := o.Status(); st.State != models.StateStopped || st.Running {
		t.Fatalf("unexpected status after stop: %+v", st)
	}
}

func TestStopSwallowsCloseError(t *testing.T) {
	f := newFixture()
	f.backend.closeErr = errors.New("session already gone")
	o := NewOrchestrator(testConfig(), testCatalog(), f.deps)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	stop(t, o)
	if o.Running() {
		t.Fatal("still running after stop")
	}
}

func TestIterationScansInPriorityOrder(t *testing.T) {
	f := newFixture()
	o := NewOrchestrator(testConfig(), testCatalog(), f.deps)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stop(t, o)

	waitFor(t, 2*time.Second, func() bool { return o.Status().State == models.StateSleeping }, "first iteration")

	asked := f.backend.askedSymbols()
	want := []string{"YUSDT", "XUSDT", "ZUSDT"}
	if len(asked) != len(want) {
		t.Fatalf("asked %v, want %v", asked, want)
	}
	for i := range want {
		if asked[i] != want[i] {
			t.Fatalf("asked %v, want %v", asked, want)
		}
	}

	// XUSDT answered "weak" and never reaches the generator
	if f.gen.callCount() != 2 {
		t.Fatalf("expected 2 generator calls, got %d", f.gen.callCount())
	}

	signals := o.ActiveSignals()
	if len(signals) != 2 || signals[0].Symbol != "YUSDT" || signals[1].Symbol != "ZUSDT" {
		t.Fatalf("unexpected active signals: %+v", signals)
	}
	if f.notifier.sendCount() != 1 {
		t.Fatalf("expected one notification, got %d", f.notifier.sendCount())
	}

	st := o.Status()
	if st.Iteration != 1 || st.Sentiment != models.SentimentBullish || st.ActiveSignalCount != 2 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if st.LastOverview == nil || st.LastOverview.Trend != models.TrendUp {
		t.Fatalf("overview not recorded: %+v", st.LastOverview)
	}
}

func TestNotifierFailureDoesNotStopLoop(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("discord down")
	cfg := testConfig()
	cfg.ScanInterval = 5 * time.Millisecond
	o := NewOrchestrator(cfg, testCatalog(), f.deps)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stop(t, o)

	waitFor(t, 2*time.Second, func() bool { return o.Status().Iteration >= 3 }, "three iterations")

	st := o.Status()
	if st.Breaker != models.BreakerClosed || st.ConsecutiveFailures != 0 || st.LastError != "" {
		t.Fatalf("notifier failure leaked into the loop: %+v", st)
	}
}

func TestOverviewAndScanFailureOpensBreaker(t *testing.T) {
	f := newFixture()
	f.backend.setOverviewErr(errors.New("backend unavailable"))
	f.backend.failFor = map[string]error{
		"XUSDT": errors.New("backend unavailable"),
		"YUSDT": errors.New("backend unavailable"),
		"ZUSDT": errors.New("backend unavailable"),
	}
	o := NewOrchestrator(testConfig(), testCatalog(), f.deps)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stop(t, o)

	waitFor(t, 2*time.Second, func() bool { return o.Status().Breaker == models.BreakerOpen }, "breaker to open")

	st := o.Status()
	if st.ConsecutiveFailures != 3 {
		t.Fatalf("expected 3 consecutive failures, got %d", st.ConsecutiveFailures)
	}
	if st.LastError == "" {
		t.Fatal("expected last error to be recorded")
	}
	if f.gen.callCount() != 0 {
		t.Fatal("generator called without any opportunity")
	}
}

func TestOverviewFailureKeepsScanning(t *testing.T) {
	f := newFixture()
	f.backend.setOverviewErr(errors.New("overview timed out"))
	o := NewOrchestrator(testConfig(), testCatalog(), f.deps)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stop(t, o)

	waitFor(t, 2*time.Second, func() bool { return o.Status().State == models.StateSleeping }, "first iteration")

	if got := f.backend.askedSymbols(); len(got) != 3 {
		t.Fatalf("expected every symbol scanned, asked %v", got)
	}
	if got := len(o.ActiveSignals()); got != 2 {
		t.Fatalf("expected 2 active signals, got %d", got)
	}

	st := o.Status()
	if st.Breaker != models.BreakerClosed || st.ConsecutiveFailures != 0 || st.LastError != "" {
		t.Fatalf("overview failure alone must not feed the breaker: %+v", st)
	}
	if st.Sentiment != models.SentimentNeutral || st.LastOverview != nil {
		t.Fatalf("expected previous sentiment kept, got %s / %+v", st.Sentiment, st.LastOverview)
	}
	if f.notifier.sendCount() != 1 {
		t.Fatalf("expected one notification, got %d", f.notifier.sendCount())
	}

	f.metrics.mu.Lock()
	scanErrors := append([]string(nil), f.metrics.scanErrors...)
	f.metrics.mu.Unlock()
	if len(scanErrors) != 1 || scanErrors[0] != "overview" {
		t.Fatalf("expected the overview failure to be recorded, got %v", scanErrors)
	}
}

func TestRejectedSignalsAreNotStored(t *testing.T) {
	f := newFixture()
	f.risk.rejectFor = map[string]string{"YUSDT": "risk score too high", "ZUSDT": "risk score too high"}
	o := NewOrchestrator(testConfig(), testCatalog(), f.deps)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stop(t, o)

	waitFor(t, 2*time.Second, func() bool { return o.Status().State == models.StateSleeping }, "first iteration")

	if f.gen.callCount() != 2 {
		t.Fatalf("expected 2 generator calls, got %d", f.gen.callCount())
	}
	if got := o.ActiveSignals(); len(got) != 0 {
		t.Fatalf("rejected signals stored: %+v", got)
	}
	if st := o.Status(); st.ActiveSignalCount != 0 || st.Breaker != models.BreakerClosed {
		t.Fatalf("unexpected status: %+v", st)
	}

	f.metrics.mu.Lock()
	rejected := f.metrics.signals[OutcomeRejected]
	f.metrics.mu.Unlock()
	if rejected != 2 {
		t.Fatalf("expected 2 rejections recorded, got %d", rejected)
	}
}

func TestOpenSignalLimitHoldsWithinIteration(t *testing.T) {
	f := newFixture()
	f.backend.answers = map[string]string{
		"XUSDT": "strong buy",
		"YUSDT": "strong buy",
		"ZUSDT": "strong buy",
	}
	rm := risk.NewManager(risk.Config{
		AccountBalance: 10000,
		RiskPerTrade:   0.01,
		MaxPositionUSD: 2000,
		MaxRiskScore:   0.7,
		MinRiskReward:  1.5,
		MaxOpenSignals: 1,
	})
	f.deps.Risk = rm
	o := NewOrchestrator(testConfig(), testCatalog(), f.deps)
	rm.SetOpenSignalCounter(func() int { return o.Status().ActiveSignalCount })

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stop(t, o)

	waitFor(t, 2*time.Second, func() bool { return o.Status().State == models.StateSleeping }, "first iteration")

	if f.gen.callCount() != 3 {
		t.Fatalf("expected 3 generator calls, got %d", f.gen.callCount())
	}
	signals := o.ActiveSignals()
	if len(signals) != 1 || signals[0].Symbol != "YUSDT" {
		t.Fatalf("expected only the first approved signal, got %+v", signals)
	}

	res, err := o.AnalyzeSymbol(context.Background(), "ZUSDT", "1h")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(res.Signals) != 0 || len(o.ActiveSignals()) != 1 {
		t.Fatalf("limit exceeded by a manual analysis: %+v", res.Signals)
	}
}

func TestStopTimeoutDetachesLoop(t *testing.T) {
	f := newFixture()
	f.backend.delay = 100 * time.Millisecond
	o := NewOrchestrator(testConfig(), testCatalog(), f.deps)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return o.Status().State == models.StateRunning }, "iteration to start")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	o.Stop(ctx)

	if o.Running() || o.Status().Running {
		t.Fatal("status still reports a running session after stop returned")
	}

	waitFor(t, 2*time.Second, func() bool { return o.Status().State == models.StateStopped }, "loop to exit")

	if o.Status().Running {
		t.Fatal("stopped loop published a running status")
	}
	if got := len(o.ActiveSignals()); got != 0 {
		t.Fatalf("detached loop stored %d signals", got)
	}
	if f.backend.closeCount() != 1 {
		t.Fatalf("expected one CloseSessions call, got %d", f.backend.closeCount())
	}
}

func TestAnalyzeSymbolInline(t *testing.T) {
	f := newFixture()
	o := NewOrchestrator(testConfig(), testCatalog(), f.deps)

	res, err := o.AnalyzeSymbol(context.Background(), " yusdt ", "4h")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Symbol != "YUSDT" || res.Timeframe != "4h" {
		t.Fatalf("unexpected response: %+v", res)
	}
	if res.Opportunity.Action != models.ActionBuy || len(res.Signals) != 1 {
		t.Fatalf("expected one BUY signal, got %+v", res)
	}
	if res.Signals[0].Timeframe != "4h" {
		t.Fatalf("timeframe not attached: %+v", res.Signals[0])
	}
	if len(o.ActiveSignals()) != 1 {
		t.Fatalf("signal not stored")
	}
	if f.notifier.sendCount() != 1 {
		t.Fatalf("expected one notification, got %d", f.notifier.sendCount())
	}
}

func TestAnalyzeSymbolWhileRunning(t *testing.T) {
	f := newFixture()
	o := NewOrchestrator(testConfig(), testCatalog(), f.deps)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer stop(t, o)

	waitFor(t, 2*time.Second, func() bool { return o.Status().State == models.StateSleeping }, "first iteration")

	res, err := o.AnalyzeSymbol(context.Background(), "ZUSDT", "")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Timeframe != "1h" || len(res.Signals) != 1 {
		t.Fatalf("unexpected response: %+v", res)
	}
	if got := len(o.ActiveSignals()); got != 3 {
		t.Fatalf("expected 3 active signals, got %d", got)
	}
}

func TestAnalyzeSymbolWithoutBackend(t *testing.T) {
	f := newFixture()
	f.deps.Backend = nil
	o := NewOrchestrator(testConfig(), testCatalog(), f.deps)

	if _, err := o.AnalyzeSymbol(context.Background(), "XUSDT", "1h"); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
}

func TestRunOnceCachesNormalizedQuery(t *testing.T) {
	f := newFixture()
	cache := &fakeCache{}
	f.deps.Cache = cache
	o := NewOrchestrator(testConfig(), testCatalog(), f.deps)

	first, err := o.RunOnce(context.Background(), "Where is the market heading?")
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	second, err := o.RunOnce(context.Background(), "  where is the market heading?  ")
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if first != second {
		t.Fatalf("cached answer differs: %q vs %q", first, second)
	}
	if got := len(f.backend.askedSymbols()); got != 1 {
		t.Fatalf("expected a single backend call, got %d", got)
	}
	if o.Status().Iteration != 0 || len(o.ActiveSignals()) != 0 {
		t.Fatal("run once must not touch session state")
	}

	if _, err := o.RunOnce(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestPortfolioSummaryRequiresTracker(t *testing.T) {
	o := NewOrchestrator(testConfig(), testCatalog(), newFixture().deps)
	if _, err := o.PortfolioSummary(context.Background()); err == nil {
		t.Fatal("expected error without a portfolio tracker")
	}
}
