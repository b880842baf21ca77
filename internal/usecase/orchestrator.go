package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"CryptoAssist/internal/domain/models"
	drepo "CryptoAssist/internal/domain/repository"
	dservice "CryptoAssist/internal/domain/service"
	"CryptoAssist/internal/services/extract"
	"CryptoAssist/pkg/logger"
)

type OrchestratorConfig struct {
	ScanInterval     time.Duration
	SymbolDelay      time.Duration
	CallTimeout      time.Duration
	MaxSymbols       int
	MinConfidence    float64
	AutoTrading      bool
	DefaultTimeframe string
	Breaker          BreakerConfig
	SignalCapacity   int
	SignalRetention  time.Duration
	CacheTTL         time.Duration
}

// OrchestratorDeps are the collaborators. Backend, Generator and Risk are
// required; the rest may be nil.
type OrchestratorDeps struct {
	Backend   dservice.ReasoningBackend
	Generator dservice.SignalGenerator
	Risk      dservice.RiskEvaluator
	Executor  dservice.Executor
	Notifier  dservice.Notifier
	Portfolio dservice.PortfolioTracker
	Cache     drepo.Cache
	Metrics   drepo.Metrics
	Logger    *logger.Logger
}

// analyzeRequest is a manual analysis handed to the session writer.
type analyzeRequest struct {
	ctx       context.Context
	symbol    string
	timeframe string
	reply     chan analyzeReply
}

type analyzeReply struct {
	res models.AnalyzeResponse
	err error
}

// Orchestrator runs the session loop. All session state is written by a
// single writer: the loop goroutine while a session runs, otherwise the
// caller holding the writer token. Manual requests reach a running loop
// through the mailbox and are served between iterations. Readers load the
// last published snapshot.
type Orchestrator struct {
	cfg     OrchestratorConfig
	deps    OrchestratorDeps
	symbols []string
	log     *logger.Logger
	metrics drepo.Metrics

	scanner    *Scanner
	pipeline   *Pipeline
	gate       *ExecutionGate
	dispatcher *Dispatcher

	lifecycle sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}

	writer   chan struct{}
	mailbox  chan analyzeRequest
	snapshot atomic.Pointer[models.SessionStatus]

	// writer-owned
	book            *SignalBook
	breaker         *Breaker
	state           models.SessionState
	sentiment       models.Sentiment
	iteration       int64
	lastIterationAt time.Time
	lastError       string
	lastOverview    *models.MarketOverview
	now             func() time.Time
}

func NewOrchestrator(cfg OrchestratorConfig, catalog []models.SymbolEntry, deps OrchestratorDeps) *Orchestrator {
	if deps.Metrics == nil {
		deps.Metrics = drepo.NopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 300 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	cfg.DefaultTimeframe = string(drepo.NormalizeTimeframe(cfg.DefaultTimeframe))

	log := deps.Logger.With(logger.String("component", "orchestrator"))
	o := &Orchestrator{
		cfg:        cfg,
		deps:       deps,
		symbols:    SelectPrioritySymbols(catalog, cfg.MaxSymbols),
		log:        log,
		metrics:    deps.Metrics,
		scanner:    NewScanner(deps.Backend, deps.Metrics, log, cfg.SymbolDelay, cfg.CallTimeout),
		pipeline:   NewPipeline(deps.Generator, deps.Risk, deps.Metrics, log, cfg.MinConfidence, cfg.CallTimeout),
		gate:       NewExecutionGate(deps.Executor, log, cfg.CallTimeout),
		dispatcher: NewDispatcher(deps.Notifier, deps.Metrics, log, cfg.CallTimeout),
		writer:     make(chan struct{}, 1),
		mailbox:    make(chan analyzeRequest),
		book:       NewSignalBook(cfg.SignalCapacity, cfg.SignalRetention),
		breaker:    NewBreaker(cfg.Breaker),
		state:      models.StateStopped,
		sentiment:  models.SentimentNeutral,
		now:        time.Now,
	}
	o.publish()
	return o
}

// Symbols returns the priority-ordered instruments scanned each iteration.
func (o *Orchestrator) Symbols() []string {
	out := make([]string, len(o.symbols))
	copy(out, o.symbols)
	return out
}

func (o *Orchestrator) checkCollaborators() error {
	var missing []string
	if o.deps.Backend == nil {
		missing = append(missing, "reasoning backend")
	}
	if o.deps.Generator == nil {
		missing = append(missing, "signal generator")
	}
	if o.deps.Risk == nil {
		missing = append(missing, "risk evaluator")
	}
	if o.cfg.AutoTrading && o.deps.Executor == nil {
		missing = append(missing, "executor")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrStartupConfig, strings.Join(missing, ", "))
	}
	if len(o.symbols) == 0 {
		return fmt.Errorf("%w: no enabled symbols", ErrStartupConfig)
	}
	return nil
}

// Start launches the session loop and returns once it is running. The loop
// outlives ctx; use Stop to end it.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	if err := o.checkCollaborators(); err != nil {
		return err
	}
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	// wait for an inline manual request or a previous loop to release the writer token
	select {
	case o.writer <- struct{}{}:
	case <-ctx.Done():
		o.running.Store(false)
		return ctx.Err()
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel
	o.done = make(chan struct{})

	o.setState(models.StateRunning)
	o.log.Info("trading session started",
		logger.Strings("symbols", o.symbols),
		logger.Bool("auto_trading", o.cfg.AutoTrading),
		logger.Duration("scan_interval_ms", o.cfg.ScanInterval),
	)

	go o.loop(loopCtx, o.done)
	return nil
}

// Stop is idempotent. It cancels the loop at its next checkpoint, waits for
// it to exit (bounded by ctx) and closes backend sessions. Teardown errors
// are logged, never returned.
func (o *Orchestrator) Stop(ctx context.Context) {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	if !o.running.CompareAndSwap(true, false) {
		return
	}
	o.log.Info("stopping trading session")
	o.cancel()

	select {
	case <-o.done:
	case <-ctx.Done():
		o.log.Warn("session loop detached while finishing an in-flight call; it exits at its next checkpoint without storing signals",
			logger.Error(ctx.Err()),
			logger.String("state", string(o.Status().State)),
		)
	}

	closeCtx, cancel := detached(ctx, o.cfg.CallTimeout)
	defer cancel()
	if err := o.deps.Backend.CloseSessions(closeCtx); err != nil {
		o.log.Error("close backend sessions failed", logger.Error(err))
	}
	o.log.Info("trading session stopped")
}

// Running reports whether a session loop is active.
func (o *Orchestrator) Running() bool { return o.running.Load() }

func (o *Orchestrator) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		o.setState(models.StateStopped)
		<-o.writer
		close(done)
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		if wait, ok := o.breaker.Allow(); !ok {
			if !o.idle(ctx, wait) {
				return
			}
			continue
		}

		started := o.now()
		err := o.runIteration(ctx)
		elapsed := o.now().Sub(started).Seconds()

		var wait time.Duration
		switch {
		case err == nil:
			o.breaker.OnSuccess()
			o.lastError = ""
			o.metrics.RecordIteration("ok", elapsed)
			wait = o.cfg.ScanInterval
		case ctx.Err() != nil && errors.Is(err, context.Canceled):
			o.metrics.RecordIteration("cancelled", elapsed)
			return
		default:
			o.lastError = err.Error()
			wait = o.breaker.OnFailure()
			o.metrics.RecordIteration("error", elapsed)
			o.log.Error("iteration failed",
				logger.Error(err),
				logger.Int("consecutive_failures", o.breaker.Failures()),
				logger.String("breaker", string(o.breaker.State())),
				logger.Duration("retry_in_ms", wait),
			)
		}
		o.metrics.SetBreakerState(o.breaker.State())

		o.setState(models.StateSleeping)
		if !o.idle(ctx, wait) {
			return
		}
	}
}

// idle sleeps for d while serving the mailbox. It returns false when ctx is done.
func (o *Orchestrator) idle(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case req := <-o.mailbox:
			res, err := o.analyze(req.ctx, req.symbol, req.timeframe)
			req.reply <- analyzeReply{res: res, err: err}
		}
	}
}

// runIteration performs overview, scan, generate, filter, gate and notify.
// Cancellation is observed between steps.
func (o *Orchestrator) runIteration(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &IterationError{Step: string(o.state), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	o.iteration++
	o.setState(models.StateRunning)

	// A failed overview keeps the previous sentiment and the scan still runs.
	var overview *models.MarketOverview
	text, overviewErr := askDetached(ctx, o.deps.Backend, overviewPrompt, o.cfg.CallTimeout, o.metrics, "overview")
	if overviewErr != nil {
		o.metrics.RecordScanError("overview")
		o.log.Warn("market overview failed, keeping previous sentiment",
			logger.String("sentiment", string(o.sentiment)),
			logger.Error(overviewErr),
		)
	} else {
		ov := extract.ExtractOverview(text, o.now())
		o.sentiment = ov.Sentiment
		o.lastOverview = &ov
		overview = &ov
		o.log.Info("market overview updated",
			logger.String("sentiment", string(ov.Sentiment)),
			logger.String("trend", string(ov.Trend)),
			logger.Bool("important", ov.ImportantUpdate),
		)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	o.setState(models.StateScanning)
	opps, err := o.scanner.Scan(ctx, o.symbols)
	if err != nil {
		return err
	}
	if overviewErr != nil && len(opps) == 0 {
		// nothing answered at all
		return &IterationError{Step: "overview", Err: overviewErr}
	}

	o.setState(models.StateGenerating)
	candidates := o.pipeline.Generate(ctx, opps, o.sentiment)
	if err := ctx.Err(); err != nil {
		return err
	}

	o.setState(models.StateFiltering)
	signals := o.pipeline.Filter(ctx, candidates)
	if err := ctx.Err(); err != nil {
		return err
	}
	o.store(signals)
	o.log.Info("signals approved", logger.Int("generated", len(candidates)), logger.Int("approved", len(signals)))

	o.setState(models.StateGating)
	o.gate.MaybeExecute(ctx, signals, o.cfg.AutoTrading)
	o.logPortfolio(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	o.setState(models.StateNotifying)
	o.dispatcher.Notify(ctx, signals, overview)

	o.lastIterationAt = o.now()
	return nil
}

func (o *Orchestrator) logPortfolio(ctx context.Context) {
	if o.deps.Portfolio == nil {
		return
	}
	callCtx, cancel := detached(ctx, o.cfg.CallTimeout)
	defer cancel()
	summary, err := o.deps.Portfolio.Summary(callCtx, o.book.Snapshot())
	if err != nil {
		o.log.Error("portfolio update failed", logger.Error(err))
		return
	}
	o.log.Info("portfolio updated",
		logger.Float64("total_value_usd", summary.TotalValueUSD),
		logger.Float64("open_exposure_usd", summary.OpenExposureUSD),
	)
}

// store appends approved signals to the book and publishes a fresh snapshot.
func (o *Orchestrator) store(signals []models.TradingSignal) {
	if n := o.book.Prune(); n > 0 {
		o.log.Debug("expired signals pruned", logger.Int("count", n))
	}
	if len(signals) > 0 {
		if n := o.book.Append(signals...); n > 0 {
			o.log.Warn("signal book full, oldest signals overwritten", logger.Int("count", n))
		}
	}
	o.metrics.SetActiveSignals(o.book.Len())
	o.publish()
}

// AnalyzeSymbol runs a manual analysis for one symbol and stores any approved
// signal. While a session runs the request is served by the loop between
// iterations; otherwise it runs on the caller's goroutine.
func (o *Orchestrator) AnalyzeSymbol(ctx context.Context, symbol, timeframe string) (models.AnalyzeResponse, error) {
	if o.deps.Backend == nil || o.deps.Generator == nil || o.deps.Risk == nil {
		return models.AnalyzeResponse{}, ErrNoBackend
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if timeframe == "" {
		timeframe = o.cfg.DefaultTimeframe
	}
	timeframe = string(drepo.NormalizeTimeframe(timeframe))

	for {
		select {
		case o.writer <- struct{}{}:
			res, err := o.analyze(ctx, symbol, timeframe)
			<-o.writer
			return res, err
		default:
		}

		o.lifecycle.Lock()
		done := o.done
		o.lifecycle.Unlock()

		req := analyzeRequest{ctx: ctx, symbol: symbol, timeframe: timeframe, reply: make(chan analyzeReply, 1)}
		select {
		case o.mailbox <- req:
			rep := <-req.reply
			return rep.res, rep.err
		case <-done:
			// loop exited before taking the request; retry inline
		case <-time.After(50 * time.Millisecond):
			// token may have been released by an inline caller
		case <-ctx.Done():
			return models.AnalyzeResponse{}, ctx.Err()
		}
	}
}

// analyze must run on the writer.
func (o *Orchestrator) analyze(ctx context.Context, symbol, timeframe string) (models.AnalyzeResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	text, err := o.deps.Backend.Ask(callCtx, manualSymbolPrompt(symbol, timeframe))
	o.metrics.RecordBackendCall("analyze", time.Since(start).Seconds())
	if err != nil {
		return models.AnalyzeResponse{}, fmt.Errorf("analyze %s: %w", symbol, err)
	}

	opp := extract.ExtractOpportunity(symbol, text, o.now())
	signals := o.pipeline.Build(ctx, []models.Opportunity{opp}, o.sentiment)
	for i := range signals {
		if signals[i].Timeframe == "" {
			signals[i].Timeframe = timeframe
		}
	}
	o.store(signals)
	o.dispatcher.Notify(ctx, signals, nil)

	return models.AnalyzeResponse{
		Symbol:      symbol,
		Timeframe:   timeframe,
		Opportunity: opp,
		Signals:     signals,
	}, nil
}

// RunOnce answers a free-form question. It does not touch session state.
// Answers are cached by the normalized query when a cache is configured;
// cache failures fall back to a direct call.
func (o *Orchestrator) RunOnce(ctx context.Context, query string) (string, error) {
	if o.deps.Backend == nil {
		return "", ErrNoBackend
	}
	prompt := strings.TrimSpace(query)
	if prompt == "" {
		return "", errors.New("empty query")
	}
	key := "runonce:" + queryKey(prompt)

	if o.deps.Cache != nil {
		var cached string
		if err := o.deps.Cache.Get(ctx, key, &cached); err == nil && cached != "" {
			return cached, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	answer, err := o.deps.Backend.Ask(callCtx, prompt)
	o.metrics.RecordBackendCall("run_once", time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("run once: %w", err)
	}

	if o.deps.Cache != nil && o.cfg.CacheTTL > 0 {
		if err := o.deps.Cache.Set(ctx, key, answer, o.cfg.CacheTTL); err != nil {
			o.log.Warn("cache answer failed", logger.Error(err))
		}
	}
	return answer, nil
}

func queryKey(q string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(q))))
	return hex.EncodeToString(sum[:])
}

// ActiveSignals returns a copy of the stored signals in approval order.
func (o *Orchestrator) ActiveSignals() []models.TradingSignal {
	snap := o.snapshot.Load()
	out := make([]models.TradingSignal, len(snap.ActiveSignals))
	copy(out, snap.ActiveSignals)
	return out
}

// Status returns the last published snapshot. Running always reflects the
// lifecycle flag, even while a stopped loop is still winding down.
func (o *Orchestrator) Status() models.SessionStatus {
	st := *o.snapshot.Load()
	st.Running = o.running.Load()
	return st
}

// PortfolioSummary summarizes exposure of the active signals.
func (o *Orchestrator) PortfolioSummary(ctx context.Context) (models.PortfolioSummary, error) {
	if o.deps.Portfolio == nil {
		return models.PortfolioSummary{}, errors.New("portfolio tracker not configured")
	}
	return o.deps.Portfolio.Summary(ctx, o.ActiveSignals())
}

func (o *Orchestrator) setState(s models.SessionState) {
	o.state = s
	o.publish()
}

// publish must run on the writer.
func (o *Orchestrator) publish() {
	signals := o.book.Snapshot()
	o.snapshot.Store(&models.SessionStatus{
		Running:             o.running.Load(),
		State:               o.state,
		Sentiment:           o.sentiment,
		Iteration:           o.iteration,
		LastIterationAt:     o.lastIterationAt,
		LastError:           o.lastError,
		Breaker:             o.breaker.State(),
		ConsecutiveFailures: o.breaker.Failures(),
		LastOverview:        o.lastOverview,
		ActiveSignals:       signals,
		ActiveSignalCount:   len(signals),
		AutoTrading:         o.cfg.AutoTrading,
	})
}
