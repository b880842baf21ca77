package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"CryptoAssist/internal/domain/models"
	drepo "CryptoAssist/internal/domain/repository"
	dservice "CryptoAssist/internal/domain/service"
	"CryptoAssist/pkg/logger"

	"github.com/google/uuid"
)

// MinSignalConfidence is the lowest confidence floor for signal generation.
// Configuration may raise it, never lower it.
const MinSignalConfidence = 0.6

// Signal outcomes recorded in metrics.
const (
	OutcomeLowConfidence = "low_confidence"
	OutcomeSkipped       = "skipped"
	OutcomeRejected      = "rejected"
	OutcomeApproved      = "approved"
	OutcomeError         = "error"
)

// Pipeline turns opportunities into approved, sized signals.
type Pipeline struct {
	generator     dservice.SignalGenerator
	risk          dservice.RiskEvaluator
	metrics       drepo.Metrics
	log           *logger.Logger
	minConfidence float64
	callTimeout   time.Duration
	now           func() time.Time
}

func NewPipeline(
	generator dservice.SignalGenerator,
	risk dservice.RiskEvaluator,
	metrics drepo.Metrics,
	log *logger.Logger,
	minConfidence float64,
	callTimeout time.Duration,
) *Pipeline {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	// configurable upward only
	if minConfidence < MinSignalConfidence {
		minConfidence = MinSignalConfidence
	}
	return &Pipeline{
		generator:     generator,
		risk:          risk,
		metrics:       metrics,
		log:           log,
		minConfidence: minConfidence,
		callTimeout:   callTimeout,
		now:           time.Now,
	}
}

// Build runs both stages: Generate then Filter.
func (p *Pipeline) Build(ctx context.Context, opps []models.Opportunity, sentiment models.Sentiment) []models.TradingSignal {
	return p.Filter(ctx, p.Generate(ctx, opps, sentiment))
}

// Generate drops opportunities below the confidence floor without any
// external call, then asks the generator for a candidate per survivor.
func (p *Pipeline) Generate(ctx context.Context, opps []models.Opportunity, sentiment models.Sentiment) []models.TradingSignal {
	candidates := make([]models.TradingSignal, 0, len(opps))
	for _, opp := range opps {
		if opp.Confidence < p.minConfidence {
			p.metrics.RecordSignal(OutcomeLowConfidence)
			continue
		}

		sig, err := p.generateOne(ctx, opp, sentiment)
		if err != nil {
			p.metrics.RecordSignal(OutcomeError)
			p.log.Error("generate signal failed", logger.String("symbol", opp.Symbol), logger.Error(err))
			continue
		}
		if sig == nil {
			p.metrics.RecordSignal(OutcomeSkipped)
			p.log.Debug("generator produced no signal", logger.String("symbol", opp.Symbol))
			continue
		}
		candidates = append(candidates, *sig)
	}
	return candidates
}

// Filter keeps candidates the risk evaluator approves and attaches risk score
// and position size to them. Rejections are not retried.
func (p *Pipeline) Filter(ctx context.Context, candidates []models.TradingSignal) []models.TradingSignal {
	if b, ok := p.risk.(dservice.BatchRiskEvaluator); ok {
		b.BeginBatch()
	}
	approved := make([]models.TradingSignal, 0, len(candidates))
	for _, sig := range candidates {
		out, assessment, err := p.evaluateOne(ctx, sig)
		if err != nil {
			p.metrics.RecordSignal(OutcomeError)
			p.log.Error("evaluate signal failed", logger.String("symbol", sig.Symbol), logger.Error(err))
			continue
		}
		if !assessment.Approved {
			p.metrics.RecordSignal(OutcomeRejected)
			p.log.Info("signal rejected",
				logger.String("symbol", sig.Symbol),
				logger.String("reason", assessment.Reason),
			)
			continue
		}

		p.metrics.RecordSignal(OutcomeApproved)
		p.log.Info("signal approved",
			logger.String("symbol", out.Symbol),
			logger.String("action", string(out.Action)),
			logger.Float64("entry", out.EntryPrice),
			logger.Float64("size_usd", out.PositionSizeUSD),
		)
		approved = append(approved, out)
	}
	return approved
}

func (p *Pipeline) generateOne(ctx context.Context, opp models.Opportunity, sentiment models.Sentiment) (sig *models.TradingSignal, err error) {
	defer func() {
		if r := recover(); r != nil {
			sig, err = nil, fmt.Errorf("panic in generator: %v", r)
		}
	}()

	callCtx, cancel := detached(ctx, p.callTimeout)
	defer cancel()
	return p.generator.Generate(callCtx, opp.Symbol, opp, sentiment)
}

func (p *Pipeline) evaluateOne(ctx context.Context, sig models.TradingSignal) (out models.TradingSignal, ra models.RiskAssessment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in risk evaluation: %v", r)
		}
	}()

	callCtx, cancel := detached(ctx, p.callTimeout)
	defer cancel()

	ra, err = p.risk.Evaluate(callCtx, sig)
	if err != nil {
		return sig, ra, fmt.Errorf("evaluate: %w", err)
	}
	if !ra.Approved {
		return sig, ra, nil
	}

	size, err := p.risk.SizePosition(callCtx, sig.Symbol, sig.EntryPrice, sig.StopLoss)
	if err != nil {
		return sig, ra, fmt.Errorf("size position: %w", err)
	}

	sig.RiskScore = clamp01(ra.RiskScore)
	sig.PositionSizeUSD = nonNegative(size)
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.Timestamp.IsZero() {
		sig.Timestamp = p.now()
	}
	return sig, ra, nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) {
		return 0
	}
	return v
}
