package usecase

import (
	"context"
	"fmt"
	"time"

	"CryptoAssist/internal/domain/models"
	drepo "CryptoAssist/internal/domain/repository"
	dservice "CryptoAssist/internal/domain/service"
	"CryptoAssist/internal/services/extract"
	"CryptoAssist/pkg/logger"
)

// Scanner asks the reasoning backend about each symbol in turn.
type Scanner struct {
	backend     dservice.ReasoningBackend
	metrics     drepo.Metrics
	log         *logger.Logger
	delay       time.Duration
	callTimeout time.Duration
	now         func() time.Time
}

// NewScanner creates a scanner. delay separates consecutive symbol calls.
func NewScanner(
	backend dservice.ReasoningBackend,
	metrics drepo.Metrics,
	log *logger.Logger,
	delay time.Duration,
	callTimeout time.Duration,
) *Scanner {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scanner{
		backend:     backend,
		metrics:     metrics,
		log:         log,
		delay:       delay,
		callTimeout: callTimeout,
		now:         time.Now,
	}
}

// Scan returns one opportunity per symbol that answered. A failing symbol is
// logged and skipped. The only error is ctx.Err(), observed during the delay
// between symbols, in which case the opportunities gathered so far are returned.
func (s *Scanner) Scan(ctx context.Context, symbols []string) ([]models.Opportunity, error) {
	opps := make([]models.Opportunity, 0, len(symbols))

	for i, symbol := range symbols {
		if i > 0 {
			if err := sleepCtx(ctx, s.delay); err != nil {
				return opps, err
			}
		} else if err := ctx.Err(); err != nil {
			return opps, err
		}

		opp, err := s.scanOne(ctx, symbol)
		if err != nil {
			s.metrics.RecordScanError(symbol)
			s.log.Error("scan symbol failed", logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		opps = append(opps, opp)
	}

	s.log.Info("scan finished",
		logger.Int("symbols", len(symbols)),
		logger.Int("opportunities", len(opps)),
	)
	return opps, nil
}

func (s *Scanner) scanOne(ctx context.Context, symbol string) (opp models.Opportunity, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic scanning %s: %v", symbol, r)
		}
	}()

	text, err := askDetached(ctx, s.backend, symbolPrompt(symbol), s.callTimeout, s.metrics, "scan")
	if err != nil {
		return models.Opportunity{}, err
	}
	return extract.ExtractOpportunity(symbol, text, s.now()), nil
}

// askDetached runs one backend call that a later cancellation of ctx does not
// interrupt; it is bounded by timeout instead.
func askDetached(
	ctx context.Context,
	backend dservice.ReasoningBackend,
	prompt string,
	timeout time.Duration,
	metrics drepo.Metrics,
	op string,
) (string, error) {
	callCtx, cancel := detached(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := backend.Ask(callCtx, prompt)
	metrics.RecordBackendCall(op, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("backend %s: %w", op, err)
	}
	return text, nil
}

func detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, timeout)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
