package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"CryptoAssist/internal/domain/models"
	xhttp "CryptoAssist/pkg/http"
	xlogger "CryptoAssist/pkg/logger"
)

// Analyzer runs a manual analysis. Implemented by the orchestrator.
type Analyzer interface {
	AnalyzeSymbol(ctx context.Context, symbol, timeframe string) (models.AnalyzeResponse, error)
}

// AnalyzeHandler consumes queued analysis requests. Approved signals reach
// subscribers through the orchestrator's notifier like any other batch.
type AnalyzeHandler struct {
	topic    string
	analyzer Analyzer
	log      *xlogger.Logger
}

func NewAnalyzeHandler(topic string, analyzer Analyzer, log *xlogger.Logger) *AnalyzeHandler {
	if log == nil {
		log = xlogger.Nop()
	}
	return &AnalyzeHandler{topic: topic, analyzer: analyzer, log: log.With(xlogger.String("component", "analyze_consumer"))}
}

func (h *AnalyzeHandler) Topic() string { return h.topic }

func (h *AnalyzeHandler) Handle(ctx context.Context, data []byte) error {
	var cmd models.AnalyzeCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("decode analyze command: %w", err)
	}
	if errs := xhttp.Validate(ctx, &cmd); len(errs) > 0 {
		return fmt.Errorf("invalid analyze command: %s", errs[0].Message)
	}

	res, err := h.analyzer.AnalyzeSymbol(ctx, cmd.Symbol, cmd.Timeframe)
	if err != nil {
		return fmt.Errorf("analyze %s (request %s): %w", cmd.Symbol, cmd.RequestID, err)
	}

	h.log.Info("queued analysis done",
		xlogger.String("request_id", cmd.RequestID),
		xlogger.String("symbol", res.Symbol),
		xlogger.String("action", string(res.Opportunity.Action)),
		xlogger.Int("signals", len(res.Signals)),
	)
	return nil
}
