package models

// Requests for the assistant HTTP endpoints. Defined in domain for consistency and reuse.

type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
	Context string `json:"context" validate:"max=4000"`
}

type AnalyzeRequest struct {
	Symbol    string `json:"symbol" validate:"required,symbol"`
	Timeframe string `json:"timeframe" default:"1h" validate:"oneof=5m 15m 1h 4h 1d"`
}

type ActiveSignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type NotificationRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
	Title   string `json:"title" default:"CryptoAssist"`
	Urgent  bool   `json:"urgent"`
}

// AnalyzeCommand is the payload of a queued manual analysis request.
type AnalyzeCommand struct {
	Symbol    string `json:"symbol" validate:"required,symbol"`
	Timeframe string `json:"timeframe" validate:"omitempty,oneof=5m 15m 1h 4h 1d"`
	RequestID string `json:"request_id"`
}

type ChatResponse struct {
	Response string `json:"response"`
	Context  string `json:"context,omitempty"`
}

type AnalyzeResponse struct {
	Symbol      string          `json:"symbol"`
	Timeframe   string          `json:"timeframe"`
	Opportunity Opportunity     `json:"opportunity"`
	Signals     []TradingSignal `json:"signals"`
}
