package models

import "time"

type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

type Trend string

const (
	TrendUp       Trend = "uptrend"
	TrendDown     Trend = "downtrend"
	TrendSideways Trend = "sideways"
)

type VolumeStatus string

const (
	VolumeHigh   VolumeStatus = "high"
	VolumeNormal VolumeStatus = "normal"
	VolumeLow    VolumeStatus = "low"
)

type NewsImpact string

const (
	NewsHigh    NewsImpact = "high"
	NewsNeutral NewsImpact = "neutral"
	NewsLow     NewsImpact = "low"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// MarketOverview is built once per iteration and never mutated afterwards.
type MarketOverview struct {
	Timestamp       time.Time    `json:"timestamp"`
	Sentiment       Sentiment    `json:"sentiment"`
	Trend           Trend        `json:"trend"`
	VolumeStatus    VolumeStatus `json:"volume_status"`
	NewsImpact      NewsImpact   `json:"news_impact"`
	RawText         string       `json:"raw_text"`
	ImportantUpdate bool         `json:"important_update"`
}

type PriceLevels struct {
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// Opportunity is the structured reading of one per-symbol analysis.
type Opportunity struct {
	Symbol      string      `json:"symbol"`
	RawText     string      `json:"raw_text"`
	Action      Action      `json:"action"`
	Confidence  float64     `json:"confidence"`
	PriceLevels PriceLevels `json:"price_levels"`
	Timestamp   time.Time   `json:"timestamp"`
}

// TradingSignal is an approved, sized recommendation. Immutable once stored.
type TradingSignal struct {
	ID              string    `json:"id"`
	Symbol          string    `json:"symbol"`
	Action          Action    `json:"action"`
	Confidence      float64   `json:"confidence"`
	EntryPrice      float64   `json:"entry_price"`
	StopLoss        float64   `json:"stop_loss"`
	TakeProfit      float64   `json:"take_profit"`
	Timeframe       string    `json:"timeframe"`
	Reasoning       string    `json:"reasoning"`
	Timestamp       time.Time `json:"timestamp"`
	RiskScore       float64   `json:"risk_score"`
	PositionSizeUSD float64   `json:"position_size_usd"`
}

type RiskAssessment struct {
	Approved  bool    `json:"approved"`
	RiskScore float64 `json:"risk_score"`
	Reason    string  `json:"reason"`
}

type SymbolExposure struct {
	Signals     int     `json:"signals"`
	ExposureUSD float64 `json:"exposure_usd"`
	NetSide     Action  `json:"net_side"`
}

type PortfolioSummary struct {
	TotalValueUSD   float64                   `json:"total_value_usd"`
	OpenExposureUSD float64                   `json:"open_exposure_usd"`
	OpenSignals     int                       `json:"open_signals"`
	BySymbol        map[string]SymbolExposure `json:"by_symbol"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

// Message is a free-form notification (manual sends and digests).
type Message struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Urgent bool   `json:"urgent"`
}
