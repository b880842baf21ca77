// Package extract classifies free-text model output with ordered keyword rules.
package extract

import (
	"strings"
	"time"

	"CryptoAssist/internal/domain/models"
)

// Rule maps a set of keywords to a result. It matches when the text contains any keyword.
type Rule[T any] struct {
	Keywords []string
	Result   T
}

// RuleTable is evaluated top to bottom; the first matching rule wins.
type RuleTable[T any] struct {
	Rules   []Rule[T]
	Default T
}

// Classify expects already lower-cased text.
func (t RuleTable[T]) Classify(text string) T {
	for _, r := range t.Rules {
		for _, kw := range r.Keywords {
			if strings.Contains(text, kw) {
				return r.Result
			}
		}
	}
	return t.Default
}

var (
	ActionRules = RuleTable[models.Action]{
		Rules: []Rule[models.Action]{
			{Keywords: []string{"buy", "long"}, Result: models.ActionBuy},
			{Keywords: []string{"sell", "short"}, Result: models.ActionSell},
		},
		Default: models.ActionHold,
	}

	ConfidenceRules = RuleTable[float64]{
		Rules: []Rule[float64]{
			{Keywords: []string{"strong", "confident", "clear"}, Result: 0.8},
			{Keywords: []string{"weak", "uncertain", "mixed"}, Result: 0.4},
		},
		Default: 0.6,
	}

	SentimentRules = RuleTable[models.Sentiment]{
		Rules: []Rule[models.Sentiment]{
			{Keywords: []string{"bullish", "positive", "optimistic", "green"}, Result: models.SentimentBullish},
			{Keywords: []string{"bearish", "negative", "pessimistic", "red"}, Result: models.SentimentBearish},
		},
		Default: models.SentimentNeutral,
	}

	TrendRules = RuleTable[models.Trend]{
		Rules: []Rule[models.Trend]{
			{Keywords: []string{"uptrend", "up trend"}, Result: models.TrendUp},
			{Keywords: []string{"downtrend", "down trend"}, Result: models.TrendDown},
		},
		Default: models.TrendSideways,
	}

	VolumeRules = RuleTable[models.VolumeStatus]{
		Rules: []Rule[models.VolumeStatus]{
			{Keywords: []string{"high volume", "increased volume"}, Result: models.VolumeHigh},
			{Keywords: []string{"low volume", "decreased volume"}, Result: models.VolumeLow},
		},
		Default: models.VolumeNormal,
	}

	NewsRules = RuleTable[models.NewsImpact]{
		Rules: []Rule[models.NewsImpact]{
			{Keywords: []string{"major news", "important", "significant"}, Result: models.NewsHigh},
			{Keywords: []string{"minor", "small impact"}, Result: models.NewsLow},
		},
		Default: models.NewsNeutral,
	}
)

// ExtractOpportunity never fails: unrecognized text yields HOLD at 0.6 with zero price levels.
func ExtractOpportunity(symbol, rawText string, ts time.Time) models.Opportunity {
	text := strings.ToLower(rawText)
	return models.Opportunity{
		Symbol:     symbol,
		RawText:    rawText,
		Action:     ActionRules.Classify(text),
		Confidence: ConfidenceRules.Classify(text),
		Timestamp:  ts,
	}
}

// ExtractOverview classifies a market overview response. An overview is an
// important update when its news impact is high.
func ExtractOverview(rawText string, ts time.Time) models.MarketOverview {
	text := strings.ToLower(rawText)
	news := NewsRules.Classify(text)
	return models.MarketOverview{
		Timestamp:       ts,
		Sentiment:       SentimentRules.Classify(text),
		Trend:           TrendRules.Classify(text),
		VolumeStatus:    VolumeRules.Classify(text),
		NewsImpact:      news,
		RawText:         rawText,
		ImportantUpdate: news == models.NewsHigh,
	}
}
