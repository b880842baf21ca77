package notify

import (
	"fmt"
	"strings"

	"CryptoAssist/internal/domain/models"
)

// FormatSignals renders a signal batch and its overview as plain text.
func FormatSignals(signals []models.TradingSignal, overview *models.MarketOverview) string {
	var b strings.Builder

	if overview != nil {
		fmt.Fprintf(&b, "Market: %s, %s, volume %s", overview.Sentiment, overview.Trend, overview.VolumeStatus)
		if overview.ImportantUpdate {
			b.WriteString(" [IMPORTANT NEWS]")
		}
		b.WriteString("\n")
	}

	if len(signals) == 0 {
		b.WriteString("No new signals.")
		return b.String()
	}

	fmt.Fprintf(&b, "%d new signal(s):\n", len(signals))
	for _, s := range signals {
		fmt.Fprintf(&b, "%s %s @ %s | SL %s | TP %s | conf %.0f%% | risk %.2f | size $%.2f | %s\n",
			s.Action, s.Symbol,
			price(s.EntryPrice), price(s.StopLoss), price(s.TakeProfit),
			s.Confidence*100, s.RiskScore, s.PositionSizeUSD, s.Timeframe,
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatMessage prefixes urgent messages.
func FormatMessage(msg models.Message) string {
	title := msg.Title
	if msg.Urgent {
		title = "URGENT: " + title
	}
	if title == "" {
		return msg.Body
	}
	return title + "\n" + msg.Body
}

func price(v float64) string {
	switch {
	case v >= 1000:
		return fmt.Sprintf("%.2f", v)
	case v >= 1:
		return fmt.Sprintf("%.4f", v)
	default:
		return fmt.Sprintf("%.8f", v)
	}
}
