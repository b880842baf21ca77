package usecase

import (
	"fmt"
	"strings"
)

const overviewPrompt = `Analyze the overall state of the crypto market. I want to know:
1. General sentiment (fear/greed index)
2. Total trading volume
3. Bitcoin dominance
4. The general trend across multiple timeframes
5. Important events in the news

Focus on BTCUSDT, ETHUSDT and EGLDUSDT as the main symbols.`

func symbolPrompt(symbol string) string {
	return fmt.Sprintf(`Analyze %s for trading opportunities:
1. Technical analysis on the 5m, 15m, 1h and 4h timeframes
2. Indicators: RSI, MACD, Bollinger Bands, EMA
3. Support and resistance levels
4. Pattern recognition
5. Volume analysis
6. Momentum and trend strength

Give a clear evaluation: BUY/SELL/HOLD with a confidence score.`, symbol)
}

func manualSymbolPrompt(symbol, timeframe string) string {
	return fmt.Sprintf(`Analyze %s on the %s timeframe:
1. Complete technical analysis
2. Indicators: RSI, MACD, Bollinger Bands
3. Support and resistance
4. Volume and momentum
5. Trading recommendation with exact levels

I want a detailed analysis with concrete entry, stop loss and take profit levels.`, symbol, timeframe)
}

// ChatQuery appends optional caller-supplied context to a free-form question.
func ChatQuery(query, extra string) string {
	query = strings.TrimSpace(query)
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return query
	}
	return query + "\n\nAdditional context:\n" + extra
}
