package market

import (
	"context"
	"fmt"
	"strings"

	"CryptoAssist/pkg/config"
	xhttp "CryptoAssist/pkg/http"

	"github.com/shopspring/decimal"
)

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Binance reads last traded prices from the public Binance spot REST API.
type Binance struct {
	baseURL string
	http    *xhttp.Client
}

func NewBinance(cfg config.MarketConfig, opts ...xhttp.ClientOption) *Binance {
	base := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}
	return &Binance{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    xhttp.NewClient(append(base, opts...)...),
	}
}

// Price returns the last price of symbol.
func (b *Binance) Price(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, fmt.Errorf("binance price: empty symbol")
	}

	var tp tickerPrice
	err := b.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.baseURL + "/api/v3/ticker/price",
		QueryParams: map[string][]string{"symbol": {symbol}},
	}, &tp)
	if err != nil {
		return 0, fmt.Errorf("binance price %s: %w", symbol, err)
	}

	d, err := decimal.NewFromString(tp.Price)
	if err != nil {
		return 0, fmt.Errorf("binance price %s: parse %q: %w", symbol, tp.Price, err)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("binance price %s: non-positive price %s", symbol, d)
	}
	return d.InexactFloat64(), nil
}
