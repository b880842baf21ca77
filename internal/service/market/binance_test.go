package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"CryptoAssist/pkg/config"
)

func TestBinancePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if s := r.URL.Query().Get("symbol"); s != "BTCUSDT" {
			t.Errorf("symbol = %s", s)
		}
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"64250.12000000"}`))
	}))
	defer srv.Close()

	b := NewBinance(config.MarketConfig{BaseURL: srv.URL, Timeout: time.Second})
	p, err := b.Price(context.Background(), " btcusdt ")
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if p != 64250.12 {
		t.Errorf("price = %v", p)
	}
}

func TestBinancePriceErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"bad status", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`},
		{"unparsable", http.StatusOK, `{"symbol":"X","price":"abc"}`},
		{"zero", http.StatusOK, `{"symbol":"X","price":"0.000"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			b := NewBinance(config.MarketConfig{BaseURL: srv.URL, Timeout: time.Second})
			if _, err := b.Price(context.Background(), "XUSDT"); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := NewBinance(config.MarketConfig{BaseURL: "http://localhost"}).Price(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty symbol")
	}
}
