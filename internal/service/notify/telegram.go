package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"CryptoAssist/internal/domain/models"
	xhttp "CryptoAssist/pkg/http"
	"CryptoAssist/pkg/logger"
)

const telegramAPI = "https://api.telegram.org"

// Telegram sends messages through the Bot API.
type Telegram struct {
	botToken   string
	chatID     string
	maxRetries int
	apiBase    string
	backoff    time.Duration
	http       *xhttp.Client
	log        *logger.Logger
}

func NewTelegram(botToken, chatID string, maxRetries int, log *logger.Logger, opts ...xhttp.ClientOption) *Telegram {
	if log == nil {
		log = logger.Nop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Telegram{
		botToken:   botToken,
		chatID:     chatID,
		maxRetries: maxRetries,
		apiBase:    telegramAPI,
		backoff:    time.Second,
		http:       xhttp.NewClient(opts...),
		log:        log.With(logger.String("component", "telegram")),
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, signals []models.TradingSignal, overview *models.MarketOverview) error {
	return t.SendWithRetry(ctx, FormatSignals(signals, overview))
}

func (t *Telegram) SendMessage(ctx context.Context, msg models.Message) error {
	return t.SendWithRetry(ctx, FormatMessage(msg))
}

func (t *Telegram) send(ctx context.Context, text string) error {
	return t.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.apiBase, "/"), t.botToken),
		Body: map[string]string{
			"chat_id": t.chatID,
			"text":    text,
		},
	}, nil)
}

// SendWithRetry retries temporary failures with exponential backoff. A
// Retry-After from the API takes precedence over the computed delay.
func (t *Telegram) SendWithRetry(ctx context.Context, text string) error {
	var lastErr error
	for i := 0; i <= t.maxRetries; i++ {
		err := t.send(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err

		var se *xhttp.StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return fmt.Errorf("telegram: %w", err)
		}
		if i == t.maxRetries {
			break
		}

		wait := t.backoff * time.Duration(1<<uint(i))
		if se != nil && se.RetryAfter > 0 {
			wait = se.RetryAfter
		}
		t.log.Warn("telegram send failed, retrying",
			logger.Int("attempt", i+1),
			logger.Int("max_attempts", t.maxRetries+1),
			logger.Duration("backoff_ms", wait),
			logger.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("telegram: all %d attempts failed: %w", t.maxRetries+1, lastErr)
}
