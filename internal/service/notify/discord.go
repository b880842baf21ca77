package notify

import (
	"context"
	"fmt"

	"CryptoAssist/internal/domain/models"
	xhttp "CryptoAssist/pkg/http"
)

// discordLimit is the maximum content length of a webhook message.
const discordLimit = 2000

type discordPayload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

// Discord posts to a channel webhook.
type Discord struct {
	webhookURL string
	username   string
	http       *xhttp.Client
}

func NewDiscord(webhookURL, username string, opts ...xhttp.ClientOption) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		username:   username,
		http:       xhttp.NewClient(opts...),
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, signals []models.TradingSignal, overview *models.MarketOverview) error {
	return d.post(ctx, FormatSignals(signals, overview))
}

func (d *Discord) SendMessage(ctx context.Context, msg models.Message) error {
	text := FormatMessage(msg)
	if msg.Urgent {
		text = "@here " + text
	}
	return d.post(ctx, text)
}

func (d *Discord) post(ctx context.Context, content string) error {
	if len(content) > discordLimit {
		content = content[:discordLimit-3] + "..."
	}
	err := d.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    d.webhookURL,
		Body:   discordPayload{Content: content, Username: d.username},
	}, nil)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}
