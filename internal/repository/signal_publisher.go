package repository

import (
	"context"
	"fmt"
	"time"

	"CryptoAssist/internal/domain/models"
	"CryptoAssist/internal/domain/repository"
	pkgkafka "CryptoAssist/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

// batchWriter is the part of the Kafka producer used here.
type batchWriter interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// SignalEvent is the record written for every approved signal.
type SignalEvent struct {
	Signal      models.TradingSignal `json:"signal"`
	Sentiment   models.Sentiment     `json:"sentiment,omitempty"`
	Trend       models.Trend         `json:"trend,omitempty"`
	Important   bool                 `json:"important_update"`
	PublishedAt time.Time            `json:"published_at"`
}

// KafkaSignalPublisher streams approved signals to a topic keyed by symbol,
// so all signals of one instrument land on the same partition.
type KafkaSignalPublisher struct {
	w     batchWriter
	topic string
	now   func() time.Time
}

// NewKafkaSignalPublisher creates a publisher writing to topic.
func NewKafkaSignalPublisher(w batchWriter, topic string) repository.SignalPublisher {
	return newKafkaSignalPublisher(w, topic)
}

func newKafkaSignalPublisher(w batchWriter, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{w: w, topic: topic, now: time.Now}
}

func (p *KafkaSignalPublisher) Name() string { return "kafka" }

func (p *KafkaSignalPublisher) PublishSignals(ctx context.Context, signals []models.TradingSignal, overview *models.MarketOverview) error {
	if len(signals) == 0 {
		return nil
	}

	now := p.now()
	msgs := make([]pkgkafka.Message, 0, len(signals))
	for _, s := range signals {
		ev := SignalEvent{Signal: s, PublishedAt: now}
		if overview != nil {
			ev.Sentiment = overview.Sentiment
			ev.Trend = overview.Trend
			ev.Important = overview.ImportantUpdate
		}
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(s.Symbol),
			Value: ev,
			Headers: []kafka.Header{
				{Key: "action", Value: []byte(s.Action)},
				{Key: "signal_id", Value: []byte(s.ID)},
			},
		})
	}

	if err := p.w.PublishBatch(ctx, p.topic, msgs); err != nil {
		return fmt.Errorf("publish %d signals to %s: %w", len(msgs), p.topic, err)
	}
	return nil
}

// Send lets the publisher act as a notification channel.
func (p *KafkaSignalPublisher) Send(ctx context.Context, signals []models.TradingSignal, overview *models.MarketOverview) error {
	return p.PublishSignals(ctx, signals, overview)
}

func (p *KafkaSignalPublisher) Close() error {
	return p.w.Close()
}
