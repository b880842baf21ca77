package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message is one record of a batch. Value is sent as-is when it is []byte or
// string and JSON-encoded otherwise.
type Message struct {
	Key     []byte
	Value   interface{}
	Headers []kafka.Header
}

// Producer is a synchronous kafka.Writer shared by the signal stream and the
// log collector. WriteMessages returns once the batch is acknowledged.
type Producer struct {
	writer *kafka.Writer
	comp   string
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: brokers are required")
	}

	var bal kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}

	producerMetricsOnce.Do(registerProducerMetrics)
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     bal,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  parseCompression(cfg.Compression),
			MaxAttempts:  cfg.MaxAttempts,
			WriteTimeout: cfg.WriteTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			BatchSize:    cfg.BatchSize,
			BatchBytes:   int64(cfg.BatchBytes),
			BatchTimeout: cfg.BatchTimeout,
		},
		comp: cfg.Compression,
	}, nil
}

func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

// PublishMessage publishes an unkeyed payload; it satisfies logger.Publisher.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, nil, payload)
}

// PublishBatch writes messages in one call. Nothing is sent if any value
// fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	start := time.Now()
	now := start.UTC()
	out := make([]kafka.Message, len(messages))
	var size int64
	for i, m := range messages {
		v, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		out[i] = kafka.Message{Topic: topic, Key: m.Key, Value: v, Headers: m.Headers, Time: now}
		size += int64(len(v))
	}

	err := p.writer.WriteMessages(ctx, out...)
	observePublish(topic, p.comp, size, len(out), time.Since(start), err)
	return err
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("kafka: marshal value: %w", err)
	}
	return b, nil
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

var (
	producerMetricsOnce sync.Once
	producerMessages    *prometheus.CounterVec
	producerBytes       *prometheus.CounterVec
	producerLatency     *prometheus.HistogramVec
)

func registerProducerMetrics() {
	producerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cryptoassist_kafka_producer_messages_total",
		Help: "Messages published to Kafka.",
	}, []string{"topic", "compression", "result"})
	producerBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cryptoassist_kafka_producer_bytes_total",
		Help: "Payload bytes published to Kafka.",
	}, []string{"topic", "compression"})
	producerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cryptoassist_kafka_producer_publish_seconds",
		Help:    "Latency of a synchronous batch write.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
}

func observePublish(topic, comp string, size int64, count int, dur time.Duration, err error) {
	if producerMessages == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMessages.WithLabelValues(topic, comp, result).Add(float64(count))
	producerBytes.WithLabelValues(topic, comp).Add(float64(size))
	producerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
