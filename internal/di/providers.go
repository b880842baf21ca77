package di

import (
	"fmt"
	"time"

	"CryptoAssist/internal/domain/models"
	"CryptoAssist/internal/domain/repository"
	dservice "CryptoAssist/internal/domain/service"
	"CryptoAssist/internal/handler/api"
	"CryptoAssist/internal/handler/queue"
	"CryptoAssist/internal/handler/ws"
	internalrepo "CryptoAssist/internal/repository"
	"CryptoAssist/internal/service/llm"
	"CryptoAssist/internal/service/market"
	"CryptoAssist/internal/service/notify"
	"CryptoAssist/internal/services/execution"
	"CryptoAssist/internal/services/portfolio"
	"CryptoAssist/internal/services/risk"
	"CryptoAssist/internal/services/signals"
	"CryptoAssist/internal/usecase"
	"CryptoAssist/pkg/cache"
	"CryptoAssist/pkg/config"
	xhttp "CryptoAssist/pkg/http"
	"CryptoAssist/pkg/http/middleware"
	pkgkafka "CryptoAssist/pkg/kafka"
	"CryptoAssist/pkg/logger"
	"CryptoAssist/pkg/metrics"
	"CryptoAssist/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer. It returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideLogger creates the application logger. With the collector enabled
// and Kafka available, aggregated warn/error lines are shipped to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.Threshold,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideSignalPublisher creates the Kafka signal stream, or nil without a producer.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalTopic)
}

// ProvideCache creates the answer cache: memory only, or memory in front of
// Redis when Redis is enabled.
func ProvideCache(cfg *config.Config, l *logger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(1000),
			cache.WithMemoryCleanup(time.Minute),
		), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache connected", logger.String("host", cfg.Redis.Host), logger.Int("port", cfg.Redis.Port))
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(1000),
		cache.WithLayeredMemoryTTL(cfg.LLM.CacheTTL),
	), nil
}

// ProvideReasoningBackend creates the LLM client.
func ProvideReasoningBackend(cfg *config.Config, l *logger.Logger) *llm.Client {
	return llm.New(cfg.LLM, l)
}

// ProvidePriceSource creates the Binance price client.
func ProvidePriceSource(cfg *config.Config) *market.Binance {
	return market.NewBinance(cfg.Market)
}

// ProvideSignalGenerator creates the signal generator.
func ProvideSignalGenerator(prices *market.Binance, cfg *config.Config) *signals.Generator {
	return signals.NewGenerator(prices, signals.Config{
		StopLossPct:   cfg.Trading.StopLossPct,
		TakeProfitPct: cfg.Trading.TakeProfitPct,
		Timeframe:     cfg.Trading.DefaultTimeframe,
	})
}

// ProvideRiskManager creates the risk evaluator.
func ProvideRiskManager(cfg *config.Config) *risk.Manager {
	return risk.NewManager(risk.Config{
		AccountBalance: cfg.Trading.AccountBalance,
		RiskPerTrade:   cfg.Trading.RiskPerTrade,
		MaxPositionUSD: cfg.Trading.MaxPositionUSD,
		MaxRiskScore:   cfg.Trading.MaxRiskScore,
		MinRiskReward:  cfg.Trading.MinRiskReward,
		MaxOpenSignals: cfg.Trading.MaxOpenSignals,
	})
}

// ProvideExecutor creates the paper executor used when auto trading is on.
func ProvideExecutor(cfg *config.Config, l *logger.Logger) *execution.PaperExecutor {
	return execution.NewPaperExecutor(cfg.Trading.FeeRate, l)
}

// ProvidePortfolioTracker creates the exposure tracker.
func ProvidePortfolioTracker(cfg *config.Config) *portfolio.Tracker {
	return portfolio.NewTracker(cfg.Trading.AccountBalance)
}

// ProvideHub creates the websocket signal feed, or nil when disabled.
func ProvideHub(cfg *config.Config, l *logger.Logger) *ws.Hub {
	if !cfg.Notifications.WebSocket.Enabled {
		return nil
	}
	return ws.NewHub(l)
}

// ProvideNotifier fans notifications out to every configured channel.
func ProvideNotifier(cfg *config.Config, l *logger.Logger, hub *ws.Hub, pub repository.SignalPublisher) *notify.Multi {
	m := notify.NewMulti(l)
	n := cfg.Notifications
	if n.Discord.Enabled {
		m.Add(notify.NewDiscord(n.Discord.WebhookURL, n.Discord.Username, xhttp.WithTimeout(n.Timeout)))
	}
	if n.Telegram.Enabled {
		m.Add(notify.NewTelegram(n.Telegram.BotToken, n.Telegram.ChatID, n.Telegram.MaxRetries, l, xhttp.WithTimeout(n.Timeout)))
	}
	if hub != nil {
		m.Add(hub)
	}
	if pub != nil {
		m.Add(pub)
	}
	return m
}

// ProvideOrchestrator assembles the session orchestrator.
func ProvideOrchestrator(
	cfg *config.Config,
	l *logger.Logger,
	rec *metrics.Recorder,
	backend *llm.Client,
	gen *signals.Generator,
	rm *risk.Manager,
	exec *execution.PaperExecutor,
	notifier *notify.Multi,
	tracker *portfolio.Tracker,
	c cache.Service,
) *usecase.Orchestrator {
	var n dservice.Notifier
	if notifier.Len() > 0 {
		n = notifier
	}

	var entries []models.SymbolEntry
	if cfg.Symbols != nil {
		entries = cfg.Symbols.Entries
	}

	o := usecase.NewOrchestrator(usecase.OrchestratorConfig{
		ScanInterval:     cfg.Analysis.ScanInterval,
		SymbolDelay:      cfg.Analysis.SymbolDelay,
		CallTimeout:      cfg.LLM.CallTimeout,
		MaxSymbols:       cfg.Analysis.MaxSymbols,
		MinConfidence:    cfg.Analysis.MinConfidence,
		AutoTrading:      cfg.Trading.AutoTrading,
		DefaultTimeframe: cfg.Trading.DefaultTimeframe,
		Breaker: usecase.BreakerConfig{
			BaseBackoff:      cfg.Breaker.BaseBackoff,
			MaxBackoff:       cfg.Breaker.MaxBackoff,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			OpenTimeout:      cfg.Breaker.OpenTimeout,
		},
		SignalCapacity:  cfg.Signals.Capacity,
		SignalRetention: cfg.Signals.Retention,
		CacheTTL:        cfg.LLM.CacheTTL,
	}, entries, usecase.OrchestratorDeps{
		Backend:   backend,
		Generator: gen,
		Risk:      rm,
		Executor:  exec,
		Notifier:  n,
		Portfolio: tracker,
		Cache:     c,
		Metrics:   rec,
		Logger:    l,
	})

	rm.SetOpenSignalCounter(func() int { return o.Status().ActiveSignalCount })
	return o
}

// ProvideAnalyzeHandler consumes queued manual analysis requests.
func ProvideAnalyzeHandler(cfg *config.Config, o *usecase.Orchestrator, l *logger.Logger) *queue.AnalyzeHandler {
	return queue.NewAnalyzeHandler(cfg.Kafka.RequestTopic, o, l)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideAssistantHandler creates the HTTP API handler.
func ProvideAssistantHandler(
	cfg *config.Config,
	l *logger.Logger,
	o *usecase.Orchestrator,
	notifier *notify.Multi,
	producer *pkgkafka.Producer,
	hub *ws.Hub,
) *api.AssistantHandler {
	opts := api.Options{
		JWTSecret: cfg.Auth.JWTSecret,
		JWTIssuer: cfg.Auth.Issuer,
		Components: map[string]bool{
			"reasoning_backend": true,
			"kafka":             producer != nil,
			"redis":             cfg.Redis.Enabled,
			"websocket":         hub != nil,
			"discord":           cfg.Notifications.Discord.Enabled,
			"telegram":          cfg.Notifications.Telegram.Enabled,
			"auto_trading":      cfg.Trading.AutoTrading,
		},
	}
	if cfg.RateLimit.Enabled {
		opts.RateLimiter = middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	return api.NewAssistantHandler(l, o, notifier, opts)
}

// ProvideDigestJob creates the daily digest. The cache doubles as the
// cross-replica lock.
func ProvideDigestJob(o *usecase.Orchestrator, notifier *notify.Multi, c cache.Service, l *logger.Logger) *usecase.DigestJob {
	return usecase.NewDigestJob(o, notifier, c, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	o *usecase.Orchestrator,
	handler *api.AssistantHandler,
	hub *ws.Hub,
	consumer *pkgkafka.Consumer,
	ah *queue.AnalyzeHandler,
	digest *usecase.DigestJob,
	producer *pkgkafka.Producer,
	c cache.Service,
) *server.App {
	comps := server.Components{
		Logger:         l,
		Session:        o,
		Handler:        handler,
		AnalyzeHandler: ah,
		Digest:         digest,
		Producer:       producer,
		Consumer:       consumer,
		Cache:          c,
	}
	if hub != nil {
		comps.Hub = hub
	}
	return server.New(cfg, comps)
}
