package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrStartupConfig marks configuration that makes the process unable to start.
var ErrStartupConfig = errors.New("startup configuration invalid")

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Mode        string `yaml:"mode" default:"full" validate:"oneof=full agent api"`
	SymbolsFile string `yaml:"symbols_file" default:"config/symbols.yaml"`

	Log           LogConfig           `yaml:"log"`
	Server        ServerConfig        `yaml:"server"`
	LLM           LLMConfig           `yaml:"llm"`
	Market        MarketConfig        `yaml:"market"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Trading       TradingConfig       `yaml:"trading"`
	Breaker       BreakerConfig       `yaml:"breaker"`
	Signals       SignalsConfig       `yaml:"signals"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Digest        DigestConfig        `yaml:"digest"`

	// Symbols is loaded from SymbolsFile, not from the main document.
	Symbols *SymbolCatalog `yaml:"-"`
}

type LogConfig struct {
	Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format    string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output    string `yaml:"output" default:"stdout"`
	Collector struct {
		Enabled   bool          `yaml:"enabled"`
		Interval  time.Duration `yaml:"interval" default:"30s"`
		Threshold int           `yaml:"threshold" default:"100"`
	} `yaml:"collector"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8000" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"90s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	CORS            bool          `yaml:"cors" default:"true"`
}

type LLMConfig struct {
	BaseURL     string        `yaml:"base_url" default:"https://api.groq.com/openai/v1" validate:"required,url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model" default:"llama-3.1-70b-versatile" validate:"required"`
	Temperature float64       `yaml:"temperature" default:"0.3" validate:"gte=0,lte=2"`
	MaxTokens   int           `yaml:"max_tokens" default:"2000" validate:"gte=1"`
	CallTimeout time.Duration `yaml:"call_timeout" default:"60s"`
	CacheTTL    time.Duration `yaml:"cache_ttl" default:"2m"`
}

type MarketConfig struct {
	BaseURL string        `yaml:"base_url" default:"https://api.binance.com" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" default:"10s"`
}

type AnalysisConfig struct {
	ScanInterval  time.Duration `yaml:"scan_interval" default:"300s"`
	SymbolDelay   time.Duration `yaml:"symbol_delay" default:"2s"`
	MaxSymbols    int           `yaml:"max_symbols" default:"10" validate:"gte=1"`
	MinConfidence float64       `yaml:"min_confidence" default:"0.6" validate:"gte=0.6,lte=1"`
}

type TradingConfig struct {
	AutoTrading      bool    `yaml:"auto_trading"`
	AccountBalance   float64 `yaml:"account_balance" default:"10000" validate:"gt=0"`
	RiskPerTrade     float64 `yaml:"risk_per_trade" default:"0.02" validate:"gt=0,lte=1"`
	MaxPositionUSD   float64 `yaml:"max_position_usd" default:"2000" validate:"gt=0"`
	MaxRiskScore     float64 `yaml:"max_risk_score" default:"0.7" validate:"gte=0,lte=1"`
	MinRiskReward    float64 `yaml:"min_risk_reward" default:"1.5" validate:"gte=0"`
	MaxOpenSignals   int     `yaml:"max_open_signals" default:"20" validate:"gte=1"`
	StopLossPct      float64 `yaml:"stop_loss_pct" default:"0.02" validate:"gt=0,lt=1"`
	TakeProfitPct    float64 `yaml:"take_profit_pct" default:"0.04" validate:"gt=0"`
	DefaultTimeframe string  `yaml:"default_timeframe" default:"1h"`
	// FeeRate is charged on simulated fills when auto trading is enabled.
	FeeRate          float64 `yaml:"fee_rate" default:"0.001" validate:"gte=0,lt=1"`
}

type BreakerConfig struct {
	BaseBackoff      time.Duration `yaml:"base_backoff" default:"60s"`
	MaxBackoff       time.Duration `yaml:"max_backoff" default:"15m"`
	FailureThreshold int           `yaml:"failure_threshold" default:"5" validate:"gte=1"`
	OpenTimeout      time.Duration `yaml:"open_timeout" default:"30m"`
}

type SignalsConfig struct {
	Capacity  int           `yaml:"capacity" default:"500" validate:"gte=1"`
	Retention time.Duration `yaml:"retention" default:"24h"`
}

type NotificationsConfig struct {
	Discord struct {
		Enabled    bool   `yaml:"enabled"`
		WebhookURL string `yaml:"webhook_url"`
		Username   string `yaml:"username" default:"CryptoAssist"`
	} `yaml:"discord"`
	Telegram struct {
		Enabled    bool   `yaml:"enabled"`
		BotToken   string `yaml:"bot_token"`
		ChatID     string `yaml:"chat_id"`
		MaxRetries int    `yaml:"max_retries" default:"3"`
	} `yaml:"telegram"`
	WebSocket struct {
		Enabled bool `yaml:"enabled" default:"true"`
	} `yaml:"websocket"`
	Timeout time.Duration `yaml:"timeout" default:"10s"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
	SignalTopic  string   `yaml:"signal_topic" default:"cryptoassist.signals"`
	RequestTopic string   `yaml:"request_topic" default:"cryptoassist.analyze_requests"`
	LogTopic     string   `yaml:"log_topic" default:"cryptoassist.logs"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"100ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"cryptoassist"`
		Workers    int           `yaml:"workers" default:"1"`
		BufferSize int           `yaml:"buffer_size" default:"16"`
		RetryMax   int           `yaml:"retry_max" default:"2"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic"`
	} `yaml:"consumer"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"cryptoassist"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer" default:"cryptoassist"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" default:"true"`
	RPS     float64 `yaml:"rps" default:"5"`
	Burst   int     `yaml:"burst" default:"10"`
}

type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron" default:"0 0 9 * * *"`
}

var validate = validator.New()

// Default returns a configuration populated only from struct tag defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads a YAML configuration file on top of the defaults and loads the
// symbol catalog it points to.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %v", ErrStartupConfig, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", ErrStartupConfig, err)
	}

	if c.SymbolsFile != "" {
		cat, err := LoadSymbols(c.SymbolsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStartupConfig, err)
		}
		c.Symbols = cat
	}

	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, applies environment
// overrides, then the given overrides (command-line flags), and validates the
// result.
func LoadWithEnv(path string, overrides ...func(*Config)) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.ApplyEnv()
	for _, o := range overrides {
		o(c)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides selected fields from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("AUTO_TRADING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Trading.AutoTrading = b
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
		c.Redis.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Notifications.Discord.WebhookURL = v
		c.Notifications.Discord.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if c.Notifications.Telegram.BotToken != "" && c.Notifications.Telegram.ChatID != "" && os.Getenv("TELEGRAM_BOT_TOKEN") != "" {
		c.Notifications.Telegram.Enabled = true
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate checks struct tags and cross-field rules. Every failure wraps ErrStartupConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrStartupConfig, err)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: llm api key is required (set GROQ_API_KEY)", ErrStartupConfig)
	}
	if c.Analysis.ScanInterval <= 0 || c.Analysis.SymbolDelay < 0 {
		return fmt.Errorf("%w: analysis intervals must be positive", ErrStartupConfig)
	}
	if c.LLM.CallTimeout <= 0 {
		return fmt.Errorf("%w: llm.call_timeout must be positive", ErrStartupConfig)
	}
	if c.Breaker.BaseBackoff <= 0 || c.Breaker.MaxBackoff < c.Breaker.BaseBackoff {
		return fmt.Errorf("%w: breaker.max_backoff must be >= breaker.base_backoff > 0", ErrStartupConfig)
	}
	if c.Signals.Retention <= 0 {
		return fmt.Errorf("%w: signals.retention must be positive", ErrStartupConfig)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: kafka.brokers cannot be empty when kafka is enabled", ErrStartupConfig)
	}
	if c.Notifications.Discord.Enabled && c.Notifications.Discord.WebhookURL == "" {
		return fmt.Errorf("%w: notifications.discord.webhook_url is required", ErrStartupConfig)
	}
	if c.Notifications.Telegram.Enabled && (c.Notifications.Telegram.BotToken == "" || c.Notifications.Telegram.ChatID == "") {
		return fmt.Errorf("%w: telegram bot_token and chat_id are required", ErrStartupConfig)
	}
	if c.Mode != "api" && (c.Symbols == nil || len(c.Symbols.Entries) == 0) {
		return fmt.Errorf("%w: symbol catalog is empty", ErrStartupConfig)
	}
	return nil
}
