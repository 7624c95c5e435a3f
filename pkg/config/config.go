package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string          `yaml:"environment" default:"development"`
	Server      ServerConfig    `yaml:"server"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Logging     LoggingConfig   `yaml:"logging"`
	Backend     BackendConfig   `yaml:"backend"`
	Providers   ProvidersConfig `yaml:"providers"`
	Feed        FeedConfig      `yaml:"feed"`
	Resolver    ResolverConfig  `yaml:"resolver"`
	Chart       ChartConfig     `yaml:"chart"`
	Cache       CacheConfig     `yaml:"cache"`
	Storage     StorageConfig   `yaml:"storage"`
	Queue       QueueConfig     `yaml:"queue"`
	Archive     ArchiveConfig   `yaml:"archive"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8090"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LoggingConfig struct {
	Level             string        `yaml:"level" default:"info"`
	Format            string        `yaml:"format" default:"console"`
	Output            string        `yaml:"output" default:"stdout"`
	CollectorTopic    string        `yaml:"collector_topic"`
	CollectorInterval time.Duration `yaml:"collector_interval" default:"30s"`
}

// BackendConfig points at the trading backend that owns /ws/prices and the
// market-data routes.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	WSURL   string        `yaml:"ws_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout" default:"10s"`
}

type RateLimitConfig struct {
	Capacity        float64 `yaml:"capacity" default:"5"`
	RefillPerSecond float64 `yaml:"refill_per_second" default:"1"`
}

type ProvidersConfig struct {
	Timeout   time.Duration   `yaml:"timeout" default:"5s"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Finnhub struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url" default:"https://finnhub.io/api/v1"`
	} `yaml:"finnhub"`
	CoinGecko struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url" default:"https://api.coingecko.com/api/v3"`
	} `yaml:"coingecko"`
	AlphaVantage struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url" default:"https://www.alphavantage.co"`
	} `yaml:"alphavantage"`
	Alpaca struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		BaseURL   string `yaml:"base_url"`
		Feed      string `yaml:"feed" default:"iex"`
	} `yaml:"alpaca"`
	Yahoo struct {
		Disabled bool   `yaml:"disabled"`
		BaseURL  string `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
	} `yaml:"yahoo"`
	Frankfurter struct {
		Disabled bool   `yaml:"disabled"`
		BaseURL  string `yaml:"base_url" default:"https://api.frankfurter.app"`
		Base     string `yaml:"base" default:"USD"`
	} `yaml:"frankfurter"`
}

type FeedConfig struct {
	CryptoInterval time.Duration `yaml:"crypto_interval" default:"10s"`
	StockInterval  time.Duration `yaml:"stock_interval" default:"45s"`
	FXInterval     time.Duration `yaml:"fx_interval" default:"1h"`
	StockSymbols   []string      `yaml:"stock_symbols"`
	// CryptoIDs maps CoinGecko ids to display symbols. Empty means the built-in catalog.
	CryptoIDs  map[string]string `yaml:"crypto_ids"`
	BufferSize int               `yaml:"buffer_size" default:"2000"`
	MaxRPS     int               `yaml:"max_rps" default:"200"`
}

type StaticPrice struct {
	Price  float64 `yaml:"price"`
	Change float64 `yaml:"change"`
}

type ResolverConfig struct {
	LastKnownTTL    time.Duration          `yaml:"last_known_ttl" default:"24h"`
	StaticFallbacks map[string]StaticPrice `yaml:"static_fallbacks"`
}

type ChartConfig struct {
	DefaultRange  time.Duration `yaml:"default_range" default:"4320h"`
	SyntheticSpan time.Duration `yaml:"synthetic_span" default:"720h"`
	CacheTTL      time.Duration `yaml:"cache_ttl" default:"5m"`
	SMAPeriod     int           `yaml:"sma_period" default:"20"`
	RSIPeriod     int           `yaml:"rsi_period" default:"14"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type CacheConfig struct {
	Backend string      `yaml:"backend" default:"memory"` // memory, redis, layered
	Prefix  string      `yaml:"prefix" default:"fluxfeed"`
	MaxSize int         `yaml:"max_size" default:"10000"`
	Redis   RedisConfig `yaml:"redis"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic" default:"fluxfeed.ticks"`
	RequiredAcks int      `yaml:"required_acks" default:"1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"500"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled    bool          `yaml:"enabled"`
		GroupID    string        `yaml:"group_id" default:"fluxfeed-sink"`
		Workers    int           `yaml:"workers" default:"4"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" default:"9000"`
	Database     string        `yaml:"database" default:"fluxfeed"`
	User         string        `yaml:"user" default:"default"`
	Password     string        `yaml:"password"`
	UseHTTP      bool          `yaml:"use_http"`
	AsyncInsert  bool          `yaml:"async_insert"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
	TickTable    string        `yaml:"tick_table" default:"price_ticks"`
	CandleTable  string        `yaml:"candle_table" default:"candles"`
}

type StorageConfig struct {
	Backend    string           `yaml:"backend" default:"none"` // none, kafka, clickhouse
	Kafka      KafkaConfig      `yaml:"kafka"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type QueueConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Name       string `yaml:"name" default:"fluxfeed:jobs"`
	Workers    int    `yaml:"workers" default:"2"`
	MaxRetries int    `yaml:"max_retries" default:"3"`
}

type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir" default:"data/archive"`
	Schedule string `yaml:"schedule" default:"0 */5 * * * *"`
}

// Load reads a YAML file, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv is Load with environment overrides applied before validation.
// The returned Config is the single source of credentials for the process.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set("FINNHUB_API_KEY", &c.Providers.Finnhub.APIKey)
	set("ALPHAVANTAGE_API_KEY", &c.Providers.AlphaVantage.APIKey)
	set("COINGECKO_API_KEY", &c.Providers.CoinGecko.APIKey)
	set("APCA_API_KEY_ID", &c.Providers.Alpaca.APIKey)
	set("APCA_API_SECRET_KEY", &c.Providers.Alpaca.APISecret)
	set("BACKEND_URL", &c.Backend.URL)
	set("BACKEND_TOKEN", &c.Backend.Token)
	set("STORAGE_BACKEND", &c.Storage.Backend)
	set("REDIS_ADDR", &c.Cache.Redis.Addr)

	if v := getenv("STOCK_SYMBOLS"); v != "" {
		c.Feed.StockSymbols = splitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Storage.Kafka.Brokers = splitList(v)
	}
	if v := getenv("CRYPTO_IDS"); v != "" {
		if ids := ParseCryptoIDs(v); len(ids) > 0 {
			c.Feed.CryptoIDs = ids
		}
	}
}

// ParseCryptoIDs reads "id:SYM,id2" lists. A bare id maps to its upper-cased self.
func ParseCryptoIDs(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range splitList(s) {
		id, sym, found := strings.Cut(part, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if !found || strings.TrimSpace(sym) == "" {
			sym = id
		}
		out[id] = strings.ToUpper(strings.TrimSpace(sym))
	}
	return out
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// StreamURL returns the /ws/prices endpoint, derived from Backend.URL when
// ws_url is not set.
func (b BackendConfig) StreamURL() string {
	if b.WSURL != "" {
		return b.WSURL
	}
	if b.URL == "" {
		return ""
	}
	u, err := url.Parse(b.URL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/prices"
	return u.String()
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Backend.URL != "" {
		if _, err := url.ParseRequestURI(c.Backend.URL); err != nil {
			return fmt.Errorf("backend.url is invalid: %w", err)
		}
	}
	if c.Feed.CryptoInterval <= 0 || c.Feed.StockInterval <= 0 || c.Feed.FXInterval <= 0 {
		return fmt.Errorf("feed intervals must be positive")
	}
	if c.Chart.SMAPeriod < 1 || c.Chart.RSIPeriod < 1 {
		return fmt.Errorf("chart.sma_period and chart.rsi_period must be >= 1")
	}
	if (c.Providers.Alpaca.APIKey == "") != (c.Providers.Alpaca.APISecret == "") {
		return fmt.Errorf("providers.alpaca requires both api_key and api_secret")
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis", "layered":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for cache.backend '%s'", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("cache.backend must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Backend)
	}

	switch c.Storage.Backend {
	case "none":
	case "kafka":
		if len(c.Storage.Kafka.Brokers) == 0 {
			return fmt.Errorf("storage.kafka.brokers is required for storage.backend 'kafka'")
		}
	case "clickhouse":
		if c.Storage.ClickHouse.Host == "" {
			return fmt.Errorf("storage.clickhouse.host is required for storage.backend 'clickhouse'")
		}
	default:
		return fmt.Errorf("storage.backend must be 'none', 'kafka' or 'clickhouse', got '%s'", c.Storage.Backend)
	}

	if c.Storage.Kafka.Consumer.Enabled && c.Storage.ClickHouse.Host == "" {
		return fmt.Errorf("storage.kafka.consumer requires storage.clickhouse.host as its sink")
	}
	if c.Queue.Enabled && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("queue requires cache.redis.addr")
	}
	if c.Logging.CollectorTopic != "" && len(c.Storage.Kafka.Brokers) == 0 {
		return fmt.Errorf("logging.collector_topic requires storage.kafka.brokers")
	}
	return nil
}

// CandleStoreEnabled reports whether a ClickHouse connection is configured.
func (c *Config) CandleStoreEnabled() bool {
	return c.Storage.ClickHouse.Host != ""
}
