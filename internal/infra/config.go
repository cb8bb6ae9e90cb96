package infra

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"quote_stream/internal/domain"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. QS_SERVER_TCP_ADDR.
const EnvPrefix = "QS_"

// ServerConfig covers the two listening sockets and the control plane.
type ServerConfig struct {
	TCPAddr         string        `yaml:"tcp_addr" env:"TCP_ADDR"`
	UDPAddr         string        `yaml:"udp_addr" env:"UDP_ADDR"`
	TickersFile     string        `yaml:"tickers_file" env:"TICKERS_FILE"`
	AcceptIdle      time.Duration `yaml:"accept_idle" env:"ACCEPT_IDLE"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	MaxRequestBytes int           `yaml:"max_request_bytes" env:"MAX_REQUEST_BYTES"`
}

// QuotesConfig tunes the generation loop.
type QuotesConfig struct {
	Interval      time.Duration   `yaml:"interval" env:"INTERVAL"`
	DefaultPrice  decimal.Decimal `yaml:"default_price" env:"DEFAULT_PRICE"`
	RatioMin      decimal.Decimal `yaml:"ratio_min" env:"RATIO_MIN"`
	RatioMax      decimal.Decimal `yaml:"ratio_max" env:"RATIO_MAX"`
	HighLiquidity []string        `yaml:"high_liquidity" env:"HIGH_LIQUIDITY"`
}

// DeliveryConfig sizes the per-subscriber mailboxes.
type DeliveryConfig struct {
	MailboxSize int `yaml:"mailbox_size" env:"MAILBOX_SIZE"`
}

// LivenessConfig drives the receiver and the eviction scan.
type LivenessConfig struct {
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	EvictionTimeout time.Duration `yaml:"eviction_timeout" env:"EVICTION_TIMEOUT"`
	ScanInterval    time.Duration `yaml:"scan_interval" env:"SCAN_INTERVAL"`
}

// StorageConfig enables the session journal when Path is set.
type StorageConfig struct {
	Path          string `yaml:"path" env:"PATH"`
	JournalBuffer int    `yaml:"journal_buffer" env:"JOURNAL_BUFFER"`
}

// MonitorConfig enables the status server when Addr is set.
type MonitorConfig struct {
	Addr         string        `yaml:"addr" env:"ADDR"`
	PushInterval time.Duration `yaml:"push_interval" env:"PUSH_INTERVAL"`
	Pprof        bool          `yaml:"pprof" env:"PPROF"`
}

// ClientConfig is read by cmd/client only.
type ClientConfig struct {
	ServerAddr      string        `yaml:"server_addr" env:"SERVER_ADDR"`
	ServerUDPAddr   string        `yaml:"server_udp_addr" env:"SERVER_UDP_ADDR"`
	ListenAddr      string        `yaml:"listen_addr" env:"LISTEN_ADDR"`
	TickersFile     string        `yaml:"tickers_file" env:"TICKERS_FILE"`
	PingInterval    time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	DialRetries     int           `yaml:"dial_retries" env:"DIAL_RETRIES"`
	DialBackoffBase time.Duration `yaml:"dial_backoff_base" env:"DIAL_BACKOFF_BASE"`
	DialBackoffMax  time.Duration `yaml:"dial_backoff_max" env:"DIAL_BACKOFF_MAX"`
	PriceDecimals   int32         `yaml:"price_decimals" env:"PRICE_DECIMALS"`
}

// LoggingConfig selects the level and the rotated log file.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	File  string `yaml:"file" env:"FILE"`
}

// Config holds every setting of both binaries.
// LoadConfig fills it from defaults, then the YAML file, then QS_* environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name" env:"NAME"`
		Version string `yaml:"version" env:"VERSION"`
	} `yaml:"app" envPrefix:"APP_"`

	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Quotes   QuotesConfig   `yaml:"quotes" envPrefix:"QUOTES_"`
	Delivery DeliveryConfig `yaml:"delivery" envPrefix:"DELIVERY_"`
	Liveness LivenessConfig `yaml:"liveness" envPrefix:"LIVENESS_"`
	Storage  StorageConfig  `yaml:"storage" envPrefix:"STORAGE_"`
	Monitor  MonitorConfig  `yaml:"monitor" envPrefix:"MONITOR_"`
	Client   ClientConfig   `yaml:"client" envPrefix:"CLIENT_"`
	Logging  LoggingConfig  `yaml:"logging" envPrefix:"LOGGING_"`
}

// DefaultConfig returns the configuration used for every omitted field.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "quote_stream"
	cfg.App.Version = "0.1.0"

	cfg.Server = ServerConfig{
		TCPAddr:         "127.0.0.1:8000",
		UDPAddr:         "127.0.0.1:8001",
		TickersFile:     "mocks/server-tickers.txt",
		AcceptIdle:      50 * time.Millisecond,
		RequestTimeout:  2 * time.Second,
		MaxRequestBytes: 1024,
	}
	cfg.Quotes = QuotesConfig{
		Interval:      time.Second,
		DefaultPrice:  decimal.NewFromInt(1),
		RatioMin:      decimal.RequireFromString("0.5"),
		RatioMax:      decimal.RequireFromString("1.5"),
		HighLiquidity: []string{"AAPL", "GOOGL", "MSFT", "TSLA", "NVDA"},
	}
	cfg.Delivery = DeliveryConfig{MailboxSize: 16}
	cfg.Liveness = LivenessConfig{
		ReadTimeout:     2 * time.Second,
		EvictionTimeout: 5 * time.Second,
		ScanInterval:    50 * time.Millisecond,
	}
	cfg.Storage = StorageConfig{JournalBuffer: 256}
	cfg.Monitor = MonitorConfig{PushInterval: time.Second}
	cfg.Client = ClientConfig{
		ServerAddr:      "127.0.0.1:8000",
		ServerUDPAddr:   "127.0.0.1:8001",
		ListenAddr:      "127.0.0.1:0",
		TickersFile:     "mocks/client-tickers.txt",
		PingInterval:    time.Second,
		RequestTimeout:  2 * time.Second,
		DialRetries:     5,
		DialBackoffBase: 200 * time.Millisecond,
		DialBackoffMax:  5 * time.Second,
		PriceDecimals:   4,
	}
	cfg.Logging = LoggingConfig{Level: "info", File: "logs/app.log"}
	return cfg
}

// LoadConfig reads the YAML file at path and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML bytes on top of the defaults, applies
// environment overrides and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity and reports the first bad field.
func (c *Config) Validate() error {
	for _, a := range []struct{ field, addr string }{
		{"server.tcp_addr", c.Server.TCPAddr},
		{"server.udp_addr", c.Server.UDPAddr},
		{"client.server_addr", c.Client.ServerAddr},
		{"client.server_udp_addr", c.Client.ServerUDPAddr},
		{"client.listen_addr", c.Client.ListenAddr},
	} {
		if _, _, err := net.SplitHostPort(a.addr); err != nil {
			return &domain.ConfigError{Field: a.field, Err: err}
		}
	}
	if c.Monitor.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Monitor.Addr); err != nil {
			return &domain.ConfigError{Field: "monitor.addr", Err: err}
		}
	}

	if c.Server.TickersFile == "" {
		return configErr("server.tickers_file", "missing value")
	}
	if c.Server.AcceptIdle <= 0 {
		return configErr("server.accept_idle", "must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return configErr("server.request_timeout", "must be positive")
	}
	if c.Server.MaxRequestBytes <= 0 {
		return configErr("server.max_request_bytes", "must be positive")
	}

	if c.Quotes.Interval <= 0 {
		return configErr("quotes.interval", "must be positive")
	}
	if !c.Quotes.DefaultPrice.IsPositive() {
		return configErr("quotes.default_price", "must be positive")
	}
	if !c.Quotes.RatioMin.IsPositive() {
		return configErr("quotes.ratio_min", "must be positive")
	}
	if c.Quotes.RatioMax.LessThanOrEqual(c.Quotes.RatioMin) {
		return configErr("quotes.ratio_max", "must be greater than ratio_min")
	}

	if c.Delivery.MailboxSize < 1 {
		return configErr("delivery.mailbox_size", "must be at least 1")
	}

	if c.Liveness.ReadTimeout <= 0 {
		return configErr("liveness.read_timeout", "must be positive")
	}
	if c.Liveness.EvictionTimeout <= 0 {
		return configErr("liveness.eviction_timeout", "must be positive")
	}
	if c.Liveness.ScanInterval <= 0 {
		return configErr("liveness.scan_interval", "must be positive")
	}
	if c.Storage.JournalBuffer < 1 {
		return configErr("storage.journal_buffer", "must be at least 1")
	}
	if c.Monitor.PushInterval <= 0 {
		return configErr("monitor.push_interval", "must be positive")
	}

	if c.Client.PingInterval <= 0 {
		return configErr("client.ping_interval", "must be positive")
	}
	if c.Client.RequestTimeout <= 0 {
		return configErr("client.request_timeout", "must be positive")
	}
	if c.Client.DialRetries < 0 {
		return configErr("client.dial_retries", "must not be negative")
	}
	if c.Client.PriceDecimals < 0 {
		return configErr("client.price_decimals", "must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return configErr("logging.level", "unknown level "+c.Logging.Level)
	}
	return nil
}

// DialBackoff is the client's reconnect schedule.
func (c *Config) DialBackoff() Backoff {
	return Backoff{Base: c.Client.DialBackoffBase, Max: c.Client.DialBackoffMax}
}

func configErr(field, msg string) error {
	return &domain.ConfigError{Field: field, Err: errors.New(msg)}
}
