package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ismaiel54/polygon-stream/internal/chaos"
	"github.com/ismaiel54/polygon-stream/internal/stream"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds configuration for all services
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Polygon  PolygonConfig  `mapstructure:"polygon"`
	Connect  ConnectConfig  `mapstructure:"connect"`
	Send     SendConfig     `mapstructure:"send"`
	Receive  ReceiveConfig  `mapstructure:"receive"`
	Server   ServerConfig   `mapstructure:"server"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Recorder RecorderConfig `mapstructure:"recorder"`
	Chaos    chaos.Config   `mapstructure:"chaos"`
}

type AppConfig struct {
	ServiceName string `mapstructure:"service_name"`
	// Log level: debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`
}

type PolygonConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
	// Channel-prefixed symbols subscribed after every successful auth, e.g. T.MSFT
	Symbols []string `mapstructure:"symbols"`
}

type ConnectConfig struct {
	MaxAttempts      int           `mapstructure:"max_attempts"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RetryInterval    time.Duration `mapstructure:"retry_interval"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	CooldownMax      time.Duration `mapstructure:"cooldown_max"`
}

type SendConfig struct {
	BatchInterval time.Duration `mapstructure:"batch_interval"`
	IdleInterval  time.Duration `mapstructure:"idle_interval"`
	ErrorBackoff  time.Duration `mapstructure:"error_backoff"`
}

type ReceiveConfig struct {
	ReadLimit  int64 `mapstructure:"read_limit"`
	BufferSize int   `mapstructure:"buffer_size"`
}

type ServerConfig struct {
	GRPCPort int `mapstructure:"grpc_port"`
	HTTPPort int `mapstructure:"http_port"`
}

type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	ClientID string   `mapstructure:"client_id"`
	GroupID  string   `mapstructure:"group_id"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SinkConfig struct {
	QueueCapacity int `mapstructure:"queue_capacity"`
}

type RecorderConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Path          string        `mapstructure:"path"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	Buffer        int           `mapstructure:"buffer"`
}

// LoadConfig reads .env, defaults, the optional config file at path (or $CONFIG_FILE), then environment
// variables, in increasing precedence. Keys map to variables by replacing "." with "_",
// so polygon.api_key is POLYGON_API_KEY.
func LoadConfig(path string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.Polygon.Symbols = trimAll(cfg.Polygon.Symbols)
	cfg.Kafka.Brokers = trimAll(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.service_name", "polygon-stream")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("polygon.url", "wss://socket.polygon.io/stocks")
	v.SetDefault("polygon.api_key", "")
	v.SetDefault("polygon.symbols", []string{})

	v.SetDefault("connect.max_attempts", 5)
	v.SetDefault("connect.timeout", 17*time.Second)
	v.SetDefault("connect.retry_interval", 2*time.Second)
	v.SetDefault("connect.handshake_timeout", 10*time.Second)
	v.SetDefault("connect.cooldown", 10*time.Second)
	v.SetDefault("connect.cooldown_max", 10*time.Second)

	v.SetDefault("send.batch_interval", 500*time.Millisecond)
	v.SetDefault("send.idle_interval", time.Second)
	v.SetDefault("send.error_backoff", 10*time.Second)

	v.SetDefault("receive.read_limit", 4<<20)
	v.SetDefault("receive.buffer_size", 32<<10)

	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.http_port", 8080)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.client_id", "polygon-stream")
	v.SetDefault("kafka.group_id", "tape-verifier")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("sink.queue_capacity", 65536)

	v.SetDefault("recorder.enabled", false)
	v.SetDefault("recorder.path", "./.data/frames.db")
	v.SetDefault("recorder.batch_size", 512)
	v.SetDefault("recorder.flush_interval", 250*time.Millisecond)
	v.SetDefault("recorder.buffer", 8192)

	v.SetDefault("chaos.enabled", false)
	v.SetDefault("chaos.profile", "")
	v.SetDefault("chaos.drop_pct", 0)
	v.SetDefault("chaos.read_error_pct", 0)
	v.SetDefault("chaos.delay_ms_min", 0)
	v.SetDefault("chaos.delay_ms_max", 0)
	v.SetDefault("chaos.seed", 1)
	v.SetDefault("chaos.window_ms", 0)
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Polygon.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		errs = append(errs, fmt.Errorf("polygon.url must be a ws:// or wss:// URL, got %q", c.Polygon.URL))
	}
	for _, ch := range c.Polygon.Symbols {
		if err := stream.ValidateChannel(ch); err != nil {
			errs = append(errs, fmt.Errorf("polygon.symbols: %w", err))
		}
	}
	if c.Connect.MaxAttempts < 1 {
		errs = append(errs, errors.New("connect.max_attempts must be at least 1"))
	}
	for name, d := range map[string]time.Duration{
		"connect.timeout":        c.Connect.Timeout,
		"connect.retry_interval": c.Connect.RetryInterval,
		"connect.cooldown":       c.Connect.Cooldown,
		"send.batch_interval":    c.Send.BatchInterval,
		"send.idle_interval":     c.Send.IdleInterval,
		"send.error_backoff":     c.Send.ErrorBackoff,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Connect.CooldownMax < c.Connect.Cooldown {
		errs = append(errs, errors.New("connect.cooldown_max must not be below connect.cooldown"))
	}
	if c.Sink.QueueCapacity <= 0 {
		errs = append(errs, errors.New("sink.queue_capacity must be positive"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka brokers cannot be empty"))
	}
	if c.Recorder.Enabled && c.Recorder.Path == "" {
		errs = append(errs, errors.New("recorder.path cannot be empty"))
	}
	if c.Chaos.DropPct < 0 || c.Chaos.DropPct > 100 || c.Chaos.ReadErrorPct < 0 || c.Chaos.ReadErrorPct > 100 {
		errs = append(errs, errors.New("chaos percentages must be within 0-100"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// StreamOptions maps the connection settings onto the manager's options
func (c *Config) StreamOptions() stream.Options {
	return stream.Options{
		URL:            c.Polygon.URL,
		MaxAttempts:    c.Connect.MaxAttempts,
		ConnectTimeout: c.Connect.Timeout,
		RetryInterval:  c.Connect.RetryInterval,
		Cooldown:       c.Connect.Cooldown,
		CooldownMax:    c.Connect.CooldownMax,
		BatchInterval:  c.Send.BatchInterval,
		IdleInterval:   c.Send.IdleInterval,
		ErrorBackoff:   c.Send.ErrorBackoff,
	}
}

// WebSocketDialer builds the transport dialer from the connect and receive settings
func (c *Config) WebSocketDialer() *stream.WebSocketDialer {
	return &stream.WebSocketDialer{
		HandshakeTimeout: c.Connect.HandshakeTimeout,
		ReadLimit:        c.Receive.ReadLimit,
		BufferSize:       c.Receive.BufferSize,
	}
}

// GRPCAddr returns the gRPC server address
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.Server.GRPCPort)
}

// HTTPAddr returns the HTTP server address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.Server.HTTPPort)
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
