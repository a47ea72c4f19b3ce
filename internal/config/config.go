package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat          string        `mapstructure:"log_format" yaml:"log_format"` // console or json
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	// JWTSecret enables token checks on the websocket handshake when set.
	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Chat     ChatConfig     `mapstructure:"chat" yaml:"chat"`
	Bot      BotConfig      `mapstructure:"bot" yaml:"bot"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver" yaml:"driver"`
	// DSN is a file path for sqlite or a connection string for postgres.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// ChatConfig tunes the realtime core.
type ChatConfig struct {
	HistoryLimit        int           `mapstructure:"history_limit" yaml:"history_limit"`
	TypingExpiry        time.Duration `mapstructure:"typing_expiry" yaml:"typing_expiry"`
	TypingSweepInterval time.Duration `mapstructure:"typing_sweep_interval" yaml:"typing_sweep_interval"`
}

// BotConfig describes the counterpart of virtual rooms.
type BotConfig struct {
	ID          string        `mapstructure:"id" yaml:"id"`
	Name        string        `mapstructure:"name" yaml:"name"`
	Avatar      string        `mapstructure:"avatar" yaml:"avatar"`
	AutoReply   bool          `mapstructure:"auto_reply" yaml:"auto_reply"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Model       string        `mapstructure:"model" yaml:"model"`
	MaxTokens   int64         `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":3001",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		MaxMessageBytes:    1 << 16,
		RateLimitPerMinute: 120,
		AllowedOrigins:     []string{"localhost:3000"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "lunachat.db",
		},
		Chat: ChatConfig{
			HistoryLimit:        50,
			TypingExpiry:        5 * time.Second,
			TypingSweepInterval: time.Second,
		},
		Bot: BotConfig{
			ID:          "bot_luna_1",
			Name:        "Anya Bot",
			Avatar:      "/avatar1.jpg",
			Model:       "gpt-3.5-turbo",
			MaxTokens:   500,
			Temperature: 0.8,
			Timeout:     30 * time.Second,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Only the settings exposed as command line flags are considered.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.Database.Driver != "" {
		c.Database.Driver = other.Database.Driver
	}
	if other.Database.DSN != "" {
		c.Database.DSN = other.Database.DSN
	}
}
