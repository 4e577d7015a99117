// Package config loads the auction server configuration from YAML.
package config

import "time"

// Config is the root configuration for the auction server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Store     StoreConfig     `yaml:"store"`
	Bidding   BiddingConfig   `yaml:"bidding"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig controls logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// AuthConfig configures JWT validation for the identity collaborator.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// StoreConfig selects the auction store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory or sqlite
	DSN    string `yaml:"dsn"`
}

// BiddingConfig tunes bid submission.
type BiddingConfig struct {
	// SubmitTimeout bounds the wait for an auction's serialization point.
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
	// RatePerSecond and Burst limit bids per identity.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// SchedulerConfig tunes the lifecycle tick.
type SchedulerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// RealtimeConfig tunes websocket connections and the broadcast hub.
type RealtimeConfig struct {
	SendBuffer     int           `yaml:"send_buffer"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PongWait       time.Duration `yaml:"pong_wait"`
	PingPeriod     time.Duration `yaml:"ping_period"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// CatalogConfig seeds the static product catalog.
type CatalogConfig struct {
	Products []ProductConfig `yaml:"products"`
}

// ProductConfig is one catalog entry.
type ProductConfig struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Images   []string `yaml:"images"`
	SellerID string   `yaml:"seller_id"`
}
