package config

import (
	"fmt"
	"os"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultTokenTTL        = 24 * time.Hour
	DefaultStoreDriver     = "memory"
	DefaultSQLiteDSN       = "auctions.db"
	DefaultSubmitTimeout   = 5 * time.Second
	DefaultRatePerSecond   = 5.0
	DefaultBurst           = 10
	DefaultTickInterval    = 500 * time.Millisecond
	DefaultSendBuffer      = 64
	DefaultWriteTimeout    = 10 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultMaxMessageSize  = 4096
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	// PORT wins over the file so container platforms can inject it
	if p := os.Getenv("PORT"); p != "" {
		c.Server.Addr = fmt.Sprintf(":%s", p)
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DefaultStoreDriver
	}
	if c.Store.Driver == "sqlite" && c.Store.DSN == "" {
		c.Store.DSN = DefaultSQLiteDSN
	}

	if c.Bidding.SubmitTimeout == 0 {
		c.Bidding.SubmitTimeout = DefaultSubmitTimeout
	}
	if c.Bidding.RatePerSecond == 0 {
		c.Bidding.RatePerSecond = DefaultRatePerSecond
	}
	if c.Bidding.Burst == 0 {
		c.Bidding.Burst = DefaultBurst
	}

	if c.Scheduler.TickInterval == 0 {
		c.Scheduler.TickInterval = DefaultTickInterval
	}

	if c.Realtime.SendBuffer == 0 {
		c.Realtime.SendBuffer = DefaultSendBuffer
	}
	if c.Realtime.WriteTimeout == 0 {
		c.Realtime.WriteTimeout = DefaultWriteTimeout
	}
	if c.Realtime.PongWait == 0 {
		c.Realtime.PongWait = DefaultPongWait
	}
	if c.Realtime.PingPeriod == 0 {
		c.Realtime.PingPeriod = c.Realtime.PongWait * 9 / 10
	}
	if c.Realtime.MaxMessageSize == 0 {
		c.Realtime.MaxMessageSize = DefaultMaxMessageSize
	}
}
