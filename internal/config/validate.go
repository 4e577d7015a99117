package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver must be memory or sqlite, got %q", c.Store.Driver)
	}

	if c.Bidding.RatePerSecond < 0 {
		return errors.New("bidding.rate_per_second must be >= 0")
	}
	if c.Bidding.Burst < 1 {
		return errors.New("bidding.burst must be >= 1")
	}

	// boundary drift must stay imperceptible
	if c.Scheduler.TickInterval <= 0 || c.Scheduler.TickInterval > time.Second {
		return fmt.Errorf("scheduler.tick_interval must be in (0, 1s], got %s", c.Scheduler.TickInterval)
	}

	if c.Realtime.SendBuffer < 1 {
		return errors.New("realtime.send_buffer must be >= 1")
	}
	if c.Realtime.PingPeriod >= c.Realtime.PongWait {
		return fmt.Errorf("realtime.ping_period (%s) must be shorter than realtime.pong_wait (%s)", c.Realtime.PingPeriod, c.Realtime.PongWait)
	}

	seen := make(map[string]bool, len(c.Catalog.Products))
	for i, p := range c.Catalog.Products {
		if p.ID == "" {
			return fmt.Errorf("catalog.products[%d].id is required", i)
		}
		if p.SellerID == "" {
			return fmt.Errorf("catalog.products[%d].seller_id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("catalog.products[%d].id %q is duplicated", i, p.ID)
		}
		seen[p.ID] = true
	}

	return nil
}
