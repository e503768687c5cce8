package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds every server-level option for the tiertrack daemon.
type Config struct {
	Server ServerConfig `koanf:"server"`
}

// ServerConfig collects the bootstrap knobs owned by the lifecycle agent.
type ServerConfig struct {
	Listen  ListenConfig  `koanf:"listen"`
	Logging LoggingConfig `koanf:"logging"`
	Cache   CacheConfig   `koanf:"cache"`
	History HistoryConfig `koanf:"history"`
	Tiers   TiersConfig   `koanf:"tiers"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level and output format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CacheConfig sets the backend and the retention window of each sub-cache.
// TTLs are duration strings ("60m", "15m") so operators tune them without
// unit guessing.
type CacheConfig struct {
	Backend     string            `koanf:"backend"`
	IdentityTTL string            `koanf:"identityTtl"`
	ProfileTTL  string            `koanf:"profileTtl"`
	ListingTTL  string            `koanf:"listingTtl"`
	Valkey      ValkeyCacheConfig `koanf:"valkey"`
}

// ValkeyCacheConfig carries connection settings for the shared cache backend.
type ValkeyCacheConfig struct {
	Address  string               `koanf:"address"`
	Username string               `koanf:"username"`
	Password string               `koanf:"password"`
	DB       int                  `koanf:"db"`
	TLS      ValkeyCacheTLSConfig `koanf:"tls"`
}

type ValkeyCacheTLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// HistoryConfig locates the persisted snapshot file and caps retention.
type HistoryConfig struct {
	File         string `koanf:"file"`
	MaxSnapshots int    `koanf:"maxSnapshots"`
}

// TiersConfig points at an optional tier-table override document.
type TiersConfig struct {
	TableFile string `koanf:"tableFile"`
	Watch     bool   `koanf:"watch"`
}

// TTLs parses the three cache windows. Validate has already rejected
// unparseable values, so errors here only surface on unvalidated configs.
func (c CacheConfig) TTLs() (identity, profile, listing time.Duration, err error) {
	identity, err = parseTTL("identityTtl", c.IdentityTTL)
	if err != nil {
		return 0, 0, 0, err
	}
	profile, err = parseTTL("profileTtl", c.ProfileTTL)
	if err != nil {
		return 0, 0, 0, err
	}
	listing, err = parseTTL("listingTtl", c.ListingTTL)
	if err != nil {
		return 0, 0, 0, err
	}
	return identity, profile, listing, nil
}

func parseTTL(name, value string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("config: server.cache.%s required", name)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: server.cache.%s invalid: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: server.cache.%s must be positive: %s", name, value)
	}
	return d, nil
}

// Validate enforces invariants that keep the daemon predictable before it
// starts serving.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.Server.Listen.Port <= 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen.port invalid: %d", c.Server.Listen.Port)
	}
	if _, _, _, err := c.Server.Cache.TTLs(); err != nil {
		return err
	}
	backend := strings.TrimSpace(strings.ToLower(c.Server.Cache.Backend))
	switch backend {
	case "", "memory":
	case "valkey":
		if strings.TrimSpace(c.Server.Cache.Valkey.Address) == "" {
			return errors.New("config: server.cache.valkey.address required for valkey backend")
		}
	default:
		return fmt.Errorf("config: server.cache.backend unsupported: %s", c.Server.Cache.Backend)
	}
	if strings.TrimSpace(c.Server.History.File) == "" {
		return errors.New("config: server.history.file required")
	}
	if c.Server.History.MaxSnapshots <= 0 {
		return fmt.Errorf("config: server.history.maxSnapshots must be positive: %d", c.Server.History.MaxSnapshots)
	}
	if c.Server.Tiers.Watch && strings.TrimSpace(c.Server.Tiers.TableFile) == "" {
		return errors.New("config: server.tiers.watch requires server.tiers.tableFile")
	}
	return nil
}

// DefaultConfig returns the baseline values: long identity retention because
// name→uuid bindings are near-immutable, shorter windows for profile and
// listing data, and the standard 30-snapshot history cap.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: ListenConfig{
				Address: "0.0.0.0",
				Port:    8080,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
			Cache: CacheConfig{
				Backend:     "memory",
				IdentityTTL: "60m",
				ProfileTTL:  "15m",
				ListingTTL:  "30m",
			},
			History: HistoryConfig{
				File:         "./data/history.json",
				MaxSnapshots: 30,
			},
			Tiers: TiersConfig{},
		},
	}
}
