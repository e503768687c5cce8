package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestCacheTTLsParse(t *testing.T) {
	cfg := DefaultConfig().Server.Cache

	identity, profile, listing, err := cfg.TTLs()
	require.NoError(t, err)
	require.Equal(t, time.Hour, identity)
	require.Equal(t, 15*time.Minute, profile)
	require.Equal(t, 30*time.Minute, listing)
}

func TestCacheTTLsRejectBadValues(t *testing.T) {
	cfg := DefaultConfig().Server.Cache

	cfg.ProfileTTL = ""
	_, _, _, err := cfg.TTLs()
	require.Error(t, err)

	cfg.ProfileTTL = "fifteen minutes"
	_, _, _, err = cfg.TTLs()
	require.Error(t, err)

	cfg.ProfileTTL = "-5m"
	_, _, _, err = cfg.TTLs()
	require.Error(t, err)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Listen.Port = 0
	require.Error(t, cfg.Validate())

	cfg.Server.Listen.Port = 70000
	require.Error(t, cfg.Validate())
}

func TestValidateBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Cache.Backend = "valkey"
	require.Error(t, cfg.Validate(), "valkey backend requires an address")

	cfg.Server.Cache.Valkey.Address = "localhost:6379"
	require.NoError(t, cfg.Validate())

	cfg.Server.Cache.Backend = "memcached"
	require.Error(t, cfg.Validate())

	cfg.Server.Cache.Backend = ""
	require.NoError(t, cfg.Validate(), "empty backend defaults to memory")
}

func TestValidateHistory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.History.File = "  "
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Server.History.MaxSnapshots = 0
	require.Error(t, cfg.Validate())
}

func TestValidateWatchRequiresTableFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Tiers.Watch = true
	require.Error(t, cfg.Validate())

	cfg.Server.Tiers.TableFile = "./tiers.yaml"
	require.NoError(t, cfg.Validate())
}
