package cache

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// ValkeyTLSConfig mirrors the config-layer TLS knobs to avoid a circular
// dependency on internal/config.
type ValkeyTLSConfig struct {
	Enabled bool
	CAFile  string
}

// ValkeyConfig carries the connection settings for the shared cache backend.
type ValkeyConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      ValkeyTLSConfig
}

type valkeyBackend[V any] struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkey connects a namespaced sub-cache to a valkey server. Entries are
// stored as JSON under prefix-qualified keys with a server-side TTL, so the
// expiration contract matches the memory backend.
func NewValkey[V any](cfg ValkeyConfig, prefix string, ttl time.Duration) (Backend[V], error) {
	if cfg.Address == "" {
		return nil, errors.New("cache: valkey address required")
	}
	if prefix == "" {
		return nil, errors.New("cache: valkey key prefix required")
	}

	option := valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	}

	if cfg.TLS.Enabled {
		tlsConfig := &tls.Config{}
		if cfg.TLS.CAFile != "" {
			caData, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				return nil, fmt.Errorf("cache: read valkey ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caData) {
				return nil, errors.New("cache: valkey ca file contains no certificates")
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("cache: valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: valkey ping: %w", err)
	}

	return &valkeyBackend[V]{client: client, prefix: prefix + ":", ttl: ttl}, nil
}

func (b *valkeyBackend[V]) Lookup(ctx context.Context, key string) (V, bool, error) {
	var zero V
	resp := b.client.Do(ctx, b.client.B().Get().Key(b.prefix+key).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("cache: valkey get: %w", err)
	}
	payload, err := resp.AsBytes()
	if err != nil {
		return zero, false, fmt.Errorf("cache: valkey get bytes: %w", err)
	}
	var value V
	if err := json.Unmarshal(payload, &value); err != nil {
		return zero, false, fmt.Errorf("cache: valkey unmarshal: %w", err)
	}
	return value, true, nil
}

func (b *valkeyBackend[V]) Store(ctx context.Context, key string, value V) error {
	if b.ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: valkey marshal: %w", err)
	}
	cmd := b.client.B().Set().Key(b.prefix + key).Value(string(payload)).Px(b.ttl).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("cache: valkey set: %w", err)
	}
	return nil
}

func (b *valkeyBackend[V]) Clear(ctx context.Context) error {
	keys, err := b.scanKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := b.client.Do(ctx, b.client.B().Del().Key(keys...).Build()).Error(); err != nil {
		return fmt.Errorf("cache: valkey del: %w", err)
	}
	return nil
}

func (b *valkeyBackend[V]) ActiveCount(ctx context.Context) (int64, error) {
	keys, err := b.scanKeys(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

func (b *valkeyBackend[V]) Close(context.Context) error {
	b.client.Close()
	return nil
}

func (b *valkeyBackend[V]) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	cursor := uint64(0)
	for {
		resp := b.client.Do(ctx, b.client.B().Scan().Cursor(cursor).Match(b.prefix+"*").Count(100).Build())
		entry, err := resp.AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("cache: valkey scan: %w", err)
		}
		keys = append(keys, entry.Elements...)
		if entry.Cursor == 0 {
			return keys, nil
		}
		cursor = entry.Cursor
	}
}
