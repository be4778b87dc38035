package nonce

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"
)

type ValkeyConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required,min=1,max=65535"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
	DB       int    `yaml:"db" validate:"min=0"`
}

func DefaultValkeyConfig() *ValkeyConfig {
	return &ValkeyConfig{
		Host: "127.0.0.1",
		Port: 6379,
	}
}

func (c *ValkeyConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ValkeyConfig) ClientOption() valkey.ClientOption {
	option := valkey.ClientOption{
		InitAddress:  []string{c.Address()},
		Username:     c.Username,
		Password:     c.Password,
		SelectDB:     c.DB,
		DisableCache: true,
	}
	if c.UseTLS {
		option.TLSConfig = &tls.Config{
			ServerName: c.Host,
			MinVersion: tls.VersionTLS12,
		}
	}
	return option
}

// ValkeyStore keeps nonces in Valkey (or Redis). The valkey client pipelines
// concurrent commands over shared connections and needs no external locking.
type ValkeyStore struct {
	client valkey.Client
}

func NewValkeyStore(client valkey.Client) *ValkeyStore {
	return &ValkeyStore{client: client}
}

// DialValkey connects to the configured server. The client dials eagerly, so
// an unreachable server fails here.
func DialValkey(cfg *ValkeyConfig) (*ValkeyStore, error) {
	client, err := valkey.NewClient(cfg.ClientOption())
	if err != nil {
		return nil, fmt.Errorf("connecting to valkey at %s: %w: %w", cfg.Address(), ErrStoreUnavailable, err)
	}
	return NewValkeyStore(client), nil
}

func (v *ValkeyStore) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	cmd := v.client.B().Set().Key(key).Value(value).Ex(ttl).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return unavailable("valkey SET", err)
	}
	return nil
}

func (v *ValkeyStore) Exists(ctx context.Context, key string) (bool, error) {
	cmd := v.client.B().Exists().Key(key).Build()
	count, err := v.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, unavailable("valkey EXISTS", err)
	}
	return count > 0, nil
}

func (v *ValkeyStore) Delete(ctx context.Context, key string) (bool, error) {
	cmd := v.client.B().Del().Key(key).Build()
	removed, err := v.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, unavailable("valkey DEL", err)
	}
	return removed == 1, nil
}

func (v *ValkeyStore) Ping(ctx context.Context) error {
	if err := v.client.Do(ctx, v.client.B().Ping().Build()).Error(); err != nil {
		return unavailable("valkey PING", err)
	}
	return nil
}

func (v *ValkeyStore) Close() {
	v.client.Close()
}
