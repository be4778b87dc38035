package verifier

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/gematik/zero-lab/go/verifier/nonce"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	StoreTypeValkey = "valkey"
	StoreTypeMemory = "memory"
)

type Config struct {
	BaseDir   string          `yaml:"-"`
	Address   string          `yaml:"address" validate:"required"`
	Nonce     NonceConfig     `yaml:"nonce"`
	Store     StoreConfig     `yaml:"store"`
	KeyStore  *KeyStoreConfig `yaml:"keystore"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
}

type NonceConfig struct {
	ExpirySeconds int64 `yaml:"expiry_seconds" validate:"gte=0"`
	// nil means true
	ConsumeOnRedeem *bool `yaml:"consume_on_redeem"`
}

type StoreConfig struct {
	Type   string              `yaml:"type" validate:"required,oneof=valkey memory"`
	Valkey *nonce.ValkeyConfig `yaml:"valkey"`
	Memory *MemoryStoreConfig  `yaml:"memory"`
}

type MemoryStoreConfig struct {
	Capacity int `yaml:"capacity" validate:"gte=0"`
}

type KeyStoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type EndpointsConfig struct {
	// the verify route also serves <verify>/:nonce, so it cannot be the root
	Verify  string `yaml:"verify" validate:"required,startswith=/,ne=/"`
	Health  string `yaml:"health" validate:"required,startswith=/"`
	Metrics string `yaml:"metrics" validate:"required,startswith=/"`
}

func DefaultConfig() *Config {
	cfg := new(Config)
	cfg.applyDefaults()
	return cfg
}

func LoadConfigFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	expanded := os.ExpandEnv(string(content))

	cfg := new(Config)
	cfg.BaseDir = filepath.Dir(path)

	err = yaml.Unmarshal([]byte(expanded), cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.Nonce.ExpirySeconds == 0 {
		c.Nonce.ExpirySeconds = nonce.DefaultExpirySeconds
	}
	if c.Store.Type == "" {
		c.Store.Type = StoreTypeValkey
	}
	if c.Store.Type == StoreTypeValkey && c.Store.Valkey == nil {
		c.Store.Valkey = nonce.DefaultValkeyConfig()
	}
	if c.Store.Memory == nil {
		c.Store.Memory = &MemoryStoreConfig{Capacity: nonce.DefaultMemoryCapacity}
	}
	c.Endpoints.applyDefaults()
}

func (e *EndpointsConfig) applyDefaults() {
	if e.Verify == "" {
		e.Verify = "/verify"
	}
	e.Verify = "/" + strings.Trim(e.Verify, "/")
	if e.Health == "" {
		e.Health = "/healthz"
	}
	if e.Metrics == "" {
		e.Metrics = "/metrics"
	}
}

func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("yaml")
	})
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func (c *Config) NonceOptions() nonce.Options {
	consume := true
	if c.Nonce.ConsumeOnRedeem != nil {
		consume = *c.Nonce.ConsumeOnRedeem
	}
	return nonce.Options{
		ExpirySeconds:   c.Nonce.ExpirySeconds,
		ConsumeOnRedeem: consume,
	}
}

// OpenStore connects the nonce store selected by the configuration.
func (c *Config) OpenStore() (nonce.Store, error) {
	switch c.Store.Type {
	case StoreTypeValkey:
		valkeyConfig := c.Store.Valkey
		if valkeyConfig == nil {
			valkeyConfig = nonce.DefaultValkeyConfig()
		}
		store, err := nonce.DialValkey(valkeyConfig)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoreTypeMemory:
		capacity := nonce.DefaultMemoryCapacity
		if c.Store.Memory != nil {
			capacity = c.Store.Memory.Capacity
		}
		store, err := nonce.NewMemoryStore(capacity)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", c.Store.Type)
	}
}

func (c *Config) KeyStorePath() string {
	if c.KeyStore == nil || c.KeyStore.Path == "" {
		return ""
	}
	return absPath(c.BaseDir, ExpandPath(c.KeyStore.Path))
}

func absPath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ExpandPath resolves a leading ~ for config and key store paths. Paths
// naming another user's home (~bob) are returned unchanged.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
