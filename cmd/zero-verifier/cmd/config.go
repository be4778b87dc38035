package cmd

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gematik/zero-lab/go/verifier"
	"github.com/gematik/zero-lab/go/verifier/nonce"
	"github.com/spf13/viper"
)

// loadConfig reads the config file. A missing file is not an error unless it
// was named explicitly; the defaults then apply.
func loadConfig() (*verifier.Config, error) {
	configFile := verifier.ExpandPath(viper.GetString("config_file"))

	config, err := verifier.LoadConfigFile(configFile)
	if errors.Is(err, fs.ErrNotExist) && !viper.IsSet("config_file") {
		slog.Warn("config file not found, using defaults", "config_file", configFile)
		config = verifier.DefaultConfig()
	} else if err != nil {
		return nil, err
	}

	if store := viper.GetString("store"); store != "" {
		config.Store.Type = store
	}
	if addr := viper.GetString("addr"); addr != "" {
		config.Address = addr
	}
	if keystorePath := viper.GetString("keystore"); keystorePath != "" {
		if abs, err := filepath.Abs(verifier.ExpandPath(keystorePath)); err == nil {
			keystorePath = abs
		}
		config.KeyStore = &verifier.KeyStoreConfig{Path: keystorePath}
	}
	if config.Store.Type == verifier.StoreTypeValkey && config.Store.Valkey == nil {
		config.Store.Valkey = nonce.DefaultValkeyConfig()
	}

	slog.Debug("Loaded config", "config_file", configFile, "store", config.Store.Type)
	return config, nil
}

func exitOnError(msg string, err error) {
	if err != nil {
		slog.Error(msg, "error", err)
		os.Exit(1)
	}
}
