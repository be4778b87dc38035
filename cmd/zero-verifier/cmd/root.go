package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/phsym/console-slog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	verbose bool
	workdir string
)

var rootCmd = &cobra.Command{
	Use:   "zero-verifier",
	Short: "Nonce-gated presentation verifier",
	Long: `zero-verifier hands out short-lived nonces and accepts a holder's
presentation only against a nonce it issued and has not yet redeemed.

Nonces live in valkey (or in memory for single-instance setups). Holder
public keys can be kept in an optional sqlite key store.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workdir != "" {
			if err := os.Chdir(workdir); err != nil {
				return err
			}
		}
		// .env is optional
		_ = godotenv.Load()
		setupLogging()
		return nil
	},
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if os.Getenv("PRETTY_LOGS") == "false" {
		slog.SetLogLoggerLevel(level)
		return
	}
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{Level: level})))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	viper.SetEnvPrefix("VERIFIER")
	viper.AutomaticEnv()

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&workdir, "workdir", "w", "", "change to this directory before loading config and .env")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	flags.StringP("config-file", "f", "verifier.yaml", "verifier config file (VERIFIER_CONFIG_FILE)")
	flags.String("store", "", "nonce store, overrides the config file: valkey or memory (VERIFIER_STORE)")
	flags.String("keystore", "", "holder key store database, overrides the config file (VERIFIER_KEYSTORE)")
	viper.BindPFlag("config_file", flags.Lookup("config-file"))
	viper.BindPFlag("store", flags.Lookup("store"))
	viper.BindPFlag("keystore", flags.Lookup("keystore"))
}
