package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gematik/zero-lab/go/verifier"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	runCmd.Flags().StringP("addr", "a", "", "Address to listen on (default from config, :8080)")
	viper.BindPFlag("addr", runCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the presentation verifier",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := loadConfig()
		exitOnError("Failed to load config", err)

		slog.Info("Starting presentation verifier", "version", verifier.Version, "store", config.Store.Type, "nonce_expiry_seconds", config.Nonce.ExpirySeconds)
		server, err := verifier.New(config)
		exitOnError("Failed to create verifier", err)
		defer server.Close()

		e := server.Echo()
		for _, route := range e.Routes() {
			slog.Debug("Route", "method", route.Method, "path", route.Path)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			slog.Info("Listening", "addr", server.Address)
			if err := e.Start(server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server failed", "error", err)
				stop()
			}
		}()

		<-ctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	},
}
