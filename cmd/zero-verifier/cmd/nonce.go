package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gematik/zero-lab/go/verifier"
	"github.com/gematik/zero-lab/go/verifier/nonce"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(nonceCmd)
	nonceCmd.AddCommand(nonceIssueCmd)
	nonceCmd.AddCommand(nonceRedeemCmd)
}

var nonceCmd = &cobra.Command{
	Use:   "nonce",
	Short: "Issue and redeem nonces against the configured store",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var nonceIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a nonce and print it as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		withNonceService(func(ctx context.Context, service *nonce.StoreService) {
			n, err := service.Get(ctx)
			cobra.CheckErr(err)
			cobra.CheckErr(json.NewEncoder(os.Stdout).Encode(&verifier.ChallengeResponse{Nonce: n}))
		})
	},
}

var nonceRedeemCmd = &cobra.Command{
	Use:   "redeem [nonce]",
	Short: "Redeem a nonce, consuming it unless disabled in the config",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withNonceService(func(ctx context.Context, service *nonce.StoreService) {
			err := service.Redeem(ctx, args[0])
			if errors.Is(err, nonce.ErrInvalidNonce) {
				fmt.Fprintln(os.Stderr, verifier.MessageInvalidNonce)
				os.Exit(2)
			}
			cobra.CheckErr(err)
			fmt.Println(verifier.MessageAccepted)
		})
	},
}

func withNonceService(fn func(ctx context.Context, service *nonce.StoreService)) {
	config, err := loadConfig()
	exitOnError("Failed to load config", err)
	exitOnError("Invalid config", config.Validate())

	store, err := config.OpenStore()
	exitOnError("Failed to open nonce store", err)
	defer store.Close()

	service, err := nonce.NewStoreService(store, config.NonceOptions())
	exitOnError("Failed to create nonce service", err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, service)
}
