package cmd

import (
	"fmt"

	"github.com/gematik/zero-lab/go/verifier"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the effective nonce settings",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("zero-verifier v%s\n", verifier.Version)

		config, err := loadConfig()
		if err != nil {
			fmt.Println("Config:", err)
			return
		}
		options := config.NonceOptions()
		fmt.Println("Nonce store:", config.Store.Type)
		if config.Store.Type == verifier.StoreTypeValkey {
			fmt.Println("Valkey address:", config.Store.Valkey.Address())
		}
		fmt.Println("Nonce expiry:", options.Expiry())
		fmt.Println("Consume on redeem:", options.ConsumeOnRedeem)
		if path := config.KeyStorePath(); path != "" {
			fmt.Println("Key store:", path)
		}
	},
}
