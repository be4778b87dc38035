package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/gematik/zero-lab/go/verifier/keystore"
	"github.com/spf13/cobra"
)

var holder string

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd)
	keysCmd.AddCommand(keysImportCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysDeleteCmd)

	keysGenerateCmd.Flags().StringVarP(&holder, "holder", "u", "", "store the public key for this holder")
	keysImportCmd.Flags().StringVarP(&holder, "holder", "u", "", "holder the key belongs to")
	cobra.MarkFlagRequired(keysImportCmd.Flags(), "holder")
	keysListCmd.Flags().StringVarP(&holder, "holder", "u", "", "only list keys of this holder")
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage holder keys in the key store",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a P-256 JWK and print it; with --holder the public key is stored",
	Run: func(cmd *cobra.Command, args []string) {
		key, err := keystore.GenerateKey()
		cobra.CheckErr(err)
		if holder != "" {
			withKeyStore(func(ctx context.Context, store *keystore.Store) {
				_, err := store.Put(ctx, holder, key)
				cobra.CheckErr(err)
			})
		}
		cobra.CheckErr(json.NewEncoder(os.Stdout).Encode(key))
	},
}

var keysImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a JWK or PEM key from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var data []byte
		var err error
		if len(args) == 0 || args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		cobra.CheckErr(err)

		key, err := keystore.ParseKey(data)
		cobra.CheckErr(err)

		withKeyStore(func(ctx context.Context, store *keystore.Store) {
			stored, err := store.Put(ctx, holder, key)
			cobra.CheckErr(err)
			fmt.Println(stored.KID)
		})
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys",
	Run: func(cmd *cobra.Command, args []string) {
		withKeyStore(func(ctx context.Context, store *keystore.Store) {
			keys, err := store.List(ctx, holder)
			cobra.CheckErr(err)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KID\tHOLDER\tTYPE\tCREATED")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k.KID, k.Holder, k.JWK.KeyType(), k.CreatedAt.Format(time.RFC3339))
			}
			cobra.CheckErr(w.Flush())
		})
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete [kid]",
	Short: "Delete a stored key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withKeyStore(func(ctx context.Context, store *keystore.Store) {
			cobra.CheckErr(store.Delete(ctx, args[0]))
		})
	},
}

func withKeyStore(fn func(ctx context.Context, store *keystore.Store)) {
	config, err := loadConfig()
	exitOnError("Failed to load config", err)

	path := config.KeyStorePath()
	if path == "" {
		cobra.CheckErr("key store is not configured. Use --keystore flag or the keystore.path config")
	}

	store, err := keystore.Open(path)
	exitOnError("Failed to open key store", err)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, store)
}
