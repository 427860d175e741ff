package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
)

var keyName string

var apikeyCmd = &cobra.Command{
	Use:     "apikey",
	Aliases: []string{"key"},
	Short:   "Manage device API keys",
	Long: `Device API keys authenticate a Focus Dial against the webhook endpoint.
Only a SHA-256 hash is stored; the key itself is printed once on creation.`,
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Generate a new API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(keyName)
		if name == "" {
			return errors.New("--name is required")
		}

		store, err := openDatabase()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		user, err := lookupUser(ctx, store)
		if err != nil {
			return err
		}

		key, plain, err := models.NewAPIKey(user.ID, name)
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if err := store.APIKeys().Create(ctx, key); err != nil {
			return fmt.Errorf("store key: %w", err)
		}

		if output == "json" {
			return printJSON(struct {
				*models.APIKey
				Key string `json:"key"`
			}{key, plain})
		}
		fmt.Printf("\nAPI key created for '%s':\n", user.Username)
		fmt.Printf("  ID:   %s\n", key.ID)
		fmt.Printf("  Name: %s\n", key.Name)
		fmt.Printf("  Key:  %s\n", plain)
		fmt.Println("\nStore the key now. It cannot be shown again.")
		return nil
	},
}

var apikeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		user, err := lookupUser(ctx, store)
		if err != nil {
			return err
		}
		keys, err := store.APIKeys().ListByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}
		if output == "json" {
			if keys == nil {
				keys = []*models.APIKey{}
			}
			return printJSON(keys)
		}
		if len(keys) == 0 {
			fmt.Println("No API keys found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-24s  %-19s  %s\n", "ID", "NAME", "CREATED", "LAST USED")
		fmt.Println(strings.Repeat("-", 104))
		for _, k := range keys {
			fmt.Printf("%-36s  %-24s  %-19s  %s\n",
				k.ID, truncate(k.Name, 24), formatTime(&k.CreatedAt), formatTime(k.LastUsedAt))
		}
		fmt.Printf("\nTotal: %d key(s)\n", len(keys))
		return nil
	},
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		user, err := lookupUser(ctx, store)
		if err != nil {
			return err
		}
		if err := store.APIKeys().Delete(ctx, user.ID, args[0]); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("api key '%s' not found for user '%s'", args[0], user.Username)
			}
			return fmt.Errorf("revoke key: %w", err)
		}
		fmt.Printf("API key %s revoked.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyListCmd, apikeyRevokeCmd)
	addUserFlag(apikeyCreateCmd, apikeyListCmd, apikeyRevokeCmd)

	apikeyCreateCmd.Flags().StringVar(&keyName, "name", "", "label for the key, e.g. the desk it lives on (required)")
	apikeyCreateCmd.MarkFlagRequired("name")
}
