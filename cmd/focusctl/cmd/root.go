// Package cmd contains the focusctl commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
)

// defaultDBPath can be overridden with FOCUSDIAL_DB_PATH.
var defaultDBPath = "./data/focusdial.db"

var (
	dbPath   string
	username string
	output   string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "focusctl",
	Short: "focusctl - operate a focusdial installation",
	Long: `focusctl manages users, device API keys, projects and time entries of a
focusdial server by working directly on its SQLite database, and can
simulate a Focus Dial against a running server.

Examples:
  # Create a key for the dial on alice's desk
  focusctl apikey create --user alice --name desk

  # Show today's timeline
  focusctl timeline --user alice

  # Pretend to be the dial
  focusctl webhook send --key $KEY --action start_timer --device-id 1 --name Writing --color "#22AA88"`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if envPath := os.Getenv("FOCUSDIAL_DB_PATH"); envPath != "" {
		defaultDBPath = envPath
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "path to SQLite database file")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// PrintVerbose prints a message only if verbose mode is enabled.
func PrintVerbose(format string, args ...any) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// openDatabase opens an existing, migrated database.
func openDatabase() (*storage.SQLiteStorage, error) {
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("database file not found: %s", dbPath)
	}

	store := storage.NewSQLiteStorage(dbPath)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	PrintVerbose("using database %s", dbPath)
	return store, nil
}

// lookupUser resolves the --user flag.
func lookupUser(ctx context.Context, store storage.Storage) (*models.User, error) {
	if username == "" {
		return nil, errors.New("--user is required")
	}
	user, err := store.Users().GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user '%s' not found", username)
	}
	return user, nil
}

// addUserFlag registers --user on each command.
func addUserFlag(cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.Flags().StringVarP(&username, "user", "u", "", "owner username (required)")
		c.MarkFlagRequired("user")
	}
}
