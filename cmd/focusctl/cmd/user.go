package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/good-yellow-bee/focusdial/internal/api/auth"
	"github.com/good-yellow-bee/focusdial/internal/api/users"
	"github.com/good-yellow-bee/focusdial/internal/models"
)

var (
	newUsername string
	newEmail    string
	newRole     string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
	Long: `Commands for managing focusdial accounts.

Examples:
  focusctl user list
  focusctl user create --username alice --email alice@example.com
  focusctl user passwd --user alice`,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase()
		if err != nil {
			return err
		}
		defer store.Close()

		userList, err := store.Users().List(context.Background())
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		if output == "json" {
			return printJSON(userList)
		}
		if len(userList) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-20s  %-30s  %-6s  %s\n", "ID", "USERNAME", "EMAIL", "ROLE", "CREATED")
		fmt.Println(strings.Repeat("-", 116))
		for _, u := range userList {
			fmt.Printf("%-36s  %-20s  %-30s  %-6s  %s\n",
				u.ID, u.Username, u.Email, u.Role, u.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("\nTotal: %d user(s)\n", len(userList))
		return nil
	},
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	Long: `Create a new user. The password is prompted interactively so it
does not end up in shell history.

Roles: admin, user (default).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := users.ValidateUsername(newUsername); err != nil {
			return fmt.Errorf("invalid username: %w", err)
		}
		if err := users.ValidateEmail(newEmail); err != nil {
			return fmt.Errorf("invalid email: %w", err)
		}
		role, err := users.ValidateRole(newRole)
		if err != nil {
			return fmt.Errorf("invalid role: %w", err)
		}

		password, err := readNewPassword("Enter password: ", "Confirm password: ")
		if err != nil {
			return err
		}

		store, err := openDatabase()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		if existing, err := store.Users().GetByUsername(ctx, newUsername); err != nil {
			return fmt.Errorf("check username: %w", err)
		} else if existing != nil {
			return fmt.Errorf("username '%s' already exists", newUsername)
		}
		if existing, err := store.Users().GetByEmail(ctx, newEmail); err != nil {
			return fmt.Errorf("check email: %w", err)
		} else if existing != nil {
			return fmt.Errorf("email '%s' already exists", newEmail)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		user := models.NewUser(strings.TrimSpace(newUsername), strings.TrimSpace(newEmail), role)
		user.PasswordHash = string(hash)
		if err := store.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		fmt.Printf("\nUser created successfully:\n")
		fmt.Printf("  ID:       %s\n", user.ID)
		fmt.Printf("  Username: %s\n", user.Username)
		fmt.Printf("  Email:    %s\n", user.Email)
		fmt.Printf("  Role:     %s\n", user.Role)
		return nil
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change a user's password",
	Long: `Change the password of an existing user and revoke all of their
refresh tokens.`,
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

		password, err := readNewPassword("Enter new password: ", "Confirm new password: ")
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		user.PasswordHash = string(hash)
		user.UpdatedAt = time.Now()
		if err := store.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if err := store.Tokens().RevokeAllForUser(ctx, user.ID); err != nil {
			PrintVerbose("warning: could not revoke existing sessions: %v", err)
		}

		fmt.Printf("\nPassword changed successfully for user '%s'.\n", user.Username)
		fmt.Println("All existing sessions have been revoked.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userListCmd, userCreateCmd, userPasswdCmd)

	userCreateCmd.Flags().StringVar(&newUsername, "username", "", "username for the new user (required)")
	userCreateCmd.Flags().StringVar(&newEmail, "email", "", "email for the new user (required)")
	userCreateCmd.Flags().StringVar(&newRole, "role", "user", "role: admin or user")
	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("email")

	addUserFlag(userPasswdCmd)
}

// readNewPassword prompts twice and validates the result.
func readNewPassword(prompt, confirm string) (string, error) {
	password, err := promptPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return "", fmt.Errorf("invalid password: %w", err)
	}
	again, err := promptPassword(confirm)
	if err != nil {
		return "", fmt.Errorf("read password confirmation: %w", err)
	}
	if password != again {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

// promptPassword reads a password without echo when stdin is a terminal.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Piped input.
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

var stdin = bufio.NewReader(os.Stdin)
