package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/focusdial/internal/api/projects"
	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
)

var (
	projectName     string
	projectColor    string
	projectDeviceID string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long: `Projects are usually created by the dial on first use. These commands
list them and allow creating or removing projects by hand.`,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's projects",
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
		list, err := store.Projects().ListByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		if output == "json" {
			if list == nil {
				list = []*models.Project{}
			}
			return printJSON(list)
		}
		if len(list) == 0 {
			fmt.Println("No projects found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-24s  %-7s  %-8s  %s\n", "ID", "NAME", "COLOR", "DEVICE", "ENTRIES")
		fmt.Println(strings.Repeat("-", 90))
		for _, p := range list {
			n, err := store.Projects().CountEntries(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("count entries: %w", err)
			}
			device := p.DeviceProjectID
			if device == "" {
				device = "-"
			}
			fmt.Printf("%-36s  %-24s  %-7s  %-8s  %d\n", p.ID, truncate(p.Name, 24), p.Color, device, n)
		}
		fmt.Printf("\nTotal: %d project(s)\n", len(list))
		return nil
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(projectName)
		if err := projects.ValidateName(name); err != nil {
			return err
		}
		if err := projects.ValidateColor(projectColor); err != nil {
			return err
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

		p := models.NewProject(user.ID, name, projectColor)
		p.DeviceProjectID = strings.TrimSpace(projectDeviceID)
		if err := store.Projects().Create(ctx, p); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return fmt.Errorf("project '%s' or device id '%s' already exists", name, p.DeviceProjectID)
			}
			return fmt.Errorf("create project: %w", err)
		}
		fmt.Printf("Project '%s' created with id %s.\n", p.Name, p.ID)
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project without time entries",
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
		p, err := store.Projects().GetByID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get project: %w", err)
		}
		if p == nil || p.UserID != user.ID {
			return fmt.Errorf("project '%s' not found for user '%s'", args[0], user.Username)
		}

		n, err := store.Projects().CountEntries(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("count entries: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("project '%s' still has %d time entries", p.Name, n)
		}
		if err := store.Projects().Delete(ctx, p.ID); err != nil {
			if errors.Is(err, storage.ErrReferenced) {
				return fmt.Errorf("project '%s' still has time entries", p.Name)
			}
			return fmt.Errorf("delete project: %w", err)
		}
		fmt.Printf("Project '%s' deleted.\n", p.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectListCmd, projectCreateCmd, projectDeleteCmd)
	addUserFlag(projectListCmd, projectCreateCmd, projectDeleteCmd)

	projectCreateCmd.Flags().StringVar(&projectName, "name", "", "project name (required)")
	projectCreateCmd.Flags().StringVar(&projectColor, "color", models.DefaultProjectColor, "#RRGGBB colour")
	projectCreateCmd.Flags().StringVar(&projectDeviceID, "device-id", "", "bind to a dial project id")
	projectCreateCmd.MarkFlagRequired("name")
}
