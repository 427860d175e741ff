package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/focusdial/internal/api/entries"
	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
	"github.com/good-yellow-bee/focusdial/internal/timeline"
)

var (
	entryRange   string
	entryProject string
	entryActive  bool
	entryLimit   int
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Inspect and stop time entries",
}

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List time entries, newest first",
	Long: `List time entries of a user.

--range accepts a range name or slug: today, yesterday, week_to_date,
month_to_date, year_to_date, last_7_days, last_30_days.`,
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

		filter := storage.EntryFilter{UserID: user.ID, ProjectID: entryProject, Limit: entryLimit}
		if entryRange != "" {
			opt, err := timeline.ParseOption(entryRange)
			if err != nil {
				return err
			}
			w := timeline.Window(opt, time.Now())
			filter.From, filter.To = &w.Start, &w.End
		}
		if entryActive {
			filter.Active = &entryActive
		}

		list, err := store.Entries().List(ctx, filter)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		index, err := entries.ProjectIndex(ctx, store.Projects(), user.ID)
		if err != nil {
			return err
		}

		if output == "json" {
			out := make([]*entries.EntryResponse, 0, len(list))
			for _, e := range list {
				out = append(out, entries.NewEntryResponse(e, index[e.ProjectID]))
			}
			return printJSON(out)
		}
		if len(list) == 0 {
			fmt.Println("No time entries found.")
			return nil
		}

		now := time.Now()
		fmt.Printf("\n%-36s  %-20s  %-19s  %-19s  %-10s  %s\n", "ID", "PROJECT", "START", "END", "DURATION", "DESCRIPTION")
		fmt.Println(strings.Repeat("-", 130))
		for _, e := range list {
			name := "?"
			if p := index[e.ProjectID]; p != nil {
				name = p.Name
			}
			fmt.Printf("%-36s  %-20s  %-19s  %-19s  %-10s  %s\n",
				e.ID, truncate(name, 20), formatTime(&e.StartTime), formatTime(e.EndTime),
				entryDuration(e, now), truncate(e.Description, 30))
		}
		fmt.Printf("\nTotal: %d entries\n", len(list))
		return nil
	},
}

var entryStopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "Stop a running time entry",
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
		e, err := store.Entries().GetByID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}
		if e == nil || e.UserID != user.ID {
			return fmt.Errorf("entry '%s' not found for user '%s'", args[0], user.Username)
		}
		if !e.IsRunning() {
			return fmt.Errorf("entry '%s' is not running", e.ID)
		}

		e.Stop(time.Now())
		e.UpdatedAt = time.Now()
		if err := store.Entries().Update(ctx, e); err != nil {
			return fmt.Errorf("stop entry: %w", err)
		}
		fmt.Printf("Entry %s stopped after %s.\n", e.ID, formatSeconds(*e.Duration))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(entryCmd)
	entryCmd.AddCommand(entryListCmd, entryStopCmd)
	addUserFlag(entryListCmd, entryStopCmd)

	entryListCmd.Flags().StringVarP(&entryRange, "range", "r", "", "time range name or slug")
	entryListCmd.Flags().StringVar(&entryProject, "project", "", "only entries of this project id")
	entryListCmd.Flags().BoolVar(&entryActive, "active", false, "only running entries")
	entryListCmd.Flags().IntVar(&entryLimit, "limit", 50, "maximum number of entries")
}

func entryDuration(e *models.TimeEntry, now time.Time) string {
	if e.Duration != nil {
		return formatSeconds(*e.Duration)
	}
	return formatSeconds(int64(e.Elapsed(now)/time.Second)) + "*"
}
