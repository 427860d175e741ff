package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
	"github.com/good-yellow-bee/focusdial/internal/timeline"
)

var (
	timelineRange    string
	timelineTimezone string
	timelineWorkday  int
	timelineWidth    int
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	axisStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	labelStyle  = lipgloss.NewStyle().Width(20)
	totalsStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1)
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Render a user's timeline in the terminal",
	Long: `Resolve a time range the way the dashboard does and draw each entry as
a bar in its project colour, with the axis markers underneath.

Examples:
  focusctl timeline --user alice
  focusctl timeline --user alice --range last_7_days --tz Europe/Berlin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := timeline.ParseOption(timelineRange)
		if err != nil {
			return err
		}
		loc, err := time.LoadLocation(timelineTimezone)
		if err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
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

		now := time.Now().In(loc)
		window := timeline.Window(opt, now)
		list, err := store.Entries().List(ctx, storage.EntryFilter{
			UserID: user.ID,
			From:   &window.Start,
			To:     &window.End,
		})
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}

		index := make(map[string]*models.Project)
		projects, err := store.Projects().ListByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		for _, p := range projects {
			index[p.ID] = p
		}

		rng := timeline.Resolver{WorkdayStartHour: timelineWorkday}.Resolve(opt, now, list)
		if output == "json" {
			return printJSON(map[string]any{
				"range":   opt,
				"bounds":  rng,
				"markers": timeline.GenerateMarkers(rng, opt),
			})
		}
		fmt.Println(renderTimeline(opt, rng, list, index, now, timelineWidth))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(timelineCmd)
	addUserFlag(timelineCmd)

	timelineCmd.Flags().StringVarP(&timelineRange, "range", "r", "today", "time range name or slug")
	timelineCmd.Flags().StringVar(&timelineTimezone, "tz", "Local", "IANA timezone for day boundaries")
	timelineCmd.Flags().IntVar(&timelineWorkday, "workday-start", timeline.DefaultWorkdayStartHour, "hour the single-day view starts at")
	timelineCmd.Flags().IntVar(&timelineWidth, "width", 72, "width of the bar area in columns")
}

// renderTimeline draws one row per entry, oldest first, followed by the
// marker axis and per-project totals.
func renderTimeline(opt timeline.Option, rng timeline.DateRange, list []*models.TimeEntry, index map[string]*models.Project, now time.Time, width int) string {
	if width < 10 {
		width = 10
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s  %s -> %s",
		opt, rng.Start.Format("Jan 2 15:04"), rng.End.Format("Jan 2 15:04"))))
	b.WriteString("\n\n")

	if len(list) == 0 {
		b.WriteString(axisStyle.Render("no time tracked in this range"))
		b.WriteString("\n")
	}

	totals := make(map[string]int64)
	var order []string
	for _, e := range slices.Backward(list) {
		p := index[e.ProjectID]
		name, color := "?", models.DefaultProjectColor
		if p != nil {
			name, color = p.Name, p.Color
		}

		end := now
		if e.EndTime != nil {
			end = *e.EndTime
		}
		from := column(rng, e.StartTime, width)
		to := max(column(rng, end, width), from+1)

		bar := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(strings.Repeat("█", to-from))
		b.WriteString(labelStyle.Render(truncate(name, 18)))
		b.WriteString(strings.Repeat(" ", from))
		b.WriteString(bar)
		b.WriteString("\n")

		if _, ok := totals[e.ProjectID]; !ok {
			order = append(order, e.ProjectID)
		}
		totals[e.ProjectID] += int64(e.Elapsed(now) / time.Second)
	}

	b.WriteString(labelStyle.Render(""))
	b.WriteString(axisStyle.Render(renderAxis(rng, opt, width)))
	b.WriteString("\n")

	if len(order) > 0 {
		var lines []string
		for _, id := range order {
			name := "?"
			if p := index[id]; p != nil {
				name = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Color)).Render(p.Name)
			}
			lines = append(lines, fmt.Sprintf("%s  %s", name, formatSeconds(totals[id])))
		}
		b.WriteString("\n")
		b.WriteString(totalsStyle.Render(strings.Join(lines, "\n")))
	}
	return b.String()
}

// renderAxis places marker ticks on one line and their labels on the next.
// Labels that would overlap the previous one are skipped.
func renderAxis(rng timeline.DateRange, opt timeline.Option, width int) string {
	ticks := []rune(strings.Repeat("─", width))
	labels := []rune(strings.Repeat(" ", width+12))
	next := 0
	for m := range timeline.Markers(rng, opt) {
		col := min(int(m.PositionPercent/100*float64(width)), width-1)
		ticks[col] = '┬'
		if col < next {
			continue
		}
		copy(labels[col:], []rune(m.Label))
		next = col + len([]rune(m.Label)) + 1
	}
	return string(ticks) + "\n" + strings.Repeat(" ", 20) + strings.TrimRight(string(labels), " ")
}

// column maps t onto [0, width].
func column(rng timeline.DateRange, t time.Time, width int) int {
	span := rng.End.Sub(rng.Start)
	if span <= 0 {
		return 0
	}
	c := int(float64(t.Sub(rng.Start)) / float64(span) * float64(width))
	return min(max(c, 0), width)
}
