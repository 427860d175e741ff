// Package timeline resolves dashboard time ranges and lays out the hour,
// day and week markers drawn above a timeline bar.
package timeline

import (
	"fmt"
	"strings"
)

// Option is one of the fixed dashboard time ranges.
type Option int

const (
	Today Option = iota
	Yesterday
	WeekToDate
	MonthToDate
	YearToDate
	Last7Days
	Last30Days
)

var optionNames = [...]string{
	Today:       "Today",
	Yesterday:   "Yesterday",
	WeekToDate:  "Week to Date",
	MonthToDate: "Month to Date",
	YearToDate:  "Year to Date",
	Last7Days:   "Last 7 Days",
	Last30Days:  "Last 30 Days",
}

// Options returns every option in display order.
func Options() []Option {
	return []Option{Today, Yesterday, WeekToDate, MonthToDate, YearToDate, Last7Days, Last30Days}
}

// String returns the display name, e.g. "Last 7 Days".
func (o Option) String() string {
	if o < 0 || int(o) >= len(optionNames) {
		return fmt.Sprintf("Option(%d)", int(o))
	}
	return optionNames[o]
}

// Slug returns the query-string form, e.g. "last_7_days".
func (o Option) Slug() string {
	return strings.ReplaceAll(strings.ToLower(o.String()), " ", "_")
}

// MultiDay reports whether the option spans more than a single day.
func (o Option) MultiDay() bool {
	return o != Today && o != Yesterday
}

// ParseOption accepts display names and slugs, case-insensitively.
func ParseOption(s string) (Option, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", " ", "_", " ").Replace(norm)
	for _, o := range Options() {
		if strings.ToLower(o.String()) == norm {
			return o, nil
		}
	}
	return Today, fmt.Errorf("unknown time range %q", s)
}

func (o Option) MarshalText() ([]byte, error) {
	return []byte(o.Slug()), nil
}

func (o *Option) UnmarshalText(b []byte) error {
	v, err := ParseOption(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
