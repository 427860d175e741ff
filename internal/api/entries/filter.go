package entries

import (
	"net/url"
	"strconv"
	"time"

	"github.com/good-yellow-bee/focusdial/internal/api/render"
	"github.com/good-yellow-bee/focusdial/internal/storage"
	"github.com/good-yellow-bee/focusdial/internal/timeline"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// ParseFilter builds a listing filter from query parameters. A range
// parameter (a timeline option slug or name) sets the window; explicit
// start and end override either bound.
func ParseFilter(q url.Values, userID string, settings *timeline.Settings) (storage.EntryFilter, *render.Error) {
	f := storage.EntryFilter{
		UserID:    userID,
		ProjectID: q.Get("project_id"),
		Limit:     defaultLimit,
	}

	if v := q.Get("range"); v != "" {
		opt, err := timeline.ParseOption(v)
		if err != nil {
			return f, render.NewValidationError(err.Error())
		}
		w := settings.Window(opt)
		f.From, f.To = &w.Start, &w.End
	}

	for _, b := range []struct {
		key string
		dst **time.Time
	}{{"start", &f.From}, {"end", &f.To}} {
		v := q.Get(b.key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, render.NewValidationError(b.key + " must be an RFC3339 timestamp")
		}
		*b.dst = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, render.NewValidationError("end must not be before start")
	}

	for _, b := range []struct {
		key string
		dst **bool
	}{{"active", &f.Active}, {"invoiced", &f.Invoiced}} {
		v := q.Get(b.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return f, render.NewValidationError(b.key + " must be true or false")
		}
		*b.dst = &parsed
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, render.NewValidationError("limit must be a positive integer")
		}
		f.Limit = min(n, maxLimit)
	}
	return f, nil
}
