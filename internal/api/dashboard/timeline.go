package dashboard

import (
	"cmp"
	"net/http"
	"slices"
	"time"

	"github.com/good-yellow-bee/focusdial/internal/api/entries"
	"github.com/good-yellow-bee/focusdial/internal/api/middleware"
	"github.com/good-yellow-bee/focusdial/internal/api/render"
	"github.com/good-yellow-bee/focusdial/internal/storage"
	"github.com/good-yellow-bee/focusdial/internal/timeline"
)

// TimelineEntry is an entry placed on the timeline axis.
type TimelineEntry struct {
	*entries.EntryResponse
	LeftPercent  float64 `json:"left_percent"`
	WidthPercent float64 `json:"width_percent"`
}

// ProjectTotal is the time tracked on one project within the range.
type ProjectTotal struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Seconds   int64  `json:"seconds"`
}

// TimelineResponse is the body of GET /api/v1/timeline.
type TimelineResponse struct {
	Option  timeline.Option    `json:"range"`
	Label   string             `json:"label"`
	Range   timeline.DateRange `json:"bounds"`
	Markers []timeline.Marker  `json:"markers"`
	Entries []TimelineEntry    `json:"entries"`
	Totals  []ProjectTotal     `json:"totals"`
}

// Timeline resolves ?range= (default today) and returns the axis markers
// together with the entries that started inside the range.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	opt := timeline.Today
	if v := r.URL.Query().Get("range"); v != "" {
		parsed, err := timeline.ParseOption(v)
		if err != nil {
			render.Fail(w, render.NewValidationError(err.Error()))
			return
		}
		opt = parsed
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	now := h.settings.Now()
	window := timeline.Window(opt, now)

	list, err := h.entries.List(ctx, storage.EntryFilter{
		UserID: userID,
		From:   &window.Start,
		To:     &window.End,
	})
	if err != nil {
		render.Internal(w, "timeline: list entries", err)
		return
	}
	projects, err := entries.ProjectIndex(ctx, h.projects, userID)
	if err != nil {
		render.Internal(w, "timeline: load projects", err)
		return
	}

	rng := h.settings.Resolver().Resolve(opt, now, list)
	resp := TimelineResponse{
		Option:  opt,
		Label:   opt.String(),
		Range:   rng,
		Markers: timeline.GenerateMarkers(rng, opt),
		Entries: make([]TimelineEntry, 0, len(list)),
	}
	if resp.Markers == nil {
		resp.Markers = []timeline.Marker{}
	}

	totals := make(map[string]*ProjectTotal)
	// Oldest first so bars are drawn left to right.
	for _, e := range slices.Backward(list) {
		p := projects[e.ProjectID]
		end := now
		if e.EndTime != nil {
			end = *e.EndTime
		}
		resp.Entries = append(resp.Entries, TimelineEntry{
			EntryResponse: entries.NewEntryResponse(e, p),
			LeftPercent:   percent(rng, e.StartTime),
			WidthPercent:  percent(rng, end) - percent(rng, e.StartTime),
		})

		t, ok := totals[e.ProjectID]
		if !ok {
			t = &ProjectTotal{ProjectID: e.ProjectID}
			if p != nil {
				t.Name, t.Color = p.Name, p.Color
			}
			totals[e.ProjectID] = t
		}
		t.Seconds += int64(e.Elapsed(now) / time.Second)
	}

	resp.Totals = make([]ProjectTotal, 0, len(totals))
	for _, t := range totals {
		resp.Totals = append(resp.Totals, *t)
	}
	slices.SortFunc(resp.Totals, func(a, b ProjectTotal) int {
		return cmp.Or(cmp.Compare(b.Seconds, a.Seconds), cmp.Compare(a.Name, b.Name))
	})

	render.OK(w, resp)
}

// percent places t on r, clamped to [0, 100].
func percent(r timeline.DateRange, t time.Time) float64 {
	span := r.Duration()
	if span <= 0 {
		return 0
	}
	p := float64(t.Sub(r.Start)) / float64(span) * 100
	return min(max(p, 0), 100)
}
