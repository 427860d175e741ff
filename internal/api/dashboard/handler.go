// Package dashboard serves the read-only overview endpoints: the per-user
// summary and the timeline.
package dashboard

import (
	"net/http"

	"github.com/good-yellow-bee/focusdial/internal/api/entries"
	"github.com/good-yellow-bee/focusdial/internal/api/middleware"
	"github.com/good-yellow-bee/focusdial/internal/api/render"
	"github.com/good-yellow-bee/focusdial/internal/events"
	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
	"github.com/good-yellow-bee/focusdial/internal/timeline"
)

const recentEntries = 5

// Summary is the body of GET /api/v1/dashboard.
type Summary struct {
	ProjectCount int                      `json:"project_count"`
	TotalSeconds int64                    `json:"total_seconds"`
	Active       *entries.EntryResponse   `json:"active_entry"`
	Recent       []*entries.EntryResponse `json:"recent_entries"`
}

// Handler serves the dashboard endpoints. Summaries are cached per user
// until a project or entry of that user changes.
type Handler struct {
	entries  storage.TimeEntryRepository
	projects storage.ProjectRepository
	settings *timeline.Settings

	cache *events.Cache[*Summary]
	stop  func()
}

// NewHandler creates a dashboard handler. With a nil broker summaries are
// not cached.
func NewHandler(store storage.Storage, broker *events.Broker, settings *timeline.Settings) *Handler {
	h := &Handler{
		entries:  store.Entries(),
		projects: store.Projects(),
		settings: settings,
		stop:     func() {},
	}
	if broker != nil {
		h.cache = events.NewCache[*Summary]()
		h.stop = h.cache.InvalidateOn(broker, events.ByUser, events.TableProjects, events.TableTimeEntries)
	}
	return h
}

// Close stops cache invalidation.
func (h *Handler) Close() {
	h.stop()
}

// Summary returns counts, the running entry and the latest entries.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if h.cache != nil {
		if s, ok := h.cache.Get(userID); ok {
			render.OK(w, s)
			return
		}
	}

	var gen uint64
	if h.cache != nil {
		gen = h.cache.Generation(userID)
	}
	s, err := h.summarize(r, userID)
	if err != nil {
		render.Internal(w, "dashboard summary", err)
		return
	}
	if h.cache != nil {
		h.cache.SetIfGeneration(userID, s, gen)
	}
	render.OK(w, s)
}

func (h *Handler) summarize(r *http.Request, userID string) (*Summary, error) {
	ctx := r.Context()

	projects, err := entries.ProjectIndex(ctx, h.projects, userID)
	if err != nil {
		return nil, err
	}
	total, err := h.entries.TotalDuration(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := true
	running, err := h.entries.List(ctx, storage.EntryFilter{UserID: userID, Active: &active, Limit: 1})
	if err != nil {
		return nil, err
	}
	recent, err := h.entries.List(ctx, storage.EntryFilter{UserID: userID, Limit: recentEntries})
	if err != nil {
		return nil, err
	}

	s := &Summary{
		ProjectCount: len(projects),
		TotalSeconds: total,
		Recent:       responses(recent, projects),
	}
	if len(running) > 0 {
		s.Active = entries.NewEntryResponse(running[0], projects[running[0].ProjectID])
	}
	return s, nil
}

func responses(list []*models.TimeEntry, projects map[string]*models.Project) []*entries.EntryResponse {
	out := make([]*entries.EntryResponse, len(list))
	for i, e := range list {
		out[i] = entries.NewEntryResponse(e, projects[e.ProjectID])
	}
	return out
}
