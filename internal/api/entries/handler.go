// Package entries serves the time entry endpoints.
package entries

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/focusdial/internal/api/middleware"
	"github.com/good-yellow-bee/focusdial/internal/api/render"
	"github.com/good-yellow-bee/focusdial/internal/events"
	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
	"github.com/good-yellow-bee/focusdial/internal/timeline"
)

var (
	errEntryNotFound   = render.NewNotFound("time entry not found")
	errProjectNotFound = render.NewNotFound("project not found")
	errNotRunning      = render.NewConflict("time entry is not running")
	errEndBeforeStart  = render.NewValidationError("end_time must not be before start_time")
)

// EntryResponse is the wire form of a time entry.
type EntryResponse struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	ProjectName  string     `json:"project_name,omitempty"`
	ProjectColor string     `json:"project_color,omitempty"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	Duration     *int64     `json:"duration"`
	Description  string     `json:"description"`
	Invoiced     bool       `json:"invoiced"`
	Running      bool       `json:"running"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewEntryResponse converts e, decorating it with p when known.
func NewEntryResponse(e *models.TimeEntry, p *models.Project) *EntryResponse {
	resp := &EntryResponse{
		ID:          e.ID,
		ProjectID:   e.ProjectID,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Duration:    e.Duration,
		Description: e.Description,
		Invoiced:    e.Invoiced,
		Running:     e.IsRunning(),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if p != nil {
		resp.ProjectName = p.Name
		resp.ProjectColor = p.Color
	}
	return resp
}

// Handler serves /api/v1/entries.
type Handler struct {
	entries  storage.TimeEntryRepository
	projects storage.ProjectRepository
	events   events.Publisher
	settings *timeline.Settings
}

// NewHandler creates an entries handler.
func NewHandler(store storage.Storage, pub events.Publisher, settings *timeline.Settings) *Handler {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Handler{
		entries:  store.Entries(),
		projects: store.Projects(),
		events:   pub,
		settings: settings,
	}
}

// CreateRequest is the request body for a manual entry.
type CreateRequest struct {
	ProjectID   string     `json:"project_id"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Description string     `json:"description"`
	Invoiced    bool       `json:"invoiced"`
}

// UpdateRequest is the request body for editing an entry. Nil fields are
// left unchanged; ClearEnd reopens a stopped entry.
type UpdateRequest struct {
	ProjectID   *string    `json:"project_id"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	ClearEnd    bool       `json:"clear_end_time"`
	Description *string    `json:"description"`
	Invoiced    *bool      `json:"invoiced"`
}

// List returns the caller's entries, newest first. See ParseFilter for the
// supported query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	filter, ferr := ParseFilter(r.URL.Query(), userID, h.settings)
	if ferr != nil {
		render.Fail(w, ferr)
		return
	}

	list, err := h.entries.List(ctx, filter)
	if err != nil {
		render.Internal(w, "list entries", err)
		return
	}
	projects, err := ProjectIndex(ctx, h.projects, userID)
	if err != nil {
		render.Internal(w, "list entries: load projects", err)
		return
	}

	resp := make([]*EntryResponse, len(list))
	for i, e := range list {
		resp[i] = NewEntryResponse(e, projects[e.ProjectID])
	}
	render.OK(w, resp)
}

// GetByID returns one entry.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.load(w, r)
	if !ok {
		return
	}
	project, err := h.projects.GetByID(r.Context(), entry.ProjectID)
	if err != nil {
		render.Internal(w, "get entry: load project", err)
		return
	}
	render.OK(w, NewEntryResponse(entry, project))
}

// Create records a manual entry. Without start_time the entry starts now;
// without end_time it keeps running.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !render.Decode(w, r, &req) {
		return
	}
	if req.ProjectID == "" {
		render.Fail(w, render.NewValidationError("project_id is required"))
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	project, ok := h.ownedProject(w, r, req.ProjectID, userID)
	if !ok {
		return
	}

	start := h.settings.Now()
	if req.StartTime != nil {
		start = *req.StartTime
	}
	entry := models.NewTimeEntry(userID, project.ID, start)
	entry.Description = strings.TrimSpace(req.Description)
	entry.Invoiced = req.Invoiced
	if req.EndTime != nil {
		if req.EndTime.Before(start) {
			render.Fail(w, errEndBeforeStart)
			return
		}
		entry.Stop(*req.EndTime)
	}

	if err := h.entries.Create(ctx, entry); err != nil {
		render.Internal(w, "create entry", err)
		return
	}

	h.publish(events.ActionInsert, entry)
	render.Created(w, NewEntryResponse(entry, project))
}

// Update edits an entry and recomputes its duration.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !render.Decode(w, r, &req) {
		return
	}
	entry, ok := h.load(w, r)
	if !ok {
		return
	}

	projectID := entry.ProjectID
	if req.ProjectID != nil {
		projectID = *req.ProjectID
	}
	project, ok := h.ownedProject(w, r, projectID, entry.UserID)
	if !ok {
		return
	}
	entry.ProjectID = project.ID

	if req.StartTime != nil {
		entry.StartTime = *req.StartTime
	}
	switch {
	case req.ClearEnd:
		entry.EndTime = nil
	case req.EndTime != nil:
		end := *req.EndTime
		entry.EndTime = &end
	}
	if entry.EndTime != nil && entry.EndTime.Before(entry.StartTime) {
		render.Fail(w, errEndBeforeStart)
		return
	}
	entry.Recalculate()

	if req.Description != nil {
		entry.Description = strings.TrimSpace(*req.Description)
	}
	if req.Invoiced != nil {
		entry.Invoiced = *req.Invoiced
	}
	entry.UpdatedAt = time.Now()

	if err := h.entries.Update(r.Context(), entry); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			render.Fail(w, errEntryNotFound)
			return
		}
		render.Internal(w, "update entry", err)
		return
	}

	h.publish(events.ActionUpdate, entry)
	render.OK(w, NewEntryResponse(entry, project))
}

// Stop closes a running entry now.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.load(w, r)
	if !ok {
		return
	}
	if !entry.IsRunning() {
		render.Fail(w, errNotRunning)
		return
	}

	now := h.settings.Now()
	entry.Stop(now)
	entry.UpdatedAt = now

	if err := h.entries.Update(r.Context(), entry); err != nil {
		render.Internal(w, "stop entry", err)
		return
	}

	log.Printf("entry stopped: %s after %ds", entry.ID, *entry.Duration)
	h.publish(events.ActionUpdate, entry)
	render.OK(w, NewEntryResponse(entry, nil))
}

// Delete removes an entry.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.entries.Delete(r.Context(), entry.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		render.Internal(w, "delete entry", err)
		return
	}

	h.publish(events.ActionDelete, entry)
	render.NoContent(w)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.TimeEntry, bool) {
	entry, err := h.entries.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		render.Internal(w, "get entry", err)
		return nil, false
	}
	if entry == nil || !middleware.CanAccess(r.Context(), entry.UserID) {
		render.Fail(w, errEntryNotFound)
		return nil, false
	}
	return entry, true
}

// ownedProject loads projectID and checks that it belongs to userID.
func (h *Handler) ownedProject(w http.ResponseWriter, r *http.Request, projectID, userID string) (*models.Project, bool) {
	project, err := h.projects.GetByID(r.Context(), projectID)
	if err != nil {
		render.Internal(w, "get project", err)
		return nil, false
	}
	if project == nil || project.UserID != userID {
		render.Fail(w, errProjectNotFound)
		return nil, false
	}
	return project, true
}

func (h *Handler) publish(action events.Action, e *models.TimeEntry) {
	h.events.Publish(events.Event{
		Table:  events.TableTimeEntries,
		Action: action,
		ID:     e.ID,
		UserID: e.UserID,
	})
}
