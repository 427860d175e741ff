// Package projects serves CRUD endpoints for a user's projects.
package projects

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
)

var (
	errProjectNotFound = render.NewNotFound("project not found")
	errNameTaken       = render.NewConflict("project name or device id already exists")
)

// ProjectResponse is the wire form of a project.
type ProjectResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Color           string `json:"color"`
	DeviceProjectID string `json:"device_project_id,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func projectToResponse(p *models.Project) *ProjectResponse {
	return &ProjectResponse{
		ID:              p.ID,
		Name:            p.Name,
		Color:           p.Color,
		DeviceProjectID: p.DeviceProjectID,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.Format(time.RFC3339),
	}
}

// Handler serves /api/v1/projects.
type Handler struct {
	projects storage.ProjectRepository
	events   events.Publisher
}

// NewHandler creates a projects handler publishing changes to pub.
func NewHandler(store storage.Storage, pub events.Publisher) *Handler {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Handler{projects: store.Projects(), events: pub}
}

// CreateRequest is the request body for creating a project.
type CreateRequest struct {
	Name            string `json:"name"`
	Color           string `json:"color"`
	DeviceProjectID string `json:"device_project_id"`
}

// UpdateRequest is the request body for updating a project. Nil fields are
// left unchanged.
type UpdateRequest struct {
	Name            *string `json:"name"`
	Color           *string `json:"color"`
	DeviceProjectID *string `json:"device_project_id"`
}

// List returns the caller's projects ordered by name.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListByUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		render.Internal(w, "list projects", err)
		return
	}

	resp := make([]*ProjectResponse, len(projects))
	for i, p := range projects {
		resp[i] = projectToResponse(p)
	}
	render.OK(w, resp)
}

// Create adds a project for the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !render.Decode(w, r, &req) {
		return
	}
	if err := ValidateName(req.Name); err != nil {
		render.Fail(w, render.NewValidationError(err.Error()))
		return
	}
	if req.Color != "" {
		if err := ValidateColor(req.Color); err != nil {
			render.Fail(w, render.NewValidationError(err.Error()))
			return
		}
	}

	ctx := r.Context()
	project := models.NewProject(middleware.GetUserID(ctx), strings.TrimSpace(req.Name), req.Color)
	project.DeviceProjectID = strings.TrimSpace(req.DeviceProjectID)

	if err := h.projects.Create(ctx, project); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			render.Fail(w, errNameTaken)
			return
		}
		render.Internal(w, "create project", err)
		return
	}

	log.Printf("project created: %s (%s)", project.Name, project.ID)
	h.publish(events.ActionInsert, project)
	render.Created(w, projectToResponse(project))
}

// GetByID returns one of the caller's projects.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	project, ok := h.load(w, r)
	if !ok {
		return
	}
	render.OK(w, projectToResponse(project))
}

// Update renames, recolours or relinks a project.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !render.Decode(w, r, &req) {
		return
	}
	project, ok := h.load(w, r)
	if !ok {
		return
	}

	if req.Name != nil {
		if err := ValidateName(*req.Name); err != nil {
			render.Fail(w, render.NewValidationError(err.Error()))
			return
		}
		project.Name = strings.TrimSpace(*req.Name)
	}
	if req.Color != nil {
		if err := ValidateColor(*req.Color); err != nil {
			render.Fail(w, render.NewValidationError(err.Error()))
			return
		}
		project.Color = *req.Color
	}
	if req.DeviceProjectID != nil {
		project.DeviceProjectID = strings.TrimSpace(*req.DeviceProjectID)
	}
	project.UpdatedAt = time.Now()

	if err := h.projects.Update(r.Context(), project); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			render.Fail(w, errNameTaken)
			return
		}
		render.Internal(w, "update project", err)
		return
	}

	h.publish(events.ActionUpdate, project)
	render.OK(w, projectToResponse(project))
}

// Delete removes a project. Projects with time entries cannot be deleted.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	project, ok := h.load(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	n, err := h.projects.CountEntries(ctx, project.ID)
	if err != nil {
		render.Internal(w, "delete project: count entries", err)
		return
	}
	if n > 0 {
		render.Fail(w, inUse(n))
		return
	}

	if err := h.projects.Delete(ctx, project.ID); err != nil {
		switch {
		case errors.Is(err, storage.ErrReferenced):
			// an entry was added since the count
			n, _ = h.projects.CountEntries(ctx, project.ID)
			render.Fail(w, inUse(n))
		case errors.Is(err, storage.ErrNotFound):
			render.Fail(w, errProjectNotFound)
		default:
			render.Internal(w, "delete project", err)
		}
		return
	}

	log.Printf("project deleted: %s (%s)", project.Name, project.ID)
	h.publish(events.ActionDelete, project)
	render.NoContent(w)
}

func inUse(n int64) *render.Error {
	return render.NewConflict("project has time entries").With("time_entries_count", n)
}

// load fetches {id} and hides projects the caller does not own.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	project, err := h.projects.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		render.Internal(w, "get project", err)
		return nil, false
	}
	if project == nil || !middleware.CanAccess(r.Context(), project.UserID) {
		render.Fail(w, errProjectNotFound)
		return nil, false
	}
	return project, true
}

func (h *Handler) publish(action events.Action, p *models.Project) {
	h.events.Publish(events.Event{
		Table:  events.TableProjects,
		Action: action,
		ID:     p.ID,
		UserID: p.UserID,
		At:     time.Now(),
	})
}
