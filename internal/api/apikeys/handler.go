// Package apikeys serves management endpoints for device API keys.
package apikeys

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/focusdial/internal/api/middleware"
	"github.com/good-yellow-bee/focusdial/internal/api/render"
	"github.com/good-yellow-bee/focusdial/internal/events"
	"github.com/good-yellow-bee/focusdial/internal/metrics"
	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
)

const maxNameLength = 100

var errKeyNotFound = render.NewNotFound("api key not found")

// CreateResponse is returned once, when a key is generated.
type CreateResponse struct {
	*models.APIKey
	Key string `json:"key"`
}

// CreateRequest is the request body for generating a key.
type CreateRequest struct {
	Name string `json:"name"`
}

// Handler serves /api/v1/api-keys.
type Handler struct {
	keys   storage.APIKeyRepository
	events events.Publisher
}

// NewHandler creates an API key handler.
func NewHandler(store storage.Storage, pub events.Publisher) *Handler {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Handler{keys: store.APIKeys(), events: pub}
}

// List returns the caller's keys.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListByUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		render.Internal(w, "list api keys", err)
		return
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	render.OK(w, keys)
}

// Create generates a key. The plaintext key is only part of this response.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !render.Decode(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		render.Fail(w, render.NewValidationError("name is required"))
		return
	case len(name) > maxNameLength:
		render.Fail(w, render.NewValidationError("name must be at most 100 characters"))
		return
	}

	userID := middleware.GetUserID(r.Context())
	key, plain, err := models.NewAPIKey(userID, name)
	if err != nil {
		render.Internal(w, "generate api key", err)
		return
	}
	if err := h.keys.Create(r.Context(), key); err != nil {
		render.Internal(w, "create api key", err)
		return
	}

	log.Printf("api key created: %s (%s) for user %s", key.Name, key.ID, userID)
	metrics.AuthTokensIssued.WithLabelValues("api_key").Inc()
	h.events.Publish(events.Event{
		Table:  events.TableAPIKeys,
		Action: events.ActionInsert,
		ID:     key.ID,
		UserID: userID,
	})
	render.Created(w, CreateResponse{APIKey: key, Key: plain})
}

// Delete revokes a key. Keys of other users are reported as missing.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.keys.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			render.Fail(w, errKeyNotFound)
			return
		}
		render.Internal(w, "delete api key", err)
		return
	}

	log.Printf("api key revoked: %s", id)
	h.events.Publish(events.Event{
		Table:  events.TableAPIKeys,
		Action: events.ActionDelete,
		ID:     id,
		UserID: userID,
	})
	render.NoContent(w)
}
