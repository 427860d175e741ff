// Package webhook serves the endpoint the Focus Dial calls when a timer is
// started or stopped.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/good-yellow-bee/focusdial/internal/api/auth"
	"github.com/good-yellow-bee/focusdial/internal/api/middleware"
	"github.com/good-yellow-bee/focusdial/internal/api/render"
	"github.com/good-yellow-bee/focusdial/internal/metrics"
	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/tracker"
)

// Payload is the JSON body sent by the device.
type Payload struct {
	Action          string `json:"action"`
	DeviceProjectID string `json:"device_project_id"`
	ProjectName     string `json:"project_name"`
	ProjectColor    string `json:"project_color"`
	Description     string `json:"description,omitempty"`
}

// Response is the body returned to the device. Devices only look at
// Success and Message, so errors use the same flat shape.
type Response struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	EntryID  string `json:"entry_id,omitempty"`
	Duration *int64 `json:"duration,omitempty"`
}

// Timer is the part of the tracker the handler needs.
type Timer interface {
	Authenticate(ctx context.Context, apiKey string) (string, error)
	Handle(ctx context.Context, req tracker.Request) (*tracker.Result, error)
}

// Handler serves /api/webhook.
type Handler struct {
	timer   Timer
	limiter *middleware.RateLimiter
}

// NewHandler creates a webhook handler. A nil limiter disables throttling.
func NewHandler(timer Timer, limiter *middleware.RateLimiter) *Handler {
	return &Handler{timer: timer, limiter: limiter}
}

// Ready answers GET probes from the device setup screen.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	render.Raw(w, http.StatusOK, map[string]string{
		"status":    "ready",
		"message":   "Focus Dial webhook endpoint is ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Handle authenticates the device key and applies the timer action.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, _ := auth.BearerToken(r)

	if h.limiter != nil {
		bucket := "key:" + models.HashAPIKey(key)
		if key == "" {
			bucket = "ip:" + middleware.ClientIP(r)
		}
		if !h.limiter.Allow(bucket) {
			secs := int(h.limiter.Retry(bucket).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			h.fail(w, "", "throttled", http.StatusTooManyRequests, "Too many requests, slow down.")
			return
		}
	}

	userID, err := h.timer.Authenticate(ctx, key)
	if err != nil {
		h.reject(w, "", err)
		return
	}

	var p Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, render.MaxBodyBytes)).Decode(&p); err != nil {
		h.fail(w, "", "invalid", http.StatusBadRequest, "Invalid JSON body")
		return
	}

	res, err := h.timer.Handle(ctx, tracker.Request{
		UserID:          userID,
		Action:          p.Action,
		DeviceProjectID: p.DeviceProjectID,
		ProjectName:     p.ProjectName,
		ProjectColor:    p.ProjectColor,
		Description:     p.Description,
	})
	if err != nil {
		h.reject(w, p.Action, err)
		return
	}

	metrics.WebhookRequestsTotal.WithLabelValues(string(res.Action), "ok").Inc()
	render.Raw(w, http.StatusOK, Response{
		Success:  true,
		Message:  res.Message(),
		EntryID:  res.EntryID,
		Duration: res.Duration,
	})
}

func (h *Handler) reject(w http.ResponseWriter, action string, err error) {
	var te *tracker.Error
	if !errors.As(err, &te) {
		te = &tracker.Error{Kind: tracker.KindInternal, Message: "internal error", Err: err}
	}

	var (
		status int
		result string
	)
	switch te.Kind {
	case tracker.KindUnauthorized:
		status, result = http.StatusUnauthorized, "unauthorized"
	case tracker.KindValidation:
		status, result = http.StatusBadRequest, "invalid"
	case tracker.KindNotFound:
		status, result = http.StatusNotFound, "not_found"
	case tracker.KindConflict:
		status, result = http.StatusConflict, "conflict"
	default:
		status, result = http.StatusInternalServerError, "error"
		log.Printf("webhook: %v", err)
	}
	h.fail(w, action, result, status, te.Message)
}

func (h *Handler) fail(w http.ResponseWriter, action, result string, status int, msg string) {
	if a, ok := tracker.ParseAction(action); ok {
		action = string(a)
	} else {
		action = "unknown"
	}
	metrics.WebhookRequestsTotal.WithLabelValues(action, result).Inc()
	render.Raw(w, status, Response{Error: msg})
}
