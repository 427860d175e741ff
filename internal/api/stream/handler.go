// Package stream pushes change events to browsers over Server-Sent Events so
// clients can refresh their views without polling.
package stream

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/good-yellow-bee/focusdial/internal/api/middleware"
	"github.com/good-yellow-bee/focusdial/internal/api/render"
	"github.com/good-yellow-bee/focusdial/internal/events"
)

const (
	defaultHeartbeat = 15 * time.Second
	defaultTimeout   = 30 * time.Minute
	retryMillis      = 3000
)

var errNoFlush = errors.New("response writer does not support flushing")

var knownTables = map[string]events.Table{
	string(events.TableProjects):    events.TableProjects,
	string(events.TableTimeEntries): events.TableTimeEntries,
	string(events.TableAPIKeys):     events.TableAPIKeys,
}

// Handler serves GET /api/v1/events.
type Handler struct {
	broker    *events.Broker
	heartbeat time.Duration
	timeout   time.Duration
	seq       atomic.Uint64
}

// NewHandler creates a stream handler fed by broker.
func NewHandler(broker *events.Broker) *Handler {
	return &Handler{broker: broker, heartbeat: defaultHeartbeat, timeout: defaultTimeout}
}

// Stream sends the caller's change events as "change" events. The optional
// tables query parameter is a comma separated list of table names.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		render.Internal(w, "events stream", errNoFlush)
		return
	}

	var tables []events.Table
	if v := r.URL.Query().Get("tables"); v != "" {
		for _, name := range strings.Split(v, ",") {
			t, ok := knownTables[strings.TrimSpace(name)]
			if !ok {
				render.Fail(w, render.NewBadRequest("unknown table %q", name))
				return
			}
			tables = append(tables, t)
		}
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	ch := h.broker.SubscribeUser(ctx, userID, tables...)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sse := NewSSEWriter(w, flusher)
	if err := sse.SendRetry(retryMillis); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	deadline := time.NewTimer(h.timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-deadline.C:
			sse.SendEvent("", "close", `{"reason":"timeout"}`)
			return

		case <-heartbeat.C:
			if err := sse.SendComment("heartbeat " + time.Now().UTC().Format(time.RFC3339)); err != nil {
				return
			}

		case e, ok := <-ch:
			if !ok {
				sse.SendEvent("", "close", `{"reason":"shutdown"}`)
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			id := strconv.FormatUint(h.seq.Add(1), 10)
			if err := sse.SendEvent(id, "change", string(data)); err != nil {
				return
			}
		}
	}
}
