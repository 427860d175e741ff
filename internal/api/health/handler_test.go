package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/good-yellow-bee/focusdial/internal/storage"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string               { return s.name }
func (s stubChecker) Check(context.Context) error { return s.err }

type stubVersioner int

func (v stubVersioner) SchemaVersion(context.Context) (int, error) { return int(v), nil }

func ready(t *testing.T, h *Handler) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, resp
}

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		want     int
		status   string
	}{
		{"no checkers", nil, http.StatusOK, "ready"},
		{"all ok", []Checker{stubChecker{name: "a"}, stubChecker{name: "b"}}, http.StatusOK, "ready"},
		{"one failing", []Checker{stubChecker{name: "a"}, stubChecker{name: "b", err: errors.New("down")}}, http.StatusServiceUnavailable, "not_ready"},
		{"old schema", []Checker{NewSchemaChecker(stubVersioner(0), 1)}, http.StatusServiceUnavailable, "not_ready"},
		{"current schema", []Checker{NewSchemaChecker(stubVersioner(1), 1)}, http.StatusOK, "ready"},
		{"nil db", []Checker{NewSQLiteChecker(nil)}, http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := ready(t, NewHandler(tt.checkers...))
			if code != tt.want || resp.Status != tt.status {
				t.Errorf("got %d %q, want %d %q", code, resp.Status, tt.want, tt.status)
			}
			if len(resp.Checks) != len(tt.checkers) {
				t.Errorf("checks = %v", resp.Checks)
			}
		})
	}
}

func TestReady_SQLite(t *testing.T) {
	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "health.db"))
	if err := store.Open(); err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatal(err)
	}

	h := NewHandler(NewSQLiteChecker(store.DB()))
	h.RegisterChecker(NewSchemaChecker(store, storage.LatestSchemaVersion()))

	code, resp := ready(t, h)
	if code != http.StatusOK {
		t.Errorf("status = %d, checks = %v", code, resp.Checks)
	}
	if resp.Checks["sqlite"] != "ok" || resp.Checks["schema"] != "ok" {
		t.Errorf("checks = %v", resp.Checks)
	}
}

func TestLiveAndHealth(t *testing.T) {
	h := NewHandler()
	for path, fn := range map[string]http.HandlerFunc{"/health": h.Health, "/health/live": h.Live} {
		rec := httptest.NewRecorder()
		fn(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}
}
