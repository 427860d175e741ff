package entries

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/focusdial/internal/api/auth"
	"github.com/good-yellow-bee/focusdial/internal/api/middleware"
	"github.com/good-yellow-bee/focusdial/internal/events"
	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
	"github.com/good-yellow-bee/focusdial/internal/timeline"
)

var fixedNow = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

type recorder struct {
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.events = append(r.events, e)
}

type fixture struct {
	store   *storage.SQLiteStorage
	handler *Handler
	events  *recorder
	user    *models.User
	other   *models.User
	project *models.Project
}

func setup(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "entries.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	f := &fixture{store: store, events: &recorder{}}
	for _, name := range []string{"alice", "bob"} {
		u := models.NewUser(name, name+"@example.com", models.RoleUser)
		u.PasswordHash = "x"
		if err := store.Users().Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		if f.user == nil {
			f.user = u
		} else {
			f.other = u
		}
	}

	f.project = models.NewProject(f.user.ID, "Client Work", "#3366FF")
	if err := store.Projects().Create(ctx, f.project); err != nil {
		t.Fatalf("create project: %v", err)
	}

	settings := timeline.NewSettings(time.UTC, 8)
	settings.SetClock(func() time.Time { return fixedNow })
	f.handler = NewHandler(store, f.events, settings)
	return f
}

func (f *fixture) entry(t *testing.T, start time.Time, end *time.Time) *models.TimeEntry {
	t.Helper()
	e := models.NewTimeEntry(f.user.ID, f.project.ID, start)
	if end != nil {
		e.Stop(*end)
	}
	if err := f.store.Entries().Create(context.Background(), e); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return e
}

func do(h http.HandlerFunc, method, pattern, path string, body any, userID string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	ctx := middleware.WithClaims(req.Context(), &auth.Claims{UserID: userID, Role: models.RoleUser})

	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Data
}

func decodeEntry(t *testing.T, rec *httptest.ResponseRecorder) EntryResponse {
	t.Helper()
	return decode[EntryResponse](t, rec)
}

func TestCreate(t *testing.T) {
	f := setup(t)
	start := fixedNow.Add(-2 * time.Hour)
	end := fixedNow.Add(-30 * time.Minute)

	rec := do(f.handler.Create, http.MethodPost, "/entries", "/entries", CreateRequest{
		ProjectID:   f.project.ID,
		StartTime:   &start,
		EndTime:     &end,
		Description: "  invoicing  ",
	}, f.user.ID)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	resp := decodeEntry(t, rec)
	if resp.Duration == nil || *resp.Duration != 5400 {
		t.Errorf("duration = %v, want 5400", resp.Duration)
	}
	if resp.Description != "invoicing" {
		t.Errorf("description = %q", resp.Description)
	}
	if resp.ProjectColor != "#3366FF" || resp.Running {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(f.events.events) != 1 || f.events.events[0].Action != events.ActionInsert {
		t.Errorf("events = %+v", f.events.events)
	}
}

func TestCreate_Running(t *testing.T) {
	f := setup(t)

	rec := do(f.handler.Create, http.MethodPost, "/entries", "/entries",
		CreateRequest{ProjectID: f.project.ID}, f.user.ID)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := decodeEntry(t, rec)
	if !resp.Running || resp.Duration != nil {
		t.Errorf("expected running entry, got %+v", resp)
	}
	if !resp.StartTime.Equal(fixedNow) {
		t.Errorf("start = %v, want %v", resp.StartTime, fixedNow)
	}
}

func TestCreate_Invalid(t *testing.T) {
	f := setup(t)
	start := fixedNow
	before := fixedNow.Add(-time.Minute)

	tests := []struct {
		name   string
		body   CreateRequest
		userID string
		want   int
	}{
		{"missing project", CreateRequest{}, f.user.ID, http.StatusBadRequest},
		{"unknown project", CreateRequest{ProjectID: "nope"}, f.user.ID, http.StatusNotFound},
		{"foreign project", CreateRequest{ProjectID: f.project.ID}, f.other.ID, http.StatusNotFound},
		{"end before start", CreateRequest{ProjectID: f.project.ID, StartTime: &start, EndTime: &before}, f.user.ID, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(f.handler.Create, http.MethodPost, "/entries", "/entries", tt.body, tt.userID)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
	if len(f.events.events) != 0 {
		t.Errorf("rejected creates published %d events", len(f.events.events))
	}
}

func TestList_Filters(t *testing.T) {
	f := setup(t)
	yesterday := fixedNow.Add(-24 * time.Hour)
	yEnd := yesterday.Add(time.Hour)
	f.entry(t, yesterday, &yEnd)
	running := f.entry(t, fixedNow.Add(-time.Hour), nil)

	tests := []struct {
		query string
		want  int
		code  int
	}{
		{"", 2, http.StatusOK},
		{"?range=today", 1, http.StatusOK},
		{"?range=Yesterday", 1, http.StatusOK},
		{"?active=true", 1, http.StatusOK},
		{"?active=false", 1, http.StatusOK},
		{"?invoiced=true", 0, http.StatusOK},
		{"?project_id=" + f.project.ID, 2, http.StatusOK},
		{"?start=" + fixedNow.Add(-2*time.Hour).Format(time.RFC3339), 1, http.StatusOK},
		{"?range=fortnight", 0, http.StatusBadRequest},
		{"?active=maybe", 0, http.StatusBadRequest},
		{"?start=yesterday", 0, http.StatusBadRequest},
		{"?limit=0", 0, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(f.handler.List, http.MethodGet, "/entries", "/entries"+tt.query, nil, f.user.ID)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.code, rec.Body)
			}
			if tt.code != http.StatusOK {
				return
			}
			list := decode[[]EntryResponse](t, rec)
			if len(list) != tt.want {
				t.Errorf("got %d entries, want %d", len(list), tt.want)
			}
		})
	}

	rec := do(f.handler.List, http.MethodGet, "/entries", "/entries?active=true", nil, f.user.ID)
	list := decode[[]EntryResponse](t, rec)
	if len(list) != 1 || list[0].ID != running.ID || list[0].ProjectName != "Client Work" {
		t.Errorf("active listing = %+v", list)
	}

	rec = do(f.handler.List, http.MethodGet, "/entries", "/entries", nil, f.other.ID)
	if list := decode[[]EntryResponse](t, rec); len(list) != 0 {
		t.Errorf("other user sees %d entries", len(list))
	}
}

func TestGetByID_Ownership(t *testing.T) {
	f := setup(t)
	e := f.entry(t, fixedNow.Add(-time.Hour), nil)

	if rec := do(f.handler.GetByID, http.MethodGet, "/entries/{id}", "/entries/"+e.ID, nil, f.user.ID); rec.Code != http.StatusOK {
		t.Errorf("owner: status = %d", rec.Code)
	}
	if rec := do(f.handler.GetByID, http.MethodGet, "/entries/{id}", "/entries/"+e.ID, nil, f.other.ID); rec.Code != http.StatusNotFound {
		t.Errorf("other: status = %d, want 404", rec.Code)
	}
	if rec := do(f.handler.GetByID, http.MethodGet, "/entries/{id}", "/entries/missing", nil, f.user.ID); rec.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", rec.Code)
	}
}

func TestUpdate_RecomputesDuration(t *testing.T) {
	f := setup(t)
	start := fixedNow.Add(-3 * time.Hour)
	end := fixedNow.Add(-2 * time.Hour)
	e := f.entry(t, start, &end)

	newEnd := fixedNow.Add(-time.Hour)
	desc := "review"
	invoiced := true
	rec := do(f.handler.Update, http.MethodPut, "/entries/{id}", "/entries/"+e.ID, UpdateRequest{
		EndTime:     &newEnd,
		Description: &desc,
		Invoiced:    &invoiced,
	}, f.user.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := decodeEntry(t, rec)
	if resp.Duration == nil || *resp.Duration != 7200 {
		t.Errorf("duration = %v, want 7200", resp.Duration)
	}
	if resp.Description != "review" || !resp.Invoiced {
		t.Errorf("unexpected response %+v", resp)
	}

	stored, _ := f.store.Entries().GetByID(context.Background(), e.ID)
	if stored.Duration == nil || *stored.Duration != 7200 {
		t.Errorf("stored duration = %v", stored.Duration)
	}

	rec = do(f.handler.Update, http.MethodPut, "/entries/{id}", "/entries/"+e.ID,
		UpdateRequest{ClearEnd: true}, f.user.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("reopen: status = %d", rec.Code)
	}
	if resp := decodeEntry(t, rec); !resp.Running || resp.Duration != nil {
		t.Errorf("reopen: %+v", resp)
	}
}

func TestUpdate_Invalid(t *testing.T) {
	f := setup(t)
	start := fixedNow.Add(-time.Hour)
	e := f.entry(t, start, nil)

	early := start.Add(-time.Minute)
	if rec := do(f.handler.Update, http.MethodPut, "/entries/{id}", "/entries/"+e.ID,
		UpdateRequest{EndTime: &early}, f.user.ID); rec.Code != http.StatusBadRequest {
		t.Errorf("end before start: status = %d", rec.Code)
	}

	foreign := models.NewProject(f.other.ID, "Theirs", "#000000")
	if err := f.store.Projects().Create(context.Background(), foreign); err != nil {
		t.Fatal(err)
	}
	if rec := do(f.handler.Update, http.MethodPut, "/entries/{id}", "/entries/"+e.ID,
		UpdateRequest{ProjectID: &foreign.ID}, f.user.ID); rec.Code != http.StatusNotFound {
		t.Errorf("foreign project: status = %d", rec.Code)
	}
}

func TestStop(t *testing.T) {
	f := setup(t)
	e := f.entry(t, fixedNow.Add(-90*time.Second), nil)

	rec := do(f.handler.Stop, http.MethodPost, "/entries/{id}/stop", "/entries/"+e.ID+"/stop", nil, f.user.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := decodeEntry(t, rec)
	if resp.Running || resp.Duration == nil || *resp.Duration != 90 {
		t.Errorf("unexpected response %+v", resp)
	}

	rec = do(f.handler.Stop, http.MethodPost, "/entries/{id}/stop", "/entries/"+e.ID+"/stop", nil, f.user.ID)
	if rec.Code != http.StatusConflict {
		t.Errorf("second stop: status = %d, want 409", rec.Code)
	}
}

func TestDelete(t *testing.T) {
	f := setup(t)
	e := f.entry(t, fixedNow.Add(-time.Hour), nil)

	if rec := do(f.handler.Delete, http.MethodDelete, "/entries/{id}", "/entries/"+e.ID, nil, f.other.ID); rec.Code != http.StatusNotFound {
		t.Errorf("other: status = %d, want 404", rec.Code)
	}
	if rec := do(f.handler.Delete, http.MethodDelete, "/entries/{id}", "/entries/"+e.ID, nil, f.user.ID); rec.Code != http.StatusNoContent {
		t.Errorf("owner: status = %d, want 204", rec.Code)
	}
	if got, _ := f.store.Entries().GetByID(context.Background(), e.ID); got != nil {
		t.Error("entry still stored")
	}
	last := f.events.events[len(f.events.events)-1]
	if last.Action != events.ActionDelete || last.UserID != f.user.ID {
		t.Errorf("last event = %+v", last)
	}
}
