package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/good-yellow-bee/focusdial/internal/api/webhook"
	"github.com/good-yellow-bee/focusdial/internal/events"
	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
	"github.com/good-yellow-bee/focusdial/internal/timeline"
	"github.com/good-yellow-bee/focusdial/internal/tracker"
)

func newStore(t *testing.T) (*storage.SQLiteStorage, string, *models.User) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "focusctl.db")
	store := storage.NewSQLiteStorage(path)
	if err := store.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	user := models.NewUser("alice", "alice@example.com", models.RoleUser)
	user.PasswordHash = "x"
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return store, path, user
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestProjectCommands(t *testing.T) {
	store, path, user := newStore(t)
	ctx := context.Background()

	if err := run(t, "project", "create", "--db", path, "--user", "alice", "--name", "Writing", "--color", "#22AA88", "--device-id", "3"); err != nil {
		t.Fatalf("create: %v", err)
	}
	p, err := store.Projects().GetByDeviceID(ctx, user.ID, "3")
	if err != nil || p == nil {
		t.Fatalf("project not stored: %v", err)
	}
	if p.Name != "Writing" || p.Color != "#22AA88" {
		t.Errorf("project = %+v", p)
	}

	if err := run(t, "project", "create", "--db", path, "--user", "alice", "--name", "Bad", "--color", "red"); err == nil {
		t.Error("expected colour validation error")
	}

	entry := models.NewTimeEntry(user.ID, p.ID, time.Now().Add(-time.Hour))
	if err := store.Entries().Create(ctx, entry); err != nil {
		t.Fatal(err)
	}
	err = run(t, "project", "delete", p.ID, "--db", path, "--user", "alice")
	if err == nil || !strings.Contains(err.Error(), "still has 1 time entries") {
		t.Errorf("delete with entries: err = %v", err)
	}

	if err := run(t, "entry", "stop", entry.ID, "--db", path, "--user", "alice"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	stopped, _ := store.Entries().GetByID(ctx, entry.ID)
	if stopped.IsRunning() || stopped.Duration == nil || *stopped.Duration < 3599 {
		t.Errorf("entry not stopped: %+v", stopped)
	}
	if err := run(t, "entry", "stop", entry.ID, "--db", path, "--user", "alice"); err == nil {
		t.Error("expected error stopping a stopped entry")
	}
}

func TestAPIKeyCommands(t *testing.T) {
	store, path, user := newStore(t)
	ctx := context.Background()

	if err := run(t, "apikey", "create", "--db", path, "--user", "alice", "--name", "desk"); err != nil {
		t.Fatalf("create: %v", err)
	}
	keys, err := store.APIKeys().ListByUser(ctx, user.ID)
	if err != nil || len(keys) != 1 {
		t.Fatalf("keys = %v, %v", keys, err)
	}

	if err := run(t, "apikey", "revoke", keys[0].ID, "--db", path, "--user", "alice"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := run(t, "apikey", "revoke", keys[0].ID, "--db", path, "--user", "alice"); err == nil {
		t.Error("expected not found on second revoke")
	}
}

func TestUnknownUser(t *testing.T) {
	_, path, _ := newStore(t)
	err := run(t, "project", "list", "--db", path, "--user", "mallory")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestMissingDatabase(t *testing.T) {
	err := run(t, "user", "list", "--db", filepath.Join(t.TempDir(), "nope.db"))
	if err == nil || !strings.Contains(err.Error(), "database file not found") {
		t.Errorf("err = %v", err)
	}
}

func TestSendWebhook(t *testing.T) {
	store, _, user := newStore(t)
	ctx := context.Background()

	key, plain, err := models.NewAPIKey(user.ID, "desk")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.APIKeys().Create(ctx, key); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	svc := tracker.NewService(store, events.Nop{}, tracker.UpdateNever)
	svc.SetClock(func() time.Time { return now })
	srv := httptest.NewServer(http.HandlerFunc(webhook.NewHandler(svc, nil).Handle))
	defer srv.Close()

	payload := webhook.Payload{Action: "start_timer", DeviceProjectID: "1", ProjectName: "Writing", ProjectColor: "#22AA88"}
	resp, status, err := sendWebhook(ctx, srv.Client(), srv.URL, plain, payload)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if status != http.StatusOK || !resp.Success || resp.EntryID == "" {
		t.Fatalf("start = %d %+v", status, resp)
	}

	now = now.Add(25 * time.Minute)
	payload.Action = "stop_timer"
	resp, status, err = sendWebhook(ctx, srv.Client(), srv.URL, plain, payload)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if status != http.StatusOK || resp.Duration == nil || *resp.Duration != 1500 {
		t.Fatalf("stop = %d %+v", status, resp)
	}

	resp, status, err = sendWebhook(ctx, srv.Client(), srv.URL, "wrong", payload)
	if err != nil {
		t.Fatalf("unauthorized: %v", err)
	}
	if status != http.StatusUnauthorized || resp.Success {
		t.Errorf("unauthorized = %d %+v", status, resp)
	}
}

func TestRenderTimeline(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	now := day.Add(14 * time.Hour)
	p := &models.Project{ID: "p1", Name: "Writing", Color: "#22AA88"}

	done := models.NewTimeEntry("u1", "p1", day.Add(9*time.Hour))
	done.Stop(day.Add(10*time.Hour + 30*time.Minute))
	running := models.NewTimeEntry("u1", "p1", day.Add(13*time.Hour))
	list := []*models.TimeEntry{running, done}

	rng := timeline.Resolve(timeline.Today, now, list)
	out := renderTimeline(timeline.Today, rng, list, map[string]*models.Project{"p1": p}, now, 60)

	for _, want := range []string{"Today", "Writing", "2h30m00s", "08:00 AM"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTimeline_Empty(t *testing.T) {
	now := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	rng := timeline.Resolve(timeline.Yesterday, now, nil)
	out := renderTimeline(timeline.Yesterday, rng, nil, nil, now, 40)
	if !strings.Contains(out, "no time tracked") {
		t.Errorf("output = %s", out)
	}
}

func TestColumn(t *testing.T) {
	start := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	rng := timeline.DateRange{Start: start, End: start.Add(10 * time.Hour)}

	tests := []struct {
		at   time.Time
		want int
	}{
		{start.Add(-time.Hour), 0},
		{start, 0},
		{start.Add(5 * time.Hour), 50},
		{start.Add(10 * time.Hour), 100},
		{start.Add(12 * time.Hour), 100},
	}
	for _, tt := range tests {
		if got := column(rng, tt.at, 100); got != tt.want {
			t.Errorf("column(%s) = %d, want %d", tt.at.Format(time.Kitchen), got, tt.want)
		}
	}
	if got := column(timeline.DateRange{Start: start, End: start}, start, 100); got != 0 {
		t.Errorf("empty range column = %d", got)
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := map[int64]string{
		0:    "0m00s",
		59:   "0m59s",
		1500: "25m00s",
		3723: "1h02m03s",
	}
	for in, want := range tests {
		if got := formatSeconds(in); got != want {
			t.Errorf("formatSeconds(%d) = %q, want %q", in, got, want)
		}
	}
}
