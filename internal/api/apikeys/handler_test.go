package apikeys

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/focusdial/internal/api/auth"
	"github.com/good-yellow-bee/focusdial/internal/api/middleware"
	"github.com/good-yellow-bee/focusdial/internal/events"
	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
)

func setup(t *testing.T) (*storage.SQLiteStorage, *Handler, *models.User) {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "keys.db"))
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
	return store, NewHandler(store, events.Nop{}), user
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

func TestCreate_ReturnsKeyOnce(t *testing.T) {
	store, h, user := setup(t)

	rec := do(h.Create, http.MethodPost, "/api-keys", "/api-keys", CreateRequest{Name: " Desk dial "}, user.ID)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var created struct {
		Data struct {
			ID      string `json:"id"`
			KeyName string `json:"key_name"`
			Key     string `json:"key"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Data.KeyName != "Desk dial" {
		t.Errorf("key_name = %q", created.Data.KeyName)
	}
	if len(created.Data.Key) != 64 {
		t.Errorf("key length = %d, want 64", len(created.Data.Key))
	}

	stored, err := store.APIKeys().GetByKeyHash(context.Background(), models.HashAPIKey(created.Data.Key))
	if err != nil || stored == nil || stored.ID != created.Data.ID {
		t.Fatalf("stored key = %+v, err = %v", stored, err)
	}

	rec = do(h.List, http.MethodGet, "/api-keys", "/api-keys", nil, user.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, created.Data.Key) || strings.Contains(body, stored.KeyHash) {
		t.Error("listing leaks key material")
	}
	if !strings.Contains(body, created.Data.ID) {
		t.Error("listing misses created key")
	}
}

func TestCreate_Validation(t *testing.T) {
	_, h, user := setup(t)

	for _, name := range []string{"", "   ", strings.Repeat("k", 101)} {
		rec := do(h.Create, http.MethodPost, "/api-keys", "/api-keys", CreateRequest{Name: name}, user.ID)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("name %q: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestList_Empty(t *testing.T) {
	_, h, user := setup(t)

	rec := do(h.List, http.MethodGet, "/api-keys", "/api-keys", nil, user.ID)
	if got := strings.TrimSpace(rec.Body.String()); got != `{"data":[]}` {
		t.Errorf("body = %s", got)
	}
}

func TestDelete(t *testing.T) {
	store, h, user := setup(t)
	key, _, err := models.NewAPIKey(user.ID, "dial")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.APIKeys().Create(context.Background(), key); err != nil {
		t.Fatal(err)
	}

	if rec := do(h.Delete, http.MethodDelete, "/api-keys/{id}", "/api-keys/"+key.ID, nil, "someone-else"); rec.Code != http.StatusNotFound {
		t.Errorf("foreign delete: status = %d, want 404", rec.Code)
	}
	if rec := do(h.Delete, http.MethodDelete, "/api-keys/{id}", "/api-keys/"+key.ID, nil, user.ID); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
	if rec := do(h.Delete, http.MethodDelete, "/api-keys/{id}", "/api-keys/"+key.ID, nil, user.ID); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", rec.Code)
	}
}
