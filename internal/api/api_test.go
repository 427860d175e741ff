package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
)

// testServer creates a server on a temp SQLite database.
func testServer(t *testing.T) (*Server, storage.Storage) {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "api.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate storage: %v", err)
	}

	cfg := &Config{
		Address:          ":0",
		JWTSecret:        []byte("test-jwt-secret-32-bytes-long!!"),
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  24 * time.Hour,
		RateLimitPerIP:   100,
		RateLimitPerUser: 1000,
		WebhookRateLimit: 1000,
	}

	srv, err := New(cfg, Deps{Storage: store})
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	t.Cleanup(srv.dash.Close)
	return srv, store
}

// createTestUser creates a user in the database for testing.
func createTestUser(t *testing.T, store storage.Storage, username, password string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.NewUser(username, username+"@test.com", role)
	user.ID = "test-" + username
	user.PasswordHash = string(hash)
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

type client struct {
	t       *testing.T
	srv     *Server
	token   string
	refresh string
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (c *client) expect(rec *httptest.ResponseRecorder, status int, v any) {
	c.t.Helper()
	if rec.Code != status {
		c.t.Fatalf("status = %d, want %d; body: %s", rec.Code, status, rec.Body.String())
	}
	if v != nil {
		if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
			c.t.Fatalf("decode: %v", err)
		}
	}
}

func login(t *testing.T, srv *Server, username, password string) *client {
	t.Helper()
	c := &client{t: t, srv: srv}
	var resp struct {
		Data struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			TokenType    string `json:"token_type"`
		} `json:"data"`
	}
	c.expect(c.do(http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": username, "password": password}), http.StatusOK, &resp)
	if resp.Data.AccessToken == "" || resp.Data.RefreshToken == "" || resp.Data.TokenType != "Bearer" {
		t.Fatalf("login response = %+v", resp.Data)
	}
	c.token = resp.Data.AccessToken
	c.refresh = resp.Data.RefreshToken
	return c
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := testServer(t)
	c := &client{t: t, srv: srv}

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		if rec := c.do(http.MethodGet, path, nil); rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, body: %s", path, rec.Code, rec.Body)
		}
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv, store := testServer(t)
	createTestUser(t, store, "testuser", "TestPassword123!", models.RoleUser)
	c := &client{t: t, srv: srv}

	if rec := c.do(http.MethodPost, "/api/v1/auth/login", `{"username":"testuser","password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d", rec.Code)
	}
	if rec := c.do(http.MethodPost, "/api/v1/auth/login", `{"username":"nobody","password":"x"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: status = %d", rec.Code)
	}
}

func TestProtectedEndpoints_NoToken(t *testing.T) {
	srv, _ := testServer(t)
	c := &client{t: t, srv: srv}

	for _, path := range []string{"/api/v1/users/me", "/api/v1/projects", "/api/v1/entries", "/api/v1/timeline", "/api/v1/dashboard", "/api/v1/api-keys"} {
		if rec := c.do(http.MethodGet, path, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, rec.Code)
		}
	}
}

func TestAdminEndpoint(t *testing.T) {
	srv, store := testServer(t)
	createTestUser(t, store, "admin", "AdminPassword123!", models.RoleAdmin)
	createTestUser(t, store, "user", "UserPassword123!", models.RoleUser)

	if rec := login(t, srv, "user", "UserPassword123!").do(http.MethodGet, "/api/v1/users", nil); rec.Code != http.StatusForbidden {
		t.Errorf("user: status = %d, want 403", rec.Code)
	}
	if rec := login(t, srv, "admin", "AdminPassword123!").do(http.MethodGet, "/api/v1/users", nil); rec.Code != http.StatusOK {
		t.Errorf("admin: status = %d, want 200", rec.Code)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	srv, store := testServer(t)
	createTestUser(t, store, "testuser", "TestPassword123!", models.RoleUser)
	c := login(t, srv, "testuser", "TestPassword123!")

	var refreshed struct {
		Data struct {
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	c.expect(c.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": c.refresh}), http.StatusOK, &refreshed)

	c.expect(c.do(http.MethodPost, "/api/v1/auth/logout", map[string]string{"refresh_token": refreshed.Data.RefreshToken}), http.StatusNoContent, nil)

	if rec := c.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": refreshed.Data.RefreshToken}); rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout: status = %d, want 401", rec.Code)
	}
}

// TestDeviceFlow drives the dial through the webhook and reads the result
// back through the REST API.
func TestDeviceFlow(t *testing.T) {
	srv, store := testServer(t)
	createTestUser(t, store, "owner", "OwnerPassword123!", models.RoleUser)
	c := login(t, srv, "owner", "OwnerPassword123!")

	var key struct {
		Data struct {
			Key string `json:"key"`
		} `json:"data"`
	}
	c.expect(c.do(http.MethodPost, "/api/v1/api-keys", map[string]string{"name": "desk dial"}), http.StatusCreated, &key)

	dial := &client{t: t, srv: srv, token: key.Data.Key}
	payload := map[string]string{
		"action":            "start_timer",
		"device_project_id": "dial-1",
		"project_name":      "Deep Work",
		"project_color":     "#FF5733",
	}

	var started struct {
		Success bool   `json:"success"`
		EntryID string `json:"entry_id"`
	}
	dial.expect(dial.do(http.MethodPost, "/api/webhook", payload), http.StatusOK, &started)
	if !started.Success || started.EntryID == "" {
		t.Fatalf("start = %+v", started)
	}

	payload["action"] = "stop_timer"
	dial.expect(dial.do(http.MethodPost, "/webhook", payload), http.StatusOK, nil)
	if rec := dial.do(http.MethodPost, "/api/webhook", payload); rec.Code != http.StatusNotFound {
		t.Errorf("second stop: status = %d, want 404", rec.Code)
	}
	if rec := (&client{t: t, srv: srv, token: "bogus"}).do(http.MethodPost, "/api/webhook", payload); rec.Code != http.StatusUnauthorized {
		t.Errorf("bogus key: status = %d, want 401", rec.Code)
	}

	var list struct {
		Data []struct {
			ID          string `json:"id"`
			ProjectID   string `json:"project_id"`
			ProjectName string `json:"project_name"`
			Running     bool   `json:"running"`
		} `json:"data"`
	}
	c.expect(c.do(http.MethodGet, "/api/v1/entries?range=today", nil), http.StatusOK, &list)
	if len(list.Data) != 1 || list.Data[0].ID != started.EntryID || list.Data[0].Running {
		t.Fatalf("entries = %+v", list.Data)
	}
	if list.Data[0].ProjectName != "Deep Work" {
		t.Errorf("project name = %q", list.Data[0].ProjectName)
	}

	var summary struct {
		Data struct {
			ProjectCount int `json:"project_count"`
		} `json:"data"`
	}
	c.expect(c.do(http.MethodGet, "/api/v1/dashboard", nil), http.StatusOK, &summary)
	if summary.Data.ProjectCount != 1 {
		t.Errorf("project_count = %d", summary.Data.ProjectCount)
	}

	c.expect(c.do(http.MethodGet, "/api/v1/timeline?range=week_to_date", nil), http.StatusOK, nil)

	rec := c.do(http.MethodDelete, "/api/v1/projects/"+list.Data[0].ProjectID, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("delete referenced project: status = %d, want 409", rec.Code)
	}
}

func TestWebhookReady(t *testing.T) {
	srv, _ := testServer(t)
	c := &client{t: t, srv: srv}

	var body map[string]string
	c.expect(c.do(http.MethodGet, "/api/webhook", nil), http.StatusOK, &body)
	if body["status"] != "ready" {
		t.Errorf("body = %v", body)
	}
}
