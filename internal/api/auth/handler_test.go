package auth

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

func setupHandler(t *testing.T) (*Handler, *storage.SQLiteStorage) {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "auth.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("Secret-Pass-123"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	user := models.NewUser("alice", "alice@example.com", models.RoleUser)
	user.PasswordHash = string(hash)
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	h := NewHandler(store, NewJWTService(testSecret, time.Minute), NewLockoutTracker(3, time.Minute), time.Hour)
	return h, store
}

func post(h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeTokens(t *testing.T, rec *httptest.ResponseRecorder) TokenResponse {
	t.Helper()
	var resp struct {
		Data TokenResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Data
}

func TestLogin(t *testing.T) {
	h, _ := setupHandler(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"success", LoginRequest{"alice", "Secret-Pass-123"}, http.StatusOK},
		{"wrong password", LoginRequest{"alice", "nope"}, http.StatusUnauthorized},
		{"unknown user", LoginRequest{"bob", "Secret-Pass-123"}, http.StatusUnauthorized},
		{"missing fields", LoginRequest{}, http.StatusBadRequest},
		{"bad json", "{", http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(h.Login, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
			if tc.want == http.StatusOK {
				tokens := decodeTokens(t, rec)
				if tokens.AccessToken == "" || tokens.RefreshToken == "" {
					t.Error("expected both tokens")
				}
				if tokens.TokenType != "Bearer" || tokens.ExpiresIn != 60 {
					t.Errorf("token meta = %q/%d", tokens.TokenType, tokens.ExpiresIn)
				}
			}
		})
	}
}

func TestLogin_Lockout(t *testing.T) {
	h, _ := setupHandler(t)

	for i := 0; i < 3; i++ {
		post(h.Login, LoginRequest{"alice", "wrong"})
	}

	rec := post(h.Login, LoginRequest{"alice", "Secret-Pass-123"})
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	h, _ := setupHandler(t)

	first := decodeTokens(t, post(h.Login, LoginRequest{"alice", "Secret-Pass-123"}))

	rec := post(h.Refresh, RefreshRequest{first.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d: %s", rec.Code, rec.Body.String())
	}
	second := decodeTokens(t, rec)
	if second.RefreshToken == first.RefreshToken {
		t.Error("refresh token should rotate")
	}

	// the rotated-out token is dead
	if rec := post(h.Refresh, RefreshRequest{first.RefreshToken}); rec.Code != http.StatusUnauthorized {
		t.Errorf("reuse status = %d, want 401", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	h, _ := setupHandler(t)
	tokens := decodeTokens(t, post(h.Login, LoginRequest{"alice", "Secret-Pass-123"}))

	if rec := post(h.Logout, RefreshRequest{tokens.RefreshToken}); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if rec := post(h.Refresh, RefreshRequest{tokens.RefreshToken}); rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout = %d, want 401", rec.Code)
	}
	if rec := post(h.Logout, RefreshRequest{}); rec.Code != http.StatusBadRequest {
		t.Errorf("logout without token = %d, want 400", rec.Code)
	}
}
