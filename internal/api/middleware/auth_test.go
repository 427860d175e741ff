package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/good-yellow-bee/focusdial/internal/api/auth"
	"github.com/good-yellow-bee/focusdial/internal/models"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!")

func TestJWTAuth_ValidToken(t *testing.T) {
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)
	user := &models.User{ID: "user-123", Username: "testuser", Role: models.RoleAdmin}

	token, err := jwtService.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	var gotUserID, gotUsername string
	var gotRole models.Role
	var gotClaims *auth.Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		gotUsername = GetUsername(r.Context())
		gotRole = GetRole(r.Context())
		gotClaims = GetClaims(r.Context())
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	JWTAuth(jwtService)(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotUserID != user.ID || gotUsername != user.Username || gotRole != user.Role {
		t.Errorf("context = %q/%q/%q, want %q/%q/%q", gotUserID, gotUsername, gotRole, user.ID, user.Username, user.Role)
	}
	if gotClaims == nil || gotClaims.UserID != user.ID {
		t.Errorf("claims = %+v", gotClaims)
	}
}

func TestJWTAuth_Rejects(t *testing.T) {
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)
	expired := auth.NewJWTService(testSecret, -time.Minute)
	stale, err := expired.GenerateToken(&models.User{ID: "u1", Role: models.RoleUser})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"garbage", "Bearer not-a-token"},
		{"expired", "Bearer " + stale},
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			JWTAuth(jwtService)(handler).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := httptest.NewRequest("GET", "/", nil).Context()

	if GetUserID(ctx) != "" || GetUsername(ctx) != "" || GetRole(ctx) != "" || GetClaims(ctx) != nil {
		t.Error("expected empty identity on a bare context")
	}
}
