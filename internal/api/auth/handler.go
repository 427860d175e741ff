package auth

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/good-yellow-bee/focusdial/internal/api/render"
	"github.com/good-yellow-bee/focusdial/internal/metrics"
	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
)

// Handler serves login, token refresh and logout.
type Handler struct {
	users   storage.UserRepository
	jwt     *JWTService
	tokens  *TokenService
	lockout *LockoutTracker
}

// NewHandler creates a new auth handler.
func NewHandler(store storage.Storage, jwt *JWTService, lockout *LockoutTracker, refreshTTL time.Duration) *Handler {
	return &Handler{
		users:   store.Users(),
		jwt:     jwt,
		tokens:  NewTokenService(store, refreshTTL),
		lockout: lockout,
	}
}

// Tokens exposes the refresh token service for background cleanup.
func (h *Handler) Tokens() *TokenService {
	return h.tokens
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the request body for token refresh and logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Login exchanges a username and password for a token pair.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !render.Decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		render.Fail(w, render.NewBadRequest("username and password required"))
		return
	}

	if h.lockout.IsLocked(req.Username) {
		metrics.AuthAttemptsTotal.WithLabelValues("locked").Inc()
		log.Printf("login blocked: account %s locked for %v", req.Username, h.lockout.RemainingLockoutTime(req.Username).Round(time.Second))
		render.Fail(w, render.ErrAccountLocked)
		return
	}

	ctx := r.Context()
	user, err := h.users.GetByUsername(ctx, req.Username)
	if err != nil {
		log.Printf("login error: get user: %v", err)
		render.Fail(w, render.ErrInternalServer)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		if h.lockout.RecordFailure(req.Username) {
			log.Printf("login failed: %s now locked", req.Username)
		} else {
			log.Printf("login failed: bad credentials for %s", req.Username)
		}
		render.Fail(w, render.ErrUnauthorized)
		return
	}

	h.lockout.ClearFailures(req.Username)
	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()

	resp, err := h.issue(user, func() (string, error) { return h.tokens.CreateRefreshToken(ctx, user.ID) })
	if err != nil {
		log.Printf("login error: %v", err)
		render.Fail(w, render.ErrInternalServer)
		return
	}
	log.Printf("login success: user %s", user.Username)
	render.OK(w, resp)
}

// Refresh rotates a refresh token and issues a new access token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !render.Decode(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		render.Fail(w, render.NewBadRequest("refresh_token required"))
		return
	}

	ctx := r.Context()
	user, err := h.tokens.ValidateRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if !errors.Is(err, ErrInvalidRefreshToken) {
			log.Printf("refresh error: %v", err)
		}
		render.Fail(w, render.ErrInvalidToken)
		return
	}

	resp, err := h.issue(user, func() (string, error) {
		return h.tokens.RotateRefreshToken(ctx, req.RefreshToken, user.ID)
	})
	if err != nil {
		log.Printf("refresh error: %v", err)
		render.Fail(w, render.ErrInternalServer)
		return
	}
	render.OK(w, resp)
}

// Logout revokes the given refresh token. Unknown tokens are not an error.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !render.Decode(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		render.Fail(w, render.NewBadRequest("refresh_token required"))
		return
	}

	if err := h.tokens.RevokeRefreshToken(r.Context(), req.RefreshToken); err != nil {
		log.Printf("logout: revoke token: %v", err)
	}
	render.NoContent(w)
}

func (h *Handler) issue(user *models.User, refresh func() (string, error)) (*TokenResponse, error) {
	access, err := h.jwt.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refreshToken, err := refresh()
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	metrics.AuthTokensIssued.WithLabelValues("access").Inc()
	metrics.AuthTokensIssued.WithLabelValues("refresh").Inc()

	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    h.jwt.TTLSeconds(),
		TokenType:    "Bearer",
	}, nil
}
