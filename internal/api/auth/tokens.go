package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/good-yellow-bee/focusdial/internal/models"
	"github.com/good-yellow-bee/focusdial/internal/storage"
)

// ErrInvalidRefreshToken is returned for unknown, expired or revoked tokens.
var ErrInvalidRefreshToken = errors.New("refresh token expired, revoked or unknown")

// TokenService handles refresh token operations.
type TokenService struct {
	tokens storage.TokenRepository
	users  storage.UserRepository
	ttl    time.Duration
}

// NewTokenService creates a new token service.
func NewTokenService(store storage.Storage, ttl time.Duration) *TokenService {
	return &TokenService{
		tokens: store.Tokens(),
		users:  store.Users(),
		ttl:    ttl,
	}
}

// CreateRefreshToken stores a new refresh token for the user and returns the
// plaintext value for the client. Only its hash is persisted.
func (s *TokenService) CreateRefreshToken(ctx context.Context, userID string) (string, error) {
	token, plain, err := models.NewRefreshToken(userID, s.ttl)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return plain, nil
}

// ValidateRefreshToken returns the user owning a live refresh token.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, plain string) (*models.User, error) {
	token, err := s.tokens.GetByTokenHash(ctx, models.HashToken(plain))
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if token == nil || !token.IsValid() {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}
	return user, nil
}

// RevokeRefreshToken revokes a refresh token.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, plain string) error {
	return s.tokens.RevokeByTokenHash(ctx, models.HashToken(plain))
}

// RevokeAllUserTokens revokes all refresh tokens for a user.
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// RotateRefreshToken revokes old and issues a replacement for userID.
func (s *TokenService) RotateRefreshToken(ctx context.Context, old, userID string) (string, error) {
	if err := s.RevokeRefreshToken(ctx, old); err != nil {
		log.Printf("auth: revoke rotated refresh token: %v", err)
	}
	return s.CreateRefreshToken(ctx, userID)
}

// RunCleanup deletes expired refresh tokens every interval until ctx ends.
func (s *TokenService) RunCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.tokens.DeleteExpired(ctx)
			if err != nil {
				log.Printf("auth: delete expired refresh tokens: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("auth: deleted %d expired refresh tokens", n)
			}
		}
	}
}
