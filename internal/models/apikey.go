package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// APIKey authenticates a device against the webhook endpoint.
// Only the SHA-256 hash of the key is stored.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"key_name"`
	KeyHash    string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// NewAPIKey generates a random key for userID.
// Returns the key model and the plaintext key, which is shown once.
func NewAPIKey(userID, name string) (*APIKey, string, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return nil, "", err
	}
	plainKey := hex.EncodeToString(keyBytes)

	return &APIKey{
		UserID:    userID,
		Name:      name,
		KeyHash:   HashAPIKey(plainKey),
		CreatedAt: time.Now(),
	}, plainKey, nil
}

// HashAPIKey returns the hex-encoded SHA-256 of a plaintext key.
func HashAPIKey(plainKey string) string {
	hash := sha256.Sum256([]byte(plainKey))
	return hex.EncodeToString(hash[:])
}
