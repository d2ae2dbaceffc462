package logging

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

const userHashLen = 16

// UserHasher turns user IDs into stable pseudonyms for logs and span tags.
type UserHasher struct {
	key []byte
}

// NewUserHasher creates a hasher keyed with key. An empty key yields a
// hasher that redacts every ID.
func NewUserHasher(key string) *UserHasher {
	return &UserHasher{key: []byte(key)}
}

// Hash returns the truncated hex HMAC-SHA256 of userID
func (h *UserHasher) Hash(userID string) string {
	if userID == "" {
		return ""
	}
	if h == nil || len(h.key) == 0 {
		return "redacted"
	}
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))[:userHashLen]
}

// Attr returns a slog attribute carrying the hashed user ID
func (h *UserHasher) Attr(userID string) slog.Attr {
	return slog.String("user", h.Hash(userID))
}
