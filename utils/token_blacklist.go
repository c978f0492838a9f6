package utils

import (
	"context"
	"sync"
	"time"
)

const revokedPrefix = "session:revoked:"

var (
	revoked   = map[string]time.Time{}
	revokedMu sync.RWMutex
)

// RevokeSession marks a session id as signed out until its token would have expired.
func RevokeSession(ctx context.Context, sessionID string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if RedisAvailable() {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := GetRedis().Set(ctx, revokedPrefix+sessionID, "1", ttl).Err(); err == nil {
			return
		}
	}
	revokedMu.Lock()
	revoked[sessionID] = expiresAt
	revokedMu.Unlock()
}

// IsSessionRevoked reports whether the session was signed out before its token expired.
func IsSessionRevoked(ctx context.Context, sessionID string) bool {
	if RedisAvailable() {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := GetRedis().Exists(ctx, revokedPrefix+sessionID).Result()
		if err == nil && n > 0 {
			return true
		}
	}

	revokedMu.RLock()
	expiresAt, ok := revoked[sessionID]
	revokedMu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		revokedMu.Lock()
		delete(revoked, sessionID)
		revokedMu.Unlock()
		return false
	}
	return true
}
