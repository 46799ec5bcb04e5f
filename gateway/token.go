package gateway

import (
	"sync"
	"time"
)

// tokenSafetyMargin keeps us from presenting a token that expires mid-flight.
const tokenSafetyMargin = 10 * time.Second

// TokenCache holds the bearer credential shared by all requests in the
// process. Reads are mutex-guarded; the fetch itself happens outside the lock,
// so two callers racing on a stale token may both fetch. Token exchange is
// idempotent, so the brief duplication is cheaper than serializing callers.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenCache() *TokenCache {
	return &TokenCache{}
}

// Get returns the cached token if it is still comfortably inside its lifetime.
func (c *TokenCache) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !time.Now().Before(c.expiresAt.Add(-tokenSafetyMargin)) {
		return "", false
	}
	return c.token, true
}

func (c *TokenCache) Set(token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = expiresAt
}
