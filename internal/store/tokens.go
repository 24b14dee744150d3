package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	tokenFilePermission = 0600
	defaultTokenTTL     = 10 * time.Minute
	defaultCooldown     = 5 * time.Second
	defaultRetries      = 3
)

// Token is a single provider access token with its expiry.
type Token struct {
	Value  string    `json:"token"`
	Expiry time.Time `json:"expiration"`
}

// Valid reports whether the token exists and has not expired.
func (t Token) Valid() bool {
	return t.Value != "" && time.Now().Before(t.Expiry)
}

// TokenCache owns one provider's access token: it persists it across runs,
// serializes concurrent access and refreshes it on expiry. Providers receive
// a cache instance by injection instead of sharing implicit global state.
type TokenCache struct {
	mu       sync.Mutex
	path     string
	fetch    func(ctx context.Context) (Token, error)
	logger   *zap.Logger
	token    Token
	loaded   bool
	cooldown time.Duration
	retries  int
}

// NewTokenCache creates a cache persisting to path. fetch is called to
// obtain a fresh token whenever the cached one is missing or expired.
func NewTokenCache(path string, fetch func(ctx context.Context) (Token, error), logger *zap.Logger) *TokenCache {
	return &TokenCache{
		path:     path,
		fetch:    fetch,
		logger:   logger,
		cooldown: defaultCooldown,
		retries:  defaultRetries,
	}
}

// GetValidToken returns a non-expired token value, refreshing it if needed.
// Failed refreshes are retried after a cooldown before giving up.
func (c *TokenCache) GetValidToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		c.load()
		c.loaded = true
	}

	for attempt := 0; ; attempt++ {
		if c.token.Valid() {
			return c.token.Value, nil
		}

		token, err := c.fetch(ctx)
		if err == nil && token.Value != "" {
			if token.Expiry.IsZero() {
				token.Expiry = time.Now().Add(defaultTokenTTL)
			}
			c.token = token
			c.save()
			return c.token.Value, nil
		}

		if attempt+1 >= c.retries {
			if err != nil {
				return "", fmt.Errorf("unable to get token: %w", err)
			}
			return "", fmt.Errorf("unable to get token after %d tries", c.retries)
		}

		c.logger.Info("token refresh failed, waiting before retry",
			zap.Duration("cooldown", c.cooldown), zap.Error(err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cooldown):
		}
	}
}

func (c *TokenCache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &c.token); err != nil {
		c.logger.Debug("ignoring unreadable token file", zap.String("path", c.path), zap.Error(err))
		c.token = Token{}
	}
}

func (c *TokenCache) save() {
	data, err := json.Marshal(c.token)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		c.logger.Debug("cannot create token directory", zap.Error(err))
		return
	}
	if err := os.WriteFile(c.path, data, tokenFilePermission); err != nil {
		c.logger.Debug("cannot persist token", zap.String("path", c.path), zap.Error(err))
	}
}
