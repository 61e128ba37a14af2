// Package jwt is an optional bearer-token auth middleware for ember,
// ported from bolt/middleware/jwt/jwt.go onto the same
// github.com/golang-jwt/jwt/v5 library the teacher declares.
package jwt

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wattforge/ember/core"
)

var (
	ErrMissingToken      = errors.New("jwt: missing authorization header")
	ErrInvalidAuthHeader = errors.New("jwt: invalid authorization header")
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrInvalidClaims     = errors.New("jwt: invalid claims")
)

// Config configures the JWT middleware.
type Config struct {
	Secret       []byte
	Algorithm    string
	SkipPaths    []string
	ContextKey   string
	CacheTTL     time.Duration
	ErrorHandler func(c *core.Context, err error) error
}

// JWT returns bearer-token authentication middleware with config.
func JWT(config Config) core.Middleware {
	if config.Algorithm == "" {
		config.Algorithm = "HS256"
	}
	if config.ContextKey == "" {
		config.ContextKey = "user"
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 5 * time.Minute
	}

	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	cache := &tokenCache{tokens: make(map[string]*cacheEntry), ttl: config.CacheTTL}
	go cache.cleanup()

	return func(next core.Handler) core.Handler {
		return func(c *core.Context) error {
			if skip[c.Path()] {
				return next(c)
			}

			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				return handleError(c, config.ErrorHandler, ErrMissingToken)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				return handleError(c, config.ErrorHandler, ErrInvalidAuthHeader)
			}
			tokenString := parts[1]

			if claims, ok := cache.get(tokenString); ok {
				c.Set(config.ContextKey, claims)
				return next(c)
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
				if t.Method.Alg() != config.Algorithm {
					return nil, fmt.Errorf("jwt: unexpected signing method: %v", t.Header["alg"])
				}
				return config.Secret, nil
			})
			if err != nil {
				return handleError(c, config.ErrorHandler, err)
			}
			if !token.Valid {
				return handleError(c, config.ErrorHandler, ErrInvalidToken)
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return handleError(c, config.ErrorHandler, ErrInvalidClaims)
			}

			cache.set(tokenString, claims)
			c.Set(config.ContextKey, claims)
			return next(c)
		}
	}
}

func handleError(c *core.Context, handler func(*core.Context, error) error, err error) error {
	if handler != nil {
		return handler(c, err)
	}
	c.Response.SetStatus("401")
	c.Response.SetHeader("Content-Type", "text/html")
	c.Response.Body = []byte("<h1>401: " + err.Error() + "</h1>")
	return nil
}

type cacheEntry struct {
	claims jwt.MapClaims
	stored time.Time
}

type tokenCache struct {
	mu     sync.RWMutex
	tokens map[string]*cacheEntry
	ttl    time.Duration
}

func (tc *tokenCache) get(token string) (jwt.MapClaims, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	e, ok := tc.tokens[token]
	if !ok || time.Since(e.stored) > tc.ttl {
		return nil, false
	}
	return e.claims, true
}

func (tc *tokenCache) set(token string, claims jwt.MapClaims) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.tokens[token] = &cacheEntry{claims: claims, stored: time.Now()}
}

func (tc *tokenCache) cleanup() {
	ticker := time.NewTicker(tc.ttl)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		tc.mu.Lock()
		for k, e := range tc.tokens {
			if now.Sub(e.stored) > tc.ttl {
				delete(tc.tokens, k)
			}
		}
		tc.mu.Unlock()
	}
}
