package middleware

import (
	"strconv"
	"strings"

	"github.com/wattforge/ember/core"
)

// CORSConfig defines configuration for the CORS middleware. Ported from
// bolt/middleware/cors.go near-verbatim; the preflight short-circuit
// returns 204 directly rather than calling next, same as the teacher.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig returns permissive defaults: all origins, the common
// HTTP verbs, all headers, no exposed headers, no credentials, 24h cache.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"*"},
		ExposeHeaders: []string{},
		MaxAge:        86400,
	}
}

// CORS returns a middleware handling Cross-Origin Resource Sharing with
// default configuration.
func CORS() core.Middleware {
	return CORSWithConfig(DefaultCORSConfig())
}

// CORSWithConfig returns a CORS middleware with custom configuration.
func CORSWithConfig(config CORSConfig) core.Middleware {
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = []string{"*"}
	}
	if len(config.AllowMethods) == 0 {
		config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}
	}
	if len(config.AllowHeaders) == 0 {
		config.AllowHeaders = []string{"*"}
	}
	if config.MaxAge == 0 {
		config.MaxAge = 86400
	}

	allowMethods := strings.Join(config.AllowMethods, ", ")
	allowHeaders := strings.Join(config.AllowHeaders, ", ")
	exposeHeaders := strings.Join(config.ExposeHeaders, ", ")
	maxAge := strconv.Itoa(config.MaxAge)

	allowAllOrigins := false
	originSet := make(map[string]bool, len(config.AllowOrigins))
	for _, o := range config.AllowOrigins {
		if o == "*" {
			allowAllOrigins = true
			break
		}
		originSet[o] = true
	}

	return func(next core.Handler) core.Handler {
		return func(c *core.Context) error {
			origin := c.GetHeader("Origin")

			var allowOrigin string
			switch {
			case allowAllOrigins:
				allowOrigin = "*"
			case origin != "" && originSet[origin]:
				allowOrigin = origin
			}

			if allowOrigin != "" {
				c.SetHeader("Access-Control-Allow-Origin", allowOrigin)
				if config.AllowCredentials {
					c.SetHeader("Access-Control-Allow-Credentials", "true")
				}
				if len(config.ExposeHeaders) > 0 {
					c.SetHeader("Access-Control-Expose-Headers", exposeHeaders)
				}
			}

			if c.Method() == "OPTIONS" {
				if allowOrigin != "" {
					c.SetHeader("Access-Control-Allow-Methods", allowMethods)
					c.SetHeader("Access-Control-Allow-Headers", allowHeaders)
					c.SetHeader("Access-Control-Max-Age", maxAge)
				}
				c.Response.SetStatus("204")
				return nil
			}

			return next(c)
		}
	}
}
