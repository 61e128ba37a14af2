// Package middleware holds optional cross-cutting core.Middleware
// implementations: structured logging, panic recovery, CORS and rate
// limiting. None of these are part of the required core — a Server works
// with zero middleware registered — but every pack framework ships this
// ambient stack, so ember does too (see SPEC_FULL.md §4.9, §4.14).
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wattforge/ember/core"
)

// LoggerConfig configures Logger. Adapted from
// bolt/middleware/logger.go's LoggerConfig, re-targeted at logrus instead
// of the teacher's stdlib log+encoding/json formatter.
type LoggerConfig struct {
	// Logger is the logrus instance entries are emitted through.
	// Default: logrus.StandardLogger().
	Logger *logrus.Logger
}

// DefaultLoggerConfig returns the default LoggerConfig.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{Logger: logrus.StandardLogger()}
}

// Logger returns a middleware that emits one structured logrus entry per
// request: method, path, status, duration and session id when present.
func Logger() core.Middleware {
	return LoggerWithConfig(DefaultLoggerConfig())
}

// LoggerWithConfig returns a Logger middleware with custom configuration.
func LoggerWithConfig(config LoggerConfig) core.Middleware {
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return func(next core.Handler) core.Handler {
		return func(c *core.Context) error {
			start := time.Now()
			err := next(c)

			fields := logrus.Fields{
				"method":   c.Method(),
				"path":     c.Path(),
				"status":   c.Response.Code,
				"duration": time.Since(start).String(),
			}
			if c.SessionExists() {
				fields["session"] = c.SessionID.String()
			}

			entry := log.WithFields(fields)
			if err != nil {
				entry.WithError(err).Error("request")
			} else {
				entry.Info("request")
			}
			return err
		}
	}
}

// AccessLog returns a middleware that emits one Nginx-style access-log
// line per request through logrus, grounded on
// original_source/src/immortal/mod.rs::log() (§4.14): peer address, date,
// method, status code, response body length, path+query and User-Agent,
// tab-separated in the Rust source's field order, with method, path+query
// and User-Agent passed through core.StripForTerminal. The date is the
// response's Date header; Response.Serialize writes Date only into the
// serialized bytes, so the field reads "<no date>" unless a handler has
// set a Date header itself. Distinct from Logger(), which emits
// logrus's own structured field set instead of reproducing a fixed wire
// format.
func AccessLog() core.Middleware {
	return AccessLogWithConfig(DefaultLoggerConfig())
}

// AccessLogWithConfig returns an AccessLog middleware with custom configuration.
func AccessLogWithConfig(config LoggerConfig) core.Middleware {
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return func(next core.Handler) core.Handler {
		return func(c *core.Context) error {
			err := next(c)

			path := core.StripForTerminal(c.Path())
			if q := c.Request.QueryRaw; q != "" {
				path = path + "?" + core.StripForTerminal(q)
			}

			peer := c.Request.PeerAddr
			if peer == "" {
				peer = "<no socket>"
			}
			date := c.Response.Headers["Date"]
			if date == "" {
				date = "<no date>"
			}
			userAgent := c.GetHeader("User-Agent")
			if userAgent == "" {
				userAgent = "<no user-agent>"
			}

			line := strings.Join([]string{
				peer,
				date,
				core.StripForTerminal(c.Method()),
				c.Response.Code,
				strconv.Itoa(len(c.Response.Body)),
				path,
				core.StripForTerminal(userAgent),
			}, "\t")

			log.Info(line)
			return err
		}
	}
}
