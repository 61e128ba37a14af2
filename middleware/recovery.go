package middleware

import (
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/wattforge/ember/core"
)

// Recovery returns a middleware that recovers from panics in the handler
// chain, logs the panic and stack trace through logrus, and responds 500.
// Ported from bolt/middleware/recovery.go's recover()+debug.Stack()
// pattern; the spec leaves handler panics as the caller's responsibility
// (§7 "Runtime policy"), so this middleware is opt-in, not part of core.
func Recovery() core.Middleware {
	return RecoveryWithConfig(DefaultRecoveryConfig())
}

// RecoveryConfig configures Recovery.
type RecoveryConfig struct {
	Logger *logrus.Logger
}

// DefaultRecoveryConfig returns the default RecoveryConfig.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{Logger: logrus.StandardLogger()}
}

// RecoveryWithConfig returns a Recovery middleware with custom configuration.
func RecoveryWithConfig(config RecoveryConfig) core.Middleware {
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return func(next core.Handler) core.Handler {
		return func(c *core.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("stack", string(debug.Stack())).Errorf("ember: panic recovered: %v", r)
					c.Response.SetStatus("500")
					c.Response.SetHeader("Content-Type", "text/html")
					c.Response.Body = []byte("<h1>500: Internal Server Error</h1>")
					err = nil
				}
			}()
			return next(c)
		}
	}
}
