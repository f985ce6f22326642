package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vanillake254/BAHATI-YANGU/auth"
	"github.com/vanillake254/BAHATI-YANGU/logging"
)

// LoggingConfig holds logging middleware configuration
type LoggingConfig struct {
	SkipPaths []string // Paths to skip logging (e.g., health checks)
}

// Logging creates a logging middleware
func Logging(logger zerolog.Logger) gin.HandlerFunc {
	return LoggingWithConfig(logger, LoggingConfig{
		SkipPaths: []string{"/health", "/api/health"},
	})
}

// LoggingWithConfig logs one line per request, levelled by status. Request
// bodies are never logged: they carry passwords and M-Pesa numbers.
func LoggingWithConfig(logger zerolog.Logger, config LoggingConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if lo.Contains(config.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		startTime := time.Now()
		c.Next()

		reqLogger := logging.WithFields(logging.WithTraceID(logger, GetTraceID(c)), map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
		if userID, ok := auth.GetUserID(c); ok {
			reqLogger = logging.WithUserID(reqLogger, userID)
		}

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = reqLogger.Error()
		case status >= 400:
			event = reqLogger.Warn()
		default:
			event = reqLogger.Debug()
		}

		event.
			Int("status", status).
			Dur("duration", time.Since(startTime)).
			Int("response_size", c.Writer.Size()).
			Msg("Request completed")

		for _, err := range c.Errors {
			reqLogger.Error().Err(err.Err).Msg("Request error")
		}
	}
}
