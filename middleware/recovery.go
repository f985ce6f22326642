package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vanillake254/BAHATI-YANGU/logging"
	"github.com/vanillake254/BAHATI-YANGU/types"
)

// Recovery turns a handler panic into a 500 {"detail": ...} response
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				traceLogger := logging.WithTraceID(logger, GetTraceID(c))
				traceLogger.Error().
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Interface("error", err).
					Str("stack", string(debug.Stack())).
					Msg("Panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, types.DetailResponse{
					Detail: "A server error occurred.",
				})
			}
		}()

		c.Next()
	}
}
