package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vanillake254/BAHATI-YANGU/httpclient"
)

// TraceIDKey is the key used to store trace ID in context
const TraceIDKey = "trace_id"

// TraceID echoes the caller's X-Trace-ID, or mints one, so both sides of a
// request log the same id
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(httpclient.TraceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(httpclient.TraceIDHeader, traceID)

		c.Next()
	}
}

// GetTraceID extracts trace ID from gin context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if str, ok := traceID.(string); ok {
			return str
		}
	}
	return ""
}
