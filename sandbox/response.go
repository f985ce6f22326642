package sandbox

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/logging"
	"github.com/vanillake254/BAHATI-YANGU/middleware"
	"github.com/vanillake254/BAHATI-YANGU/types"
)

// detail sends a {"detail": ...} error body
func detail(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, types.DetailResponse{Detail: message})
}

// fieldErrors sends a per-field validation body
func fieldErrors(c *gin.Context, errs ...*FieldError) {
	body := make(map[string][]string, len(errs))
	for _, e := range errs {
		body[e.Field] = append(body[e.Field], e.Message)
	}
	c.JSON(http.StatusBadRequest, body)
}

// handleError maps ledger and game errors to responses
func (s *Server) handleError(c *gin.Context, err error) {
	var fieldErr *FieldError
	if stderrors.As(err, &fieldErr) {
		fieldErrors(c, fieldErr)
		return
	}

	if apperrors.IsAppError(err) {
		detail(c, apperrors.HTTPStatusFromCode(apperrors.GetCode(err)), apperrors.UserMessage(err, "A server error occurred."))
		return
	}

	traceLogger := logging.WithTraceID(s.logger, middleware.GetTraceID(c))
	traceLogger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled sandbox error")
	_ = c.Error(err)
	detail(c, http.StatusInternalServerError, "A server error occurred.")
}
