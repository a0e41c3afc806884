package handlers

import (
	"net/http"

	"github.com/geocoder89/registrationhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.RequestIDKey)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader(middlewares.RequestIDHeader)
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

// RespondInternal echoes err to the caller and records it on the gin context for the request log.
func RespondInternal(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	RespondError(ctx, http.StatusInternalServerError, "internal_error", err.Error(), nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

// RespondNoContent answers 204. net/http drops any body on a 204, so an
// outcome worth reporting travels in a header.
func RespondNoContent(ctx *gin.Context) {
	ctx.Status(http.StatusNoContent)
}
