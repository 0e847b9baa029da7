package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Client-facing error messages. Diagnostics stay in the logs.
const (
	MsgMissingPrompt   = "Missing prompt"
	MsgInternalError   = "Internal error"
	MsgTooManyRequests = "Too many requests, please try again later"
	MsgRequestTooLarge = "Request too large"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error        string `json:"error"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
}

// RespondError sends {"error": message} and aborts the chain
func RespondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}

// BadRequest sends a 400 error
func BadRequest(c *gin.Context, message string) {
	RespondError(c, http.StatusBadRequest, message)
}

// InternalError sends a 500 error
func InternalError(c *gin.Context) {
	RespondError(c, http.StatusInternalServerError, MsgInternalError)
}

// RequestTooLarge sends a 413 error
func RequestTooLarge(c *gin.Context) {
	RespondError(c, http.StatusRequestEntityTooLarge, MsgRequestTooLarge)
}

// TooManyRequests sends a 429 error with a retry hint
func TooManyRequests(c *gin.Context, retryAfterMs int64) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
		Error:        MsgTooManyRequests,
		RetryAfterMs: retryAfterMs,
	})
}

// Recovery turns a panic into the generic 500 body
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, _ any) {
		InternalError(c)
	})
}
