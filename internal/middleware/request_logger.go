package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger writes one access line per request once the handler chain
// has finished. The level follows the response status.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		level, msg := accessLevel(status)
		if ce := logger.Check(level, msg); ce != nil {
			ce.Write(accessFields(c, status, time.Since(started))...)
		}
	}
}

func accessLevel(status int) (zapcore.Level, string) {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel, "request failed"
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel, "request rejected"
	default:
		return zapcore.InfoLevel, "request served"
	}
}

func accessFields(c *gin.Context, status int, latency time.Duration) []zap.Field {
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}

	fields := []zap.Field{
		zap.String("request_id", GetRequestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("route", route),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Int("bytes", max(c.Writer.Size(), 0)),
		zap.Duration("latency", latency),
		zap.String("client_ip", c.ClientIP()),
		zap.String("user_agent", c.Request.UserAgent()),
	}
	if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
		fields = append(fields, zap.Strings("errors", errs.Errors()))
	}
	return fields
}
