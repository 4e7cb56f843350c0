package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/m-proto/loginpage/internal/pkg/apperror"
	"github.com/m-proto/loginpage/internal/pkg/response"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered",
					slog.Any("error", err),
					slog.String("path", c.Request.URL.Path),
					slog.String("request_id", c.GetString(RequestIDKey)),
					slog.String("stack", string(debug.Stack())),
				)
				response.Error(c, apperror.InternalError("Unexpected server error", "Try again later"))
				c.Abort()
			}
		}()
		c.Next()
	}
}
