package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"benchhub/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into a 500 response and logs the stack.
// Debug mode echoes the panic and stack in the body; release mode does not.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			stack := debug.Stack()
			logger.ErrorCtx(c.Request.Context(), "panic in %s %s: %v\n%s",
				c.Request.Method, c.Request.URL.Path, r, stack)

			body := gin.H{"error": "internal server error"}
			if gin.Mode() == gin.DebugMode {
				body["panic"] = fmt.Sprint(r)
				body["stack"] = string(stack)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, body)
		}()

		c.Next()
	}
}
