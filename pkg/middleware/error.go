package middleware

import (
	"marketplace-ledger/pkg/errutil"
	"marketplace-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error attached with c.Error as the JSON error body.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		be := errutil.As(last.Err)
		status := be.Code.HTTPStatus()
		if status >= 500 {
			logger.FromContext(c.Request.Context()).Error("request failed",
				zap.String("path", c.FullPath()),
				zap.Error(last.Err),
			)
		}
		c.AbortWithStatusJSON(status, be.JSON())
	}
}
