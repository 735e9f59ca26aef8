package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jcollins5513/bgcut/internal/logger"
	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-Id"

// Logger tags each request with a ksuid, stores a request-scoped entry in
// the request context, and logs the outcome once the handler returns.
func Logger(base *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := ksuid.New().String()
		entry := base.WithField("request_id", id)

		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithLogEntry(c.Request.Context(), entry))

		c.Next()

		entry.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"query":      c.Request.URL.RawQuery,
			"status":     c.Writer.Status(),
			"ip":         c.ClientIP(),
			"cost":       time.Since(start),
			"user_agent": c.Request.UserAgent(),
		}).Info("request")
	}
}
