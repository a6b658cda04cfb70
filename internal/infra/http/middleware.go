package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"truthcert/internal/observability/logger"
)

const requestIDHeader = "X-Request-Id"

// requestLogger attaches a request scoped logger carrying the request id and
// writes one access line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Header(requestIDHeader, rid)

		log := logger.L().With(logger.RequestID(rid))
		c.Request = c.Request.WithContext(logger.ToContext(c.Request.Context(), log))

		c.Next()

		log.Info("http request",
			logger.Method(c.Request.Method),
			logger.Path(c.Request.URL.Path),
			logger.Status(c.Writer.Status()),
			logger.Duration(time.Since(start)),
			logger.ClientIP(c.ClientIP()),
		)
	}
}

func (s *Server) observeRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		done := s.metrics.TrackRequest(c.Request.Method, routeLabel(c))
		c.Next()
		done(c.Writer.Status())
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	switch c.Request.URL.Path {
	case pathIssue, pathVerify:
		return c.Request.URL.Path
	}
	return "unmatched"
}
