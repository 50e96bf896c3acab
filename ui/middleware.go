package ui

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// setupMiddleware configures Gin middleware shared by every route
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestID())
	s.router.Use(s.instrument())
}

// requestID propagates the caller's X-Request-ID or assigns a fresh one
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// instrument records request counts, latency and in-flight requests
func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		s.metrics.activeRequests.Inc()
		defer s.metrics.activeRequests.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()
		s.metrics.requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		s.metrics.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
		s.logger.Debug("[%s] %s %s -> %d (%s)", c.GetString(requestIDKey), c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}

// rateLimit rejects requests once the shared token bucket is empty
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			s.logger.Warn("[%s] rate limit exceeded for %s", c.GetString(requestIDKey), c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Error:     "rate limit exceeded",
				Code:      "RATE_LIMITED",
				RequestID: c.GetString(requestIDKey),
			})
			return
		}
		c.Next()
	}
}
