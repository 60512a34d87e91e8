package middleware

import (
	"strconv"
	"time"

	"github.com/denosaur/dinosaurs/pkg/logger"
	"github.com/denosaur/dinosaurs/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// Route kinds reported in request logs and the http_requests_total counter.
const (
	KindAPI    = "api"
	KindStatic = "static"
	KindOps    = "ops"
)

const routeKindKey = "route_kind"

// SetRouteKind records which part of the dispatch chain answered the request.
func SetRouteKind(c *gin.Context, kind string) {
	c.Set(routeKindKey, kind)
}

// RouteKind returns the kind recorded for the request. Requests that matched a
// registered gin route without setting one are operational endpoints.
func RouteKind(c *gin.Context) string {
	if kind := c.GetString(routeKindKey); kind != "" {
		return kind
	}
	if c.FullPath() != "" {
		return KindOps
	}
	return KindStatic
}

// RequestLogger logs one structured line per request and counts it by route kind and status.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kind := RouteKind(c)
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(kind, strconv.Itoa(status)).Inc()
		logger.With(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start).String(),
			"kind", kind,
			"client", c.ClientIP(),
		).Info("request")
	}
}
