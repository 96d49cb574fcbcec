package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AccessKey is the gin context key a route group sets to name its access
// class, AccessOpen or AccessGuarded.
const AccessKey = "edgelink.access"

const (
	AccessOpen    = "open"
	AccessGuarded = "guarded"

	accessNone     = "none"
	unmatchedRoute = "unmatched"
)

// MarkAccess tags every request in a route group with its access class.
func MarkAccess(class string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(AccessKey, class)
		c.Next()
	}
}

// StatusRequests logs and counts status API requests served by node.
// Unmatched paths share one route label to keep metric cardinality bounded.
func StatusRequests(node string, logger zerolog.Logger) gin.HandlerFunc {
	logger = logger.With().Str("component", "statusapi").Str("node", node).Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		access := c.GetString(AccessKey)
		if access == "" {
			access = accessNone
		}
		RecordHTTPRequest(node, access, c.Request.Method, route, status, elapsed)

		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status == http.StatusUnauthorized:
			event = logger.Warn().Bool("token_rejected", true)
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		case route == "/health":
			event = logger.Trace()
		default:
			event = logger.Debug()
		}
		event.
			Str("access", access).
			Str("route", route).
			Str("method", c.Request.Method).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("status request")
	}
}
