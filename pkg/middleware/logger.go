package middleware

import (
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/context"
)

// Logger writes one access log line per request. Health probes and metric
// scrapes log at debug level; server errors log at error level.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			if err := next(c); err != nil {
				// the error handler writes the status we want to log
				c.Error(err)
			}

			req := c.Request()
			ctx := req.Context()
			status := c.Response().Status

			entry := logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":    context.GetRequestID(ctx),
				"user_id":       context.GetUserID(ctx),
				"method":        req.Method,
				"route":         c.Path(),
				"uri":           req.RequestURI,
				"status":        status,
				"remote_ip":     c.RealIP(),
				"duration_ms":   time.Since(started).Milliseconds(),
				"response_size": c.Response().Size,
			})

			switch {
			case status >= 500:
				entry.Error("Request failed")
			case isQuietRoute(c.Path()):
				entry.Debug("Request")
			default:
				entry.Info("Request")
			}
			return nil
		}
	}
}

func isQuietRoute(route string) bool {
	switch route {
	case "/metrics", "/api/v1/health", "/api/v1/health/live", "/api/v1/health/ready":
		return true
	}
	return false
}
