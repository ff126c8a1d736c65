package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/context"
)

// HeaderUserID carries the reviewer identity when authentication is disabled.
const HeaderUserID = "X-User-ID"

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, c.Path())
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			if userID := req.Header.Get(HeaderUserID); userID != "" {
				ctx = context.SetUserID(ctx, userID)
			}

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
