package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type UserClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// Actor is the identity recorded on review decisions.
func (c UserClaims) Actor() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Sub
}

// VerifyFunc checks a raw bearer token and returns its claims.
type VerifyFunc func(ctx context.Context, rawToken string) (*UserClaims, error)

// NewOIDCVerifier discovers issuer and verifies ID tokens issued for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (VerifyFunc, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	return func(ctx context.Context, rawToken string) (*UserClaims, error) {
		idToken, err := verifier.Verify(ctx, rawToken)
		if err != nil {
			return nil, err
		}
		var claims UserClaims
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("cannot parse claims: %w", err)
		}
		return &claims, nil
	}, nil
}

// Authentication rejects requests without a valid bearer token and stores the
// token's actor as the user id.
func Authentication(logger ectologger.Logger, verify VerifyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracing.StartSpan(c.Request().Context(), "middleware.Authentication")
			defer span.End()

			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				logger.WithContext(ctx).Warn("request is missing bearer token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer")
			}

			verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			claims, err := verify(verifyCtx, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("token is invalid")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx = appctx.SetUserID(ctx, claims.Actor())
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
