package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tujenge/kazipro/core/user"
)

// requireCapability only lets through actors whose role holds the capability,
// per the fixed role permission table.
func requireCapability(cap user.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Can(cap) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
