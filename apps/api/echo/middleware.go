package echoapi

import (
	"github.com/labstack/echo/v4"
)

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if contextPortal(ctx).Actor().IsAdmin() {
			return next(ctx)
		}
		return errHttpForbidden
	}
}
