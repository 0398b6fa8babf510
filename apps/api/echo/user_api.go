package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/user"
)

func registerUserAPI(g *echo.Group, authed []echo.MiddlewareFunc) {
	mg := g.Group("/me", authed...)
	mg.GET("", me)
	mg.PUT("", updateMe)

	ug := g.Group("/users", authed...)
	ug.GET("", queryUsers, adminMiddleware)

	// detail endpoints
	dg := ug.Group("/:id", ctxUserOrAdminMiddleware)
	dg.GET("", retrieveUser)
	dg.PUT("", updateUser)
	dg.DELETE("", destroyUser, adminMiddleware)
}

// ctxUserOrAdminMiddleware loads the user of the path into the context; only the user itself or an admin may pass.
func ctxUserOrAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		p := contextPortal(ctx)
		actor := p.Actor()
		id := ctx.Param("id")
		if !actor.IsAdmin() && actor.ID != id {
			return errHttpForbidden
		}
		usr, ok := p.User(id)
		if !ok {
			return errHttpNotFound
		}
		ctx.Set("object", usr)
		return next(ctx)
	}
}

func me(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextPortal(ctx).Actor())
}

func updateMe(ctx echo.Context) error {
	p := contextPortal(ctx)
	return saveUser(ctx, p.Actor().ID)
}

func queryUsers(ctx echo.Context) error {
	p := contextPortal(ctx)
	switch user.Role(ctx.QueryParam("role")) {
	case user.RoleStudent:
		return ctx.JSON(http.StatusOK, p.Students())
	case user.RoleAdmin:
		admins := make([]user.User, 0)
		for _, usr := range p.Users() {
			if usr.IsAdmin() {
				admins = append(admins, usr)
			}
		}
		return ctx.JSON(http.StatusOK, admins)
	default:
		return ctx.JSON(http.StatusOK, p.Users())
	}
}

func retrieveUser(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctx.Get("object"))
}

func updateUser(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.New("user object not found in echo.Context")
	}
	return saveUser(ctx, usr.ID)
}

func saveUser(ctx echo.Context, id string) error {
	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	p := contextPortal(ctx)
	if err := p.UpdateUser(ctx.Request().Context(), id, data); err != nil {
		return err
	}
	if id == p.Actor().ID {
		return ctx.JSON(http.StatusOK, p.Actor())
	}
	usr, ok := p.User(id)
	if !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, usr)
}

func destroyUser(ctx echo.Context) error {
	if err := contextPortal(ctx).DeleteUser(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
