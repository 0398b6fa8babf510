package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/classroom"
	"github.com/trezcool/classroom/core/portal"
	"github.com/trezcool/classroom/core/user"
)

type (
	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	authApi struct {
		s *server
	}
)

func registerAuthAPI(g *echo.Group, authed []echo.MiddlewareFunc, s *server) {
	api := authApi{s: s}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.GET("/classes", api.registrationClasses)

	// authed endpoints
	ag.POST("/logout", api.logout, authed...)
	ag.POST("/token-refresh", api.refreshToken, authed...)
}

func (api *authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	sess := api.s.newSession()
	if _, err := sess.Register(ctx.Request().Context(), data); err != nil {
		sess.Close()
		return err
	}
	return api.respondWithSession(ctx, http.StatusCreated, sess)
}

func (api *authApi) login(ctx echo.Context) error {
	var data user.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err := data.Validate(api.s.deps.Validate); err != nil {
		return err
	}

	sess := api.s.newSession()
	if _, err := sess.SignIn(ctx.Request().Context(), data); err != nil {
		sess.Close()
		return err
	}
	return api.respondWithSession(ctx, http.StatusOK, sess)
}

func (api *authApi) respondWithSession(ctx echo.Context, code int, sess *user.Session) error {
	token, usr, err := api.s.openSession(ctx.Request().Context(), sess)
	if err != nil {
		_ = sess.SignOut(ctx.Request().Context())
		sess.Close()
		return errors.Wrap(err, "opening session")
	}
	return ctx.JSON(code, LoginResponse{Token: token, User: usr})
}

func (api *authApi) logout(ctx echo.Context) error {
	cs := contextSession(ctx)
	if cs, ok := api.s.sessions.remove(cs.id); ok {
		cs.close(ctx.Request().Context())
	}
	return ctx.NoContent(http.StatusNoContent)
}

// refreshToken moves the session to a new token with a fresh expiry.
func (api *authApi) refreshToken(ctx echo.Context) error {
	cs := contextSession(ctx)
	if _, ok := api.s.sessions.remove(cs.id); !ok {
		return errSessionExpired
	}
	usr := cs.portal.Actor()
	claims := api.s.userClaims(usr, cs.id)
	token, err := api.s.generateToken(claims)
	if err != nil {
		cs.close(ctx.Request().Context())
		return errors.Wrap(err, "generating token")
	}
	cs.expiresAt = expiry(claims)
	api.s.sessions.add(cs)
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *authApi) registrationClasses(ctx echo.Context) error {
	classes, err := portal.RegistrationClasses(ctx.Request().Context(), api.s.deps.Store, api.s.deps.Validate, api.s.deps.Logger)
	if err != nil {
		return errors.Wrap(err, "loading classes")
	}
	if classes == nil {
		classes = []classroom.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}
