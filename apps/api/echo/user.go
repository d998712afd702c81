package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/auth"
	"github.com/trezcool/escola/core/user"
)

type authApi struct {
	baseApi
	users    *user.Service
	sessions *auth.Manager
	tokens   tokenIssuer
}

func registerAuthAPI(g *echo.Group, authed []echo.MiddlewareFunc, api authApi) {
	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)
	ag.POST("/signup", api.signUp)

	// authed endpoints
	sg := ag.Group("", authed...)
	sg.POST("/token-refresh", api.refreshToken)
	sg.POST("/logout", api.logout)
	sg.GET("/session", api.session)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := api.bind(ctx, &data, "LoginRequest"); err != nil {
		return err
	}

	usr, err := api.users.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		if errors.Cause(err) == user.ErrInvalidCredentials {
			return errAuthenticationFailed
		}
		return errors.Wrap(err, "authenticating")
	}
	resp, err := api.startSession(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

// signUp registers an invited person and signs them in.
func (api *authApi) signUp(ctx echo.Context) error {
	var data user.SignUp
	if err := api.bind(ctx, &data, "SignUp"); err != nil {
		return err
	}

	usr, _, err := api.users.SignUp(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing up")
	}
	resp, err := api.startSession(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, resp)
}

// startSession resolves a new session for usr: a user without a role cannot sign in.
func (api *authApi) startSession(ctx echo.Context, usr user.User) (LoginResponse, error) {
	s, err := api.sessions.Resolve(ctx.Request().Context(), uuid.New().String(), usr.ID)
	if err != nil {
		if errors.Cause(err) == auth.ErrAccessRevoked {
			return LoginResponse{}, errAccessRevoked
		}
		return LoginResponse{}, errors.Wrap(err, "resolving session")
	}

	actor := user.Actor{ID: usr.ID, Email: usr.Email, Name: usr.Name, Role: s.Role()}
	token, err := api.tokens.sign(api.tokens.claims(s.ID(), actor))
	if err != nil {
		return LoginResponse{}, errors.Wrap(err, "generating token")
	}
	return LoginResponse{Token: token, User: actor, Session: s}, nil
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !api.tokens.refreshable(claims) {
		return errRefreshExpired
	}

	// the session middleware already re-resolved the role
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	s, err := getContextSession(ctx)
	if err != nil {
		return err
	}

	token, err := api.tokens.sign(api.tokens.claims(s.ID(), actor, claims.OrigIssuedAt))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: actor, Session: s})
}

func (api *authApi) logout(ctx echo.Context) error {
	s, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	if err = api.sessions.SignOut(ctx.Request().Context(), s); err != nil {
		return errors.Wrap(err, "signing out")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) session(ctx echo.Context) error {
	s, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SessionResponse{Session: s, User: actor})
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token   string        `json:"token"`
		User    user.Actor    `json:"user"`
		Session *auth.Session `json:"session"`
	}

	SessionResponse struct {
		Session *auth.Session `json:"session"`
		User    user.Actor    `json:"user"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
