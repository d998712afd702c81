package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/invite"
)

type inviteApi struct {
	baseApi
	invites *invite.Service
}

func registerInviteAPI(g *echo.Group, authed []echo.MiddlewareFunc, api inviteApi) {
	ig := g.Group("/invites")

	// un-authed endpoints
	ig.POST("/validate", api.validateToken)

	// admin endpoints
	ag := ig.Group("", chain(authed, adminMiddleware())...)
	ag.POST("", api.create)
	ag.GET("", api.query)
}

// create invites someone, or re-sends the pending invite they already have.
func (api *inviteApi) create(ctx echo.Context) error {
	var data invite.NewInvite
	if err := api.bind(ctx, &data, "NewInvite"); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	inv, reused, err := api.invites.Create(ctx.Request().Context(), data, actor)
	if err != nil {
		return errors.Wrap(err, "creating invite")
	}
	if reused {
		return ctx.JSON(http.StatusOK, inv)
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *inviteApi) query(ctx echo.Context) error {
	invites, err := api.invites.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing invites")
	}
	if invites == nil {
		invites = []invite.Invite{}
	}
	return ctx.JSON(http.StatusOK, invites)
}

func (api *inviteApi) validateToken(ctx echo.Context) error {
	var data ValidateInviteRequest
	if err := api.bind(ctx, &data, "ValidateInviteRequest"); err != nil {
		return err
	}
	res, err := api.invites.Validate(ctx.Request().Context(), data.Token)
	if err != nil {
		return errors.Wrap(err, "validating invite")
	}
	return ctx.JSON(http.StatusOK, res)
}

type ValidateInviteRequest struct {
	Token string `json:"token"`
}

func (vr *ValidateInviteRequest) Validate(*validator.Validate) error {
	vr.Token = core.CleanString(vr.Token)
	return nil
}
