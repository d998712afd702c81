package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core/gamification"
)

type gamificationApi struct {
	baseApi
	points *gamification.Service
}

func registerGamificationAPI(g *echo.Group, authed []echo.MiddlewareFunc, api gamificationApi) {
	g.GET("/progress", api.summary, authed...)
}

func (api *gamificationApi) summary(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	sum, err := api.points.Summary(ctx.Request().Context(), actor.ID)
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, sum)
}
