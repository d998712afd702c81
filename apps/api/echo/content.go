package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core/content"
	"github.com/trezcool/escola/core/feedback"
)

type contentApi struct {
	baseApi
	content  *content.Service
	feedback *feedback.Service
}

func registerContentAPI(g, aulas *echo.Group, authed []echo.MiddlewareFunc, api contentApi) {
	g.POST("/conteudos", api.createConteudo, chain(authed, staffMiddleware())...)

	g.GET("/avisos", api.queryAvisos, authed...)
	g.POST("/avisos", api.createAviso, chain(authed, staffMiddleware())...)

	aulas.GET("/:id/formularios", api.queryFormularios, staffMiddleware())
	fg := g.Group("/formularios", authed...)
	fg.POST("", api.createFormulario, staffMiddleware())
	fg.GET("/:id", api.retrieveFormulario)
	fg.POST("/:id/respostas", api.respond, alunoMiddleware())
	fg.GET("/:id/respostas", api.responses, staffMiddleware())
}

// Conteúdos & avisos

func (api *contentApi) createConteudo(ctx echo.Context) error {
	var data content.NewConteudo
	if err := api.bind(ctx, &data, "NewConteudo"); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	c, err := api.content.CreateConteudo(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating conteudo")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *contentApi) queryAvisos(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	avisos, err := api.content.AvisosFor(ctx.Request().Context(), actor, intParam(ctx, "limit", 0))
	if err != nil {
		return errors.Wrap(err, "listing avisos")
	}
	if avisos == nil {
		avisos = []content.Aviso{}
	}
	return ctx.JSON(http.StatusOK, avisos)
}

func (api *contentApi) createAviso(ctx echo.Context) error {
	var data content.NewAviso
	if err := api.bind(ctx, &data, "NewAviso"); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	a, err := api.content.CreateAviso(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating aviso")
	}
	return ctx.JSON(http.StatusCreated, a)
}

// Formulários

func (api *contentApi) queryFormularios(ctx echo.Context) error {
	aula, err := api.manageableAula(ctx)
	if err != nil {
		return err
	}
	fs, err := api.feedback.ListForAula(ctx.Request().Context(), aula.ID)
	if err != nil {
		return errors.Wrap(err, "listing formularios")
	}
	if fs == nil {
		fs = []feedback.Formulario{}
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *contentApi) createFormulario(ctx echo.Context) error {
	var data feedback.NewFormulario
	if err := api.bind(ctx, &data, "NewFormulario"); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	aula, err := api.school.GetAula(rctx, data.AulaID)
	if err != nil {
		return err
	}
	if err = api.school.CheckCanManageTurma(rctx, actor, aula.TurmaID); err != nil {
		return err
	}
	f, err := api.feedback.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating formulario")
	}
	return ctx.JSON(http.StatusCreated, f)
}

// formulario returns the form behind `:id` when the actor can see the aula's turma.
func (api *contentApi) formulario(ctx echo.Context, manage bool) (feedback.Formulario, error) {
	actor, err := getContextActor(ctx)
	if err != nil {
		return feedback.Formulario{}, err
	}
	rctx := ctx.Request().Context()
	f, err := api.feedback.Get(rctx, ctx.Param("id"))
	if err != nil {
		return feedback.Formulario{}, err
	}
	aula, err := api.school.GetAula(rctx, f.AulaID)
	if err != nil {
		return feedback.Formulario{}, errors.Wrap(err, "getting aula")
	}
	if manage {
		err = api.school.CheckCanManageTurma(rctx, actor, aula.TurmaID)
	} else {
		err = api.school.CheckCanViewTurma(rctx, actor, aula.TurmaID)
	}
	if err != nil {
		return feedback.Formulario{}, err
	}
	return f, nil
}

func (api *contentApi) retrieveFormulario(ctx echo.Context) error {
	f, err := api.formulario(ctx, false)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *contentApi) respond(ctx echo.Context) error {
	f, err := api.formulario(ctx, false)
	if err != nil {
		return err
	}
	var data feedback.NewResponse
	if err = api.bind(ctx, &data, "NewResponse"); err != nil {
		return err
	}
	aluno, err := api.contextAluno(ctx)
	if err != nil {
		return err
	}

	r, err := api.feedback.Respond(ctx.Request().Context(), f.ID, aluno.ID, data.Respostas)
	if err != nil {
		return errors.Wrap(err, "responding formulario")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *contentApi) responses(ctx echo.Context) error {
	f, err := api.formulario(ctx, true)
	if err != nil {
		return err
	}
	rs, err := api.feedback.Responses(ctx.Request().Context(), f.ID)
	if err != nil {
		return errors.Wrap(err, "listing responses")
	}
	if rs == nil {
		rs = []feedback.Response{}
	}
	return ctx.JSON(http.StatusOK, rs)
}
