package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core/assessment"
)

type assessmentApi struct {
	baseApi
	assessments *assessment.Service
}

func registerAssessmentAPI(g *echo.Group, authed []echo.MiddlewareFunc, api assessmentApi) {
	ag := g.Group("/avaliacoes", authed...)
	ag.POST("", api.create, staffMiddleware())
	ag.GET("/:id", api.retrieve)
	ag.POST("/:id/tentativas", api.submit, alunoMiddleware())
	ag.GET("/:id/tentativas", api.attempts)
}

func (api *assessmentApi) create(ctx echo.Context) error {
	var data assessment.NewAvaliacao
	if err := api.bind(ctx, &data, "NewAvaliacao"); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	av, err := api.assessments.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating avaliacao")
	}
	return ctx.JSON(http.StatusCreated, av)
}

// visible returns the avaliacao behind `:id` if the actor can see its turma.
func (api *assessmentApi) visible(ctx echo.Context) (assessment.Avaliacao, error) {
	actor, err := getContextActor(ctx)
	if err != nil {
		return assessment.Avaliacao{}, err
	}
	rctx := ctx.Request().Context()
	av, err := api.assessments.Get(rctx, ctx.Param("id"))
	if err != nil {
		return assessment.Avaliacao{}, err
	}
	if err = api.school.CheckCanViewTurma(rctx, actor, av.TurmaID); err != nil {
		return assessment.Avaliacao{}, err
	}
	return av, nil
}

// retrieve hides the answer key from alunos.
func (api *assessmentApi) retrieve(ctx echo.Context) error {
	av, err := api.visible(ctx)
	if err != nil {
		return err
	}
	if actor, _ := getContextActor(ctx); actor.IsAluno() {
		return ctx.JSON(http.StatusOK, av.ForStudent())
	}
	return ctx.JSON(http.StatusOK, av)
}

func (api *assessmentApi) submit(ctx echo.Context) error {
	av, err := api.visible(ctx)
	if err != nil {
		return err
	}
	var data assessment.Submission
	if err = api.bind(ctx, &data, "Submission"); err != nil {
		return err
	}
	aluno, err := api.contextAluno(ctx)
	if err != nil {
		return err
	}

	t, err := api.assessments.Submit(ctx.Request().Context(), av.ID, aluno, data.Respostas)
	if err != nil {
		return errors.Wrap(err, "submitting tentativa")
	}
	return ctx.JSON(http.StatusCreated, t)
}

// attempts lists the actor's own attempts for alunos; staff see every aluno's, or one's with `?aluno_id=`.
func (api *assessmentApi) attempts(ctx echo.Context) error {
	av, err := api.visible(ctx)
	if err != nil {
		return err
	}

	var alunoID string
	if actor, _ := getContextActor(ctx); actor.IsAluno() {
		aluno, err := api.contextAluno(ctx)
		if err != nil {
			return err
		}
		alunoID = aluno.ID
	} else {
		alunoID = ctx.QueryParam("aluno_id")
	}

	ts, err := api.assessments.Attempts(ctx.Request().Context(), av.ID, alunoID)
	if err != nil {
		return errors.Wrap(err, "listing tentativas")
	}
	if ts == nil {
		ts = []assessment.Tentativa{}
	}
	return ctx.JSON(http.StatusOK, ts)
}
