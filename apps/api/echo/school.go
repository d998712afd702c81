package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core/assessment"
	"github.com/trezcool/escola/core/content"
	"github.com/trezcool/escola/core/school"
	"github.com/trezcool/escola/core/user"
)

type schoolApi struct {
	baseApi
	assessments *assessment.Service
	content     *content.Service
}

func registerSchoolAPI(turmas, aulas *echo.Group, api schoolApi) {
	turmas.GET("", api.queryTurmas)
	turmas.POST("", api.createTurma, staffMiddleware())
	turmas.GET("/:id/alunos", api.roster, staffMiddleware())
	turmas.GET("/:id/alunos-disponiveis", api.availableStudents, staffMiddleware())
	turmas.POST("/:id/matriculas", api.enroll, staffMiddleware())
	turmas.GET("/:id/conteudos", api.queryConteudos)
	turmas.GET("/:id/avaliacoes", api.queryAvaliacoes)

	aulas.GET("", api.queryAulas)
	aulas.GET("/upcoming", api.upcomingAulas)
	aulas.POST("", api.createAula, staffMiddleware())
	aulas.POST("/:id/materiais", api.addMaterial, staffMiddleware())
	aulas.DELETE("/:id/materiais", api.removeMaterial, staffMiddleware())
}

// Turmas

func (api *schoolApi) queryTurmas(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	turmas, err := api.school.TurmasFor(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "listing turmas")
	}
	if turmas == nil {
		turmas = []school.Turma{}
	}
	return ctx.JSON(http.StatusOK, turmas)
}

func (api *schoolApi) createTurma(ctx echo.Context) error {
	var data school.NewTurma
	if err := api.bind(ctx, &data, "NewTurma"); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	turma, err := api.school.CreateTurma(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating turma")
	}
	return ctx.JSON(http.StatusCreated, turma)
}

// checkManage allows the turma's professor and admins.
func (api *schoolApi) checkManage(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	return api.school.CheckCanManageTurma(ctx.Request().Context(), actor, ctx.Param("id"))
}

// checkView also allows the alunos enrolled in the turma.
func (api *schoolApi) checkView(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	return api.school.CheckCanViewTurma(ctx.Request().Context(), actor, ctx.Param("id"))
}

func (api *schoolApi) roster(ctx echo.Context) error {
	if err := api.checkManage(ctx); err != nil {
		return err
	}
	alunos, err := api.school.Roster(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting roster")
	}
	return ctx.JSON(http.StatusOK, nonNilAlunos(alunos))
}

func (api *schoolApi) availableStudents(ctx echo.Context) error {
	if err := api.checkManage(ctx); err != nil {
		return err
	}
	alunos, err := api.school.AvailableStudents(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing available students")
	}
	return ctx.JSON(http.StatusOK, nonNilAlunos(alunos))
}

func (api *schoolApi) enroll(ctx echo.Context) error {
	if err := api.checkManage(ctx); err != nil {
		return err
	}
	var data school.EnrollRequest
	if err := api.bind(ctx, &data, "EnrollRequest"); err != nil {
		return err
	}
	ms, err := api.school.Enroll(ctx.Request().Context(), ctx.Param("id"), data.AlunoIDs)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, ms)
}

func (api *schoolApi) queryConteudos(ctx echo.Context) error {
	if err := api.checkView(ctx); err != nil {
		return err
	}
	cs, err := api.content.ListConteudos(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing conteudos")
	}
	if cs == nil {
		cs = []content.Conteudo{}
	}
	return ctx.JSON(http.StatusOK, cs)
}

func (api *schoolApi) queryAvaliacoes(ctx echo.Context) error {
	if err := api.checkView(ctx); err != nil {
		return err
	}
	avs, err := api.assessments.List(ctx.Request().Context(), []string{ctx.Param("id")})
	if err != nil {
		return errors.Wrap(err, "listing avaliacoes")
	}

	actor, _ := getContextActor(ctx)
	if !actor.IsAluno() {
		if avs == nil {
			avs = []assessment.Avaliacao{}
		}
		return ctx.JSON(http.StatusOK, avs)
	}
	views := make([]assessment.StudentView, 0, len(avs))
	for _, av := range avs {
		views = append(views, av.ForStudent())
	}
	return ctx.JSON(http.StatusOK, views)
}

// Aulas

func (api *schoolApi) queryAulas(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	from, err := timeParam(ctx, "from")
	if err != nil {
		return err
	}
	to, err := timeParam(ctx, "to")
	if err != nil {
		return err
	}
	aulas, err := api.school.AulasFor(ctx.Request().Context(), actor, from, to)
	if err != nil {
		return errors.Wrap(err, "listing aulas")
	}
	return ctx.JSON(http.StatusOK, nonNilAulas(aulas))
}

func (api *schoolApi) upcomingAulas(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	aulas, err := api.school.UpcomingAulas(ctx.Request().Context(), actor, intParam(ctx, "days", 7))
	if err != nil {
		return errors.Wrap(err, "listing upcoming aulas")
	}
	return ctx.JSON(http.StatusOK, nonNilAulas(aulas))
}

func (api *schoolApi) createAula(ctx echo.Context) error {
	var data school.NewAula
	if err := api.bind(ctx, &data, "NewAula"); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	aula, err := api.school.CreateAula(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating aula")
	}
	return ctx.JSON(http.StatusCreated, aula)
}

func (api *schoolApi) addMaterial(ctx echo.Context) error {
	return api.updateMaterial(ctx, api.school.AddMaterial)
}

func (api *schoolApi) removeMaterial(ctx echo.Context) error {
	return api.updateMaterial(ctx, api.school.RemoveMaterial)
}

func (api *schoolApi) updateMaterial(ctx echo.Context, update materialUpdate) error {
	var data school.MaterialRequest
	if err := api.bind(ctx, &data, "MaterialRequest"); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	aula, err := update(ctx.Request().Context(), actor, ctx.Param("id"), data.Path)
	if err != nil {
		return errors.Wrap(err, "updating materiais")
	}
	return ctx.JSON(http.StatusOK, aula)
}

type materialUpdate = func(ctx context.Context, actor user.Actor, aulaID, path string) (school.Aula, error)

func nonNilAlunos(alunos []school.Aluno) []school.Aluno {
	if alunos == nil {
		return []school.Aluno{}
	}
	return alunos
}

func nonNilAulas(aulas []school.Aula) []school.Aula {
	if aulas == nil {
		return []school.Aula{}
	}
	return aulas
}
