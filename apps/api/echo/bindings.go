package echoapi

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/school"
)

type validatable interface {
	Validate(validate *validator.Validate) error
}

// baseApi holds what every resource API needs: request validation and the turma permission checks.
type baseApi struct {
	validate *validator.Validate
	school   *school.Service
}

// bind binds the request body to data and validates it.
func (api *baseApi) bind(ctx echo.Context, data validatable, name string) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding to "+name)
	}
	return data.Validate(api.validate)
}

// manageableAula returns the aula behind the `:id` param when the actor can manage its turma.
func (api *baseApi) manageableAula(ctx echo.Context) (school.Aula, error) {
	actor, err := getContextActor(ctx)
	if err != nil {
		return school.Aula{}, err
	}
	rctx := ctx.Request().Context()
	aula, err := api.school.GetAula(rctx, ctx.Param("id"))
	if err != nil {
		return school.Aula{}, err
	}
	if err = api.school.CheckCanManageTurma(rctx, actor, aula.TurmaID); err != nil {
		return school.Aula{}, err
	}
	return aula, nil
}

// contextAluno returns the aluno profile of the acting user.
func (api *baseApi) contextAluno(ctx echo.Context) (school.Aluno, error) {
	actor, err := getContextActor(ctx)
	if err != nil {
		return school.Aluno{}, err
	}
	aluno, err := api.school.AlunoFor(ctx.Request().Context(), actor)
	if err != nil {
		if core.IsNotFound(err) {
			return school.Aluno{}, errHttpForbidden
		}
		return school.Aluno{}, errors.Wrap(err, "getting aluno profile")
	}
	return aluno, nil
}

// intParam reads an integer query param, def when absent or malformed.
func intParam(ctx echo.Context, name string, def int) int {
	v := ctx.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// timeParam reads an RFC 3339 query param. The zero time means absent.
func timeParam(ctx echo.Context, name string) (time.Time, error) {
	v := ctx.QueryParam(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be an RFC 3339 date-time"})
	}
	return t.UTC(), nil
}
