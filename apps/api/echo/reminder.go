package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core/reminder"
)

type reminderApi struct {
	baseApi
	reminders *reminder.Service
}

func registerReminderAPI(aulas *echo.Group, api reminderApi) {
	aulas.POST("/reminders", api.send, staffMiddleware())
}

// send emails the class reminder to every aluno of the aula and reports per-recipient failures.
func (api *reminderApi) send(ctx echo.Context) error {
	var data reminder.Request
	if err := api.bind(ctx, &data, "reminder.Request"); err != nil {
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

	sum, err := api.reminders.SendForAula(rctx, aula.ID, data.HoursBeforeClass)
	if err != nil {
		return errors.Wrap(err, "sending reminders")
	}
	return ctx.JSON(http.StatusOK, ReminderResponse{Success: true, Summary: sum})
}

type ReminderResponse struct {
	Success bool `json:"success"`
	reminder.Summary
}
