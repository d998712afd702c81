package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core/attendance"
	"github.com/trezcool/escola/services/export"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type attendanceApi struct {
	baseApi
	attendance *attendance.Service
}

func registerAttendanceAPI(aulas *echo.Group, api attendanceApi) {
	ag := aulas.Group("/:id/attendance", staffMiddleware())
	ag.GET("", api.rollCall)
	ag.PUT("", api.save)
	ag.GET("/export", api.export)
}

func (api *attendanceApi) rollCall(ctx echo.Context) error {
	aula, err := api.manageableAula(ctx)
	if err != nil {
		return err
	}
	records, err := api.attendance.RollCall(ctx.Request().Context(), aula.ID)
	if err != nil {
		return errors.Wrap(err, "getting roll call")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

// save stores the roll call row by row: 207 reports that some rows were not saved.
func (api *attendanceApi) save(ctx echo.Context) error {
	aula, err := api.manageableAula(ctx)
	if err != nil {
		return err
	}
	var data attendance.SaveRequest
	if err = api.bind(ctx, &data, "SaveRequest"); err != nil {
		return err
	}

	res, err := api.attendance.Save(ctx.Request().Context(), aula.ID, data.Records)
	if err != nil {
		return errors.Wrap(err, "saving attendance")
	}
	if res.Partial() {
		return ctx.JSON(http.StatusMultiStatus, res)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) export(ctx echo.Context) error {
	aula, err := api.manageableAula(ctx)
	if err != nil {
		return err
	}
	records, err := api.attendance.RollCall(ctx.Request().Context(), aula.ID)
	if err != nil {
		return errors.Wrap(err, "getting roll call")
	}

	var buf bytes.Buffer
	err = export.WriteXLSX(&buf, export.Sheet{
		Title:  "Chamada",
		Header: attendance.SheetHeader,
		Rows:   attendance.SheetRows(records),
	})
	if err != nil {
		return errors.Wrap(err, "writing xlsx")
	}

	filename := "chamada-" + aula.StartsAt.Format("2006-01-02") + ".xlsx"
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return ctx.Blob(http.StatusOK, mimeXLSX, buf.Bytes())
}
