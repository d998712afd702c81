package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/user"
)

const (
	actionList    = "list"
	actionCreate  = "create"
	actionDelete  = "delete"
	actionSetRole = "set_role"
	actionRevoke  = "revoke"
)

type adminApi struct {
	baseApi
	translator ut.Translator
	users      *user.Service
}

func registerAdminAPI(g *echo.Group, authed []echo.MiddlewareFunc, api adminApi) {
	ag := g.Group("/admin", authed...)
	ag.POST("/users", api.manageUsers, adminMiddleware())
}

// manageUsers dispatches the user management actions of the admin panel.
func (api *adminApi) manageUsers(ctx echo.Context) error {
	var data AdminUsersRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AdminUsersRequest")
	}
	data.Action = core.CleanString(data.Action, true /* lower */)
	data.UserID = core.CleanString(data.UserID)

	rctx := ctx.Request().Context()
	switch data.Action {
	case actionList:
		users, err := api.users.List(rctx)
		if err != nil {
			return errors.Wrap(err, "listing users")
		}
		if users == nil {
			users = []user.Listing{}
		}
		return ctx.JSON(http.StatusOK, AdminUsersResponse{Success: true, Users: users})

	case actionCreate:
		if data.UserData == nil {
			return adminFailure(ctx, "userData is required")
		}
		if err := data.UserData.Validate(api.validate); err != nil {
			return api.failure(ctx, err, "validating userData")
		}
		usr, err := api.users.Create(rctx, *data.UserData)
		if err != nil {
			return api.failure(ctx, err, "creating user")
		}
		return ctx.JSON(http.StatusCreated, AdminUsersResponse{Success: true, User: &usr})

	case actionDelete:
		if data.UserID == "" {
			return adminFailure(ctx, "userId is required")
		}
		// Say No to Suicide! admins cannot delete themselves
		actor, err := getContextActor(ctx)
		if err != nil {
			return err
		}
		if actor.ID == data.UserID {
			return api.failure(ctx, errHttpForbidden, "deleting user")
		}
		if err = api.users.Delete(rctx, data.UserID); err != nil {
			return api.failure(ctx, err, "deleting user")
		}
		return ctx.JSON(http.StatusOK, AdminUsersResponse{Success: true})

	case actionSetRole:
		if data.UserID == "" || data.Role == "" {
			return adminFailure(ctx, "userId and role are required")
		}
		if _, err := api.users.GetByID(rctx, data.UserID); err != nil {
			return api.failure(ctx, err, "getting user")
		}
		if err := api.users.SetRole(rctx, data.UserID, user.Role(core.CleanString(string(data.Role), true))); err != nil {
			return api.failure(ctx, err, "setting role")
		}
		return ctx.JSON(http.StatusOK, AdminUsersResponse{Success: true})

	case actionRevoke:
		if data.UserID == "" {
			return adminFailure(ctx, "userId is required")
		}
		if err := api.users.RevokeRole(rctx, data.UserID); err != nil {
			return api.failure(ctx, err, "revoking role")
		}
		return ctx.JSON(http.StatusOK, AdminUsersResponse{Success: true})
	}
	return adminFailure(ctx, "Invalid action")
}

func adminFailure(ctx echo.Context, msg string) error {
	return ctx.JSON(http.StatusBadRequest, AdminUsersResponse{Success: false, Error: msg})
}

// failure answers client errors in the admin envelope. Anything else is left to the app's error handler.
func (api *adminApi) failure(ctx echo.Context, err error, msg string) error {
	resp := AdminUsersResponse{Success: false, Error: err.Error()}
	var code int

	switch origErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		code = http.StatusBadRequest
		resp.Error = "invalid userData"
		resp.Fields = make(map[string]string, len(origErr))
		for _, vErr := range origErr {
			resp.Fields[fieldPath(vErr)] = vErr.Translate(api.translator)
		}
	case *core.ValidationError:
		code = http.StatusBadRequest
		if len(origErr.Fields) > 0 {
			resp.Fields = make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				resp.Fields[fErr.Field] = fErr.Error
			}
		}
	case *core.NotFoundError:
		code = http.StatusNotFound
	case *core.ConflictError:
		code = http.StatusConflict
	case *core.PermissionError:
		code = http.StatusForbidden
	case *echo.HTTPError:
		code = origErr.Code
		resp.Error = fmt.Sprint(origErr.Message)
	default:
		return errors.Wrap(err, msg)
	}
	return ctx.JSON(code, resp)
}

type (
	AdminUsersRequest struct {
		Action   string        `json:"action"`
		UserID   string        `json:"userId"`
		Role     user.Role     `json:"role"`
		UserData *user.NewUser `json:"userData"`
	}

	AdminUsersResponse struct {
		Success bool              `json:"success"`
		Users   []user.Listing    `json:"users,omitempty"`
		User    *user.User        `json:"user,omitempty"`
		Error   string            `json:"error,omitempty"`
		Fields  map[string]string `json:"fields,omitempty"`
	}
)
