package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core/chat"
)

const mimeEventStream = "text/event-stream"

type chatApi struct {
	baseApi
	assistant *chat.Assistant
}

func registerChatAPI(g *echo.Group, authed []echo.MiddlewareFunc, api chatApi) {
	g.POST("/chat", api.reply, authed...)
}

// reply answers with the assistant's final message wrapped as a one-chunk event stream.
func (api *chatApi) reply(ctx echo.Context) error {
	if api.assistant == nil {
		return errAssistantDisabled
	}
	var data chat.Request
	if err := api.bind(ctx, &data, "chat.Request"); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	content, err := api.assistant.Reply(ctx.Request().Context(), actor, data.Messages)
	if err != nil {
		return errors.Wrap(err, "replying")
	}

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, mimeEventStream)
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	if err = chat.WriteSSE(resp, content); err != nil {
		return errors.Wrap(err, "writing event stream")
	}
	resp.Flush()
	return nil
}
