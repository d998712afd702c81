package chat

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/user"
)

const systemPrompt = `Você é o assistente virtual da escola. Responda em português, de forma breve e cordial.
Use as ferramentas disponíveis para consultar aulas, turmas, avisos e o progresso do usuário antes de responder
sobre esses assuntos. Nunca invente horários, notas ou avisos. Hoje é %s.`

var (
	// errors
	ErrTooManyToolRounds = errors.New("assistant did not answer within the allowed tool rounds")
	ErrEmptyReply        = errors.New("assistant returned no choices")
)

// UpstreamError is a failure of the LLM provider, with the HTTP status it answered.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string { return "llm upstream: " + e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

// Completer is the chat-completion client. *openai.Client satisfies it.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

type Request struct {
	Messages []Message `json:"messages" validate:"required,min=1,dive"`
}

func (r *Request) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

type Assistant struct {
	llm           Completer
	model         string
	maxRounds     int
	schedule      Schedule
	announcements Announcements
	progress      Progress
	attempts      Attempts
	logger        core.Logger
	NowFunc       func() time.Time // mockable
}

func NewAssistant(
	llm Completer,
	conf core.LLMConfig,
	schedule Schedule,
	announcements Announcements,
	progress Progress,
	attempts Attempts,
	logger core.Logger,
) *Assistant {
	rounds := conf.MaxToolRounds
	if rounds <= 0 {
		rounds = 5
	}
	return &Assistant{
		llm:           llm,
		model:         conf.Model,
		maxRounds:     rounds,
		schedule:      schedule,
		announcements: announcements,
		progress:      progress,
		attempts:      attempts,
		logger:        logger,
		NowFunc:       time.Now,
	}
}

// NewOpenAIClient returns the go-openai client for conf, pointed at conf.BaseURL when set.
func NewOpenAIClient(conf core.LLMConfig) *openai.Client {
	cfg := openai.DefaultConfig(conf.APIKey)
	if conf.BaseURL != "" {
		cfg.BaseURL = conf.BaseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Reply answers the conversation as the caller. Tool calls requested by the model run with the caller's identity
// and their results are fed back until the model answers with plain content.
func (a *Assistant) Reply(ctx context.Context, caller user.Actor, messages []Message) (string, error) {
	conv := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	conv = append(conv, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(systemPrompt, a.NowFunc().Format("02/01/2006")),
	})
	for _, m := range messages {
		conv = append(conv, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	tools := toolDefinitions()

	for round := 0; round < a.maxRounds; round++ {
		resp, err := a.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    a.model,
			Messages: conv,
			Tools:    tools,
		})
		if err != nil {
			return "", upstreamError(err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyReply
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		conv = append(conv, msg)
		for _, call := range msg.ToolCalls {
			conv = append(conv, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    a.runTool(ctx, caller, call),
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
		}
	}
	return "", ErrTooManyToolRounds
}

func upstreamError(err error) error {
	var (
		apiErr *openai.APIError
		reqErr *openai.RequestError
	)
	switch {
	case errors.As(err, &apiErr):
		return &UpstreamError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	case errors.As(err, &reqErr):
		return &UpstreamError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &UpstreamError{StatusCode: http.StatusInternalServerError, Err: err}
}
