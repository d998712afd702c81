package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escola/core/chat"
	"github.com/trezcool/escola/core/user"
	"github.com/trezcool/escola/tests"
)

// fakeLLM replays scripted responses and records the requests it got.
type fakeLLM struct {
	responses []openai.ChatCompletionResponse
	err       error
	requests  []openai.ChatCompletionRequest
}

func (f *fakeLLM) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if len(f.requests) > len(f.responses) {
		return toolCall("get_classes", "{}"), nil
	}
	return f.responses[len(f.requests)-1], nil
}

func answer(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
	}}}
}

func toolCall(name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:       "call-" + name,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: name, Arguments: args},
			}},
		},
	}}}
}

func newAssistant(env *testutil.Env, llm chat.Completer) *chat.Assistant {
	a := chat.NewAssistant(llm, env.Conf.LLM, env.School, env.Content, env.Points, env.Assessments, env.Logger)
	a.NowFunc = func() time.Time { return time.Date(2024, 8, 5, 9, 0, 0, 0, time.UTC) }
	return a
}

func TestAssistant_Reply(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, prof := testutil.CreateUser(t, env, user.RoleProfessor, "Prof", "prof@escola.test")
	alunoActor, aluno := testutil.CreateAluno(t, env, "Ana", "ana@escola.test")
	turma := testutil.CreateTurma(t, env, prof, "Geometria", 0)
	testutil.Enroll(t, env, turma.ID, aluno.ID)

	llm := &fakeLLM{responses: []openai.ChatCompletionResponse{
		toolCall("get_classes", ""),
		toolCall("get_user_progress", "{}"),
		answer("Você está na turma Geometria."),
	}}
	reply, err := newAssistant(env, llm).Reply(ctx, alunoActor, []chat.Message{{Role: "user", Content: "Quais são minhas turmas?"}})
	require.NoError(t, err)
	assert.Equal(t, "Você está na turma Geometria.", reply)

	require.Len(t, llm.requests, 3)
	first := llm.requests[0]
	assert.Equal(t, "test-model", first.Model)
	assert.Len(t, first.Tools, 4)
	require.Len(t, first.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, first.Messages[0].Role)
	assert.Contains(t, first.Messages[0].Content, "05/08/2024")

	// assistant tool call + tool result appended each round
	second := llm.requests[1]
	require.Len(t, second.Messages, 4)
	toolMsg := second.Messages[3]
	assert.Equal(t, openai.ChatMessageRoleTool, toolMsg.Role)
	assert.Equal(t, "call-get_classes", toolMsg.ToolCallID)
	var turmas []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(toolMsg.Content), &turmas))
	require.Len(t, turmas, 1)
	assert.Equal(t, "Geometria", turmas[0]["name"])

	progress := llm.requests[2].Messages[5]
	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(progress.Content), &res))
	assert.Equal(t, float64(1), res["level"])
	assert.Contains(t, res, "tentativas")
}

func TestAssistant_Reply_ToolErrors(t *testing.T) {
	env := testutil.NewEnv(t)
	alunoActor, _ := testutil.CreateAluno(t, env, "Ana", "ana@escola.test")

	llm := &fakeLLM{responses: []openai.ChatCompletionResponse{
		toolCall("drop_tables", "{}"),
		toolCall("get_announcements", "not json"),
		answer("ok"),
	}}
	reply, err := newAssistant(env, llm).Reply(context.Background(), alunoActor, []chat.Message{{Role: "user", Content: "oi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	assert.Contains(t, llm.requests[1].Messages[3].Content, `"error":"drop_tables: unknown tool"`)
	assert.Contains(t, llm.requests[2].Messages[5].Content, "decoding tool arguments")
}

func TestAssistant_Reply_TooManyRounds(t *testing.T) {
	env := testutil.NewEnv(t)
	alunoActor, _ := testutil.CreateAluno(t, env, "Ana", "ana@escola.test")
	llm := &fakeLLM{}

	_, err := newAssistant(env, llm).Reply(context.Background(), alunoActor, []chat.Message{{Role: "user", Content: "oi"}})
	assert.Equal(t, chat.ErrTooManyToolRounds, err)
	assert.Len(t, llm.requests, env.Conf.LLM.MaxToolRounds)
}

func TestAssistant_Reply_Upstream(t *testing.T) {
	env := testutil.NewEnv(t)
	alunoActor, _ := testutil.CreateAluno(t, env, "Ana", "ana@escola.test")

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "rate limited", err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}, wantStatus: http.StatusTooManyRequests},
		{name: "out of credits", err: &openai.RequestError{HTTPStatusCode: http.StatusPaymentRequired, Err: errors.New("pay")}, wantStatus: http.StatusPaymentRequired},
		{name: "network", err: errors.New("connection reset"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newAssistant(env, &fakeLLM{err: tt.err}).Reply(context.Background(), alunoActor, []chat.Message{{Role: "user", Content: "oi"}})
			var upErr *chat.UpstreamError
			require.True(t, errors.As(err, &upErr), "want an upstream error, got %v", err)
			assert.Equal(t, tt.wantStatus, upErr.StatusCode)
		})
	}

	_, err := newAssistant(env, &fakeLLM{responses: []openai.ChatCompletionResponse{{}}}).Reply(context.Background(), alunoActor, []chat.Message{{Role: "user", Content: "oi"}})
	assert.Equal(t, chat.ErrEmptyReply, err)
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, chat.WriteSSE(&buf, "Olá!"))
	assert.Equal(t, "data: {\"choices\":[{\"delta\":{\"content\":\"Olá!\"}}]}\n\ndata: [DONE]\n\n", buf.String())
}
