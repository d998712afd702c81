package chat

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/assessment"
	"github.com/trezcool/escola/core/content"
	"github.com/trezcool/escola/core/gamification"
	"github.com/trezcool/escola/core/school"
	"github.com/trezcool/escola/core/user"
)

const (
	toolUpcomingClasses = "get_upcoming_classes"
	toolClasses         = "get_classes"
	toolAnnouncements   = "get_announcements"
	toolUserProgress    = "get_user_progress"

	defaultDaysAhead = 7
	maxDaysAhead     = 60
)

var errUnknownTool = errors.New("unknown tool")

type (
	Schedule interface {
		TurmasFor(ctx context.Context, actor user.Actor) ([]school.Turma, error)
		UpcomingAulas(ctx context.Context, actor user.Actor, daysAhead int) ([]school.Aula, error)
		AlunoFor(ctx context.Context, actor user.Actor) (school.Aluno, error)
	}

	Announcements interface {
		AvisosFor(ctx context.Context, actor user.Actor, limit int) ([]content.Aviso, error)
	}

	Progress interface {
		Summary(ctx context.Context, userID string) (gamification.Summary, error)
	}

	Attempts interface {
		AttemptsByAluno(ctx context.Context, alunoID string) ([]assessment.Tentativa, error)
	}
)

func toolDefinitions() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolUpcomingClasses,
				Description: "Lista as próximas aulas das turmas do usuário.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"days_ahead": {Type: jsonschema.Integer, Description: "Quantos dias à frente considerar (padrão 7)."},
					},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolClasses,
				Description: "Lista as turmas do usuário.",
				Parameters:  jsonschema.Definition{Type: jsonschema.Object, Properties: map[string]jsonschema.Definition{}},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolAnnouncements,
				Description: "Lista os avisos mais recentes visíveis ao usuário.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"limit": {Type: jsonschema.Integer, Description: "Número máximo de avisos (padrão 10)."},
					},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolUserProgress,
				Description: "Retorna pontos, nível, conquistas e tentativas de avaliações do usuário.",
				Parameters:  jsonschema.Definition{Type: jsonschema.Object, Properties: map[string]jsonschema.Definition{}},
			},
		},
	}
}

type (
	upcomingArgs struct {
		DaysAhead int `json:"days_ahead"`
	}

	announcementsArgs struct {
		Limit int `json:"limit"`
	}

	progressResult struct {
		gamification.Summary
		Tentativas []assessment.Tentativa `json:"tentativas"`
	}

	toolError struct {
		Error string `json:"error"`
	}
)

// runTool executes a tool call as the caller and returns the JSON handed back to the model.
// Failures are reported to the model rather than aborting the conversation.
func (a *Assistant) runTool(ctx context.Context, caller user.Actor, call openai.ToolCall) string {
	res, err := a.callTool(ctx, caller, call.Function.Name, call.Function.Arguments)
	if err != nil {
		a.logger.Warn("chat tool failed", errors.Wrap(err, call.Function.Name), caller)
		res = toolError{Error: err.Error()}
	}
	b, err := json.Marshal(res)
	if err != nil {
		return `{"error":"internal error"}`
	}
	return string(b)
}

func (a *Assistant) callTool(ctx context.Context, caller user.Actor, name, rawArgs string) (interface{}, error) {
	switch name {
	case toolUpcomingClasses:
		var args upcomingArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return nil, err
		}
		switch {
		case args.DaysAhead <= 0:
			args.DaysAhead = defaultDaysAhead
		case args.DaysAhead > maxDaysAhead:
			args.DaysAhead = maxDaysAhead
		}
		return a.schedule.UpcomingAulas(ctx, caller, args.DaysAhead)

	case toolClasses:
		return a.schedule.TurmasFor(ctx, caller)

	case toolAnnouncements:
		var args announcementsArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return nil, err
		}
		return a.announcements.AvisosFor(ctx, caller, args.Limit)

	case toolUserProgress:
		return a.progressOf(ctx, caller)
	}
	return nil, errors.Wrap(errUnknownTool, name)
}

func (a *Assistant) progressOf(ctx context.Context, caller user.Actor) (progressResult, error) {
	summary, err := a.progress.Summary(ctx, caller.ID)
	if err != nil {
		return progressResult{}, err
	}
	res := progressResult{Summary: summary, Tentativas: []assessment.Tentativa{}}
	if !caller.IsAluno() {
		return res, nil
	}

	aluno, err := a.schedule.AlunoFor(ctx, caller)
	if err != nil {
		if core.IsNotFound(err) {
			return res, nil
		}
		return progressResult{}, err
	}
	if res.Tentativas, err = a.attempts.AttemptsByAluno(ctx, aluno.ID); err != nil {
		return progressResult{}, err
	}
	return res, nil
}

func decodeArgs(raw string, dst interface{}) error {
	if raw == "" {
		return nil
	}
	return errors.Wrap(json.Unmarshal([]byte(raw), dst), "decoding tool arguments")
}
