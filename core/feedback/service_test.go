package feedback_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/feedback"
	"github.com/trezcool/escola/core/user"
	"github.com/trezcool/escola/tests"
)

var form = feedback.Formulario{
	ID: "f1",
	Perguntas: feedback.Perguntas{
		{Text: "Nota da aula", Kind: feedback.KindRating, Required: true},
		{Text: "Ritmo", Kind: feedback.KindChoice, Options: []string{"lento", "bom", "rápido"}},
		{Text: "Comentários", Kind: feedback.KindText},
	},
}

func TestCheckAnswers(t *testing.T) {
	tests := []struct {
		name    string
		answers []feedback.Resposta
		want    []core.FieldError
	}{
		{name: "complete", answers: []feedback.Resposta{{Rating: 5}, {Text: "bom"}, {Text: "ótima"}}},
		{name: "optional left blank", answers: []feedback.Resposta{{Rating: 3}}},
		{
			name:    "required rating missing",
			answers: []feedback.Resposta{{}, {Text: "bom"}},
			want:    []core.FieldError{{Field: "respostas[0].rating", Error: "this field is required"}},
		},
		{
			name:    "rating out of range and unknown option",
			answers: []feedback.Resposta{{Rating: 6}, {Text: "médio"}},
			want: []core.FieldError{
				{Field: "respostas[0].rating", Error: "must be between 1 and 5"},
				{Field: "respostas[1].text", Error: "must be one of the options"},
			},
		},
		{
			name:    "too many answers",
			answers: []feedback.Resposta{{Rating: 1}, {}, {}, {Text: "extra"}},
			want:    []core.FieldError{{Field: "respostas", Error: "more answers than questions"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := feedback.CheckAnswers(form, tt.answers)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			verr, ok := err.(*core.ValidationError)
			require.True(t, ok, "want a validation error, got %v", err)
			assert.Equal(t, tt.want, verr.Fields)
		})
	}
}

func TestService_Respond(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, prof := testutil.CreateUser(t, env, user.RoleProfessor, "Prof", "prof@escola.test")
	_, aluno := testutil.CreateAluno(t, env, "Ana", "ana@escola.test")
	turma := testutil.CreateTurma(t, env, prof, "Turma", 0)
	aula := testutil.CreateAula(t, env, prof, turma.ID, time.Now())

	_, err := env.Feedback.Create(ctx, feedback.NewFormulario{AulaID: "missing", Title: "X", Perguntas: form.Perguntas})
	assert.True(t, core.IsNotFound(err))

	f, err := env.Feedback.Create(ctx, feedback.NewFormulario{AulaID: aula.ID, Title: "Avalie a aula", Perguntas: form.Perguntas})
	require.NoError(t, err)

	forms, err := env.Feedback.ListForAula(ctx, aula.ID)
	require.NoError(t, err)
	require.Len(t, forms, 1)

	_, err = env.Feedback.Respond(ctx, f.ID, aluno.ID, []feedback.Resposta{{Rating: 9}})
	_, isValidation := err.(*core.ValidationError)
	assert.True(t, isValidation)

	r, err := env.Feedback.Respond(ctx, f.ID, aluno.ID, []feedback.Resposta{{Rating: 4}, {Text: "bom"}})
	require.NoError(t, err)
	assert.Equal(t, aluno.ID, r.AlunoID)

	_, err = env.Feedback.Respond(ctx, f.ID, aluno.ID, []feedback.Resposta{{Rating: 5}})
	assert.Equal(t, feedback.ErrAlreadyResponded, err)

	responses, err := env.Feedback.Responses(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, 4, responses[0].Respostas[0].Rating)
}
