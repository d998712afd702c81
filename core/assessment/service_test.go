package assessment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/assessment"
	"github.com/trezcool/escola/core/gamification"
	"github.com/trezcool/escola/core/user"
	"github.com/trezcool/escola/tests"
)

func sel(i int) *int { return &i }

func TestService_Submit(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, prof := testutil.CreateUser(t, env, user.RoleProfessor, "Prof", "prof@escola.test")
	alunoActor, aluno := testutil.CreateAluno(t, env, "Ana", "ana@escola.test")
	turma := testutil.CreateTurma(t, env, prof, "Turma", 0)
	testutil.Enroll(t, env, turma.ID, aluno.ID)

	_, err := env.Assessments.Create(ctx, alunoActor, assessment.NewAvaliacao{TurmaID: turma.ID, Title: "X"})
	assert.Equal(t, core.ErrForbidden, err)

	av, err := env.Assessments.Create(ctx, prof, assessment.NewAvaliacao{
		TurmaID:       turma.ID,
		Title:         "Frações",
		NotaMinima:    60,
		MaxTentativas: 2,
		Questoes: []assessment.Question{
			{Text: "1/2 + 1/2", Kind: assessment.MultipleChoice, Options: []string{"1", "2"}, CorrectIndex: 0, Points: 20},
			{Text: "1/4 + 1/4", Kind: assessment.MultipleChoice, Options: []string{"1/2", "1/8"}, CorrectIndex: 0, Points: 20},
		},
	})
	require.NoError(t, err)

	env.Assessments.NowFunc = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	failed, err := env.Assessments.Submit(ctx, av.ID, aluno, []assessment.Answer{{Selected: sel(1)}, {Selected: sel(0)}})
	require.NoError(t, err)
	assert.Equal(t, 50.0, failed.Percentual)
	assert.False(t, failed.Aprovado)

	sum, err := env.Points.Summary(ctx, alunoActor.ID)
	require.NoError(t, err)
	assert.Zero(t, sum.TotalPoints)

	env.Assessments.NowFunc = func() time.Time { return time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC) }
	passed, err := env.Assessments.Submit(ctx, av.ID, aluno, []assessment.Answer{{Selected: sel(0)}, {Selected: sel(0)}})
	require.NoError(t, err)
	assert.Equal(t, 100.0, passed.Percentual)
	assert.True(t, passed.Aprovado)

	sum, err = env.Points.Summary(ctx, alunoActor.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, sum.TotalPoints)
	require.Len(t, sum.Badges, 1)
	assert.Equal(t, gamification.BadgePrimeiraAprovacao, sum.Badges[0].Badge)

	_, err = env.Assessments.Submit(ctx, av.ID, aluno, []assessment.Answer{{Selected: sel(0)}})
	assert.Equal(t, assessment.ErrAttemptLimit, err)

	attempts, err := env.Assessments.Attempts(ctx, av.ID, aluno.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, passed.ID, attempts[0].ID, "newest first")

	byAluno, err := env.Assessments.AttemptsByAluno(ctx, aluno.ID)
	require.NoError(t, err)
	assert.Len(t, byAluno, 2)

	list, err := env.Assessments.List(ctx, []string{turma.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, av.ID, list[0].ID)

	list, err = env.Assessments.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = env.Assessments.Submit(ctx, "missing", aluno, nil)
	assert.True(t, core.IsNotFound(err))
}

func TestService_Submit_concurrentAttempts(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, prof := testutil.CreateUser(t, env, user.RoleProfessor, "Prof", "prof@escola.test")
	_, aluno := testutil.CreateAluno(t, env, "Ana", "ana@escola.test")
	turma := testutil.CreateTurma(t, env, prof, "Turma", 0)
	testutil.Enroll(t, env, turma.ID, aluno.ID)

	av, err := env.Assessments.Create(ctx, prof, assessment.NewAvaliacao{
		TurmaID:       turma.ID,
		Title:         "Frações",
		MaxTentativas: 1,
		Questoes: []assessment.Question{
			{Text: "1/2 + 1/2", Kind: assessment.MultipleChoice, Options: []string{"1", "2"}, CorrectIndex: 0, Points: 10},
		},
	})
	require.NoError(t, err)

	const submitters = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		limited  int
	)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Assessments.Submit(ctx, av.ID, aluno, []assessment.Answer{{Selected: sel(1)}})

			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				accepted++
			case assessment.ErrAttemptLimit:
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, submitters-1, limited)

	attempts, err := env.Assessments.Attempts(ctx, av.ID, aluno.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}
