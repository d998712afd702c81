package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/attendance"
	"github.com/trezcool/escola/core/user"
	"github.com/trezcool/escola/tests"
)

func TestService_SaveAndRollCall(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, prof := testutil.CreateUser(t, env, user.RoleProfessor, "Prof", "prof@escola.test")
	anaActor, ana := testutil.CreateAluno(t, env, "Ana", "ana@escola.test")
	_, bia := testutil.CreateAluno(t, env, "Bia", "bia@escola.test")
	_, stranger := testutil.CreateAluno(t, env, "Zeca", "zeca@escola.test")
	turma := testutil.CreateTurma(t, env, prof, "Turma", 0)
	testutil.Enroll(t, env, turma.ID, bia.ID, ana.ID)
	aula := testutil.CreateAula(t, env, prof, turma.ID, time.Now())

	records, err := env.Attendance.RollCall(ctx, aula.ID)
	require.NoError(t, err)
	assert.Equal(t, []attendance.Record{
		{AlunoID: ana.ID, AlunoName: "Ana"},
		{AlunoID: bia.ID, AlunoName: "Bia"},
	}, records)

	attendance.MarkAll(records, true)
	records[1].Presente = false
	records[1].Observacoes = "  atestado médico "
	records = append(records, attendance.Record{AlunoID: stranger.ID, Presente: true})

	result, err := env.Attendance.Save(ctx, aula.ID, records)
	require.NoError(t, err)
	assert.True(t, result.Partial())
	assert.Equal(t, 2, result.Saved)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, attendance.OutcomeOK, result.Outcomes[0].Status)
	assert.Equal(t, attendance.OutcomeOK, result.Outcomes[1].Status)
	assert.Equal(t, attendance.RowOutcome{
		AlunoID: stranger.ID,
		Status:  attendance.OutcomeError,
		Error:   "aluno is not enrolled in this aula's turma",
	}, result.Outcomes[2])

	records, err = env.Attendance.RollCall(ctx, aula.ID)
	require.NoError(t, err)
	assert.True(t, records[0].Presente)
	assert.False(t, records[1].Presente)
	assert.Equal(t, "atestado médico", records[1].Observacoes)

	sum, err := env.Points.Summary(ctx, anaActor.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.PointsPerPresence, sum.TotalPoints)

	t.Run("saving again updates in place and credits once", func(t *testing.T) {
		records[1].Presente = true
		result, err := env.Attendance.Save(ctx, aula.ID, records)
		require.NoError(t, err)
		assert.False(t, result.Partial())
		assert.Equal(t, 2, result.Saved)

		stored, err := env.Attendance.RollCall(ctx, aula.ID)
		require.NoError(t, err)
		assert.Len(t, stored, 2)
		assert.True(t, stored[1].Presente)

		sum, err := env.Points.Summary(ctx, anaActor.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.PointsPerPresence, sum.TotalPoints)
	})

	t.Run("marking absent takes the points back", func(t *testing.T) {
		records[0].Presente = false
		_, err := env.Attendance.Save(ctx, aula.ID, records)
		require.NoError(t, err)

		sum, err := env.Points.Summary(ctx, anaActor.ID)
		require.NoError(t, err)
		assert.Zero(t, sum.TotalPoints)
		assert.Empty(t, sum.Recent)

		records[0].Presente = true
		_, err = env.Attendance.Save(ctx, aula.ID, records)
		require.NoError(t, err)

		sum, err = env.Points.Summary(ctx, anaActor.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.PointsPerPresence, sum.TotalPoints)
	})

	_, err = env.Attendance.Save(ctx, "missing", records)
	assert.True(t, core.IsNotFound(err))
}

func TestSheetRows(t *testing.T) {
	rows := attendance.SheetRows([]attendance.Record{
		{AlunoName: "Ana", Presente: true},
		{AlunoName: "Bia", Observacoes: "atrasou"},
	})
	assert.Equal(t, [][]string{{"Ana", "Sim", ""}, {"Bia", "Não", "atrasou"}}, rows)
}
