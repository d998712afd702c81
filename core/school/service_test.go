package school_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/school"
	"github.com/trezcool/escola/core/user"
	"github.com/trezcool/escola/tests"
)

func turmaIDs(turmas []school.Turma) []string {
	ids := make([]string, 0, len(turmas))
	for _, t := range turmas {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestService_TurmasFor(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, admin := testutil.CreateUser(t, env, user.RoleAdmin, "Admin", "admin@escola.test")
	_, prof := testutil.CreateUser(t, env, user.RoleProfessor, "Prof", "prof@escola.test")
	_, other := testutil.CreateUser(t, env, user.RoleProfessor, "Outro", "outro@escola.test")
	alunoActor, aluno := testutil.CreateAluno(t, env, "Aluno", "aluno@escola.test")

	mine := testutil.CreateTurma(t, env, prof, "A - Matemática", 0)
	theirs := testutil.CreateTurma(t, env, other, "B - História", 0)
	orphan := testutil.CreateTurma(t, env, admin, "C - Artes", 0)
	testutil.Enroll(t, env, theirs.ID, aluno.ID)

	tests := []struct {
		name  string
		actor user.Actor
		want  []string
	}{
		{name: "admin sees all", actor: admin, want: []string{mine.ID, theirs.ID, orphan.ID}},
		{name: "professor sees own", actor: prof, want: []string{mine.ID}},
		{name: "aluno sees enrolled", actor: alunoActor, want: []string{theirs.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.School.TurmasFor(ctx, tt.actor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, turmaIDs(got))
		})
	}

	_, err := env.School.TurmasFor(ctx, user.Actor{ID: "x"})
	assert.Equal(t, core.ErrForbidden, err)
}

func TestService_Permissions(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, admin := testutil.CreateUser(t, env, user.RoleAdmin, "Admin", "admin@escola.test")
	_, prof := testutil.CreateUser(t, env, user.RoleProfessor, "Prof", "prof@escola.test")
	_, other := testutil.CreateUser(t, env, user.RoleProfessor, "Outro", "outro@escola.test")
	enrolledActor, aluno := testutil.CreateAluno(t, env, "Aluno", "aluno@escola.test")
	strangerActor, _ := testutil.CreateAluno(t, env, "Estranho", "estranho@escola.test")

	turma := testutil.CreateTurma(t, env, prof, "Turma", 0)
	testutil.Enroll(t, env, turma.ID, aluno.ID)

	_, err := env.School.CreateTurma(ctx, enrolledActor, school.NewTurma{Name: "X"})
	assert.Equal(t, core.ErrForbidden, err)

	tests := []struct {
		name       string
		actor      user.Actor
		wantManage error
		wantView   error
	}{
		{name: "admin", actor: admin},
		{name: "turma professor", actor: prof},
		{name: "other professor", actor: other, wantManage: core.ErrForbidden, wantView: core.ErrForbidden},
		{name: "enrolled aluno", actor: enrolledActor, wantManage: core.ErrForbidden},
		{name: "other aluno", actor: strangerActor, wantManage: core.ErrForbidden, wantView: core.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantManage, env.School.CheckCanManageTurma(ctx, tt.actor, turma.ID))
			assert.Equal(t, tt.wantView, env.School.CheckCanViewTurma(ctx, tt.actor, turma.ID))
		})
	}

	assert.True(t, core.IsNotFound(env.School.CheckCanManageTurma(ctx, admin, "missing")))
}

func TestService_Enroll(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, admin := testutil.CreateUser(t, env, user.RoleAdmin, "Admin", "admin@escola.test")
	_, ana := testutil.CreateAluno(t, env, "Ana", "ana@escola.test")
	_, bia := testutil.CreateAluno(t, env, "Bia", "bia@escola.test")
	_, caio := testutil.CreateAluno(t, env, "Caio", "caio@escola.test")
	turma := testutil.CreateTurma(t, env, admin, "Turma", 2)

	ms, err := env.School.Enroll(ctx, turma.ID, []string{bia.ID})
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, school.MatriculaAtiva, ms[0].Status)

	available, err := env.School.AvailableStudents(ctx, turma.ID)
	require.NoError(t, err)
	assert.Len(t, available, 2)

	t.Run("field errors", func(t *testing.T) {
		_, err := env.School.Enroll(ctx, turma.ID, []string{ana.ID, bia.ID, "missing"})
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok, "want a validation error, got %v", err)
		assert.Equal(t, []core.FieldError{
			{Field: "aluno_ids[1]", Error: school.ErrAlreadyEnrolled.Error()},
			{Field: "aluno_ids[2]", Error: school.ErrAlunoNotFound.Error()},
		}, verr.Fields)

		roster, err := env.School.Roster(ctx, turma.ID)
		require.NoError(t, err)
		assert.Len(t, roster, 1, "nothing is written when any aluno fails")
	})

	t.Run("duplicate ids in one request", func(t *testing.T) {
		_, err := env.School.Enroll(ctx, turma.ID, []string{ana.ID, ana.ID})
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok, "want a validation error, got %v", err)
		assert.Equal(t, "aluno_ids[1]", verr.Fields[0].Field)
	})

	t.Run("capacity", func(t *testing.T) {
		_, err := env.School.Enroll(ctx, turma.ID, []string{ana.ID, caio.ID})
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok, "want a validation error, got %v", err)
		assert.Equal(t, school.ErrTurmaFull, verr.Err)
	})

	t.Run("fills up", func(t *testing.T) {
		_, err := env.School.Enroll(ctx, turma.ID, []string{caio.ID})
		require.NoError(t, err)
		roster, err := env.School.Roster(ctx, turma.ID)
		require.NoError(t, err)
		require.Len(t, roster, 2)
		assert.Equal(t, "Bia", roster[0].Name)
		assert.Equal(t, "Caio", roster[1].Name)
	})

	_, err = env.School.Enroll(ctx, "missing", []string{ana.ID})
	assert.True(t, core.IsNotFound(err))
}

func TestService_Enroll_concurrent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, admin := testutil.CreateUser(t, env, user.RoleAdmin, "Admin", "admin@escola.test")
	turma := testutil.CreateTurma(t, env, admin, "Turma", 3)

	alunos := make([]school.Aluno, 10)
	for i := range alunos {
		_, alunos[i] = testutil.CreateAluno(t, env, fmt.Sprintf("Aluno %d", i), fmt.Sprintf("aluno%d@escola.test", i))
	}

	enrollAll := func(ids func(i int) []string) (accepted int, rejected []error) {
		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for i := range alunos {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := env.School.Enroll(ctx, turma.ID, ids(i))

				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					accepted++
				} else {
					rejected = append(rejected, err)
				}
			}(i)
		}
		wg.Wait()
		return accepted, rejected
	}

	t.Run("same aluno", func(t *testing.T) {
		accepted, rejected := enrollAll(func(int) []string { return []string{alunos[0].ID} })
		assert.Equal(t, 1, accepted)
		for _, err := range rejected {
			verr, ok := err.(*core.ValidationError)
			require.True(t, ok, "want a validation error, got %v", err)
			assert.Equal(t, school.ErrAlreadyEnrolled.Error(), verr.Fields[0].Error)
		}
	})

	t.Run("capacity", func(t *testing.T) {
		accepted, rejected := enrollAll(func(i int) []string { return []string{alunos[i].ID} })
		assert.Equal(t, 2, accepted, "one seat was already taken")
		assert.Len(t, rejected, 8)

		roster, err := env.School.Roster(ctx, turma.ID)
		require.NoError(t, err)
		assert.Len(t, roster, 3)
	})
}

func TestService_Aulas(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, prof := testutil.CreateUser(t, env, user.RoleProfessor, "Prof", "prof@escola.test")
	_, other := testutil.CreateUser(t, env, user.RoleProfessor, "Outro", "outro@escola.test")
	alunoActor, aluno := testutil.CreateAluno(t, env, "Aluno", "aluno@escola.test")
	turma := testutil.CreateTurma(t, env, prof, "Turma", 0)
	testutil.Enroll(t, env, turma.ID, aluno.ID)

	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	env.School.NowFunc = func() time.Time { return now }

	past := testutil.CreateAula(t, env, prof, turma.ID, now.Add(-24*time.Hour))
	soon := testutil.CreateAula(t, env, prof, turma.ID, now.Add(48*time.Hour))
	later := testutil.CreateAula(t, env, prof, turma.ID, now.Add(10*24*time.Hour))
	assert.Equal(t, turma.ProfessorID, soon.ProfessorID)
	assert.Equal(t, school.AulaAgendada, soon.Status)

	_, err := env.School.CreateAula(ctx, other, school.NewAula{
		TurmaID: turma.ID, Title: "X", StartsAt: now, EndsAt: now.Add(time.Hour),
	})
	assert.Equal(t, core.ErrForbidden, err)

	aulas, err := env.School.AulasFor(ctx, alunoActor, now.Add(-48*time.Hour), now.Add(30*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, aulas, 3)
	assert.Equal(t, []string{past.ID, soon.ID, later.ID}, []string{aulas[0].ID, aulas[1].ID, aulas[2].ID})

	upcoming, err := env.School.UpcomingAulas(ctx, alunoActor, 0)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, soon.ID, upcoming[0].ID)

	aulas, err = env.School.AulasFor(ctx, other, now, now.Add(30*24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, aulas)

	t.Run("reminders", func(t *testing.T) {
		due, err := env.School.AulasToRemind(ctx, now, now.Add(72*time.Hour))
		require.NoError(t, err)
		require.Len(t, due, 1)
		require.NoError(t, env.School.MarkReminded(ctx, soon.ID))

		due, err = env.School.AulasToRemind(ctx, now, now.Add(72*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}

func TestService_Materials(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, prof := testutil.CreateUser(t, env, user.RoleProfessor, "Prof", "prof@escola.test")
	alunoActor, _ := testutil.CreateAluno(t, env, "Aluno", "aluno@escola.test")
	turma := testutil.CreateTurma(t, env, prof, "Turma", 0)
	aula := testutil.CreateAula(t, env, prof, turma.ID, time.Now().Add(time.Hour))

	_, err := env.School.AddMaterial(ctx, prof, aula.ID, "aulas/slides.pdf")
	require.NoError(t, err)
	got, err := env.School.AddMaterial(ctx, prof, aula.ID, "aulas/exercicios.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"aulas/slides.pdf", "aulas/exercicios.pdf"}, got.Materiais)

	_, err = env.School.AddMaterial(ctx, alunoActor, aula.ID, "x.pdf")
	assert.Equal(t, core.ErrForbidden, err)

	got, err = env.School.RemoveMaterial(ctx, prof, aula.ID, "aulas/slides.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"aulas/exercicios.pdf"}, got.Materiais)

	_, err = env.School.RemoveMaterial(ctx, prof, aula.ID, "aulas/slides.pdf")
	assert.Equal(t, school.ErrMaterialNotFound, err)

	imported, err := env.School.ImportLegacyMaterials(ctx, aula.ID, "a.pdf, b.pdf,,a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, imported)

	stored, err := env.School.GetAula(ctx, aula.ID)
	require.NoError(t, err)
	assert.Equal(t, imported, stored.Materiais)
}
