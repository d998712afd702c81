//go:build integration
// +build integration

package sqlxrepos

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/assessment"
	"github.com/trezcool/escola/core/attendance"
	"github.com/trezcool/escola/core/content"
	"github.com/trezcool/escola/core/gamification"
	"github.com/trezcool/escola/core/invite"
	"github.com/trezcool/escola/core/school"
	"github.com/trezcool/escola/core/user"
	"github.com/trezcool/escola/storage/database"
)

var store *Store

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:17-alpine"),
		postgres.WithDatabase("escola"),
		postgres.WithUsername("escola"),
		postgres.WithPassword("escola"),
	)
	if err != nil {
		panic(err)
	}
	defer func() { _ = pg.Terminate(context.Background()) }()

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}
	driver := "postgres"
	if os.Getenv("ESCOLA_TEST_DRIVER") == "pgx" {
		driver = "pgx"
	}
	db, err := database.OpenURL(driver, dsn)
	if err != nil {
		panic(err)
	}
	defer func() { _ = db.Close() }()

	if err = database.Ping(ctx, db); err != nil {
		panic(err)
	}
	if err = database.Migrate(ctx, db.DB); err != nil {
		panic(err)
	}

	store = NewStore(db, 5*time.Second)
	return m.Run()
}

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func createUser(t *testing.T, email string) user.User {
	t.Helper()
	at := now()
	usr, err := NewUserRepository(store).CreateUser(context.Background(), user.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      "User " + email,
		Metadata:  map[string]string{"origem": "teste"},
		CreatedAt: at,
		UpdatedAt: at,
	})
	require.NoError(t, err)
	return usr
}

func createAluno(t *testing.T, usr user.User) school.Aluno {
	t.Helper()
	a, err := NewSchoolRepository(store).CreateAluno(context.Background(), school.Aluno{
		ID:        uuid.New().String(),
		UserID:    usr.ID,
		Name:      usr.Name,
		Email:     usr.Email,
		CreatedAt: now(),
	})
	require.NoError(t, err)
	return a
}

func createTurmaAndAula(t *testing.T) (school.Turma, school.Aula) {
	t.Helper()
	ctx := context.Background()
	repo := NewSchoolRepository(store)

	turma, err := repo.CreateTurma(ctx, school.Turma{
		ID:        uuid.New().String(),
		Name:      "Turma " + uuid.New().String()[:8],
		Status:    school.TurmaAtiva,
		CreatedAt: now(),
	})
	require.NoError(t, err)

	start := now().Add(24 * time.Hour)
	aula, err := repo.CreateAula(ctx, school.Aula{
		ID:        uuid.New().String(),
		TurmaID:   turma.ID,
		Title:     "Aula 1",
		StartsAt:  start,
		EndsAt:    start.Add(time.Hour),
		Status:    school.AulaAgendada,
		Materiais: []string{"turmas/a/slides.pdf"},
		CreatedAt: now(),
	})
	require.NoError(t, err)
	return turma, aula
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(store)
	usr := createUser(t, "ana@escola.test")

	_, err := repo.CreateUser(ctx, user.User{ID: uuid.New().String(), Email: usr.Email, CreatedAt: now(), UpdatedAt: now()})
	assert.Equal(t, user.ErrEmailExists, err)

	got, err := repo.GetUserByEmail(ctx, "ANA@escola.test")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.Equal(t, "teste", got.Metadata["origem"])
	assert.True(t, got.LastLogin.IsZero())

	_, err = repo.GetRole(ctx, usr.ID)
	assert.Equal(t, user.ErrRoleNotFound, err)
	require.NoError(t, repo.SetRole(ctx, user.RoleRecord{UserID: usr.ID, Role: user.RoleAluno, CreatedAt: now()}))
	require.NoError(t, repo.SetRole(ctx, user.RoleRecord{UserID: usr.ID, Role: user.RoleProfessor, CreatedAt: now()}))
	rec, err := repo.GetRole(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleProfessor, rec.Role)

	assert.Equal(t, user.ErrNotFound, repo.SetRole(ctx, user.RoleRecord{UserID: uuid.New().String(), Role: user.RoleAluno, CreatedAt: now()}))

	listings, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, listings)

	require.NoError(t, repo.DeleteUser(ctx, usr.ID))
	assert.Equal(t, user.ErrNotFound, repo.DeleteUser(ctx, usr.ID))
	_, err = repo.GetRole(ctx, usr.ID)
	assert.Equal(t, user.ErrRoleNotFound, err)
}

func TestInviteRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInviteRepository(store)
	admin := createUser(t, "admin@escola.test")

	at := now()
	inv := invite.Invite{
		ID:        uuid.New().String(),
		Email:     "novo@escola.test",
		Role:      user.RoleAluno,
		Token:     uuid.New().String(),
		Status:    invite.StatusPending,
		ExpiresAt: at.Add(time.Hour),
		InvitedBy: admin.ID,
		CreatedAt: at,
		UpdatedAt: at,
	}
	_, err := repo.CreateInvite(ctx, inv)
	require.NoError(t, err)

	got, err := repo.GetInviteByToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, admin.Name, got.InvitedByName)

	require.NoError(t, repo.MarkInviteAccepted(ctx, inv.Token, at))
	assert.Equal(t, invite.ErrAlreadyUsed, repo.MarkInviteAccepted(ctx, inv.Token, at))

	_, err = repo.FindPendingInvite(ctx, inv.Email, inv.Role)
	assert.Equal(t, invite.ErrNotFound, err)
}

func TestSchoolRepository_Enrollment(t *testing.T) {
	ctx := context.Background()
	repo := NewSchoolRepository(store)
	turma, _ := createTurmaAndAula(t)
	aluno := createAluno(t, createUser(t, "bia@escola.test"))

	m := school.Matricula{ID: uuid.New().String(), AlunoID: aluno.ID, TurmaID: turma.ID, Status: school.MatriculaAtiva, CreatedAt: now()}
	require.NoError(t, repo.CreateMatriculas(ctx, []school.Matricula{m}))

	m.ID = uuid.New().String()
	err := repo.CreateMatriculas(ctx, []school.Matricula{m})
	assert.True(t, core.IsConflict(err))

	assert.Equal(t, errNoTx, repo.LockTurma(ctx, turma.ID))
	require.NoError(t, store.InTx(ctx, func(ctx context.Context) error {
		return repo.LockTurma(ctx, turma.ID)
	}))
	err = store.InTx(ctx, func(ctx context.Context) error {
		return repo.LockTurma(ctx, uuid.New().String())
	})
	assert.Equal(t, school.ErrTurmaNotFound, err)

	alunos, err := repo.ListEnrolledAlunos(ctx, turma.ID)
	require.NoError(t, err)
	require.Len(t, alunos, 1)
	assert.Equal(t, aluno.ID, alunos[0].ID)

	turmas, err := repo.ListTurmas(ctx, school.TurmaFilter{AlunoID: aluno.ID})
	require.NoError(t, err)
	require.Len(t, turmas, 1)
	assert.Equal(t, turma.ID, turmas[0].ID)
}

func TestSchoolRepository_Aulas(t *testing.T) {
	ctx := context.Background()
	repo := NewSchoolRepository(store)
	turma, aula := createTurmaAndAula(t)

	require.NoError(t, repo.UpdateMateriais(ctx, aula.ID, []string{"a.pdf", "b.pdf"}))
	got, err := repo.GetAula(ctx, aula.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, got.Materiais)

	aulas, err := repo.ListAulas(ctx, school.AulaFilter{TurmaIDs: []string{turma.ID}, Statuses: []school.AulaStatus{school.AulaAgendada}})
	require.NoError(t, err)
	assert.Len(t, aulas, 1)

	due, err := repo.ListAulasToRemind(ctx, aula.StartsAt.Add(-time.Minute), aula.StartsAt.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.NoError(t, repo.MarkAulaReminded(ctx, aula.ID, now()))
	due, err = repo.ListAulasToRemind(ctx, aula.StartsAt.Add(-time.Minute), aula.StartsAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, due)

	assert.Equal(t, school.ErrAulaNotFound, repo.UpdateMateriais(ctx, uuid.New().String(), nil))
}

func TestAttendanceRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewAttendanceRepository(store)
	_, aula := createTurmaAndAula(t)
	aluno := createAluno(t, createUser(t, "caio@escola.test"))

	first, err := repo.UpsertPresenca(ctx, attendance.Presenca{ID: uuid.New().String(), AulaID: aula.ID, AlunoID: aluno.ID, Presente: true, UpdatedAt: now()})
	require.NoError(t, err)
	second, err := repo.UpsertPresenca(ctx, attendance.Presenca{ID: uuid.New().String(), AulaID: aula.ID, AlunoID: aluno.ID, Observacoes: "atrasado", UpdatedAt: now()})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Presente)

	ps, err := repo.ListPresencas(ctx, aula.ID)
	require.NoError(t, err)
	assert.Len(t, ps, 1)

	_, err = repo.UpsertPresenca(ctx, attendance.Presenca{ID: uuid.New().String(), AulaID: uuid.New().String(), AlunoID: aluno.ID, UpdatedAt: now()})
	assert.Equal(t, school.ErrAulaNotFound, err)
}

func TestAssessmentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAssessmentRepository(store)
	turma, _ := createTurmaAndAula(t)
	aluno := createAluno(t, createUser(t, "davi@escola.test"))

	av, err := repo.CreateAvaliacao(ctx, assessment.Avaliacao{
		ID:      uuid.New().String(),
		TurmaID: turma.ID,
		Title:   "Quiz",
		Questoes: assessment.Questions{
			{Text: "2+2?", Kind: assessment.MultipleChoice, Options: []string{"3", "4"}, CorrectIndex: 1, Points: 1},
		},
		NotaMinima: 70,
		CreatedAt:  now(),
	})
	require.NoError(t, err)

	got, err := repo.GetAvaliacao(ctx, av.ID)
	require.NoError(t, err)
	assert.Equal(t, av.Questoes, got.Questoes)

	one := 1
	_, err = repo.CreateTentativa(ctx, assessment.Tentativa{
		ID:          uuid.New().String(),
		AvaliacaoID: av.ID,
		AlunoID:     aluno.ID,
		Respostas:   assessment.Answers{{Selected: &one}},
		Pontuacao:   1,
		Percentual:  100,
		Aprovado:    true,
		CreatedAt:   now(),
	})
	require.NoError(t, err)

	n, err := repo.CountTentativas(ctx, av.ID, aluno.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ts, err := repo.ListTentativas(ctx, av.ID, "")
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, 100.0, ts[0].Percentual)
}

func TestAssessmentRepository_LockTentativas(t *testing.T) {
	ctx := context.Background()
	repo := NewAssessmentRepository(store)
	avID, alunoID := uuid.New().String(), uuid.New().String()

	assert.Equal(t, errNoTx, repo.LockTentativas(ctx, avID, alunoID))

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.InTx(ctx, func(ctx context.Context) error {
			if err := repo.LockTentativas(ctx, avID, alunoID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	acquired := make(chan error, 1)
	go func() {
		acquired <- store.InTx(ctx, func(ctx context.Context) error {
			return repo.LockTentativas(ctx, avID, alunoID)
		})
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held by another transaction")
	case <-time.After(200 * time.Millisecond):
	}

	// another aluno is not blocked
	require.NoError(t, store.InTx(ctx, func(ctx context.Context) error {
		return repo.LockTentativas(ctx, avID, uuid.New().String())
	}))

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, <-acquired)
}

func TestContentRepository_Avisos(t *testing.T) {
	ctx := context.Background()
	repo := NewContentRepository(store)
	turma, _ := createTurmaAndAula(t)
	other, _ := createTurmaAndAula(t)

	for _, tid := range []string{"", turma.ID, other.ID} {
		_, err := repo.CreateAviso(ctx, content.Aviso{ID: uuid.New().String(), TurmaID: tid, Title: "Aviso", Body: "corpo", PublishedAt: now()})
		require.NoError(t, err)
	}

	avisos, err := repo.ListAvisos(ctx, []string{turma.ID}, 0)
	require.NoError(t, err)
	for _, a := range avisos {
		assert.NotEqual(t, other.ID, a.TurmaID)
	}
}

func TestGamificationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGamificationRepository(store)
	usr := createUser(t, "eva@escola.test")

	entry := gamification.Entry{ID: uuid.New().String(), UserID: usr.ID, Amount: 10, Reason: "presença", Source: "presenca:1", CreatedAt: now()}
	added, err := repo.AddPoints(ctx, entry)
	require.NoError(t, err)
	assert.True(t, added)

	entry.ID = uuid.New().String()
	added, err = repo.AddPoints(ctx, entry)
	require.NoError(t, err)
	assert.False(t, added)

	total, err := repo.TotalPoints(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, total)

	removed, err := repo.RemovePoints(ctx, usr.ID, entry.Source)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.RemovePoints(ctx, usr.ID, entry.Source)
	require.NoError(t, err)
	assert.False(t, removed)

	added, err = repo.AddPoints(ctx, entry)
	require.NoError(t, err)
	assert.True(t, added, "a removed source can be credited again")

	c := gamification.Conquista{UserID: usr.ID, Badge: gamification.BadgePrimeiraAprovacao, UnlockedAt: now()}
	unlocked, err := repo.UnlockBadge(ctx, c)
	require.NoError(t, err)
	assert.True(t, unlocked)
	unlocked, err = repo.UnlockBadge(ctx, c)
	require.NoError(t, err)
	assert.False(t, unlocked)
}

func TestStore_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(store)
	id := uuid.New().String()

	err := store.InTx(ctx, func(ctx context.Context) error {
		_, err := repo.CreateUser(ctx, user.User{ID: id, Email: "tx@escola.test", CreatedAt: now(), UpdatedAt: now()})
		require.NoError(t, err)
		return user.ErrEmailExists
	})
	assert.Equal(t, user.ErrEmailExists, err)

	_, err = repo.GetUserByID(ctx, id)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestStore_InTxLostConnection(t *testing.T) {
	ctx := context.Background()

	err := store.InTx(ctx, func(ctx context.Context) error {
		var pid int
		require.NoError(t, store.get(ctx, &pid, nil, "SELECT pg_backend_pid()"))

		var terminated bool
		require.NoError(t, store.DB().GetContext(ctx, &terminated, "SELECT pg_terminate_backend($1, 5000)", pid))
		require.True(t, terminated)
		return user.ErrEmailExists
	})
	require.Error(t, err)
	assert.True(t, core.IsShutdown(err), "got %v", err)
	assert.Contains(t, err.Error(), user.ErrEmailExists.Error())
}
