// Package testutil wires the services over the in-memory store for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/assessment"
	"github.com/trezcool/escola/core/attendance"
	"github.com/trezcool/escola/core/auth"
	"github.com/trezcool/escola/core/content"
	"github.com/trezcool/escola/core/feedback"
	"github.com/trezcool/escola/core/gamification"
	"github.com/trezcool/escola/core/invite"
	"github.com/trezcool/escola/core/reminder"
	"github.com/trezcool/escola/core/school"
	"github.com/trezcool/escola/core/user"
	"github.com/trezcool/escola/services/email"
	"github.com/trezcool/escola/services/logger"
	"github.com/trezcool/escola/storage/cache"
	"github.com/trezcool/escola/storage/database/inmem"
)

// Password satisfies the password policy and is far from every name used in tests.
const Password = "C0rrect-Horse!"

type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Mail       *emailsvc.ConsoleServiceMock
	Validate   *validator.Validate
	Translator ut.Translator

	DB          *inmemdb.DB
	UserRepo    user.Repository
	Revocations *cache.MemoryRevocationStore

	Users       *user.Service
	Invites     *invite.Service
	Sessions    *auth.Manager
	School      *school.Service
	Points      *gamification.Service
	Attendance  *attendance.Service
	Assessments *assessment.Service
	Feedback    *feedback.Service
	Content     *content.Service
	Reminders   *reminder.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewNop()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	revocations := cache.NewMemoryRevocationStore()

	schoolSvc := school.NewService(inmemdb.NewSchoolRepository(db), db)
	pointsSvc := gamification.NewService(inmemdb.NewGamificationRepository(db), logger)
	inviteSvc := invite.NewService(inmemdb.NewInviteRepository(db), usrRepo, mailSvc, conf.InviteTTL, logger)
	usrSvc := user.NewService(usrRepo, schoolSvc, inviteSvc, db)

	return &Env{
		Conf:        conf,
		Logger:      logger,
		Mail:        mailSvc,
		Validate:    validate,
		Translator:  translator,
		DB:          db,
		UserRepo:    usrRepo,
		Revocations: revocations,
		Users:       usrSvc,
		Invites:     inviteSvc,
		Sessions:    auth.NewManager(usrSvc, revocations, conf.JWTRefreshExpirationDelta, logger),
		School:      schoolSvc,
		Points:      pointsSvc,
		Attendance:  attendance.NewService(inmemdb.NewAttendanceRepository(db), schoolSvc, pointsSvc, logger),
		Assessments: assessment.NewService(inmemdb.NewAssessmentRepository(db), schoolSvc, pointsSvc, db, logger),
		Feedback:    feedback.NewService(inmemdb.NewFeedbackRepository(db), schoolSvc),
		Content:     content.NewService(inmemdb.NewContentRepository(db), schoolSvc),
		Reminders:   reminder.NewService(schoolSvc, mailSvc, conf.Jobs.ReminderConcurrency, logger),
	}
}

// CreateUser creates a user holding role, with its profile, and returns it with its actor.
func CreateUser(t *testing.T, env *Env, role user.Role, name, email string) (user.User, user.Actor) {
	t.Helper()
	usr, err := env.Users.Create(context.Background(), user.NewUser{
		Email:    email,
		Password: Password,
		Name:     name,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr, user.Actor{ID: usr.ID, Email: usr.Email, Name: usr.Name, Role: role}
}

// CreateAluno creates an aluno user and returns its actor and profile.
func CreateAluno(t *testing.T, env *Env, name, email string) (user.Actor, school.Aluno) {
	t.Helper()
	_, actor := CreateUser(t, env, user.RoleAluno, name, email)
	aluno, err := env.School.AlunoFor(context.Background(), actor)
	if err != nil {
		t.Fatalf("CreateAluno() failed: %v", err)
	}
	return actor, aluno
}

func CreateTurma(t *testing.T, env *Env, actor user.Actor, name string, capacity int) school.Turma {
	t.Helper()
	turma, err := env.School.CreateTurma(context.Background(), actor, school.NewTurma{
		Name:     name,
		Capacity: capacity,
		Status:   school.TurmaAtiva,
	})
	if err != nil {
		t.Fatalf("CreateTurma() failed: %v", err)
	}
	return turma
}

// CreateAula schedules a one hour aula in the turma.
func CreateAula(t *testing.T, env *Env, actor user.Actor, turmaID string, startsAt time.Time) school.Aula {
	t.Helper()
	aula, err := env.School.CreateAula(context.Background(), actor, school.NewAula{
		TurmaID:  turmaID,
		Title:    "Aula " + startsAt.Format("02/01 15:04"),
		StartsAt: startsAt,
		EndsAt:   startsAt.Add(time.Hour),
		Location: "Sala 1",
	})
	if err != nil {
		t.Fatalf("CreateAula() failed: %v", err)
	}
	return aula
}

func Enroll(t *testing.T, env *Env, turmaID string, alunoIDs ...string) {
	t.Helper()
	if _, err := env.School.Enroll(context.Background(), turmaID, alunoIDs); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
}
