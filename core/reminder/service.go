package reminder

import (
	"context"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/school"
)

const defaultConcurrency = 4

var errNoEmail = errors.New("aluno has no email address")

type (
	Classes interface {
		GetAula(ctx context.Context, id string) (school.Aula, error)
		GetTurma(ctx context.Context, id string) (school.Turma, error)
		Roster(ctx context.Context, turmaID string) ([]school.Aluno, error)
		AulasToRemind(ctx context.Context, from, to time.Time) ([]school.Aula, error)
		MarkReminded(ctx context.Context, aulaID string) error
	}

	Failure struct {
		AlunoID string `json:"aluno_id"`
		Email   string `json:"email"`
		Error   string `json:"error"`
	}

	// Summary reports a reminder fan-out: one email per enrolled aluno.
	Summary struct {
		Total    int       `json:"total"`
		Sent     int       `json:"sent"`
		Failed   int       `json:"failed"`
		Failures []Failure `json:"failures"`
	}

	Request struct {
		AulaID           string `json:"aulaId" validate:"required,uuid"`
		HoursBeforeClass int    `json:"hoursBeforeClass" validate:"gte=0,lte=168"`
	}

	Service struct {
		classes     Classes
		mailSvc     core.EmailService
		concurrency int
		logger      core.Logger
		Location    *time.Location // used to format dates in emails
		NowFunc     func() time.Time
	}
)

func (r *Request) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func NewService(classes Classes, mailSvc core.EmailService, concurrency int, logger core.Logger) *Service {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	return &Service{
		classes:     classes,
		mailSvc:     mailSvc,
		concurrency: concurrency,
		logger:      logger,
		Location:    loc,
		NowFunc:     time.Now,
	}
}

// SendForAula emails every aluno enrolled in the aula's turma. A failed email does not stop the others.
func (svc *Service) SendForAula(ctx context.Context, aulaID string, hoursBefore int) (Summary, error) {
	aula, err := svc.classes.GetAula(ctx, aulaID)
	if err != nil {
		return Summary{}, err
	}
	turma, err := svc.classes.GetTurma(ctx, aula.TurmaID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "getting turma")
	}
	alunos, err := svc.classes.Roster(ctx, aula.TurmaID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "getting roster")
	}

	sum := Summary{Total: len(alunos), Failures: []Failure{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.concurrency)
	for _, aluno := range alunos {
		aluno := aluno
		g.Go(func() error {
			err := svc.send(gctx, aula, turma, aluno, hoursBefore)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Failed++
				sum.Failures = append(sum.Failures, Failure{AlunoID: aluno.ID, Email: aluno.Email, Error: err.Error()})
				svc.logger.Warn("sending class reminder", errors.Wrap(err, aluno.Email))
				return nil // keep going
			}
			sum.Sent++
			return nil
		})
	}
	_ = g.Wait()
	return sum, ctx.Err()
}

func (svc *Service) send(ctx context.Context, aula school.Aula, turma school.Turma, aluno school.Aluno, hoursBefore int) error {
	if strings.TrimSpace(aluno.Email) == "" {
		return errNoEmail
	}
	starts := aula.StartsAt.In(svc.Location)
	ends := aula.EndsAt.In(svc.Location)

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: aluno.Name, Address: aluno.Email}},
		Subject:      "Lembrete: " + aula.Title,
		TemplateName: "class_reminder",
		TemplateData: map[string]interface{}{
			"AlunoName":   aluno.Name,
			"AulaTitle":   aula.Title,
			"TurmaName":   turma.Name,
			"HoursBefore": hoursBefore,
			"Date":        starts.Format("02/01/2006"),
			"StartTime":   starts.Format("15:04"),
			"EndTime":     ends.Format("15:04"),
			"Location":    aula.Location,
			"AulaID":      aula.ID,
		},
	}
	if err := msg.Attach(strings.NewReader(ICS(aula, turma.Name, svc.NowFunc())), "aula.ics", "text/calendar"); err != nil {
		return errors.Wrap(err, "attaching calendar event")
	}
	return svc.mailSvc.Send(ctx, msg)
}

// SendDue reminds the alunos of every aula starting within window that was not reminded yet, and stamps it.
// It returns how many aulas were processed.
func (svc *Service) SendDue(ctx context.Context, window time.Duration) (int, error) {
	now := svc.NowFunc().UTC()
	aulas, err := svc.classes.AulasToRemind(ctx, now, now.Add(window))
	if err != nil {
		return 0, errors.Wrap(err, "listing aulas to remind")
	}

	var done int
	for _, aula := range aulas {
		hours := int(aula.StartsAt.Sub(now).Hours())
		sum, err := svc.SendForAula(ctx, aula.ID, hours)
		if err != nil {
			return done, err
		}
		if sum.Failed > 0 {
			svc.logger.Warn("class reminders partially failed", map[string]interface{}{
				"aula_id": aula.ID,
				"sent":    sum.Sent,
				"failed":  sum.Failed,
			})
		}
		if err = svc.classes.MarkReminded(ctx, aula.ID); err != nil {
			return done, errors.Wrap(err, "marking aula reminded")
		}
		done++
	}
	return done, nil
}
