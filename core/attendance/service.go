package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/school"
)

// PointsPerPresence is what an aluno earns for being present at an aula.
const PointsPerPresence = 10

var errNotOnRoster = errors.New("aluno is not enrolled in this aula's turma")

type (
	Repository interface {
		ListPresencas(ctx context.Context, aulaID string) ([]Presenca, error)
		// UpsertPresenca inserts p or updates the row already stored for (p.AulaID, p.AlunoID).
		UpsertPresenca(ctx context.Context, p Presenca) (Presenca, error)
	}

	// Classes gives access to aulas and the alunos actively enrolled in a turma.
	Classes interface {
		GetAula(ctx context.Context, id string) (school.Aula, error)
		Roster(ctx context.Context, turmaID string) ([]school.Aluno, error)
	}

	// Awarder credits presence points, and takes them back when the aluno is marked absent.
	Awarder interface {
		Award(ctx context.Context, userID string, amount int, reason, source string) (bool, error)
		Revoke(ctx context.Context, userID, source string) (bool, error)
	}

	Service struct {
		repo    Repository
		classes Classes
		points  Awarder
		logger  core.Logger
		NowFunc func() time.Time // mockable
	}
)

func NewService(repo Repository, classes Classes, points Awarder, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		classes: classes,
		points:  points,
		logger:  logger,
		NowFunc: time.Now,
	}
}

// RollCall returns one record per aluno enrolled in the aula's turma, ordered by name.
// Alunos without a stored presence are absent with no observations.
func (svc *Service) RollCall(ctx context.Context, aulaID string) ([]Record, error) {
	aula, err := svc.classes.GetAula(ctx, aulaID)
	if err != nil {
		return nil, err
	}
	roster, err := svc.classes.Roster(ctx, aula.TurmaID)
	if err != nil {
		return nil, errors.Wrap(err, "getting roster")
	}
	stored, err := svc.repo.ListPresencas(ctx, aulaID)
	if err != nil {
		return nil, errors.Wrap(err, "listing presencas")
	}

	byAluno := make(map[string]Presenca, len(stored))
	for _, p := range stored {
		byAluno[p.AlunoID] = p
	}
	records := make([]Record, 0, len(roster))
	for _, a := range roster {
		rec := Record{AlunoID: a.ID, AlunoName: a.Name}
		if p, ok := byAluno[a.ID]; ok {
			rec.Presente = p.Presente
			rec.Observacoes = p.Observacoes
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save stores every record of the roll call. A failing row does not stop the others;
// the result has one outcome per record, in order.
func (svc *Service) Save(ctx context.Context, aulaID string, records []Record) (BatchResult, error) {
	aula, err := svc.classes.GetAula(ctx, aulaID)
	if err != nil {
		return BatchResult{}, err
	}
	roster, err := svc.classes.Roster(ctx, aula.TurmaID)
	if err != nil {
		return BatchResult{}, errors.Wrap(err, "getting roster")
	}
	enrolled := make(map[string]school.Aluno, len(roster))
	for _, a := range roster {
		enrolled[a.ID] = a
	}

	result := BatchResult{Outcomes: make([]RowOutcome, 0, len(records))}
	for _, rec := range records {
		if err = ctx.Err(); err != nil {
			return result, err
		}
		outcome := RowOutcome{AlunoID: rec.AlunoID, Status: OutcomeOK}
		aluno, ok := enrolled[rec.AlunoID]
		if ok {
			err = svc.save(ctx, aula, aluno, rec)
		} else {
			err = errNotOnRoster
		}
		if err != nil {
			outcome.Status = OutcomeError
			outcome.Error = err.Error()
			result.Failed++
		} else {
			result.Saved++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result, nil
}

func (svc *Service) save(ctx context.Context, aula school.Aula, aluno school.Aluno, rec Record) error {
	_, err := svc.repo.UpsertPresenca(ctx, Presenca{
		ID:          uuid.New().String(),
		AulaID:      aula.ID,
		AlunoID:     aluno.ID,
		Presente:    rec.Presente,
		Observacoes: core.CleanString(rec.Observacoes),
		UpdatedAt:   svc.NowFunc().UTC(),
	})
	if err != nil {
		svc.logger.Error("saving presenca", errors.Wrap(err, aluno.ID))
		return errors.Wrap(err, "saving presenca")
	}

	if aluno.UserID == "" {
		return nil
	}
	source := "presenca:" + aula.ID
	if rec.Presente {
		_, err = svc.points.Award(ctx, aluno.UserID, PointsPerPresence, "Presença: "+aula.Title, source)
		if err != nil {
			svc.logger.Warn("awarding attendance points", err)
		}
	} else if _, err = svc.points.Revoke(ctx, aluno.UserID, source); err != nil {
		svc.logger.Warn("revoking attendance points", err)
	}
	return nil
}

// SheetRows renders the roll call as spreadsheet rows, under SheetHeader.
func SheetRows(records []Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		presente := "Não"
		if rec.Presente {
			presente = "Sim"
		}
		rows = append(rows, []string{rec.AlunoName, presente, rec.Observacoes})
	}
	return rows
}

var SheetHeader = []string{"Aluno", "Presente", "Observações"}
