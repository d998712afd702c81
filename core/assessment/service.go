package assessment

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/gamification"
	"github.com/trezcool/escola/core/school"
	"github.com/trezcool/escola/core/user"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("avaliacao not found")
	ErrAttemptLimit = core.NewConflictError("maximum number of attempts reached")
)

// Score grades answers against the quiz. Only multiple-choice questions are scored;
// the percentage is rounded to one decimal before being compared with the pass mark.
func Score(av Avaliacao, answers []Answer) Result {
	var pts float64
	for i, q := range av.Questoes {
		if q.Kind != MultipleChoice || i >= len(answers) {
			continue
		}
		if sel := answers[i].Selected; sel != nil && *sel == q.CorrectIndex {
			pts += q.Points
		}
	}

	total := av.TotalPoints()
	if total <= 0 {
		return Result{Pontuacao: pts}
	}
	pct := math.Round(pts/total*1000) / 10
	return Result{
		Pontuacao:  pts,
		Percentual: pct,
		Aprovado:   pct >= av.NotaMinima,
	}
}

type (
	Repository interface {
		CreateAvaliacao(ctx context.Context, av Avaliacao) (Avaliacao, error)
		GetAvaliacao(ctx context.Context, id string) (Avaliacao, error)
		ListAvaliacoes(ctx context.Context, turmaIDs []string) ([]Avaliacao, error)

		CreateTentativa(ctx context.Context, t Tentativa) (Tentativa, error)
		// LockTentativas serializes the attempts of aluno at a quiz until the surrounding transaction ends.
		LockTentativas(ctx context.Context, avaliacaoID, alunoID string) error
		CountTentativas(ctx context.Context, avaliacaoID, alunoID string) (int, error)
		// ListTentativas returns the attempts at a quiz, newest first. An empty alunoID lists every aluno's.
		ListTentativas(ctx context.Context, avaliacaoID, alunoID string) ([]Tentativa, error)
		ListTentativasByAluno(ctx context.Context, alunoID string) ([]Tentativa, error)
	}

	TurmaGuard interface {
		CheckCanManageTurma(ctx context.Context, actor user.Actor, turmaID string) error
	}

	Rewarder interface {
		Award(ctx context.Context, userID string, amount int, reason, source string) (bool, error)
		Unlock(ctx context.Context, userID string, badge gamification.Badge) (bool, error)
	}

	Service struct {
		repo    Repository
		turmas  TurmaGuard
		rewards Rewarder
		tx      core.Transactor
		logger  core.Logger
		NowFunc func() time.Time // mockable
	}
)

func NewService(repo Repository, turmas TurmaGuard, rewards Rewarder, tx core.Transactor, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		turmas:  turmas,
		rewards: rewards,
		tx:      tx,
		logger:  logger,
		NowFunc: time.Now,
	}
}

func (svc *Service) Create(ctx context.Context, actor user.Actor, na NewAvaliacao) (Avaliacao, error) {
	if err := svc.turmas.CheckCanManageTurma(ctx, actor, na.TurmaID); err != nil {
		return Avaliacao{}, err
	}
	return svc.repo.CreateAvaliacao(ctx, Avaliacao{
		ID:            uuid.New().String(),
		TurmaID:       na.TurmaID,
		Title:         na.Title,
		Questoes:      na.Questoes,
		NotaMinima:    na.NotaMinima,
		PontosTotais:  na.PontosTotais,
		MaxTentativas: na.MaxTentativas,
		CreatedBy:     actor.ID,
		CreatedAt:     svc.NowFunc().UTC(),
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Avaliacao, error) {
	return svc.repo.GetAvaliacao(ctx, id)
}

func (svc *Service) List(ctx context.Context, turmaIDs []string) ([]Avaliacao, error) {
	if len(turmaIDs) == 0 {
		return []Avaliacao{}, nil
	}
	return svc.repo.ListAvaliacoes(ctx, turmaIDs)
}

// Submit scores and stores a new attempt by aluno. The first approval at a quiz is rewarded.
func (svc *Service) Submit(ctx context.Context, avaliacaoID string, aluno school.Aluno, answers []Answer) (Tentativa, error) {
	av, err := svc.repo.GetAvaliacao(ctx, avaliacaoID)
	if err != nil {
		return Tentativa{}, err
	}
	res := Score(av, answers)

	var t Tentativa
	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		if av.MaxTentativas > 0 {
			if err := svc.repo.LockTentativas(ctx, av.ID, aluno.ID); err != nil {
				return errors.Wrap(err, "locking tentativas")
			}
			n, err := svc.repo.CountTentativas(ctx, av.ID, aluno.ID)
			if err != nil {
				return errors.Wrap(err, "counting tentativas")
			}
			if n >= av.MaxTentativas {
				return ErrAttemptLimit
			}
		}

		var err error
		t, err = svc.repo.CreateTentativa(ctx, Tentativa{
			ID:          uuid.New().String(),
			AvaliacaoID: av.ID,
			AlunoID:     aluno.ID,
			Respostas:   answers,
			Pontuacao:   res.Pontuacao,
			Percentual:  res.Percentual,
			Aprovado:    res.Aprovado,
			CreatedAt:   svc.NowFunc().UTC(),
		})
		return errors.Wrap(err, "creating tentativa")
	})
	if err != nil {
		return Tentativa{}, err
	}

	if t.Aprovado && aluno.UserID != "" {
		svc.reward(ctx, av, aluno, res)
	}
	return t, nil
}

func (svc *Service) reward(ctx context.Context, av Avaliacao, aluno school.Aluno, res Result) {
	if amount := int(math.Round(res.Pontuacao)); amount > 0 {
		if _, err := svc.rewards.Award(ctx, aluno.UserID, amount, "Aprovação: "+av.Title, "avaliacao:"+av.ID); err != nil {
			svc.logger.Warn("awarding quiz points", err)
		}
	}
	if _, err := svc.rewards.Unlock(ctx, aluno.UserID, gamification.BadgePrimeiraAprovacao); err != nil {
		svc.logger.Warn("unlocking first approval badge", err)
	}
}

// Attempts lists the attempts at a quiz, newest first. An empty alunoID lists everyone's.
func (svc *Service) Attempts(ctx context.Context, avaliacaoID, alunoID string) ([]Tentativa, error) {
	if _, err := svc.repo.GetAvaliacao(ctx, avaliacaoID); err != nil {
		return nil, err
	}
	return svc.repo.ListTentativas(ctx, avaliacaoID, alunoID)
}

func (svc *Service) AttemptsByAluno(ctx context.Context, alunoID string) ([]Tentativa, error) {
	return svc.repo.ListTentativasByAluno(ctx, alunoID)
}
