package content

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/school"
	"github.com/trezcool/escola/core/user"
)

const (
	defaultAvisosLimit = 10
	maxAvisosLimit     = 50
)

type (
	Repository interface {
		CreateConteudo(ctx context.Context, c Conteudo) (Conteudo, error)
		ListConteudos(ctx context.Context, turmaID string) ([]Conteudo, error)
		CreateAviso(ctx context.Context, a Aviso) (Aviso, error)
		// ListAvisos returns the avisos of the turmas plus the general ones, newest first.
		ListAvisos(ctx context.Context, turmaIDs []string, limit int) ([]Aviso, error)
	}

	Turmas interface {
		TurmasFor(ctx context.Context, actor user.Actor) ([]school.Turma, error)
		CheckCanManageTurma(ctx context.Context, actor user.Actor, turmaID string) error
	}

	Service struct {
		repo    Repository
		turmas  Turmas
		NowFunc func() time.Time // mockable
	}
)

func NewService(repo Repository, turmas Turmas) *Service {
	return &Service{repo: repo, turmas: turmas, NowFunc: time.Now}
}

func (svc *Service) CreateConteudo(ctx context.Context, actor user.Actor, nc NewConteudo) (Conteudo, error) {
	if err := svc.turmas.CheckCanManageTurma(ctx, actor, nc.TurmaID); err != nil {
		return Conteudo{}, err
	}
	return svc.repo.CreateConteudo(ctx, Conteudo{
		ID:          uuid.New().String(),
		TurmaID:     nc.TurmaID,
		Title:       nc.Title,
		Kind:        nc.Kind,
		URL:         nc.URL,
		Description: nc.Description,
		CreatedAt:   svc.NowFunc().UTC(),
	})
}

func (svc *Service) ListConteudos(ctx context.Context, turmaID string) ([]Conteudo, error) {
	return svc.repo.ListConteudos(ctx, turmaID)
}

// CreateAviso publishes an announcement. Only admins publish general ones.
func (svc *Service) CreateAviso(ctx context.Context, actor user.Actor, na NewAviso) (Aviso, error) {
	if na.TurmaID == "" {
		if !actor.IsAdmin() {
			return Aviso{}, core.ErrForbidden
		}
	} else if err := svc.turmas.CheckCanManageTurma(ctx, actor, na.TurmaID); err != nil {
		return Aviso{}, err
	}
	return svc.repo.CreateAviso(ctx, Aviso{
		ID:          uuid.New().String(),
		TurmaID:     na.TurmaID,
		Title:       na.Title,
		Body:        na.Body,
		CreatedBy:   actor.ID,
		PublishedAt: svc.NowFunc().UTC(),
	})
}

// AvisosFor returns the latest announcements visible to the actor.
func (svc *Service) AvisosFor(ctx context.Context, actor user.Actor, limit int) ([]Aviso, error) {
	switch {
	case limit <= 0:
		limit = defaultAvisosLimit
	case limit > maxAvisosLimit:
		limit = maxAvisosLimit
	}
	turmas, err := svc.turmas.TurmasFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(turmas))
	for _, t := range turmas {
		ids = append(ids, t.ID)
	}
	return svc.repo.ListAvisos(ctx, ids, limit)
}
