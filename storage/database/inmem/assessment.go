package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/escola/core/assessment"
)

type assessmentRepository struct {
	db *DB
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(db *DB) assessment.Repository {
	return &assessmentRepository{db: db}
}

func (repo *assessmentRepository) CreateAvaliacao(_ context.Context, av assessment.Avaliacao) (assessment.Avaliacao, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.quizzes[av.ID] = av
	return av, nil
}

func (repo *assessmentRepository) GetAvaliacao(_ context.Context, id string) (assessment.Avaliacao, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if av, ok := repo.db.quizzes[id]; ok {
		return av, nil
	}
	return assessment.Avaliacao{}, assessment.ErrNotFound
}

func (repo *assessmentRepository) ListAvaliacoes(_ context.Context, turmaIDs []string) ([]assessment.Avaliacao, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	turmas := stringSet(turmaIDs)
	avs := make([]assessment.Avaliacao, 0)
	for _, av := range repo.db.quizzes {
		if turmas[av.TurmaID] {
			avs = append(avs, av)
		}
	}
	sort.Slice(avs, func(i, j int) bool { return avs[i].CreatedAt.After(avs[j].CreatedAt) })
	return avs, nil
}

func (repo *assessmentRepository) CreateTentativa(_ context.Context, t assessment.Tentativa) (assessment.Tentativa, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.quizzes[t.AvaliacaoID]; !ok {
		return assessment.Tentativa{}, assessment.ErrNotFound
	}
	repo.db.attempts[t.ID] = t
	return t, nil
}

func (repo *assessmentRepository) LockTentativas(ctx context.Context, avaliacaoID, alunoID string) error {
	return repo.db.lock(ctx, "tentativas:"+avaliacaoID+":"+alunoID)
}

func (repo *assessmentRepository) CountTentativas(_ context.Context, avaliacaoID, alunoID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, t := range repo.db.attempts {
		if t.AvaliacaoID == avaliacaoID && t.AlunoID == alunoID {
			n++
		}
	}
	return n, nil
}

func (repo *assessmentRepository) list(keep func(t assessment.Tentativa) bool) []assessment.Tentativa {
	ts := make([]assessment.Tentativa, 0)
	for _, t := range repo.db.attempts {
		if keep(t) {
			ts = append(ts, t)
		}
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].CreatedAt.After(ts[j].CreatedAt) })
	return ts
}

func (repo *assessmentRepository) ListTentativas(_ context.Context, avaliacaoID, alunoID string) ([]assessment.Tentativa, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.list(func(t assessment.Tentativa) bool {
		return t.AvaliacaoID == avaliacaoID && (alunoID == "" || t.AlunoID == alunoID)
	}), nil
}

func (repo *assessmentRepository) ListTentativasByAluno(_ context.Context, alunoID string) ([]assessment.Tentativa, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.list(func(t assessment.Tentativa) bool { return t.AlunoID == alunoID }), nil
}
