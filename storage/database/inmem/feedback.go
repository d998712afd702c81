package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/escola/core/feedback"
)

type feedbackRepository struct {
	db *DB
}

var _ feedback.Repository = (*feedbackRepository)(nil)

func NewFeedbackRepository(db *DB) feedback.Repository {
	return &feedbackRepository{db: db}
}

func (repo *feedbackRepository) CreateFormulario(_ context.Context, f feedback.Formulario) (feedback.Formulario, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.forms[f.ID] = f
	return f, nil
}

func (repo *feedbackRepository) GetFormulario(_ context.Context, id string) (feedback.Formulario, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if f, ok := repo.db.forms[id]; ok {
		return f, nil
	}
	return feedback.Formulario{}, feedback.ErrNotFound
}

func (repo *feedbackRepository) ListFormularios(_ context.Context, aulaID string) ([]feedback.Formulario, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	fs := make([]feedback.Formulario, 0)
	for _, f := range repo.db.forms {
		if f.AulaID == aulaID {
			fs = append(fs, f)
		}
	}
	sort.Slice(fs, func(i, j int) bool { return fs[i].CreatedAt.Before(fs[j].CreatedAt) })
	return fs, nil
}

func (repo *feedbackRepository) CreateResponse(_ context.Context, r feedback.Response) (feedback.Response, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.responses {
		if other.FormularioID == r.FormularioID && other.AlunoID == r.AlunoID {
			return feedback.Response{}, feedback.ErrAlreadyResponded
		}
	}
	repo.db.responses[r.ID] = r
	return r, nil
}

func (repo *feedbackRepository) ListResponses(_ context.Context, formularioID string) ([]feedback.Response, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rs := make([]feedback.Response, 0)
	for _, r := range repo.db.responses {
		if r.FormularioID == formularioID {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].CreatedAt.Before(rs[j].CreatedAt) })
	return rs, nil
}
