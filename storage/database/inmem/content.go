package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/escola/core/content"
)

type contentRepository struct {
	db *DB
}

var _ content.Repository = (*contentRepository)(nil)

func NewContentRepository(db *DB) content.Repository {
	return &contentRepository{db: db}
}

func (repo *contentRepository) CreateConteudo(_ context.Context, c content.Conteudo) (content.Conteudo, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.conteudos[c.ID] = c
	return c, nil
}

func (repo *contentRepository) ListConteudos(_ context.Context, turmaID string) ([]content.Conteudo, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cs := make([]content.Conteudo, 0)
	for _, c := range repo.db.conteudos {
		if c.TurmaID == turmaID {
			cs = append(cs, c)
		}
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].CreatedAt.After(cs[j].CreatedAt) })
	return cs, nil
}

func (repo *contentRepository) CreateAviso(_ context.Context, a content.Aviso) (content.Aviso, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.avisos[a.ID] = a
	return a, nil
}

func (repo *contentRepository) ListAvisos(_ context.Context, turmaIDs []string, limit int) ([]content.Aviso, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	turmas := stringSet(turmaIDs)
	avisos := make([]content.Aviso, 0)
	for _, a := range repo.db.avisos {
		if a.TurmaID == "" || turmas[a.TurmaID] {
			avisos = append(avisos, a)
		}
	}
	sort.Slice(avisos, func(i, j int) bool { return avisos[i].PublishedAt.After(avisos[j].PublishedAt) })
	if limit > 0 && len(avisos) > limit {
		avisos = avisos[:limit]
	}
	return avisos, nil
}
