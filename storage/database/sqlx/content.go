package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/escola/core/content"
	"github.com/trezcool/escola/core/school"
)

type (
	conteudoRow struct {
		ID          string    `db:"id"`
		TurmaID     string    `db:"turma_id"`
		Title       string    `db:"title"`
		Kind        string    `db:"kind"`
		URL         string    `db:"url"`
		Description string    `db:"description"`
		CreatedAt   time.Time `db:"created_at"`
	}

	avisoRow struct {
		ID          string      `db:"id"`
		TurmaID     null.String `db:"turma_id"`
		Title       string      `db:"title"`
		Body        string      `db:"body"`
		CreatedBy   null.String `db:"created_by"`
		PublishedAt time.Time   `db:"published_at"`
	}
)

func (r conteudoRow) toConteudo() content.Conteudo {
	return content.Conteudo{
		ID:          r.ID,
		TurmaID:     r.TurmaID,
		Title:       r.Title,
		Kind:        content.Kind(r.Kind),
		URL:         r.URL,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
}

func (r avisoRow) toAviso() content.Aviso {
	return content.Aviso{
		ID:          r.ID,
		TurmaID:     r.TurmaID.String,
		Title:       r.Title,
		Body:        r.Body,
		CreatedBy:   r.CreatedBy.String,
		PublishedAt: r.PublishedAt,
	}
}

type contentRepository struct {
	*Store
}

var _ content.Repository = (*contentRepository)(nil)

func NewContentRepository(s *Store) content.Repository {
	return &contentRepository{Store: s}
}

func (repo *contentRepository) CreateConteudo(ctx context.Context, c content.Conteudo) (content.Conteudo, error) {
	row := conteudoRow{
		ID:          c.ID,
		TurmaID:     c.TurmaID,
		Title:       c.Title,
		Kind:        string(c.Kind),
		URL:         c.URL,
		Description: c.Description,
		CreatedAt:   c.CreatedAt.UTC(),
	}
	q := `INSERT INTO conteudos (id, turma_id, title, kind, url, description, created_at)
		VALUES (:id, :turma_id, :title, :kind, :url, :description, :created_at)`
	if err := repo.insert(ctx, q, row); err != nil {
		if foreignKeyViolation(err) != "" {
			return content.Conteudo{}, school.ErrTurmaNotFound
		}
		return content.Conteudo{}, errors.Wrap(err, "inserting conteudo")
	}
	return c, nil
}

func (repo *contentRepository) ListConteudos(ctx context.Context, turmaID string) ([]content.Conteudo, error) {
	var rows []conteudoRow
	if err := repo.selectRows(ctx, &rows, "SELECT * FROM conteudos WHERE turma_id = $1 ORDER BY created_at DESC", turmaID); err != nil {
		return nil, err
	}
	cs := make([]content.Conteudo, 0, len(rows))
	for _, r := range rows {
		cs = append(cs, r.toConteudo())
	}
	return cs, nil
}

func (repo *contentRepository) CreateAviso(ctx context.Context, a content.Aviso) (content.Aviso, error) {
	row := avisoRow{
		ID:          a.ID,
		TurmaID:     nullID(a.TurmaID),
		Title:       a.Title,
		Body:        a.Body,
		CreatedBy:   nullID(a.CreatedBy),
		PublishedAt: a.PublishedAt.UTC(),
	}
	q := `INSERT INTO avisos (id, turma_id, title, body, created_by, published_at)
		VALUES (:id, :turma_id, :title, :body, :created_by, :published_at)`
	if err := repo.insert(ctx, q, row); err != nil {
		if foreignKeyViolation(err) == "avisos_turma_id_fkey" {
			return content.Aviso{}, school.ErrTurmaNotFound
		}
		return content.Aviso{}, errors.Wrap(err, "inserting aviso")
	}
	return a, nil
}

func (repo *contentRepository) ListAvisos(ctx context.Context, turmaIDs []string, limit int) ([]content.Aviso, error) {
	q := "SELECT * FROM avisos WHERE turma_id IS NULL OR turma_id = ANY($1) ORDER BY published_at DESC"
	args := []interface{}{pq.Array(turmaIDs)}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}

	var rows []avisoRow
	if err := repo.selectRows(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	avisos := make([]content.Aviso, 0, len(rows))
	for _, r := range rows {
		avisos = append(avisos, r.toAviso())
	}
	return avisos, nil
}
