package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/escola/core/feedback"
	"github.com/trezcool/escola/core/school"
)

type (
	formularioRow struct {
		ID        string             `db:"id"`
		AulaID    string             `db:"aula_id"`
		Title     string             `db:"title"`
		Perguntas feedback.Perguntas `db:"perguntas"`
		CreatedAt time.Time          `db:"created_at"`
	}

	responseRow struct {
		ID           string             `db:"id"`
		FormularioID string             `db:"formulario_id"`
		AlunoID      string             `db:"aluno_id"`
		Respostas    feedback.Respostas `db:"respostas"`
		CreatedAt    time.Time          `db:"created_at"`
	}
)

type feedbackRepository struct {
	*Store
}

var _ feedback.Repository = (*feedbackRepository)(nil)

func NewFeedbackRepository(s *Store) feedback.Repository {
	return &feedbackRepository{Store: s}
}

func (repo *feedbackRepository) CreateFormulario(ctx context.Context, f feedback.Formulario) (feedback.Formulario, error) {
	row := formularioRow(f)
	row.CreatedAt = f.CreatedAt.UTC()

	q := `INSERT INTO formularios (id, aula_id, title, perguntas, created_at)
		VALUES (:id, :aula_id, :title, :perguntas, :created_at)`
	if err := repo.insert(ctx, q, row); err != nil {
		if foreignKeyViolation(err) != "" {
			return feedback.Formulario{}, school.ErrAulaNotFound
		}
		return feedback.Formulario{}, errors.Wrap(err, "inserting formulario")
	}
	return f, nil
}

func (repo *feedbackRepository) GetFormulario(ctx context.Context, id string) (feedback.Formulario, error) {
	var row formularioRow
	if err := repo.get(ctx, &row, feedback.ErrNotFound, "SELECT * FROM formularios WHERE id = $1", id); err != nil {
		return feedback.Formulario{}, err
	}
	return feedback.Formulario(row), nil
}

func (repo *feedbackRepository) ListFormularios(ctx context.Context, aulaID string) ([]feedback.Formulario, error) {
	var rows []formularioRow
	if err := repo.selectRows(ctx, &rows, "SELECT * FROM formularios WHERE aula_id = $1 ORDER BY created_at", aulaID); err != nil {
		return nil, err
	}
	fs := make([]feedback.Formulario, 0, len(rows))
	for _, r := range rows {
		fs = append(fs, feedback.Formulario(r))
	}
	return fs, nil
}

func (repo *feedbackRepository) CreateResponse(ctx context.Context, r feedback.Response) (feedback.Response, error) {
	row := responseRow(r)
	row.CreatedAt = r.CreatedAt.UTC()

	q := `INSERT INTO respostas_formulario (id, formulario_id, aluno_id, respostas, created_at)
		VALUES (:id, :formulario_id, :aluno_id, :respostas, :created_at)`
	if err := repo.insert(ctx, q, row); err != nil {
		switch {
		case isUniqueViolation(err):
			return feedback.Response{}, feedback.ErrAlreadyResponded
		case foreignKeyViolation(err) == "respostas_formulario_formulario_id_fkey":
			return feedback.Response{}, feedback.ErrNotFound
		case foreignKeyViolation(err) == "respostas_formulario_aluno_id_fkey":
			return feedback.Response{}, school.ErrAlunoNotFound
		}
		return feedback.Response{}, errors.Wrap(err, "inserting response")
	}
	return r, nil
}

func (repo *feedbackRepository) ListResponses(ctx context.Context, formularioID string) ([]feedback.Response, error) {
	var rows []responseRow
	q := "SELECT * FROM respostas_formulario WHERE formulario_id = $1 ORDER BY created_at"
	if err := repo.selectRows(ctx, &rows, q, formularioID); err != nil {
		return nil, err
	}
	rs := make([]feedback.Response, 0, len(rows))
	for _, r := range rows {
		rs = append(rs, feedback.Response(r))
	}
	return rs, nil
}
