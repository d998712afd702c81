package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core/attendance"
	"github.com/trezcool/escola/core/school"
)

type presencaRow struct {
	ID          string    `db:"id"`
	AulaID      string    `db:"aula_id"`
	AlunoID     string    `db:"aluno_id"`
	Presente    bool      `db:"presente"`
	Observacoes string    `db:"observacoes"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r presencaRow) toPresenca() attendance.Presenca {
	return attendance.Presenca(r)
}

type attendanceRepository struct {
	*Store
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(s *Store) attendance.Repository {
	return &attendanceRepository{Store: s}
}

func (repo *attendanceRepository) ListPresencas(ctx context.Context, aulaID string) ([]attendance.Presenca, error) {
	var rows []presencaRow
	if err := repo.selectRows(ctx, &rows, "SELECT * FROM presencas WHERE aula_id = $1", aulaID); err != nil {
		return nil, err
	}
	ps := make([]attendance.Presenca, 0, len(rows))
	for _, r := range rows {
		ps = append(ps, r.toPresenca())
	}
	return ps, nil
}

func (repo *attendanceRepository) UpsertPresenca(ctx context.Context, p attendance.Presenca) (attendance.Presenca, error) {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	q := `INSERT INTO presencas (id, aula_id, aluno_id, presente, observacoes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (aula_id, aluno_id) DO UPDATE
		SET presente = EXCLUDED.presente, observacoes = EXCLUDED.observacoes, updated_at = EXCLUDED.updated_at
		RETURNING *`
	var row presencaRow
	err := sqlx.GetContext(ctx, exec, &row, q, p.ID, p.AulaID, p.AlunoID, p.Presente, p.Observacoes, p.UpdatedAt.UTC())
	if err != nil {
		switch foreignKeyViolation(err) {
		case "presencas_aula_id_fkey":
			return attendance.Presenca{}, school.ErrAulaNotFound
		case "presencas_aluno_id_fkey":
			return attendance.Presenca{}, school.ErrAlunoNotFound
		}
		return attendance.Presenca{}, errors.Wrap(err, "upserting presenca")
	}
	return row.toPresenca(), nil
}
