package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/escola/core/assessment"
	"github.com/trezcool/escola/core/school"
)

type (
	avaliacaoRow struct {
		ID            string               `db:"id"`
		TurmaID       string               `db:"turma_id"`
		Title         string               `db:"title"`
		Description   string               `db:"description"`
		Questoes      assessment.Questions `db:"questoes"`
		NotaMinima    float64              `db:"nota_minima"`
		PontosTotais  float64              `db:"pontos_totais"`
		MaxTentativas int                  `db:"max_tentativas"`
		CreatedBy     null.String          `db:"created_by"`
		CreatedAt     time.Time            `db:"created_at"`
	}

	tentativaRow struct {
		ID          string             `db:"id"`
		AvaliacaoID string             `db:"avaliacao_id"`
		AlunoID     string             `db:"aluno_id"`
		Respostas   assessment.Answers `db:"respostas"`
		Pontuacao   float64            `db:"pontuacao"`
		Percentual  float64            `db:"percentual"`
		Aprovado    bool               `db:"aprovado"`
		CreatedAt   time.Time          `db:"created_at"`
	}
)

func avaliacaoToRow(av assessment.Avaliacao) avaliacaoRow {
	return avaliacaoRow{
		ID:            av.ID,
		TurmaID:       av.TurmaID,
		Title:         av.Title,
		Questoes:      av.Questoes,
		NotaMinima:    av.NotaMinima,
		PontosTotais:  av.PontosTotais,
		MaxTentativas: av.MaxTentativas,
		CreatedBy:     nullID(av.CreatedBy),
		CreatedAt:     av.CreatedAt.UTC(),
	}
}

func (r avaliacaoRow) toAvaliacao() assessment.Avaliacao {
	return assessment.Avaliacao{
		ID:            r.ID,
		TurmaID:       r.TurmaID,
		Title:         r.Title,
		Questoes:      r.Questoes,
		NotaMinima:    r.NotaMinima,
		PontosTotais:  r.PontosTotais,
		MaxTentativas: r.MaxTentativas,
		CreatedBy:     r.CreatedBy.String,
		CreatedAt:     r.CreatedAt,
	}
}

func tentativaToRow(t assessment.Tentativa) tentativaRow {
	row := tentativaRow(t)
	row.CreatedAt = t.CreatedAt.UTC()
	return row
}

func tentativasFromRows(rows []tentativaRow) []assessment.Tentativa {
	ts := make([]assessment.Tentativa, 0, len(rows))
	for _, r := range rows {
		ts = append(ts, assessment.Tentativa(r))
	}
	return ts
}

type assessmentRepository struct {
	*Store
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(s *Store) assessment.Repository {
	return &assessmentRepository{Store: s}
}

func (repo *assessmentRepository) CreateAvaliacao(ctx context.Context, av assessment.Avaliacao) (assessment.Avaliacao, error) {
	q := `INSERT INTO avaliacoes (id, turma_id, title, questoes, nota_minima, pontos_totais, max_tentativas, created_by, created_at)
		VALUES (:id, :turma_id, :title, :questoes, :nota_minima, :pontos_totais, :max_tentativas, :created_by, :created_at)`
	if err := repo.insert(ctx, q, avaliacaoToRow(av)); err != nil {
		if foreignKeyViolation(err) == "avaliacoes_turma_id_fkey" {
			return assessment.Avaliacao{}, school.ErrTurmaNotFound
		}
		return assessment.Avaliacao{}, errors.Wrap(err, "inserting avaliacao")
	}
	return av, nil
}

func (repo *assessmentRepository) GetAvaliacao(ctx context.Context, id string) (assessment.Avaliacao, error) {
	var row avaliacaoRow
	if err := repo.get(ctx, &row, assessment.ErrNotFound, "SELECT * FROM avaliacoes WHERE id = $1", id); err != nil {
		return assessment.Avaliacao{}, err
	}
	return row.toAvaliacao(), nil
}

func (repo *assessmentRepository) ListAvaliacoes(ctx context.Context, turmaIDs []string) ([]assessment.Avaliacao, error) {
	var rows []avaliacaoRow
	q := "SELECT * FROM avaliacoes WHERE turma_id = ANY($1) ORDER BY created_at DESC"
	if err := repo.selectRows(ctx, &rows, q, pq.Array(turmaIDs)); err != nil {
		return nil, err
	}
	avs := make([]assessment.Avaliacao, 0, len(rows))
	for _, r := range rows {
		avs = append(avs, r.toAvaliacao())
	}
	return avs, nil
}

func (repo *assessmentRepository) CreateTentativa(ctx context.Context, t assessment.Tentativa) (assessment.Tentativa, error) {
	q := `INSERT INTO tentativas (id, avaliacao_id, aluno_id, respostas, pontuacao, percentual, aprovado, created_at)
		VALUES (:id, :avaliacao_id, :aluno_id, :respostas, :pontuacao, :percentual, :aprovado, :created_at)`
	if err := repo.insert(ctx, q, tentativaToRow(t)); err != nil {
		switch foreignKeyViolation(err) {
		case "tentativas_avaliacao_id_fkey":
			return assessment.Tentativa{}, assessment.ErrNotFound
		case "tentativas_aluno_id_fkey":
			return assessment.Tentativa{}, school.ErrAlunoNotFound
		}
		return assessment.Tentativa{}, errors.Wrap(err, "inserting tentativa")
	}
	return t, nil
}

func (repo *assessmentRepository) LockTentativas(ctx context.Context, avaliacaoID, alunoID string) error {
	return repo.advisoryLock(ctx, "tentativas:"+avaliacaoID+":"+alunoID)
}

func (repo *assessmentRepository) CountTentativas(ctx context.Context, avaliacaoID, alunoID string) (int, error) {
	var n int
	q := "SELECT count(*) FROM tentativas WHERE avaliacao_id = $1 AND aluno_id = $2"
	if err := repo.get(ctx, &n, nil, q, avaliacaoID, alunoID); err != nil {
		return 0, err
	}
	return n, nil
}

func (repo *assessmentRepository) ListTentativas(ctx context.Context, avaliacaoID, alunoID string) ([]assessment.Tentativa, error) {
	w := where{}
	w.add("avaliacao_id = ?", avaliacaoID)
	if alunoID != "" {
		w.add("aluno_id = ?", alunoID)
	}
	q, args := w.build("SELECT * FROM tentativas", "ORDER BY created_at DESC")

	var rows []tentativaRow
	if err := repo.selectRows(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return tentativasFromRows(rows), nil
}

func (repo *assessmentRepository) ListTentativasByAluno(ctx context.Context, alunoID string) ([]assessment.Tentativa, error) {
	var rows []tentativaRow
	if err := repo.selectRows(ctx, &rows, "SELECT * FROM tentativas WHERE aluno_id = $1 ORDER BY created_at DESC", alunoID); err != nil {
		return nil, err
	}
	return tentativasFromRows(rows), nil
}
