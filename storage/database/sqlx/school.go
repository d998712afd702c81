package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/school"
)

type (
	alunoRow struct {
		ID        string      `db:"id"`
		UserID    null.String `db:"user_id"`
		Name      string      `db:"name"`
		Email     string      `db:"email"`
		Phone     string      `db:"phone"`
		CreatedAt time.Time   `db:"created_at"`
	}

	professorRow struct {
		ID              string         `db:"id"`
		UserID          null.String    `db:"user_id"`
		Name            string         `db:"name"`
		Email           string         `db:"email"`
		Phone           string         `db:"phone"`
		Especializacoes pq.StringArray `db:"especializacoes"`
		Status          string         `db:"status"`
		NivelMentoria   string         `db:"nivel_mentoria"`
		CreatedAt       time.Time      `db:"created_at"`
	}

	turmaRow struct {
		ID          string      `db:"id"`
		Name        string      `db:"name"`
		Description string      `db:"description"`
		ProfessorID null.String `db:"professor_id"`
		Capacity    int         `db:"capacity"`
		StartDate   null.Time   `db:"start_date"`
		EndDate     null.Time   `db:"end_date"`
		Status      string      `db:"status"`
		CreatedAt   time.Time   `db:"created_at"`
	}

	matriculaRow struct {
		ID        string    `db:"id"`
		AlunoID   string    `db:"aluno_id"`
		TurmaID   string    `db:"turma_id"`
		Status    string    `db:"status"`
		CreatedAt time.Time `db:"created_at"`
	}

	aulaRow struct {
		ID          string         `db:"id"`
		TurmaID     string         `db:"turma_id"`
		ProfessorID null.String    `db:"professor_id"`
		Title       string         `db:"title"`
		StartsAt    time.Time      `db:"starts_at"`
		EndsAt      time.Time      `db:"ends_at"`
		Location    string         `db:"location"`
		Status      string         `db:"status"`
		Materiais   pq.StringArray `db:"materiais"`
		RemindedAt  null.Time      `db:"reminded_at"`
		CreatedAt   time.Time      `db:"created_at"`
	}
)

func nullID(id string) null.String { return null.NewString(id, id != "") }

func nullTime(t time.Time) null.Time { return null.NewTime(utc(t), !t.IsZero()) }

func stringSlice(s pq.StringArray) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func alunoToRow(a school.Aluno) alunoRow {
	return alunoRow{ID: a.ID, UserID: nullID(a.UserID), Name: a.Name, Email: a.Email, Phone: a.Phone, CreatedAt: a.CreatedAt.UTC()}
}

func (r alunoRow) toAluno() school.Aluno {
	return school.Aluno{ID: r.ID, UserID: r.UserID.String, Name: r.Name, Email: r.Email, Phone: r.Phone, CreatedAt: r.CreatedAt}
}

func alunosFromRows(rows []alunoRow) []school.Aluno {
	alunos := make([]school.Aluno, 0, len(rows))
	for _, r := range rows {
		alunos = append(alunos, r.toAluno())
	}
	return alunos
}

func professorToRow(p school.Professor) professorRow {
	return professorRow{
		ID:              p.ID,
		UserID:          nullID(p.UserID),
		Name:            p.Name,
		Email:           p.Email,
		Phone:           p.Phone,
		Especializacoes: pq.StringArray(stringSlice(p.Especializacoes)),
		Status:          string(p.Status),
		NivelMentoria:   p.NivelMentoria,
		CreatedAt:       p.CreatedAt.UTC(),
	}
}

func (r professorRow) toProfessor() school.Professor {
	return school.Professor{
		ID:              r.ID,
		UserID:          r.UserID.String,
		Name:            r.Name,
		Email:           r.Email,
		Phone:           r.Phone,
		Especializacoes: stringSlice(r.Especializacoes),
		Status:          school.ProfessorStatus(r.Status),
		NivelMentoria:   r.NivelMentoria,
		CreatedAt:       r.CreatedAt,
	}
}

func turmaToRow(t school.Turma) turmaRow {
	return turmaRow{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		ProfessorID: nullID(t.ProfessorID),
		Capacity:    t.Capacity,
		StartDate:   nullTime(t.StartDate),
		EndDate:     nullTime(t.EndDate),
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.UTC(),
	}
}

func (r turmaRow) toTurma() school.Turma {
	return school.Turma{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		ProfessorID: r.ProfessorID.String,
		Capacity:    r.Capacity,
		StartDate:   r.StartDate.Time,
		EndDate:     r.EndDate.Time,
		Status:      school.TurmaStatus(r.Status),
		CreatedAt:   r.CreatedAt,
	}
}

func aulaToRow(a school.Aula) aulaRow {
	return aulaRow{
		ID:          a.ID,
		TurmaID:     a.TurmaID,
		ProfessorID: nullID(a.ProfessorID),
		Title:       a.Title,
		StartsAt:    a.StartsAt.UTC(),
		EndsAt:      a.EndsAt.UTC(),
		Location:    a.Location,
		Status:      string(a.Status),
		Materiais:   pq.StringArray(stringSlice(a.Materiais)),
		RemindedAt:  nullTime(a.RemindedAt),
		CreatedAt:   a.CreatedAt.UTC(),
	}
}

func (r aulaRow) toAula() school.Aula {
	return school.Aula{
		ID:          r.ID,
		TurmaID:     r.TurmaID,
		ProfessorID: r.ProfessorID.String,
		Title:       r.Title,
		StartsAt:    r.StartsAt,
		EndsAt:      r.EndsAt,
		Location:    r.Location,
		Status:      school.AulaStatus(r.Status),
		Materiais:   stringSlice(r.Materiais),
		RemindedAt:  r.RemindedAt.Time,
		CreatedAt:   r.CreatedAt,
	}
}

func aulasFromRows(rows []aulaRow) []school.Aula {
	aulas := make([]school.Aula, 0, len(rows))
	for _, r := range rows {
		aulas = append(aulas, r.toAula())
	}
	return aulas
}

type schoolRepository struct {
	*Store
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(s *Store) school.Repository {
	return &schoolRepository{Store: s}
}

func (repo *schoolRepository) CreateAluno(ctx context.Context, a school.Aluno) (school.Aluno, error) {
	q := `INSERT INTO alunos (id, user_id, name, email, phone, created_at)
		VALUES (:id, :user_id, :name, :email, :phone, :created_at)`
	if err := repo.insert(ctx, q, alunoToRow(a)); err != nil {
		return school.Aluno{}, errors.Wrap(err, "inserting aluno")
	}
	return a, nil
}

func (repo *schoolRepository) GetAluno(ctx context.Context, id string) (school.Aluno, error) {
	var row alunoRow
	if err := repo.get(ctx, &row, school.ErrAlunoNotFound, "SELECT * FROM alunos WHERE id = $1", id); err != nil {
		return school.Aluno{}, err
	}
	return row.toAluno(), nil
}

func (repo *schoolRepository) GetAlunoByUserID(ctx context.Context, userID string) (school.Aluno, error) {
	var row alunoRow
	if err := repo.get(ctx, &row, school.ErrAlunoNotFound, "SELECT * FROM alunos WHERE user_id = $1", userID); err != nil {
		return school.Aluno{}, err
	}
	return row.toAluno(), nil
}

func (repo *schoolRepository) ListAlunos(ctx context.Context) ([]school.Aluno, error) {
	var rows []alunoRow
	if err := repo.selectRows(ctx, &rows, "SELECT * FROM alunos ORDER BY lower(name)"); err != nil {
		return nil, err
	}
	return alunosFromRows(rows), nil
}

func (repo *schoolRepository) CreateProfessor(ctx context.Context, p school.Professor) (school.Professor, error) {
	q := `INSERT INTO professores (id, user_id, name, email, phone, especializacoes, status, nivel_mentoria, created_at)
		VALUES (:id, :user_id, :name, :email, :phone, :especializacoes, :status, :nivel_mentoria, :created_at)`
	if err := repo.insert(ctx, q, professorToRow(p)); err != nil {
		return school.Professor{}, errors.Wrap(err, "inserting professor")
	}
	p.Especializacoes = stringSlice(p.Especializacoes)
	return p, nil
}

func (repo *schoolRepository) GetProfessorByUserID(ctx context.Context, userID string) (school.Professor, error) {
	var row professorRow
	if err := repo.get(ctx, &row, school.ErrProfessorNotFound, "SELECT * FROM professores WHERE user_id = $1", userID); err != nil {
		return school.Professor{}, err
	}
	return row.toProfessor(), nil
}

func (repo *schoolRepository) ListProfessores(ctx context.Context) ([]school.Professor, error) {
	var rows []professorRow
	if err := repo.selectRows(ctx, &rows, "SELECT * FROM professores ORDER BY name"); err != nil {
		return nil, err
	}
	profs := make([]school.Professor, 0, len(rows))
	for _, r := range rows {
		profs = append(profs, r.toProfessor())
	}
	return profs, nil
}

func (repo *schoolRepository) CreateTurma(ctx context.Context, t school.Turma) (school.Turma, error) {
	q := `INSERT INTO turmas (id, name, description, professor_id, capacity, start_date, end_date, status, created_at)
		VALUES (:id, :name, :description, :professor_id, :capacity, :start_date, :end_date, :status, :created_at)`
	if err := repo.insert(ctx, q, turmaToRow(t)); err != nil {
		if foreignKeyViolation(err) != "" {
			return school.Turma{}, school.ErrProfessorNotFound
		}
		return school.Turma{}, errors.Wrap(err, "inserting turma")
	}
	return t, nil
}

func (repo *schoolRepository) GetTurma(ctx context.Context, id string) (school.Turma, error) {
	var row turmaRow
	if err := repo.get(ctx, &row, school.ErrTurmaNotFound, "SELECT * FROM turmas WHERE id = $1", id); err != nil {
		return school.Turma{}, err
	}
	return row.toTurma(), nil
}

func (repo *schoolRepository) LockTurma(ctx context.Context, id string) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); !ok {
		return errNoTx
	}
	var locked string
	return repo.get(ctx, &locked, school.ErrTurmaNotFound, "SELECT id FROM turmas WHERE id = $1 FOR UPDATE", id)
}

func (repo *schoolRepository) ListTurmas(ctx context.Context, filter school.TurmaFilter) ([]school.Turma, error) {
	var w where
	if filter.IDs != nil {
		w.add("id = ANY(?)", pq.Array(filter.IDs))
	}
	if filter.ProfessorID != "" {
		w.add("professor_id = ?", filter.ProfessorID)
	}
	if filter.AlunoID != "" {
		w.add("id IN (SELECT turma_id FROM matriculas WHERE aluno_id = ? AND status = ?)",
			filter.AlunoID, string(school.MatriculaAtiva))
	}
	q, args := w.build("SELECT * FROM turmas", "ORDER BY name")

	var rows []turmaRow
	if err := repo.selectRows(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	turmas := make([]school.Turma, 0, len(rows))
	for _, r := range rows {
		turmas = append(turmas, r.toTurma())
	}
	return turmas, nil
}

// CreateMatriculas inserts every enrollment or none of them.
func (repo *schoolRepository) CreateMatriculas(ctx context.Context, ms []school.Matricula) error {
	return repo.InTx(ctx, func(ctx context.Context) error {
		q := `INSERT INTO matriculas (id, aluno_id, turma_id, status, created_at)
			VALUES (:id, :aluno_id, :turma_id, :status, :created_at)`
		for _, m := range ms {
			row := matriculaRow{ID: m.ID, AlunoID: m.AlunoID, TurmaID: m.TurmaID, Status: string(m.Status), CreatedAt: m.CreatedAt.UTC()}
			if err := repo.insert(ctx, q, row); err != nil {
				switch {
				case isUniqueViolation(err):
					return core.NewConflictError(school.ErrAlreadyEnrolled.Error())
				case foreignKeyViolation(err) == "matriculas_aluno_id_fkey":
					return school.ErrAlunoNotFound
				case foreignKeyViolation(err) == "matriculas_turma_id_fkey":
					return school.ErrTurmaNotFound
				}
				return errors.Wrap(err, "inserting matricula")
			}
		}
		return nil
	})
}

func (repo *schoolRepository) ListMatriculas(ctx context.Context, turmaID string) ([]school.Matricula, error) {
	var rows []matriculaRow
	if err := repo.selectRows(ctx, &rows, "SELECT * FROM matriculas WHERE turma_id = $1 ORDER BY created_at", turmaID); err != nil {
		return nil, err
	}
	ms := make([]school.Matricula, 0, len(rows))
	for _, r := range rows {
		ms = append(ms, school.Matricula{
			ID:        r.ID,
			AlunoID:   r.AlunoID,
			TurmaID:   r.TurmaID,
			Status:    school.MatriculaStatus(r.Status),
			CreatedAt: r.CreatedAt,
		})
	}
	return ms, nil
}

func (repo *schoolRepository) ListEnrolledAlunos(ctx context.Context, turmaID string) ([]school.Aluno, error) {
	q := `SELECT a.* FROM alunos a JOIN matriculas m ON m.aluno_id = a.id
		WHERE m.turma_id = $1 AND m.status = $2
		ORDER BY lower(a.name)`
	var rows []alunoRow
	if err := repo.selectRows(ctx, &rows, q, turmaID, string(school.MatriculaAtiva)); err != nil {
		return nil, err
	}
	return alunosFromRows(rows), nil
}

func (repo *schoolRepository) CreateAula(ctx context.Context, a school.Aula) (school.Aula, error) {
	q := `INSERT INTO aulas (id, turma_id, professor_id, title, starts_at, ends_at, location, status, materiais, reminded_at, created_at)
		VALUES (:id, :turma_id, :professor_id, :title, :starts_at, :ends_at, :location, :status, :materiais, :reminded_at, :created_at)`
	if err := repo.insert(ctx, q, aulaToRow(a)); err != nil {
		if foreignKeyViolation(err) == "aulas_turma_id_fkey" {
			return school.Aula{}, school.ErrTurmaNotFound
		}
		return school.Aula{}, errors.Wrap(err, "inserting aula")
	}
	a.Materiais = stringSlice(a.Materiais)
	return a, nil
}

func (repo *schoolRepository) GetAula(ctx context.Context, id string) (school.Aula, error) {
	var row aulaRow
	if err := repo.get(ctx, &row, school.ErrAulaNotFound, "SELECT * FROM aulas WHERE id = $1", id); err != nil {
		return school.Aula{}, err
	}
	return row.toAula(), nil
}

func (repo *schoolRepository) ListAulas(ctx context.Context, filter school.AulaFilter) ([]school.Aula, error) {
	var w where
	if filter.TurmaIDs != nil {
		w.add("turma_id = ANY(?)", pq.Array(filter.TurmaIDs))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		w.add("status = ANY(?)", pq.Array(statuses))
	}
	if !filter.From.IsZero() {
		w.add("starts_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		w.add("starts_at < ?", filter.To.UTC())
	}
	q, args := w.build("SELECT * FROM aulas", "ORDER BY starts_at")

	var rows []aulaRow
	if err := repo.selectRows(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return aulasFromRows(rows), nil
}

func (repo *schoolRepository) UpdateMateriais(ctx context.Context, aulaID string, materiais []string) error {
	return repo.update(ctx, school.ErrAulaNotFound, "UPDATE aulas SET materiais = $2 WHERE id = $1",
		aulaID, pq.StringArray(stringSlice(materiais)))
}

func (repo *schoolRepository) MarkAulaReminded(ctx context.Context, aulaID string, at time.Time) error {
	return repo.update(ctx, school.ErrAulaNotFound, "UPDATE aulas SET reminded_at = $2 WHERE id = $1", aulaID, at.UTC())
}

func (repo *schoolRepository) ListAulasToRemind(ctx context.Context, from, to time.Time) ([]school.Aula, error) {
	q := `SELECT * FROM aulas
		WHERE status = $1 AND reminded_at IS NULL AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at`
	var rows []aulaRow
	if err := repo.selectRows(ctx, &rows, q, string(school.AulaAgendada), from.UTC(), to.UTC()); err != nil {
		return nil, err
	}
	return aulasFromRows(rows), nil
}
