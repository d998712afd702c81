package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func sortAlunos(alunos []school.Aluno) {
	sort.Slice(alunos, func(i, j int) bool { return strings.ToLower(alunos[i].Name) < strings.ToLower(alunos[j].Name) })
}

func (repo *schoolRepository) CreateAluno(_ context.Context, a school.Aluno) (school.Aluno, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.alunos[a.ID] = a
	return a, nil
}

func (repo *schoolRepository) GetAluno(_ context.Context, id string) (school.Aluno, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.alunos[id]; ok {
		return a, nil
	}
	return school.Aluno{}, school.ErrAlunoNotFound
}

func (repo *schoolRepository) GetAlunoByUserID(_ context.Context, userID string) (school.Aluno, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, a := range repo.db.alunos {
		if a.UserID == userID {
			return a, nil
		}
	}
	return school.Aluno{}, school.ErrAlunoNotFound
}

func (repo *schoolRepository) ListAlunos(_ context.Context) ([]school.Aluno, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	alunos := make([]school.Aluno, 0, len(repo.db.alunos))
	for _, a := range repo.db.alunos {
		alunos = append(alunos, a)
	}
	sortAlunos(alunos)
	return alunos, nil
}

func (repo *schoolRepository) CreateProfessor(_ context.Context, p school.Professor) (school.Professor, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	p.Especializacoes = copyStrings(p.Especializacoes)
	repo.db.profs[p.ID] = p
	return p, nil
}

func (repo *schoolRepository) GetProfessorByUserID(_ context.Context, userID string) (school.Professor, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, p := range repo.db.profs {
		if p.UserID == userID {
			return p, nil
		}
	}
	return school.Professor{}, school.ErrProfessorNotFound
}

func (repo *schoolRepository) ListProfessores(_ context.Context) ([]school.Professor, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	profs := make([]school.Professor, 0, len(repo.db.profs))
	for _, p := range repo.db.profs {
		profs = append(profs, p)
	}
	sort.Slice(profs, func(i, j int) bool { return profs[i].Name < profs[j].Name })
	return profs, nil
}

func (repo *schoolRepository) CreateTurma(_ context.Context, t school.Turma) (school.Turma, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.turmas[t.ID] = t
	return t, nil
}

func (repo *schoolRepository) GetTurma(_ context.Context, id string) (school.Turma, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.turmas[id]; ok {
		return t, nil
	}
	return school.Turma{}, school.ErrTurmaNotFound
}

func (repo *schoolRepository) LockTurma(ctx context.Context, id string) error {
	if _, err := repo.GetTurma(ctx, id); err != nil {
		return err
	}
	return repo.db.lock(ctx, "turmas:"+id)
}

func (repo *schoolRepository) ListTurmas(_ context.Context, filter school.TurmaFilter) ([]school.Turma, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ids, enrolled map[string]bool
	if filter.IDs != nil {
		ids = stringSet(filter.IDs)
	}
	if filter.AlunoID != "" {
		enrolled = make(map[string]bool)
		for _, m := range repo.db.matrics {
			if m.AlunoID == filter.AlunoID && m.Status == school.MatriculaAtiva {
				enrolled[m.TurmaID] = true
			}
		}
	}

	turmas := make([]school.Turma, 0)
	for _, t := range repo.db.turmas {
		if ids != nil && !ids[t.ID] {
			continue
		}
		if filter.ProfessorID != "" && t.ProfessorID != filter.ProfessorID {
			continue
		}
		if enrolled != nil && !enrolled[t.ID] {
			continue
		}
		turmas = append(turmas, t)
	}
	sort.Slice(turmas, func(i, j int) bool { return turmas[i].Name < turmas[j].Name })
	return turmas, nil
}

func (repo *schoolRepository) CreateMatriculas(_ context.Context, ms []school.Matricula) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, m := range ms {
		for _, other := range repo.db.matrics {
			if other.AlunoID == m.AlunoID && other.TurmaID == m.TurmaID {
				return core.NewConflictError(school.ErrAlreadyEnrolled.Error())
			}
		}
	}
	for _, m := range ms {
		repo.db.matrics[m.ID] = m
	}
	return nil
}

func (repo *schoolRepository) ListMatriculas(_ context.Context, turmaID string) ([]school.Matricula, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ms := make([]school.Matricula, 0)
	for _, m := range repo.db.matrics {
		if m.TurmaID == turmaID {
			ms = append(ms, m)
		}
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].CreatedAt.Before(ms[j].CreatedAt) })
	return ms, nil
}

func (repo *schoolRepository) ListEnrolledAlunos(_ context.Context, turmaID string) ([]school.Aluno, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	alunos := make([]school.Aluno, 0)
	for _, m := range repo.db.matrics {
		if m.TurmaID != turmaID || m.Status != school.MatriculaAtiva {
			continue
		}
		if a, ok := repo.db.alunos[m.AlunoID]; ok {
			alunos = append(alunos, a)
		}
	}
	sortAlunos(alunos)
	return alunos, nil
}

func (repo *schoolRepository) CreateAula(_ context.Context, a school.Aula) (school.Aula, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.Materiais = copyStrings(a.Materiais)
	repo.db.aulas[a.ID] = a
	return a, nil
}

func (repo *schoolRepository) GetAula(_ context.Context, id string) (school.Aula, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.aulas[id]; ok {
		a.Materiais = copyStrings(a.Materiais)
		return a, nil
	}
	return school.Aula{}, school.ErrAulaNotFound
}

func (repo *schoolRepository) ListAulas(_ context.Context, filter school.AulaFilter) ([]school.Aula, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var turmas, statuses map[string]bool
	if filter.TurmaIDs != nil {
		turmas = stringSet(filter.TurmaIDs)
	}
	if len(filter.Statuses) > 0 {
		statuses = make(map[string]bool)
		for _, s := range filter.Statuses {
			statuses[string(s)] = true
		}
	}

	aulas := make([]school.Aula, 0)
	for _, a := range repo.db.aulas {
		switch {
		case turmas != nil && !turmas[a.TurmaID],
			statuses != nil && !statuses[string(a.Status)],
			!filter.From.IsZero() && a.StartsAt.Before(filter.From),
			!filter.To.IsZero() && !a.StartsAt.Before(filter.To):
			continue
		}
		a.Materiais = copyStrings(a.Materiais)
		aulas = append(aulas, a)
	}
	sort.Slice(aulas, func(i, j int) bool { return aulas[i].StartsAt.Before(aulas[j].StartsAt) })
	return aulas, nil
}

func (repo *schoolRepository) UpdateMateriais(_ context.Context, aulaID string, materiais []string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a, ok := repo.db.aulas[aulaID]
	if !ok {
		return school.ErrAulaNotFound
	}
	a.Materiais = copyStrings(materiais)
	repo.db.aulas[aulaID] = a
	return nil
}

func (repo *schoolRepository) MarkAulaReminded(_ context.Context, aulaID string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a, ok := repo.db.aulas[aulaID]
	if !ok {
		return school.ErrAulaNotFound
	}
	a.RemindedAt = at
	repo.db.aulas[aulaID] = a
	return nil
}

func (repo *schoolRepository) ListAulasToRemind(ctx context.Context, from, to time.Time) ([]school.Aula, error) {
	aulas, err := repo.ListAulas(ctx, school.AulaFilter{From: from, To: to, Statuses: []school.AulaStatus{school.AulaAgendada}})
	if err != nil {
		return nil, err
	}
	due := aulas[:0]
	for _, a := range aulas {
		if a.RemindedAt.IsZero() {
			due = append(due, a)
		}
	}
	return due, nil
}
