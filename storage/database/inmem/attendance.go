package inmemdb

import (
	"context"

	"github.com/trezcool/escola/core/attendance"
	"github.com/trezcool/escola/core/school"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) ListPresencas(_ context.Context, aulaID string) ([]attendance.Presenca, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ps := make([]attendance.Presenca, 0)
	for _, p := range repo.db.presencas {
		if p.AulaID == aulaID {
			ps = append(ps, p)
		}
	}
	return ps, nil
}

func (repo *attendanceRepository) UpsertPresenca(_ context.Context, p attendance.Presenca) (attendance.Presenca, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.aulas[p.AulaID]; !ok {
		return attendance.Presenca{}, school.ErrAulaNotFound
	}
	if _, ok := repo.db.alunos[p.AlunoID]; !ok {
		return attendance.Presenca{}, school.ErrAlunoNotFound
	}
	for id, existing := range repo.db.presencas {
		if existing.AulaID == p.AulaID && existing.AlunoID == p.AlunoID {
			p.ID = id
			break
		}
	}
	repo.db.presencas[p.ID] = p
	return p, nil
}
