package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/escola/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, u := range repo.db.users {
		if strings.EqualFold(u.Email, usr.Email) {
			return user.User{}, user.ErrEmailExists
		}
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if strings.EqualFold(usr.Email, email) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := repo.GetUserByEmail(ctx, email)
	return err == nil, nil
}

func (repo *userRepository) UpdatePassword(_ context.Context, id string, hash []byte, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.PasswordHash = hash
	usr.UpdatedAt = at
	repo.db.users[id] = usr
	return nil
}

func (repo *userRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin = at
	repo.db.users[id] = usr
	return nil
}

func (repo *userRepository) ListUsers(_ context.Context) ([]user.Listing, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	listings := make([]user.Listing, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		l := user.Listing{
			ID:             usr.ID,
			Email:          usr.Email,
			Name:           usr.Name,
			EmailConfirmed: usr.EmailConfirmed,
			CreatedAt:      usr.CreatedAt,
			LastLogin:      usr.LastLogin,
		}
		if rec, ok := repo.db.roles[usr.ID]; ok {
			l.Role = rec.Role
		}
		listings = append(listings, l)
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].CreatedAt.After(listings[j].CreatedAt) })
	return listings, nil
}

// DeleteUser mirrors the ON DELETE rules of the schema.
func (repo *userRepository) DeleteUser(_ context.Context, id string) error {
	db := repo.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(db.users, id)
	delete(db.roles, id)

	for aid, a := range db.alunos {
		if a.UserID == id {
			db.deleteAluno(aid)
		}
	}
	for pid, p := range db.profs {
		if p.UserID != id {
			continue
		}
		delete(db.profs, pid)
		for tid, t := range db.turmas {
			if t.ProfessorID == pid {
				t.ProfessorID = ""
				db.turmas[tid] = t
			}
		}
		for aid, a := range db.aulas {
			if a.ProfessorID == pid {
				a.ProfessorID = ""
				db.aulas[aid] = a
			}
		}
	}
	for iid, inv := range db.invites {
		if inv.InvitedBy == id {
			inv.InvitedBy = ""
			db.invites[iid] = inv
		}
	}

	points := db.points[:0]
	for _, e := range db.points {
		if e.UserID != id {
			points = append(points, e)
		}
	}
	db.points = points
	badges := db.badges[:0]
	for _, c := range db.badges {
		if c.UserID != id {
			badges = append(badges, c)
		}
	}
	db.badges = badges
	return nil
}

// deleteAluno removes the aluno and its enrollments, presences, attempts and form responses. Callers hold the lock.
func (db *DB) deleteAluno(id string) {
	delete(db.alunos, id)
	for k, m := range db.matrics {
		if m.AlunoID == id {
			delete(db.matrics, k)
		}
	}
	for k, p := range db.presencas {
		if p.AlunoID == id {
			delete(db.presencas, k)
		}
	}
	for k, t := range db.attempts {
		if t.AlunoID == id {
			delete(db.attempts, k)
		}
	}
	for k, r := range db.responses {
		if r.AlunoID == id {
			delete(db.responses, k)
		}
	}
}

func (repo *userRepository) GetRole(_ context.Context, userID string) (user.RoleRecord, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if rec, ok := repo.db.roles[userID]; ok {
		return rec, nil
	}
	return user.RoleRecord{}, user.ErrRoleNotFound
}

func (repo *userRepository) SetRole(_ context.Context, rec user.RoleRecord) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[rec.UserID]; !ok {
		return user.ErrNotFound
	}
	repo.db.roles[rec.UserID] = rec
	return nil
}

func (repo *userRepository) DeleteRole(_ context.Context, userID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.roles, userID)
	return nil
}
