package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/escola/core/user"
)

type userRow struct {
	ID             string      `db:"id"`
	Email          string      `db:"email"`
	Name           string      `db:"name"`
	PasswordHash   null.Bytes  `db:"password_hash"`
	EmailConfirmed bool        `db:"email_confirmed"`
	Metadata       jsonStrings `db:"metadata"`
	CreatedAt      null.Time   `db:"created_at"`
	UpdatedAt      null.Time   `db:"updated_at"`
	LastLogin      null.Time   `db:"last_login"`
}

func userToRow(usr user.User) userRow {
	return userRow{
		ID:             usr.ID,
		Email:          usr.Email,
		Name:           usr.Name,
		PasswordHash:   null.NewBytes(usr.PasswordHash, len(usr.PasswordHash) > 0),
		EmailConfirmed: usr.EmailConfirmed,
		Metadata:       usr.Metadata,
		CreatedAt:      null.TimeFrom(usr.CreatedAt.UTC()),
		UpdatedAt:      null.TimeFrom(usr.UpdatedAt.UTC()),
		LastLogin:      null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:             r.ID,
		Email:          r.Email,
		Name:           r.Name,
		PasswordHash:   r.PasswordHash.Bytes,
		EmailConfirmed: r.EmailConfirmed,
		Metadata:       r.Metadata,
		CreatedAt:      r.CreatedAt.Time,
		UpdatedAt:      r.UpdatedAt.Time,
		LastLogin:      r.LastLogin.Time,
	}
}

type userRepository struct {
	*Store
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(s *Store) user.Repository {
	return &userRepository{Store: s}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	q := `INSERT INTO users (id, email, name, password_hash, email_confirmed, metadata, created_at, updated_at, last_login)
		VALUES (:id, :email, :name, :password_hash, :email_confirmed, :metadata, :created_at, :updated_at, :last_login)`
	if _, err := sqlx.NamedExecContext(ctx, exec, q, userToRow(usr)); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) getUser(ctx context.Context, cond string, arg interface{}) (user.User, error) {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	var row userRow
	if err := sqlx.GetContext(ctx, exec, &row, "SELECT * FROM users WHERE "+cond, arg); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, "id = $1", id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "lower(email) = lower($1)", email)
}

func (repo *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	var exists bool
	err := sqlx.GetContext(ctx, exec, &exists, "SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))", email)
	return exists, errors.Wrap(err, "checking email")
}

func (repo *userRepository) UpdatePassword(ctx context.Context, id string, hash []byte, at time.Time) error {
	return repo.update(ctx, user.ErrNotFound, "UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1", id, hash, at.UTC())
}

func (repo *userRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return repo.update(ctx, user.ErrNotFound, "UPDATE users SET last_login = $2 WHERE id = $1", id, at.UTC())
}

type listingRow struct {
	ID             string      `db:"id"`
	Email          string      `db:"email"`
	Name           string      `db:"name"`
	Role           null.String `db:"role"`
	EmailConfirmed bool        `db:"email_confirmed"`
	CreatedAt      time.Time   `db:"created_at"`
	LastLogin      null.Time   `db:"last_login"`
}

func (repo *userRepository) ListUsers(ctx context.Context) ([]user.Listing, error) {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	var rows []listingRow
	q := `SELECT u.id, u.email, u.name, r.role, u.email_confirmed, u.created_at, u.last_login
		FROM users u LEFT JOIN user_roles r ON r.user_id = u.id
		ORDER BY u.created_at DESC`
	if err := sqlx.SelectContext(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}

	listings := make([]user.Listing, 0, len(rows))
	for _, r := range rows {
		listings = append(listings, user.Listing{
			ID:             r.ID,
			Email:          r.Email,
			Name:           r.Name,
			Role:           user.Role(r.Role.String),
			EmailConfirmed: r.EmailConfirmed,
			CreatedAt:      r.CreatedAt,
			LastLogin:      r.LastLogin.Time,
		})
	}
	return listings, nil
}

// DeleteUser relies on the schema's ON DELETE rules for everything referencing the user.
func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	res, err := exec.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if rowsAffected(res) == 0 {
		return user.ErrNotFound
	}
	return nil
}

type roleRow struct {
	UserID    string    `db:"user_id"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

func (repo *userRepository) GetRole(ctx context.Context, userID string) (user.RoleRecord, error) {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	var row roleRow
	if err := sqlx.GetContext(ctx, exec, &row, "SELECT * FROM user_roles WHERE user_id = $1", userID); err != nil {
		if err == sql.ErrNoRows {
			return user.RoleRecord{}, user.ErrRoleNotFound
		}
		return user.RoleRecord{}, errors.Wrap(err, "selecting role")
	}
	return user.RoleRecord{UserID: row.UserID, Role: user.Role(row.Role), CreatedAt: row.CreatedAt}, nil
}

func (repo *userRepository) SetRole(ctx context.Context, rec user.RoleRecord) error {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	q := `INSERT INTO user_roles (user_id, role, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role`
	if _, err := exec.ExecContext(ctx, q, rec.UserID, string(rec.Role), rec.CreatedAt.UTC()); err != nil {
		if foreignKeyViolation(err) != "" {
			return user.ErrNotFound
		}
		return errors.Wrap(err, "setting role")
	}
	return nil
}

func (repo *userRepository) DeleteRole(ctx context.Context, userID string) error {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	_, err := exec.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = $1", userID)
	return errors.Wrap(err, "deleting role")
}
