package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/escola/core/invite"
	"github.com/trezcool/escola/core/user"
)

type inviteRow struct {
	ID            string      `db:"id"`
	Email         string      `db:"email"`
	Role          string      `db:"role"`
	Token         string      `db:"token"`
	Status        string      `db:"status"`
	ExpiresAt     time.Time   `db:"expires_at"`
	InvitedBy     null.String `db:"invited_by"`
	InvitedByName string      `db:"invited_by_name"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func inviteToRow(inv invite.Invite) inviteRow {
	return inviteRow{
		ID:        inv.ID,
		Email:     inv.Email,
		Role:      string(inv.Role),
		Token:     inv.Token,
		Status:    string(inv.Status),
		ExpiresAt: inv.ExpiresAt.UTC(),
		InvitedBy: null.NewString(inv.InvitedBy, inv.InvitedBy != ""),
		CreatedAt: inv.CreatedAt.UTC(),
		UpdatedAt: inv.UpdatedAt.UTC(),
	}
}

func (r inviteRow) toInvite() invite.Invite {
	return invite.Invite{
		ID:            r.ID,
		Email:         r.Email,
		Role:          user.Role(r.Role),
		Token:         r.Token,
		Status:        invite.Status(r.Status),
		ExpiresAt:     r.ExpiresAt,
		InvitedBy:     r.InvitedBy.String,
		InvitedByName: r.InvitedByName,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

const selectInvites = `SELECT c.*, COALESCE(u.name, '') AS invited_by_name
	FROM convites c LEFT JOIN users u ON u.id = c.invited_by`

type inviteRepository struct {
	*Store
}

var _ invite.Repository = (*inviteRepository)(nil)

func NewInviteRepository(s *Store) invite.Repository {
	return &inviteRepository{Store: s}
}

func (repo *inviteRepository) CreateInvite(ctx context.Context, inv invite.Invite) (invite.Invite, error) {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	q := `INSERT INTO convites (id, email, role, token, status, expires_at, invited_by, created_at, updated_at)
		VALUES (:id, :email, :role, :token, :status, :expires_at, :invited_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, q, inviteToRow(inv)); err != nil {
		return invite.Invite{}, errors.Wrap(err, "inserting invite")
	}
	return inv, nil
}

func (repo *inviteRepository) getInvite(ctx context.Context, cond string, args ...interface{}) (invite.Invite, error) {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	var row inviteRow
	if err := sqlx.GetContext(ctx, exec, &row, selectInvites+" WHERE "+cond+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return invite.Invite{}, invite.ErrNotFound
		}
		return invite.Invite{}, errors.Wrap(err, "selecting invite")
	}
	return row.toInvite(), nil
}

func (repo *inviteRepository) FindPendingInvite(ctx context.Context, email string, role user.Role) (invite.Invite, error) {
	return repo.getInvite(ctx, "c.email = $1 AND c.role = $2 AND c.status = $3",
		email, string(role), string(invite.StatusPending))
}

func (repo *inviteRepository) GetInviteByToken(ctx context.Context, token string) (invite.Invite, error) {
	return repo.getInvite(ctx, "c.token = $1", token)
}

func (repo *inviteRepository) exec(ctx context.Context, q string, args ...interface{}) (int64, error) {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	res, err := exec.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "updating invite")
	}
	return rowsAffected(res), nil
}

func (repo *inviteRepository) RefreshInviteExpiry(ctx context.Context, id string, expiresAt, at time.Time) error {
	n, err := repo.exec(ctx, "UPDATE convites SET expires_at = $2, updated_at = $3 WHERE id = $1", id, expiresAt.UTC(), at.UTC())
	if err == nil && n == 0 {
		return invite.ErrNotFound
	}
	return err
}

// MarkInviteAccepted flips the invite in a single statement so two sign-ups cannot both redeem it.
func (repo *inviteRepository) MarkInviteAccepted(ctx context.Context, token string, at time.Time) error {
	n, err := repo.exec(ctx, `UPDATE convites SET status = $2, updated_at = $3
		WHERE token = $1 AND status = $4 AND expires_at > $3`,
		token, string(invite.StatusAccepted), at.UTC(), string(invite.StatusPending))
	if err == nil && n == 0 {
		return invite.ErrAlreadyUsed
	}
	return err
}

func (repo *inviteRepository) MarkInviteExpired(ctx context.Context, id string, at time.Time) error {
	_, err := repo.exec(ctx, "UPDATE convites SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4",
		id, string(invite.StatusExpired), at.UTC(), string(invite.StatusPending))
	return err
}

func (repo *inviteRepository) ExpireInvites(ctx context.Context, before time.Time) (int64, error) {
	return repo.exec(ctx, "UPDATE convites SET status = $2, updated_at = $1 WHERE status = $3 AND expires_at <= $1",
		before.UTC(), string(invite.StatusExpired), string(invite.StatusPending))
}

func (repo *inviteRepository) ListInvites(ctx context.Context) ([]invite.Invite, error) {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	var rows []inviteRow
	if err := sqlx.SelectContext(ctx, exec, &rows, selectInvites+" ORDER BY c.created_at DESC"); err != nil {
		return nil, errors.Wrap(err, "selecting invites")
	}
	invs := make([]invite.Invite, 0, len(rows))
	for _, r := range rows {
		invs = append(invs, r.toInvite())
	}
	return invs, nil
}
