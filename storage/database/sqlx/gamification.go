package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/escola/core/gamification"
)

type (
	pointsRow struct {
		ID        string      `db:"id"`
		UserID    string      `db:"user_id"`
		Amount    int         `db:"amount"`
		Reason    string      `db:"reason"`
		Source    null.String `db:"source"`
		CreatedAt time.Time   `db:"created_at"`
	}

	conquistaRow struct {
		UserID     string    `db:"user_id"`
		Badge      string    `db:"badge"`
		UnlockedAt time.Time `db:"unlocked_at"`
	}
)

type gamificationRepository struct {
	*Store
}

var _ gamification.Repository = (*gamificationRepository)(nil)

func NewGamificationRepository(s *Store) gamification.Repository {
	return &gamificationRepository{Store: s}
}

// AddPoints relies on UNIQUE (user_id, source): NULL sources never conflict.
func (repo *gamificationRepository) AddPoints(ctx context.Context, e gamification.Entry) (bool, error) {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	q := `INSERT INTO pontos (id, user_id, amount, reason, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, source) DO NOTHING`
	res, err := exec.ExecContext(ctx, q, e.ID, e.UserID, e.Amount, e.Reason, nullID(e.Source), e.CreatedAt.UTC())
	if err != nil {
		return false, errors.Wrap(err, "inserting points")
	}
	return rowsAffected(res) == 1, nil
}

func (repo *gamificationRepository) RemovePoints(ctx context.Context, userID, source string) (bool, error) {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	res, err := exec.ExecContext(ctx, "DELETE FROM pontos WHERE user_id = $1 AND source = $2", userID, source)
	if err != nil {
		return false, errors.Wrap(err, "deleting points")
	}
	return rowsAffected(res) == 1, nil
}

func (repo *gamificationRepository) TotalPoints(ctx context.Context, userID string) (int, error) {
	var total int
	if err := repo.get(ctx, &total, nil, "SELECT COALESCE(SUM(amount), 0) FROM pontos WHERE user_id = $1", userID); err != nil {
		return 0, err
	}
	return total, nil
}

func (repo *gamificationRepository) RecentPoints(ctx context.Context, userID string, limit int) ([]gamification.Entry, error) {
	q := "SELECT * FROM pontos WHERE user_id = $1 ORDER BY created_at DESC"
	args := []interface{}{userID}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}

	var rows []pointsRow
	if err := repo.selectRows(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	entries := make([]gamification.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, gamification.Entry{
			ID:        r.ID,
			UserID:    r.UserID,
			Amount:    r.Amount,
			Reason:    r.Reason,
			Source:    r.Source.String,
			CreatedAt: r.CreatedAt,
		})
	}
	return entries, nil
}

func (repo *gamificationRepository) UnlockBadge(ctx context.Context, c gamification.Conquista) (bool, error) {
	ctx, exec, cancel := repo.conn(ctx)
	defer cancel()

	q := `INSERT INTO conquistas (user_id, badge, unlocked_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, badge) DO NOTHING`
	res, err := exec.ExecContext(ctx, q, c.UserID, string(c.Badge), c.UnlockedAt.UTC())
	if err != nil {
		return false, errors.Wrap(err, "inserting conquista")
	}
	return rowsAffected(res) == 1, nil
}

func (repo *gamificationRepository) ListBadges(ctx context.Context, userID string) ([]gamification.Conquista, error) {
	var rows []conquistaRow
	if err := repo.selectRows(ctx, &rows, "SELECT * FROM conquistas WHERE user_id = $1 ORDER BY unlocked_at", userID); err != nil {
		return nil, err
	}
	badges := make([]gamification.Conquista, 0, len(rows))
	for _, r := range rows {
		badges = append(badges, gamification.Conquista{UserID: r.UserID, Badge: gamification.Badge(r.Badge), UnlockedAt: r.UnlockedAt})
	}
	return badges, nil
}
