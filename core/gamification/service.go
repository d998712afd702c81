package gamification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
)

const recentEntries = 10

type (
	Repository interface {
		// AddPoints appends e to the ledger. It returns false, and writes nothing, when e.Source was already credited to the user.
		AddPoints(ctx context.Context, e Entry) (bool, error)
		// RemovePoints deletes the user's entry credited for source. It returns false when there was none.
		RemovePoints(ctx context.Context, userID, source string) (bool, error)
		TotalPoints(ctx context.Context, userID string) (int, error)
		// RecentPoints returns the latest ledger entries of the user, newest first.
		RecentPoints(ctx context.Context, userID string, limit int) ([]Entry, error)
		// UnlockBadge records the badge. It returns false when the user already had it.
		UnlockBadge(ctx context.Context, c Conquista) (bool, error)
		ListBadges(ctx context.Context, userID string) ([]Conquista, error)
	}

	Service struct {
		repo    Repository
		logger  core.Logger
		NowFunc func() time.Time // mockable
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger, NowFunc: time.Now}
}

func (svc *Service) now() time.Time { return svc.NowFunc().UTC() }

// Award credits amount points to the user. Awards sharing a non-empty source are credited once.
// The point badges reached by the new total are unlocked.
func (svc *Service) Award(ctx context.Context, userID string, amount int, reason, source string) (bool, error) {
	if amount <= 0 {
		return false, core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must be positive"})
	}
	added, err := svc.repo.AddPoints(ctx, Entry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		Source:    source,
		CreatedAt: svc.now(),
	})
	if err != nil {
		return false, errors.Wrap(err, "adding points")
	}
	if !added {
		return false, nil
	}

	total, err := svc.repo.TotalPoints(ctx, userID)
	if err != nil {
		return true, errors.Wrap(err, "summing points")
	}
	for _, pb := range pointBadges {
		if total < pb.min {
			break
		}
		if _, err = svc.Unlock(ctx, userID, pb.badge); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Revoke takes back the points credited to the user for source, which may then be awarded again.
// Badges already unlocked are kept.
func (svc *Service) Revoke(ctx context.Context, userID, source string) (bool, error) {
	if source == "" {
		return false, core.NewValidationError(nil, core.FieldError{Field: "source", Error: "is required"})
	}
	removed, err := svc.repo.RemovePoints(ctx, userID, source)
	if err != nil {
		return false, errors.Wrap(err, "removing points")
	}
	return removed, nil
}

// Unlock grants the badge. Unlocking a badge twice is a no-op; the returned bool tells whether it was new.
func (svc *Service) Unlock(ctx context.Context, userID string, badge Badge) (bool, error) {
	unlocked, err := svc.repo.UnlockBadge(ctx, Conquista{UserID: userID, Badge: badge, UnlockedAt: svc.now()})
	if err != nil {
		return false, errors.Wrap(err, "unlocking badge")
	}
	if unlocked {
		svc.logger.Info("badge unlocked", map[string]interface{}{"user_id": userID, "badge": string(badge)})
	}
	return unlocked, nil
}

func (svc *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	total, err := svc.repo.TotalPoints(ctx, userID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "summing points")
	}
	badges, err := svc.repo.ListBadges(ctx, userID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "listing badges")
	}
	recent, err := svc.repo.RecentPoints(ctx, userID, recentEntries)
	if err != nil {
		return Summary{}, errors.Wrap(err, "listing points")
	}
	return Summary{
		TotalPoints: total,
		Level:       Level(total),
		Badges:      badges,
		Recent:      recent,
	}, nil
}
