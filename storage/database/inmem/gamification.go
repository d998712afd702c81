package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/escola/core/gamification"
)

type gamificationRepository struct {
	db *DB
}

var _ gamification.Repository = (*gamificationRepository)(nil)

func NewGamificationRepository(db *DB) gamification.Repository {
	return &gamificationRepository{db: db}
}

func (repo *gamificationRepository) AddPoints(_ context.Context, e gamification.Entry) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if e.Source != "" {
		for _, other := range repo.db.points {
			if other.UserID == e.UserID && other.Source == e.Source {
				return false, nil
			}
		}
	}
	repo.db.points = append(repo.db.points, e)
	return true, nil
}

func (repo *gamificationRepository) RemovePoints(_ context.Context, userID, source string) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i, e := range repo.db.points {
		if e.UserID == userID && e.Source == source {
			repo.db.points = append(repo.db.points[:i], repo.db.points[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (repo *gamificationRepository) TotalPoints(_ context.Context, userID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var total int
	for _, e := range repo.db.points {
		if e.UserID == userID {
			total += e.Amount
		}
	}
	return total, nil
}

func (repo *gamificationRepository) RecentPoints(_ context.Context, userID string, limit int) ([]gamification.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	entries := make([]gamification.Entry, 0)
	for _, e := range repo.db.points {
		if e.UserID == userID {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (repo *gamificationRepository) UnlockBadge(_ context.Context, c gamification.Conquista) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.badges {
		if other.UserID == c.UserID && other.Badge == c.Badge {
			return false, nil
		}
	}
	repo.db.badges = append(repo.db.badges, c)
	return true, nil
}

func (repo *gamificationRepository) ListBadges(_ context.Context, userID string) ([]gamification.Conquista, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	badges := make([]gamification.Conquista, 0)
	for _, c := range repo.db.badges {
		if c.UserID == userID {
			badges = append(badges, c)
		}
	}
	return badges, nil
}
