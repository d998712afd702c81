package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/escola/core/invite"
	"github.com/trezcool/escola/core/user"
)

type inviteRepository struct {
	db *DB
}

var _ invite.Repository = (*inviteRepository)(nil)

func NewInviteRepository(db *DB) invite.Repository {
	return &inviteRepository{db: db}
}

func (repo *inviteRepository) withInviter(inv invite.Invite) invite.Invite {
	if usr, ok := repo.db.users[inv.InvitedBy]; ok {
		inv.InvitedByName = usr.Name
	}
	return inv
}

func (repo *inviteRepository) CreateInvite(_ context.Context, inv invite.Invite) (invite.Invite, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.invites[inv.ID] = inv
	return inv, nil
}

func (repo *inviteRepository) FindPendingInvite(_ context.Context, email string, role user.Role) (invite.Invite, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, inv := range repo.db.invites {
		if inv.Email == email && inv.Role == role && inv.Status == invite.StatusPending {
			return repo.withInviter(inv), nil
		}
	}
	return invite.Invite{}, invite.ErrNotFound
}

func (repo *inviteRepository) RefreshInviteExpiry(_ context.Context, id string, expiresAt, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	inv, ok := repo.db.invites[id]
	if !ok {
		return invite.ErrNotFound
	}
	inv.ExpiresAt = expiresAt
	inv.UpdatedAt = at
	repo.db.invites[id] = inv
	return nil
}

func (repo *inviteRepository) GetInviteByToken(_ context.Context, token string) (invite.Invite, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, inv := range repo.db.invites {
		if inv.Token == token {
			return repo.withInviter(inv), nil
		}
	}
	return invite.Invite{}, invite.ErrNotFound
}

func (repo *inviteRepository) MarkInviteAccepted(_ context.Context, token string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, inv := range repo.db.invites {
		if inv.Token != token {
			continue
		}
		if !inv.Usable(at) {
			return invite.ErrAlreadyUsed
		}
		inv.Status = invite.StatusAccepted
		inv.UpdatedAt = at
		repo.db.invites[id] = inv
		return nil
	}
	return invite.ErrAlreadyUsed
}

func (repo *inviteRepository) MarkInviteExpired(_ context.Context, id string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	inv, ok := repo.db.invites[id]
	if !ok {
		return invite.ErrNotFound
	}
	if inv.Status == invite.StatusPending {
		inv.Status = invite.StatusExpired
		inv.UpdatedAt = at
		repo.db.invites[id] = inv
	}
	return nil
}

func (repo *inviteRepository) ExpireInvites(_ context.Context, before time.Time) (int64, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int64
	for id, inv := range repo.db.invites {
		if inv.Status == invite.StatusPending && !before.Before(inv.ExpiresAt) {
			inv.Status = invite.StatusExpired
			inv.UpdatedAt = before
			repo.db.invites[id] = inv
			n++
		}
	}
	return n, nil
}

func (repo *inviteRepository) ListInvites(_ context.Context) ([]invite.Invite, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	invs := make([]invite.Invite, 0, len(repo.db.invites))
	for _, inv := range repo.db.invites {
		invs = append(invs, repo.withInviter(inv))
	}
	sort.Slice(invs, func(i, j int) bool { return invs[i].CreatedAt.After(invs[j].CreatedAt) })
	return invs, nil
}
