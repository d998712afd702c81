package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/user"
)

var ErrAccessRevoked = errors.New(NoticeRevoked)

type (
	// RoleFinder fetches the single role record of a user.
	RoleFinder interface {
		Role(ctx context.Context, userID string) (user.RoleRecord, error)
	}

	// RevocationStore remembers revoked session ids until their tokens expire.
	RevocationStore interface {
		Revoke(ctx context.Context, sid string, ttl time.Duration) error
		IsRevoked(ctx context.Context, sid string) (bool, error)
	}

	Manager struct {
		roles  RoleFinder
		store  RevocationStore
		ttl    time.Duration
		logger core.Logger
	}
)

// NewManager returns a Manager keeping revocations for ttl, the lifetime of a refreshable token.
func NewManager(roles RoleFinder, store RevocationStore, ttl time.Duration, logger core.Logger) *Manager {
	return &Manager{roles: roles, store: store, ttl: ttl, logger: logger}
}

// Resolve authenticates userID under session sid. It runs on every session change: sign-in, refresh and each request.
// Failing to find the role, for any reason, revokes the session and returns ErrAccessRevoked.
func (m *Manager) Resolve(ctx context.Context, sid, userID string) (*Session, error) {
	s := NewSession()
	if err := s.Begin(sid, userID); err != nil {
		return s, err
	}

	revoked, err := m.store.IsRevoked(ctx, sid)
	if err != nil {
		m.logger.Error("checking session revocation", errors.Wrap(err, sid))
		return m.revoke(ctx, s)
	}
	if revoked {
		_ = s.Revoke()
		return s, ErrAccessRevoked
	}

	rec, err := m.roles.Role(ctx, userID)
	if err != nil {
		if !core.IsNotFound(err) {
			m.logger.Error("looking up role", errors.Wrap(err, userID))
		}
		return m.revoke(ctx, s)
	}
	if err = s.Authorize(rec.Role); err != nil {
		m.logger.Warn("unusable role record", err)
		return m.revoke(ctx, s)
	}
	return s, nil
}

func (m *Manager) revoke(ctx context.Context, s *Session) (*Session, error) {
	sid := s.ID()
	if err := s.Revoke(); err != nil {
		return s, err
	}
	if sid != "" {
		if err := m.store.Revoke(ctx, sid, m.ttl); err != nil {
			m.logger.Error("storing session revocation", errors.Wrap(err, sid))
		}
	}
	return s, ErrAccessRevoked
}

// SignOut ends the session and keeps its token from being used again.
func (m *Manager) SignOut(ctx context.Context, s *Session) error {
	sid := s.ID()
	s.SignOut()
	if sid == "" {
		return nil
	}
	return errors.Wrap(m.store.Revoke(ctx, sid, m.ttl), "revoking session")
}
