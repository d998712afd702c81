package invite

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/user"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("invite not found")
	ErrAlreadyUsed  = core.NewConflictError("invite already used")
	errInvalidToken = errors.New("invalid or expired invite")
	ErrInvalid      = core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	tokenBytes = 32
)

type (
	Repository interface {
		CreateInvite(ctx context.Context, inv Invite) (Invite, error)
		// FindPendingInvite returns the pending invite for (email, role), ErrNotFound if none.
		FindPendingInvite(ctx context.Context, email string, role user.Role) (Invite, error)
		RefreshInviteExpiry(ctx context.Context, id string, expiresAt, at time.Time) error
		// GetInviteByToken returns the invite with InvitedByName filled in.
		GetInviteByToken(ctx context.Context, token string) (Invite, error)
		// MarkInviteAccepted flips a pending, unexpired invite to accepted. ErrAlreadyUsed if there was none to flip.
		MarkInviteAccepted(ctx context.Context, token string, at time.Time) error
		MarkInviteExpired(ctx context.Context, id string, at time.Time) error
		// ExpireInvites marks every pending invite expired at `before` as expired.
		ExpireInvites(ctx context.Context, before time.Time) (int64, error)
		ListInvites(ctx context.Context) ([]Invite, error)
	}

	UserChecker interface {
		EmailExists(ctx context.Context, email string) (bool, error)
	}

	Service struct {
		repo    Repository
		users   UserChecker
		mailSvc core.EmailService
		ttl     time.Duration
		logger  core.Logger
		NowFunc func() time.Time // mockable
	}
)

var _ user.InviteRedeemer = (*Service)(nil)

func NewService(repo Repository, users UserChecker, mailSvc core.EmailService, ttl time.Duration, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		mailSvc: mailSvc,
		ttl:     ttl,
		logger:  logger,
		NowFunc: time.Now,
	}
}

func (svc *Service) now() time.Time { return svc.NowFunc().UTC() }

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create invites ni.Email as ni.Role. A pending invite for the same email and role is reused with a fresh expiry.
// The returned bool reports whether an existing invite was reused.
func (svc *Service) Create(ctx context.Context, ni NewInvite, by user.Actor) (Invite, bool, error) {
	exists, err := svc.users.EmailExists(ctx, ni.Email)
	if err != nil {
		return Invite{}, false, errors.Wrap(err, "checking email")
	}
	if exists {
		return Invite{}, false, core.NewValidationError(user.ErrEmailExists, core.FieldError{Field: "email", Error: user.ErrEmailExists.Error()})
	}

	now := svc.now()
	expiresAt := now.Add(svc.ttl)

	inv, err := svc.repo.FindPendingInvite(ctx, ni.Email, ni.Role)
	reused := err == nil
	switch {
	case reused:
		if err = svc.repo.RefreshInviteExpiry(ctx, inv.ID, expiresAt, now); err != nil {
			return Invite{}, false, errors.Wrap(err, "refreshing invite expiry")
		}
		inv.ExpiresAt = expiresAt
		inv.UpdatedAt = now
	case errors.Cause(err) == ErrNotFound:
		token, err := newToken()
		if err != nil {
			return Invite{}, false, errors.Wrap(err, "generating token")
		}
		inv, err = svc.repo.CreateInvite(ctx, Invite{
			ID:        uuid.New().String(),
			Email:     ni.Email,
			Role:      ni.Role,
			Token:     token,
			Status:    StatusPending,
			ExpiresAt: expiresAt,
			InvitedBy: by.ID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return Invite{}, false, errors.Wrap(err, "creating invite")
		}
	default:
		return Invite{}, false, errors.Wrap(err, "finding pending invite")
	}

	inv.InvitedByName = by.Name
	svc.sendInviteMail(inv)
	return inv, reused, nil
}

func (svc *Service) sendInviteMail(inv Invite) {
	invitedBy := inv.InvitedByName
	if invitedBy == "" {
		invitedBy = "A equipe"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: inv.Email}},
		Subject:      "Você foi convidado",
		TemplateName: "invite",
		TemplateData: map[string]interface{}{
			"InvitedByName": invitedBy,
			"Role":          string(inv.Role),
			"Token":         inv.Token,
			"ExpiresAt":     inv.ExpiresAt.Format("02/01/2006 15:04"),
		},
	})
}

// lookup returns the invite behind token if it can still be used. Pending invites found past their expiry are marked expired.
func (svc *Service) lookup(ctx context.Context, token string) (Invite, bool, error) {
	if token == "" {
		return Invite{}, false, nil
	}
	inv, err := svc.repo.GetInviteByToken(ctx, token)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Invite{}, false, nil
		}
		return Invite{}, false, errors.Wrap(err, "getting invite by token")
	}

	now := svc.now()
	if inv.Status == StatusPending && !now.Before(inv.ExpiresAt) {
		if err = svc.repo.MarkInviteExpired(ctx, inv.ID, now); err != nil {
			svc.logger.Warn("marking invite expired", err)
		}
		inv.Status = StatusExpired
	}
	return inv, inv.Usable(now), nil
}

// Validate tells whether token can be used to sign up, with the info the signup form pre-fills.
func (svc *Service) Validate(ctx context.Context, token string) (Validation, error) {
	inv, ok, err := svc.lookup(ctx, core.CleanString(token))
	if err != nil || !ok {
		return Validation{Valid: false}, err
	}
	return Validation{
		Valid: true,
		Invite: &PublicInfo{
			Email:         inv.Email,
			Role:          inv.Role,
			InvitedByName: inv.InvitedByName,
		},
	}, nil
}

// Pending returns the email and role a usable invite was issued for, ErrInvalid otherwise.
func (svc *Service) Pending(ctx context.Context, token string) (user.Invitation, error) {
	inv, ok, err := svc.lookup(ctx, token)
	if err != nil {
		return user.Invitation{}, err
	}
	if !ok {
		return user.Invitation{}, ErrInvalid
	}
	return user.Invitation{Email: inv.Email, Role: inv.Role}, nil
}

// Accept marks the invite accepted. Only one of concurrent acceptances of the same token succeeds.
func (svc *Service) Accept(ctx context.Context, token string) error {
	return svc.repo.MarkInviteAccepted(ctx, token, svc.now())
}

// ExpireStale marks every pending invite past its expiry as expired.
func (svc *Service) ExpireStale(ctx context.Context) (int64, error) {
	return svc.repo.ExpireInvites(ctx, svc.now())
}

func (svc *Service) List(ctx context.Context) ([]Invite, error) {
	return svc.repo.ListInvites(ctx)
}
