package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user not found")
	ErrRoleNotFound       = core.NewNotFoundError("role not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		EmailExists(ctx context.Context, email string) (bool, error)
		UpdatePassword(ctx context.Context, id string, hash []byte, at time.Time) error
		TouchLastLogin(ctx context.Context, id string, at time.Time) error
		// ListUsers returns every user left-joined with its role record.
		ListUsers(ctx context.Context) ([]Listing, error)
		// DeleteUser deletes the user and everything that references it.
		DeleteUser(ctx context.Context, id string) error

		GetRole(ctx context.Context, userID string) (RoleRecord, error)
		SetRole(ctx context.Context, rec RoleRecord) error
		DeleteRole(ctx context.Context, userID string) error
	}

	// ProfileWriter creates the domain profile (aluno, professor) matching a new user's role.
	ProfileWriter interface {
		CreateProfile(ctx context.Context, usr User, role Role, phone string) error
	}

	// InviteRedeemer resolves and consumes sign-up invitations.
	InviteRedeemer interface {
		Pending(ctx context.Context, token string) (Invitation, error)
		Accept(ctx context.Context, token string) error
	}

	Service struct {
		repo     Repository
		profiles ProfileWriter
		invites  InviteRedeemer
		tx       core.Transactor
		NowFunc  func() time.Time // mockable
	}
)

func NewService(repo Repository, profiles ProfileWriter, invites InviteRedeemer, tx core.Transactor) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		invites:  invites,
		tx:       tx,
		NowFunc:  time.Now,
	}
}

func (svc *Service) now() time.Time { return svc.NowFunc().UTC() }

func (svc *Service) checkEmail(ctx context.Context, email string) error {
	exists, err := svc.repo.EmailExists(ctx, email)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

// Authenticate checks the credentials and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "getting user by email")
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	usr.LastLogin = svc.now()
	if err := svc.repo.TouchLastLogin(ctx, usr.ID, usr.LastLogin); err != nil {
		return User{}, errors.Wrap(err, "touching last login")
	}
	return usr, nil
}

// SignUp creates the account an invite was sent for and marks the invite accepted, all or nothing.
func (svc *Service) SignUp(ctx context.Context, su SignUp) (User, Role, error) {
	var (
		usr User
		inv Invitation
	)
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = svc.invites.Pending(ctx, su.Token); err != nil {
			return err
		}
		if err = svc.checkEmail(ctx, inv.Email); err != nil {
			return err
		}

		now := svc.now()
		usr = User{
			ID:             uuid.New().String(),
			Email:          inv.Email,
			Name:           su.Name,
			EmailConfirmed: true,
			Metadata:       map[string]string{"role": string(inv.Role), "name": su.Name},
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err = usr.SetPassword(su.Password); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		if usr, err = svc.create(ctx, usr, inv.Role, su.Phone); err != nil {
			return err
		}
		return svc.invites.Accept(ctx, su.Token)
	})
	if err != nil {
		return User{}, "", err
	}
	return usr, inv.Role, nil
}

// Create creates a user with a pre-confirmed email and the given role, as done from the admin panel.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	var usr User
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		if err := svc.checkEmail(ctx, nu.Email); err != nil {
			return err
		}

		now := svc.now()
		usr = User{
			ID:             uuid.New().String(),
			Email:          nu.Email,
			Name:           nu.Name,
			EmailConfirmed: true,
			Metadata:       map[string]string{"role": string(nu.Role), "name": nu.Name},
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := usr.SetPassword(nu.Password); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		var err error
		usr, err = svc.create(ctx, usr, nu.Role, "")
		return err
	})
	return usr, err
}

func (svc *Service) create(ctx context.Context, usr User, role Role, phone string) (User, error) {
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	if err = svc.repo.SetRole(ctx, RoleRecord{UserID: usr.ID, Role: role, CreatedAt: usr.CreatedAt}); err != nil {
		return User{}, errors.Wrap(err, "setting role")
	}
	if err = svc.profiles.CreateProfile(ctx, usr, role, phone); err != nil {
		return User{}, errors.Wrap(err, "creating profile")
	}
	return usr, nil
}

func (svc *Service) List(ctx context.Context) ([]Listing, error) {
	return svc.repo.ListUsers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Delete removes the user; profile, role, enrollments, attendance and points go with it.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetUserByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteUser(ctx, id)
}

// Role returns the user's role record, ErrRoleNotFound when access was revoked.
func (svc *Service) Role(ctx context.Context, userID string) (RoleRecord, error) {
	return svc.repo.GetRole(ctx, userID)
}

func (svc *Service) SetRole(ctx context.Context, userID string, role Role) error {
	if !role.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: "invalid role"})
	}
	return svc.repo.SetRole(ctx, RoleRecord{UserID: userID, Role: role, CreatedAt: svc.now()})
}

// RevokeRole deletes the role record: every session of the user is revoked on its next refresh.
func (svc *Service) RevokeRole(ctx context.Context, userID string) error {
	return svc.repo.DeleteRole(ctx, userID)
}

func (svc *Service) SetPassword(ctx context.Context, userID, pwd string) error {
	var usr User
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	return svc.repo.UpdatePassword(ctx, userID, usr.PasswordHash, svc.now())
}

// Actor builds the authenticated caller from a user and its role.
func (svc *Service) Actor(ctx context.Context, userID string, role Role) (Actor, error) {
	usr, err := svc.repo.GetUserByID(ctx, userID)
	if err != nil {
		return Actor{}, err
	}
	return Actor{ID: usr.ID, Email: usr.Email, Name: usr.Name, Role: role}, nil
}
