package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/escola/core"
)

// Role is the single role record a user holds. A user without one has no access.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleProfessor Role = "professor"
	RoleAluno     Role = "aluno"
)

var Roles = []Role{RoleAdmin, RoleProfessor, RoleAluno}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProfessor, RoleAluno:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

type User struct {
	ID             string            `json:"id"`
	Email          string            `json:"email"`
	Name           string            `json:"name"`
	PasswordHash   []byte            `json:"-"`
	EmailConfirmed bool              `json:"email_confirmed"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"` // UTC
	UpdatedAt      time.Time         `json:"updated_at"` // UTC
	LastLogin      time.Time         `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

type RoleRecord struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

func (a Actor) IsAdmin() bool     { return a.Role == RoleAdmin }
func (a Actor) IsProfessor() bool { return a.Role == RoleProfessor }
func (a Actor) IsAluno() bool     { return a.Role == RoleAluno }

// IsStaff reports whether the actor can manage classes: admins and professors.
func (a Actor) IsStaff() bool { return a.IsAdmin() || a.IsProfessor() }

// Listing is a user joined with its role record (empty Role when it has none) for admin views.
type Listing struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           Role      `json:"role,omitempty"`
	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
	LastLogin      time.Time `json:"last_sign_in_at"`
}

// Invitation is what sign-up needs to know about a pending invite.
type Invitation struct {
	Email string
	Role  Role
}

// NewUser contains information needed to create a new User from the admin panel.
type NewUser struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,pwdpolicy"`
	Name     string `json:"name" validate:"required"`
	Role     Role   `json:"role" validate:"required,app_role"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Name = core.CleanString(nu.Name)
	nu.Role = Role(core.CleanString(string(nu.Role), true /* lower */))
	return validate.Struct(nu)
}

// SignUp holds an invited person's registration. The email always comes from the invite.
type SignUp struct {
	Token           string `json:"token" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Password        string `json:"password" validate:"required,pwdpolicy"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Phone           string `json:"phone"`
}

func (su *SignUp) Validate(validate *validator.Validate) error {
	su.Token = core.CleanString(su.Token)
	su.Name = core.CleanString(su.Name)
	su.Phone = core.CleanString(su.Phone)
	return validate.Struct(su)
}
