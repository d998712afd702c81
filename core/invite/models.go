package invite

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/user"
)

type Status string

const (
	StatusPending  Status = "pendente"
	StatusAccepted Status = "aceito"
	StatusExpired  Status = "expirado"
)

type Invite struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Role          user.Role `json:"role"`
	Token         string    `json:"-"`
	Status        Status    `json:"status"`
	ExpiresAt     time.Time `json:"expires_at"`
	InvitedBy     string    `json:"invited_by,omitempty"`
	InvitedByName string    `json:"invited_by_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Usable reports whether the invite can still be used to sign up at `now`.
func (inv Invite) Usable(now time.Time) bool {
	return inv.Status == StatusPending && now.Before(inv.ExpiresAt)
}

// NewInvite is what an admin submits to invite someone.
type NewInvite struct {
	Email string    `json:"email" validate:"required,email"`
	Role  user.Role `json:"role" validate:"required,app_role"`
}

func (ni *NewInvite) Validate(validate *validator.Validate) error {
	ni.Email = core.CleanString(ni.Email, true /* lower */)
	ni.Role = user.Role(core.CleanString(string(ni.Role), true /* lower */))
	return validate.Struct(ni)
}

// Validation is the public answer to "can this token be used to sign up?". It never exposes the invite row.
type Validation struct {
	Valid  bool        `json:"valid"`
	Invite *PublicInfo `json:"invite,omitempty"`
}

type PublicInfo struct {
	Email         string    `json:"email"`
	Role          user.Role `json:"role"`
	InvitedByName string    `json:"invited_by_name"`
}
