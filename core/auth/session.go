// Package auth holds the session state machine: anonymous → authenticating → authorized | revoked.
// A session is only valid while the user holds a role record.
package auth

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/escola/core/user"
)

type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthorized
	StateRevoked
)

var stateNames = map[State]string{
	StateAnonymous:      "anonymous",
	StateAuthenticating: "authenticating",
	StateAuthorized:     "authorized",
	StateRevoked:        "revoked",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// NoticeRevoked is surfaced to the user when their session is forcibly ended.
const NoticeRevoked = "Acesso revogado"

var ErrInvalidTransition = errors.New("invalid session transition")

// Session tracks one sign-in. The zero value is an anonymous session.
type Session struct {
	state  State
	id     string
	userID string
	role   user.Role
	notice string
}

func NewSession() *Session { return &Session{} }

func (s *Session) State() State { return s.state }
func (s *Session) ID() string { return s.id }
func (s *Session) UserID() string { return s.userID }
func (s *Session) Role() user.Role { return s.role }
func (s *Session) Notice() string { return s.notice }
func (s *Session) IsAuthorized() bool { return s.state == StateAuthorized }

func (s *Session) transitionErr(to State) error {
	return errors.Wrapf(ErrInvalidTransition, "%s -> %s", s.state, to)
}

// Begin starts authenticating userID under the session id sid.
func (s *Session) Begin(sid, userID string) error {
	if s.state != StateAnonymous {
		return s.transitionErr(StateAuthenticating)
	}
	s.state = StateAuthenticating
	s.id = sid
	s.userID = userID
	s.notice = ""
	return nil
}

// Authorize grants the session the role found for its user.
func (s *Session) Authorize(role user.Role) error {
	if s.state != StateAuthenticating {
		return s.transitionErr(StateAuthorized)
	}
	if !role.Valid() {
		return errors.Wrapf(ErrInvalidTransition, "invalid role %q", role)
	}
	s.state = StateAuthorized
	s.role = role
	return nil
}

// Revoke forcibly ends the session: the user and role are cleared and the revocation notice is set.
func (s *Session) Revoke() error {
	if s.state != StateAuthenticating && s.state != StateAuthorized {
		return s.transitionErr(StateRevoked)
	}
	s.state = StateRevoked
	s.userID = ""
	s.role = ""
	s.notice = NoticeRevoked
	return nil
}

// SignOut returns the session to anonymous from any state.
func (s *Session) SignOut() {
	*s = Session{}
}

type snapshotUser struct {
	ID   string    `json:"id"`
	Role user.Role `json:"role"`
}

type snapshotSession struct {
	ID string `json:"id"`
}

type snapshot struct {
	State   State            `json:"state"`
	User    *snapshotUser    `json:"user"`
	Session *snapshotSession `json:"session"`
	Notice  string           `json:"notice,omitempty"`
}

// MarshalJSON renders user and session as null unless the session is authorized.
func (s *Session) MarshalJSON() ([]byte, error) {
	snap := snapshot{State: s.state, Notice: s.notice}
	if s.state == StateAuthorized {
		snap.User = &snapshotUser{ID: s.userID, Role: s.role}
		snap.Session = &snapshotSession{ID: s.id}
	}
	return json.Marshal(snap)
}
