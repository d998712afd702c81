package auth

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escola/core/user"
)

func TestSession_Transitions(t *testing.T) {
	tests := []struct {
		name      string
		steps     func(s *Session) error
		wantState State
		wantErr   bool
	}{
		{
			name:      "authorize",
			steps:     func(s *Session) error { return chain(s.Begin("sid", "u1"), s.Authorize(user.RoleAluno)) },
			wantState: StateAuthorized,
		},
		{
			name:      "authorize without begin",
			steps:     func(s *Session) error { return s.Authorize(user.RoleAdmin) },
			wantState: StateAnonymous,
			wantErr:   true,
		},
		{
			name:      "begin twice",
			steps:     func(s *Session) error { return chain(s.Begin("sid", "u1"), s.Begin("sid2", "u2")) },
			wantState: StateAuthenticating,
			wantErr:   true,
		},
		{
			name:      "unknown role",
			steps:     func(s *Session) error { return chain(s.Begin("sid", "u1"), s.Authorize("diretor")) },
			wantState: StateAuthenticating,
			wantErr:   true,
		},
		{
			name:      "revoke while authenticating",
			steps:     func(s *Session) error { return chain(s.Begin("sid", "u1"), s.Revoke()) },
			wantState: StateRevoked,
		},
		{
			name:      "revoke authorized",
			steps:     func(s *Session) error { return chain(s.Begin("sid", "u1"), s.Authorize(user.RoleProfessor), s.Revoke()) },
			wantState: StateRevoked,
		},
		{
			name:      "revoke anonymous",
			steps:     func(s *Session) error { return s.Revoke() },
			wantState: StateAnonymous,
			wantErr:   true,
		},
		{
			name:      "revoke twice",
			steps:     func(s *Session) error { return chain(s.Begin("sid", "u1"), s.Revoke(), s.Revoke()) },
			wantState: StateRevoked,
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession()
			err := tt.steps(s)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidTransition), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, s.State())
		})
	}
}

// chain returns the first non-nil error. Arguments are evaluated in order, so every step runs.
func chain(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func TestSession_Revoke(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Begin("sid", "u1"))
	require.NoError(t, s.Authorize(user.RoleAdmin))
	require.NoError(t, s.Revoke())

	assert.Equal(t, "", s.UserID())
	assert.Equal(t, user.Role(""), s.Role())
	assert.Equal(t, NoticeRevoked, s.Notice())
	assert.False(t, s.IsAuthorized())

	s.SignOut()
	assert.Equal(t, StateAnonymous, s.State())
	assert.Equal(t, "", s.Notice())
	assert.Equal(t, "", s.ID())
}

func TestSession_MarshalJSON(t *testing.T) {
	authorized := NewSession()
	require.NoError(t, authorized.Begin("sid-1", "u1"))
	require.NoError(t, authorized.Authorize(user.RoleProfessor))

	revoked := NewSession()
	require.NoError(t, revoked.Begin("sid-2", "u2"))
	require.NoError(t, revoked.Revoke())

	tests := []struct {
		name string
		s    *Session
		want string
	}{
		{name: "anonymous", s: NewSession(), want: `{"state":"anonymous","user":null,"session":null}`},
		{name: "authorized", s: authorized, want: `{"state":"authorized","user":{"id":"u1","role":"professor"},"session":{"id":"sid-1"}}`},
		{name: "revoked", s: revoked, want: `{"state":"revoked","user":null,"session":null,"notice":"Acesso revogado"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.s)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}
