package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/escola/core/user"
)

func TestZapLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewZapLogger(zap.New(core))

	l.Debug("hidden")
	l.Warn("reminder failed",
		errors.New("mailbox full"),
		map[string]interface{}{"aula_id": "a1"},
		user.Actor{ID: "u1", Role: user.RoleProfessor},
		42,
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "reminder failed", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "mailbox full", ctx["error"])
	assert.Equal(t, "a1", ctx["aula_id"])
	assert.Equal(t, "u1", ctx["actor_id"])
	assert.Equal(t, "professor", ctx["actor_role"])
	assert.EqualValues(t, 42, ctx["arg3"])
}

func TestNewZap_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{level: "debug", want: zapcore.DebugLevel},
		{level: "WARN", want: zapcore.WarnLevel},
		{level: "nonsense", want: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			z, err := NewZap(tt.level, "test")
			require.NoError(t, err)
			assert.True(t, z.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, z.Core().Enabled(tt.want-1))
			}
		})
	}
}
