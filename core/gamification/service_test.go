package gamification_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/gamification"
	"github.com/trezcool/escola/services/logger"
	"github.com/trezcool/escola/storage/database/inmem"
)

func newService() *gamification.Service {
	return gamification.NewService(inmemdb.NewGamificationRepository(inmemdb.Open()), logsvc.NewNop())
}

func badges(cs []gamification.Conquista) []gamification.Badge {
	bs := make([]gamification.Badge, 0, len(cs))
	for _, c := range cs {
		bs = append(bs, c.Badge)
	}
	return bs
}

func TestLevel(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{total: -5, want: 1},
		{total: 0, want: 1},
		{total: 99, want: 1},
		{total: 100, want: 2},
		{total: 250, want: 3},
		{total: 1000, want: 11},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.total), func(t *testing.T) {
			assert.Equal(t, tt.want, gamification.Level(tt.total))
		})
	}
}

func TestService_Award(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	added, err := svc.Award(ctx, "u1", 60, "Presença", "presenca:a1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = svc.Award(ctx, "u1", 60, "Presença", "presenca:a1")
	require.NoError(t, err)
	assert.False(t, added, "same source is credited once")

	_, err = svc.Award(ctx, "u1", 0, "nada", "")
	_, isValidation := err.(*core.ValidationError)
	assert.True(t, isValidation)

	sum, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 60, sum.TotalPoints)
	assert.Empty(t, sum.Badges)

	_, err = svc.Award(ctx, "u1", 45, "Avaliação", "avaliacao:x")
	require.NoError(t, err)
	sum, err = svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 105, sum.TotalPoints)
	assert.Equal(t, 2, sum.Level)
	assert.Equal(t, []gamification.Badge{gamification.Badge100Pontos}, badges(sum.Badges))

	// unsourced awards always count
	for i := 0; i < 2; i++ {
		_, err = svc.Award(ctx, "u1", 200, "Bônus", "")
		require.NoError(t, err)
	}
	sum, err = svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 505, sum.TotalPoints)
	assert.Equal(t, []gamification.Badge{gamification.Badge100Pontos, gamification.Badge500Pontos}, badges(sum.Badges))
	assert.Len(t, sum.Recent, 4)

	other, err := svc.Summary(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, gamification.Summary{Level: 1, Badges: []gamification.Conquista{}, Recent: []gamification.Entry{}}, other)
}

func TestService_Revoke(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.Award(ctx, "u1", 60, "Presença", "presenca:a1")
	require.NoError(t, err)
	_, err = svc.Award(ctx, "u1", 60, "Presença", "presenca:a2")
	require.NoError(t, err)
	_, err = svc.Award(ctx, "u2", 60, "Presença", "presenca:a1")
	require.NoError(t, err)

	removed, err := svc.Revoke(ctx, "u1", "presenca:a1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Revoke(ctx, "u1", "presenca:a1")
	require.NoError(t, err)
	assert.False(t, removed, "nothing left to take back")

	_, err = svc.Revoke(ctx, "u1", "")
	_, isValidation := err.(*core.ValidationError)
	assert.True(t, isValidation)

	sum, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 60, sum.TotalPoints)
	assert.Equal(t, []gamification.Badge{gamification.Badge100Pontos}, badges(sum.Badges), "badges are kept")

	other, err := svc.Summary(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 60, other.TotalPoints)

	added, err := svc.Award(ctx, "u1", 60, "Presença", "presenca:a1")
	require.NoError(t, err)
	assert.True(t, added, "a revoked source can be credited again")
}

func TestService_Unlock(t *testing.T) {
	svc := newService()
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	svc.NowFunc = func() time.Time { return at }

	unlocked, err := svc.Unlock(context.Background(), "u1", gamification.BadgePrimeiraAprovacao)
	require.NoError(t, err)
	assert.True(t, unlocked)

	unlocked, err = svc.Unlock(context.Background(), "u1", gamification.BadgePrimeiraAprovacao)
	require.NoError(t, err)
	assert.False(t, unlocked)

	sum, err := svc.Summary(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, sum.Badges, 1)
	assert.Equal(t, at, sum.Badges[0].UnlockedAt)
}
