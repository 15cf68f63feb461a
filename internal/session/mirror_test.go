package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisMirrorRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	m := NewRedisMirror(client, time.Hour)

	missing, err := m.Load(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, missing)

	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st := State{
		QuizID:           9,
		QuestionIndex:    2,
		StartedAt:        started,
		AdvancedAt:       started.Add(time.Minute),
		OverallStartedAt: &started,
		OverallDuration:  300,
		PausedSeconds:    15,
	}
	require.NoError(t, m.Save(ctx, st))
	assert.Equal(t, time.Hour, mr.TTL("quiz:session:9"))

	loaded, err := m.Load(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 2, loaded.QuestionIndex)
	assert.Equal(t, 15, loaded.PausedSeconds)
	assert.True(t, loaded.HasOverallTimer())
	assert.True(t, loaded.OverallStartedAt.Equal(started))

	require.NoError(t, m.Delete(ctx, 9))
	assert.False(t, mr.Exists("quiz:session:9"))
}

func TestRedisMirrorRejectsCorruptState(t *testing.T) {
	mr, client := newTestRedis(t)
	require.NoError(t, mr.Set("quiz:session:5", "{not json"))

	_, err := NewRedisMirror(client, 0).Load(context.Background(), 5)
	assert.Error(t, err)
}

func TestRemainingSeconds(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, 40, RemainingSeconds(start.Add(30*time.Second), start, 10, 60))
	assert.Equal(t, 60, RemainingSeconds(start, start, 0, 60))
	assert.Equal(t, 0, RemainingSeconds(start.Add(5*time.Minute), start, 0, 60))
	assert.Equal(t, 60, RemainingSeconds(start.Add(5*time.Second), start, 30, 60))
}

func TestStateRemainingCountsOngoingPause(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	pausedAt := start.Add(20 * time.Second)
	st := State{OverallStartedAt: &start, OverallDuration: 60, PausedSeconds: 5, PausedAt: &pausedAt}

	remaining, ok := st.Remaining(start.Add(50 * time.Second))
	require.True(t, ok)
	// elapsed 50s minus 5s folded minus 30s of the current pause
	assert.Equal(t, 45, remaining)

	_, ok = State{}.Remaining(start)
	assert.False(t, ok)
}
