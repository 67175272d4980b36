package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendo/models"
)

func TestTracker_GetOrCreate_NewSender(t *testing.T) {
	tracker := NewTracker(NewMemoryStateStore(), time.Hour)

	state, err := tracker.GetOrCreate(context.Background(), "inst-1", "34600111222")
	require.NoError(t, err)

	assert.Equal(t, models.StageIdle, state.Stage)
	assert.Equal(t, "inst-1", state.InstanceID)
	assert.Equal(t, "34600111222", state.Sender)
	assert.Equal(t, "34600111222", state.CustomerContact)
}

func TestTracker_RoundTrip(t *testing.T) {
	tracker := NewTracker(NewMemoryStateStore(), time.Hour)
	ctx := context.Background()

	state, err := tracker.GetOrCreate(ctx, "inst-1", "34600111222")
	require.NoError(t, err)
	state.Stage = models.StageCollectingInfo
	state.CustomerName = "Ana Torres"
	state.UpdatedAt = time.Now()
	require.NoError(t, tracker.Save(ctx, state))

	got, err := tracker.GetOrCreate(ctx, "inst-1", "34600111222")
	require.NoError(t, err)
	assert.Equal(t, models.StageCollectingInfo, got.Stage)
	assert.Equal(t, "Ana Torres", got.CustomerName)
}

func TestTracker_ExpiredStateResets(t *testing.T) {
	store := NewMemoryStateStore()
	tracker := NewTracker(store, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, models.ConversationState{
		InstanceID:   "inst-1",
		Sender:       "34600111222",
		Stage:        models.StageAwaitingConfirmation,
		CustomerName: "Ana Torres",
		UpdatedAt:    time.Now().Add(-2 * time.Hour),
	}))

	state, err := tracker.GetOrCreate(ctx, "inst-1", "34600111222")
	require.NoError(t, err)
	assert.Equal(t, models.StageIdle, state.Stage)
	assert.Empty(t, state.CustomerName, "a stale conversation starts over")
}

func TestTracker_SendersAreIsolated(t *testing.T) {
	tracker := NewTracker(NewMemoryStateStore(), time.Hour)
	ctx := context.Background()

	a, err := tracker.GetOrCreate(ctx, "inst-1", "alice")
	require.NoError(t, err)
	a.Stage = models.StageCollectingInfo
	require.NoError(t, tracker.Save(ctx, a))

	b, err := tracker.GetOrCreate(ctx, "inst-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.StageIdle, b.Stage)

	other, err := tracker.GetOrCreate(ctx, "inst-2", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StageIdle, other.Stage, "same sender on another instance is a separate conversation")
}
