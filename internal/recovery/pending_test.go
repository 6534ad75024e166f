package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource is a ConfirmationSource with a fixed answer.
type stubSource struct {
	confirmed bool
	err       error
}

func (s stubSource) Confirmed(ctx context.Context, op *model.PendingOperation) (bool, error) {
	return s.confirmed, s.err
}

func testPayload() map[string]string {
	return map[string]string{
		"from_token": "USDC",
		"to_token":   "WETH",
		"amount":     "150.25",
	}
}

func TestSaveAndRecoverKeepPolling(t *testing.T) {
	store := NewMemoryPendingStore()
	tracker := NewPendingTracker(store, stubSource{confirmed: false}, time.Hour, time.Minute)
	ctx := context.Background()

	id, err := tracker.SaveOperationState(ctx, testPayload())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	action, op, err := tracker.RecoverOperation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ActionKeepPolling, action)
	assert.Equal(t, model.PendingStatusPending, op.Status)
	assert.Equal(t, "USDC", op.Payload["from_token"])
}

func TestRecoverConfirmedCompletes(t *testing.T) {
	store := NewMemoryPendingStore()
	tracker := NewPendingTracker(store, stubSource{confirmed: true}, time.Hour, time.Minute)
	ctx := context.Background()

	id, err := tracker.SaveOperationState(ctx, testPayload())
	require.NoError(t, err)

	action, op, err := tracker.RecoverOperation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ActionComplete, action)
	assert.Equal(t, model.PendingStatusCompleted, op.Status)

	stored, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PendingStatusCompleted, stored.Status)
}

func TestRecoverExpiredOperation(t *testing.T) {
	store := NewMemoryPendingStore()
	tracker := NewPendingTracker(store, stubSource{confirmed: true}, time.Hour, time.Minute)
	ctx := context.Background()

	op := &model.PendingOperation{
		RecoveryID: "stale-op",
		Payload:    testPayload(),
		CreatedAt:  time.Now().UTC().Add(-2 * time.Hour),
		Status:     model.PendingStatusPending,
	}
	require.NoError(t, store.Save(ctx, op))

	action, got, err := tracker.RecoverOperation(ctx, "stale-op")
	require.NoError(t, err)
	assert.Equal(t, model.ActionExpired, action)
	assert.Equal(t, model.PendingStatusExpired, got.Status)
}

func TestRecoverUnknownID(t *testing.T) {
	tracker := NewPendingTracker(NewMemoryPendingStore(), nil, time.Hour, time.Minute)

	_, _, err := tracker.RecoverOperation(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecoverWithoutConfirmationSource(t *testing.T) {
	tracker := NewPendingTracker(NewMemoryPendingStore(), nil, time.Hour, time.Minute)
	ctx := context.Background()

	id, err := tracker.SaveOperationState(ctx, testPayload())
	require.NoError(t, err)

	action, _, err := tracker.RecoverOperation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ActionRetry, action)
}

func TestRecoverSourceErrorAdvisesRetry(t *testing.T) {
	src := stubSource{err: errors.New("rpc unavailable")}
	tracker := NewPendingTracker(NewMemoryPendingStore(), src, time.Hour, time.Minute)
	ctx := context.Background()

	id, err := tracker.SaveOperationState(ctx, testPayload())
	require.NoError(t, err)

	action, _, err := tracker.RecoverOperation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ActionRetry, action)
}

func TestPendingListsNewestFirst(t *testing.T) {
	store := NewMemoryPendingStore()
	tracker := NewPendingTracker(store, nil, time.Hour, time.Minute)
	ctx := context.Background()

	older := &model.PendingOperation{
		RecoveryID: "older",
		CreatedAt:  time.Now().UTC().Add(-10 * time.Minute),
		Status:     model.PendingStatusPending,
	}
	newer := &model.PendingOperation{
		RecoveryID: "newer",
		CreatedAt:  time.Now().UTC(),
		Status:     model.PendingStatusPending,
	}
	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))

	ops, err := tracker.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "newer", ops[0].RecoveryID)

	ops, err = tracker.Pending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestCleanupDropsExpiredAndCompleted(t *testing.T) {
	store := NewMemoryPendingStore()
	ctx := context.Background()

	entries := []*model.PendingOperation{
		{RecoveryID: "expired", CreatedAt: time.Now().UTC().Add(-2 * time.Hour), Status: model.PendingStatusPending},
		{RecoveryID: "done", CreatedAt: time.Now().UTC(), Status: model.PendingStatusCompleted},
		{RecoveryID: "live", CreatedAt: time.Now().UTC(), Status: model.PendingStatusPending},
	}
	for _, op := range entries {
		require.NoError(t, store.Save(ctx, op))
	}

	require.NoError(t, store.Cleanup(ctx, time.Hour))

	_, err := store.Get(ctx, "expired")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.Get(ctx, "done")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.Get(ctx, "live")
	assert.NoError(t, err)
}

func TestCompleteMarksOperation(t *testing.T) {
	store := NewMemoryPendingStore()
	tracker := NewPendingTracker(store, nil, time.Hour, time.Minute)
	ctx := context.Background()

	id, err := tracker.SaveOperationState(ctx, testPayload())
	require.NoError(t, err)
	require.NoError(t, tracker.Complete(ctx, id))

	op, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PendingStatusCompleted, op.Status)
}

func TestTrackerSweepRemovesStaleEntries(t *testing.T) {
	store := NewMemoryPendingStore()
	tracker := NewPendingTracker(store, nil, time.Hour, 20*time.Millisecond)
	ctx := context.Background()

	stale := &model.PendingOperation{
		RecoveryID: "stale",
		CreatedAt:  time.Now().UTC().Add(-2 * time.Hour),
		Status:     model.PendingStatusPending,
	}
	require.NoError(t, store.Save(ctx, stale))

	tracker.Start()
	defer tracker.Stop()

	deadline := time.After(2 * time.Second)
	for {
		if _, err := store.Get(ctx, "stale"); errors.Is(err, repository.ErrNotFound) {
			return
		}
		select {
		case <-deadline:
			t.Fatal("sweep did not remove the stale entry")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
