package recovery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/GoSwapGuard/swapguard/internal/pkg/logger"
	"github.com/GoSwapGuard/swapguard/internal/repository"
	"github.com/google/uuid"
)

const (
	defaultPendingExpiry = time.Hour
	defaultSweepInterval = 5 * time.Minute
)

// PendingStore persists resumable operations. Implemented by the
// Postgres repo and by MemoryPendingStore.
type PendingStore interface {
	Save(ctx context.Context, op *model.PendingOperation) error
	Get(ctx context.Context, recoveryID string) (*model.PendingOperation, error)
	List(ctx context.Context, limit int) ([]*model.PendingOperation, error)
	UpdateStatus(ctx context.Context, recoveryID string, status model.PendingStatus) error
	Delete(ctx context.Context, recoveryID string) error
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// ConfirmationSource answers whether an operation's external confirmation
// has landed (e.g. the swap transaction is final).
type ConfirmationSource interface {
	Confirmed(ctx context.Context, op *model.PendingOperation) (bool, error)
}

// PendingTracker owns the pending-operation lifecycle: save, recover,
// periodic sweep of expired and completed entries.
type PendingTracker struct {
	store  PendingStore
	source ConfirmationSource
	expiry time.Duration

	sweepInterval time.Duration
	cancel        context.CancelFunc
	done          chan struct{}
}

func NewPendingTracker(store PendingStore, source ConfirmationSource, expiry, sweepInterval time.Duration) *PendingTracker {
	if expiry <= 0 {
		expiry = defaultPendingExpiry
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	return &PendingTracker{
		store:         store,
		source:        source,
		expiry:        expiry,
		sweepInterval: sweepInterval,
	}
}

// SaveOperationState persists the payload under a fresh recovery ID.
func (t *PendingTracker) SaveOperationState(ctx context.Context, payload map[string]string) (string, error) {
	op := &model.PendingOperation{
		RecoveryID: uuid.NewString(),
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
		Status:     model.PendingStatusPending,
	}
	if err := t.store.Save(ctx, op); err != nil {
		return "", err
	}
	return op.RecoveryID, nil
}

// RecoverOperation decides what the caller should do with a previously
// saved operation: complete it, keep polling, retry from scratch, or give
// up because it expired.
func (t *PendingTracker) RecoverOperation(ctx context.Context, recoveryID string) (model.RecoveryAction, *model.PendingOperation, error) {
	op, err := t.store.Get(ctx, recoveryID)
	if err != nil {
		return "", nil, err
	}

	if time.Since(op.CreatedAt) > t.expiry {
		_ = t.store.UpdateStatus(ctx, recoveryID, model.PendingStatusExpired)
		op.Status = model.PendingStatusExpired
		return model.ActionExpired, op, nil
	}

	if t.source == nil {
		return model.ActionRetry, op, nil
	}

	confirmed, err := t.source.Confirmed(ctx, op)
	if err != nil {
		// Confirmation source unreachable: the state is unknown, retry
		// from scratch rather than double-submitting.
		logger.Warn("confirmation source unreachable", "recovery_id", recoveryID, "error", err)
		return model.ActionRetry, op, nil
	}
	if confirmed {
		_ = t.store.UpdateStatus(ctx, recoveryID, model.PendingStatusCompleted)
		op.Status = model.PendingStatusCompleted
		return model.ActionComplete, op, nil
	}
	return model.ActionKeepPolling, op, nil
}

// Complete marks a tracked operation as finished; the sweep will drop it.
func (t *PendingTracker) Complete(ctx context.Context, recoveryID string) error {
	return t.store.UpdateStatus(ctx, recoveryID, model.PendingStatusCompleted)
}

// Pending lists currently tracked operations, newest first.
func (t *PendingTracker) Pending(ctx context.Context, limit int) ([]*model.PendingOperation, error) {
	return t.store.List(ctx, limit)
}

// Start launches the periodic sweep goroutine.
func (t *PendingTracker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.store.Cleanup(ctx, t.expiry); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("pending operation sweep failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the sweep goroutine and waits for it to exit.
func (t *PendingTracker) Stop() {
	if t.cancel != nil {
		t.cancel()
		<-t.done
	}
}

// MemoryPendingStore is the in-process fallback when no database is
// configured. Entries do not survive a restart.
type MemoryPendingStore struct {
	mu  sync.RWMutex
	ops map[string]*model.PendingOperation
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{ops: make(map[string]*model.PendingOperation)}
}

func (s *MemoryPendingStore) Save(ctx context.Context, op *model.PendingOperation) error {
	cp := *op
	s.mu.Lock()
	s.ops[op.RecoveryID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryPendingStore) Get(ctx context.Context, recoveryID string) (*model.PendingOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.ops[recoveryID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *op
	return &cp, nil
}

func (s *MemoryPendingStore) List(ctx context.Context, limit int) ([]*model.PendingOperation, error) {
	s.mu.RLock()
	out := make([]*model.PendingOperation, 0, len(s.ops))
	for _, op := range s.ops {
		cp := *op
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryPendingStore) UpdateStatus(ctx context.Context, recoveryID string, status model.PendingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[recoveryID]
	if !ok {
		return repository.ErrNotFound
	}
	op.Status = status
	return nil
}

func (s *MemoryPendingStore) Delete(ctx context.Context, recoveryID string) error {
	s.mu.Lock()
	delete(s.ops, recoveryID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryPendingStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, op := range s.ops {
		if op.CreatedAt.Before(cutoff) || op.Status == model.PendingStatusCompleted {
			delete(s.ops, id)
		}
	}
	return nil
}
