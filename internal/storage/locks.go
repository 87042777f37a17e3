package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"budget/internal/core"
)

// LockKey names one row that a write must hold exclusively. Kinds are ranked
// so that every writer acquires them in the same order.
type LockKey struct {
	rank int
	Kind string
	ID   int64
}

func (k LockKey) String() string { return fmt.Sprintf("%s:%d", k.Kind, k.ID) }

func RecurringLock(id int64) LockKey  { return LockKey{rank: 0, Kind: "recurring", ID: id} }
func InvestmentLock(id int64) LockKey { return LockKey{rank: 1, Kind: "investment", ID: id} }
func DebtLock(id int64) LockKey       { return LockKey{rank: 2, Kind: "debt", ID: id} }
func BudgetLock(id int64) LockKey     { return LockKey{rank: 3, Kind: "budget", ID: id} }
func GoalLock(id int64) LockKey       { return LockKey{rank: 4, Kind: "goal", ID: id} }
func AccountLock(id int64) LockKey    { return LockKey{rank: 5, Kind: "account", ID: id} }

// RowLocks is a set of per-row exclusive locks held for the duration of a
// write transaction. Entries are dropped once nobody holds or waits on them.
type RowLocks struct {
	mu    sync.Mutex
	slots map[LockKey]*lockSlot
}

type lockSlot struct {
	sem  *semaphore.Weighted
	refs int
}

func NewRowLocks() *RowLocks {
	return &RowLocks{slots: make(map[LockKey]*lockSlot)}
}

// Acquire takes every key in canonical order and returns a function that
// releases them. Zero ids and duplicates are ignored. When ctx ends before
// all keys are held, the ones already taken are released and the error is
// core.ErrLockTimeout for deadlines.
func (l *RowLocks) Acquire(ctx context.Context, keys ...LockKey) (func(), error) {
	ordered := canonical(keys)
	held := make([]LockKey, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(held[i])
		}
	}
	for _, k := range ordered {
		slot := l.ref(k)
		if err := slot.sem.Acquire(ctx, 1); err != nil {
			l.unref(k)
			release()
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, core.Detail(core.ErrLockTimeout, "%s", k)
			}
			return nil, err
		}
		held = append(held, k)
	}
	return release, nil
}

func (l *RowLocks) ref(k LockKey) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[k]
	if !ok {
		slot = &lockSlot{sem: semaphore.NewWeighted(1)}
		l.slots[k] = slot
	}
	slot.refs++
	return slot
}

func (l *RowLocks) unref(k LockKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot := l.slots[k]
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, k)
	}
}

func (l *RowLocks) release(k LockKey) {
	l.mu.Lock()
	slot := l.slots[k]
	l.mu.Unlock()
	slot.sem.Release(1)
	l.unref(k)
}

// held reports how many keys currently have holders or waiters.
func (l *RowLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func canonical(keys []LockKey) []LockKey {
	seen := make(map[LockKey]bool, len(keys))
	out := make([]LockKey, 0, len(keys))
	for _, k := range keys {
		if k.ID == 0 || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].rank != out[j].rank {
			return out[i].rank < out[j].rank
		}
		return out[i].ID < out[j].ID
	})
	return out
}
