package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ContractLocker serializes ledger and tree mutations per contract. Different
// contracts never contend.
type ContractLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*contractLock
}

type contractLock struct {
	slot chan struct{}
	refs int
}

func NewContractLocker() *ContractLocker {
	return &ContractLocker{locks: make(map[uuid.UUID]*contractLock)}
}

// Lock blocks until the contract's critical section is free or ctx is done.
// The returned function releases it and is safe to call more than once.
func (l *ContractLocker) Lock(ctx context.Context, contractID uuid.UUID) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[contractID]
	if !ok {
		lock = &contractLock{slot: make(chan struct{}, 1)}
		l.locks[contractID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.slot <- struct{}{}:
	case <-ctx.Done():
		l.release(contractID, lock)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lock.slot
			l.release(contractID, lock)
		})
	}, nil
}

func (l *ContractLocker) release(contractID uuid.UUID, lock *contractLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, contractID)
	}
}

func (l *ContractLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// waiters reports how many callers hold or wait for the contract's lock.
func (l *ContractLocker) waiters(contractID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lock, ok := l.locks[contractID]; ok {
		return lock.refs
	}
	return 0
}
