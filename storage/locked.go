package storage

import (
	"sync"

	"github.com/chazu/yarnvm/pkg/value"
	"github.com/chazu/yarnvm/vm"
)

var _ vm.VariableStorage = (*LockedStorage)(nil)

// LockedStorage serializes access to another storage so several VMs
// running on different goroutines can share it.
type LockedStorage struct {
	mu    sync.Mutex
	inner vm.VariableStorage
}

// NewLocked wraps inner. All access to inner must go through the wrapper.
func NewLocked(inner vm.VariableStorage) *LockedStorage {
	return &LockedStorage{inner: inner}
}

func (s *LockedStorage) Get(name string) value.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Get(name)
}

func (s *LockedStorage) Set(name string, v value.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.Set(name, v)
}

func (s *LockedStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.Clear()
}

// Update runs fn with exclusive access to the wrapped storage, so a
// read-modify-write sequence is atomic with respect to other users.
func (s *LockedStorage) Update(fn func(vm.VariableStorage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.inner)
}

// Unwrap returns the wrapped storage.
func (s *LockedStorage) Unwrap() vm.VariableStorage { return s.inner }
