package storage

import (
	"sort"

	"github.com/chazu/yarnvm/pkg/value"
	"github.com/chazu/yarnvm/vm"
)

var _ vm.VariableStorage = (*MemoryStorage)(nil)

// MemoryStorage keeps variables in a map. It is not safe for concurrent
// use; wrap it in a LockedStorage to share it.
type MemoryStorage struct {
	vars map[string]value.Value
}

// NewMemory creates an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{vars: make(map[string]value.Value)}
}

// Get returns the value of name, or value.Absent if unset.
func (s *MemoryStorage) Get(name string) value.Value {
	return s.vars[name]
}

// Set stores v under name.
func (s *MemoryStorage) Set(name string, v value.Value) {
	s.vars[name] = v
}

// Clear removes every variable.
func (s *MemoryStorage) Clear() {
	clear(s.vars)
}

// Len returns the number of set variables.
func (s *MemoryStorage) Len() int { return len(s.vars) }

// Names returns the set variable names in sorted order.
func (s *MemoryStorage) Names() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of every variable.
func (s *MemoryStorage) Snapshot() map[string]value.Value {
	out := make(map[string]value.Value, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}
