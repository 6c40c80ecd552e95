package dialogue

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/yarnvm/pkg/bytecode"
	"github.com/chazu/yarnvm/storage"
	"github.com/chazu/yarnvm/vm"
)

// ErrSessionNotFound is returned for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

// Session is one dialogue run by a SessionStore, with its own VM and
// visit counters and a worker goroutine serializing access to it.
type Session struct {
	ID      string
	Name    string
	Created time.Time

	*Worker
	dialogue *Dialogue
}

// Dialogue returns the session's dialogue. Only touch it from inside
// Worker.Do.
func (s *Session) Dialogue() *Dialogue { return s.dialogue }

// SessionStore runs many dialogues of one program against one shared
// variable storage.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	program *bytecode.Program
	shared  *storage.LockedStorage
	opts    []Option
}

// NewSessionStore validates program and wraps shared so sessions on
// different goroutines can use it. opts apply to every session.
func NewSessionStore(program *bytecode.Program, shared vm.VariableStorage, opts ...Option) (*SessionStore, error) {
	if err := program.Validate(); err != nil {
		return nil, err
	}
	locked, ok := shared.(*storage.LockedStorage)
	if !ok {
		locked = storage.NewLocked(shared)
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		program:  program,
		shared:   locked,
		opts:     opts,
	}, nil
}

// Storage returns the shared, locked storage.
func (s *SessionStore) Storage() *storage.LockedStorage { return s.shared }

// Create starts a new session with an optional name. The session is
// loaded but not started.
func (s *SessionStore) Create(name string) (*Session, error) {
	d := New(s.shared, s.opts...)
	if err := d.Load(s.program); err != nil {
		return nil, err
	}
	session := &Session{
		ID:       uuid.NewString(),
		Name:     name,
		Created:  time.Now(),
		Worker:   NewWorker(d),
		dialogue: d,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	return session, ok
}

// List returns every session, oldest first.
func (s *SessionStore) List() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// Len returns the number of sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Destroy stops and removes a session.
func (s *SessionStore) Destroy(id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.Worker.Stop()
	return nil
}

// Close destroys every session.
func (s *SessionStore) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Worker.Stop()
	}
}
