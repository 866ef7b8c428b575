package session

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("session not found")

// Store keeps live sessions by ID.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	limits   Limits
	seed     uint64
	log      zerolog.Logger
}

// NewStore creates sessions with the given limits. A non-zero seed makes every
// session's sampler deterministic.
func NewStore(limits Limits, seed uint64, log zerolog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		limits:   limits,
		seed:     seed,
		log:      log,
	}
}

func (st *Store) Limits() Limits { return st.limits }

func (st *Store) Create(numQubits int) (*Session, error) {
	s, err := New(numQubits, st.limits, st.seed, st.log)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s, nil
}

func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(st.sessions, id)
	return nil
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
