package conversation

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/edgard/medtechbot/internal/domain"
)

// ErrNoState is returned by a Store when the user has no active conversation.
var ErrNoState = errors.New("conversation: no state for user")

// State is the per-user conversation state. A user without stored state is idle
// at the main menu.
type State struct {
	Flow      domain.FlowKind         `json:"flow"`
	Step      StepID                  `json:"step"`
	Fields    map[domain.Field]string `json:"fields"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Idle returns the state of a user with no active flow.
func Idle() *State {
	return &State{Flow: domain.FlowNone, Step: StepMainMenu}
}

// IsIdle reports whether no flow is active.
func (s *State) IsIdle() bool {
	return s == nil || s.Flow == domain.FlowNone
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Fields = maps.Clone(s.Fields)
	return &c
}

// Store persists conversation state keyed by user id. Implementations must be
// safe for concurrent use; callers serialize access per user.
type Store interface {
	// Load returns ErrNoState when the user is idle.
	Load(ctx context.Context, userID int64) (*State, error)
	Save(ctx context.Context, userID int64, state *State) error
	// Delete returns the user to idle. Deleting an idle user is not an error.
	Delete(ctx context.Context, userID int64) error
}

// MemoryStore keeps conversation state in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[int64]*State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[int64]*State)}
}

// Load returns a copy of the stored state so callers cannot mutate the store by pointer.
func (m *MemoryStore) Load(_ context.Context, userID int64) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.data[userID]
	if !ok {
		return nil, ErrNoState
	}
	return state.Clone(), nil
}

// Save stores a copy of state.
func (m *MemoryStore) Save(_ context.Context, userID int64, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[userID] = state.Clone()
	return nil
}

// Delete removes the user's state.
func (m *MemoryStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, userID)
	return nil
}

// Len returns the number of users with an active conversation.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
