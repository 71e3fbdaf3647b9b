package session

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrSessionNotFound means no live session has the identifier
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateSession means the identifier is already registered
	ErrDuplicateSession = errors.New("duplicate session")
)

// Registry maps session identifiers to live sessions
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register adds a session. It fails if the identifier is already present.
func (r *Registry) Register(sess *Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("register: session identifier is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID]; exists {
		return fmt.Errorf("register %s: %w", sess.ID, ErrDuplicateSession)
	}
	r.sessions[sess.ID] = sess
	return nil
}

// Lookup returns the live session for id
func (r *Registry) Lookup(id string) (*Session, error) {
	r.mu.RLock()
	sess, exists := r.sessions[id]
	r.mu.RUnlock()

	if !exists {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Remove deletes the session for id. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
}

// RemoveSession deletes sess only while it is the entry registered under its
// identifier, so a session that lost a duplicate registration cannot evict
// the winner.
func (r *Registry) RemoveSession(sess *Session) {
	if sess == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[sess.ID] == sess {
		delete(r.sessions, sess.ID)
	}
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Snapshot returns the live sessions at the time of the call
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}
