package runtime

import (
	"chat-notify/contract"
	"chat-notify/domain"
	"sync"

	"github.com/samber/lo"
)

// Registry maps each user to the delivery handles of their live sessions.
// A user may have several sessions at once (devices, tabs).
// State is process-local and starts empty.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]map[domain.SessionID]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.UserID]map[domain.SessionID]contract.EventSink),
	}
}

// Register stores the sink under a fresh session id.
func (r *Registry) Register(userID domain.UserID, sink contract.EventSink) domain.SessionID {
	sessionID := domain.NewSessionID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[userID]; !ok {
		r.sessions[userID] = make(map[domain.SessionID]contract.EventSink)
	}
	r.sessions[userID][sessionID] = sink
	return sessionID
}

// Deregister removes a session and reports whether it was still registered.
// Removing an unknown session is a no-op, so teardown paths may race freely.
// Users without sessions are dropped to keep the map from growing forever.
func (r *Registry) Deregister(userID domain.UserID, sessionID domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userSessions, ok := r.sessions[userID]
	if !ok {
		return false
	}
	if _, ok := userSessions[sessionID]; !ok {
		return false
	}
	delete(userSessions, sessionID)
	if len(userSessions) == 0 {
		delete(r.sessions, userID)
	}
	return true
}

// Lookup returns a point-in-time copy of the user's handles.
// The result is safe to iterate while sessions come and go.
// A user without live sessions yields nil.
func (r *Registry) Lookup(userID domain.UserID) []contract.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userSessions, ok := r.sessions[userID]
	if !ok {
		return nil
	}
	return lo.MapToSlice(userSessions, func(id domain.SessionID, sink contract.EventSink) contract.Handle {
		return contract.Handle{SessionID: id, Sink: sink}
	})
}

func (r *Registry) Stats() contract.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := contract.RegistryStats{Users: len(r.sessions)}
	for _, userSessions := range r.sessions {
		stats.Sessions += len(userSessions)
	}
	return stats
}

// Each calls fn for every live handle. fn runs under the read lock and must
// not call back into the registry.
func (r *Registry) Each(fn func(userID domain.UserID, handle contract.Handle)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for userID, userSessions := range r.sessions {
		for sessionID, sink := range userSessions {
			fn(userID, contract.Handle{SessionID: sessionID, Sink: sink})
		}
	}
}
