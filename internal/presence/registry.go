// Package presence holds the in-memory directory of currently connected
// users. The registry is the only shared mutable state in the relay; every
// other component either reads copies out of it or feeds mutations into it.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/observer/beacon/internal/domain"
)

// OnlineUser is one entry in the directory: a user identity bound to the
// connection currently representing it, plus the social metadata the client
// pushed on join.
type OnlineUser struct {
	UserID      string         `json:"user_id"`
	ConnID      string         `json:"conn_id"`
	Profile     domain.Profile `json:"profile"`
	ConnectedAt time.Time      `json:"connected_at"`
}

func (u OnlineUser) clone() OnlineUser {
	out := u
	out.Profile = u.Profile.Clone()
	return out
}

// Registry maps online users by both user ID and connection ID. The two
// indices point at the same entries and are mutated only inside the same
// critical section, so they can never disagree.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*OnlineUser
	byConn map[string]*OnlineUser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*OnlineUser),
		byConn: make(map[string]*OnlineUser),
	}
}

// Register adds a user to the directory. If the user is already present the
// call is a no-op and the existing entry, including its connection, is kept;
// a reconnecting or double-firing client must not displace the first
// connection's identity. A connection that already owns an entry cannot claim
// a second user either.
func (r *Registry) Register(userID, connID string, profile domain.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUser[userID]; ok {
		return
	}
	if _, ok := r.byConn[connID]; ok {
		return
	}

	entry := &OnlineUser{
		UserID:      userID,
		ConnID:      connID,
		Profile:     profile.Clone(),
		ConnectedAt: time.Now(),
	}
	r.byUser[userID] = entry
	r.byConn[connID] = entry
}

// RemoveByConn deletes the entry owned by the given connection. Used on
// transport disconnect.
func (r *Registry) RemoveByConn(connID string) (OnlineUser, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byConn[connID]
	if !ok {
		return OnlineUser{}, false
	}
	delete(r.byConn, connID)
	delete(r.byUser, entry.UserID)
	return entry.clone(), true
}

// RemoveByUser deletes the entry for the given user. Used on explicit logout,
// which must work even while a stale connection lingers.
func (r *Registry) RemoveByUser(userID string) (OnlineUser, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byUser[userID]
	if !ok {
		return OnlineUser{}, false
	}
	delete(r.byUser, userID)
	delete(r.byConn, entry.ConnID)
	return entry.clone(), true
}

// UpdateFriends replaces the friend list on the user's entry in place.
// Returns false if the user is not online.
func (r *Registry) UpdateFriends(userID string, friends []domain.Friend) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byUser[userID]
	if !ok {
		return false
	}
	entry.Profile.Friends = make([]domain.Friend, len(friends))
	copy(entry.Profile.Friends, friends)
	return true
}

// LookupByConn returns a copy of the entry owned by the given connection.
func (r *Registry) LookupByConn(connID string) (OnlineUser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byConn[connID]
	if !ok {
		return OnlineUser{}, false
	}
	return entry.clone(), true
}

// Lookup returns a copy of the entry for the given user.
func (r *Registry) Lookup(userID string) (OnlineUser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byUser[userID]
	if !ok {
		return OnlineUser{}, false
	}
	return entry.clone(), true
}

// Snapshot returns a copy of the whole directory, ordered by user ID.
// Callers own the result; later registry mutations do not show through.
func (r *Registry) Snapshot() []OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]OnlineUser, 0, len(r.byUser))
	for _, entry := range r.byUser {
		out = append(out, entry.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// ConnIDsFor resolves a set of user IDs to the connection IDs of those
// currently online. Offline identities are silently omitted.
func (r *Registry) ConnIDsFor(userIDs map[string]struct{}) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]string, 0, len(userIDs))
	for userID := range userIDs {
		if entry, ok := r.byUser[userID]; ok {
			conns = append(conns, entry.ConnID)
		}
	}
	return conns
}

// Len returns the number of users currently online.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
