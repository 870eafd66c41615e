package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observer/beacon/internal/domain"
)

func profileWithFriends(id string, friendIDs ...string) domain.Profile {
	friends := make([]domain.Friend, 0, len(friendIDs))
	for _, fid := range friendIDs {
		friends = append(friends, domain.Friend{FriendID: fid})
	}
	return domain.Profile{ID: id, Username: "user-" + id, Friends: friends}
}

// =============================================================================
// Register Tests
// =============================================================================

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1", profileWithFriends("u1", "u2"))

	entry, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "u1", entry.UserID)
	assert.Equal(t, "c1", entry.ConnID)
	assert.Len(t, entry.Profile.Friends, 1)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Register_IdempotentForUser(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1", profileWithFriends("u1"))
	r.Register("u1", "c2", profileWithFriends("u1"))

	// Second register is a no-op: the first connection keeps the identity.
	entry, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "c1", entry.ConnID)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Register_ConnCannotClaimSecondUser(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1", profileWithFriends("u1"))
	r.Register("u2", "c1", profileWithFriends("u2"))

	_, ok := r.Lookup("u2")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Register_NoDuplicateEntries(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		r.Register("u1", fmt.Sprintf("c%d", i), profileWithFriends("u1"))
	}

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "c0", snapshot[0].ConnID)
}

// =============================================================================
// Remove Tests
// =============================================================================

func TestRegistry_RemoveByConn(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1", profileWithFriends("u1", "u2"))

	removed, found := r.RemoveByConn("c1")
	require.True(t, found)
	assert.Equal(t, "u1", removed.UserID)
	assert.Len(t, removed.Profile.Friends, 1)

	_, ok := r.Lookup("u1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_RemoveByConn_NotFound(t *testing.T) {
	r := NewRegistry()
	_, found := r.RemoveByConn("nope")
	assert.False(t, found)
}

func TestRegistry_RemoveByUser(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1", profileWithFriends("u1"))

	removed, found := r.RemoveByUser("u1")
	require.True(t, found)
	assert.Equal(t, "c1", removed.ConnID)

	// Both indices were cleared: the stale connection can no longer remove.
	_, found = r.RemoveByConn("c1")
	assert.False(t, found)
}

func TestRegistry_RemoveByUser_NotFound(t *testing.T) {
	r := NewRegistry()
	_, found := r.RemoveByUser("ghost")
	assert.False(t, found)
}

func TestRegistry_Remove_ExactlyOnce(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1", profileWithFriends("u1"))

	_, first := r.RemoveByUser("u1")
	_, second := r.RemoveByConn("c1")

	assert.True(t, first)
	assert.False(t, second)
}

// =============================================================================
// UpdateFriends Tests
// =============================================================================

func TestRegistry_UpdateFriends(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1", profileWithFriends("u1", "u2"))

	ok := r.UpdateFriends("u1", []domain.Friend{{FriendID: "u3"}, {FriendID: "u4"}})
	require.True(t, ok)

	entry, found := r.Lookup("u1")
	require.True(t, found)
	require.Len(t, entry.Profile.Friends, 2)
	assert.Equal(t, "u3", entry.Profile.Friends[0].FriendID)
}

func TestRegistry_UpdateFriends_NotOnline(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.UpdateFriends("ghost", nil))
}

func TestRegistry_UpdateFriends_CallerSliceNotAliased(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1", profileWithFriends("u1"))

	friends := []domain.Friend{{FriendID: "u2"}}
	r.UpdateFriends("u1", friends)
	friends[0].FriendID = "mutated"

	entry, _ := r.Lookup("u1")
	assert.Equal(t, "u2", entry.Profile.Friends[0].FriendID)
}

// =============================================================================
// Lookup Tests
// =============================================================================

func TestRegistry_LookupByConn(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1", profileWithFriends("u1"))

	entry, ok := r.LookupByConn("c1")
	require.True(t, ok)
	assert.Equal(t, "u1", entry.UserID)

	_, ok = r.LookupByConn("c2")
	assert.False(t, ok)
}

// =============================================================================
// Snapshot / ConnIDsFor Tests
// =============================================================================

func TestRegistry_Snapshot_OrderedAndIsolated(t *testing.T) {
	r := NewRegistry()
	r.Register("u2", "c2", profileWithFriends("u2"))
	r.Register("u1", "c1", profileWithFriends("u1", "u2"))

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "u1", snapshot[0].UserID)
	assert.Equal(t, "u2", snapshot[1].UserID)

	// Mutating the snapshot must not reach the registry.
	snapshot[0].Profile.Friends[0].FriendID = "mutated"
	entry, _ := r.Lookup("u1")
	assert.Equal(t, "u2", entry.Profile.Friends[0].FriendID)
}

func TestRegistry_Snapshot_Empty(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Snapshot())
}

func TestRegistry_ConnIDsFor(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1", profileWithFriends("u1"))
	r.Register("u2", "c2", profileWithFriends("u2"))

	conns := r.ConnIDsFor(map[string]struct{}{
		"u1":      {},
		"u2":      {},
		"offline": {},
	})

	assert.ElementsMatch(t, []string{"c1", "c2"}, conns)
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestRegistry_ConcurrentRegisterRemove(t *testing.T) {
	r := NewRegistry()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", i)
			connID := fmt.Sprintf("c%d", i)
			r.Register(userID, connID, profileWithFriends(userID))
		}(i)
	}
	wg.Wait()
	require.Equal(t, n, r.Len())

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, found := r.RemoveByConn(fmt.Sprintf("c%d", i))
			assert.True(t, found)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentRemoveSameUser_ExactlyOneWins(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "c1", profileWithFriends("u1"))

	var wg sync.WaitGroup
	results := make(chan bool, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, found := r.RemoveByUser("u1")
		results <- found
	}()
	go func() {
		defer wg.Done()
		_, found := r.RemoveByConn("c1")
		results <- found
	}()
	wg.Wait()
	close(results)

	wins := 0
	for found := range results {
		if found {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 0, r.Len())
}
