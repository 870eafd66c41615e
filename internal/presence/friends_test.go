package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/observer/beacon/internal/domain"
)

func TestFriendIDs(t *testing.T) {
	profile := domain.Profile{
		ID: "u1",
		Friends: []domain.Friend{
			{FriendID: "u2", Username: "bob"},
			{FriendID: "u3"},
		},
	}

	ids := FriendIDs(profile)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "u2")
	assert.Contains(t, ids, "u3")
}

func TestFriendIDs_Empty(t *testing.T) {
	assert.Empty(t, FriendIDs(domain.Profile{ID: "u1"}))
}

func TestFriendIDs_SkipsBlankAndDuplicates(t *testing.T) {
	profile := domain.Profile{
		Friends: []domain.Friend{
			{FriendID: ""},
			{FriendID: "u2"},
			{FriendID: "u2"},
		},
	}

	ids := FriendIDs(profile)
	assert.Len(t, ids, 1)
	assert.Contains(t, ids, "u2")
}
