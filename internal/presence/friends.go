package presence

import "github.com/observer/beacon/internal/domain"

// FriendIDs extracts the set of friend identities from a profile. This is the
// single place the relay derives "who should hear about this user" from a
// friend list.
func FriendIDs(profile domain.Profile) map[string]struct{} {
	ids := make(map[string]struct{}, len(profile.Friends))
	for _, f := range profile.Friends {
		if f.FriendID == "" {
			continue
		}
		ids[f.FriendID] = struct{}{}
	}
	return ids
}
