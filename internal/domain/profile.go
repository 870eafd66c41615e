package domain

// Friend is one edge of a user's social graph as pushed by the client.
// The main application owns the authoritative friend list; the relay only
// ever sees the copy embedded in a profile.
type Friend struct {
	FriendID string `json:"friend_id"`
	Username string `json:"username,omitempty"`
}

// Profile is the social metadata a client pushes when it joins.
// It may be stale relative to the database; the relay refreshes it only on
// an explicit friends-refresh event.
type Profile struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name,omitempty"`
	AvatarURL   string   `json:"avatar_url,omitempty"`
	Friends     []Friend `json:"friends"`
}

// Clone returns a copy whose Friends slice does not alias the receiver's.
func (p Profile) Clone() Profile {
	out := p
	if p.Friends != nil {
		out.Friends = make([]Friend, len(p.Friends))
		copy(out.Friends, p.Friends)
	}
	return out
}
