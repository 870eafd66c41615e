package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/observer/beacon/internal/domain"
)

// UserRepository reads profiles and friend edges from the main application's
// tables.
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetProfile loads a user's profile including their friend list.
func (r *UserRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	profile := &domain.Profile{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, username, COALESCE(display_name, ''), COALESCE(avatar_url, '')
		FROM users WHERE id = $1
	`, userID).Scan(&profile.ID, &profile.Username, &profile.DisplayName, &profile.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	friends, err := r.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.Friends = friends
	return profile, nil
}

// ListFriends returns the user's friend edges.
func (r *UserRepository) ListFriends(ctx context.Context, userID string) ([]domain.Friend, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT f.friend_id, COALESCE(u.username, '')
		FROM friendships f
		LEFT JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1
		ORDER BY u.username
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []domain.Friend
	for rows.Next() {
		var f domain.Friend
		if err := rows.Scan(&f.FriendID, &f.Username); err != nil {
			return nil, err
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}
