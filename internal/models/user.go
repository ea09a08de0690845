package models

import "github.com/google/uuid"

// User is a registered account backing an authenticated player identity.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	Username  string    `json:"username"`
	AvatarURL *string   `json:"avatar_url"`
}

// Player converts a user row into its roster representation.
func (u *User) Player() Player {
	return Player{
		ID:          u.ID.String(),
		DisplayName: u.Username,
		AvatarURL:   u.AvatarURL,
	}
}
