package models

// Player is one roster entry in a session: either an authenticated user or a
// guest identity generated for a single connection.
type Player struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
}

// Answer is one free-text submission for a question index. Duplicate
// submissions by the same player are retained as-is.
type Answer struct {
	PlayerID    string `json:"playerId"`
	Answer      string `json:"answer"`
	SubmittedAt int64  `json:"submittedAt"`
}
