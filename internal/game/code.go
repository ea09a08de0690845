// internal/game/code.go
package game

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// codeLength is the length of the public game code players type in.
const codeLength = 6

// NewGameCode returns a 6-character uppercase alphanumeric code. Uniqueness
// among active sessions is enforced by the store's create claim, not here.
func NewGameCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate game code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeCharset[int(b)%len(codeCharset)]
	}
	return string(buf), nil
}

// NewGameToken returns the session's opaque credential. It is handed to the
// creator and retained as a capability placeholder; nothing authorizes
// against it yet.
func NewGameToken() string {
	return uuid.NewString()
}
