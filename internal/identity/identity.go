// internal/identity/identity.go
package identity

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/quizwire/quizwire/internal/auth"
	"github.com/quizwire/quizwire/internal/database"
	"github.com/quizwire/quizwire/internal/models"
)

// Resolve maps an incoming request to the player identity it will act as
// for the lifetime of the connection. A valid auth_token cookie resolves to
// the registered account; anything else (no cookie, bad token, unknown
// user) falls back to a fresh guest identity rather than rejecting the
// connection, since sessions are open to anonymous players.
func Resolve(r *http.Request, log *logrus.Logger) models.Player {
	cookie, err := r.Cookie("auth_token")
	if err != nil || cookie.Value == "" {
		return Guest()
	}

	userID, err := auth.AuthenticateJWT(cookie.Value)
	if err != nil {
		log.Debugf("auth token rejected, continuing as guest: %v", err)
		return Guest()
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		log.Debugf("auth token carried a malformed user id, continuing as guest: %v", err)
		return Guest()
	}

	user, err := database.GetUserByID(r.Context(), id)
	if err != nil {
		log.Debugf("user %s not found, continuing as guest: %v", id, err)
		return Guest()
	}
	return user.Player()
}

// Guest mints an anonymous identity. The id is unique per call, so each
// connection without credentials is its own player.
func Guest() models.Player {
	id := uuid.NewString()
	return models.Player{
		ID:          "guest_" + id,
		DisplayName: "Guest " + strings.ToUpper(id[:8]),
	}
}
