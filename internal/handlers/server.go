// internal/handlers/server.go
package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/quizwire/quizwire/internal/channel"
	"github.com/quizwire/quizwire/internal/game"
	"github.com/quizwire/quizwire/internal/store"
)

// Server bundles the shared state every handler needs: the session store,
// the lifecycle service, and the room manager for realtime broadcasts.
type Server struct {
	Store   *store.Store
	Service *game.Service
	Rooms   *channel.RoomManager
	Log     *logrus.Logger
}

func NewServer(st *store.Store, svc *game.Service, rooms *channel.RoomManager, log *logrus.Logger) *Server {
	return &Server{
		Store:   st,
		Service: svc,
		Rooms:   rooms,
		Log:     log,
	}
}
