// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/quizwire/quizwire/internal/game"
	"github.com/quizwire/quizwire/internal/identity"
	"github.com/quizwire/quizwire/internal/store"
)

// GamesHandler routes the /games REST surface:
//
//	POST   /games/init           create a session, caller becomes host
//	POST   /games/{code}/start   launch the question phase
//	DELETE /games/{code}         tear the session down
func (s *Server) GamesHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/games/")

	if path == "init" && r.Method == http.MethodPost {
		s.handleInitGame(w, r)
		return
	}

	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 2 && parts[1] == "start" && r.Method == http.MethodPost:
		s.handleStartGame(w, r, parts[0])
	case len(parts) == 1 && parts[0] != "" && r.Method == http.MethodDelete:
		s.handleDeleteGame(w, r, parts[0])
	default:
		http.Error(w, "unsupported route", http.StatusNotFound)
	}
}

// handleInitGame creates a fresh session in the lobby phase. The caller's
// resolved identity is captured as the immutable host.
func (s *Server) handleInitGame(w http.ResponseWriter, r *http.Request) {
	host := identity.Resolve(r, s.Log)

	code, token, err := s.Service.Create(r.Context(), host)
	if err != nil {
		s.Log.Errorf("failed to create game: %v", err)
		http.Error(w, "failed to create game", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"gameCode":  code,
		"gameToken": token,
	})
}

// handleStartGame moves a lobby into the question phase.
func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request, code string) {
	err := s.Service.Start(r.Context(), code)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "game not found", http.StatusNotFound)
	case errors.Is(err, store.ErrBadTransition), errors.Is(err, game.ErrAlreadyRunning):
		http.Error(w, "game already started", http.StatusConflict)
	default:
		s.Log.Errorf("game %s: failed to start: %v", code, err)
		http.Error(w, "failed to start game", http.StatusInternalServerError)
	}
}

// handleDeleteGame removes a session and all of its state.
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request, code string) {
	exists, err := s.Store.Exists(r.Context(), code)
	if err != nil {
		s.Log.Errorf("game %s: existence check failed on delete: %v", code, err)
		http.Error(w, "failed to delete game", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	if err := s.Service.Delete(r.Context(), code); err != nil {
		s.Log.Errorf("game %s: failed to delete: %v", code, err)
		http.Error(w, "failed to delete game", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthzHandler reports process liveness.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
