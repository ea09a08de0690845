// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/quizwire/quizwire/internal/channel"
	"github.com/quizwire/quizwire/internal/events"
	"github.com/quizwire/quizwire/internal/identity"
	"github.com/quizwire/quizwire/internal/models"
	"github.com/quizwire/quizwire/internal/store"
)

// WSHandler upgrades the HTTP connection to the realtime quiz channel. The
// player identity is resolved once at accept time; the connection then
// speaks the command/event protocol until it closes.
func WSHandler(logger *logrus.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"quiz"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "quiz" {
			c.Close(BadSubprotocolError, "client must speak the quiz subprotocol")
			return
		}

		player := identity.Resolve(r, logger)
		logger.Infof("Player %s (%s) connected from %s", player.ID, player.DisplayName, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := &channel.Conn{
			Player:  player,
			Cancel:  cancel,
			OutChan: make(chan events.Event, 16),
			Log:     logger,
		}

		go writePump(ctx, c, conn, logger)
		readPump(ctx, c, conn, s, logger)

		// A dropped connection leaves the room but stays on the persisted
		// roster, so reconnecting under the same identity resumes the game.
		// Only an explicit leave command prunes the roster.
		s.Rooms.Leave(conn)
		logger.Infof("Player %s read pump exited, connection cleaned up", player.ID)
	}
}

// readPump consumes commands from the client until the connection closes.
// Every inbound message is validated at the boundary; only well-formed
// members of the command set reach the per-command handlers.
func readPump(ctx context.Context, c *websocket.Conn, conn *channel.Conn, s *Server, logger *logrus.Logger) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for player %s", conn.Player.ID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("WebSocket context canceled for player %s", conn.Player.ID)
			} else {
				logger.Warnf("Read error for player %s: %v (CloseStatus: %d)", conn.Player.ID, err, closeStatus)
			}
			return
		}

		if typ != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from player %s. Ignoring.", typ, conn.Player.ID)
			continue
		}

		cmd, err := events.DecodeCommand(data)
		if err != nil {
			logger.Warnf("Rejected command from player %s: %v", conn.Player.ID, err)
			conn.WriteError(events.ReasonInvalidPayload, err.Error())
			continue
		}

		s.handleCommand(ctx, conn, cmd, logger)
	}
}

// handleCommand dispatches one validated command. Failures are reported to
// the sender only; the rest of the room never sees another player's errors.
func (s *Server) handleCommand(ctx context.Context, conn *channel.Conn, cmd events.Command, logger *logrus.Logger) {
	switch cmd.Type {
	case events.CmdJoin:
		s.handleJoin(ctx, conn, cmd.Code)
	case events.CmdLeave:
		s.handleLeave(ctx, conn)
	case events.CmdSendAnswer:
		s.handleSendAnswer(ctx, conn, cmd.Answer)
	case events.CmdAnswerVote:
		s.handleAnswerVote(ctx, conn, cmd.Votes)
	case events.CmdUpdateSettings:
		s.handleUpdateSettings(ctx, conn, *cmd.Settings)
	default:
		// DecodeCommand guarantees this is unreachable.
		logger.Errorf("Command %q passed validation but has no handler", cmd.Type)
		conn.WriteError(events.ReasonInternal, "unhandled command")
	}
}

// handleJoin adds the player to a session's roster and room. Joining a code
// that does not exist is reported privately so codes cannot be probed via
// broadcast side effects.
func (s *Server) handleJoin(ctx context.Context, conn *channel.Conn, code string) {
	exists, err := s.Store.Exists(ctx, code)
	if err != nil {
		s.Log.Errorf("game %s: join existence check failed: %v", code, err)
		conn.WriteError(events.ReasonInternal, "failed to join game")
		return
	}
	if !exists {
		conn.WriteError(events.ReasonGameNotFound, "no game with that code")
		return
	}

	settings, err := s.Store.GetSettings(ctx, code)
	if err != nil {
		s.Log.Errorf("game %s: failed to load settings on join: %v", code, err)
		conn.WriteError(events.ReasonInternal, "failed to join game")
		return
	}
	if err := s.Store.AddPlayer(ctx, code, conn.Player); err != nil {
		s.Log.Errorf("game %s: failed to add player %s: %v", code, conn.Player.ID, err)
		conn.WriteError(events.ReasonInternal, "failed to join game")
		return
	}
	s.Rooms.Join(code, conn)

	conn.Write(events.Joined(code, settings))
	s.broadcastRoster(ctx, code)
	s.Log.Infof("game %s: player %s joined", code, conn.Player.ID)
}

// handleLeave removes the player from both the roster and the room.
func (s *Server) handleLeave(ctx context.Context, conn *channel.Conn) {
	code := s.Rooms.Leave(conn)
	if code == "" {
		conn.WriteError(events.ReasonNotInGame, "not in a game")
		return
	}
	if err := s.Store.RemovePlayer(ctx, code, conn.Player); err != nil {
		s.Log.Warnf("game %s: failed to remove player %s from roster: %v", code, conn.Player.ID, err)
	}
	s.broadcastRoster(ctx, code)
	s.Log.Infof("game %s: player %s left", code, conn.Player.ID)
}

// handleSendAnswer records a submission under the session's current shared
// question index. Repeat submissions append; every one of them is replayed
// during validation.
func (s *Server) handleSendAnswer(ctx context.Context, conn *channel.Conn, answer string) {
	code := s.Rooms.Room(conn)
	if code == "" {
		conn.WriteError(events.ReasonNotInGame, "not in a game")
		return
	}

	idx, err := s.Store.QuestionIndex(ctx, code)
	if err != nil {
		s.Log.Errorf("game %s: failed to read question index: %v", code, err)
		conn.WriteError(events.ReasonInternal, "failed to record answer")
		return
	}
	a := models.Answer{
		PlayerID:    conn.Player.ID,
		Answer:      answer,
		SubmittedAt: time.Now().Unix(),
	}
	if err := s.Store.AppendAnswer(ctx, code, idx, a); err != nil {
		s.Log.Errorf("game %s: failed to append answer: %v", code, err)
		conn.WriteError(events.ReasonInternal, "failed to record answer")
		return
	}

	s.Rooms.Broadcast(code, events.PlayerHasAnswered(conn.Player.ID))
	conn.Write(events.AnswerReceived(answer))
}

// handleAnswerVote applies a vote batch against the answer set most recently
// revealed for validation. Entries that are malformed or name a player with
// no answer in that batch are skipped; the rest still count.
func (s *Server) handleAnswerVote(ctx context.Context, conn *channel.Conn, votes []events.VoteEntry) {
	code := s.Rooms.Room(conn)
	if code == "" {
		conn.WriteError(events.ReasonNotInGame, "not in a game")
		return
	}

	status, err := s.Store.Status(ctx, code)
	if err != nil {
		s.Log.Errorf("game %s: failed to read status for vote: %v", code, err)
		conn.WriteError(events.ReasonInternal, "failed to record votes")
		return
	}
	if status != models.StatusAnswers {
		conn.WriteError(events.ReasonInvalidVotePayload, "voting is not open")
		return
	}

	// The validation index always points one past the batch currently on
	// screen.
	idx, err := s.Store.ValidationIndex(ctx, code)
	if err != nil {
		s.Log.Errorf("game %s: failed to read validation index: %v", code, err)
		conn.WriteError(events.ReasonInternal, "failed to record votes")
		return
	}
	target := idx - 1
	if target < 0 {
		conn.WriteError(events.ReasonInvalidVotePayload, "no answers revealed yet")
		return
	}

	answers, err := s.Store.Answers(ctx, code, target)
	if err != nil {
		s.Log.Errorf("game %s: failed to read answers for vote: %v", code, err)
		conn.WriteError(events.ReasonInternal, "failed to record votes")
		return
	}
	owners := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		owners[a.PlayerID] = struct{}{}
	}

	accepted := 0
	for _, v := range votes {
		if !v.Valid() {
			s.Log.Debugf("game %s: skipping malformed vote entry from %s", code, conn.Player.ID)
			continue
		}
		if _, ok := owners[v.AnswerOwnerID]; !ok {
			s.Log.Debugf("game %s: skipping vote for %s, no answer in batch %d", code, v.AnswerOwnerID, target)
			continue
		}
		if err := s.Store.AppendVote(ctx, code, target, v.AnswerOwnerID, v.Value); err != nil {
			s.Log.Errorf("game %s: failed to append vote: %v", code, err)
			conn.WriteError(events.ReasonInternal, "failed to record votes")
			return
		}
		accepted++
	}

	if accepted == 0 {
		conn.WriteError(events.ReasonInvalidVotePayload, "no valid votes in batch")
		return
	}
	conn.Write(events.VoteReceived())
}

// handleUpdateSettings applies a host-only partial settings update and
// broadcasts the merged result.
func (s *Server) handleUpdateSettings(ctx context.Context, conn *channel.Conn, patch models.SettingsPatch) {
	code := s.Rooms.Room(conn)
	if code == "" {
		conn.WriteError(events.ReasonNotInGame, "not in a game")
		return
	}

	updated, err := s.Store.UpdateSettings(ctx, code, patch, conn.Player.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotHost) {
			conn.WriteError(events.ReasonNotHost, "only the host can change settings")
			return
		}
		s.Log.Errorf("game %s: failed to update settings: %v", code, err)
		conn.WriteError(events.ReasonInternal, "failed to update settings")
		return
	}
	s.Rooms.Broadcast(code, events.GameSettings(updated))
}

// broadcastRoster pushes the current player list to everyone in the room.
func (s *Server) broadcastRoster(ctx context.Context, code string) {
	players, err := s.Store.Players(ctx, code)
	if err != nil {
		s.Log.Warnf("game %s: failed to load roster for broadcast: %v", code, err)
		return
	}
	s.Rooms.Broadcast(code, events.Players(players))
}

// writePump drains the connection's outbound channel onto the wire and
// keeps the connection alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *channel.Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Warnf("Failed to marshal outgoing event %q for player %s: %v", ev.Type, conn.Player.ID, err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Failed to write to websocket for player %s: %v", conn.Player.ID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Failed to ping player %s: %v. Assuming disconnect.", conn.Player.ID, err)
				return
			}
		}
	}
}
