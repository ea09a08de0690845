// internal/channel/room_manager.go
package channel

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/quizwire/quizwire/internal/events"
	"github.com/quizwire/quizwire/internal/models"
)

// Conn wraps a single live WebSocket connection. The identity is resolved
// once at connect time and does not change for the connection's lifetime.
type Conn struct {
	Player  models.Player
	Cancel  context.CancelFunc // used to kill the read loop if needed
	OutChan chan events.Event
	Log     *logrus.Logger

	// room is the game code this connection currently belongs to, or ""
	// when not in a room. Guarded by the owning RoomManager's mutex.
	room string
}

// Write pushes an event onto the connection's OutChan non-blockingly. A full
// or closed channel drops the event; the write pump owns actual delivery.
func (c *Conn) Write(ev events.Event) {
	select {
	case c.OutChan <- ev:
	default:
		if c.Log != nil {
			c.Log.Warnf("OutChan for player %s full, dropped event %q", c.Player.ID, ev.Type)
		}
	}
}

// WriteError is a convenience to send a sender-only error event.
func (c *Conn) WriteError(reason, message string) {
	c.Write(events.Error(reason, message))
}

// RoomManager tracks which connections belong to which game code. A
// connection belongs to at most one room at a time. Rooms are purely the
// broadcast scope; all durable session state lives in the store.
type RoomManager struct {
	mu    sync.Mutex
	rooms map[string]map[*Conn]struct{}

	// OnEmpty is invoked (outside the lock) when the last connection leaves
	// a room. The session manager hooks abandonment cleanup here.
	OnEmpty func(code string)
}

// NewRoomManager creates an empty RoomManager.
func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]map[*Conn]struct{}),
	}
}

// Join moves a connection into the room for the given code, leaving its
// previous room first if it had one.
func (rm *RoomManager) Join(code string, conn *Conn) {
	rm.mu.Lock()
	var emptied string
	if conn.room != "" && conn.room != code {
		emptied = rm.leaveLocked(conn)
	}
	room, ok := rm.rooms[code]
	if !ok {
		room = make(map[*Conn]struct{})
		rm.rooms[code] = room
	}
	room[conn] = struct{}{}
	conn.room = code
	rm.mu.Unlock()

	if emptied != "" && rm.OnEmpty != nil {
		rm.OnEmpty(emptied)
	}
}

// Leave removes the connection from its room, if any, and returns the code
// it left. Triggers OnEmpty when the room drained.
func (rm *RoomManager) Leave(conn *Conn) string {
	rm.mu.Lock()
	code := conn.room
	emptied := rm.leaveLocked(conn)
	rm.mu.Unlock()

	if emptied != "" && rm.OnEmpty != nil {
		rm.OnEmpty(emptied)
	}
	return code
}

// leaveLocked removes conn from its room and returns the room's code if the
// removal drained it. Assumes the lock is held.
func (rm *RoomManager) leaveLocked(conn *Conn) string {
	code := conn.room
	if code == "" {
		return ""
	}
	conn.room = ""
	room, ok := rm.rooms[code]
	if !ok {
		return ""
	}
	delete(room, conn)
	if len(room) == 0 {
		delete(rm.rooms, code)
		return code
	}
	return ""
}

// Room returns the code of the room the connection is in, or "".
func (rm *RoomManager) Room(conn *Conn) string {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return conn.room
}

// Broadcast sends an event to every connection in the room. Writes are
// non-blocking, so a slow client never stalls a scheduler tick.
func (rm *RoomManager) Broadcast(code string, ev events.Event) {
	rm.mu.Lock()
	conns := make([]*Conn, 0, len(rm.rooms[code]))
	for conn := range rm.rooms[code] {
		conns = append(conns, conn)
	}
	rm.mu.Unlock()

	for _, conn := range conns {
		conn.Write(ev)
	}
}

// Size returns the number of live connections in a room.
func (rm *RoomManager) Size(code string) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.rooms[code])
}
