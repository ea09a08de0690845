// internal/handlers/game_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/quizwire/quizwire/internal/channel"
	"github.com/quizwire/quizwire/internal/game"
	"github.com/quizwire/quizwire/internal/models"
	"github.com/quizwire/quizwire/internal/store"
)

// stubCatalog feeds a fixed question list so handler tests need no database.
type stubCatalog struct{}

func (stubCatalog) Fetch(ctx context.Context, amount int, sets []string) ([]models.Question, error) {
	ref := "ref"
	qs := make([]models.Question, 0, amount)
	for i := 0; i < amount; i++ {
		qs = append(qs, models.Question{ID: "q", Question: "what?", Answer: &ref})
	}
	return qs, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	st := store.New(rdb)
	rooms := channel.NewRoomManager()
	registry := game.NewRegistryWithClock(context.Background(), st, rooms, logger, clockwork.NewFakeClock())
	t.Cleanup(registry.StopAll)
	service := game.NewService(st, stubCatalog{}, registry, rooms, logger)
	rooms.OnEmpty = service.HandleRoomEmpty

	return NewServer(st, service, rooms, logger)
}

// TestInitGame checks that POST /games/init allocates a session with the
// caller as host.
func TestInitGame(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/games/init", nil)
	w := httptest.NewRecorder()
	s.GamesHandler(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 Created, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		GameCode  string `json:"gameCode"`
		GameToken string `json:"gameToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.GameCode) != 6 {
		t.Fatalf("expected a 6 character game code, got %q", resp.GameCode)
	}
	if resp.GameToken == "" {
		t.Fatal("expected a game token")
	}

	exists, err := s.Store.Exists(context.Background(), resp.GameCode)
	if err != nil || !exists {
		t.Fatalf("expected session %s to exist (err=%v)", resp.GameCode, err)
	}
}

func initGame(t *testing.T, s *Server) string {
	t.Helper()
	req := httptest.NewRequest("POST", "/games/init", nil)
	w := httptest.NewRecorder()
	s.GamesHandler(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("init failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		GameCode string `json:"gameCode"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode init response: %v", err)
	}
	return resp.GameCode
}

// TestStartGame walks the lobby through the start transition and verifies a
// second start is rejected.
func TestStartGame(t *testing.T) {
	s := newTestServer(t)
	code := initGame(t, s)

	req := httptest.NewRequest("POST", "/games/"+code+"/start", nil)
	w := httptest.NewRecorder()
	s.GamesHandler(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	status, err := s.Store.Status(context.Background(), code)
	if err != nil {
		t.Fatalf("failed to read status: %v", err)
	}
	if status != models.StatusStarted {
		t.Fatalf("expected status started, got %s", status)
	}

	count, err := s.Store.QuestionCount(context.Background(), code)
	if err != nil {
		t.Fatalf("failed to count questions: %v", err)
	}
	if count != 10 {
		t.Fatalf("expected the default 10 questions materialized, got %d", count)
	}

	// Starting again must conflict, not double-schedule.
	w = httptest.NewRecorder()
	s.GamesHandler(w, httptest.NewRequest("POST", "/games/"+code+"/start", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second start, got %d", w.Code)
	}
}

func TestStartUnknownGame(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.GamesHandler(w, httptest.NewRequest("POST", "/games/NOPE42/start", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDeleteGame(t *testing.T) {
	s := newTestServer(t)
	code := initGame(t, s)

	w := httptest.NewRecorder()
	s.GamesHandler(w, httptest.NewRequest("DELETE", "/games/"+code, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	exists, err := s.Store.Exists(context.Background(), code)
	if err != nil {
		t.Fatalf("existence check failed: %v", err)
	}
	if exists {
		t.Fatal("expected session to be gone after delete")
	}

	w = httptest.NewRecorder()
	s.GamesHandler(w, httptest.NewRequest("DELETE", "/games/"+code, nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting a missing game, got %d", w.Code)
	}
}

func TestGamesHandlerUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.GamesHandler(w, httptest.NewRequest("GET", "/games/ABC123/scores", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	HealthzHandler(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Fatalf("expected body ok, got %q", w.Body.String())
	}
}
