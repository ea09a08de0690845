// internal/game/service.go
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quizwire/quizwire/internal/catalog"
	"github.com/quizwire/quizwire/internal/events"
	"github.com/quizwire/quizwire/internal/models"
	"github.com/quizwire/quizwire/internal/store"
)

// createAttempts bounds code regeneration on collision. Six alphanumeric
// characters give ~2 billion codes, so more than a couple of retries means
// something else is wrong.
const createAttempts = 5

// DefaultSessionTTL is how long an abandoned session's keys linger before
// Redis reclaims them.
const DefaultSessionTTL = 1800 * time.Second

// Service ties the store, catalog, and scheduler registry into the session
// lifecycle operations the HTTP and WS layers call.
type Service struct {
	store     *store.Store
	catalog   catalog.Provider
	registry  *Registry
	broadcast Broadcaster
	log       *logrus.Logger

	// SessionTTL is the expiry applied when a session is abandoned.
	SessionTTL time.Duration
}

// NewService wires the session lifecycle service.
func NewService(st *store.Store, cat catalog.Provider, reg *Registry, b Broadcaster, log *logrus.Logger) *Service {
	return &Service{
		store:      st,
		catalog:    cat,
		registry:   reg,
		broadcast:  b,
		log:        log,
		SessionTTL: DefaultSessionTTL,
	}
}

// Create allocates a new session in the lobby phase and returns its public
// code and opaque token. Code collisions are retried with a fresh code and
// never surface to the caller.
func (s *Service) Create(ctx context.Context, host models.Player) (code, token string, err error) {
	settings := models.DefaultSettings(host)
	for i := 0; i < createAttempts; i++ {
		code, err = NewGameCode()
		if err != nil {
			return "", "", err
		}
		err = s.store.Create(ctx, code, settings)
		if err == nil {
			s.log.Infof("game %s: created by %s", code, host.ID)
			return code, NewGameToken(), nil
		}
		if !errors.Is(err, store.ErrCodeCollision) {
			return "", "", err
		}
		s.log.Warnf("game code collision on %s, regenerating", code)
	}
	return "", "", fmt.Errorf("exhausted %d attempts to allocate a game code: %w", createAttempts, err)
}

// Start moves a lobby into the question phase: announces the transition,
// materializes the shuffled question list, and launches the scheduler.
func (s *Service) Start(ctx context.Context, code string) error {
	settings, err := s.store.GetSettings(ctx, code)
	if err != nil {
		return err
	}

	if err := s.store.SetStatus(ctx, code, models.StatusStarted); err != nil {
		return err
	}
	s.broadcast.Broadcast(code, events.GameStatus(models.StatusStarted))

	questions, err := s.catalog.Fetch(ctx, settings.AmountOfQuestions, settings.Sets)
	if err != nil {
		return fmt.Errorf("failed to fetch questions for %s: %w", code, err)
	}
	if err := s.store.MaterializeQuestions(ctx, code, questions); err != nil {
		return err
	}

	if _, err := s.registry.Start(ctx, code); err != nil {
		return err
	}
	return nil
}

// Delete tears a session down explicitly: scheduler stopped, every
// namespaced key removed.
func (s *Service) Delete(ctx context.Context, code string) error {
	s.registry.Stop(code)
	if err := s.store.Destroy(ctx, code); err != nil {
		return err
	}
	s.log.Infof("game %s: deleted", code)
	return nil
}

// HandleRoomEmpty is hooked into the room manager: when the last connection
// leaves a session that never ran to completion, its keys get a bounded
// lifetime instead of indefinite retention. Finished sessions expire too;
// history beyond the active lifetime is out of scope.
func (s *Service) HandleRoomEmpty(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.ExpireNamespace(ctx, code, s.SessionTTL); err != nil {
		s.log.Warnf("game %s: failed to expire abandoned session: %v", code, err)
		return
	}
	s.log.Infof("game %s: room empty, namespace expires in %s", code, s.SessionTTL)
}
