// internal/game/registry.go
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/quizwire/quizwire/internal/models"
	"github.com/quizwire/quizwire/internal/store"
)

// ErrAlreadyRunning means a scheduler is already active for the session.
// Exactly one scheduler may drive a given code at a time; a second start is
// a programming error surfaced here instead of a double-ticking session.
var ErrAlreadyRunning = errors.New("scheduler already running for this game")

// Registry owns every running scheduler, keyed by game code. It replaces
// process-global timer state with an explicit object whose entries each
// carry their own start/stop lifecycle.
type Registry struct {
	// baseCtx bounds every scheduler's run loop. It is the process lifetime
	// context, never a request context: a game must keep ticking long after
	// the HTTP request that started it has completed.
	baseCtx context.Context

	store     *store.Store
	broadcast Broadcaster
	clock     clockwork.Clock
	log       *logrus.Logger

	mu      sync.Mutex
	running map[string]*Scheduler
}

// NewRegistry creates a Registry using the real clock. ctx bounds the run
// loops of every scheduler the registry starts.
func NewRegistry(ctx context.Context, st *store.Store, b Broadcaster, log *logrus.Logger) *Registry {
	return NewRegistryWithClock(ctx, st, b, log, clockwork.NewRealClock())
}

// NewRegistryWithClock creates a Registry with an injected clock, so tests
// can drive ticks from a fake clock.
func NewRegistryWithClock(ctx context.Context, st *store.Store, b Broadcaster, log *logrus.Logger, clock clockwork.Clock) *Registry {
	return &Registry{
		baseCtx:   ctx,
		store:     st,
		broadcast: b,
		clock:     clock,
		log:       log,
		running:   make(map[string]*Scheduler),
	}
}

// Start launches the scheduler for a session and returns its stop handle.
// The session must already be in the started or answers phase; the phase is
// read back from the store so a restart resumes where the persisted
// counters left off. ctx covers only the setup reads here; the run loop
// itself lives on the registry's base context.
func (r *Registry) Start(ctx context.Context, code string) (*Scheduler, error) {
	settings, err := r.store.GetSettings(ctx, code)
	if err != nil {
		return nil, err
	}
	status, err := r.store.Status(ctx, code)
	if err != nil {
		return nil, err
	}

	var ph phase
	switch status {
	case models.StatusStarted:
		ph = phaseQuestion
	case models.StatusAnswers:
		ph = phaseValidation
	default:
		return nil, fmt.Errorf("cannot schedule game %s in status %q", code, status)
	}

	interval := time.Duration(settings.TimePerQuestion) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	r.mu.Lock()
	if _, exists := r.running[code]; exists {
		r.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	s := newScheduler(code, interval, ph, r.store, r.broadcast, r.clock, r.log, func() {
		r.remove(code)
	})
	r.running[code] = s
	r.mu.Unlock()

	go s.run(r.baseCtx)
	r.log.Infof("game %s: scheduler started (interval %s, status %s)", code, interval, status)
	return s, nil
}

func (r *Registry) remove(code string) {
	r.mu.Lock()
	delete(r.running, code)
	r.mu.Unlock()
}

// Stop halts the scheduler for a session if one is running.
func (r *Registry) Stop(code string) bool {
	r.mu.Lock()
	s, ok := r.running[code]
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Stop()
	return true
}

// Running reports whether a scheduler is active for the session.
func (r *Registry) Running(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[code]
	return ok
}

// StopAll halts every running scheduler. Called on process shutdown so no
// timers are orphaned.
func (r *Registry) StopAll() {
	r.mu.Lock()
	schedulers := make([]*Scheduler, 0, len(r.running))
	for _, s := range r.running {
		schedulers = append(schedulers, s)
	}
	r.mu.Unlock()

	for _, s := range schedulers {
		s.Stop()
	}
}
