// internal/game/scheduler.go
package game

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/quizwire/quizwire/internal/events"
	"github.com/quizwire/quizwire/internal/models"
	"github.com/quizwire/quizwire/internal/store"
)

// Broadcaster pushes an event to every connection in a session's room. The
// channel's RoomManager satisfies this; tests plug in a recorder.
type Broadcaster interface {
	Broadcast(code string, ev events.Event)
}

// phase selects which tick body runs. A scheduler starts in the question
// phase and flips to validation once the materialized list is exhausted; a
// scheduler started against a session already in the answers phase resumes
// directly in validation.
type phase int

const (
	phaseQuestion phase = iota
	phaseValidation
)

// Scheduler drives one session through its timed phases. All progress lives
// in the store (the two shared counters), so a scheduler restarted after a
// crash continues from the persisted indexes; the in-flight question may be
// delivered twice, never skipped.
type Scheduler struct {
	code     string
	interval time.Duration

	store     *store.Store
	broadcast Broadcaster
	clock     clockwork.Clock
	log       *logrus.Logger

	// onDone lets the registry drop its entry when the run ends for any
	// reason (completion, fault, or explicit stop).
	onDone func()

	phase phase

	// ticking guards against overlapping ticks: the ticker fires on a fixed
	// wall-clock cadence, so a tick whose store I/O overruns the interval
	// must suppress the next fire rather than run concurrently with it.
	ticking atomic.Bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newScheduler(code string, interval time.Duration, ph phase, st *store.Store, b Broadcaster, clock clockwork.Clock, log *logrus.Logger, onDone func()) *Scheduler {
	return &Scheduler{
		code:      code,
		interval:  interval,
		store:     st,
		broadcast: b,
		clock:     clock,
		log:       log,
		onDone:    onDone,
		phase:     ph,
		stopCh:    make(chan struct{}),
	}
}

// Stop terminates the run loop. Safe to call multiple times and from any
// goroutine; it is invoked on natural completion, session deletion, and
// process shutdown.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.onDone != nil {
			s.onDone()
		}
	})
}

// run is the scheduler's event loop. The first tick fires immediately so
// players see question one without waiting a full interval.
func (s *Scheduler) run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.safeTick(ctx)
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.Stop()
			return
		case <-ticker.Chan():
			s.safeTick(ctx)
		}
	}
}

// safeTick runs one tick body with the reentrancy guard and fault barrier.
// A store error aborts the tick and is retried by the next fire, bounding
// staleness to one interval. A panic is terminal: the timer stops and the
// room gets a gameStatus error instead of a silently stalled session.
func (s *Scheduler) safeTick(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.log.Warnf("game %s: tick overran its interval, skipping this fire", s.code)
		return
	}
	defer s.ticking.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("game %s: scheduler fault: %v", s.code, r)
			s.fail(ctx)
		}
	}()

	var err error
	switch s.phase {
	case phaseQuestion:
		err = s.questionTick(ctx)
	case phaseValidation:
		err = s.validationTick(ctx)
	}
	if err != nil {
		s.log.Warnf("game %s: tick aborted, retrying next interval: %v", s.code, err)
	}
}

// questionTick reveals the question at the shared index and advances it.
// When the index runs past the materialized list the session moves to the
// answers phase and the same ticker starts driving validation.
func (s *Scheduler) questionTick(ctx context.Context) error {
	idx, err := s.store.QuestionIndex(ctx, s.code)
	if err != nil {
		return err
	}

	q, ok, err := s.store.QuestionAt(ctx, s.code, idx)
	if err != nil {
		return err
	}
	if ok {
		s.broadcast.Broadcast(s.code, events.NextQuestion(q, idx))
		if _, err := s.store.IncrQuestionIndex(ctx, s.code); err != nil {
			return err
		}
		s.log.Debugf("game %s: revealed question %d", s.code, idx)
		return nil
	}

	// List exhausted: hand over to the validation phase.
	if err := s.store.SetStatus(ctx, s.code, models.StatusAnswers); err != nil {
		return err
	}
	count, err := s.store.QuestionCount(ctx, s.code)
	if err != nil {
		return err
	}
	// Answers are keyed one past the question they belong to (the index is
	// incremented right after each reveal), so validation begins at 1.
	start := 0
	if count > 0 {
		start = 1
	}
	if err := s.store.SetValidationIndex(ctx, s.code, start); err != nil {
		return err
	}
	s.phase = phaseValidation
	s.broadcast.Broadcast(s.code, events.GameStatus(models.StatusAnswers))
	s.log.Infof("game %s: question phase complete, validating answers", s.code)
	return nil
}

// validationTick replays one question's answer batch for voting. Indexes
// with no recorded answers are skipped in a bounded walk so an all-empty
// tail never blocks progress; exhausting the list ends the session.
func (s *Scheduler) validationTick(ctx context.Context) error {
	count, err := s.store.QuestionCount(ctx, s.code)
	if err != nil {
		return err
	}
	idx, err := s.store.ValidationIndex(ctx, s.code)
	if err != nil {
		return err
	}

	for idx <= count {
		answers, err := s.store.Answers(ctx, s.code, idx)
		if err != nil {
			return err
		}
		if len(answers) == 0 {
			s.log.Debugf("game %s: no answers at index %d, skipping", s.code, idx)
			if idx, err = s.store.IncrValidationIndex(ctx, s.code); err != nil {
				return err
			}
			continue
		}

		q, _, err := s.store.QuestionAt(ctx, s.code, idx-1)
		if err != nil {
			return err
		}
		s.broadcast.Broadcast(s.code, events.NextAnswer(idx, q, answers))
		if _, err := s.store.IncrValidationIndex(ctx, s.code); err != nil {
			return err
		}
		s.log.Debugf("game %s: revealed %d answers for index %d", s.code, len(answers), idx)
		return nil
	}

	return s.finish(ctx)
}

// finish closes out the session: terminal status, score aggregation, final
// broadcast, and scheduler teardown.
func (s *Scheduler) finish(ctx context.Context) error {
	if err := s.store.SetStatus(ctx, s.code, models.StatusEnded); err != nil {
		return err
	}
	s.broadcast.Broadcast(s.code, events.GameStatus(models.StatusEnded))

	scores, err := Scores(ctx, s.store, s.code)
	if err != nil {
		return err
	}
	s.broadcast.Broadcast(s.code, events.FinalScores(scores))
	s.log.Infof("game %s: ended with %d scored players", s.code, len(scores))

	s.Stop()
	return nil
}

// fail is the terminal path for a scheduler fault. The status write is
// best-effort: the broadcast must go out even when the store is the thing
// that is broken.
func (s *Scheduler) fail(ctx context.Context) {
	if err := s.store.SetStatus(ctx, s.code, models.StatusError); err != nil {
		s.log.Errorf("game %s: failed to persist error status: %v", s.code, err)
	}
	s.broadcast.Broadcast(s.code, events.GameStatus(models.StatusError))
	s.broadcast.Broadcast(s.code, events.Error(events.ReasonInternal, "game loop failed"))
	s.Stop()
}
