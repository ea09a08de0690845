// internal/store/store_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizwire/quizwire/internal/models"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb), mr
}

func testHost() models.Player {
	return models.Player{ID: "host-1", DisplayName: "Alice"}
}

func mustCreate(t *testing.T, s *Store, code string) models.Settings {
	t.Helper()
	settings := models.DefaultSettings(testHost())
	require.NoError(t, s.Create(context.Background(), code, settings))
	return settings
}

func TestCreateClaimsCode(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "ABC123")

	exists, err := s.Exists(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, exists)

	status, err := s.Status(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusLobby, status)

	idx, err := s.QuestionIndex(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestCreateCollision(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "ABC123")
	err := s.Create(ctx, "ABC123", models.DefaultSettings(testHost()))
	assert.ErrorIs(t, err, ErrCodeCollision)
}

func TestRosterSetSemantics(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "ABC123")

	p := models.Player{ID: "p1", DisplayName: "Bob"}
	require.NoError(t, s.AddPlayer(ctx, "ABC123", p))
	require.NoError(t, s.AddPlayer(ctx, "ABC123", p)) // duplicate join

	players, err := s.Players(ctx, "ABC123")
	require.NoError(t, err)
	assert.Len(t, players, 1)

	// Removing an absent player is a no-op.
	require.NoError(t, s.RemovePlayer(ctx, "ABC123", models.Player{ID: "ghost"}))

	require.NoError(t, s.RemovePlayer(ctx, "ABC123", p))
	players, err = s.Players(ctx, "ABC123")
	require.NoError(t, err)
	assert.Empty(t, players)
}

func TestGetSettingsNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.GetSettings(context.Background(), "NOPE42")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateSettingsHostOnly(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "ABC123")

	amount := 5
	patch := models.SettingsPatch{AmountOfQuestions: &amount}

	_, err := s.UpdateSettings(ctx, "ABC123", patch, "not-the-host")
	assert.ErrorIs(t, err, ErrNotHost)

	updated, err := s.UpdateSettings(ctx, "ABC123", patch, "host-1")
	require.NoError(t, err)
	assert.Equal(t, 5, updated.AmountOfQuestions)
	assert.Equal(t, 30, updated.TimePerQuestion) // untouched
	assert.Equal(t, "host-1", updated.Host.ID)

	// Re-read to confirm persistence and host immutability.
	settings, err := s.GetSettings(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 5, settings.AmountOfQuestions)
	assert.Equal(t, "host-1", settings.Host.ID)
	assert.Equal(t, "Alice", settings.Host.DisplayName)
}

func TestStatusTransitions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "ABC123")

	// Skipping a phase is rejected.
	err := s.SetStatus(ctx, "ABC123", models.StatusAnswers)
	assert.ErrorIs(t, err, ErrBadTransition)

	require.NoError(t, s.SetStatus(ctx, "ABC123", models.StatusStarted))
	require.NoError(t, s.SetStatus(ctx, "ABC123", models.StatusAnswers))
	require.NoError(t, s.SetStatus(ctx, "ABC123", models.StatusEnded))

	// Terminal: nothing leaves ended.
	err = s.SetStatus(ctx, "ABC123", models.StatusStarted)
	assert.ErrorIs(t, err, ErrBadTransition)
}

func TestSetStatusSelfTransitionIsNoop(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "ABC123")

	require.NoError(t, s.SetStatus(ctx, "ABC123", models.StatusStarted))
	// A retried tick writes the status it already reached; that must
	// succeed so the rest of the tick can rerun.
	require.NoError(t, s.SetStatus(ctx, "ABC123", models.StatusStarted))

	status, err := s.Status(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarted, status)
}

func TestCounters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "ABC123")

	n, err := s.IncrQuestionIndex(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	idx, err := s.QuestionIndex(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	require.NoError(t, s.SetValidationIndex(ctx, "ABC123", 1))
	n, err = s.IncrValidationIndex(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMaterializeQuestionsWriteOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "ABC123")

	answer := "42"
	questions := []models.Question{
		{ID: "q1", Question: "What is the answer?", Answer: &answer},
		{ID: "q2", Question: "What is not the answer?"},
	}
	require.NoError(t, s.MaterializeQuestions(ctx, "ABC123", questions))

	err := s.MaterializeQuestions(ctx, "ABC123", questions)
	assert.ErrorIs(t, err, ErrAlreadyMaterialized)

	count, err := s.QuestionCount(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	q, ok, err := s.QuestionAt(ctx, "ABC123", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "q1", q.ID)
	require.NotNil(t, q.Answer)
	assert.Equal(t, "42", *q.Answer)

	_, ok, err = s.QuestionAt(ctx, "ABC123", 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAnswersAppendOnly(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "ABC123")

	a1 := models.Answer{PlayerID: "p1", Answer: "first", SubmittedAt: 100}
	a2 := models.Answer{PlayerID: "p1", Answer: "second", SubmittedAt: 200}
	require.NoError(t, s.AppendAnswer(ctx, "ABC123", 1, a1))
	require.NoError(t, s.AppendAnswer(ctx, "ABC123", 1, a2))

	answers, err := s.Answers(ctx, "ABC123", 1)
	require.NoError(t, err)
	// Duplicates from the same player are both retained, in arrival order.
	require.Len(t, answers, 2)
	assert.Equal(t, "first", answers[0].Answer)
	assert.Equal(t, "second", answers[1].Answer)
}

func TestVotesDropUnknownValues(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "ABC123")

	require.NoError(t, s.AppendVote(ctx, "ABC123", 1, "p1", models.VoteGood))
	require.NoError(t, s.AppendVote(ctx, "ABC123", 1, "p1", models.VoteNeutral))

	// Corrupt entry written out-of-band must not fail the read.
	mr.Lpush("game:ABC123:votes:q1:p1", "bogus")

	votes, err := s.Votes(ctx, "ABC123", 1, "p1")
	require.NoError(t, err)
	assert.Equal(t, []models.Vote{models.VoteGood, models.VoteNeutral}, votes)
}

func TestExpireNamespace(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "ABC123")
	require.NoError(t, s.AddPlayer(ctx, "ABC123", testHost()))
	require.NoError(t, s.AppendAnswer(ctx, "ABC123", 1, models.Answer{PlayerID: "p1", Answer: "x"}))

	require.NoError(t, s.ExpireNamespace(ctx, "ABC123", 1800*time.Second))

	for _, key := range mr.Keys() {
		assert.Equal(t, 1800*time.Second, mr.TTL(key), "key %s should carry the namespace TTL", key)
	}
}

func TestDestroy(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "ABC123")
	require.NoError(t, s.AddPlayer(ctx, "ABC123", testHost()))

	require.NoError(t, s.Destroy(ctx, "ABC123"))
	assert.Empty(t, mr.Keys())

	exists, err := s.Exists(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, exists)
}
