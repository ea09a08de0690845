// internal/game/score_test.go
package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizwire/quizwire/internal/models"
)

func TestScoresSumVoteWeights(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedGame(t, st, "GAME01", testQuestions(2))

	require.NoError(t, st.AppendAnswer(ctx, "GAME01", 1, models.Answer{PlayerID: "p1", Answer: "a"}))
	require.NoError(t, st.AppendAnswer(ctx, "GAME01", 1, models.Answer{PlayerID: "p2", Answer: "b"}))
	require.NoError(t, st.AppendAnswer(ctx, "GAME01", 2, models.Answer{PlayerID: "p1", Answer: "c"}))

	// p1: good + good on q1, neutral on q2 => 250.
	require.NoError(t, st.AppendVote(ctx, "GAME01", 1, "p1", models.VoteGood))
	require.NoError(t, st.AppendVote(ctx, "GAME01", 1, "p1", models.VoteGood))
	require.NoError(t, st.AppendVote(ctx, "GAME01", 2, "p1", models.VoteNeutral))
	// p2: bad => 0, but still present in the result.
	require.NoError(t, st.AppendVote(ctx, "GAME01", 1, "p2", models.VoteBad))

	scores, err := Scores(ctx, st, "GAME01")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 250, "p2": 0}, scores)
}

func TestScoresAnsweredWithoutVotes(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedGame(t, st, "GAME01", testQuestions(1))

	require.NoError(t, st.AppendAnswer(ctx, "GAME01", 1, models.Answer{PlayerID: "p1", Answer: "a"}))

	scores, err := Scores(ctx, st, "GAME01")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 0}, scores)
}

func TestScoresIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedGame(t, st, "GAME01", testQuestions(1))

	require.NoError(t, st.AppendAnswer(ctx, "GAME01", 1, models.Answer{PlayerID: "p1", Answer: "a"}))
	require.NoError(t, st.AppendVote(ctx, "GAME01", 1, "p1", models.VoteGood))

	first, err := Scores(ctx, st, "GAME01")
	require.NoError(t, err)
	second, err := Scores(ctx, st, "GAME01")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScoresCoverPreRevealSubmissions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedGame(t, st, "GAME01", testQuestions(1))

	// A submission that raced in before the first reveal lands at index 0.
	// It still counts.
	require.NoError(t, st.AppendAnswer(ctx, "GAME01", 0, models.Answer{PlayerID: "eager", Answer: "a"}))
	require.NoError(t, st.AppendVote(ctx, "GAME01", 0, "eager", models.VoteGood))

	scores, err := Scores(ctx, st, "GAME01")
	require.NoError(t, err)
	assert.Equal(t, 100, scores["eager"])
}
