// internal/game/score.go
package game

import (
	"context"

	"github.com/quizwire/quizwire/internal/store"
)

// Scores is a pure read-only pass over a finished session's answers and
// votes. For every submission it sums the vote weights (good=100,
// neutral=50, bad=0) and accumulates by player. A player who answered but
// collected no votes scores 0 for that answer. Calling it again against
// unchanged state yields the same result.
//
// Answer lists are walked from index 0 through the question count inclusive:
// submissions land under the index value current at submission time, which
// runs one ahead of the revealed question, so the populated range is 1..count
// with index 0 only holding pre-first-reveal submissions.
func Scores(ctx context.Context, st *store.Store, code string) (map[string]int, error) {
	count, err := st.QuestionCount(ctx, code)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]int)
	for idx := 0; idx <= count; idx++ {
		answers, err := st.Answers(ctx, code, idx)
		if err != nil {
			return nil, err
		}
		for _, a := range answers {
			if _, ok := scores[a.PlayerID]; !ok {
				scores[a.PlayerID] = 0
			}
			votes, err := st.Votes(ctx, code, idx, a.PlayerID)
			if err != nil {
				return nil, err
			}
			for _, v := range votes {
				scores[a.PlayerID] += v.Weight()
			}
		}
	}
	return scores, nil
}
