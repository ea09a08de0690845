// internal/events/events_test.go
package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizwire/quizwire/internal/models"
)

func TestNextQuestionStripsReferenceAnswer(t *testing.T) {
	ref := "secret"
	q := models.Question{ID: "q1", Question: "what?", Answer: &ref}

	ev := NextQuestion(q, 3)
	require.NotNil(t, ev.Question)
	assert.Nil(t, ev.Question.Answer)
	assert.Equal(t, 3, *ev.QuestionIndex)

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}

func TestNextAnswerCarriesReferenceAnswer(t *testing.T) {
	ref := "secret"
	q := models.Question{ID: "q1", Question: "what?", Answer: &ref}

	ev := NextAnswer(1, q, []models.Answer{{PlayerID: "p1", Answer: "guess"}})
	require.NotNil(t, ev.CorrectAnswer)
	assert.Equal(t, "secret", *ev.CorrectAnswer)
	assert.Len(t, ev.Answers, 1)
}

func TestEventWireShapeOmitsUnsetFields(t *testing.T) {
	data, err := json.Marshal(GameStatus(models.StatusEnded))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"gameStatus","status":"ended"}`, string(data))
}
