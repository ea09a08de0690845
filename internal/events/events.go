// internal/events/events.go
package events

import (
	"github.com/quizwire/quizwire/internal/models"
)

// EventType enumerates every outbound event the channel can emit. The set is
// closed: handlers and schedulers construct events through this package only,
// so clients never see an unknown type.
type EventType string

const (
	// Room-scoped broadcasts.
	EventPlayers           EventType = "players"
	EventNextQuestion      EventType = "nextQuestion"
	EventPlayerHasAnswered EventType = "playerHasAnswered"
	EventNextAnswer        EventType = "nextAnswer"
	EventGameStatus        EventType = "gameStatus"
	EventGameSettings      EventType = "gameSettings"
	EventFinalScores       EventType = "finalScores"

	// Sender-only events.
	EventJoined         EventType = "joined"
	EventAnswerReceived EventType = "answerReceived"
	EventVoteReceived   EventType = "voteReceived"
	EventError          EventType = "error"
)

// Event is the single outbound wire shape. Only the fields relevant to the
// event type are populated; everything else is omitted from the JSON.
type Event struct {
	Type EventType `json:"type"`

	// players
	Players []models.Player `json:"players,omitempty"`

	// nextQuestion: the question stripped of its reference answer, plus the
	// zero-based position it was revealed at.
	Question      *models.Question `json:"question,omitempty"`
	QuestionIndex *int             `json:"questionIndex,omitempty"`

	// playerHasAnswered: who answered, never what they wrote.
	PlayerID string `json:"playerId,omitempty"`

	// nextAnswer: the full submission batch for one question index together
	// with the reference answer.
	Answers       []models.Answer `json:"answers,omitempty"`
	CorrectAnswer *string         `json:"correctAnswer,omitempty"`

	// gameStatus
	Status models.Status `json:"status,omitempty"`

	// gameSettings / joined
	Settings *models.Settings `json:"settings,omitempty"`
	Code     string           `json:"game,omitempty"`

	// finalScores: playerID -> accumulated total.
	Scores map[string]int `json:"scores,omitempty"`

	// answerReceived echo.
	Answer string `json:"answer,omitempty"`

	// error: Reason is machine-checkable, Message is for humans.
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// Machine-checkable reasons carried by error events. Errors are always
// delivered to the originating connection only.
const (
	ReasonGameNotFound       = "GameNotFound"
	ReasonNotInGame          = "NotInGame"
	ReasonNotHost            = "NotHost"
	ReasonInvalidVotePayload = "InvalidVotePayload"
	ReasonInvalidPayload     = "InvalidPayload"
	ReasonInternal           = "Internal"
)

// Players builds a roster broadcast.
func Players(players []models.Player) Event {
	return Event{Type: EventPlayers, Players: players}
}

// NextQuestion builds a question reveal. The reference answer is stripped
// here so no call site can accidentally leak it.
func NextQuestion(q models.Question, index int) Event {
	public := q.Public()
	return Event{Type: EventNextQuestion, Question: &public, QuestionIndex: &index}
}

// PlayerHasAnswered announces that a player submitted, without content.
func PlayerHasAnswered(playerID string) Event {
	return Event{Type: EventPlayerHasAnswered, PlayerID: playerID}
}

// NextAnswer builds an answer reveal for voting.
func NextAnswer(index int, question models.Question, answers []models.Answer) Event {
	return Event{
		Type:          EventNextAnswer,
		QuestionIndex: &index,
		Question:      &question,
		CorrectAnswer: question.Answer,
		Answers:       answers,
	}
}

// GameStatus builds a lifecycle phase broadcast.
func GameStatus(status models.Status) Event {
	return Event{Type: EventGameStatus, Status: status}
}

// GameSettings builds a settings broadcast.
func GameSettings(settings models.Settings) Event {
	return Event{Type: EventGameSettings, Settings: &settings}
}

// FinalScores builds the terminal score broadcast.
func FinalScores(scores map[string]int) Event {
	return Event{Type: EventFinalScores, Scores: scores}
}

// Joined acknowledges a successful join to the sender.
func Joined(code string, settings models.Settings) Event {
	return Event{Type: EventJoined, Code: code, Settings: &settings}
}

// AnswerReceived acknowledges a submission privately.
func AnswerReceived(answer string) Event {
	return Event{Type: EventAnswerReceived, Answer: answer}
}

// VoteReceived acknowledges a vote batch privately.
func VoteReceived() Event {
	return Event{Type: EventVoteReceived}
}

// Error builds a sender-only failure event.
func Error(reason, message string) Event {
	return Event{Type: EventError, Reason: reason, Message: message}
}
