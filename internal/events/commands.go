// internal/events/commands.go
package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quizwire/quizwire/internal/models"
)

// CommandType enumerates the inbound commands a connection may send.
type CommandType string

const (
	CmdJoin           CommandType = "join"
	CmdLeave          CommandType = "leave"
	CmdSendAnswer     CommandType = "sendAnswer"
	CmdAnswerVote     CommandType = "answerVote"
	CmdUpdateSettings CommandType = "updateSettings"
)

// ErrUnknownCommand is returned for a type outside the closed command set.
var ErrUnknownCommand = errors.New("unknown command type")

// VoteEntry is one element of an answerVote batch.
type VoteEntry struct {
	AnswerOwnerID string      `json:"answerOwnerId"`
	Value         models.Vote `json:"value"`
}

// Valid reports whether the entry names an owner and carries a known vote
// value. Invalid entries are skipped by the handler, not fatal to the batch.
func (v VoteEntry) Valid() bool {
	return v.AnswerOwnerID != "" && v.Value.Valid()
}

// Command is the decoded inbound wire shape. Like Event, only the fields
// matching the type are meaningful.
type Command struct {
	Type CommandType `json:"type"`

	// join
	Code string `json:"code,omitempty"`

	// sendAnswer
	Answer string `json:"answer,omitempty"`

	// answerVote
	Votes []VoteEntry `json:"votes,omitempty"`

	// updateSettings
	Settings *models.SettingsPatch `json:"settings,omitempty"`
}

// DecodeCommand parses and validates a raw message at the channel boundary.
// Anything that passes is a well-formed member of the command union; the
// per-command handlers only deal with session-state failures after this.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("malformed command: %w", err)
	}

	switch cmd.Type {
	case CmdJoin:
		if cmd.Code == "" {
			return Command{}, errors.New("join requires a code")
		}
	case CmdLeave:
	case CmdSendAnswer:
		if cmd.Answer == "" {
			return Command{}, errors.New("sendAnswer requires an answer")
		}
	case CmdAnswerVote:
		if len(cmd.Votes) == 0 {
			return Command{}, errors.New("answerVote requires at least one vote")
		}
	case CmdUpdateSettings:
		if cmd.Settings == nil {
			return Command{}, errors.New("updateSettings requires a settings object")
		}
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return cmd, nil
}
