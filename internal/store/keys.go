// internal/store/keys.go
package store

import "fmt"

// Every key a session owns lives under the "game:{code}:" namespace. That
// prefix is the only isolation between sessions, and it is what lets
// ExpireNamespace and Destroy find everything a session ever wrote.
func keyPrefix(code string) string {
	return fmt.Sprintf("game:%s:", code)
}

func keySettings(code string) string {
	return keyPrefix(code) + "settings"
}

func keyStatus(code string) string {
	return keyPrefix(code) + "status"
}

func keyPlayers(code string) string {
	return keyPrefix(code) + "players"
}

func keyQuestionIndex(code string) string {
	return keyPrefix(code) + "questionIndex"
}

func keyValidationIndex(code string) string {
	return keyPrefix(code) + "validationIndex"
}

func keyQuestions(code string) string {
	return keyPrefix(code) + "questions"
}

func keyAnswers(code string, questionIndex int) string {
	return fmt.Sprintf("%sanswers:q%d", keyPrefix(code), questionIndex)
}

func keyVotes(code string, questionIndex int, playerID string) string {
	return fmt.Sprintf("%svotes:q%d:%s", keyPrefix(code), questionIndex, playerID)
}
