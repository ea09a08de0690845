package models

// Vote is a peer judgement on a revealed answer.
type Vote string

const (
	VoteGood    Vote = "good"
	VoteNeutral Vote = "neutral"
	VoteBad     Vote = "bad"
)

// Weight returns the score contribution of a single vote.
func (v Vote) Weight() int {
	switch v {
	case VoteGood:
		return 100
	case VoteNeutral:
		return 50
	default:
		return 0
	}
}

// Valid reports whether v is one of the three accepted vote values.
func (v Vote) Valid() bool {
	return v == VoteGood || v == VoteNeutral || v == VoteBad
}
