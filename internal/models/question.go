package models

// Question is a catalog entry. Answer may be nil for questions whose
// reference answer was never filled in; those still get revealed for voting.
type Question struct {
	ID       string  `json:"id"`
	Question string  `json:"question"`
	Answer   *string `json:"answer"`
}

// Public returns a copy with the reference answer stripped, for broadcasting
// during the question phase.
func (q Question) Public() Question {
	q.Answer = nil
	return q
}
