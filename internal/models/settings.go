package models

// Settings holds a session's configuration. Host is captured at creation and
// never changes afterwards, regardless of what an update supplies.
type Settings struct {
	Host              Player   `json:"host"`
	Sets              []string `json:"sets"`
	AmountOfQuestions int      `json:"amountOfQuestions"`
	TimePerQuestion   int      `json:"timePerQuestion"` // seconds
}

// SettingsPatch is a partial settings update. Nil fields are left untouched.
// There is deliberately no host field: the host cannot be reassigned.
type SettingsPatch struct {
	Sets              *[]string `json:"sets,omitempty"`
	AmountOfQuestions *int      `json:"amountOfQuestions,omitempty"`
	TimePerQuestion   *int      `json:"timePerQuestion,omitempty"`
}

// DefaultSettings returns the settings a freshly created session starts with.
func DefaultSettings(host Player) Settings {
	return Settings{
		Host:              host,
		Sets:              []string{},
		AmountOfQuestions: 10,
		TimePerQuestion:   30,
	}
}
