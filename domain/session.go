package domain

import "fmt"

// SessionState is the lifecycle of a connected user.
// A session is either live or logged out; there is no intermediate
// "inactive but still holding a connection" state.
type SessionState string

const (
	StateActive    SessionState = "active"
	StateLoggedOut SessionState = "logged_out"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Mode is a matchmaking category. Each mode has its own independent
// waiting queue in the store.
type Mode string

const (
	ModeChill     Mode = "chill"
	ModeDate      Mode = "date"
	ModeInterests Mode = "interests"
)

// AllModes returns every known mode, in the fixed order the
// matchmaking loop scans them.
func AllModes() []Mode {
	return []Mode{ModeChill, ModeDate, ModeInterests}
}

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeChill, ModeDate, ModeInterests:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Profile holds the attributes a user provides during setup.
// It is also the payload persisted as a broken-session snapshot,
// so a user reconnecting within the TTL window can resume without
// repeating setup.
type Profile struct {
	Gender    Gender   `json:"gender"`
	Age       int      `json:"age"`
	Interests []string `json:"interests"`
	Mode      Mode     `json:"mode"`
}

// Complete reports whether the profile carries everything matchmaking
// needs.
func (p Profile) Complete() bool {
	return p.Gender != "" && p.Age > 0 && len(p.Interests) > 0 && p.Mode != ""
}
