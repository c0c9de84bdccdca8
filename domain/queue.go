package domain

// QueueEntry is one user waiting to be matched in a given mode.
// It is stored serialized in the per-mode hash, keyed by username.
type QueueEntry struct {
	Username  string   `json:"username"`
	Gender    Gender   `json:"gender"`
	Age       int      `json:"age"`
	Interests []string `json:"interests"`
	// JoinedAt is a unix-nano timestamp used for fairness ordering.
	JoinedAt int64 `json:"joined_at"`
}

// Match is a transient pairing outcome. It is never stored; it only
// exists as the payload of a matched notification.
type Match struct {
	A QueueEntry
	B QueueEntry
}
