package domain

// Client and server actions exchanged over the websocket. Every
// outbound frame carries the same envelope: action, success, error,
// content.
const (
	ActionJoin           = "join"
	ActionLeaveRoom      = "leave_room"
	ActionSend           = "send"
	ActionMatched        = "matched"
	ActionUserLeft       = "user_left"
	ActionReceiveMessage = "receive_message"
	ActionError          = "error"
)

// Frame is the uniform server-to-client envelope.
type Frame struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Content any    `json:"content,omitempty"`
}

// Ack builds a successful frame for the given action.
func Ack(action string, content any) Frame {
	return Frame{Action: action, Success: true, Content: content}
}

// Fail builds an error frame reported to a single client.
func Fail(message string) Frame {
	return Frame{Action: ActionError, Success: false, Error: message}
}

// ClientFrame is the inbound message shape. Unknown or incomplete
// payloads are logged and dropped; the connection stays open.
type ClientFrame struct {
	Action  string `json:"action"`
	Room    string `json:"room"`
	Message string `json:"message"`
}

// Peer is the public part of a matched user's profile.
type Peer struct {
	Username string `json:"username"`
	Gender   Gender `json:"gender"`
}

// MatchedContent carries the freshly generated room id and the peer's
// public profile. Clients must send an explicit join for the room.
type MatchedContent struct {
	Room string `json:"room"`
	User Peer   `json:"user"`
}

// ReceivedMessage is the relayed chat message payload.
type ReceivedMessage struct {
	Message  string `json:"message"`
	FromUser string `json:"from_user"`
	FromRoom string `json:"from_room"`
}

// Websocket close codes and terminal reasons. Each rejection carries a
// distinct reason string and is never retried by the server.
const (
	CloseNormal          = 1000
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
	CloseInvalidToken    = 4401
)

const (
	ReasonTokenMissing = "Token missing"
	ReasonInvalidToken = "Invalid token"
	ReasonSetupMissing = "Setup info missing"
	ReasonSuperseded   = "New connection established"
	ReasonLoggedOut    = "User logged out"
)
