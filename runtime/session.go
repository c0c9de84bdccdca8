package runtime

import (
	"sync"

	"sparkchat/contract"
	"sparkchat/domain"
)

// Session is one logical user's live presence: their connection
// handle, profile and room memberships. The registry is the only
// creator of sessions; per-session state is guarded by the session's
// own mutex so a slow send to one client never blocks another.
type Session struct {
	Username string

	mu      sync.Mutex
	conn    contract.Conn
	state   domain.SessionState
	profile domain.Profile
	rooms   []string
}

func newSession(username string, conn contract.Conn, profile domain.Profile) *Session {
	if profile.Mode == "" {
		profile.Mode = domain.ModeDate
	}
	return &Session{
		Username: username,
		conn:     conn,
		state:    domain.StateActive,
		profile:  profile,
	}
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == domain.StateActive
}

// Profile returns a copy; interests are cloned so callers cannot
// mutate session state through the slice.
func (s *Session) Profile() domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profile
	p.Interests = append([]string(nil), s.profile.Interests...)
	return p
}

func (s *Session) Mode() domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Mode
}

func (s *Session) setMode(mode domain.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.Mode = mode
}

// replaceConn swaps in a fresh handle on reconnect. The superseded
// handle is closed best-effort and never referenced again. Room
// memberships and matchmaking state are untouched. A session whose
// logout has already begun refuses the swap: its detach is about to
// close whatever handle it holds, so the new connection must not be
// handed to it.
func (s *Session) replaceConn(conn contract.Conn) bool {
	s.mu.Lock()
	if s.state == domain.StateLoggedOut {
		s.mu.Unlock()
		return false
	}
	old := s.conn
	s.conn = conn
	s.mu.Unlock()

	if old != nil {
		_ = old.Close(domain.CloseNormal, domain.ReasonSuperseded)
	}
	return true
}

// UsesConn reports whether the given handle is still the session's
// current one. A read loop whose handle was superseded by a reconnect
// must not run the cleanup path.
func (s *Session) UsesConn(conn contract.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == conn
}

// beginLogout flips the session out of the active state exactly once.
// The second caller of a concurrent disconnect race gets false and
// must not run cleanup again.
func (s *Session) beginLogout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateLoggedOut {
		return false
	}
	s.state = domain.StateLoggedOut
	return true
}

func (s *Session) closeConn(code int, reason string) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close(code, reason)
	}
}

// Deliver writes a frame to the session's current handle. Sends to a
// logged-out session are silently dropped; the caller only sees
// transport failures.
func (s *Session) Deliver(frame domain.Frame) error {
	s.mu.Lock()
	conn := s.conn
	active := s.state == domain.StateActive
	s.mu.Unlock()

	if !active || conn == nil {
		return nil
	}
	return conn.WriteFrame(frame)
}

// Notify sends a successful envelope for the given action.
func (s *Session) Notify(action string, content any) error {
	return s.Deliver(domain.Ack(action, content))
}

// NotifyError reports a client-level protocol error; the connection
// stays open.
func (s *Session) NotifyError(message string) {
	_ = s.Deliver(domain.Fail(message))
}

func (s *Session) addRoom(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rooms {
		if existing == room {
			return
		}
	}
	s.rooms = append(s.rooms, room)
}

// removeRoom reports whether the session was a member.
func (s *Session) removeRoom(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.rooms {
		if existing == room {
			s.rooms = append(s.rooms[:i], s.rooms[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Session) inRoom(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rooms {
		if existing == room {
			return true
		}
	}
	return false
}

// Rooms returns the session's memberships in join order.
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rooms...)
}
