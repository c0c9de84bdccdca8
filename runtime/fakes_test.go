package runtime

import (
	"context"
	"sync"

	"sparkchat/domain"
)

// fakeConn records every frame and close call. Failing mode simulates
// a dead transport.
type fakeConn struct {
	mu      sync.Mutex
	frames  []domain.Frame
	closes  []closeCall
	failing bool
}

type closeCall struct {
	code   int
	reason string
}

func (c *fakeConn) WriteFrame(frame domain.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errConnDown
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes = append(c.closes, closeCall{code: code, reason: reason})
	return nil
}

func (c *fakeConn) Frames() []domain.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Frame(nil), c.frames...)
}

func (c *fakeConn) FramesFor(action string) []domain.Frame {
	var out []domain.Frame
	for _, f := range c.Frames() {
		if f.Action == action {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) Closes() []closeCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]closeCall(nil), c.closes...)
}

func (c *fakeConn) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing = true
}

var errConnDown = errFake("connection down")

type errFake string

func (e errFake) Error() string { return string(e) }

// fakeSnapshots is an in-memory SnapshotStore.
type fakeSnapshots struct {
	mu        sync.Mutex
	profiles  map[string]domain.Profile
	saveCount int
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{profiles: make(map[string]domain.Profile)}
}

func (s *fakeSnapshots) Save(_ context.Context, username string, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[username] = profile
	s.saveCount++
	return nil
}

func (s *fakeSnapshots) Take(_ context.Context, username string) (domain.Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[username]
	delete(s.profiles, username)
	return profile, ok, nil
}

func (s *fakeSnapshots) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCount
}

// fakeMatchmaker records queue membership per user.
type fakeMatchmaker struct {
	mu      sync.Mutex
	waiting map[string]domain.Mode
}

func newFakeMatchmaker() *fakeMatchmaker {
	return &fakeMatchmaker{waiting: make(map[string]domain.Mode)}
}

func (m *fakeMatchmaker) Join(_ context.Context, mode domain.Mode, entry domain.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waiting[entry.Username] = mode
	return nil
}

func (m *fakeMatchmaker) Enqueue(_ context.Context, mode domain.Mode, entry domain.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waiting[entry.Username] = mode
	return nil
}

func (m *fakeMatchmaker) LeaveAll(_ context.Context, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.waiting, username)
}

func (m *fakeMatchmaker) FindMatch(context.Context, domain.Mode) (*domain.Match, error) {
	return nil, nil
}

func (m *fakeMatchmaker) WaitingCounts(context.Context) (map[domain.Mode]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.Mode]int64)
	for _, mode := range m.waiting {
		counts[mode]++
	}
	return counts, nil
}

func (m *fakeMatchmaker) isWaiting(username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.waiting[username]
	return ok
}
