package test

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"sparkchat/domain"
	"sparkchat/matchmaking"
	"sparkchat/runtime"
	"sparkchat/runtime/workers"
	"sparkchat/services"
)

// memoryConn is a full in-process transport: frames land in a slice
// guarded by a mutex, close calls are recorded.
type memoryConn struct {
	mu     sync.Mutex
	frames []domain.Frame
	closed bool
}

func (c *memoryConn) WriteFrame(frame domain.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *memoryConn) Close(int, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *memoryConn) firstMatched() (domain.MatchedContent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.frames {
		if f.Action == domain.ActionMatched {
			return f.Content.(domain.MatchedContent), true
		}
	}
	return domain.MatchedContent{}, false
}

func (c *memoryConn) received() []domain.ReceivedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.ReceivedMessage
	for _, f := range c.frames {
		if f.Action == domain.ActionReceiveMessage {
			out = append(out, f.Content.(domain.ReceivedMessage))
		}
	}
	return out
}

type memoryQueue struct {
	mu      sync.Mutex
	entries map[domain.Mode]map[string]domain.QueueEntry
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{entries: make(map[domain.Mode]map[string]domain.QueueEntry)}
}

func (q *memoryQueue) Add(_ context.Context, mode domain.Mode, entry domain.QueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.entries[mode] == nil {
		q.entries[mode] = make(map[string]domain.QueueEntry)
	}
	q.entries[mode][entry.Username] = entry
	return nil
}

func (q *memoryQueue) Remove(_ context.Context, mode domain.Mode, username string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[mode][username]
	delete(q.entries[mode], username)
	return ok, nil
}

func (q *memoryQueue) Entries(_ context.Context, mode domain.Mode) ([]domain.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return lo.Values(q.entries[mode]), nil
}

func (q *memoryQueue) Count(_ context.Context, mode domain.Mode) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.entries[mode])), nil
}

type memorySnapshots struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{profiles: make(map[string]domain.Profile)}
}

func (s *memorySnapshots) Save(_ context.Context, username string, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[username] = profile
	return nil
}

func (s *memorySnapshots) Take(_ context.Context, username string) (domain.Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[username]
	delete(s.profiles, username)
	return profile, ok, nil
}

// Full in-process scenario: two users complete setup, connect, join
// date matchmaking, get paired by the supervised loop, chat in their
// room and log out.
func Test_Scenario(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	queue := newMemoryQueue()
	matchmaker := matchmaking.New(queue, log, 10)
	snapshots := newMemorySnapshots()
	registry := runtime.NewRegistry(log, snapshots, matchmaker)
	rooms := runtime.NewRoomTable(log, registry, nil)
	service := services.NewChatService(log, registry, rooms, matchmaker)

	supervisor := workers.NewSupervisor(log, 200*time.Millisecond)
	supervisor.Add(workers.NewMatchLoopWorker(
		log, matchmaker, registry, domain.AllModes(),
		10*time.Millisecond, 10*time.Millisecond,
	))

	runCtx, cancel := context.WithCancel(ctx)
	go supervisor.Run(runCtx)
	t.Cleanup(func() {
		cancel()
		supervisor.Stop()
	})

	// Given two users having completed their setup
	service.SetupInfo("alice", domain.Profile{
		Gender: domain.GenderFemale, Age: 30, Interests: []string{"chess"}, Mode: domain.ModeDate,
	})
	service.SetupInfo("bob", domain.Profile{
		Gender: domain.GenderMale, Age: 32, Interests: []string{"chess"}, Mode: domain.ModeDate,
	})

	aliceConn := &memoryConn{}
	bobConn := &memoryConn{}
	req.NoError(service.Attach(ctx, "alice", aliceConn))
	req.NoError(service.Attach(ctx, "bob", bobConn))

	// When both join matchmaking
	req.NoError(service.JoinMatchmaking(ctx, "alice"))
	req.NoError(service.JoinMatchmaking(ctx, "bob"))

	// Then the loop pairs them and both sides learn the same room
	var aliceMatch, bobMatch domain.MatchedContent
	req.Eventually(func() bool {
		var okA, okB bool
		aliceMatch, okA = aliceConn.firstMatched()
		bobMatch, okB = bobConn.firstMatched()
		return okA && okB
	}, 5*time.Second, 20*time.Millisecond, "both users should be notified of the match")

	req.Equal(aliceMatch.Room, bobMatch.Room)
	req.Equal("bob", aliceMatch.User.Username)
	req.Equal("alice", bobMatch.User.Username)

	// And both queues are drained
	count, err := queue.Count(ctx, domain.ModeDate)
	req.NoError(err)
	req.EqualValues(0, count)

	// When both join the room and alice speaks
	room := aliceMatch.Room
	service.HandleFrame(ctx, "alice", frame(t, domain.ClientFrame{Action: domain.ActionJoin, Room: room}))
	service.HandleFrame(ctx, "bob", frame(t, domain.ClientFrame{Action: domain.ActionJoin, Room: room}))
	service.HandleFrame(ctx, "alice", frame(t, domain.ClientFrame{
		Action: domain.ActionSend, Room: room, Message: "hi bob",
	}))

	// Then only bob receives the message
	received := bobConn.received()
	req.Len(received, 1)
	req.Equal("hi bob", received[0].Message)
	req.Equal("alice", received[0].FromUser)
	req.Equal(room, received[0].FromRoom)
	req.Empty(aliceConn.received())

	// When alice logs out, her profile is snapshotted and bob learns
	// she left the room
	service.Logout(ctx, "alice")
	req.False(service.IsConnected("alice"))

	profile, found, err := snapshots.Take(ctx, "alice")
	req.NoError(err)
	req.True(found)
	req.Equal(30, profile.Age)

	req.Eventually(func() bool {
		for _, f := range bobConn.framesSnapshot() {
			if f.Action == domain.ActionUserLeft {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond, "bob should see alice leave")
}

func (c *memoryConn) framesSnapshot() []domain.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Frame(nil), c.frames...)
}

func frame(t *testing.T, f domain.ClientFrame) []byte {
	t.Helper()
	raw, err := json.Marshal(f)
	require.NoError(t, err)
	return raw
}
