package matchmaking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"sparkchat/domain"
)

// memoryQueue is an in-memory QueueStore, ordered by insertion like the
// production hash iteration is ordered by nothing at all. Tests rely on
// JoinedAt, never on slice order.
type memoryQueue struct {
	entries map[domain.Mode]map[string]domain.QueueEntry
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{entries: make(map[domain.Mode]map[string]domain.QueueEntry)}
}

func (q *memoryQueue) Add(_ context.Context, mode domain.Mode, entry domain.QueueEntry) error {
	if q.entries[mode] == nil {
		q.entries[mode] = make(map[string]domain.QueueEntry)
	}
	q.entries[mode][entry.Username] = entry
	return nil
}

func (q *memoryQueue) Remove(_ context.Context, mode domain.Mode, username string) (bool, error) {
	_, ok := q.entries[mode][username]
	delete(q.entries[mode], username)
	return ok, nil
}

func (q *memoryQueue) Entries(_ context.Context, mode domain.Mode) ([]domain.QueueEntry, error) {
	return lo.Values(q.entries[mode]), nil
}

func (q *memoryQueue) Count(_ context.Context, mode domain.Mode) (int64, error) {
	return int64(len(q.entries[mode])), nil
}

func entry(username string, gender domain.Gender, age int, joinedAt int64, interests ...string) domain.QueueEntry {
	return domain.QueueEntry{
		Username:  username,
		Gender:    gender,
		Age:       age,
		Interests: interests,
		JoinedAt:  joinedAt,
	}
}

func TestMatchmaker_DateMode(t *testing.T) {
	ctx := context.Background()
	log := slog.Default()

	t.Run("should pair the longest waiting woman with the closest aged man", func(t *testing.T) {
		req := require.New(t)
		queue := newMemoryQueue()
		m := New(queue, log, 10)

		// Given one woman and two men; the 32 year old is closer to her
		// than the 50 year old
		req.NoError(m.Enqueue(ctx, domain.ModeDate, entry("alice", domain.GenderFemale, 30, 1)))
		req.NoError(m.Enqueue(ctx, domain.ModeDate, entry("bob", domain.GenderMale, 32, 2)))
		req.NoError(m.Enqueue(ctx, domain.ModeDate, entry("carl", domain.GenderMale, 50, 3)))

		// When a match is requested
		match, err := m.FindMatch(ctx, domain.ModeDate)

		// Then alice and bob are paired, and carl keeps waiting
		req.NoError(err)
		req.NotNil(match)
		req.ElementsMatch([]string{"alice", "bob"},
			[]string{match.A.Username, match.B.Username})
		count, err := queue.Count(ctx, domain.ModeDate)
		req.NoError(err)
		req.EqualValues(1, count)
	})

	t.Run("should not pair when every candidate exceeds the age gap", func(t *testing.T) {
		req := require.New(t)
		queue := newMemoryQueue()
		m := New(queue, log, 10)

		req.NoError(m.Enqueue(ctx, domain.ModeDate, entry("alice", domain.GenderFemale, 20, 1)))
		req.NoError(m.Enqueue(ctx, domain.ModeDate, entry("methuselah", domain.GenderMale, 200, 2)))

		match, err := m.FindMatch(ctx, domain.ModeDate)

		// Then both stay enqueued for a later round
		req.NoError(err)
		req.Nil(match)
		count, err := queue.Count(ctx, domain.ModeDate)
		req.NoError(err)
		req.EqualValues(2, count)
	})

	t.Run("should not pair a single gender group", func(t *testing.T) {
		req := require.New(t)
		queue := newMemoryQueue()
		m := New(queue, log, 10)

		req.NoError(m.Enqueue(ctx, domain.ModeDate, entry("alice", domain.GenderFemale, 25, 1)))
		req.NoError(m.Enqueue(ctx, domain.ModeDate, entry("beth", domain.GenderFemale, 26, 2)))

		match, err := m.FindMatch(ctx, domain.ModeDate)

		req.NoError(err)
		req.Nil(match)
	})

	t.Run("should let the smaller gender group pick first", func(t *testing.T) {
		req := require.New(t)
		queue := newMemoryQueue()
		m := New(queue, log, 10)

		// Given one man and two women: the man is the priority side even
		// though a woman has waited longer
		req.NoError(m.Enqueue(ctx, domain.ModeDate, entry("alice", domain.GenderFemale, 40, 1)))
		req.NoError(m.Enqueue(ctx, domain.ModeDate, entry("beth", domain.GenderFemale, 23, 2)))
		req.NoError(m.Enqueue(ctx, domain.ModeDate, entry("bob", domain.GenderMale, 25, 3)))

		match, err := m.FindMatch(ctx, domain.ModeDate)

		req.NoError(err)
		req.NotNil(match)
		req.ElementsMatch([]string{"bob", "beth"},
			[]string{match.A.Username, match.B.Username})
	})
}

func TestMatchmaker_ChillMode(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	queue := newMemoryQueue()
	m := New(queue, slog.Default(), 10)

	// Given three users having joined in order
	req.NoError(m.Enqueue(ctx, domain.ModeChill, entry("first", domain.GenderMale, 30, 1)))
	req.NoError(m.Enqueue(ctx, domain.ModeChill, entry("second", domain.GenderFemale, 99, 2)))
	req.NoError(m.Enqueue(ctx, domain.ModeChill, entry("third", domain.GenderMale, 18, 3)))

	// When a match is requested
	match, err := m.FindMatch(ctx, domain.ModeChill)

	// Then gender and age are ignored, the two oldest entries pair up
	req.NoError(err)
	req.NotNil(match)
	req.ElementsMatch([]string{"first", "second"},
		[]string{match.A.Username, match.B.Username})
}

func TestMatchmaker_InterestsMode(t *testing.T) {
	ctx := context.Background()

	t.Run("should pair on the most shared interests", func(t *testing.T) {
		req := require.New(t)
		queue := newMemoryQueue()
		m := New(queue, slog.Default(), 10)

		req.NoError(m.Enqueue(ctx, domain.ModeInterests, entry("alice", domain.GenderFemale, 30, 1, "chess", "hiking", "jazz")))
		req.NoError(m.Enqueue(ctx, domain.ModeInterests, entry("bob", domain.GenderMale, 30, 2, "chess")))
		req.NoError(m.Enqueue(ctx, domain.ModeInterests, entry("carl", domain.GenderMale, 30, 3, "chess", "jazz")))

		match, err := m.FindMatch(ctx, domain.ModeInterests)

		req.NoError(err)
		req.NotNil(match)
		req.ElementsMatch([]string{"alice", "carl"},
			[]string{match.A.Username, match.B.Username})
	})

	t.Run("should require at least one shared interest", func(t *testing.T) {
		req := require.New(t)
		queue := newMemoryQueue()
		m := New(queue, slog.Default(), 10)

		req.NoError(m.Enqueue(ctx, domain.ModeInterests, entry("alice", domain.GenderFemale, 30, 1, "chess")))
		req.NoError(m.Enqueue(ctx, domain.ModeInterests, entry("bob", domain.GenderMale, 30, 2, "surfing")))

		match, err := m.FindMatch(ctx, domain.ModeInterests)

		req.NoError(err)
		req.Nil(match)
	})
}

func TestMatchmaker_JoinIsExclusive(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	queue := newMemoryQueue()
	m := New(queue, slog.Default(), 10)

	// Given a user waiting in chill mode
	req.NoError(m.Join(ctx, domain.ModeChill, entry("alice", domain.GenderFemale, 30, 0)))

	// When they join date mode
	req.NoError(m.Join(ctx, domain.ModeDate, entry("alice", domain.GenderFemale, 30, 0)))

	// Then the chill entry is gone
	chill, err := queue.Count(ctx, domain.ModeChill)
	req.NoError(err)
	req.EqualValues(0, chill)
	date, err := queue.Count(ctx, domain.ModeDate)
	req.NoError(err)
	req.EqualValues(1, date)
}

func TestMatchmaker_SequentialFindsNeverReuseEntries(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	queue := newMemoryQueue()
	m := New(queue, slog.Default(), 10)

	for _, e := range []domain.QueueEntry{
		entry("a", domain.GenderFemale, 30, 1),
		entry("b", domain.GenderMale, 30, 2),
		entry("c", domain.GenderFemale, 30, 3),
		entry("d", domain.GenderMale, 30, 4),
	} {
		req.NoError(m.Enqueue(ctx, domain.ModeChill, e))
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		match, err := m.FindMatch(ctx, domain.ModeChill)
		req.NoError(err)
		req.NotNil(match)
		for _, u := range []string{match.A.Username, match.B.Username} {
			req.False(seen[u], "user %s matched twice", u)
			seen[u] = true
		}
	}

	// A fifth user would be needed for another pair
	match, err := m.FindMatch(ctx, domain.ModeChill)
	req.NoError(err)
	req.Nil(match)
}

func TestMatchmaker_ConcurrentFindsNeverReuseEntries(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	queue := newMemoryQueue()
	m := New(queue, slog.Default(), 10)

	const waiting = 8
	for i := 0; i < waiting; i++ {
		name := fmt.Sprintf("user-%02d", i)
		req.NoError(m.Enqueue(ctx, domain.ModeChill, entry(name, domain.GenderFemale, 30, int64(i))))
	}

	// Several goroutines drain the same mode at once; the commit lock
	// must keep every entry in at most one match
	matches := make(chan domain.Match, waiting)
	errs := make(chan error, waiting)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				match, err := m.FindMatch(ctx, domain.ModeChill)
				if err != nil {
					errs <- err
					return
				}
				if match == nil {
					return
				}
				matches <- *match
			}
		}()
	}
	wg.Wait()
	close(matches)
	close(errs)

	for err := range errs {
		req.NoError(err)
	}
	seen := map[string]bool{}
	total := 0
	for match := range matches {
		for _, u := range []string{match.A.Username, match.B.Username} {
			req.False(seen[u], "user %s matched twice", u)
			seen[u] = true
		}
		total++
	}
	req.Equal(waiting/2, total)

	count, err := queue.Count(ctx, domain.ModeChill)
	req.NoError(err)
	req.EqualValues(0, count)
}
