// Package matchmaking pairs waiting users. One logical queue exists
// per mode; the pairing algorithm is mode-dependent and re-evaluated
// on every scheduling tick, so a greedy best-effort pick is enough.
package matchmaking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"sparkchat/contract"
	"sparkchat/domain"
)

type Matchmaker struct {
	// mu serializes FindMatch commits: a pair returned by one call can
	// never be observed half-removed, and two interleaved calls can
	// never both return the same entry.
	mu        sync.Mutex
	queue     contract.QueueStore
	log       *slog.Logger
	maxAgeGap int
}

func New(queue contract.QueueStore, log *slog.Logger, maxAgeGap int) *Matchmaker {
	return &Matchmaker{queue: queue, log: log, maxAgeGap: maxAgeGap}
}

// Join stamps the entry's join time, removes the user's entries from
// every other mode and upserts into the requested one. Modes are
// mutually exclusive at join time.
func (m *Matchmaker) Join(ctx context.Context, mode domain.Mode, entry domain.QueueEntry) error {
	for _, other := range domain.AllModes() {
		if other == mode {
			continue
		}
		if _, err := m.queue.Remove(ctx, other, entry.Username); err != nil {
			m.log.Warn("Could not clear stale queue entry", "mode", other, "username", entry.Username, "error", err)
		}
	}
	entry.JoinedAt = time.Now().UnixNano()
	return m.queue.Add(ctx, mode, entry)
}

// Enqueue upserts an entry as-is, preserving its JoinedAt so a user
// re-enqueued after a broken pairing keeps their place in line.
func (m *Matchmaker) Enqueue(ctx context.Context, mode domain.Mode, entry domain.QueueEntry) error {
	return m.queue.Add(ctx, mode, entry)
}

// LeaveAll removes the user from every mode. Best-effort: used on
// logout where a store hiccup must not block the rest of the cleanup.
func (m *Matchmaker) LeaveAll(ctx context.Context, username string) {
	for _, mode := range domain.AllModes() {
		if _, err := m.queue.Remove(ctx, mode, username); err != nil {
			m.log.Warn("Could not remove user from queue", "mode", mode, "username", username, "error", err)
		}
	}
}

// FindMatch produces at most one pair for the mode. Found entries stay
// enqueued until both removals commit, so no caller can observe only
// one side removed; both are gone before the match is returned.
func (m *Matchmaker) FindMatch(ctx context.Context, mode domain.Mode) (*domain.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.queue.Entries(ctx, mode)
	if err != nil {
		return nil, err
	}

	var a, b *domain.QueueEntry
	switch mode {
	case domain.ModeDate:
		a, b = m.pairByAge(entries)
	case domain.ModeInterests:
		a, b = pairByInterests(entries)
	default:
		a, b = pairOldest(entries)
	}
	if a == nil || b == nil {
		return nil, nil
	}

	for _, side := range []*domain.QueueEntry{a, b} {
		if _, err := m.queue.Remove(ctx, mode, side.Username); err != nil {
			return nil, fmt.Errorf("committing match in %s: %w", mode, err)
		}
	}
	return &domain.Match{A: *a, B: *b}, nil
}

func (m *Matchmaker) WaitingCounts(ctx context.Context) (map[domain.Mode]int64, error) {
	counts := make(map[domain.Mode]int64, len(domain.AllModes()))
	for _, mode := range domain.AllModes() {
		count, err := m.queue.Count(ctx, mode)
		if err != nil {
			return nil, err
		}
		counts[mode] = count
	}
	return counts, nil
}

// pairOldest takes the two longest-waiting entries.
func pairOldest(entries []domain.QueueEntry) (*domain.QueueEntry, *domain.QueueEntry) {
	if len(entries) < 2 {
		return nil, nil
	}
	byJoinTime(entries)
	return &entries[0], &entries[1]
}

// pairByAge implements date-mode pairing. Entries are partitioned by
// gender; the smaller group is the priority ("seeking") side. Its
// longest-waiting entry scans the whole opposite group for the
// candidate with the closest age, first encountered winning ties. The
// first pair within the configured age gap is committed; the scan
// never continues to produce additional pairs in the same round, and a
// later priority entry keeping a better fit for an earlier one is
// accepted as the cost of the greedy pass.
func (m *Matchmaker) pairByAge(entries []domain.QueueEntry) (*domain.QueueEntry, *domain.QueueEntry) {
	women := lo.Filter(entries, func(e domain.QueueEntry, _ int) bool { return e.Gender == domain.GenderFemale })
	men := lo.Filter(entries, func(e domain.QueueEntry, _ int) bool { return e.Gender == domain.GenderMale })
	if len(women) == 0 || len(men) == 0 {
		return nil, nil
	}

	priority, pool := women, men
	if len(men) < len(women) {
		priority, pool = men, women
	}
	byJoinTime(priority)

	for i := range priority {
		seeker := &priority[i]
		candidate := lo.MinBy(pool, func(a, b domain.QueueEntry) bool {
			return ageGap(*seeker, a) < ageGap(*seeker, b)
		})
		if ageGap(*seeker, candidate) <= m.maxAgeGap {
			return seeker, &candidate
		}
	}
	return nil, nil
}

// pairByInterests matches the longest-waiting entry against the
// candidate sharing the most interests; at least one shared interest
// is required.
func pairByInterests(entries []domain.QueueEntry) (*domain.QueueEntry, *domain.QueueEntry) {
	if len(entries) < 2 {
		return nil, nil
	}
	byJoinTime(entries)

	for i := range entries {
		best := -1
		bestShared := 0
		for j := range entries {
			if i == j {
				continue
			}
			shared := len(lo.Intersect(entries[i].Interests, entries[j].Interests))
			if shared > bestShared {
				best, bestShared = j, shared
			}
		}
		if best >= 0 {
			return &entries[i], &entries[best]
		}
	}
	return nil, nil
}

func byJoinTime(entries []domain.QueueEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].JoinedAt < entries[j].JoinedAt })
}

func ageGap(a, b domain.QueueEntry) int {
	gap := a.Age - b.Age
	if gap < 0 {
		return -gap
	}
	return gap
}
