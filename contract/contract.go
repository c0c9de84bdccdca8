//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"sparkchat/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Conn is one client's transport handle (a websocket in production).
// A handle is owned exclusively by a single session; on reconnect it is
// replaced, never shared.
type Conn interface {
	WriteFrame(frame domain.Frame) error
	Close(code int, reason string) error
}

// QueueStore is the per-mode waiting list backing store.
type QueueStore interface {
	// Add upserts an entry; a repeated add for the same user overwrites
	// the previous one.
	Add(ctx context.Context, mode domain.Mode, entry domain.QueueEntry) error
	// Remove deletes a user's entry and reports whether it existed.
	Remove(ctx context.Context, mode domain.Mode, username string) (bool, error)
	// Entries returns every decodable waiting entry for a mode.
	Entries(ctx context.Context, mode domain.Mode) ([]domain.QueueEntry, error)
	Count(ctx context.Context, mode domain.Mode) (int64, error)
}

// SnapshotStore persists broken-session snapshots with a bounded TTL.
type SnapshotStore interface {
	Save(ctx context.Context, username string, profile domain.Profile) error
	// Take consumes the snapshot: it is deleted on successful read.
	Take(ctx context.Context, username string) (domain.Profile, bool, error)
}

type Matchmaker interface {
	// Join enqueues a user in one mode and removes their entries from
	// every other mode (modes are mutually exclusive at join time).
	Join(ctx context.Context, mode domain.Mode, entry domain.QueueEntry) error
	// Enqueue upserts an entry as-is, preserving its JoinedAt. Used by
	// the loop to re-enqueue the surviving side of a broken pair.
	Enqueue(ctx context.Context, mode domain.Mode, entry domain.QueueEntry) error
	// LeaveAll removes the user from every mode, best-effort.
	LeaveAll(ctx context.Context, username string)
	// FindMatch returns at most one committed pair; both entries are
	// removed from the store before the call returns.
	FindMatch(ctx context.Context, mode domain.Mode) (*domain.Match, error)
	WaitingCounts(ctx context.Context) (map[domain.Mode]int64, error)
}
