package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sparkchat/contract"
	"sparkchat/domain"
	"sparkchat/runtime"
)

// MatchLoopWorker polls each configured mode's queue, resolves
// pairings against the session registry and notifies both sides. It
// runs under the Supervisor: any error returned here is one failed
// scheduling tick, logged and restarted after the restart interval,
// never a dead process.
type MatchLoopWorker struct {
	log        *slog.Logger
	matchmaker contract.Matchmaker
	registry   *runtime.Registry
	modes      []domain.Mode
	// tickDelay bounds CPU usage and store query rate between passes;
	// notifyDelay spaces out consecutive matches. Tunables, not
	// correctness properties.
	tickDelay   time.Duration
	notifyDelay time.Duration
}

func NewMatchLoopWorker(log *slog.Logger, matchmaker contract.Matchmaker, registry *runtime.Registry,
	modes []domain.Mode, tickDelay, notifyDelay time.Duration) *MatchLoopWorker {
	return &MatchLoopWorker{
		log:         log,
		matchmaker:  matchmaker,
		registry:    registry,
		modes:       modes,
		tickDelay:   tickDelay,
		notifyDelay: notifyDelay,
	}
}

func (w *MatchLoopWorker) Run(ctx context.Context) error {
	w.log.Info("Starting matchmaking loop", "modes", w.modes)
	for {
		for _, mode := range w.modes {
			if err := ctx.Err(); err != nil {
				return err
			}
			matched, err := w.tick(ctx, mode)
			if err != nil {
				return err
			}
			if matched {
				if err := sleep(ctx, w.notifyDelay); err != nil {
					return err
				}
			}
		}
		if err := sleep(ctx, w.tickDelay); err != nil {
			return err
		}
	}
}

// tick asks for one pair in the mode and reconciles it against the
// registry. The gap between the queue returning a pair and registry
// resolution is unavoidable; the rule is fixed: re-enqueue the side
// that is still live, drop the vanished one (its entry was already
// consumed), skip notification and try again next tick.
func (w *MatchLoopWorker) tick(ctx context.Context, mode domain.Mode) (bool, error) {
	match, err := w.matchmaker.FindMatch(ctx, mode)
	if err != nil {
		return false, fmt.Errorf("matchmaking tick (%s): %w", mode, err)
	}
	if match == nil {
		return false, nil
	}

	sessA, okA := w.registry.Lookup(match.A.Username)
	sessB, okB := w.registry.Lookup(match.B.Username)
	liveA := okA && sessA.Active()
	liveB := okB && sessB.Active()

	if !liveA || !liveB {
		if liveA && !liveB {
			w.requeue(ctx, mode, match.A)
		}
		if liveB && !liveA {
			w.requeue(ctx, mode, match.B)
		}
		return true, nil
	}

	room := uuid.NewString()
	w.log.Info("Match found", "mode", mode, "room", room,
		"users", []string{match.A.Username, match.B.Username})

	w.notify(ctx, sessA, room, match.B)
	w.notify(ctx, sessB, room, match.A)
	return true, nil
}

func (w *MatchLoopWorker) requeue(ctx context.Context, mode domain.Mode, entry domain.QueueEntry) {
	if err := w.matchmaker.Enqueue(ctx, mode, entry); err != nil {
		w.log.Warn("Could not re-enqueue user after broken pairing",
			"mode", mode, "username", entry.Username, "error", err)
	}
}

func (w *MatchLoopWorker) notify(ctx context.Context, sess *runtime.Session, room string, peer domain.QueueEntry) {
	content := domain.MatchedContent{
		Room: room,
		User: domain.Peer{Username: peer.Username, Gender: peer.Gender},
	}
	if err := sess.Notify(domain.ActionMatched, content); err != nil {
		w.log.Warn("Could not deliver match notification", "username", sess.Username, "error", err)
		w.registry.Detach(ctx, sess.Username)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
