package runtime

import (
	"context"
	"log/slog"
	"sync"

	"sparkchat/contract"
	"sparkchat/domain"
	apperrors "sparkchat/errors"
)

// Registry owns the user -> session mapping and the session lifecycle.
// At most one session per username is registered at any instant; a new
// connection for a registered user is a reconnect, swapping the handle
// atomically with respect to lookups.
//
// The mutex guards only the maps and is never held across a store
// round-trip or a network send.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	// pending holds in-flight setup data posted before the websocket
	// connects; consumed by the first attach.
	pending map[string]domain.Profile

	log        *slog.Logger
	snapshots  contract.SnapshotStore
	matchmaker contract.Matchmaker
	rooms      *RoomTable
}

func NewRegistry(log *slog.Logger, snapshots contract.SnapshotStore, matchmaker contract.Matchmaker) *Registry {
	return &Registry{
		sessions:   make(map[string]*Session),
		pending:    make(map[string]domain.Profile),
		log:        log,
		snapshots:  snapshots,
		matchmaker: matchmaker,
	}
}

// BindRooms wires the room table in after construction; the registry
// and the table reference each other (detach leaves rooms, broadcasts
// resolve members through the registry).
func (r *Registry) BindRooms(rooms *RoomTable) {
	r.rooms = rooms
}

// Attach registers a connection for the user. If a live session
// already exists this is a reconnect: the old handle is closed
// best-effort and replaced, room memberships and matchmaking state
// preserved. A session caught mid-logout does not take the new handle;
// the connection gets a fresh session carrying the old profile
// instead. A new session otherwise resolves its profile from pending
// setup data first, then from a broken-session snapshot (consumed),
// and fails with ErrSetupMissing when neither exists.
func (r *Registry) Attach(ctx context.Context, username string, conn contract.Conn) (*Session, error) {
	r.mu.Lock()
	prev, found := r.sessions[username]
	r.mu.Unlock()
	if found {
		if prev.replaceConn(conn) {
			r.log.Info("User reconnected", "username", username)
			return prev, nil
		}
		// prev's detach is in flight and will close whatever handle it
		// holds; fall through to register a fresh session.
	}

	r.mu.Lock()
	profile, hasPending := r.pending[username]
	if hasPending {
		delete(r.pending, username)
	}
	r.mu.Unlock()

	if !hasPending {
		if found {
			// The logout's snapshot may not be written yet; carry the
			// profile over directly.
			profile = prev.Profile()
		} else {
			snapshot, ok, err := r.snapshots.Take(ctx, username)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, apperrors.ErrSetupMissing
			}
			profile = snapshot
			r.log.Info("User recovered from snapshot", "username", username)
		}
	}

	sess := newSession(username, conn, profile)

	r.mu.Lock()
	if existing, ok := r.sessions[username]; ok && existing != prev {
		// Lost a race against a concurrent attach for the same user;
		// treat ours as the newer connection.
		r.mu.Unlock()
		if existing.replaceConn(conn) {
			return existing, nil
		}
		r.mu.Lock()
	}
	r.sessions[username] = sess
	r.mu.Unlock()

	r.log.Info("User connected", "username", username)
	return sess, nil
}

func (r *Registry) Lookup(username string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[username]
	return sess, ok
}

func (r *Registry) IsConnected(username string) bool {
	_, ok := r.Lookup(username)
	return ok
}

// SetupInfo records in-flight setup data for a user who has not
// connected yet. A repeated post overwrites the previous data.
func (r *Registry) SetupInfo(username string, profile domain.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.pending[username]; ok && profile.Mode == "" {
		profile.Mode = existing.Mode
	}
	r.pending[username] = profile
}

// UpdateMode routes a mode change through the registry so session
// state keeps a single writer. It applies to the live session when one
// exists, otherwise to the pending setup data.
func (r *Registry) UpdateMode(username string, mode domain.Mode) error {
	if sess, ok := r.Lookup(username); ok {
		sess.setMode(mode)
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if profile, ok := r.pending[username]; ok {
		profile.Mode = mode
		r.pending[username] = profile
		return nil
	}
	return apperrors.ErrNotRegistered
}

// Detach is the logout path. Idempotent: the second of two concurrent
// disconnects is a no-op. Effects, in order: mark the session logged
// out, snapshot its profile with TTL and drop it from the registry,
// remove it from every matchmaking queue (best-effort), leave every
// room (peers get user_left, the leaver gets no ack), close the
// handle.
func (r *Registry) Detach(ctx context.Context, username string) {
	sess, ok := r.Lookup(username)
	if !ok {
		return
	}
	r.detach(ctx, sess)
}

// DetachIfCurrent runs the cleanup only when the given handle is still
// the session's current one. A read loop ending after its user already
// reconnected must leave the fresh connection alone.
func (r *Registry) DetachIfCurrent(ctx context.Context, username string, conn contract.Conn) {
	sess, ok := r.Lookup(username)
	if !ok || !sess.UsesConn(conn) {
		return
	}
	r.detach(ctx, sess)
}

func (r *Registry) detach(ctx context.Context, sess *Session) {
	// The logout flag and the map removal flip together under r.mu, so
	// an attach observing the session in the map either swaps its
	// handle before the logout begins or sees the refusal and
	// registers a fresh session. The slot is dropped only while this
	// session still owns it; a raced attach may already have installed
	// a fresh session under the same username.
	r.mu.Lock()
	if !sess.beginLogout() {
		r.mu.Unlock()
		return
	}
	registered := r.sessions[sess.Username] == sess
	if registered {
		delete(r.sessions, sess.Username)
	}
	r.mu.Unlock()

	r.log.Info("User logging out", "username", sess.Username)

	if registered {
		if err := r.snapshots.Save(ctx, sess.Username, sess.Profile()); err != nil {
			r.log.Warn("Could not persist session snapshot", "username", sess.Username, "error", err)
		}
	}

	r.matchmaker.LeaveAll(ctx, sess.Username)

	for _, room := range sess.Rooms() {
		r.rooms.Leave(ctx, sess, room, false)
	}

	sess.closeConn(domain.CloseNormal, domain.ReasonLoggedOut)
}

// cleanupAfterSendFailure is the self-healing path: a handle that
// errors on send gets the same treatment as an explicit logout. The
// idempotence flag prevents a double run when a logout is already in
// progress.
func (r *Registry) cleanupAfterSendFailure(ctx context.Context, sess *Session) {
	r.log.Warn("Send failed, cleaning up session", "username", sess.Username)
	r.detach(ctx, sess)
}
