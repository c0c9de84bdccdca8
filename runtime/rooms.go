package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"sparkchat/domain"
	apperrors "sparkchat/errors"
	"sparkchat/moderation"
)

// RoomTable owns the room -> member-set mapping. Rooms are ephemeral:
// created implicitly on first join, destroyed when the last member
// leaves, never persisted. Members are held as usernames only and
// resolved back through the registry at send time; a member who is no
// longer registered is simply skipped.
//
// The mutex guards only the map and is never held across a send.
type RoomTable struct {
	mu    sync.Mutex
	rooms map[string]map[string]struct{}

	log       *slog.Logger
	registry  *Registry
	moderator *moderation.Moderator
}

// NewRoomTable builds the table and wires it to the registry both
// ways. moderator may be nil to relay messages unfiltered.
func NewRoomTable(log *slog.Logger, registry *Registry, moderator *moderation.Moderator) *RoomTable {
	t := &RoomTable{
		rooms:     make(map[string]map[string]struct{}),
		log:       log,
		registry:  registry,
		moderator: moderator,
	}
	registry.BindRooms(t)
	return t
}

// Join adds the session to the room, creating it if absent, and
// acknowledges the caller. Membership is recorded on both sides: the
// room's member set and the session's ordered membership list.
func (t *RoomTable) Join(sess *Session, room string) {
	t.mu.Lock()
	members, ok := t.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		t.rooms[room] = members
	}
	members[sess.Username] = struct{}{}
	t.mu.Unlock()

	sess.addRoom(room)
	_ = sess.Notify(domain.ActionJoin, fmt.Sprintf("Joined room %s", room))
}

// Leave removes membership on both sides. An empty room is destroyed.
// Remaining members always receive user_left; notify only controls
// whether the leaver gets their own acknowledgment (suppressed during
// logout cleanup).
func (t *RoomTable) Leave(ctx context.Context, sess *Session, room string, notify bool) {
	if !sess.removeRoom(room) {
		return
	}

	t.mu.Lock()
	var remaining []string
	if members, ok := t.rooms[room]; ok {
		delete(members, sess.Username)
		if len(members) == 0 {
			delete(t.rooms, room)
		} else {
			for username := range members {
				remaining = append(remaining, username)
			}
		}
	}
	t.mu.Unlock()

	if notify {
		_ = sess.Notify(domain.ActionLeaveRoom, fmt.Sprintf("Left room %s", room))
	}
	for _, username := range remaining {
		t.deliver(ctx, username, domain.Ack(domain.ActionUserLeft, sess.Username))
	}
}

// Send relays a message to every other current member of the room.
// The sender must be a member on both sides of the mapping. Delivery
// is best-effort, at most once per recipient; one failing recipient
// never aborts the others, it only triggers that recipient's cleanup.
func (t *RoomTable) Send(ctx context.Context, sess *Session, room, message string) error {
	t.mu.Lock()
	members, ok := t.rooms[room]
	if !ok {
		t.mu.Unlock()
		return apperrors.ErrRoomNotFound
	}
	_, isMember := members[sess.Username]
	recipients := make([]string, 0, len(members))
	for username := range members {
		if username != sess.Username {
			recipients = append(recipients, username)
		}
	}
	t.mu.Unlock()

	if !isMember || !sess.inRoom(room) {
		return apperrors.ErrNotAMember
	}

	if t.moderator != nil {
		message = t.moderator.Censor(message)
	}
	frame := domain.Ack(domain.ActionReceiveMessage, domain.ReceivedMessage{
		Message:  message,
		FromUser: sess.Username,
		FromRoom: room,
	})
	for _, username := range recipients {
		t.deliver(ctx, username, frame)
	}
	return nil
}

// deliver resolves a member through the registry and writes the frame.
// An unregistered member is treated as already cleaned up, not an
// error; a transport failure hands the recipient to the registry's
// cleanup path.
func (t *RoomTable) deliver(ctx context.Context, username string, frame domain.Frame) {
	peer, ok := t.registry.Lookup(username)
	if !ok {
		return
	}
	if err := peer.Deliver(frame); err != nil {
		t.log.Warn("Could not deliver frame", "username", username, "action", frame.Action, "error", err)
		t.registry.cleanupAfterSendFailure(ctx, peer)
	}
}

// MemberCount reports the current size of a room, zero when the room
// does not exist.
func (t *RoomTable) MemberCount(room string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms[room])
}
