package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"sparkchat/contract"
	"sparkchat/domain"
	apperrors "sparkchat/errors"
	"sparkchat/runtime"
)

// IChatService is the surface the transport layer talks to. It hides
// the registry, the room table and the matchmaker behind one facade so
// handlers stay thin.
type IChatService interface {
	Attach(ctx context.Context, username string, conn contract.Conn) error
	DetachIfCurrent(ctx context.Context, username string, conn contract.Conn)
	Logout(ctx context.Context, username string)
	IsConnected(username string) bool
	HandleFrame(ctx context.Context, username string, raw []byte)
	SetupInfo(username string, profile domain.Profile)
	SetupMode(username string, mode domain.Mode) error
	JoinMatchmaking(ctx context.Context, username string) error
	WaitingCounts(ctx context.Context) (map[domain.Mode]int64, error)
}

type ChatService struct {
	log        *slog.Logger
	registry   *runtime.Registry
	rooms      *runtime.RoomTable
	matchmaker contract.Matchmaker
}

func NewChatService(log *slog.Logger, registry *runtime.Registry,
	rooms *runtime.RoomTable, matchmaker contract.Matchmaker) *ChatService {
	return &ChatService{log: log, registry: registry, rooms: rooms, matchmaker: matchmaker}
}

func (s *ChatService) Attach(ctx context.Context, username string, conn contract.Conn) error {
	_, err := s.registry.Attach(ctx, username, conn)
	return err
}

func (s *ChatService) DetachIfCurrent(ctx context.Context, username string, conn contract.Conn) {
	s.registry.DetachIfCurrent(ctx, username, conn)
}

func (s *ChatService) Logout(ctx context.Context, username string) {
	s.registry.Detach(ctx, username)
}

func (s *ChatService) IsConnected(username string) bool {
	return s.registry.IsConnected(username)
}

// HandleFrame dispatches one inbound client frame. Malformed payloads
// are logged and dropped; the connection is never terminated for them.
func (s *ChatService) HandleFrame(ctx context.Context, username string, raw []byte) {
	sess, ok := s.registry.Lookup(username)
	if !ok {
		return
	}

	var frame domain.ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.log.Warn("Dropping malformed frame", "username", username, "error", err)
		return
	}

	switch frame.Action {
	case domain.ActionJoin:
		if frame.Room == "" {
			s.log.Warn("Dropping join without room", "username", username)
			return
		}
		s.rooms.Join(sess, frame.Room)
	case domain.ActionLeaveRoom:
		if frame.Room == "" {
			s.log.Warn("Dropping leave_room without room", "username", username)
			return
		}
		s.rooms.Leave(ctx, sess, frame.Room, true)
	case domain.ActionSend:
		if frame.Room == "" || frame.Message == "" {
			s.log.Warn("Dropping send without room or message", "username", username)
			return
		}
		if err := s.rooms.Send(ctx, sess, frame.Room, frame.Message); err != nil {
			sess.NotifyError(sendErrorMessage(err, frame.Room))
		}
	default:
		s.log.Warn("Dropping frame with unknown action", "username", username, "action", frame.Action)
	}
}

func sendErrorMessage(err error, room string) string {
	switch err {
	case apperrors.ErrRoomNotFound:
		return fmt.Sprintf("Room %s does not exist", room)
	case apperrors.ErrNotAMember:
		return "You are not in this room"
	}
	return err.Error()
}

func (s *ChatService) SetupInfo(username string, profile domain.Profile) {
	s.registry.SetupInfo(username, profile)
}

func (s *ChatService) SetupMode(username string, mode domain.Mode) error {
	return s.registry.UpdateMode(username, mode)
}

// JoinMatchmaking enqueues a live, fully set-up session into its
// current mode's queue, clearing its entries from every other mode.
func (s *ChatService) JoinMatchmaking(ctx context.Context, username string) error {
	sess, ok := s.registry.Lookup(username)
	if !ok {
		return apperrors.ErrNotRegistered
	}
	profile := sess.Profile()
	if !sess.Active() || !profile.Complete() {
		return apperrors.ErrSetupIncomplete
	}

	entry := domain.QueueEntry{
		Username:  username,
		Gender:    profile.Gender,
		Age:       profile.Age,
		Interests: profile.Interests,
		JoinedAt:  time.Now().UnixNano(),
	}
	return s.matchmaker.Join(ctx, profile.Mode, entry)
}

func (s *ChatService) WaitingCounts(ctx context.Context) (map[domain.Mode]int64, error) {
	return s.matchmaker.WaitingCounts(ctx)
}
