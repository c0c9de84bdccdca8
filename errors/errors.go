package errors

import "fmt"

var (
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrSetupMissing    = fmt.Errorf("no setup data available for user")
	ErrSetupIncomplete = fmt.Errorf("user setup is not complete")
	ErrNotRegistered   = fmt.Errorf("user is not registered")
	ErrRoomNotFound    = fmt.Errorf("room does not exist")
	ErrNotAMember      = fmt.Errorf("user is not a member of the room")
	ErrInvalidUsername = fmt.Errorf("invalid username format")
	ErrInvalidToken    = fmt.Errorf("invalid or expired token")
)
