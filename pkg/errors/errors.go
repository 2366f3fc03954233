package parley_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAlreadyExists    = errors.New("already exists")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Messaging errors
var (
	ErrNotParticipant          = errors.New("not a participant of this conversation")
	ErrBlocked                 = errors.New("conversation is blocked")
	ErrEmptyContent            = errors.New("message content cannot be empty")
	ErrInvalidReplyTarget      = errors.New("reply target is not in this conversation")
	ErrInvalidParticipantCount = errors.New("invalid participant count for conversation type")
	ErrNotSender               = errors.New("only the sender may modify this message")
	ErrMessageDeleted          = errors.New("message has been deleted")
	ErrEditConflict            = errors.New("message was modified concurrently")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
