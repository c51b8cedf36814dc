package types

import "errors"

// Failure taxonomy reported synchronously to the calling connection. These
// never crash a room or affect other participants; transport drops are state
// transitions, not errors.
var (
	ErrUnauthorized   = errors.New("missing or invalid identity")
	ErrForbidden      = errors.New("role not permitted to perform this action")
	ErrRoomClosed     = errors.New("session has ended")
	ErrAlreadySharing = errors.New("another participant is already sharing their screen")
	ErrNotFound       = errors.New("unknown room or participant")
	ErrValidation     = errors.New("invalid request payload")
)

// ErrorCode maps a taxonomy error to its wire code. Unrecognized errors are
// reported as "internal" without leaking detail to the client.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrRoomClosed):
		return "room-closed"
	case errors.Is(err, ErrAlreadySharing):
		return "already-sharing"
	case errors.Is(err, ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrValidation):
		return "validation-error"
	default:
		return "internal"
	}
}
