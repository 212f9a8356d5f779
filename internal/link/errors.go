package link

import "errors"

var (
	ErrValidation       = errors.New("invalid link endpoint")
	ErrBind             = errors.New("link server bind failed")
	ErrConnect          = errors.New("link connection failed")
	ErrHandleConversion = errors.New("could not convert socket to descriptor")
	ErrConflict         = errors.New("a live link handle is already registered")

	ErrNotRegistered  = errors.New("link handle is not registered")
	ErrUnknownAttempt = errors.New("unknown link attempt")
	ErrCancelled      = errors.New("link attempt cancelled")
	ErrSuperseded     = errors.New("link attempt superseded")
)

// ErrorKind returns a short diagnostic name for the category of err, or ""
// when err does not belong to the link error taxonomy.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrBind):
		return "bind"
	case errors.Is(err, ErrConnect):
		return "connect"
	case errors.Is(err, ErrHandleConversion):
		return "conversion"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "unknown"
	}
}
