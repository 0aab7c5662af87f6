package camera

import "fmt"

// ErrorKind classifies failures delivered through the listener error event.
type ErrorKind int

const (
	// ErrorKindStart is an unexpected failure while opening the camera.
	ErrorKindStart ErrorKind = iota + 1
	// ErrorKindFallback means the legacy fallback backend failed to start too.
	ErrorKindFallback
	// ErrorKindCapture is a failed hardware capture or result conversion.
	ErrorKindCapture
	// ErrorKindDevice is a device-level failure reported by a backend.
	ErrorKindDevice
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindStart:
		return "start"
	case ErrorKindFallback:
		return "fallback"
	case ErrorKindCapture:
		return "capture"
	case ErrorKindDevice:
		return "device"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the single error shape hosts receive. Message is what a user may see.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError builds an Error whose message is taken from err.
func NewError(kind ErrorKind, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }
