package entities

import "github.com/pkg/errors"

// Transport level errors. Any of them sends the link back to the supervisor.
var (
	ErrConnect = errors.New("connect error")
	ErrWrite   = errors.New("write error")
	ErrRead    = errors.New("read error")
	ErrTimeout = errors.New("timeout error")
)

var (
	ErrParse            = errors.New("parse error")
	ErrInvalidCommand   = errors.New("invalid command")
	ErrNotRunning       = errors.New("link is not running")
	ErrAlreadyRunning   = errors.New("link is already running")
	ErrCommandQueueFull = errors.New("command queue is full")
)

// IsTransportError reports whether err is one of the transport level errors.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrConnect) ||
		errors.Is(err, ErrWrite) ||
		errors.Is(err, ErrRead) ||
		errors.Is(err, ErrTimeout)
}
