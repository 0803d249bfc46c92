package entities

import "fmt"

type LinkStatus int

const (
	Disconnected LinkStatus = iota
	Connecting
	Connected
	Degraded
)

func (s LinkStatus) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Degraded:
		return "degraded"
	default:
		return "disconnected"
	}
}

// LinkState is a snapshot of the connectivity status. RetryCount and
// LastError are only meaningful while Degraded.
type LinkState struct {
	Status     LinkStatus
	RetryCount int
	LastError  error
}

func (s LinkState) String() string {
	if s.Status != Degraded {
		return s.Status.String()
	}
	return fmt.Sprintf("degraded (retry %d): %v", s.RetryCount, s.LastError)
}

func DisconnectedState() LinkState { return LinkState{Status: Disconnected} }
func ConnectingState() LinkState   { return LinkState{Status: Connecting} }
func ConnectedState() LinkState    { return LinkState{Status: Connected} }

func DegradedState(retryCount int, lastError error) LinkState {
	return LinkState{Status: Degraded, RetryCount: retryCount, LastError: lastError}
}
