package network

import (
	"context"
	"time"
)

// Transport is a bidirectional byte channel to the node.
// Open and Close belong to the link supervisor; Send and Receive are never
// called concurrently with each other. Close must be safe to call at any
// time, including while a Receive is blocked, and must unblock it.
type Transport interface {
	Open(ctx context.Context) error
	Send(payload []byte) error
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close()
}

// Route tells a pub/sub binding where a stream token goes and what it carries.
type Route struct {
	Channel      string
	Payload      []byte
	ExpectsReply bool
}

// Routes is keyed by the stream token handed to Send.
type Routes map[string]Route
