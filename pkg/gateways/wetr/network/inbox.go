package network

import (
	"context"
	"sync"
	"time"

	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
)

// inbox turns asynchronously delivered broker messages into a synchronous
// wait. It keeps only the most recent message.
type inbox struct {
	messages chan []byte
}

func newInbox() *inbox {
	return &inbox{messages: make(chan []byte, 1)}
}

func (in *inbox) deliver(payload []byte) {
	for {
		select {
		case in.messages <- payload:
			return
		default:
		}
		// full: drop the older message
		select {
		case <-in.messages:
		default:
		}
	}
}

// drain discards a response left behind by an abandoned request.
func (in *inbox) drain() {
	for {
		select {
		case <-in.messages:
		default:
			return
		}
	}
}

func (in *inbox) wait(ctx context.Context, timeout time.Duration, closed <-chan struct{}) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case payload := <-in.messages:
		return payload, nil
	case <-timer.C:
		return nil, errors.Wrapf(entities.ErrTimeout, "no response within %s", timeout)
	case <-closed:
		return nil, errors.Wrap(entities.ErrRead, "transport closed")
	case <-ctx.Done():
		return nil, errors.Wrap(entities.ErrRead, ctx.Err().Error())
	}
}

// latch is closed once, when a broker session ends for any reason.
type latch struct {
	once sync.Once
	ch   chan struct{}
}

func newLatch() *latch {
	return &latch{ch: make(chan struct{})}
}

func (l *latch) trip() {
	l.once.Do(func() { close(l.ch) })
}

func (l *latch) done() <-chan struct{} {
	return l.ch
}

func (l *latch) tripped() bool {
	select {
	case <-l.ch:
		return true
	default:
		return false
	}
}
