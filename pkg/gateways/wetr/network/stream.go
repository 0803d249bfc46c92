package network

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// The firmware answers each request with a single write.
const streamReadBufferSize = 1024

// Stream is the direct TCP binding.
type Stream struct {
	address        string
	connectTimeout time.Duration
	log            *logrus.Entry

	mu   sync.Mutex
	conn net.Conn
}

func NewStream(endpoint entities.DeviceEndpoint, connectTimeout time.Duration, log *logrus.Entry) *Stream {
	return &Stream{address: endpoint.Address(), connectTimeout: connectTimeout, log: log}
}

func (s *Stream) Open(ctx context.Context) error {
	dialer := net.Dialer{Timeout: s.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return errors.Wrapf(entities.ErrConnect, "dial %s: %v", s.address, err)
	}

	s.mu.Lock()
	previous := s.conn
	s.conn = conn
	s.mu.Unlock()
	if previous != nil {
		_ = previous.Close()
	}
	s.log.Debugf("connected to %s", s.address)
	return nil
}

func (s *Stream) Send(payload []byte) error {
	conn := s.current()
	if conn == nil {
		return errors.Wrap(entities.ErrWrite, "stream is not open")
	}
	if err := conn.SetWriteDeadline(time.Now().Add(s.connectTimeout)); err != nil {
		return errors.Wrapf(entities.ErrWrite, "set write deadline: %v", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return errors.Wrapf(entities.ErrWrite, "write %q: %v", payload, err)
	}
	return nil
}

func (s *Stream) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	conn := s.current()
	if conn == nil {
		return nil, errors.Wrap(entities.ErrRead, "stream is not open")
	}
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, errors.Wrapf(entities.ErrRead, "set read deadline: %v", err)
	}

	buffer := make([]byte, streamReadBufferSize)
	n, err := conn.Read(buffer)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, errors.Wrapf(entities.ErrTimeout, "no response within %s", timeout)
		}
		return nil, errors.Wrapf(entities.ErrRead, "read: %v", err)
	}
	return buffer[:n], nil
}

func (s *Stream) Close() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
		s.log.Debugf("closed connection to %s", s.address)
	}
}

func (s *Stream) current() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}
