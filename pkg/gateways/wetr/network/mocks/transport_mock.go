package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type TransportMock struct {
	mock.Mock
}

func (t *TransportMock) Open(ctx context.Context) error {
	args := t.Called()
	return args.Error(0)
}

func (t *TransportMock) Send(payload []byte) error {
	args := t.Called(payload)
	return args.Error(0)
}

func (t *TransportMock) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	args := t.Called(timeout)
	payload, _ := args.Get(0).([]byte)
	return payload, args.Error(1)
}

func (t *TransportMock) Close() {
	t.Called()
}
