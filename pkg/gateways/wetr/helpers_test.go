package wetr

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const validTelemetry = "Temperature:23.5 Humidity:60.2 SoilMoisture:45.0 FanSpeed:80.0"

var validReading = entities.TelemetryReading{Temperature: 23.5, Humidity: 60.2, SoilMoisture: 45.0, FanSpeed: 80.0}

func nullLog() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logger.WithField("Context", "test")
}

func testConfig() entities.LinkConfig {
	return utils.ApplyDefaults(entities.LinkConfig{
		Endpoint:       entities.DeviceEndpoint{Host: "127.0.0.1", Port: 1, Kind: entities.KindStream},
		PollInterval:   20 * time.Millisecond,
		RequestTimeout: 50 * time.Millisecond,
		ConnectTimeout: 200 * time.Millisecond,
		Retry: entities.RetryPolicy{
			Policy:          entities.RetryFixed,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     10 * time.Millisecond,
		},
	})
}

type commandFailure struct {
	Command entities.Command
	Reason  entities.CommandFailure
}

// recorder is an Observer that keeps every callback and counts the ones
// arriving after it was sealed.
type recorder struct {
	mu          sync.Mutex
	readings    []entities.TelemetryReading
	states      []entities.LinkState
	failures    []commandFailure
	parseErrors []error
	sealed      bool
	late        int
}

func (r *recorder) OnReading(reading entities.TelemetryReading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count()
	r.readings = append(r.readings, reading)
}

func (r *recorder) OnLinkState(state entities.LinkState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count()
	r.states = append(r.states, state)
}

func (r *recorder) OnCommandFailed(command entities.Command, reason entities.CommandFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count()
	r.failures = append(r.failures, commandFailure{command, reason})
}

func (r *recorder) OnParseError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count()
	r.parseErrors = append(r.parseErrors, err)
}

func (r *recorder) count() {
	if r.sealed {
		r.late++
	}
}

func (r *recorder) seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *recorder) lateCallbacks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.late
}

func (r *recorder) readingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.readings)
}

func (r *recorder) allReadings() []entities.TelemetryReading {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entities.TelemetryReading(nil), r.readings...)
}

func (r *recorder) allFailures() []commandFailure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]commandFailure(nil), r.failures...)
}

func (r *recorder) parseErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.parseErrors)
}

func (r *recorder) statuses() []entities.LinkStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	statuses := make([]entities.LinkStatus, len(r.states))
	for i, state := range r.states {
		statuses[i] = state.Status
	}
	return statuses
}

func (r *recorder) lastState() entities.LinkState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return entities.DisconnectedState()
	}
	return r.states[len(r.states)-1]
}

func (r *recorder) allStates() []entities.LinkState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entities.LinkState(nil), r.states...)
}

// fakeTransport scripts the node side and records how the wire is used.
type fakeTransport struct {
	mu       sync.Mutex
	openErrs []error
	opens    int
	closes   int
	sendErr  error
	sends    [][]byte
	receive  func(ctx context.Context, timeout time.Duration) ([]byte, error)

	exchangeOpen atomic.Bool
	overlaps     atomic.Int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		receive: func(context.Context, time.Duration) ([]byte, error) {
			return []byte(validTelemetry), nil
		},
	}
}

func (f *fakeTransport) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if len(f.openErrs) > 0 {
		err := f.openErrs[0]
		f.openErrs = f.openErrs[1:]
		return err
	}
	return nil
}

func (f *fakeTransport) Send(payload []byte) error {
	if f.exchangeOpen.Load() {
		f.overlaps.Add(1)
	}
	if bytes.Equal(payload, EncodeRequest()) {
		f.exchangeOpen.Store(true)
	}
	f.mu.Lock()
	f.sends = append(f.sends, payload)
	err := f.sendErr
	f.mu.Unlock()
	if err != nil {
		f.exchangeOpen.Store(false)
	}
	return err
}

func (f *fakeTransport) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	defer f.exchangeOpen.Store(false)
	f.mu.Lock()
	receive := f.receive
	f.mu.Unlock()
	return receive(ctx, timeout)
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *fakeTransport) setReceive(receive func(ctx context.Context, timeout time.Duration) ([]byte, error)) {
	f.mu.Lock()
	f.receive = receive
	f.mu.Unlock()
}

func (f *fakeTransport) setSendErr(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sends...)
}

func (f *fakeTransport) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeTransport) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// stalled blocks until the timeout, like a node that never answers.
func stalled(ctx context.Context, timeout time.Duration) ([]byte, error) {
	select {
	case <-time.After(timeout):
		return nil, errors.Wrap(entities.ErrTimeout, "stalled")
	case <-ctx.Done():
		return nil, errors.Wrap(entities.ErrRead, "cancelled")
	}
}
