package wetr

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/gateways/wetr/network"
	"github.com/sirupsen/logrus"
)

// randomized interval = RetryInterval * (random value in range [1 - randomizationFactor, 1 + randomizationFactor])
const randomizationFactor = 0.2

// supervisor owns the transport lifecycle. It is the only caller of
// Transport.Open and Transport.Close.
type supervisor struct {
	transport      network.Transport
	wire           *sync.Mutex
	policy         backoff.BackOff
	maxDelay       time.Duration
	connectTimeout time.Duration
	gate           *gate
	log            *logrus.Entry

	// transitions serializes state changes with their callbacks so the
	// boundary sees them in order.
	transitions sync.Mutex

	mu      sync.Mutex
	state   entities.LinkState
	stopped bool
	faults  chan error
}

func newRetryPolicy(conf entities.RetryPolicy) (backoff.BackOff, time.Duration) {
	if conf.Policy == entities.RetryFixed {
		return backoff.NewConstantBackOff(conf.InitialInterval), conf.InitialInterval
	}
	reconnectionBackOff := backoff.NewExponentialBackOff()
	reconnectionBackOff.InitialInterval = conf.InitialInterval
	reconnectionBackOff.MaxInterval = conf.MaxInterval
	reconnectionBackOff.Multiplier = conf.Multiplier
	reconnectionBackOff.RandomizationFactor = randomizationFactor
	reconnectionBackOff.MaxElapsedTime = 0 // never stop trying
	reconnectionBackOff.Reset()
	maxDelay := time.Duration(float64(conf.MaxInterval) * (1 + randomizationFactor))
	return reconnectionBackOff, maxDelay
}

func newSupervisor(transport network.Transport, wire *sync.Mutex, policy backoff.BackOff, maxDelay, connectTimeout time.Duration, gate *gate, log *logrus.Entry) *supervisor {
	return &supervisor{
		transport:      transport,
		wire:           wire,
		policy:         policy,
		maxDelay:       maxDelay,
		connectTimeout: connectTimeout,
		gate:           gate,
		log:            log,
		state:          entities.DisconnectedState(),
		stopped:        true,
		faults:         make(chan error, 1),
	}
}

func (s *supervisor) State() entities.LinkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *supervisor) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && s.state.Status == entities.Connected
}

// reset prepares a fresh run after Start.
func (s *supervisor) reset() {
	s.mu.Lock()
	s.stopped = false
	s.state = entities.DisconnectedState()
	s.faults = make(chan error, 1)
	s.mu.Unlock()
	s.policy.Reset()
}

// Fault reports a transport error seen by the poller or the dispatcher.
// Only the first fault of a connected period counts.
func (s *supervisor) Fault(err error) {
	s.transitions.Lock()
	defer s.transitions.Unlock()

	s.mu.Lock()
	if s.stopped || s.state.Status != entities.Connected {
		s.mu.Unlock()
		return
	}
	state := entities.DegradedState(0, err)
	s.state = state
	faults := s.faults
	s.mu.Unlock()

	s.log.Warnf("link degraded: %v", err)
	s.gate.linkState(state)
	select {
	case faults <- err:
	default:
	}
}

// shutdown moves to Disconnected, reports it and closes the gate so no
// callback fires afterwards.
func (s *supervisor) shutdown() {
	s.transitions.Lock()
	defer s.transitions.Unlock()

	s.mu.Lock()
	s.stopped = true
	s.state = entities.DisconnectedState()
	s.mu.Unlock()
	s.gate.close(entities.DisconnectedState())
}

func (s *supervisor) transition(state entities.LinkState) bool {
	s.transitions.Lock()
	defer s.transitions.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.state = state
	s.mu.Unlock()

	s.log.Infof("link %s", state)
	s.gate.linkState(state)
	return true
}

func (s *supervisor) run(ctx context.Context) {
	s.mu.Lock()
	faults := s.faults
	s.mu.Unlock()

	if !s.transition(entities.ConnectingState()) {
		return
	}
	err := s.open(ctx)
	retries := 0
	for {
		if err == nil {
			retries = 0
			s.policy.Reset()
			if !s.transition(entities.ConnectedState()) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case err = <-faults:
			}
			s.closeLocked()
		} else {
			if ctx.Err() != nil {
				return
			}
			retries++
			s.log.Warnf("reconnection attempt %d failed: %v", retries, err)
			if !s.transition(entities.DegradedState(retries, err)) {
				return
			}
		}

		delay := s.nextDelay()
		s.log.Infof("will retry after %s", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		err = s.open(ctx)
	}
}

func (s *supervisor) nextDelay() time.Duration {
	delay := s.policy.NextBackOff()
	if delay == backoff.Stop || delay > s.maxDelay {
		return s.maxDelay
	}
	return delay
}

func (s *supervisor) open(ctx context.Context) error {
	s.wire.Lock()
	defer s.wire.Unlock()

	openCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()
	return s.transport.Open(openCtx)
}

// closeLocked waits for the wire so an in-flight exchange finishes first.
func (s *supervisor) closeLocked() {
	s.wire.Lock()
	defer s.wire.Unlock()
	s.transport.Close()
}

// closeNow does not wait for the wire; closing unblocks a pending receive.
func (s *supervisor) closeNow() {
	s.transport.Close()
}
