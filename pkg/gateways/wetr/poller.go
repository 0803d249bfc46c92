package wetr

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/gateways/wetr/network"
	"github.com/sirupsen/logrus"
)

// poller issues one telemetry request per tick, never two at once.
type poller struct {
	interval   time.Duration
	timeout    time.Duration
	transport  network.Transport
	wire       *sync.Mutex
	supervisor *supervisor
	gate       *gate
	duplicates *duplicateFilter
	log        *logrus.Entry

	inFlight atomic.Bool
	cycles   sync.WaitGroup

	lastMu  sync.RWMutex
	last    entities.TelemetryReading
	hasLast bool
}

func (p *poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.cycles.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *poller) tick(ctx context.Context) {
	if !p.supervisor.connected() {
		p.log.Debug("link not connected, skipping tick")
		return
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		p.log.Debug("previous request still in flight, skipping tick")
		return
	}
	p.cycles.Add(1)
	go func() {
		defer p.cycles.Done()
		defer p.inFlight.Store(false)
		p.pollOnce(ctx)
	}()
}

func (p *poller) pollOnce(ctx context.Context) {
	payload, attempted, err := p.request(ctx)
	if !attempted || ctx.Err() != nil {
		return
	}
	if err != nil {
		p.log.Warnf("telemetry request failed: %v", err)
		p.supervisor.Fault(err)
		return
	}

	reading, err := DecodeReading(payload)
	if err != nil {
		p.log.Warnf("discarding malformed telemetry %q: %v", payload, err)
		p.gate.parseError(err)
		return
	}
	p.remember(reading)
	if p.duplicates != nil && p.duplicates.seen(reading) {
		p.log.Debugf("reading %+v already delivered", reading)
		return
	}
	p.log.Debugf("reading %+v", reading)
	p.gate.reading(reading)
}

func (p *poller) request(ctx context.Context) ([]byte, bool, error) {
	p.wire.Lock()
	defer p.wire.Unlock()

	if !p.supervisor.connected() || ctx.Err() != nil {
		return nil, false, nil
	}
	if err := p.transport.Send(EncodeRequest()); err != nil {
		return nil, true, err
	}
	payload, err := p.transport.Receive(ctx, p.timeout)
	return payload, true, err
}

func (p *poller) remember(reading entities.TelemetryReading) {
	p.lastMu.Lock()
	p.last, p.hasLast = reading, true
	p.lastMu.Unlock()
}

func (p *poller) lastReading() (entities.TelemetryReading, bool) {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	return p.last, p.hasLast
}
