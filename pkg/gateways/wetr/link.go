package wetr

import (
	"context"
	"sync"

	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/gateways/wetr/network"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Observer receives everything the link reports to the presentation layer.
// Callbacks are serialized. They must not call Link.Stop.
type Observer interface {
	OnReading(reading entities.TelemetryReading)
	OnLinkState(state entities.LinkState)
	OnCommandFailed(command entities.Command, reason entities.CommandFailure)
}

// ParseErrorObserver is optionally implemented by observers that want to
// see malformed telemetry.
type ParseErrorObserver interface {
	OnParseError(err error)
}

// Link keeps the connection to one node alive, polls it for telemetry and
// forwards actuator commands.
type Link struct {
	conf      entities.LinkConfig
	log       *logrus.Entry
	transport network.Transport
	wire      sync.Mutex

	gate       *gate
	supervisor *supervisor
	poller     *poller
	dispatcher *dispatcher

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	workers   sync.WaitGroup

	queueMu sync.Mutex
	queue   chan entities.Command
}

// NewLink builds a link with the transport binding named by the endpoint.
// Unset configuration fields take their defaults.
func NewLink(conf entities.LinkConfig, observer Observer, log *logrus.Entry) (*Link, error) {
	conf = utils.ApplyDefaults(conf)
	if err := utils.Validate(conf); err != nil {
		return nil, errors.Wrap(err, "invalid link configuration")
	}
	transport, err := newTransport(conf, log)
	if err != nil {
		return nil, errors.Wrap(err, "new link transport")
	}
	return newLink(conf, transport, observer, log), nil
}

func newTransport(conf entities.LinkConfig, log *logrus.Entry) (network.Transport, error) {
	endpoint := conf.Endpoint
	switch endpoint.Kind {
	case entities.KindStream:
		return network.NewStream(endpoint, conf.ConnectTimeout, log.WithField("Context", "stream")), nil
	case entities.KindPubSub:
		routes := PubSubRoutes(endpoint.Channels)
		switch endpoint.Broker {
		case entities.BrokerMQTT:
			return network.NewMQTT(endpoint, routes, conf.ConnectTimeout, log.WithField("Context", "mqtt")), nil
		case entities.BrokerAMQP:
			return network.NewAMQP(endpoint, routes, conf.ConnectTimeout, log.WithField("Context", "amqp")), nil
		}
		return nil, errors.Errorf("unknown broker %q", endpoint.Broker)
	}
	return nil, errors.Errorf("unknown transport kind %q", endpoint.Kind)
}

func newLink(conf entities.LinkConfig, transport network.Transport, observer Observer, log *logrus.Entry) *Link {
	l := &Link{
		conf:      conf,
		log:       log.WithField("Board", conf.Endpoint.Board),
		transport: transport,
		gate:      &gate{observer: observer},
	}
	policy, maxDelay := newRetryPolicy(conf.Retry)
	l.supervisor = newSupervisor(transport, &l.wire, policy, maxDelay, conf.ConnectTimeout, l.gate, l.log.WithField("Context", "supervisor"))
	l.poller = &poller{
		interval:   conf.PollInterval,
		timeout:    conf.RequestTimeout,
		transport:  transport,
		wire:       &l.wire,
		supervisor: l.supervisor,
		gate:       l.gate,
		duplicates: newDuplicateFilter(conf.DuplicateFilter),
		log:        l.log.WithField("Context", "poller"),
	}
	l.dispatcher = &dispatcher{
		transport:  transport,
		wire:       &l.wire,
		supervisor: l.supervisor,
		gate:       l.gate,
		log:        l.log.WithField("Context", "dispatcher"),
	}
	return l
}

// Start connects in the background and begins polling. It does not block on the network.
func (l *Link) Start() error {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	if l.cancel != nil {
		return entities.ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.gate.open()
	l.supervisor.reset()

	queue := make(chan entities.Command, l.conf.CommandQueueDepth)
	l.queueMu.Lock()
	l.queue = queue
	l.queueMu.Unlock()

	l.log.Infof("starting link to %s", l.conf.Endpoint)
	l.workers.Add(3)
	go func() {
		defer l.workers.Done()
		l.supervisor.run(ctx)
	}()
	go func() {
		defer l.workers.Done()
		l.poller.run(ctx)
	}()
	go func() {
		defer l.workers.Done()
		l.dispatcher.run(ctx, queue)
	}()
	return nil
}

// Stop cancels both timers, closes the transport and reports Disconnected.
// No callback fires after Stop returns.
func (l *Link) Stop() {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	if l.cancel == nil {
		return
	}

	l.queueMu.Lock()
	l.queue = nil
	l.queueMu.Unlock()

	l.supervisor.shutdown()
	l.cancel()
	l.supervisor.closeNow()
	l.workers.Wait()
	// the supervisor may have opened again while we were stopping
	l.supervisor.closeNow()
	l.cancel = nil
	l.log.Infof("stopped link to %s", l.conf.Endpoint)
}

// SubmitCommand queues an actuator command for the dispatcher.
// Before Start or after Stop the link is Disconnected and the command is
// refused with ErrNotRunning instead of OnCommandFailed(NotConnected); no
// transport I/O happens either way. While started but not Connected the
// command is queued and the dispatcher reports NotConnected.
func (l *Link) SubmitCommand(command entities.Command) error {
	if !command.IsActuator() {
		return errors.Wrapf(entities.ErrInvalidCommand, "cannot submit %s", command)
	}
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	if l.queue == nil {
		return entities.ErrNotRunning
	}
	select {
	case l.queue <- command:
		return nil
	default:
		return errors.Wrapf(entities.ErrCommandQueueFull, "dropping %s", command)
	}
}

// State returns a snapshot of the current link state.
func (l *Link) State() entities.LinkState {
	return l.supervisor.State()
}

// LastReading returns the last successfully decoded reading, if any.
func (l *Link) LastReading() (entities.TelemetryReading, bool) {
	return l.poller.lastReading()
}

// gate forwards callbacks to the observer until it is closed.
type gate struct {
	mu       sync.Mutex
	isOpen   bool
	observer Observer
}

func (g *gate) open() {
	g.mu.Lock()
	g.isOpen = true
	g.mu.Unlock()
}

// close delivers a final state and shuts the gate.
func (g *gate) close(final entities.LinkState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isOpen {
		g.observer.OnLinkState(final)
	}
	g.isOpen = false
}

func (g *gate) reading(reading entities.TelemetryReading) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isOpen {
		g.observer.OnReading(reading)
	}
}

func (g *gate) linkState(state entities.LinkState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isOpen {
		g.observer.OnLinkState(state)
	}
}

func (g *gate) commandFailed(command entities.Command, reason entities.CommandFailure) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isOpen {
		g.observer.OnCommandFailed(command, reason)
	}
}

func (g *gate) parseError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if observer, ok := g.observer.(ParseErrorObserver); g.isOpen && ok {
		observer.OnParseError(err)
	}
}
