package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// AMQP is the publish/subscribe binding over a RabbitMQ direct exchange.
// Channel names are routing keys on that exchange.
type AMQP struct {
	url           string
	exchange      string
	responseKey   string
	routes        Routes
	timeout       time.Duration
	log           *logrus.Entry
	inbox         *inbox
	newConnection func() connection

	mu      sync.Mutex
	conn    connection
	session *latch
}

func NewAMQP(endpoint entities.DeviceEndpoint, routes Routes, timeout time.Duration, log *logrus.Entry) *AMQP {
	return &AMQP{
		url:         fmt.Sprintf("amqp://%s/", endpoint.Address()),
		exchange:    endpoint.Channels.Exchange,
		responseKey: endpoint.Channels.Response,
		routes:      routes,
		timeout:     timeout,
		log:         log,
		inbox:       newInbox(),
		newConnection: func() connection {
			return NewAmqpConnection(timeout)
		},
	}
}

func (a *AMQP) Open(ctx context.Context) error {
	conn := a.newConnection()
	if err := conn.connect(ctx, a.url); err != nil {
		return errors.Wrapf(entities.ErrConnect, "dial %s: %v", a.url, err)
	}
	deliveries, err := a.subscribe(conn)
	if err != nil {
		_ = conn.close()
		return errors.Wrapf(entities.ErrConnect, "subscribe %s/%s: %v", a.exchange, a.responseKey, err)
	}

	session := newLatch()
	a.inbox.drain()
	go a.watch(conn.notifyClose(), session)
	go a.convertDeliveries(deliveries, session)

	a.mu.Lock()
	previous := a.conn
	a.conn, a.session = conn, session
	a.mu.Unlock()
	if previous != nil {
		_ = previous.close()
	}
	a.log.Debugf("connected to %s, consuming %s/%s", a.url, a.exchange, a.responseKey)
	return nil
}

func (a *AMQP) subscribe(conn connection) (<-chan amqp.Delivery, error) {
	if err := conn.exchangeDeclare(a.exchange); err != nil {
		return nil, errors.Wrap(err, "declare exchange")
	}
	queueName, err := conn.queueDeclare()
	if err != nil {
		return nil, errors.Wrap(err, "declare queue")
	}
	if err := conn.queueBind(queueName, a.responseKey, a.exchange); err != nil {
		return nil, errors.Wrap(err, "bind queue")
	}
	return conn.consume(queueName, "wetr-"+uuid.NewString())
}

func (a *AMQP) Send(payload []byte) error {
	conn, session := a.current()
	if conn == nil || session.tripped() {
		return errors.Wrap(entities.ErrWrite, "amqp session is not open")
	}
	route, ok := a.routes[string(payload)]
	if !ok {
		return errors.Wrapf(entities.ErrWrite, "no route for %q", payload)
	}
	if route.ExpectsReply {
		a.inbox.drain()
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := conn.publish(ctx, a.exchange, route.Channel, route.Payload); err != nil {
		return errors.Wrapf(entities.ErrWrite, "publish %s/%s: %v", a.exchange, route.Channel, err)
	}
	return nil
}

func (a *AMQP) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	conn, session := a.current()
	if conn == nil {
		return nil, errors.Wrap(entities.ErrRead, "amqp session is not open")
	}
	return a.inbox.wait(ctx, timeout, session.done())
}

func (a *AMQP) Close() {
	a.mu.Lock()
	conn, session := a.conn, a.session
	a.conn, a.session = nil, nil
	a.mu.Unlock()
	if session != nil {
		session.trip()
	}
	if conn != nil {
		_ = conn.close()
		a.log.Debugf("disconnected from %s", a.url)
	}
}

func (a *AMQP) current() (connection, *latch) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn, a.session
}

func (a *AMQP) watch(closed <-chan *amqp.Error, session *latch) {
	select {
	case reason, ok := <-closed:
		if ok && reason != nil {
			a.log.Warnf("connection to %s closed: %v", a.url, reason)
		}
		session.trip()
	case <-session.done():
	}
}

func (a *AMQP) convertDeliveries(deliveries <-chan amqp.Delivery, session *latch) {
	for d := range deliveries {
		a.inbox.deliver(d.Body)
	}
	session.trip()
}
