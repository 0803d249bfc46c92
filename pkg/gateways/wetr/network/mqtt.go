package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// commands are best effort, so everything goes at most once
	mqttQoS             = 0
	mqttDisconnectQuiet = 250 // ms
)

// mqttClient is the part of mqtt.Client the binding uses.
type mqttClient interface {
	Connect() mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT is the publish/subscribe binding over an MQTT broker.
type MQTT struct {
	broker        string
	responseTopic string
	routes        Routes
	timeout       time.Duration
	log           *logrus.Entry
	inbox         *inbox
	newClient     func(*mqtt.ClientOptions) mqttClient

	mu      sync.Mutex
	client  mqttClient
	session *latch
}

func NewMQTT(endpoint entities.DeviceEndpoint, routes Routes, timeout time.Duration, log *logrus.Entry) *MQTT {
	return &MQTT{
		broker:        fmt.Sprintf("tcp://%s", endpoint.Address()),
		responseTopic: endpoint.Channels.Response,
		routes:        routes,
		timeout:       timeout,
		log:           log,
		inbox:         newInbox(),
		newClient: func(options *mqtt.ClientOptions) mqttClient {
			return mqtt.NewClient(options)
		},
	}
}

func (m *MQTT) Open(ctx context.Context) error {
	session := newLatch()
	options := mqtt.NewClientOptions().
		AddBroker(m.broker).
		SetClientID("wetr-" + uuid.NewString()).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectTimeout(m.timeout).
		SetWriteTimeout(m.timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			m.log.Warnf("connection to %s lost: %v", m.broker, err)
			session.trip()
		})
	client := m.newClient(options)

	if err := m.wait(ctx, client.Connect()); err != nil {
		// a connect still pending in paho must not leave a session behind
		client.Disconnect(mqttDisconnectQuiet)
		return errors.Wrapf(entities.ErrConnect, "connect %s: %v", m.broker, err)
	}
	m.inbox.drain()
	if err := m.wait(ctx, client.Subscribe(m.responseTopic, mqttQoS, m.onResponse)); err != nil {
		client.Disconnect(mqttDisconnectQuiet)
		return errors.Wrapf(entities.ErrConnect, "subscribe %s: %v", m.responseTopic, err)
	}

	m.mu.Lock()
	previous := m.client
	m.client, m.session = client, session
	m.mu.Unlock()
	if previous != nil {
		previous.Disconnect(mqttDisconnectQuiet)
	}
	m.log.Debugf("connected to %s, subscribed to %s", m.broker, m.responseTopic)
	return nil
}

func (m *MQTT) Send(payload []byte) error {
	client, session := m.current()
	if client == nil || session.tripped() {
		return errors.Wrap(entities.ErrWrite, "mqtt session is not open")
	}
	route, ok := m.routes[string(payload)]
	if !ok {
		return errors.Wrapf(entities.ErrWrite, "no route for %q", payload)
	}
	if route.ExpectsReply {
		m.inbox.drain()
	}
	if err := m.wait(context.Background(), client.Publish(route.Channel, mqttQoS, false, route.Payload)); err != nil {
		return errors.Wrapf(entities.ErrWrite, "publish %s: %v", route.Channel, err)
	}
	return nil
}

func (m *MQTT) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	client, session := m.current()
	if client == nil {
		return nil, errors.Wrap(entities.ErrRead, "mqtt session is not open")
	}
	return m.inbox.wait(ctx, timeout, session.done())
}

func (m *MQTT) Close() {
	m.mu.Lock()
	client, session := m.client, m.session
	m.client, m.session = nil, nil
	m.mu.Unlock()
	if session != nil {
		session.trip()
	}
	if client != nil {
		client.Disconnect(mqttDisconnectQuiet)
		m.log.Debugf("disconnected from %s", m.broker)
	}
}

func (m *MQTT) onResponse(_ mqtt.Client, message mqtt.Message) {
	m.inbox.deliver(message.Payload())
}

func (m *MQTT) current() (mqttClient, *latch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client, m.session
}

func (m *MQTT) wait(ctx context.Context, token mqtt.Token) error {
	deadline := m.timeout
	if ctxDeadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(ctxDeadline); remaining < deadline {
			deadline = remaining
		}
	}
	if !token.WaitTimeout(deadline) {
		return errors.Errorf("no acknowledgement within %s", deadline)
	}
	return token.Error()
}
