package network

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mqttClientMock stands in for a paho client connected to a broker.
type mqttClientMock struct {
	mu           sync.Mutex
	options      *mqtt.ClientOptions
	connectErr   error
	connectStuck bool
	publishErr   error
	handlers     map[string]mqtt.MessageHandler
	published    []mockPublish
	disconnected bool
	onPublish    func(topic string, payload []byte)
}

type mockPublish struct {
	Topic   string
	Payload []byte
}

func newMQTTClientMock() *mqttClientMock {
	return &mqttClientMock{handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *mqttClientMock) Connect() mqtt.Token {
	return mockToken{err: c.connectErr, pending: c.connectStuck}
}

func (c *mqttClientMock) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.handlers[topic] = callback
	c.mu.Unlock()
	return mockToken{}
}

func (c *mqttClientMock) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	body := payload.([]byte)
	c.mu.Lock()
	c.published = append(c.published, mockPublish{topic, body})
	onPublish := c.onPublish
	c.mu.Unlock()
	if onPublish != nil && c.publishErr == nil {
		onPublish(topic, body)
	}
	return mockToken{err: c.publishErr}
}

func (c *mqttClientMock) Disconnect(uint) {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

// deliver plays a broker message to whoever subscribed to topic.
func (c *mqttClientMock) deliver(topic string, payload []byte) {
	c.mu.Lock()
	handler := c.handlers[topic]
	c.mu.Unlock()
	if handler != nil {
		handler(nil, mockMessage{topic: topic, payload: payload})
	}
}

func (c *mqttClientMock) loseConnection(err error) {
	c.options.OnConnectionLost(nil, err)
}

func (c *mqttClientMock) isDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

func (c *mqttClientMock) publishes() []mockPublish {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]mockPublish(nil), c.published...)
}

// mockToken completes at once unless pending, in which case it never does.
type mockToken struct {
	err     error
	pending bool
}

func (t mockToken) Wait() bool                     { return !t.pending }
func (t mockToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t mockToken) Error() error                   { return t.err }
func (t mockToken) Done() <-chan struct{} {
	done := make(chan struct{})
	if !t.pending {
		close(done)
	}
	return done
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.payload }
func (m mockMessage) Ack()              {}
