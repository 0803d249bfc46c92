package network

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
)

type AmqpConnectionMock struct {
	mock.Mock
	deliveries chan amqp.Delivery
	closed     chan *amqp.Error
}

func NewAmqpConnectionMock() *AmqpConnectionMock {
	return &AmqpConnectionMock{
		deliveries: make(chan amqp.Delivery, 4),
		closed:     make(chan *amqp.Error, 1),
	}
}

func (m *AmqpConnectionMock) connect(ctx context.Context, url string) error {
	args := m.Called(url)
	return args.Error(0)
}

func (m *AmqpConnectionMock) exchangeDeclare(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *AmqpConnectionMock) queueDeclare() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *AmqpConnectionMock) queueBind(queueName, key, exchangeName string) error {
	args := m.Called(queueName, key, exchangeName)
	return args.Error(0)
}

func (m *AmqpConnectionMock) consume(queue, consumer string) (<-chan amqp.Delivery, error) {
	args := m.Called(queue, consumer)
	return m.deliveries, args.Error(0)
}

func (m *AmqpConnectionMock) publish(ctx context.Context, exchange, key string, body []byte) error {
	args := m.Called(exchange, key, body)
	return args.Error(0)
}

func (m *AmqpConnectionMock) notifyClose() <-chan *amqp.Error {
	return m.closed
}

func (m *AmqpConnectionMock) close() error {
	args := m.Called()
	return args.Error(0)
}

// Deliver plays a message arriving on the response queue.
func (m *AmqpConnectionMock) Deliver(body []byte) {
	m.deliveries <- amqp.Delivery{Body: body}
}

// Drop simulates the broker closing the connection.
func (m *AmqpConnectionMock) Drop(reason string) {
	m.closed <- &amqp.Error{Code: amqp.ConnectionForced, Reason: reason}
}
