package network

import (
	"context"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeTypeDirect = "direct"
	durable            = true
	deleteWhenUnused   = false
	exclusive          = true
	internal           = false
	noWait             = false
	autoAck            = true
	noLocal            = false
	mandatory          = false
	immediate          = false

	heartbeat = 10 * time.Second
	locale    = "en_US"
)

type connection interface {
	connect(ctx context.Context, url string) error
	exchangeDeclare(name string) error
	queueDeclare() (string, error)
	queueBind(queueName, key, exchangeName string) error
	consume(queue, consumer string) (<-chan amqp.Delivery, error)
	publish(ctx context.Context, exchange, key string, body []byte) error
	notifyClose() <-chan *amqp.Error
	close() error
}

type AmqpConnection struct {
	dialTimeout time.Duration
	conn        *amqp.Connection
	channel     *amqp.Channel
}

func NewAmqpConnection(dialTimeout time.Duration) *AmqpConnection {
	return &AmqpConnection{dialTimeout: dialTimeout}
}

// connect gives up when ctx ends, during the TCP dial or the AMQP handshake.
func (a *AmqpConnection) connect(ctx context.Context, url string) error {
	handshaken := make(chan struct{})
	defer close(handshaken)

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: heartbeat,
		Locale:    locale,
		Dial:      a.dialContext(ctx, handshaken),
	})
	if err != nil {
		return err
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	a.conn = conn
	a.channel = channel
	return nil
}

func (a *AmqpConnection) dialContext(ctx context.Context, handshaken <-chan struct{}) func(network, addr string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: a.dialTimeout}
	return func(network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		// the handshake deadline is cleared by amqp091 once the connection is open
		if err := conn.SetDeadline(time.Now().Add(a.dialTimeout)); err != nil {
			_ = conn.Close()
			return nil, err
		}
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.SetDeadline(time.Now())
			case <-handshaken:
			}
		}()
		return conn, nil
	}
}

func (a *AmqpConnection) exchangeDeclare(name string) error {
	return a.channel.ExchangeDeclare(
		name,
		exchangeTypeDirect,
		durable,
		deleteWhenUnused,
		internal,
		noWait,
		nil, // arguments
	)
}

// queueDeclare declares an exclusive, server-named queue for responses.
func (a *AmqpConnection) queueDeclare() (string, error) {
	queue, err := a.channel.QueueDeclare(
		"",
		false, // durable
		true,  // delete when unused
		exclusive,
		noWait,
		nil, // arguments
	)
	return queue.Name, err
}

func (a *AmqpConnection) queueBind(queueName, key, exchangeName string) error {
	return a.channel.QueueBind(
		queueName,
		key,
		exchangeName,
		noWait,
		nil, // arguments
	)
}

func (a *AmqpConnection) consume(queue, consumer string) (<-chan amqp.Delivery, error) {
	return a.channel.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, nil)
}

func (a *AmqpConnection) publish(ctx context.Context, exchange, key string, body []byte) error {
	return a.channel.PublishWithContext(
		ctx,
		exchange,
		key,
		mandatory,
		immediate,
		amqp.Publishing{
			ContentType:  "text/plain",
			DeliveryMode: amqp.Transient,
			Body:         body,
		},
	)
}

func (a *AmqpConnection) notifyClose() <-chan *amqp.Error {
	return a.conn.NotifyClose(make(chan *amqp.Error, 1))
}

func (a *AmqpConnection) close() error {
	if a.conn == nil || a.conn.IsClosed() {
		return nil
	}
	return a.conn.Close()
}
