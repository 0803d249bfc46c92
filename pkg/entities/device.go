package entities

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	KindStream string = "stream"
	KindPubSub string = "pubsub"

	BrokerMQTT string = "mqtt"
	BrokerAMQP string = "amqp"

	RetryExponential string = "exponential"
	RetryFixed       string = "fixed"
)

// Boards the greenhouse firmware is shipped for.
const (
	BoardESP32       string = "ESP32"
	BoardArduino     string = "Arduino"
	BoardSTM32       string = "STM32"
	BoardRaspberryPi string = "Raspberry Pi"
)

// Channels names the pub/sub channels used to reach the node.
type Channels struct {
	Request  string `yaml:"request"`
	Response string `yaml:"response"`
	Siren    string `yaml:"siren"`
	Fan      string `yaml:"fan"`
	Exchange string `yaml:"exchange"`
}

// DeviceEndpoint is the immutable address of the node.
type DeviceEndpoint struct {
	Board    string   `yaml:"board"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Kind     string   `yaml:"kind"`
	Broker   string   `yaml:"broker"`
	Channels Channels `yaml:"channels"`
}

func (e DeviceEndpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e DeviceEndpoint) String() string {
	if e.Kind == KindPubSub {
		return fmt.Sprintf("%s %s://%s", e.Board, e.Broker, e.Address())
	}
	return fmt.Sprintf("%s tcp://%s", e.Board, e.Address())
}

type RetryPolicy struct {
	Policy          string        `yaml:"policy"`
	InitialInterval time.Duration `yaml:"initialInterval"`
	MaxInterval     time.Duration `yaml:"maxInterval"`
	Multiplier      float64       `yaml:"multiplier"`
}

type DuplicateFilter struct {
	Enabled           bool    `yaml:"enabled"`
	Capacity          uint    `yaml:"capacity"`
	FalsePositiveRate float64 `yaml:"falsePositiveRate"`
}

// LinkConfig is everything the bootstrap hands to the link at construction.
type LinkConfig struct {
	LogLevel          string          `yaml:"logLevel"`
	LogFormat         string          `yaml:"logFormat"`
	Endpoint          DeviceEndpoint  `yaml:"endpoint"`
	PollInterval      time.Duration   `yaml:"pollInterval"`
	RequestTimeout    time.Duration   `yaml:"requestTimeout"`
	ConnectTimeout    time.Duration   `yaml:"connectTimeout"`
	Retry             RetryPolicy     `yaml:"retry"`
	CommandQueueDepth int             `yaml:"commandQueueDepth"`
	DuplicateFilter   DuplicateFilter `yaml:"duplicateFilter"`
}
