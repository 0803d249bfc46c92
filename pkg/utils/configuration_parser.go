package utils

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	DefaultConfigFilepath = "link_setup.yaml"

	defaultPollInterval      = 3000 * time.Millisecond
	defaultRequestTimeout    = 2000 * time.Millisecond
	defaultConnectTimeout    = 5 * time.Second
	defaultInitialInterval   = 1 * time.Second
	defaultMaxInterval       = 30 * time.Second
	defaultMultiplier        = 1.7
	defaultCommandQueueDepth = 8
	defaultFilterCapacity    = 16
	defaultFalsePositiveRate = 0.01
	defaultBoard             = entities.BoardESP32
	defaultLogLevel          = "info"
)

type config interface {
	entities.LinkConfig | entities.DeviceEndpoint
}

func readTextFile(filepathName string) ([]byte, error) {
	fileContent, err := os.ReadFile(filepath.Clean(filepathName))
	return fileContent, err
}

func ConfigurationParser[T config](filepathName string, configEntity T) (T, error) {
	fileContent, err := readTextFile(filepath.Clean(filepathName))
	if err != nil {
		return configEntity, err
	}

	err = yaml.Unmarshal(fileContent, &configEntity)
	return configEntity, err
}

// LoadLinkConfig reads the link configuration, applies environment
// overrides and defaults, and validates the result.
func LoadLinkConfig(filepathName string) (entities.LinkConfig, error) {
	conf, err := ConfigurationParser(filepathName, entities.LinkConfig{})
	if err != nil {
		return conf, errors.Wrapf(err, "parse %s", filepathName)
	}
	conf, err = ApplyEnvironment(conf)
	if err != nil {
		return conf, err
	}
	conf = ApplyDefaults(conf)
	return conf, Validate(conf)
}

// ApplyEnvironment overrides host, port and log level from WETR_* variables.
func ApplyEnvironment(conf entities.LinkConfig) (entities.LinkConfig, error) {
	conf.Endpoint.Host = GetValueFromEnvironmentVariable("WETR_HOST", conf.Endpoint.Host)
	conf.LogLevel = GetValueFromEnvironmentVariable("WETR_LOG_LEVEL", conf.LogLevel)
	if port := os.Getenv("WETR_PORT"); port != "" {
		value, err := strconv.Atoi(port)
		if err != nil {
			return conf, errors.Wrap(err, "WETR_PORT environment variable with invalid value")
		}
		conf.Endpoint.Port = value
	}
	return conf, nil
}

func ApplyDefaults(conf entities.LinkConfig) entities.LinkConfig {
	if conf.LogLevel == "" {
		conf.LogLevel = defaultLogLevel
	}
	if conf.Endpoint.Board == "" {
		conf.Endpoint.Board = defaultBoard
	}
	if conf.Endpoint.Kind == "" {
		conf.Endpoint.Kind = entities.KindStream
	}
	if conf.Endpoint.Kind == entities.KindPubSub && conf.Endpoint.Broker == "" {
		conf.Endpoint.Broker = entities.BrokerMQTT
	}
	if conf.PollInterval == 0 {
		conf.PollInterval = defaultPollInterval
	}
	if conf.RequestTimeout == 0 {
		conf.RequestTimeout = defaultRequestTimeout
	}
	if conf.ConnectTimeout == 0 {
		conf.ConnectTimeout = defaultConnectTimeout
	}
	if conf.Retry.Policy == "" {
		conf.Retry.Policy = entities.RetryExponential
	}
	if conf.Retry.InitialInterval == 0 {
		conf.Retry.InitialInterval = defaultInitialInterval
	}
	if conf.Retry.MaxInterval == 0 {
		conf.Retry.MaxInterval = defaultMaxInterval
	}
	if conf.Retry.Multiplier == 0 {
		conf.Retry.Multiplier = defaultMultiplier
	}
	if conf.CommandQueueDepth == 0 {
		conf.CommandQueueDepth = defaultCommandQueueDepth
	}
	if conf.DuplicateFilter.Capacity == 0 {
		conf.DuplicateFilter.Capacity = defaultFilterCapacity
	}
	if conf.DuplicateFilter.FalsePositiveRate == 0 {
		conf.DuplicateFilter.FalsePositiveRate = defaultFalsePositiveRate
	}
	return conf
}

func Validate(conf entities.LinkConfig) error {
	endpoint := conf.Endpoint
	if endpoint.Host == "" {
		return errors.New("endpoint host required")
	}
	if endpoint.Port < 1 || endpoint.Port > 65535 {
		return errors.Errorf("endpoint port %d out of range", endpoint.Port)
	}
	switch endpoint.Kind {
	case entities.KindStream:
	case entities.KindPubSub:
		if endpoint.Broker != entities.BrokerMQTT && endpoint.Broker != entities.BrokerAMQP {
			return errors.Errorf("unknown broker %q", endpoint.Broker)
		}
		channels := endpoint.Channels
		if channels.Request == "" || channels.Response == "" || channels.Siren == "" || channels.Fan == "" {
			return errors.New("pubsub endpoint requires request, response, siren and fan channels")
		}
		if endpoint.Broker == entities.BrokerAMQP && channels.Exchange == "" {
			return errors.New("amqp endpoint requires an exchange")
		}
	default:
		return errors.Errorf("unknown transport kind %q", endpoint.Kind)
	}
	if conf.PollInterval <= 0 {
		return errors.New("poll interval must be > 0")
	}
	if conf.RequestTimeout <= 0 {
		return errors.New("request timeout must be > 0")
	}
	if conf.ConnectTimeout <= 0 {
		return errors.New("connect timeout must be > 0")
	}
	if conf.Retry.Policy != entities.RetryExponential && conf.Retry.Policy != entities.RetryFixed {
		return errors.Errorf("unknown retry policy %q", conf.Retry.Policy)
	}
	if conf.Retry.MaxInterval < conf.Retry.InitialInterval {
		return errors.New("retry max interval must be >= initial interval")
	}
	if conf.Retry.Multiplier < 1 {
		return errors.New("retry multiplier must be >= 1")
	}
	if conf.CommandQueueDepth < 0 {
		return errors.New("command queue depth must be >= 0")
	}
	filter := conf.DuplicateFilter
	if filter.FalsePositiveRate <= 0 || filter.FalsePositiveRate >= 1 {
		return errors.New("duplicate filter false positive rate must be in (0, 1)")
	}
	return nil
}

func GetValueFromEnvironmentVariable(variableName, defaultValue string) string {
	value := os.Getenv(variableName)
	if value != "" {
		return value
	}
	return defaultValue
}
