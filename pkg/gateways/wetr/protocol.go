package wetr

import (
	"math"
	"strconv"
	"strings"

	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/gateways/wetr/network"
	"github.com/pkg/errors"
)

// Stream tokens understood by the node firmware.
const (
	requestDataToken = "GET_DATA"
	toggleSirenToken = "TOGGLE_SIREN"
	toggleFanToken   = "TOGGLE_FAN"

	// pubSubTogglePayload is what command channels carry on pub/sub.
	pubSubTogglePayload = "TOGGLE"
)

const (
	keyTemperature  = "Temperature"
	keyHumidity     = "Humidity"
	keySoilMoisture = "SoilMoisture"
	keyFanSpeed     = "FanSpeed"
)

var readingKeys = [...]string{keyTemperature, keyHumidity, keySoilMoisture, keyFanSpeed}

func EncodeRequest() []byte {
	return []byte(requestDataToken)
}

func EncodeCommand(command entities.Command) ([]byte, error) {
	switch command {
	case entities.ToggleSiren:
		return []byte(toggleSirenToken), nil
	case entities.ToggleFan:
		return []byte(toggleFanToken), nil
	default:
		return nil, errors.Wrapf(entities.ErrInvalidCommand, "cannot encode %s", command)
	}
}

// DecodeReading parses "Temperature:<f> Humidity:<f> SoilMoisture:<f> FanSpeed:<f>".
// It never returns a partially filled reading.
func DecodeReading(payload []byte) (entities.TelemetryReading, error) {
	tokens := strings.Fields(string(payload))
	if len(tokens) != len(readingKeys) {
		return entities.TelemetryReading{}, errors.Wrapf(entities.ErrParse, "expected %d tokens, got %d", len(readingKeys), len(tokens))
	}

	var values [len(readingKeys)]float64
	for i, token := range tokens {
		key, raw, found := strings.Cut(token, ":")
		if !found {
			return entities.TelemetryReading{}, errors.Wrapf(entities.ErrParse, "token %q is not Key:Value", token)
		}
		if key != readingKeys[i] {
			return entities.TelemetryReading{}, errors.Wrapf(entities.ErrParse, "token %d: expected key %s, got %q", i, readingKeys[i], key)
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return entities.TelemetryReading{}, errors.Wrapf(entities.ErrParse, "%s value %q: %v", key, raw, err)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return entities.TelemetryReading{}, errors.Wrapf(entities.ErrParse, "%s value %q is not finite", key, raw)
		}
		values[i] = value
	}

	return entities.TelemetryReading{
		Temperature:  values[0],
		Humidity:     values[1],
		SoilMoisture: values[2],
		FanSpeed:     values[3],
	}, nil
}

// FormatReading renders a reading the way the firmware does.
func FormatReading(reading entities.TelemetryReading) []byte {
	values := [...]float64{reading.Temperature, reading.Humidity, reading.SoilMoisture, reading.FanSpeed}
	fields := make([]string, len(readingKeys))
	for i, key := range readingKeys {
		fields[i] = key + ":" + strconv.FormatFloat(values[i], 'f', -1, 64)
	}
	return []byte(strings.Join(fields, " "))
}

// PubSubRoutes maps each stream token to the channel and payload used on a broker.
func PubSubRoutes(channels entities.Channels) network.Routes {
	return network.Routes{
		requestDataToken: {Channel: channels.Request, Payload: []byte(requestDataToken), ExpectsReply: true},
		toggleSirenToken: {Channel: channels.Siren, Payload: []byte(pubSubTogglePayload)},
		toggleFanToken:   {Channel: channels.Fan, Payload: []byte(pubSubTogglePayload)},
	}
}
