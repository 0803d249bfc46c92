package wetr

import (
	"testing"
	"time"

	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/gateways/wetr/network"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/simulator"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type LinkSuite struct {
	suite.Suite
	device   *simulator.Device
	observer *recorder
	link     *Link
}

func (s *LinkSuite) SetupTest() {
	s.device = simulator.NewDevice(validReading, nullLog())
	s.Require().NoError(s.device.Listen("127.0.0.1:0"))

	conf := testConfig()
	conf.Endpoint.Board = entities.BoardESP32
	conf.Endpoint.Port = s.device.Port()
	conf.RequestTimeout = 200 * time.Millisecond
	s.observer = &recorder{}
	link, err := NewLink(conf, s.observer, nullLog())
	s.Require().NoError(err)
	s.link = link
}

func (s *LinkSuite) TearDownTest() {
	s.link.Stop()
	s.device.Close()
}

func (s *LinkSuite) connected() bool {
	return s.link.State().Status == entities.Connected
}

func (s *LinkSuite) TestStartConnectsAndPolls() {
	s.Require().NoError(s.link.Start())

	s.Eventually(s.connected, time.Second, time.Millisecond)
	s.Eventually(func() bool { return s.observer.readingCount() >= 2 }, time.Second, time.Millisecond)
	s.Equal(validReading, s.observer.allReadings()[0])
	s.Equal([]entities.LinkStatus{entities.Connecting, entities.Connected}, s.observer.statuses())
	s.GreaterOrEqual(s.device.Requests(), 2)
}

func (s *LinkSuite) TestCommandsReachDevice() {
	s.Require().NoError(s.link.Start())
	s.Eventually(s.connected, time.Second, time.Millisecond)

	s.NoError(s.link.SubmitCommand(entities.ToggleSiren))
	s.NoError(s.link.SubmitCommand(entities.ToggleFan))

	s.Eventually(func() bool { return len(s.device.Commands()) == 2 }, time.Second, time.Millisecond)
	s.Equal([]string{"TOGGLE_SIREN", "TOGGLE_FAN"}, s.device.Commands())
	s.True(s.device.SirenOn())
	s.False(s.device.FanOn())
	s.Eventually(func() bool {
		last, ok := s.link.LastReading()
		return ok && last.FanSpeed == 0
	}, time.Second, time.Millisecond)
	s.Empty(s.observer.allFailures())
}

func (s *LinkSuite) TestReconnectsAfterDeviceDrop() {
	s.Require().NoError(s.link.Start())
	s.Eventually(func() bool { return s.observer.readingCount() >= 1 }, time.Second, time.Millisecond)

	s.device.DropConnections()

	s.Eventually(func() bool {
		statuses := s.observer.statuses()
		return len(statuses) >= 4 && statuses[2] == entities.Degraded && statuses[len(statuses)-1] == entities.Connected
	}, 2*time.Second, time.Millisecond)
	degraded := s.observer.allStates()[2]
	s.Equal(0, degraded.RetryCount)
	s.True(entities.IsTransportError(degraded.LastError))

	before := s.observer.readingCount()
	s.Eventually(func() bool { return s.observer.readingCount() > before }, time.Second, time.Millisecond)
}

func (s *LinkSuite) TestMalformedTelemetryKeepsConnection() {
	s.Require().NoError(s.link.Start())
	s.Eventually(func() bool { return s.observer.readingCount() >= 1 }, time.Second, time.Millisecond)

	s.device.SetMalformed(true)
	s.Eventually(func() bool { return s.observer.parseErrorCount() >= 1 }, time.Second, time.Millisecond)

	s.True(s.connected())
	last, ok := s.link.LastReading()
	s.True(ok)
	s.Equal(validReading, last)
}

func (s *LinkSuite) TestSilentDeviceTimesOut() {
	s.Require().NoError(s.link.Start())
	s.Eventually(s.connected, time.Second, time.Millisecond)

	s.device.SetMute(true)
	s.Eventually(func() bool {
		for _, state := range s.observer.allStates() {
			if state.Status == entities.Degraded && errors.Is(state.LastError, entities.ErrTimeout) {
				return true
			}
		}
		return false
	}, 2*time.Second, time.Millisecond)
}

func (s *LinkSuite) TestStartTwice() {
	s.Require().NoError(s.link.Start())
	s.ErrorIs(s.link.Start(), entities.ErrAlreadyRunning)
}

func (s *LinkSuite) TestSubmitBeforeStart() {
	s.ErrorIs(s.link.SubmitCommand(entities.ToggleFan), entities.ErrNotRunning)
}

func (s *LinkSuite) TestSubmitRequestDataIsRejected() {
	s.Require().NoError(s.link.Start())
	err := s.link.SubmitCommand(entities.RequestData)
	s.True(errors.Is(err, entities.ErrInvalidCommand))
}

func (s *LinkSuite) TestStopIsFinal() {
	s.Require().NoError(s.link.Start())
	s.Eventually(func() bool { return s.observer.readingCount() >= 1 }, time.Second, time.Millisecond)

	s.link.Stop()
	s.observer.seal()
	s.link.Stop()

	s.Equal(entities.DisconnectedState(), s.observer.lastState())
	s.ErrorIs(s.link.SubmitCommand(entities.ToggleSiren), entities.ErrNotRunning)
	time.Sleep(100 * time.Millisecond)
	s.Zero(s.observer.lateCallbacks())
}

func (s *LinkSuite) TestRestartAfterStop() {
	s.Require().NoError(s.link.Start())
	s.Eventually(s.connected, time.Second, time.Millisecond)
	s.link.Stop()

	s.Require().NoError(s.link.Start())
	s.Eventually(s.connected, time.Second, time.Millisecond)
	before := s.observer.readingCount()
	s.Eventually(func() bool { return s.observer.readingCount() > before }, time.Second, time.Millisecond)
}

func TestLinkSuite(t *testing.T) {
	suite.Run(t, new(LinkSuite))
}

func TestNewLinkRejectsInvalidConfiguration(t *testing.T) {
	conf := testConfig()
	conf.Endpoint.Host = ""
	_, err := NewLink(conf, &recorder{}, nullLog())
	assert.Error(t, err)

	conf = testConfig()
	conf.Endpoint.Kind = "serial"
	_, err = NewLink(conf, &recorder{}, nullLog())
	assert.Error(t, err)
}

func TestNewTransportPicksBinding(t *testing.T) {
	conf := testConfig()
	transport, err := newTransport(conf, nullLog())
	require.NoError(t, err)
	assert.IsType(t, &network.Stream{}, transport)

	conf.Endpoint.Kind = entities.KindPubSub
	conf.Endpoint.Broker = entities.BrokerMQTT
	conf.Endpoint.Channels = entities.Channels{Request: "esp32/request", Response: "esp32/response", Siren: "esp32/siren", Fan: "esp32/fan"}
	transport, err = newTransport(conf, nullLog())
	require.NoError(t, err)
	assert.IsType(t, &network.MQTT{}, transport)

	conf.Endpoint.Broker = entities.BrokerAMQP
	conf.Endpoint.Channels.Exchange = "greenhouse"
	transport, err = newTransport(conf, nullLog())
	require.NoError(t, err)
	assert.IsType(t, &network.AMQP{}, transport)

	conf.Endpoint.Broker = "zeromq"
	_, err = newTransport(conf, nullLog())
	assert.Error(t, err)
}

func TestNewLinkAppliesDefaults(t *testing.T) {
	link, err := NewLink(entities.LinkConfig{
		Endpoint: entities.DeviceEndpoint{Host: "192.168.4.1", Port: 80, Kind: entities.KindStream},
	}, &recorder{}, nullLog())
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, link.conf.PollInterval)
	assert.Equal(t, 2*time.Second, link.conf.RequestTimeout)
	assert.Equal(t, entities.DisconnectedState(), link.State())
	_, ok := link.LastReading()
	assert.False(t, ok)
}
