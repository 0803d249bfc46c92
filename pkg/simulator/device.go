// Package simulator emulates the greenhouse node firmware over TCP so the
// link can be exercised without hardware.
package simulator

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/sirupsen/logrus"
)

const (
	tokenGetData     = "GET_DATA"
	tokenToggleSiren = "TOGGLE_SIREN"
	tokenToggleFan   = "TOGGLE_FAN"

	readBufferSize = 1024
)

var knownTokens = []string{tokenGetData, tokenToggleSiren, tokenToggleFan}

// Device answers GET_DATA with the current reading and flips actuators on
// TOGGLE_SIREN / TOGGLE_FAN. While the fan is off the reported speed is 0.
type Device struct {
	log *logrus.Entry

	mu            sync.Mutex
	reading       entities.TelemetryReading
	sirenOn       bool
	fanOn         bool
	mute          bool
	malformed     bool
	responseDelay time.Duration
	requests      int
	commands      []string
	conns         map[net.Conn]struct{}

	listener net.Listener
	wg       sync.WaitGroup
}

func NewDevice(reading entities.TelemetryReading, log *logrus.Entry) *Device {
	return &Device{
		log:     log,
		reading: reading,
		fanOn:   true,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Listen binds the device and starts serving in the background.
func (d *Device) Listen(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	d.listener = listener
	d.wg.Add(1)
	go d.serve()
	d.log.Infof("device listening on %s", listener.Addr())
	return nil
}

func (d *Device) Port() int {
	return d.listener.Addr().(*net.TCPAddr).Port
}

func (d *Device) Close() {
	if d.listener != nil {
		_ = d.listener.Close()
	}
	d.DropConnections()
	d.wg.Wait()
}

// DropConnections closes every accepted connection, as a node reboot would.
func (d *Device) DropConnections() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for conn := range d.conns {
		_ = conn.Close()
	}
}

func (d *Device) SetReading(reading entities.TelemetryReading) {
	d.mu.Lock()
	d.reading = reading
	d.mu.Unlock()
}

// SetMute stops the device from answering data requests.
func (d *Device) SetMute(mute bool) {
	d.mu.Lock()
	d.mute = mute
	d.mu.Unlock()
}

// SetMalformed makes the device answer with a truncated reading.
func (d *Device) SetMalformed(malformed bool) {
	d.mu.Lock()
	d.malformed = malformed
	d.mu.Unlock()
}

func (d *Device) SetResponseDelay(delay time.Duration) {
	d.mu.Lock()
	d.responseDelay = delay
	d.mu.Unlock()
}

func (d *Device) Requests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests
}

func (d *Device) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands...)
}

func (d *Device) SirenOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sirenOn
}

func (d *Device) FanOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fanOn
}

func (d *Device) serve() {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		d.mu.Lock()
		d.conns[conn] = struct{}{}
		d.mu.Unlock()
		d.wg.Add(1)
		go d.handle(conn)
	}
}

func (d *Device) handle(conn net.Conn) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		delete(d.conns, conn)
		d.mu.Unlock()
		_ = conn.Close()
	}()

	buffer := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buffer)
		if err != nil {
			return
		}
		for _, token := range SplitTokens(buffer[:n]) {
			if response := d.apply(token); response != nil {
				if _, err := conn.Write(response); err != nil {
					return
				}
			}
		}
	}
}

func (d *Device) apply(token string) []byte {
	d.mu.Lock()
	switch token {
	case tokenToggleSiren:
		d.sirenOn = !d.sirenOn
		d.commands = append(d.commands, token)
		d.mu.Unlock()
		return nil
	case tokenToggleFan:
		d.fanOn = !d.fanOn
		d.commands = append(d.commands, token)
		d.mu.Unlock()
		return nil
	}

	d.requests++
	mute, malformed, delay := d.mute, d.malformed, d.responseDelay
	reading := d.reading
	if !d.fanOn {
		reading.FanSpeed = 0
	}
	d.mu.Unlock()

	if mute {
		return nil
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if malformed {
		return []byte(fmt.Sprintf("Temperature:%s Humidity:%s", formatValue(reading.Temperature), formatValue(reading.Humidity)))
	}
	return []byte(fmt.Sprintf("Temperature:%s Humidity:%s SoilMoisture:%s FanSpeed:%s\r\n",
		formatValue(reading.Temperature),
		formatValue(reading.Humidity),
		formatValue(reading.SoilMoisture),
		formatValue(reading.FanSpeed)))
}

func formatValue(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SplitTokens separates tokens the host wrote back to back into one TCP
// segment. Unknown bytes end the scan.
func SplitTokens(chunk []byte) []string {
	var tokens []string
	rest := bytes.TrimSpace(chunk)
	for len(rest) > 0 {
		matched := false
		for _, token := range knownTokens {
			if bytes.HasPrefix(rest, []byte(token)) {
				tokens = append(tokens, token)
				rest = bytes.TrimSpace(rest[len(token):])
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}
	return tokens
}
