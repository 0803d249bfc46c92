package wetr

import (
	"context"
	"sync"

	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/gateways/wetr/network"
	"github.com/sirupsen/logrus"
)

// dispatcher writes actuator commands. Nothing is awaited from the node.
type dispatcher struct {
	transport  network.Transport
	wire       *sync.Mutex
	supervisor *supervisor
	gate       *gate
	log        *logrus.Entry
}

func (d *dispatcher) run(ctx context.Context, queue <-chan entities.Command) {
	for {
		select {
		case <-ctx.Done():
			return
		case command := <-queue:
			d.dispatch(command)
		}
	}
}

func (d *dispatcher) dispatch(command entities.Command) {
	payload, err := EncodeCommand(command)
	if err != nil {
		d.log.Errorln(err)
		return
	}
	if !d.supervisor.connected() {
		d.log.Warnf("dropping %s: link not connected", command)
		d.gate.commandFailed(command, entities.NotConnected)
		return
	}

	attempted, err := d.send(payload)
	if !attempted {
		d.log.Warnf("dropping %s: link not connected", command)
		d.gate.commandFailed(command, entities.NotConnected)
		return
	}
	if err != nil {
		d.log.Warnf("sending %s failed: %v", command, err)
		d.gate.commandFailed(command, entities.WriteFailed)
		d.supervisor.Fault(err)
		return
	}
	d.log.Infof("sent %s", command)
}

func (d *dispatcher) send(payload []byte) (bool, error) {
	d.wire.Lock()
	defer d.wire.Unlock()

	if !d.supervisor.connected() {
		return false, nil
	}
	return true, d.transport.Send(payload)
}
