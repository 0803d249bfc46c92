package main

import (
	"bufio"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/gateways/wetr"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/logging"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/utils"
	"github.com/sirupsen/logrus"
)

// logObserver prints everything the link reports.
type logObserver struct {
	log *logrus.Entry
}

func (o logObserver) OnReading(reading entities.TelemetryReading) {
	o.log.WithFields(logrus.Fields{
		"temperature":  reading.Temperature,
		"humidity":     reading.Humidity,
		"soilMoisture": reading.SoilMoisture,
		"fanSpeed":     reading.FanSpeed,
	}).Info("reading")
}

func (o logObserver) OnLinkState(state entities.LinkState) {
	o.log.Infof("link state: %s", state)
}

func (o logObserver) OnCommandFailed(command entities.Command, reason entities.CommandFailure) {
	o.log.Warnf("command %s failed: %s", command, reason)
}

func (o logObserver) OnParseError(err error) {
	o.log.Warnf("malformed telemetry: %v", err)
}

func parseCommand(word string) (entities.Command, bool) {
	switch strings.ToLower(word) {
	case "siren":
		return entities.ToggleSiren, true
	case "fan":
		return entities.ToggleFan, true
	}
	return entities.RequestData, false
}

func main() {
	configFilepath := utils.GetValueFromEnvironmentVariable("LINK_CONFIG_FILEPATH", utils.DefaultConfigFilepath)
	conf, err := utils.LoadLinkConfig(configFilepath)
	if err != nil {
		logrus.Fatalln(err)
	}

	logger := logging.NewLogrus(conf.LogLevel, conf.LogFormat, os.Stderr)
	log := logger.Get("main")

	link, err := wetr.NewLink(conf, logObserver{log: logger.Get("observer")}, logger.Get("link"))
	if err != nil {
		log.Fatalln(err)
	}
	if err := link.Start(); err != nil {
		log.Fatalln(err)
	}
	defer link.Stop()

	go func() {
		stdin := bufio.NewScanner(os.Stdin)
		for stdin.Scan() {
			for _, word := range strings.Fields(stdin.Text()) {
				command, ok := parseCommand(word)
				if !ok {
					log.Warnf("unknown command %q, use siren or fan", word)
					continue
				}
				if err := link.SubmitCommand(command); err != nil {
					log.Errorln(err)
				}
			}
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.Infof("received %s, stopping", sig)
}
