package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/logging"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/simulator"
	"github.com/janael-pinheiro/wetr-link-sdk-golang/pkg/utils"
)

func main() {
	logger := logging.NewLogrus(utils.GetValueFromEnvironmentVariable("WETR_LOG_LEVEL", "info"), logging.FormatText, os.Stderr)
	log := logger.Get("simulator")

	address := utils.GetValueFromEnvironmentVariable("WETR_SIM_ADDRESS", "127.0.0.1:8080")
	device := simulator.NewDevice(entities.TelemetryReading{
		Temperature:  24.5,
		Humidity:     58,
		SoilMoisture: 41.2,
		FanSpeed:     1200,
	}, log)
	if err := device.Listen(address); err != nil {
		log.Fatalln(err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	device.Close()
}
