package entities

// TelemetryReading is one decoded snapshot of the node's sensors.
type TelemetryReading struct {
	Temperature  float64 `yaml:"temperature" json:"temperature"`
	Humidity     float64 `yaml:"humidity" json:"humidity"`
	SoilMoisture float64 `yaml:"soilMoisture" json:"soilMoisture"`
	FanSpeed     float64 `yaml:"fanSpeed" json:"fanSpeed"`
}
