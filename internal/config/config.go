// Package config loads the daemon configuration from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/ppd42-sensor/internal/gpio"
	"github.com/sweeney/ppd42-sensor/internal/logic"
	"github.com/sweeney/ppd42-sensor/internal/mqtt"
	"github.com/sweeney/ppd42-sensor/internal/report"
)

// Config is the full daemon configuration.
type Config struct {
	GPIO     GPIOConfig     `yaml:"gpio"`
	Sampling SamplingConfig `yaml:"sampling"`
	Report   ReportConfig   `yaml:"report"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// GPIOConfig selects the edge source and the two sensor lines.
type GPIOConfig struct {
	Chip    string `yaml:"chip"`
	Backend string `yaml:"backend"` // "cdev" or "periph"
	PinPM10 int    `yaml:"pin_pm10"`
	PinPM25 int    `yaml:"pin_pm25"`
	Invert  bool   `yaml:"active_low_invert"` // sensor wired through an inverting buffer
}

// SamplingConfig holds the window parameters.
type SamplingConfig struct {
	Window     time.Duration `yaml:"window"`
	Poll       time.Duration `yaml:"poll"`
	ZeroPolicy string        `yaml:"zero_policy"`
}

// ReportConfig selects where reading lines are written.
type ReportConfig struct {
	Format     string `yaml:"format"`
	Stdout     bool   `yaml:"stdout"`
	SerialPort string `yaml:"serial_port"` // empty disables
	Baud       int    `yaml:"baud"`
}

// MQTTConfig configures the optional MQTT publisher. An empty Broker disables it.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	Topic      string `yaml:"topic"`
	BufferSize int    `yaml:"buffer_size"`
}

// HTTPConfig configures the status server. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		GPIO: GPIOConfig{
			Chip:    gpio.DefaultChip,
			Backend: gpio.BackendCdev,
			PinPM10: gpio.DefaultPinPM10,
			PinPM25: gpio.DefaultPinPM25,
		},
		Sampling: SamplingConfig{
			Window:     logic.DefaultWindow,
			Poll:       100 * time.Millisecond,
			ZeroPolicy: string(logic.ZeroClamp),
		},
		Report: ReportConfig{
			Format: string(report.FormatJSON),
			Stdout: true,
			Baud:   report.DefaultBaudRate,
		},
		MQTT: MQTTConfig{
			ClientID:   mqtt.DefaultClientID,
			Topic:      mqtt.DefaultTopic,
			BufferSize: mqtt.DefaultBufferSize,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults; keys absent from the file keep their default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	cfg.ensureDefaults()

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ensureDefaults refills fields a file explicitly set to their zero value.
// Stdout, Invert and the optional endpoints are left as given.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}
	if c.GPIO.Backend == "" {
		c.GPIO.Backend = def.GPIO.Backend
	}
	if c.Sampling.Window == 0 {
		c.Sampling.Window = def.Sampling.Window
	}
	if c.Sampling.Poll == 0 {
		c.Sampling.Poll = def.Sampling.Poll
	}
	if c.Sampling.ZeroPolicy == "" {
		c.Sampling.ZeroPolicy = def.Sampling.ZeroPolicy
	}
	if c.Report.Format == "" {
		c.Report.Format = def.Report.Format
	}
	if c.Report.Baud == 0 {
		c.Report.Baud = def.Report.Baud
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.MQTT.BufferSize == 0 {
		c.MQTT.BufferSize = def.MQTT.BufferSize
	}
}
