package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/ppd42-sensor/internal/gpio"
	"github.com/sweeney/ppd42-sensor/internal/logic"
	"github.com/sweeney/ppd42-sensor/internal/report"
)

// ErrInvalid is wrapped by every error Validate returns.
var ErrInvalid = errors.New("invalid config")

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	switch cfg.GPIO.Backend {
	case gpio.BackendCdev, gpio.BackendPeriph:
	default:
		return fmt.Errorf("%w: gpio.backend %q (want %q or %q)",
			ErrInvalid, cfg.GPIO.Backend, gpio.BackendCdev, gpio.BackendPeriph)
	}
	if cfg.GPIO.PinPM10 < 0 || cfg.GPIO.PinPM25 < 0 {
		return fmt.Errorf("%w: gpio pins must not be negative (pm10=%d pm25=%d)",
			ErrInvalid, cfg.GPIO.PinPM10, cfg.GPIO.PinPM25)
	}
	if cfg.GPIO.PinPM10 == cfg.GPIO.PinPM25 {
		return fmt.Errorf("%w: gpio.pin_pm10 and gpio.pin_pm25 are both %d",
			ErrInvalid, cfg.GPIO.PinPM10)
	}

	if cfg.Sampling.Window < time.Millisecond || cfg.Sampling.Window%time.Millisecond != 0 {
		return fmt.Errorf("%w: sampling.window must be a positive whole number of milliseconds, got %v",
			ErrInvalid, cfg.Sampling.Window)
	}
	if cfg.Sampling.Window > logic.MaxWindow {
		return fmt.Errorf("%w: sampling.window %v exceeds %v", ErrInvalid, cfg.Sampling.Window, logic.MaxWindow)
	}
	if cfg.Sampling.Poll <= 0 || cfg.Sampling.Poll > cfg.Sampling.Window {
		return fmt.Errorf("%w: sampling.poll %v must be in (0, %v]",
			ErrInvalid, cfg.Sampling.Poll, cfg.Sampling.Window)
	}
	if _, err := logic.ParseZeroPolicy(cfg.Sampling.ZeroPolicy); err != nil {
		return fmt.Errorf("%w: sampling.zero_policy: %v", ErrInvalid, err)
	}

	if _, err := report.ParseFormat(cfg.Report.Format); err != nil {
		return fmt.Errorf("%w: report.format: %v", ErrInvalid, err)
	}
	if cfg.Report.SerialPort != "" && cfg.Report.Baud <= 0 {
		return fmt.Errorf("%w: report.baud must be positive, got %d", ErrInvalid, cfg.Report.Baud)
	}

	if cfg.MQTT.Broker != "" && cfg.MQTT.Topic == "" {
		return fmt.Errorf("%w: mqtt.topic is required when mqtt.broker is set", ErrInvalid)
	}
	if cfg.MQTT.BufferSize < 0 {
		return fmt.Errorf("%w: mqtt.buffer_size must not be negative, got %d", ErrInvalid, cfg.MQTT.BufferSize)
	}

	return nil
}
