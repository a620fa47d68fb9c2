package report

import (
	"fmt"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the sensor board's original serial output.
const DefaultBaudRate = 9600

// OpenSerial opens a serial port and returns a reporter that writes records
// to it. Close closes the port.
func OpenSerial(port string, baud int, f Format) (*LineReporter, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	conn, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	return &LineReporter{w: conn, closer: conn, format: f}, nil
}

// SerialPorts lists the serial ports present on the host.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
