// Package report turns readings into output records and writes them to a
// line-oriented sink: stdout, a serial port, or anything else that takes
// bytes.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/sweeney/ppd42-sensor/internal/logic"
)

// Format selects the record layout.
type Format string

const (
	// FormatJSON writes one self-describing JSON object per line.
	FormatJSON Format = "json"
	// FormatCSV writes "<PM1.0 µg/m³>,<PM2.5 µg/m³>" per line. Kept for
	// consumers of the first firmware revision.
	FormatCSV Format = "csv"
)

// ParseFormat converts a configuration value to a Format.
// The empty string selects FormatJSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown report format %q (want %q or %q)", s, FormatJSON, FormatCSV)
}

// Reporter receives one reading per sampling window.
type Reporter interface {
	// Report emits the reading. Errors are for logging only; the caller
	// keeps sampling.
	Report(r logic.Reading) error

	// Close releases the sink.
	Close() error
}

// Record is the canonical output record. Field order is the wire order.
type Record struct {
	PM10Conc float64 `json:"PM1.0_conc"`
	PM25Conc float64 `json:"PM2.5_conc"`
	PM10UGM3 float64 `json:"PM1.0_ugm3"`
	BandUGM3 float64 `json:"PM1.0-2.5_ugm3"`
	PM25UGM3 float64 `json:"PM2.5_ugm3"`
}

// NewRecord builds the output record for a reading.
func NewRecord(r logic.Reading) Record {
	return Record{
		PM10Conc: r.PM10.Concentration,
		PM25Conc: r.PM25.Concentration,
		PM10UGM3: r.PM10.UGM3,
		BandUGM3: r.BandUGM3(),
		PM25UGM3: r.PM25.UGM3,
	}
}

// Encode renders a reading as one line, terminated by "\n".
func Encode(r logic.Reading, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		rec := NewRecord(r)
		line := strconv.FormatFloat(rec.PM10UGM3, 'f', 2, 64) + "," +
			strconv.FormatFloat(rec.PM25UGM3, 'f', 2, 64) + "\n"
		return []byte(line), nil
	case FormatJSON, "":
		data, err := json.Marshal(NewRecord(r))
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		return append(data, '\n'), nil
	}
	return nil, fmt.Errorf("unknown report format %q", f)
}

// LineReporter writes encoded records to an io.Writer.
type LineReporter struct {
	w      io.Writer
	closer io.Closer
	format Format
}

// NewLineReporter writes records to w. w is not closed by Close.
func NewLineReporter(w io.Writer, f Format) *LineReporter {
	return &LineReporter{w: w, format: f}
}

// Report writes one record line.
func (l *LineReporter) Report(r logic.Reading) error {
	line, err := Encode(r, l.format)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Close closes the underlying sink if the reporter owns it.
func (l *LineReporter) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Multi fans a reading out to several reporters.
type Multi []Reporter

// Report sends the reading to every reporter, even after a failure.
func (m Multi) Report(r logic.Reading) error {
	var errs []error
	for _, rep := range m {
		if err := rep.Report(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every reporter.
func (m Multi) Close() error {
	var errs []error
	for _, rep := range m {
		if err := rep.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
