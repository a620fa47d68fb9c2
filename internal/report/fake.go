package report

import "github.com/sweeney/ppd42-sensor/internal/logic"

// FakeReporter records readings for test assertions.
type FakeReporter struct {
	// Readings contains all readings that were reported.
	Readings []logic.Reading

	// ReportError, if set, will be returned by Report.
	ReportError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeReporter creates a FakeReporter for testing.
func NewFakeReporter() *FakeReporter {
	return &FakeReporter{}
}

// Report records the reading.
func (f *FakeReporter) Report(r logic.Reading) error {
	if f.ReportError != nil {
		return f.ReportError
	}
	f.Readings = append(f.Readings, r)
	return nil
}

// Close marks the reporter as closed.
func (f *FakeReporter) Close() error {
	f.Closed = true
	return nil
}
