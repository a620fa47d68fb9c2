//go:build !linux

package gpio

import "errors"

// CdevSource is not available on non-Linux platforms.
type CdevSource struct{}

// NewCdevSource returns a source whose Start fails on non-Linux platforms.
func NewCdevSource(chip string, pinPM10, pinPM25 int, invert bool) *CdevSource {
	return &CdevSource{}
}

// Start is not implemented on non-Linux platforms.
func (s *CdevSource) Start(h Handler) error {
	return errors.New("gpio: cdev backend not supported on this platform (requires Linux)")
}

// Levels is not implemented on non-Linux platforms.
func (s *CdevSource) Levels() (bool, bool, error) {
	return false, false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *CdevSource) Close() error {
	return nil
}
