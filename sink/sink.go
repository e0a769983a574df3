// Package sink provides the output devices the pump can write to.
package sink

import (
	"errors"
	"io"

	"audiotv/pump"
)

// Tee writes every chunk to each sink in order, stopping at the first error.
type Tee []pump.Sink

// Write implements pump.Sink.
func (t Tee) Write(samples []int16) error {
	for _, s := range t {
		if err := s.Write(samples); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink that is an io.Closer.
func (t Tee) Close() error {
	var errs []error
	for _, s := range t {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Null discards everything.
type Null struct{}

// Write implements pump.Sink.
func (Null) Write([]int16) error { return nil }

// OpenNull is an opener for Null.
func OpenNull(int) (pump.Sink, error) { return Null{}, nil }
