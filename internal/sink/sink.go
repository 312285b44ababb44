// Package sink holds the coordinate consumers the recorder can fan out to:
// files, a bounded display buffer, SQLite, GPX and UDP.
package sink

import (
	"errors"
	"io"
	"strconv"

	"gnsslog/internal/nmea"
)

// Sink is an nmea.Sink that owns a resource.
type Sink interface {
	nmea.Sink
	io.Closer
}

// Multi hands each coordinate to every sink in order. A failing sink does
// not stop the others from receiving the coordinate.
type Multi []nmea.Sink

func (m Multi) Accept(c nmea.Coordinate) error {
	var errs []error
	for _, s := range m {
		if err := s.Accept(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every member that implements io.Closer, in reverse order.
func (m Multi) Close() error {
	var errs []error
	for i := len(m) - 1; i >= 0; i-- {
		if c, ok := m[i].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// formatFloat renders a value the way a CSV row should carry it: shortest
// exact representation, no exponent.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BestEffort wraps a sink whose failures should not stop recording, such
// as a network forwarder. Errors go to OnErr instead of the caller.
type BestEffort struct {
	Sink
	OnErr func(err error)
}

func (b BestEffort) Accept(c nmea.Coordinate) error {
	if err := b.Sink.Accept(c); err != nil && b.OnErr != nil {
		b.OnErr(err)
	}
	return nil
}
