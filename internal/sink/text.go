package sink

import (
	"fmt"
	"io"
	"os"

	"gnsslog/internal/nmea"
)

// DisplayPrecision is the number of decimals shown to a human.
const DisplayPrecision = 6

// Text writes "lat,lon" lines at display precision.
type Text struct {
	w         io.Writer
	closer    io.Closer
	precision int
}

// CreateText truncates path and returns a Text sink writing to it.
func CreateText(path string) (*Text, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("text sink: %w", err)
	}
	s := NewText(f, DisplayPrecision)
	s.closer = f
	return s, nil
}

// NewText returns a Text sink on w. A negative precision uses the shortest
// exact representation.
func NewText(w io.Writer, precision int) *Text {
	return &Text{w: w, precision: precision}
}

func (s *Text) Accept(c nmea.Coordinate) error {
	var err error
	if s.precision < 0 {
		_, err = fmt.Fprintf(s.w, "%s,%s\n", formatFloat(c.Lat), formatFloat(c.Lon))
	} else {
		_, err = fmt.Fprintf(s.w, "%.*f,%.*f\n", s.precision, c.Lat, s.precision, c.Lon)
	}
	if err != nil {
		return fmt.Errorf("text sink: %w", err)
	}
	return nil
}

func (s *Text) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
