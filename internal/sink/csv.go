package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"gnsslog/internal/nmea"
)

// CSV writes one "lat,lon" row per coordinate and flushes after every row
// so a crash or unplugged receiver never loses the tail of a track.
type CSV struct {
	w      *csv.Writer
	closer io.Closer
}

// CreateCSV truncates path and returns a CSV sink writing to it.
func CreateCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv sink: %w", err)
	}
	s := NewCSV(f)
	s.closer = f
	return s, nil
}

// NewCSV returns a CSV sink on w. Close does not close w.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w)}
}

func (s *CSV) Accept(c nmea.Coordinate) error {
	if err := s.w.Write([]string{formatFloat(c.Lat), formatFloat(c.Lon)}); err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}
	return nil
}

func (s *CSV) Close() error {
	s.w.Flush()
	err := s.w.Error()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
		s.closer = nil
	}
	return err
}
