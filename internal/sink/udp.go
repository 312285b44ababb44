package sink

import (
	"fmt"

	"gnsslog/internal/nmea"
	"gnsslog/internal/udp"
)

type sender interface {
	Send(payload []byte) error
	Close() error
}

// UDP forwards each coordinate as a "lat,lon\n" datagram at display
// precision, e.g. to a moving-map process on another host.
type UDP struct {
	out sender
}

func DialUDP(dest string) (*UDP, error) {
	b, err := udp.NewBroadcaster(dest)
	if err != nil {
		return nil, fmt.Errorf("udp sink: %w", err)
	}
	return &UDP{out: b}, nil
}

func (s *UDP) Accept(c nmea.Coordinate) error {
	payload := fmt.Appendf(nil, "%.*f,%.*f\n", DisplayPrecision, c.Lat, DisplayPrecision, c.Lon)
	if err := s.out.Send(payload); err != nil {
		return fmt.Errorf("udp sink: %w", err)
	}
	return nil
}

func (s *UDP) Close() error {
	return s.out.Close()
}
