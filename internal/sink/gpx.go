package sink

import (
	"fmt"
	"os"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"gnsslog/internal/nmea"
)

// GPX collects a single-segment track and writes it as GPX 1.1 on Close.
type GPX struct {
	path string
	doc  *gpx.GPX
	now  func() time.Time
}

// NewGPX returns a GPX sink that will write to path. An empty path keeps the
// track in memory only (see Bytes).
func NewGPX(path, trackName string) *GPX {
	doc := &gpx.GPX{
		Version: "1.1",
		Creator: "gnsslog",
		Tracks: []gpx.GPXTrack{{
			Name:     trackName,
			Segments: []gpx.GPXTrackSegment{{}},
		}},
	}
	return &GPX{path: path, doc: doc, now: time.Now}
}

func (s *GPX) Accept(c nmea.Coordinate) error {
	seg := &s.doc.Tracks[0].Segments[0]
	seg.Points = append(seg.Points, gpx.GPXPoint{
		Point:     gpx.Point{Latitude: c.Lat, Longitude: c.Lon},
		Timestamp: s.now().UTC(),
	})
	return nil
}

// Len reports the number of track points collected.
func (s *GPX) Len() int {
	return len(s.doc.Tracks[0].Segments[0].Points)
}

// Bytes renders the track as indented GPX 1.1.
func (s *GPX) Bytes() ([]byte, error) {
	b, err := s.doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return nil, fmt.Errorf("gpx sink: %w", err)
	}
	return b, nil
}

func (s *GPX) Close() error {
	if s.path == "" {
		return nil
	}
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("gpx sink: %w", err)
	}
	return nil
}
