package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	gonmea "github.com/adrianmo/go-nmea"
	"github.com/dustin/go-humanize"
	geo "github.com/kellydunn/golang-geo"

	"gnsslog/internal/nmea"
)

type logSummary struct {
	Stats nmea.Stats

	// Types counts sentences by address field (talker + type, e.g. GNGGA).
	Types map[string]int
	// ChecksumFailures counts sentences whose *hh trailer does not match.
	ChecksumFailures int
	// HemisphereFlips counts accepted fixes the full decoder places south
	// or west; the positional parser reports them as positive.
	HemisphereFlips int

	TrackKm float64

	HasBox                         bool
	MinLat, MaxLat, MinLon, MaxLon float64
}

// summarizeLog runs a raw log through the same reader and parser the live
// recorder uses and audits each sentence with a full NMEA decoder.
func summarizeLog(r io.Reader, parser *nmea.Parser, maxLine int) (logSummary, error) {
	s := logSummary{Types: map[string]int{}}
	var prev *geo.Point
	var lastLine string

	p := &nmea.Pipeline{
		Parser: parser,
		OnLine: func(line string) {
			lastLine = line
			s.Types[sentenceType(line)]++
			if !strings.HasPrefix(line, "$") {
				return
			}
			if _, err := gonmea.Parse(line); err != nil && strings.Contains(err.Error(), "checksum") {
				s.ChecksumFailures++
			}
		},
		OnAccept: func(c nmea.Coordinate) {
			if sent, err := gonmea.Parse(lastLine); err == nil {
				if gga, ok := sent.(gonmea.GGA); ok && (gga.Latitude < 0 || gga.Longitude < 0) {
					s.HemisphereFlips++
				}
			}

			pt := geo.NewPoint(c.Lat, c.Lon)
			if prev != nil {
				s.TrackKm += prev.GreatCircleDistance(pt)
			}
			prev = pt

			if !s.HasBox {
				s.MinLat, s.MaxLat, s.MinLon, s.MaxLon = c.Lat, c.Lat, c.Lon, c.Lon
				s.HasBox = true
				return
			}
			s.MinLat = math.Min(s.MinLat, c.Lat)
			s.MaxLat = math.Max(s.MaxLat, c.Lat)
			s.MinLon = math.Min(s.MinLon, c.Lon)
			s.MaxLon = math.Max(s.MaxLon, c.Lon)
		},
	}
	if err := p.Run(nmea.NewReaderSize(r, maxLine)); err != nil {
		return s, err
	}
	s.Stats = p.Stats()
	return s, nil
}

// sentenceType returns the address field of a sentence, or "other".
func sentenceType(line string) string {
	if !strings.HasPrefix(line, "$") {
		return "other"
	}
	addr := line[1:]
	if i := strings.IndexAny(addr, ",*"); i >= 0 {
		addr = addr[:i]
	}
	if addr == "" {
		return "other"
	}
	return addr
}

func printLogSummary(w io.Writer, path string, parser *nmea.Parser, maxLine int) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	size := uint64(0)
	if fi, err := f.Stat(); err == nil {
		size = uint64(fi.Size())
	}

	s, err := summarizeLog(f, parser, maxLine)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "path: %s (%s)\n", path, humanize.Bytes(size))
	fmt.Fprintf(w, "lines: %s\n", humanize.Comma(int64(s.Stats.Lines)))
	fmt.Fprintf(w, "accepted: %s\n", humanize.Comma(int64(s.Stats.Accepted)))
	fmt.Fprintf(w, "rejected: %s\n", humanize.Comma(int64(s.Stats.RejectedTotal())))
	for _, r := range nmea.Reasons() {
		if n := s.Stats.Rejected[r]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", r, n)
		}
	}
	fmt.Fprintf(w, "checksum_failures: %d\n", s.ChecksumFailures)
	fmt.Fprintf(w, "hemisphere_flips: %d\n", s.HemisphereFlips)
	fmt.Fprintf(w, "track_km: %s\n", humanize.FtoaWithDigits(s.TrackKm, 3))
	if s.HasBox {
		fmt.Fprintf(w, "bbox: lat [%.6f, %.6f] lon [%.6f, %.6f]\n", s.MinLat, s.MaxLat, s.MinLon, s.MaxLon)
	}

	types := make([]string, 0, len(s.Types))
	for k := range s.Types {
		types = append(types, k)
	}
	sort.Strings(types)
	fmt.Fprintf(w, "sentence_types:\n")
	for _, k := range types {
		fmt.Fprintf(w, "  %s: %d\n", k, s.Types[k])
	}
	return nil
}
