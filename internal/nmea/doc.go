// Package nmea turns a serial NMEA byte stream into decimal-degree
// coordinates.
//
// It is deliberately narrow:
//   - Reader frames a byte stream into text lines
//   - Parser accepts only $GNGGA sentences and slices latitude/longitude at
//     fixed character offsets (see Layout)
//   - Pipeline hands every accepted Coordinate to a Sink and counts the rest
//
// Nothing here owns a goroutine or a device. Callers drive the loop.
package nmea
