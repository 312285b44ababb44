// Package gps owns the receiver connection. It opens the configured source
// (a serial port, a gpsd daemon relaying raw NMEA, or a recorded log played
// back in real time), feeds every line through an nmea.Pipeline and keeps a
// status snapshot for the web UI.
//
// Serial and gpsd sources are reopened after a drop, no more often than the
// configured reopen interval. A file source ends when the log is exhausted.
package gps
