package web

import (
	"sync/atomic"
	"time"

	"gnsslog/internal/gps"
)

const serviceName = "gnsslog"

// GPSSource is the part of gps.Service the status page reads.
type GPSSource interface {
	Snapshot() gps.Snapshot
}

type Status struct {
	startUnixNano int64
	gps           GPSSource
	configPath    atomic.Value // string
	sinks         atomic.Value // []string
	parser        atomic.Value // ParserInfo
}

func NewStatus(src GPSSource) *Status {
	s := &Status{gps: src}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.configPath.Store("")
	s.sinks.Store([]string{})
	return s
}

// SetStatic records facts fixed at startup: which config was loaded and
// which outputs are active.
func (s *Status) SetStatic(configPath string, sinks []string) {
	s.configPath.Store(configPath)
	if sinks != nil {
		s.sinks.Store(append([]string(nil), sinks...))
	}
}

// SetParser records the parser settings reported by /api/about.
func (s *Status) SetParser(pi ParserInfo) {
	s.parser.Store(pi)
}

type StatusSnapshot struct {
	Service    string       `json:"service"`
	NowUTC     string       `json:"now_utc"`
	UptimeSec  int64        `json:"uptime_sec"`
	ConfigPath string       `json:"config_path,omitempty"`
	Sinks      []string     `json:"sinks"`
	GPS        gps.Snapshot `json:"gps"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:    serviceName,
		NowUTC:     nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:  int64(nowUTC.Sub(start).Seconds()),
		ConfigPath: s.configPath.Load().(string),
		Sinks:      s.sinks.Load().([]string),
	}
	if s.gps != nil {
		snap.GPS = s.gps.Snapshot()
	}
	return snap
}
