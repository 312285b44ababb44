// Package metrics defines the Prometheus series the recorder exports.
//
// Series are registered on the Registerer passed to New so tests can use a
// private registry. cmd/gnsslog also builds its own registry, adding the Go
// and process collectors, and serves it at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gnsslog/internal/nmea"
)

const namespace = "gnsslog"

type Metrics struct {
	// LinesTotal counts every line taken off the receiver stream.
	LinesTotal prometheus.Counter
	// CoordinatesTotal counts coordinates delivered to the sinks.
	CoordinatesTotal prometheus.Counter
	// RejectedTotal counts skipped lines.
	// Label:
	//   - reason: not_gga, too_short, conversion_error, decode_error, line_too_long, out_of_range
	RejectedTotal *prometheus.CounterVec
	// LastFix holds the most recent accepted position.
	// Label:
	//   - axis: "lat" or "lon"
	LastFix *prometheus.GaugeVec
	// LastFixTime is the unix time of the most recent accepted position.
	LastFixTime prometheus.Gauge

	now func() time.Time
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		LinesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Total number of lines read from the receiver.",
		}),
		CoordinatesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinates_total",
			Help:      "Total number of coordinates handed to the sinks.",
		}),
		RejectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_lines_total",
			Help:      "Total number of lines skipped, labelled by reason.",
		}, []string{"reason"}),
		LastFix: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_fix_degrees",
			Help:      "Most recent accepted position in decimal degrees.",
		}, []string{"axis"}),
		LastFixTime: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_fix_timestamp_seconds",
			Help:      "Unix time of the most recent accepted position.",
		}),
		now: time.Now,
	}
	// Pre-create every reason so rates start at zero instead of absent.
	for _, r := range nmea.Reasons() {
		m.RejectedTotal.WithLabelValues(r.String())
	}
	return m
}

func (m *Metrics) ObserveLine(string) { m.LinesTotal.Inc() }

// ObserveReject counts a skipped line. Lines dropped by the reader never
// reached ObserveLine, so they are counted as lines here.
func (m *Metrics) ObserveReject(re *nmea.RejectError) {
	if re.Reason == nmea.DecodeError || re.Reason == nmea.LineTooLong {
		m.LinesTotal.Inc()
	}
	m.RejectedTotal.WithLabelValues(re.Reason.String()).Inc()
}

func (m *Metrics) ObserveAccept(c nmea.Coordinate) {
	m.CoordinatesTotal.Inc()
	m.LastFix.WithLabelValues("lat").Set(c.Lat)
	m.LastFix.WithLabelValues("lon").Set(c.Lon)
	m.LastFixTime.Set(float64(m.now().Unix()))
}

// Instrument chains the metric observers in front of any hooks already set
// on p.
func (m *Metrics) Instrument(p *nmea.Pipeline) {
	onLine, onReject, onAccept := p.OnLine, p.OnReject, p.OnAccept
	p.OnLine = func(line string) {
		m.ObserveLine(line)
		if onLine != nil {
			onLine(line)
		}
	}
	p.OnReject = func(re *nmea.RejectError) {
		m.ObserveReject(re)
		if onReject != nil {
			onReject(re)
		}
	}
	p.OnAccept = func(c nmea.Coordinate) {
		m.ObserveAccept(c)
		if onAccept != nil {
			onAccept(c)
		}
	}
}
