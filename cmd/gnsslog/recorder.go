package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gnsslog/internal/config"
	"gnsslog/internal/gps"
	"gnsslog/internal/indicator"
	"gnsslog/internal/metrics"
	"gnsslog/internal/nmea"
	"gnsslog/internal/replay"
	"gnsslog/internal/sink"
	"gnsslog/internal/web"
)

type recorderDeps struct {
	cfg        config.Config
	configPath string
	parser     *nmea.Parser
	log        zerolog.Logger
	logs       *web.LogBuffer
	reg        *prometheus.Registry
}

// outputs is everything the recorder writes to besides the coordinate sinks.
type outputs struct {
	sinks  sink.Multi
	names  []string
	memory *sink.Memory
	raw    *replay.Writer
}

func (o *outputs) add(name string, s nmea.Sink) {
	o.sinks = append(o.sinks, s)
	o.names = append(o.names, name)
}

func (o *outputs) Close() error {
	err := o.sinks.Close()
	if o.raw != nil {
		if rerr := o.raw.Close(); err == nil {
			err = rerr
		}
	}
	return err
}

// openOutputs creates every configured output. On failure the ones already
// open are closed.
func openOutputs(cfg config.Config, log zerolog.Logger) (*outputs, error) {
	out := &outputs{memory: sink.NewMemory(cfg.Output.MemorySize)}
	out.add("memory", out.memory)
	fail := func(err error) (*outputs, error) {
		_ = out.Close()
		return nil, err
	}

	o := cfg.Output
	if o.CSVPath != "" {
		s, err := sink.CreateCSV(o.CSVPath)
		if err != nil {
			return fail(err)
		}
		out.add("csv", s)
	}
	if o.TextPath != "" {
		s, err := sink.CreateText(o.TextPath)
		if err != nil {
			return fail(err)
		}
		out.add("text", s)
	}
	if o.GPXPath != "" {
		name := strings.TrimSuffix(filepath.Base(o.GPXPath), filepath.Ext(o.GPXPath))
		out.add("gpx", sink.NewGPX(o.GPXPath, name))
	}
	if o.SQLitePath != "" {
		s, err := sink.OpenSQLite(o.SQLitePath)
		if err != nil {
			return fail(err)
		}
		log.Info().Str("path", o.SQLitePath).Str("session", s.Session()).Msg("sqlite session opened")
		out.add("sqlite", s)
	}
	if o.UDPDest != "" {
		s, err := sink.DialUDP(o.UDPDest)
		if err != nil {
			return fail(err)
		}
		out.add("udp", sink.BestEffort{Sink: s, OnErr: func(err error) {
			log.Warn().Err(err).Str("dest", o.UDPDest).Msg("udp forward failed")
		}})
	}
	if pin := cfg.Indicator.FixLEDPin; pin > 0 {
		led, err := indicator.Open(pin, cfg.Indicator.Pulse)
		if err != nil {
			// The LED is optional hardware.
			log.Warn().Err(err).Int("pin", pin).Msg("fix led unavailable")
		} else {
			out.add("led", led)
		}
	}
	if o.RawPath != "" {
		w, err := replay.CreateWriter(o.RawPath, cfg.RawPrefix())
		if err != nil {
			return fail(fmt.Errorf("raw log: %w", err))
		}
		out.raw = w
		out.names = append(out.names, "raw")
	}
	return out, nil
}

func gpsConfig(cfg config.Config) gps.Config {
	g := cfg.GPS
	return gps.Config{
		Source:         g.Source,
		Device:         g.Device,
		Baud:           g.Baud,
		GPSDAddr:       g.GPSDAddr,
		ReplayPath:     g.ReplayPath,
		ReplayInterval: g.ReplayInterval,
		ReplayLoop:     g.ReplayLoop,
		ReopenInterval: g.ReopenInterval,
		MaxLineLength:  cfg.Parser.MaxLineLength,
	}
}

// runRecorder ingests until ctx is cancelled, a file source is exhausted or
// a sink fails. Only the last is reported as an error.
func runRecorder(ctx context.Context, d recorderDeps) error {
	started := time.Now()
	out, err := openOutputs(d.cfg, d.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			d.log.Error().Err(err).Msg("closing outputs")
		}
	}()

	p := &nmea.Pipeline{Parser: d.parser, Sink: out.sinks}
	if out.raw != nil {
		raw := out.raw
		p.OnLine = func(line string) {
			if err := raw.WriteLine(line); err != nil {
				d.log.Warn().Err(err).Msg("raw log write failed")
			}
		}
	}
	metrics.New(d.reg).Instrument(p)

	svc, err := gps.New(gpsConfig(d.cfg), p, d.log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Close()

	d.log.Info().Strs("outputs", out.names).Msg("recording")

	if listen := strings.TrimSpace(d.cfg.Web.Listen); listen != "" {
		status := web.NewStatus(svc)
		status.SetStatic(d.configPath, out.names)
		status.SetParser(web.ParserInfo{
			Layout:        d.parser.Layout(),
			MaxLineLength: d.cfg.Parser.MaxLineLength,
			CheckRange:    d.cfg.Parser.CheckRange,
		})
		h := web.Handler(status, out.memory, d.logs, promhttp.HandlerFor(d.reg, promhttp.HandlerOpts{}))
		go func() {
			d.log.Info().Str("listen", listen).Msg("web ui enabled")
			if err := web.Serve(ctx, listen, h); err != nil && ctx.Err() == nil {
				d.log.Error().Err(err).Msg("web server stopped")
			}
		}()
	}

	select {
	case <-ctx.Done():
	case <-svc.Done():
	}
	svc.Close()

	snap := svc.Snapshot()
	d.log.Info().
		Uint64("lines", snap.Lines).
		Uint64("accepted", snap.Accepted).
		Uint64("rejected", snap.Rejected).
		Interface("rejected_by_reason", snap.ByReason).
		Int("opens", snap.Opens).
		Dur("uptime", time.Since(started)).
		Msg("gnss stream closed")
	return svc.Err()
}
