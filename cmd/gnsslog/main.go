package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"gnsslog/internal/config"
	"gnsslog/internal/logging"
	"gnsslog/internal/nmea"
	"gnsslog/internal/replay"
	"gnsslog/internal/web"
)

func main() {
	var (
		configPath  string
		summaryPath string
		playPath    string
		device      string
		interval    time.Duration
		loop        bool
	)
	flag.StringVar(&configPath, "config", "./configs/dev.yaml", "Path to YAML config")
	flag.StringVar(&summaryPath, "summary", "", "Print a summary of a raw sentence log and exit")
	flag.StringVar(&playPath, "play", "", "Play a raw sentence log onto a serial device and exit")
	flag.StringVar(&device, "device", "", "Serial device for -play (default: gps.device, then auto-detect)")
	flag.DurationVar(&interval, "interval", replay.DefaultInterval, "Pause between sentences for -play")
	flag.BoolVar(&loop, "loop", false, "Repeat the log for -play until interrupted")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logs := web.NewLogBuffer(2000)
	log := logging.New(logging.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Tee: logs})

	parser, err := nmea.NewParser(cfg.Parser.Layout, cfg.Parser.CheckRange)
	if err != nil {
		log.Fatal().Err(err).Msg("parser init failed")
	}

	if summaryPath != "" {
		if err := printLogSummary(os.Stdout, summaryPath, parser, cfg.Parser.MaxLineLength); err != nil {
			log.Fatal().Err(err).Str("path", summaryPath).Msg("summary failed")
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if playPath != "" {
		if device == "" {
			device = cfg.GPS.Device
		}
		if err := playLog(ctx, log, playPath, device, cfg.GPS.Baud, interval, loop); err != nil {
			log.Fatal().Err(err).Msg("play failed")
		}
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	log.Info().Str("config", configPath).Str("source", cfg.GPS.Source).Msg("gnsslog starting")
	if err := runRecorder(ctx, recorderDeps{
		cfg:        cfg,
		configPath: configPath,
		parser:     parser,
		log:        log,
		logs:       logs,
		reg:        reg,
	}); err != nil {
		log.Fatal().Err(err).Msg("gnsslog stopped")
	}
	log.Info().Msg("gnsslog stopped")
}
