package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"gnsslog/internal/gps"
	"gnsslog/internal/replay"
)

// playLog writes a recorded raw log onto a serial device, one sentence per
// interval, like a receiver would. Used to bench-test downstream tools.
func playLog(ctx context.Context, log zerolog.Logger, path, device string, baud int, interval time.Duration, loop bool) error {
	lines, err := replay.ReadFile(path)
	if err != nil {
		return err
	}
	port, err := gps.OpenPort(device, baud)
	if err != nil {
		return err
	}
	defer port.Close()

	log.Info().Str("path", path).Str("device", device).Int("sentences", len(lines)).Dur("interval", interval).Bool("loop", loop).Msg("play started")
	n, err := replay.NewPlayer(interval, loop).Play(ctx, lines, replay.LineWriter(port))
	log.Info().Int("sent", n).Msg("play finished")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
