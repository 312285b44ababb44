package gps

import (
	"context"
	"fmt"
	"io"

	"gnsslog/internal/replay"
)

// openFile plays a recorded raw log into a pipe, paced like a live receiver.
func (s *Service) openFile(ctx context.Context) (stream, error) {
	lines, err := replay.ReadFile(s.cfg.ReplayPath)
	if err != nil {
		return stream{}, fmt.Errorf("gps replay read failed path=%s: %w", s.cfg.ReplayPath, err)
	}
	if len(lines) == 0 {
		return stream{}, fmt.Errorf("gps replay log %s is empty", s.cfg.ReplayPath)
	}

	pr, pw := io.Pipe()
	player := replay.NewPlayer(s.cfg.ReplayInterval, s.cfg.ReplayLoop)
	go func() {
		_, err := player.Play(ctx, lines, replay.LineWriter(pw))
		_ = pw.CloseWithError(err)
	}()
	return stream{rc: &playerStream{PipeReader: pr, player: player}, label: s.cfg.ReplayPath}, nil
}

type playerStream struct {
	*io.PipeReader
	player *replay.Player
}

func (p *playerStream) Close() error {
	p.player.Stop()
	return p.PipeReader.Close()
}
