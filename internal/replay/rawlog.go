// Package replay records raw NMEA sentences and plays them back.
package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tevino/abool/v2"
	"go.uber.org/ratelimit"
)

// Log format: line-oriented text, one sentence per line as it came off the
// wire (terminator stripped). Blank lines and lines starting with '#' are
// ignored on read, so logs can be annotated by hand.

// DefaultInterval is the pause between sentences when playing a log onto a
// port; receivers emit one GGA per second, the bench rig wanted slower.
const DefaultInterval = 3 * time.Second

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]string, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 4096), 64*1024)

	lines := make([]string, 0, 1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// ReadFile reads a whole log.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

// Writer appends sentences to a log, flushing after every line.
type Writer struct {
	f      *os.File
	w      *bufio.Writer
	prefix string
	closed bool
}

// CreateWriter truncates path. When prefix is non-empty only lines starting
// with it are kept.
func CreateWriter(path string, prefix string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, w: bufio.NewWriter(f), prefix: prefix}, nil
}

func (ww *Writer) WriteLine(line string) error {
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if ww.prefix != "" && !strings.HasPrefix(line, ww.prefix) {
		return nil
	}
	if _, err := ww.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

// Player feeds logged sentences to a callback at a fixed rate.
type Player struct {
	limiter ratelimit.Limiter
	loop    bool
	stopped *abool.AtomicBool
}

// NewPlayer paces sentences interval apart; interval <= 0 plays as fast as
// the callback allows.
func NewPlayer(interval time.Duration, loop bool) *Player {
	var rl ratelimit.Limiter
	if interval > 0 {
		rl = ratelimit.New(1, ratelimit.Per(interval), ratelimit.WithoutSlack)
	} else {
		rl = ratelimit.NewUnlimited()
	}
	return &Player{limiter: rl, loop: loop, stopped: abool.New()}
}

// Stop makes Play return before the next sentence. Safe from any goroutine.
func (p *Player) Stop() {
	p.stopped.Set()
}

// Play hands each line to cb, looping if configured, until the lines are
// exhausted, ctx is done, Stop is called or cb fails. It returns how many
// lines were delivered.
func (p *Player) Play(ctx context.Context, lines []string, cb func(line string) error) (int, error) {
	if cb == nil {
		return 0, errors.New("callback is nil")
	}
	if len(lines) == 0 {
		return 0, errors.New("no lines")
	}

	sent := 0
	for {
		for _, line := range lines {
			if p.stopped.IsSet() {
				return sent, nil
			}
			if err := ctx.Err(); err != nil {
				return sent, err
			}
			p.limiter.Take()
			if err := cb(line); err != nil {
				return sent, fmt.Errorf("play line %d: %w", sent+1, err)
			}
			sent++
		}
		if !p.loop {
			return sent, nil
		}
	}
}

// LineWriter returns a Play callback that writes CRLF-terminated sentences
// to w, the way a receiver would.
func LineWriter(w io.Writer) func(line string) error {
	return func(line string) error {
		_, err := io.WriteString(w, line+"\r\n")
		return err
	}
}
