package gps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"

	"gnsslog/internal/nmea"
)

// Config selects and tunes the receiver source.
//
// Device may be empty to auto-detect. Baud must be a rate the platform
// serial implementation supports.
type Config struct {
	// Source is "serial", "gpsd" or "file". Empty means serial.
	Source string

	Device string
	Baud   int

	// GPSDAddr is host:port for Source=="gpsd".
	GPSDAddr string

	// ReplayPath, ReplayInterval and ReplayLoop drive Source=="file".
	ReplayPath     string
	ReplayInterval time.Duration
	ReplayLoop     bool

	// ReopenInterval is the minimum spacing between source opens.
	ReopenInterval time.Duration

	MaxLineLength int
}

type Snapshot struct {
	Source   string `json:"source"`
	Device   string `json:"device,omitempty"`
	Baud     int    `json:"baud,omitempty"`
	GPSDAddr string `json:"gpsd_addr,omitempty"`

	Connected bool `json:"connected"`
	Opens     int  `json:"opens"`

	Valid      bool    `json:"valid"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	LastFixUTC string  `json:"last_fix_utc,omitempty"`

	Lines    uint64            `json:"lines"`
	Accepted uint64            `json:"accepted"`
	Rejected uint64            `json:"rejected"`
	ByReason map[string]uint64 `json:"rejected_by_reason,omitempty"`

	LastReject string `json:"last_reject,omitempty"`
	LastError  string `json:"last_error,omitempty"`
	Finished   bool   `json:"finished"`
}

// stream is one open source. label names it in logs and the snapshot.
type stream struct {
	rc    io.ReadCloser
	label string
}

type openFunc func(ctx context.Context) (stream, error)

type Service struct {
	cfg      Config
	pipeline *nmea.Pipeline
	log      zerolog.Logger

	open    openFunc
	limiter ratelimit.Limiter
	now     func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	err    error

	last atomic.Value // Snapshot

	mu     sync.Mutex
	closer io.Closer

	// Owned by the run goroutine.
	cur Snapshot
}

// New wires a service around p. The service drives p from its own goroutine
// and chains its bookkeeping in front of p's existing hooks.
func New(cfg Config, p *nmea.Pipeline, log zerolog.Logger) (*Service, error) {
	if p == nil {
		return nil, fmt.Errorf("gps pipeline is nil")
	}
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	if cfg.Source == "" {
		cfg.Source = "serial"
	}
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if cfg.ReopenInterval <= 0 {
		cfg.ReopenInterval = 2 * time.Second
	}

	s := &Service{
		cfg:      cfg,
		pipeline: p,
		log:      log.With().Str("component", "gps").Logger(),
		limiter:  ratelimit.New(1, ratelimit.Per(cfg.ReopenInterval), ratelimit.WithoutSlack),
		now:      time.Now,
		done:     make(chan struct{}),
	}

	switch cfg.Source {
	case "serial":
		s.open = s.openSerial
	case "gpsd":
		if strings.TrimSpace(cfg.GPSDAddr) == "" {
			s.cfg.GPSDAddr = gpsdDefaultAddr
		}
		s.open = s.openGPSD
	case "file":
		if strings.TrimSpace(cfg.ReplayPath) == "" {
			return nil, fmt.Errorf("gps file source needs a replay path")
		}
		s.open = s.openFile
	default:
		return nil, fmt.Errorf("unknown gps source %q", cfg.Source)
	}

	s.cur = Snapshot{Source: s.cfg.Source, Device: s.cfg.Device, GPSDAddr: s.cfg.GPSDAddr}
	if s.cfg.Source == "serial" {
		s.cur.Baud = s.cfg.Baud
	}
	s.last.Store(s.cur)
	s.hook()
	return s, nil
}

func (s *Service) hook() {
	onReject, onAccept := s.pipeline.OnReject, s.pipeline.OnAccept
	s.pipeline.OnReject = func(re *nmea.RejectError) {
		s.cur.LastReject = re.Error()
		s.log.Debug().Str("reason", re.Reason.String()).Str("line", re.Line).Msg("line skipped")
		if onReject != nil {
			onReject(re)
		}
	}
	s.pipeline.OnAccept = func(c nmea.Coordinate) {
		s.cur.Valid = true
		s.cur.Lat, s.cur.Lon = c.Lat, c.Lon
		s.cur.LastFixUTC = s.now().UTC().Format(time.RFC3339Nano)
		if onAccept != nil {
			onAccept(c)
		}
	}
}

// Start launches the read loop. It returns once the goroutine is running;
// open failures are retried in the background and show up in Snapshot.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("gps service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.done)
		s.err = s.run(childCtx)
		s.cur.Connected = false
		s.cur.Finished = true
		if s.err != nil {
			s.cur.LastError = s.err.Error()
		}
		s.publish()
	}()
	return nil
}

// Done is closed when the read loop has ended: the context was cancelled,
// a file source ran out, or a sink failed.
func (s *Service) Done() <-chan struct{} { return s.done }

// Err reports why the loop ended. Nil for cancellation and for a file
// source that played to the end. Valid after Done is closed.
func (s *Service) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Service) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.limiter.Take()
		if ctx.Err() != nil {
			return nil
		}

		st, err := s.open(ctx)
		if err != nil {
			s.cur.LastError = err.Error()
			s.publish()
			s.log.Warn().Err(err).Msg("gps open failed")
			if s.cfg.Source == "file" {
				return err
			}
			continue
		}

		err = s.consume(ctx, st)
		var se *nmea.SinkError
		switch {
		case errors.As(err, &se):
			s.log.Error().Err(err).Msg("gps sink failed, stopping")
			return err
		case ctx.Err() != nil:
			return nil
		case s.cfg.Source == "file":
			if err != nil {
				return err
			}
			s.log.Info().Str("path", st.label).Msg("replay finished")
			return nil
		}

		msg := "gps stream closed"
		if err != nil {
			msg = err.Error()
		}
		s.cur.LastError = msg
		s.publish()
		s.log.Warn().Str("source", st.label).Str("reason", msg).Dur("reopen_after", s.cfg.ReopenInterval).Msg("gps stream lost")
	}
}

func (s *Service) consume(ctx context.Context, st stream) error {
	s.setCloser(st.rc)
	defer func() {
		s.setCloser(nil)
		_ = st.rc.Close()
	}()
	// Close may have run while the open was in flight and found no closer.
	if err := ctx.Err(); err != nil {
		return err
	}

	s.cur.Connected = true
	s.cur.Opens++
	s.cur.LastError = ""
	if s.cfg.Source == "serial" {
		s.cur.Device = st.label
	}
	s.publish()
	s.log.Info().Str("source", s.cfg.Source).Str("stream", st.label).Msg("gps stream open")

	r := nmea.NewReaderSize(st.rc, s.cfg.MaxLineLength)
	for {
		if err := ctx.Err(); err != nil {
			s.cur.Connected = false
			return err
		}
		err := s.pipeline.Step(r)
		s.publish()
		if err != nil {
			s.cur.Connected = false
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

func (s *Service) publish() {
	st := s.pipeline.Stats()
	s.cur.Lines = st.Lines
	s.cur.Accepted = st.Accepted
	s.cur.Rejected = st.RejectedTotal()
	s.cur.ByReason = st.ByReason()
	s.last.Store(s.cur)
}

func (s *Service) setCloser(c io.Closer) {
	s.mu.Lock()
	s.closer = c
	s.mu.Unlock()
}

// Close stops the loop and interrupts any blocking read.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	v := s.last.Load()
	if v == nil {
		return Snapshot{}
	}
	return v.(Snapshot)
}

func (s *Service) openSerial(ctx context.Context) (stream, error) {
	device := strings.TrimSpace(s.cfg.Device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			return stream{}, fmt.Errorf("gps auto-detect failed: no serial receiver found")
		}
	}
	f, err := openSerial(device, s.cfg.Baud)
	if err != nil {
		return stream{}, fmt.Errorf("gps open failed device=%s baud=%d: %w", device, s.cfg.Baud, err)
	}
	return stream{rc: f, label: device}, nil
}
