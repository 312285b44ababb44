package gps

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

const gpsdDefaultAddr = "127.0.0.1:2947"

// gpsdWatchNMEA asks gpsd to relay the receiver's sentences verbatim.
const gpsdWatchNMEA = "?WATCH={\"enable\":true,\"nmea\":true}\n"

// dialGPSD connects to gpsd over TCP.
func dialGPSD(ctx context.Context, addr string) (net.Conn, error) {
	if strings.TrimSpace(addr) == "" {
		addr = gpsdDefaultAddr
	}
	d := &net.Dialer{Timeout: 2 * time.Second}
	return d.DialContext(ctx, "tcp", addr)
}

func gpsdWatch(w io.Writer) error {
	_, err := io.WriteString(w, gpsdWatchNMEA)
	return err
}

func (s *Service) openGPSD(ctx context.Context) (stream, error) {
	conn, err := dialGPSD(ctx, s.cfg.GPSDAddr)
	if err != nil {
		return stream{}, fmt.Errorf("gpsd dial failed addr=%s: %w", s.cfg.GPSDAddr, err)
	}
	if err := gpsdWatch(conn); err != nil {
		_ = conn.Close()
		return stream{}, fmt.Errorf("gpsd watch failed: %w", err)
	}
	r := newGPSDReader(conn, func(rep gpsdReport) {
		if rep.device != "" {
			s.cur.Device = rep.device
		}
		if rep.err != "" {
			s.log.Warn().Str("gpsd_error", rep.err).Msg("gpsd reported an error")
		}
	})
	return stream{rc: r, label: s.cfg.GPSDAddr}, nil
}

type gpsdMsgBase struct {
	Class string `json:"class"`
}

type gpsdDevices struct {
	Devices []struct {
		Path string `json:"path"`
	} `json:"devices"`
}

type gpsdError struct {
	Message string `json:"message"`
}

// gpsdReport is what the JSON chatter between sentences tells us.
type gpsdReport struct {
	class  string
	device string
	err    string
}

func parseGPSDReport(line []byte) (gpsdReport, error) {
	var base gpsdMsgBase
	if err := json.Unmarshal(line, &base); err != nil {
		return gpsdReport{}, fmt.Errorf("gpsd json parse failed: %v", err)
	}
	rep := gpsdReport{class: strings.ToUpper(strings.TrimSpace(base.Class))}
	switch rep.class {
	case "DEVICES":
		var d gpsdDevices
		if err := json.Unmarshal(line, &d); err != nil {
			return rep, fmt.Errorf("gpsd devices parse failed: %v", err)
		}
		if len(d.Devices) > 0 {
			rep.device = d.Devices[0].Path
		}
	case "ERROR":
		var e gpsdError
		if err := json.Unmarshal(line, &e); err != nil {
			return rep, fmt.Errorf("gpsd error parse failed: %v", err)
		}
		rep.err = e.Message
	}
	return rep, nil
}

// gpsdReader passes the relayed sentences through and swallows gpsd's own
// JSON lines (VERSION, DEVICES, WATCH, ...), reporting them to onReport.
type gpsdReader struct {
	conn     io.ReadCloser
	br       *bufio.Reader
	pending  []byte
	buf      []byte
	onReport func(gpsdReport)
}

func newGPSDReader(conn io.ReadCloser, onReport func(gpsdReport)) *gpsdReader {
	return &gpsdReader{conn: conn, br: bufio.NewReaderSize(conn, 4096), onReport: onReport}
}

func (g *gpsdReader) Read(p []byte) (int, error) {
	for len(g.pending) == 0 {
		line, err := g.br.ReadSlice('\n')
		// An overlong line is passed through in chunks; the line reader
		// downstream rejects it.
		if err != nil && !errors.Is(err, bufio.ErrBufferFull) {
			if len(line) == 0 {
				return 0, err
			}
		}
		if len(line) > 0 && line[0] == '{' && line[len(line)-1] == '\n' {
			if rep, perr := parseGPSDReport(line); perr == nil && g.onReport != nil {
				g.onReport(rep)
			}
			continue
		}
		g.buf = append(g.buf[:0], line...)
		g.pending = g.buf
	}
	n := copy(p, g.pending)
	g.pending = g.pending[n:]
	return n, nil
}

func (g *gpsdReader) Close() error { return g.conn.Close() }
