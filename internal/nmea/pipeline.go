package nmea

import (
	"errors"
	"io"
)

// Sink receives accepted coordinates one at a time, in arrival order.
// A returned error is treated as an I/O failure and stops Run.
type Sink interface {
	Accept(c Coordinate) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(c Coordinate) error

func (f SinkFunc) Accept(c Coordinate) error { return f(c) }

// SinkError wraps a failure returned by the Sink. Run stops on it; callers
// treat it as fatal, unlike stream errors which may warrant a reopen.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string { return "sink: " + e.Err.Error() }

func (e *SinkError) Unwrap() error { return e.Err }

// Stats counts what a Pipeline has seen.
type Stats struct {
	Lines    uint64
	Accepted uint64
	Rejected [numReasons]uint64
}

// RejectedTotal sums rejections over all reasons.
func (s Stats) RejectedTotal() uint64 {
	var n uint64
	for _, v := range s.Rejected {
		n += v
	}
	return n
}

// ByReason returns rejection counts keyed by reason name, omitting zeros.
func (s Stats) ByReason() map[string]uint64 {
	out := map[string]uint64{}
	for r, v := range s.Rejected {
		if v > 0 {
			out[Reason(r).String()] = v
		}
	}
	return out
}

// Pipeline wires Reader -> Parser -> Sink. It is not safe for concurrent
// use; one goroutine drives it.
type Pipeline struct {
	Parser *Parser
	Sink   Sink

	// OnLine sees every decoded line before it is parsed.
	OnLine func(line string)
	// OnReject sees every skipped line, including reader rejections.
	OnReject func(err *RejectError)
	// OnAccept sees every coordinate after the sink took it.
	OnAccept func(c Coordinate)

	stats Stats
}

// Feed parses one line. Rejections are counted and reported through
// OnReject; only sink errors are returned, as *SinkError.
func (p *Pipeline) Feed(line string) error {
	p.stats.Lines++
	if p.OnLine != nil {
		p.OnLine(line)
	}

	parser := p.Parser
	if parser == nil {
		parser = DefaultParser()
	}
	c, err := parser.Parse(line)
	if err != nil {
		if re, ok := AsReject(err); ok {
			p.reject(re)
			return nil
		}
		return err
	}

	if p.Sink != nil {
		if err := p.Sink.Accept(c); err != nil {
			return &SinkError{Err: err}
		}
	}
	p.stats.Accepted++
	if p.OnAccept != nil {
		p.OnAccept(c)
	}
	return nil
}

// Reject records a line dropped before it reached Feed, typically by
// Reader.Next. It counts as a line seen.
func (p *Pipeline) Reject(re *RejectError) {
	p.stats.Lines++
	p.reject(re)
}

func (p *Pipeline) reject(re *RejectError) {
	if re.Reason >= 0 && re.Reason < numReasons {
		p.stats.Rejected[re.Reason]++
	}
	if p.OnReject != nil {
		p.OnReject(re)
	}
}

// Run drains r until EOF. Returns nil at EOF, otherwise the stream or sink
// error that stopped it.
func (p *Pipeline) Run(r *Reader) error {
	for {
		if err := p.Step(r); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// Step reads and processes exactly one line. Reader rejections are absorbed;
// io.EOF and stream errors are returned as-is.
func (p *Pipeline) Step(r *Reader) error {
	line, err := r.Next()
	if err != nil {
		if re, ok := AsReject(err); ok {
			p.Reject(re)
			return nil
		}
		return err
	}
	return p.Feed(line)
}

func (p *Pipeline) Stats() Stats { return p.stats }
