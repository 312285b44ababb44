package nmea

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// DefaultMaxLineLength is the longest line (in characters, terminator
// excluded) the Reader hands out.
const DefaultMaxLineLength = 100

// Reader frames a byte stream into lines. Timeouts and blocking are the
// underlying stream's business; Reader only splits and decodes.
type Reader struct {
	br      *bufio.Reader
	maxLen  int
	maxByte int
}

// NewReader returns a Reader with DefaultMaxLineLength.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, DefaultMaxLineLength)
}

// NewReaderSize returns a Reader rejecting lines longer than maxLen
// characters.
func NewReaderSize(r io.Reader, maxLen int) *Reader {
	if maxLen <= 0 {
		maxLen = DefaultMaxLineLength
	}
	return &Reader{
		br:     bufio.NewReaderSize(r, 512),
		maxLen: maxLen,
		// A UTF-8 rune is at most 4 bytes; anything longer than this can
		// be dropped without decoding.
		maxByte: maxLen * utf8.UTFMax,
	}
}

// Next returns the next line without its "\n" or "\r\n" terminator.
//
// Undecodable and overlong lines come back as *RejectError; the line is
// consumed and the following call continues with the next one. io.EOF marks
// the end of the stream. Any other error is the stream's own.
func (r *Reader) Next() (string, error) {
	var (
		buf      []byte
		n        int
		overflow bool
	)
	for {
		frag, err := r.br.ReadSlice('\n')
		n += len(frag)
		if !overflow {
			buf = append(buf, frag...)
			if len(trimEOL(buf)) > r.maxByte {
				overflow = true
				buf = nil
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if n == 0 || !errors.Is(err, io.EOF) {
				return "", err
			}
			// Final line without terminator; EOF is reported next call.
		}
		break
	}

	if overflow {
		return "", &RejectError{Reason: LineTooLong, Err: fmt.Errorf("more than %d bytes", r.maxByte)}
	}
	line := trimEOL(buf)
	if !utf8.Valid(line) {
		return "", &RejectError{Reason: DecodeError, Line: string(line)}
	}
	if cnt := utf8.RuneCount(line); cnt > r.maxLen {
		return "", &RejectError{
			Reason: LineTooLong,
			Line:   string(line),
			Err:    fmt.Errorf("len=%d max=%d", cnt, r.maxLen),
		}
	}
	return string(line), nil
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	return bytes.TrimSuffix(b, []byte("\r"))
}
