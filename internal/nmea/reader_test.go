package nmea

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func readAll(t *testing.T, r *Reader) (lines []string, rejects []Reason) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		line, err := r.Next()
		if errors.Is(err, io.EOF) {
			return lines, rejects
		}
		if re, ok := AsReject(err); ok {
			rejects = append(rejects, re.Reason)
			continue
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		lines = append(lines, line)
	}
	t.Fatalf("reader did not reach EOF")
	return nil, nil
}

func TestReader_SplitsAndStripsTerminators(t *testing.T) {
	r := NewReader(strings.NewReader("a\r\nb\n\nc"))
	lines, rejects := readAll(t, r)
	want := []string{"a", "b", "", "c"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("lines=%q want %q", lines, want)
	}
	if len(rejects) != 0 {
		t.Fatalf("unexpected rejects %v", rejects)
	}
}

func TestReader_InvalidUTF8ContinuesWithNextLine(t *testing.T) {
	in := "\xff\xfe$GNGGA,broken\n" + alignedGGA + "\r\n"
	r := NewReader(strings.NewReader(in))

	_, err := r.Next()
	re := requireReason(t, err, DecodeError)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("errors.Is(ErrDecode)=false")
	}
	if !strings.HasSuffix(re.Line, "$GNGGA,broken") {
		t.Fatalf("line=%q", re.Line)
	}

	line, err := r.Next()
	if err != nil {
		t.Fatalf("Next() after decode error: %v", err)
	}
	if line != alignedGGA {
		t.Fatalf("line=%q", line)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v want EOF", err)
	}
}

func TestReader_LineTooLong(t *testing.T) {
	long := strings.Repeat("x", 101)
	in := long + "\n" + strings.Repeat("y", 100) + "\n" + strings.Repeat("z", 5000) + "\nok\n"
	r := NewReader(strings.NewReader(in))

	lines, rejects := readAll(t, r)
	if len(rejects) != 2 || rejects[0] != LineTooLong || rejects[1] != LineTooLong {
		t.Fatalf("rejects=%v", rejects)
	}
	if len(lines) != 2 || len(lines[0]) != 100 || lines[1] != "ok" {
		t.Fatalf("lines=%q", lines)
	}
}

func TestReader_CountsCharactersNotBytes(t *testing.T) {
	// 100 two-byte runes: 200 bytes but within a 100 character limit.
	line := strings.Repeat("é", 100)
	r := NewReader(strings.NewReader(line + "\n"))
	got, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if got != line {
		t.Fatalf("line mismatch")
	}
}

func TestReader_CustomMax(t *testing.T) {
	r := NewReaderSize(strings.NewReader("abcd\nabc\n"), 3)
	lines, rejects := readAll(t, r)
	if len(rejects) != 1 || len(lines) != 1 || lines[0] != "abc" {
		t.Fatalf("lines=%q rejects=%v", lines, rejects)
	}
}

func TestReader_OneByteReads(t *testing.T) {
	r := NewReader(iotest.OneByteReader(strings.NewReader(alignedGGA + "\r\n" + alignedGGA)))
	lines, _ := readAll(t, r)
	if len(lines) != 2 || lines[0] != alignedGGA || lines[1] != alignedGGA {
		t.Fatalf("lines=%q", lines)
	}
}

func TestReader_StreamErrorPassesThrough(t *testing.T) {
	boom := errors.New("port unplugged")
	r := NewReader(iotest.ErrReader(boom))
	if _, err := r.Next(); !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}
}

func TestReader_EmptyStream(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v want EOF", err)
	}
}

// The line terminator is not part of the sentence: a 43-character sentence
// stays too short even though it reaches 45 bytes with its CRLF.
func TestReader_TerminatorDoesNotCountTowardMinLength(t *testing.T) {
	short := alignedGGA[:GNGGALayout.MinSentenceLen-1]

	r := NewReader(strings.NewReader(short + "\r\n"))
	line, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if line != short {
		t.Fatalf("line=%q want %q", line, short)
	}
	_, err = DefaultParser().Parse(line)
	requireReason(t, err, TooShort)

	// Handed the raw bytes, the parser would slice "00630.30000\r" and
	// accept it; the reader stripping CRLF first is what rejects it.
	if _, err := DefaultParser().Parse(short + "\r\n"); err != nil {
		t.Fatalf("Parse(raw) error: %v", err)
	}
}
