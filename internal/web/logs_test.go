package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLogBuffer_HoldsPartialLines(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("first\r\nsec"))
	lines, _ := b.Snapshot(0)
	if len(lines) != 1 || lines[0] != "first" {
		t.Fatalf("lines=%q", lines)
	}
	_, _ = b.Write([]byte("ond\n\nthird\n"))
	lines, _ = b.Snapshot(0)
	if len(lines) != 3 || lines[1] != "second" || lines[2] != "third" {
		t.Fatalf("lines=%q", lines)
	}
}

func TestLogBuffer_DropsOldest(t *testing.T) {
	b := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		_, _ = fmt.Fprintf(b, "line %d\n", i)
	}
	lines, dropped := b.Snapshot(10)
	if dropped != 2 || len(lines) != 3 || lines[0] != "line 2" {
		t.Fatalf("lines=%q dropped=%d", lines, dropped)
	}
}

func TestLogBuffer_Handler(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("a\nb\nc\n"))
	ts := httptest.NewServer(b.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "?tail=2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var out LogsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Lines) != 2 || out.Lines[0] != "b" {
		t.Fatalf("out=%+v", out)
	}

	resp2, err := http.Get(ts.URL + "?format=text")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp2.Body.Close()
	body, _ := io.ReadAll(resp2.Body)
	if string(body) != "a\nb\nc\n" {
		t.Fatalf("text=%q", body)
	}

	resp3, err := http.Get(ts.URL + "?tail=abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusBadRequest {
		t.Fatalf("code=%d", resp3.StatusCode)
	}
}
