package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gnsslog/internal/sink"
)

// TrackSource is the display buffer the track API reads.
type TrackSource interface {
	Snapshot(tail int) ([]sink.Point, uint64)
}

type TrackResponse struct {
	NowUTC  string       `json:"now_utc"`
	Dropped uint64       `json:"dropped"`
	Points  []sink.Point `json:"points"`
}

// Handler serves the status API. track, logs and metrics may be nil; their
// routes are then absent.
func Handler(status *Status, track TrackSource, logs *LogBuffer, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !requireGET(w, r) {
			return
		}
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})

	if track != nil {
		mux.HandleFunc("/api/track", func(w http.ResponseWriter, r *http.Request) {
			if !requireGET(w, r) {
				return
			}
			tail, ok := parseTail(w, r, 0)
			if !ok {
				return
			}
			pts, dropped := track.Snapshot(tail)
			if pts == nil {
				pts = []sink.Point{}
			}
			writeJSON(w, TrackResponse{
				NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
				Dropped: dropped,
				Points:  pts,
			})
		})
	}

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	mux.Handle("/api/about", aboutHandler(status))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if !requireGET(w, r) {
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		g := snap.GPS
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>gnsslog</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>gnsslog</h1>")
		_, _ = fmt.Fprintf(w, "<p>See <a href=\"/api/status\">/api/status</a>, <a href=\"/api/track\">/api/track</a> and <a href=\"/api/logs?format=text\">/api/logs</a>.</p>")
		_, _ = fmt.Fprintf(w, "<pre>source=%s device=%s connected=%t\nlat=%.6f lon=%.6f last_fix_utc=%s\nlines=%d accepted=%d rejected=%d</pre>",
			html.EscapeString(g.Source), html.EscapeString(g.Device), g.Connected,
			g.Lat, g.Lon, html.EscapeString(g.LastFixUTC),
			g.Lines, g.Accepted, g.Rejected,
		)
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

func Serve(ctx context.Context, listenAddr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func requireGET(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// parseTail reads ?tail=N in [1,5000]; def applies when absent.
func parseTail(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	s := strings.TrimSpace(r.URL.Query().Get("tail"))
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 || v > 5000 {
		http.Error(w, "tail must be an integer in [1,5000]", http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}
