package web

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"gnsslog/internal/nmea"
)

// ParserInfo describes how incoming lines are sliced and filtered.
type ParserInfo struct {
	Layout        nmea.Layout `json:"layout"`
	MaxLineLength int         `json:"max_line_length"`
	CheckRange    bool        `json:"check_range"`
}

type AboutResponse struct {
	Service   string `json:"service"`
	NowUTC    string `json:"now_utc"`
	GoVersion string `json:"go_version"`
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`

	Parser  *ParserInfo `json:"parser,omitempty"`
	Outputs []string    `json:"outputs"`
	// Reasons are the label values of gnsslog_rejected_lines_total.
	Reasons []string `json:"reject_reasons"`
}

func aboutHandler(status *Status) http.Handler {
	reasons := make([]string, 0, len(nmea.Reasons()))
	for _, r := range nmea.Reasons() {
		reasons = append(reasons, r.String())
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requireGET(w, r) {
			return
		}
		resp := AboutResponse{
			Service:   serviceName,
			NowUTC:    time.Now().UTC().Format(time.RFC3339Nano),
			GoVersion: runtime.Version(),
			Outputs:   status.sinks.Load().([]string),
			Reasons:   reasons,
		}
		if pi, ok := status.parser.Load().(ParserInfo); ok {
			resp.Parser = &pi
		}
		if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
			resp.Version = bi.Main.Version
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					resp.Commit = s.Value
				}
			}
		}
		writeJSON(w, resp)
	})
}
