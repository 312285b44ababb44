package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gnsslog/internal/gps"
	"gnsslog/internal/nmea"
	"gnsslog/internal/sink"
)

type fakeGPS struct{ snap gps.Snapshot }

func (f fakeGPS) Snapshot() gps.Snapshot { return f.snap }

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAPIStatus(t *testing.T) {
	st := NewStatus(fakeGPS{snap: gps.Snapshot{Source: "serial", Device: "/dev/ttyACM0", Connected: true, Accepted: 4, Lat: 53.361337}})
	st.SetStatic("./configs/dev.yaml", []string{"csv", "memory"})

	ts := httptest.NewServer(Handler(st, nil, nil, nil))
	defer ts.Close()

	resp := get(t, ts.URL+"/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var snap StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if snap.Service != "gnsslog" || snap.ConfigPath != "./configs/dev.yaml" {
		t.Fatalf("snap=%+v", snap)
	}
	if len(snap.Sinks) != 2 || snap.GPS.Device != "/dev/ttyACM0" || snap.GPS.Accepted != 4 {
		t.Fatalf("snap=%+v", snap)
	}
}

func TestAPIStatus_MethodNotAllowed(t *testing.T) {
	ts := httptest.NewServer(Handler(NewStatus(nil), nil, nil, nil))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/status", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed || resp.Header.Get("Allow") != http.MethodGet {
		t.Fatalf("code=%d allow=%q", resp.StatusCode, resp.Header.Get("Allow"))
	}
}

func TestAPITrack(t *testing.T) {
	mem := sink.NewMemory(3)
	for _, c := range []nmea.Coordinate{{Lat: 1, Lon: 2}, {Lat: 3, Lon: 4}, {Lat: 5, Lon: 6}, {Lat: 7, Lon: 8}} {
		_ = mem.Accept(c)
	}
	ts := httptest.NewServer(Handler(NewStatus(nil), mem, nil, nil))
	defer ts.Close()

	var out TrackResponse
	if err := json.NewDecoder(get(t, ts.URL+"/api/track?tail=2").Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Dropped != 1 || len(out.Points) != 2 {
		t.Fatalf("out=%+v", out)
	}
	if out.Points[0].Lat != 5 || out.Points[1].Lon != 8 {
		t.Fatalf("points=%+v", out.Points)
	}

	if resp := get(t, ts.URL+"/api/track?tail=0"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("tail=0 code=%d", resp.StatusCode)
	}
}

func TestAPITrack_EmptyIsArray(t *testing.T) {
	ts := httptest.NewServer(Handler(NewStatus(nil), sink.NewMemory(10), nil, nil))
	defer ts.Close()

	b, err := io.ReadAll(get(t, ts.URL+"/api/track").Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), `"points": []`) {
		t.Fatalf("body=%s", b)
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "gnsslog_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	ts := httptest.NewServer(Handler(NewStatus(nil), nil, nil, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	defer ts.Close()

	b, err := io.ReadAll(get(t, ts.URL+"/metrics").Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "gnsslog_test_total 3") {
		t.Fatalf("body=%s", b)
	}
}

func TestRootPage(t *testing.T) {
	st := NewStatus(fakeGPS{snap: gps.Snapshot{Source: "gpsd", Device: "<ttyACM0>"}})
	ts := httptest.NewServer(Handler(st, nil, nil, nil))
	defer ts.Close()

	resp := get(t, ts.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "device=&lt;ttyACM0&gt;") {
		t.Fatalf("body=%s", b)
	}

	if resp := get(t, ts.URL+"/nope"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown path code=%d", resp.StatusCode)
	}
}

func TestAPIAbout(t *testing.T) {
	st := NewStatus(nil)
	st.SetStatic("", []string{"csv", "gpx"})
	layout := nmea.GNGGALayout
	layout.Prefix = "$GPGGA,"
	st.SetParser(ParserInfo{Layout: layout, MaxLineLength: 120, CheckRange: true})

	ts := httptest.NewServer(Handler(st, nil, nil, nil))
	defer ts.Close()

	resp := get(t, ts.URL+"/api/about")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	var about AboutResponse
	if err := json.NewDecoder(resp.Body).Decode(&about); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if about.Service != "gnsslog" || about.GoVersion == "" {
		t.Fatalf("about=%+v", about)
	}
	if about.Parser == nil || about.Parser.Layout != layout || about.Parser.MaxLineLength != 120 || !about.Parser.CheckRange {
		t.Fatalf("parser=%+v", about.Parser)
	}
	if strings.Join(about.Outputs, ",") != "csv,gpx" {
		t.Fatalf("outputs=%v", about.Outputs)
	}
	if len(about.Reasons) != len(nmea.Reasons()) || about.Reasons[0] != "not_gga" {
		t.Fatalf("reasons=%v", about.Reasons)
	}

	if resp := get(t, ts.URL+"/api/about"); resp.StatusCode != http.StatusOK {
		t.Fatalf("second get code=%d", resp.StatusCode)
	}
}

func TestAPIAbout_WithoutParserInfo(t *testing.T) {
	ts := httptest.NewServer(Handler(NewStatus(nil), nil, nil, nil))
	defer ts.Close()

	resp := get(t, ts.URL+"/api/about")
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || strings.Contains(string(b), `"parser"`) {
		t.Fatalf("code=%d body=%s", resp.StatusCode, b)
	}
	if !strings.Contains(string(b), `"outputs": []`) {
		t.Fatalf("body=%s", b)
	}
}
