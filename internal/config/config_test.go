package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"

	"gnsslog/internal/nmea"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func noEnv() envconfig.Lookuper { return envconfig.MapLookuper(nil) }

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  device: /dev/ttyUSB0\n")
	cfg, err := LoadWithLookuper(path, noEnv())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.Source != "serial" || cfg.GPS.Baud != 9600 {
		t.Fatalf("source=%q baud=%d", cfg.GPS.Source, cfg.GPS.Baud)
	}
	if cfg.GPS.ReopenInterval != 2*time.Second {
		t.Fatalf("reopen_interval=%s want 2s", cfg.GPS.ReopenInterval)
	}
	if cfg.Parser.Layout != nmea.GNGGALayout {
		t.Fatalf("layout=%+v want GNGGA defaults", cfg.Parser.Layout)
	}
	if cfg.Parser.MaxLineLength != nmea.DefaultMaxLineLength {
		t.Fatalf("max_line_length=%d", cfg.Parser.MaxLineLength)
	}
	if cfg.Output.MemorySize != 1000 {
		t.Fatalf("memory_size=%d want 1000", cfg.Output.MemorySize)
	}
	if cfg.Indicator.Pulse != 100*time.Millisecond {
		t.Fatalf("pulse=%s", cfg.Indicator.Pulse)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log.level=%q", cfg.Log.Level)
	}
	if cfg.RawPrefix() != "$GNGGA," {
		t.Fatalf("raw prefix=%q", cfg.RawPrefix())
	}
}

func TestLoad_EmptyFileIsValid(t *testing.T) {
	path := writeTempConfig(t, "")
	cfg, err := LoadWithLookuper(path, noEnv())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.Source != "serial" {
		t.Fatalf("source=%q", cfg.GPS.Source)
	}
}

func TestLoad_GPSDAddrDefault(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  source: GPSD\n")
	cfg, err := LoadWithLookuper(path, noEnv())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.Source != "gpsd" || cfg.GPS.GPSDAddr != "127.0.0.1:2947" {
		t.Fatalf("source=%q addr=%q", cfg.GPS.Source, cfg.GPS.GPSDAddr)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"bad source", "gps:\n  source: usb\n", "gps.source must be one of serial, gpsd, file"},
		{"file needs path", "gps:\n  source: file\n", "gps.replay_path is required when gps.source is 'file'"},
		{"negative baud", "gps:\n  baud: -1\n", "gps.baud must be > 0"},
		{"negative replay interval", "gps:\n  replay_interval: -1s\n", "gps.replay_interval must be >= 0"},
		{"negative pin", "indicator:\n  fix_led_pin: -3\n", "indicator.fix_led_pin must be >= 0"},
		{"bad level", "log:\n  level: chatty\n", "log.level must be one of trace, debug, info, warn, error"},
		{"empty prefix", "parser:\n  prefix: ''\n", "parser: prefix is empty"},
		{"lat past min", "parser:\n  lat_end: 50\n", "parser: latitude end 50 exceeds min sentence length 44"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadWithLookuper(writeTempConfig(t, tc.yaml), noEnv())
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_ParserLayoutOverride(t *testing.T) {
	path := writeTempConfig(t, `parser:
  prefix: "$GPGGA,"
  check_range: true
  max_line_length: 120
`)
	cfg, err := LoadWithLookuper(path, noEnv())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Parser.Prefix != "$GPGGA," || !cfg.Parser.CheckRange || cfg.Parser.MaxLineLength != 120 {
		t.Fatalf("parser=%+v", cfg.Parser)
	}
	// Unset offsets keep their defaults.
	if cfg.Parser.LatStart != 18 || cfg.Parser.LonEnd != 44 {
		t.Fatalf("offsets lost: %+v", cfg.Parser.Layout)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  device: /dev/ttyUSB0\n  baud: 4800\noutput:\n  csv_path: a.csv\n")
	cfg, err := LoadWithLookuper(path, envconfig.MapLookuper(map[string]string{
		"GNSSLOG_GPS_DEVICE": "/dev/ttyACM0",
		"GNSSLOG_OUTPUT_GPX": "track.gpx",
		"GNSSLOG_LOG_LEVEL":  "DEBUG",
	}))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.Device != "/dev/ttyACM0" {
		t.Fatalf("device=%q", cfg.GPS.Device)
	}
	if cfg.GPS.Baud != 4800 || cfg.Output.CSVPath != "a.csv" {
		t.Fatalf("file values lost: baud=%d csv=%q", cfg.GPS.Baud, cfg.Output.CSVPath)
	}
	if cfg.Output.GPXPath != "track.gpx" || cfg.Log.Level != "debug" {
		t.Fatalf("gpx=%q level=%q", cfg.Output.GPXPath, cfg.Log.Level)
	}
}

func TestLoad_EnvBadValue(t *testing.T) {
	path := writeTempConfig(t, "")
	_, err := LoadWithLookuper(path, envconfig.MapLookuper(map[string]string{
		"GNSSLOG_GPS_BAUD": "fast",
	}))
	if err == nil || !strings.HasPrefix(err.Error(), "env overrides:") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoad_RawAllClearsPrefix(t *testing.T) {
	path := writeTempConfig(t, "output:\n  raw_path: raw.log\n  raw_all: true\n")
	cfg, err := LoadWithLookuper(path, noEnv())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RawPrefix() != "" {
		t.Fatalf("raw prefix=%q", cfg.RawPrefix())
	}
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  device: /dev/ttyUSB0\n  mode: fast\n")
	_, err := LoadWithLookuper(path, noEnv())
	requireErrEq(t, err, "config contains unknown fields: field mode not found in type config.GPSConfig")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadWithLookuper(filepath.Join(t.TempDir(), "nope.yaml"), noEnv())
	if !os.IsNotExist(err) {
		t.Fatalf("err=%v want not-exist", err)
	}
}
