package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"gnsslog/internal/nmea"
)

type Config struct {
	GPS       GPSConfig       `yaml:"gps"`
	Parser    ParserConfig    `yaml:"parser"`
	Output    OutputConfig    `yaml:"output"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Web       WebConfig       `yaml:"web"`
	Log       LogConfig       `yaml:"log"`
}

type GPSConfig struct {
	// Source is "serial" (default), "gpsd" or "file".
	Source   string `yaml:"source" env:"GNSSLOG_GPS_SOURCE, overwrite"`
	Device   string `yaml:"device" env:"GNSSLOG_GPS_DEVICE, overwrite"`
	Baud     int    `yaml:"baud" env:"GNSSLOG_GPS_BAUD, overwrite"`
	GPSDAddr string `yaml:"gpsd_addr" env:"GNSSLOG_GPSD_ADDR, overwrite"`

	// ReplayPath is the raw sentence log read when Source is "file".
	ReplayPath     string        `yaml:"replay_path" env:"GNSSLOG_GPS_REPLAY_PATH, overwrite"`
	ReplayInterval time.Duration `yaml:"replay_interval"`
	ReplayLoop     bool          `yaml:"replay_loop"`

	ReopenInterval time.Duration `yaml:"reopen_interval"`
}

type ParserConfig struct {
	nmea.Layout `yaml:",inline"`

	MaxLineLength int  `yaml:"max_line_length"`
	CheckRange    bool `yaml:"check_range" env:"GNSSLOG_PARSER_CHECK_RANGE, overwrite"`
}

type OutputConfig struct {
	CSVPath    string `yaml:"csv_path" env:"GNSSLOG_OUTPUT_CSV, overwrite"`
	TextPath   string `yaml:"text_path"`
	GPXPath    string `yaml:"gpx_path" env:"GNSSLOG_OUTPUT_GPX, overwrite"`
	SQLitePath string `yaml:"sqlite_path" env:"GNSSLOG_OUTPUT_SQLITE, overwrite"`
	UDPDest    string `yaml:"udp_dest" env:"GNSSLOG_OUTPUT_UDP, overwrite"`

	// RawPath logs sentences as received. Only lines matching the parser
	// prefix are kept unless RawAll is set.
	RawPath string `yaml:"raw_path" env:"GNSSLOG_OUTPUT_RAW, overwrite"`
	RawAll  bool   `yaml:"raw_all"`

	MemorySize int `yaml:"memory_size"`
}

type IndicatorConfig struct {
	// FixLEDPin is a BCM GPIO number pulsed on every accepted fix; 0 disables.
	FixLEDPin int           `yaml:"fix_led_pin" env:"GNSSLOG_FIX_LED_PIN, overwrite"`
	Pulse     time.Duration `yaml:"pulse"`
}

type WebConfig struct {
	// Listen is host:port for the status/metrics server; empty disables it.
	Listen string `yaml:"listen" env:"GNSSLOG_WEB_LISTEN, overwrite"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"GNSSLOG_LOG_LEVEL, overwrite"`
	Pretty bool   `yaml:"pretty"`
}

var sources = map[string]bool{"serial": true, "gpsd": true, "file": true}

var logLevels = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}

// Load reads a YAML config, applies GNSSLOG_* environment overrides, fills
// defaults and validates.
func Load(path string) (Config, error) {
	return LoadWithLookuper(path, envconfig.OsLookuper())
}

func LoadWithLookuper(path string, env envconfig.Lookuper) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{}
	cfg.Parser.Layout = nmea.GNGGALayout

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, cleanYAMLError(err)
	}

	if env != nil {
		if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{Target: &cfg, Lookuper: env}); err != nil {
			return Config{}, fmt.Errorf("env overrides: %w", err)
		}
	}

	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() error {
	g := &cfg.GPS
	g.Source = strings.ToLower(strings.TrimSpace(g.Source))
	if g.Source == "" {
		g.Source = "serial"
	}
	if !sources[g.Source] {
		return fmt.Errorf("gps.source must be one of serial, gpsd, file")
	}
	if g.Baud == 0 {
		g.Baud = 9600
	}
	if g.Baud < 0 {
		return fmt.Errorf("gps.baud must be > 0")
	}
	if g.Source == "gpsd" && strings.TrimSpace(g.GPSDAddr) == "" {
		g.GPSDAddr = "127.0.0.1:2947"
	}
	if g.Source == "file" && strings.TrimSpace(g.ReplayPath) == "" {
		return fmt.Errorf("gps.replay_path is required when gps.source is 'file'")
	}
	if g.ReplayInterval < 0 {
		return fmt.Errorf("gps.replay_interval must be >= 0")
	}
	if g.ReopenInterval <= 0 {
		g.ReopenInterval = 2 * time.Second
	}

	if cfg.Parser.MaxLineLength <= 0 {
		cfg.Parser.MaxLineLength = nmea.DefaultMaxLineLength
	}
	if err := cfg.Parser.Layout.Validate(); err != nil {
		return fmt.Errorf("parser: %w", err)
	}

	if cfg.Output.MemorySize <= 0 {
		cfg.Output.MemorySize = 1000
	}

	if cfg.Indicator.FixLEDPin < 0 {
		return fmt.Errorf("indicator.fix_led_pin must be >= 0")
	}
	if cfg.Indicator.Pulse <= 0 {
		cfg.Indicator.Pulse = 100 * time.Millisecond
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if !logLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error")
	}
	return nil
}

// RawPrefix is the line filter for the raw sentence log.
func (cfg Config) RawPrefix() string {
	if cfg.Output.RawAll {
		return ""
	}
	return cfg.Parser.Prefix
}

var yamlLinePrefix = regexp.MustCompile(`^line \d+: `)

func cleanYAMLError(err error) error {
	var te *yaml.TypeError
	if !errors.As(err, &te) {
		return err
	}
	msgs := make([]string, 0, len(te.Errors))
	unknown := false
	for _, m := range te.Errors {
		m = yamlLinePrefix.ReplaceAllString(m, "")
		if strings.Contains(m, "not found in type") {
			unknown = true
		}
		msgs = append(msgs, m)
	}
	if unknown {
		return fmt.Errorf("config contains unknown fields: %s", strings.Join(msgs, "; "))
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}
