package nmea

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coordinate is a position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// InRange reports whether c lies within lat [-90,90] and lon [-180,180].
func (c Coordinate) InRange() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Layout tells the positional parser where to look inside a sentence.
//
// Offsets are character positions, not comma-separated field indices. The
// default layout matches receivers that print
//
//	$GNGGA,hhmmss.sss,DDMM.MMMMMM,N,DDDMM.MMMMMM,E,...
//
// byte for byte. A receiver that prints fewer time or minute digits shifts
// every later field, the slices stop lining up and the sentence is rejected
// (usually as ConversionError). Hemisphere characters are never read, so
// every coordinate comes out positive.
type Layout struct {
	Prefix string `yaml:"prefix" json:"prefix"`

	// MaxSentenceLen caps how much of a line is considered.
	MaxSentenceLen int `yaml:"max_sentence_length" json:"max_sentence_length"`
	// MinSentenceLen is the shortest window that still holds both fields.
	MinSentenceLen int `yaml:"min_sentence_length" json:"min_sentence_length"`

	LatStart int `yaml:"lat_start" json:"lat_start"`
	LatEnd   int `yaml:"lat_end" json:"lat_end"`
	LonStart int `yaml:"lon_start" json:"lon_start"`
	LonEnd   int `yaml:"lon_end" json:"lon_end"`

	LatDegreeDigits int `yaml:"lat_degree_digits" json:"lat_degree_digits"`
	LonDegreeDigits int `yaml:"lon_degree_digits" json:"lon_degree_digits"`
}

// GNGGALayout is the layout of the multi-constellation GGA sentence the
// recorder was built around.
var GNGGALayout = Layout{
	Prefix:          "$GNGGA,",
	MaxSentenceLen:  79,
	MinSentenceLen:  44,
	LatStart:        18,
	LatEnd:          29,
	LonStart:        32,
	LonEnd:          44,
	LatDegreeDigits: 2,
	LonDegreeDigits: 3,
}

// Validate checks that the offsets can be sliced out of any window that
// passes the length check.
func (l Layout) Validate() error {
	if l.Prefix == "" {
		return fmt.Errorf("prefix is empty")
	}
	if l.MinSentenceLen <= 0 {
		return fmt.Errorf("min sentence length must be > 0")
	}
	if l.MaxSentenceLen < l.MinSentenceLen {
		return fmt.Errorf("max sentence length %d is below min %d", l.MaxSentenceLen, l.MinSentenceLen)
	}
	if err := checkField("latitude", l.LatStart, l.LatEnd, l.LatDegreeDigits, l.MinSentenceLen); err != nil {
		return err
	}
	return checkField("longitude", l.LonStart, l.LonEnd, l.LonDegreeDigits, l.MinSentenceLen)
}

func checkField(name string, start, end, degDigits, minLen int) error {
	if start < 0 || end <= start {
		return fmt.Errorf("%s offsets [%d,%d) are invalid", name, start, end)
	}
	if end > minLen {
		return fmt.Errorf("%s end %d exceeds min sentence length %d", name, end, minLen)
	}
	if degDigits <= 0 || degDigits >= end-start {
		return fmt.Errorf("%s degree digits %d must be in (0,%d)", name, degDigits, end-start)
	}
	return nil
}

// Parser converts GGA lines into coordinates. It holds no mutable state and
// is safe for concurrent use.
type Parser struct {
	layout     Layout
	checkRange bool
}

// NewParser returns a parser for the given layout. With checkRange set,
// coordinates outside the valid lat/lon range are rejected as OutOfRange.
func NewParser(layout Layout, checkRange bool) (*Parser, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("nmea layout: %w", err)
	}
	return &Parser{layout: layout, checkRange: checkRange}, nil
}

// DefaultParser returns a GNGGALayout parser without range checks.
func DefaultParser() *Parser {
	return &Parser{layout: GNGGALayout}
}

func (p *Parser) Layout() Layout { return p.layout }

// Parse turns one line (without its terminator) into a Coordinate.
// Failures are always *RejectError.
func (p *Parser) Parse(line string) (Coordinate, error) {
	latField, lonField, err := p.Fields(line)
	if err != nil {
		return Coordinate{}, err
	}

	lat, err := ConvertDegreeMinute(latField, p.layout.LatDegreeDigits)
	if err != nil {
		return Coordinate{}, &RejectError{Reason: ConversionError, Line: line, Field: "latitude", Err: err}
	}
	lon, err := ConvertDegreeMinute(lonField, p.layout.LonDegreeDigits)
	if err != nil {
		return Coordinate{}, &RejectError{Reason: ConversionError, Line: line, Field: "longitude", Err: err}
	}

	c := Coordinate{Lat: lat, Lon: lon}
	if p.checkRange && !c.InRange() {
		return Coordinate{}, &RejectError{
			Reason: OutOfRange,
			Line:   line,
			Field:  outOfRangeField(c),
			Err:    fmt.Errorf("lat=%f lon=%f", c.Lat, c.Lon),
		}
	}
	return c, nil
}

// Fields runs the prefix and length checks and returns the raw latitude and
// longitude substrings.
func (p *Parser) Fields(line string) (lat, lon string, err error) {
	l := p.layout
	if !strings.HasPrefix(line, l.Prefix) {
		return "", "", &RejectError{Reason: NotGGASentence, Line: line}
	}

	sentence := []rune(line)
	if len(sentence) > l.MaxSentenceLen {
		sentence = sentence[:l.MaxSentenceLen]
	}
	if len(sentence) < l.MinSentenceLen || len(sentence) < l.LatEnd || len(sentence) < l.LonEnd {
		return "", "", &RejectError{
			Reason: TooShort,
			Line:   string(sentence),
			Err:    fmt.Errorf("len=%d want>=%d", len(sentence), l.MinSentenceLen),
		}
	}
	return string(sentence[l.LatStart:l.LatEnd]), string(sentence[l.LonStart:l.LonEnd]), nil
}

// ConvertDegreeMinute converts DDMM.MMMM (degreeDigits=2) or DDDMM.MMMM
// (degreeDigits=3) text to decimal degrees: degrees + minutes/60.
// Whitespace around either part is ignored.
func ConvertDegreeMinute(field string, degreeDigits int) (float64, error) {
	rs := []rune(field)
	if degreeDigits <= 0 || len(rs) <= degreeDigits {
		return 0, fmt.Errorf("field %q has no minutes after %d degree digits", field, degreeDigits)
	}
	degText := strings.TrimSpace(string(rs[:degreeDigits]))
	minText := strings.TrimSpace(string(rs[degreeDigits:]))

	deg, err := strconv.Atoi(degText)
	if err != nil {
		return 0, fmt.Errorf("degrees %q: %w", degText, err)
	}
	minutes, err := strconv.ParseFloat(minText, 64)
	if err != nil {
		return 0, fmt.Errorf("minutes %q: %w", minText, err)
	}
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return 0, fmt.Errorf("minutes %q is not finite", minText)
	}
	return float64(deg) + minutes/60.0, nil
}

func outOfRangeField(c Coordinate) string {
	if c.Lat < -90 || c.Lat > 90 {
		return "latitude"
	}
	return "longitude"
}
