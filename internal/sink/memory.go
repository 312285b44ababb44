package sink

import (
	"sync"
	"time"

	"gnsslog/internal/nmea"
)

// DefaultMemorySize matches the display buffer of the recorder UI.
const DefaultMemorySize = 1000

// Point is a coordinate with the time it was accepted.
type Point struct {
	nmea.Coordinate
	At time.Time `json:"at"`
}

// Memory keeps the most recent coordinates for display. It is safe for
// concurrent use: the recorder writes while HTTP handlers read.
type Memory struct {
	mu      sync.Mutex
	max     int
	points  []Point
	dropped uint64
	now     func() time.Time
}

func NewMemory(max int) *Memory {
	if max <= 0 {
		max = DefaultMemorySize
	}
	return &Memory{max: max, now: time.Now}
}

func (m *Memory) Accept(c nmea.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.points = append(m.points, Point{Coordinate: c, At: m.now().UTC()})
	if len(m.points) > m.max {
		over := len(m.points) - m.max
		// Copy down so the backing array does not grow without bound.
		m.points = append(m.points[:0], m.points[over:]...)
		m.dropped += uint64(over)
	}
	return nil
}

// Snapshot returns up to tail of the newest points (all when tail <= 0),
// oldest first, plus how many points have been evicted so far.
func (m *Memory) Snapshot(tail int) (points []Point, dropped uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tail <= 0 || tail > len(m.points) {
		tail = len(m.points)
	}
	start := len(m.points) - tail
	return append([]Point(nil), m.points[start:]...), m.dropped
}

// Len reports how many points are buffered.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}
