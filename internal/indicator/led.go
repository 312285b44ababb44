// Package indicator drives a status LED that blinks on every accepted fix.
package indicator

import (
	"fmt"
	"sync"
	"time"

	"gnsslog/internal/nmea"
)

// line is one GPIO output.
type line interface {
	SetValue(v int) error
	Close() error
}

var openLineFn = openLine

// FixLED is an nmea.Sink that turns the LED on for Pulse after each
// coordinate. Back-to-back fixes keep it lit.
type FixLED struct {
	pulse time.Duration

	mu     sync.Mutex
	line   line
	timer  *time.Timer
	on     bool
	blinks uint64

	afterFunc func(d time.Duration, f func()) *time.Timer
}

// Open claims BCM GPIO pin as an output, initially off.
func Open(pin int, pulse time.Duration) (*FixLED, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("indicator: invalid gpio pin %d", pin)
	}
	l, err := openLineFn(pin)
	if err != nil {
		return nil, err
	}
	return newFixLED(l, pulse), nil
}

func newFixLED(l line, pulse time.Duration) *FixLED {
	if pulse <= 0 {
		pulse = 100 * time.Millisecond
	}
	return &FixLED{line: l, pulse: pulse, afterFunc: time.AfterFunc}
}

func (f *FixLED) Accept(nmea.Coordinate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.line == nil {
		return fmt.Errorf("indicator: led is closed")
	}

	f.blinks++
	if !f.on {
		// A stuck LED is not worth losing fixes over; the error is dropped.
		if err := f.line.SetValue(1); err == nil {
			f.on = true
		}
	}
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = f.afterFunc(f.pulse, f.off)
	return nil
}

func (f *FixLED) off() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.line == nil || !f.on {
		return
	}
	_ = f.line.SetValue(0)
	f.on = false
}

// Blinks reports how many fixes have been signalled.
func (f *FixLED) Blinks() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blinks
}

// Close turns the LED off and releases the line.
func (f *FixLED) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.line == nil {
		return nil
	}
	if f.timer != nil {
		f.timer.Stop()
	}
	_ = f.line.SetValue(0)
	err := f.line.Close()
	f.line = nil
	f.on = false
	return err
}
