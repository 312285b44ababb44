package gps

import (
	"fmt"
	"io"
	"strings"
)

// OpenPort opens a serial device outside the service, e.g. to play a
// recorded log onto it. An empty device is auto-detected.
func OpenPort(device string, baud int) (io.ReadWriteCloser, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			return nil, fmt.Errorf("no serial device found")
		}
	}
	if baud == 0 {
		baud = 9600
	}
	return openSerial(device, baud)
}
