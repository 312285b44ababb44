//go:build !linux

package gps

import (
	"io"
	"sort"
	"strings"

	"go.bug.st/serial"
)

func openSerial(path string, baud int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(path, mode)
}

// autoDetectDevice prefers USB modem style ports (u-blox and most GNSS
// dongles enumerate as CDC ACM), then anything the OS lists.
func autoDetectDevice() string {
	ports, err := serial.GetPortsList()
	if err != nil || len(ports) == 0 {
		return ""
	}
	sort.Strings(ports)
	for _, p := range ports {
		if strings.Contains(p, "usbmodem") || strings.Contains(p, "usbserial") {
			return p
		}
	}
	return ports[0]
}
