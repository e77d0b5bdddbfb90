//go:build !linux

package modem

import "github.com/dumacp/go-logs/pkg/logs"

// OpenWake on non-Linux hosts returns a no-op line so the rest of the
// firmware can run against a bench modem without GPIO wiring.
func OpenWake(chipPath string, pin int) (WakeLine, error) {
	logs.LogWarn.Printf("modem: no GPIO backend on this platform, wake pin %d is a no-op", pin)
	return nopWake{}, nil
}

type nopWake struct{}

func (nopWake) Set(int) error { return nil }
func (nopWake) Close() error  { return nil }
