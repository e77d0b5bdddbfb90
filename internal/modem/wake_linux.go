//go:build linux

package modem

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// OpenWake requests the wake GPIO as an output, initially low, through the
// Linux GPIO character device.
func OpenWake(chipPath string, pin int) (WakeLine, error) {
	if pin < 0 {
		return nil, fmt.Errorf("modem: invalid wake pin %d", pin)
	}
	chip, err := gpiocdev.NewChip(chipPath)
	if err != nil {
		return nil, err
	}
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("go-tracker"))
	if err != nil {
		_ = chip.Close()
		return nil, err
	}
	return &gpiodWake{chip: chip, line: line}, nil
}

type gpiodWake struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodWake) Set(value int) error {
	if g == nil || g.line == nil {
		return fmt.Errorf("modem: wake line not initialized")
	}
	return g.line.SetValue(value)
}

func (g *gpiodWake) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	_ = g.line.SetValue(0)
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
