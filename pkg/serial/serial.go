// Package serial connects the link to a host serial port.
package serial

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/robotalks/pupsensor/pkg/link"
)

// Port is a host serial port usable by the link.
type Port interface {
	io.ReadWriteCloser
	link.Port
}

// Drivers.
const (
	DriverBugst = "bugst"
	DriverTarm  = "tarm"
)

// Config holds serial port configuration.
type Config struct {
	// Device path, e.g. /dev/ttyUSB0 or COM3.
	Device string
	// Driver selects the serial library, bugst or tarm.
	Driver string
	// ReadTimeout bounds a single read so the port can be reconfigured.
	ReadTimeout time.Duration
	// BreakTx drives tx low with a line break during the Idle reset.
	BreakTx bool
	// RxStatus names the modem status line wired to rx: cts, dsr or dcd.
	// Empty means rx is assumed idle.
	RxStatus string
}

// DefaultConfig returns the configuration for a USB serial adapter.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Driver:      DriverBugst,
		ReadTimeout: 50 * time.Millisecond,
	}
}

// Open opens the port with the configured driver at the handshake speed.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	switch strings.ToLower(cfg.Driver) {
	case "", DriverBugst:
		return OpenBugst(cfg)
	case DriverTarm:
		return OpenTarm(cfg)
	}
	return nil, fmt.Errorf("unknown serial driver %q", cfg.Driver)
}

// Pins returns the tx and rx lines for the link according to cfg, the tx
// break lasts timing.ResetPulse.
func Pins(port Port, cfg *Config, timing link.Timing) (tx, rx link.Pin, err error) {
	tx, rx = link.NopPin, link.NopPin
	bp, ok := port.(*BugstPort)
	if cfg.BreakTx {
		if !ok {
			return nil, nil, fmt.Errorf("driver %s does not support break", cfg.Driver)
		}
		tx = &BreakPin{Port: bp, Duration: timing.ResetPulse}
	}
	if cfg.RxStatus != "" {
		if !ok {
			return nil, nil, fmt.Errorf("driver %s does not support modem status", cfg.Driver)
		}
		if rx, err = NewStatusPin(bp, cfg.RxStatus); err != nil {
			return nil, nil, err
		}
	}
	return tx, rx, nil
}
