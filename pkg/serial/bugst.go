package serial

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	bugst "go.bug.st/serial"

	"github.com/robotalks/pupsensor/pkg/link"
)

// BugstPort is a Port based on go.bug.st/serial.
type BugstPort struct {
	port bugst.Port
	name string

	lock    sync.RWMutex
	enabled bool
	rxSize  int
}

// OpenBugst opens a port with go.bug.st/serial.
func OpenBugst(cfg *Config) (*BugstPort, error) {
	mode := &bugst.Mode{
		BaudRate: link.HandshakeBaud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := bugst.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
	}
	return &BugstPort{port: port, name: cfg.Device, enabled: true, rxSize: link.BufferSize}, nil
}

// Ports lists the serial ports of the system.
func Ports() ([]string, error) {
	return bugst.GetPortsList()
}

// Read reads received bytes, discarded while the port is disabled.
func (p *BugstPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if !p.isEnabled() {
		return 0, err
	}
	return n, err
}

// Write writes bytes, dropped while the port is disabled.
func (p *BugstPort) Write(b []byte) (int, error) {
	if !p.isEnabled() {
		return len(b), nil
	}
	return p.port.Write(b)
}

// Close closes the port.
func (p *BugstPort) Close() error {
	return p.port.Close()
}

// SetBaudRate changes the line speed.
func (p *BugstPort) SetBaudRate(baud int) error {
	glog.V(2).Infof("%s: baud rate %d", p.name, baud)
	return p.port.SetMode(&bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
}

// SetEnabled gates reads and writes. Pending input is dropped on enable.
func (p *BugstPort) SetEnabled(enabled bool) error {
	p.lock.Lock()
	p.enabled = enabled
	p.lock.Unlock()
	if enabled {
		return p.port.ResetInputBuffer()
	}
	return p.port.Drain()
}

func (p *BugstPort) isEnabled() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.enabled
}

// Flush discards received bytes not read yet.
func (p *BugstPort) Flush() error {
	return p.port.ResetInputBuffer()
}

// SetBufferSize records the read chunk size, the driver owns the buffers.
func (p *BugstPort) SetBufferSize(rx, tx int) error {
	p.lock.Lock()
	p.rxSize = rx
	p.lock.Unlock()
	return nil
}

// ReadSize is the preferred read chunk size.
func (p *BugstPort) ReadSize() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.rxSize
}

// Break holds tx low for d.
func (p *BugstPort) Break(d time.Duration) error {
	return p.port.Break(d)
}

// ModemStatus reads the modem status lines.
func (p *BugstPort) ModemStatus() (*bugst.ModemStatusBits, error) {
	return p.port.GetModemStatusBits()
}
