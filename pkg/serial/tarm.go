package serial

import (
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/tarm/serial"

	"github.com/robotalks/pupsensor/pkg/link"
)

// TarmPort is a Port based on github.com/tarm/serial. The port is reopened
// to change the baud rate, so reads always time out.
type TarmPort struct {
	cfg serial.Config

	lock    sync.RWMutex
	port    *serial.Port
	enabled bool
	closed  bool
}

// OpenTarm opens a port with github.com/tarm/serial.
func OpenTarm(cfg *Config) (*TarmPort, error) {
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultConfig("").ReadTimeout
	}
	p := &TarmPort{
		cfg: serial.Config{
			Name:        cfg.Device,
			Baud:        link.HandshakeBaud,
			ReadTimeout: timeout,
		},
		enabled: true,
	}
	port, err := serial.OpenPort(&p.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	p.port = port
	return p, nil
}

// Read reads received bytes. A read timeout returns 0 bytes without error.
func (p *TarmPort) Read(b []byte) (int, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	n, err := p.port.Read(b)
	if err == io.EOF {
		err = nil
	}
	if !p.enabled {
		n = 0
	}
	return n, err
}

// Write writes bytes, dropped while the port is disabled.
func (p *TarmPort) Write(b []byte) (int, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	if !p.enabled {
		return len(b), nil
	}
	return p.port.Write(b)
}

// Close closes the port.
func (p *TarmPort) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.port.Close()
}

// SetBaudRate reopens the port at baud.
func (p *TarmPort) SetBaudRate(baud int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return io.ErrClosedPipe
	}
	if p.cfg.Baud == baud {
		return nil
	}
	glog.V(2).Infof("%s: reopen at baud rate %d", p.cfg.Name, baud)
	if err := p.port.Close(); err != nil {
		glog.Warningf("%s: close error: %v", p.cfg.Name, err)
	}
	p.cfg.Baud = baud
	port, err := serial.OpenPort(&p.cfg)
	if err != nil {
		p.closed = true
		return fmt.Errorf("failed to reopen serial port %s: %w", p.cfg.Name, err)
	}
	p.port = port
	return nil
}

// SetEnabled gates reads and writes.
func (p *TarmPort) SetEnabled(enabled bool) error {
	p.lock.Lock()
	p.enabled = enabled
	p.lock.Unlock()
	if enabled {
		return p.Flush()
	}
	return nil
}

// Flush discards buffered data.
func (p *TarmPort) Flush() error {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.closed {
		return io.ErrClosedPipe
	}
	return p.port.Flush()
}

// SetBufferSize is a no-op, the driver owns the buffers.
func (p *TarmPort) SetBufferSize(rx, tx int) error {
	return nil
}
