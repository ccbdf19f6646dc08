package serial

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	bugst "go.bug.st/serial"

	"github.com/robotalks/pupsensor/pkg/link"
)

// Breaker holds the tx line low.
type Breaker interface {
	Break(d time.Duration) error
}

// BreakPin emulates the tx pin with line breaks: driving it low starts a
// break lasting Duration, driving it high waits for that break to end.
type BreakPin struct {
	Port     Breaker
	Duration time.Duration

	lock sync.Mutex
	done chan struct{}
}

// Get reports false while a break is in progress.
func (p *BreakPin) Get() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.done == nil
}

// Set starts a break on low, high blocks until the running break ends.
func (p *BreakPin) Set(high bool) {
	p.lock.Lock()
	done := p.done
	if high || done != nil {
		p.lock.Unlock()
		if high && done != nil {
			<-done
		}
		return
	}
	done = make(chan struct{})
	p.done = done
	p.lock.Unlock()
	go func() {
		if err := p.Port.Break(p.Duration); err != nil {
			glog.Warningf("break error: %v", err)
		}
		p.lock.Lock()
		p.done = nil
		p.lock.Unlock()
		close(done)
	}()
}

// SetPull is a no-op.
func (p *BreakPin) SetPull(link.Pull) {}

// ModemStatusReader reads modem status lines.
type ModemStatusReader interface {
	ModemStatus() (*bugst.ModemStatusBits, error)
}

// StatusPin reads the rx level from a modem status line.
type StatusPin struct {
	Port ModemStatusReader
	Line string
}

// NewStatusPin creates a StatusPin for line cts, dsr or dcd.
func NewStatusPin(port ModemStatusReader, line string) (*StatusPin, error) {
	line = strings.ToLower(line)
	switch line {
	case "cts", "dsr", "dcd":
		return &StatusPin{Port: port, Line: line}, nil
	}
	return nil, fmt.Errorf("unknown modem status line %q", line)
}

// Get reads the line, an error reads high.
func (p *StatusPin) Get() bool {
	bits, err := p.Port.ModemStatus()
	if err != nil {
		glog.Warningf("modem status error: %v", err)
		return true
	}
	switch p.Line {
	case "cts":
		return bits.CTS
	case "dsr":
		return bits.DSR
	}
	return bits.DCD
}

// Set is a no-op, the line is an input.
func (p *StatusPin) Set(bool) {}

// SetPull is a no-op.
func (p *StatusPin) SetPull(link.Pull) {}
