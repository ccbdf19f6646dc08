package serial

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/pupsensor/pkg/framework"
	"github.com/robotalks/pupsensor/pkg/link"
)

// Receiver consumes bytes read from the port.
type Receiver interface {
	Receive([]byte)
	Break()
}

type readSizer interface {
	ReadSize() int
}

// Pump copies bytes from a port to a Receiver. A read error is reported as
// a break on the line.
type Pump struct {
	Port     io.ReadCloser
	Receiver Receiver
	// ErrorDelay is the pause after a read error.
	ErrorDelay time.Duration
}

// NewPump creates a Pump.
func NewPump(port io.ReadCloser, receiver Receiver) *Pump {
	return &Pump{Port: port, Receiver: receiver, ErrorDelay: 100 * time.Millisecond}
}

// Name implements framework.Named.
func (p *Pump) Name() string {
	return "serial"
}

// Run implements framework.Runnable. The port is closed when ctx is done.
func (p *Pump) Run(ctx context.Context) error {
	return framework.RunWithContextCloser(ctx, p.Port, func() error {
		return p.pump(ctx)
	})
}

func (p *Pump) pump(ctx context.Context) error {
	size := link.BufferSize
	if rs, ok := p.Port.(readSizer); ok && rs.ReadSize() > 0 {
		size = rs.ReadSize()
	}
	buf := make([]byte, size)
	for {
		n, err := p.Port.Read(buf)
		if n > 0 {
			if glog.V(4) {
				glog.Infof("serial: RX % x", buf[:n])
			}
			p.Receiver.Receive(buf[:n])
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			continue
		}
		if err == io.ErrClosedPipe {
			return err
		}
		glog.Warningf("serial read error: %v", err)
		p.Receiver.Break()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.ErrorDelay):
		}
	}
}
