package hub

import (
	"sync"
)

// Loopback is an in-memory serial line between a device and a Peer.
//
// It satisfies the port contract of the device link: bytes written by the
// device go to the Peer, bytes sent by the Peer go to DeviceRx. Nothing
// passes while the line is disabled.
type Loopback struct {
	Peer *Peer
	// DeviceRx receives bytes sent by the Peer.
	DeviceRx func([]byte)

	lock    sync.Mutex
	enabled bool
	baud    int
	flushes int
}

// NewLoopback creates a Loopback and its Peer.
func NewLoopback(deviceRx func([]byte)) *Loopback {
	lb := &Loopback{DeviceRx: deviceRx, enabled: true}
	lb.Peer = NewPeer(lb.toDevice)
	return lb
}

func (lb *Loopback) toDevice(b []byte) error {
	if !lb.Enabled() {
		return nil
	}
	if rx := lb.DeviceRx; rx != nil {
		rx(append([]byte(nil), b...))
	}
	return nil
}

// Write delivers device bytes to the Peer.
func (lb *Loopback) Write(b []byte) (int, error) {
	if lb.Enabled() {
		lb.Peer.Receive(append([]byte(nil), b...))
	}
	return len(b), nil
}

// SetBaudRate records the line speed.
func (lb *Loopback) SetBaudRate(baud int) error {
	lb.lock.Lock()
	lb.baud = baud
	lb.lock.Unlock()
	return nil
}

// BaudRate returns the last speed set by the device.
func (lb *Loopback) BaudRate() int {
	lb.lock.Lock()
	defer lb.lock.Unlock()
	return lb.baud
}

// SetEnabled turns the line on or off.
func (lb *Loopback) SetEnabled(enabled bool) error {
	lb.lock.Lock()
	lb.enabled = enabled
	lb.lock.Unlock()
	return nil
}

// Enabled tells whether bytes pass.
func (lb *Loopback) Enabled() bool {
	lb.lock.Lock()
	defer lb.lock.Unlock()
	return lb.enabled
}

// Flush counts flush requests, nothing is buffered.
func (lb *Loopback) Flush() error {
	lb.lock.Lock()
	lb.flushes++
	lb.lock.Unlock()
	return nil
}

// Flushes returns the number of Flush calls.
func (lb *Loopback) Flushes() int {
	lb.lock.Lock()
	defer lb.lock.Unlock()
	return lb.flushes
}

// SetBufferSize is a no-op.
func (lb *Loopback) SetBufferSize(rx, tx int) error {
	return nil
}
