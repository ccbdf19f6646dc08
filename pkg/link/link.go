// Package link runs the connection state machine of an emulated LPF2 sensor.
package link

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/pupsensor/pkg/device"
	"github.com/robotalks/pupsensor/pkg/lpf2"
)

type received struct {
	seq int
	msg *lpf2.Message
	at  time.Time
}

type handlerFunc func(context.Context, received)

// Link pairs a Device with a hub over a Port.
//
// Run must be called from a single goroutine. Receive and Break may be
// called from any goroutine, typically the one reading the serial port.
type Link struct {
	Port     Port
	Device   *device.Device
	Tx       Pin
	Rx       Pin
	Clock    Clock
	Timing   Timing
	Handler  EventHandler
	Notifier StateNotifier

	state int32

	rxLock  sync.Mutex
	decoder *lpf2.Decoder
	rxSeq   int
	rxCh    chan received
	breakCh chan struct{}

	// owned by the Run goroutine
	broken    bool
	handshake handshakeState
	streaming streamingState
}

// New creates a Link with default timing and no GPIO lines.
func New(port Port, dev *device.Device) *Link {
	return &Link{
		Port:    port,
		Device:  dev,
		Tx:      NopPin,
		Rx:      NopPin,
		Clock:   SystemClock,
		Timing:  DefaultTiming,
		decoder: lpf2.NewDecoder(),
		rxCh:    make(chan received, rxQueueSize),
		breakCh: make(chan struct{}, 1),
	}
}

// State returns the current connection state.
func (l *Link) State() State {
	return State(atomic.LoadInt32(&l.state))
}

// Connected is true exactly while streaming.
func (l *Link) Connected() bool {
	return l.State() == StateStreaming
}

// Break reports a break condition on the rx line.
func (l *Link) Break() {
	select {
	case l.breakCh <- struct{}{}:
	default:
	}
}

// Receive feeds bytes received from the hub.
func (l *Link) Receive(p []byte) {
	now := l.Clock.Now()
	l.rxLock.Lock()
	defer l.rxLock.Unlock()
	l.decoder.Feed(p)
	for {
		switch l.decoder.Decode() {
		case lpf2.NeedData:
			return
		case lpf2.Decoded:
			in := received{seq: l.nextSeq(), msg: l.decoder.Message(), at: now}
			if glog.V(3) {
				glog.Infof("RX #%d %s", in.seq, in.msg)
			}
			select {
			case l.rxCh <- in:
			default:
				glog.Warningf("rx queue full, drop %s", in.msg)
			}
		case lpf2.DecodeError:
			glog.V(2).Infof("RX checksum error: %s", l.decoder.Message())
			l.decoder.Reset()
			if err := l.Port.Flush(); err != nil {
				glog.Warningf("flush error: %v", err)
			}
			l.nextSeq()
		}
	}
}

func (l *Link) nextSeq() int {
	seq := l.rxSeq
	if l.rxSeq++; l.rxSeq > SeqMax {
		l.rxSeq = 0
	}
	return seq
}

// flushInput drops everything received so far.
func (l *Link) flushInput() {
	l.rxLock.Lock()
	if err := l.Port.Flush(); err != nil {
		glog.Warningf("flush error: %v", err)
	}
	l.decoder.Reset()
	l.rxLock.Unlock()
	for {
		select {
		case <-l.rxCh:
		default:
			return
		}
	}
}

// Run drives the state machine until ctx is done.
func (l *Link) Run(ctx context.Context) error {
	if err := l.Port.SetBufferSize(BufferSize, BufferSize); err != nil {
		glog.Warningf("set buffer size error: %v", err)
	}
	l.flushInput()
	state := StateIdle
	for {
		l.enter(ctx, state)
		next := l.step(ctx, state)
		if err := ctx.Err(); err != nil {
			l.enter(ctx, StateIdle)
			return err
		}
		state = next
	}
}

// step runs a state to completion and returns the next one.
func (l *Link) step(ctx context.Context, state State) State {
	switch state {
	case StateHandshake:
		return l.runHandshake(ctx)
	case StateStreaming:
		return l.runStreaming(ctx)
	}
	return l.runIdle(ctx)
}

func (l *Link) enter(ctx context.Context, state State) {
	l.clearBreak()
	old := State(atomic.SwapInt32(&l.state, int32(state)))
	if old == state {
		return
	}
	glog.V(1).Infof("state %s -> %s", old, state)
	if n := l.Notifier; n != nil {
		n.StateChanged(ctx, state)
	}
}

func (l *Link) clearBreak() {
	l.broken = false
	select {
	case <-l.breakCh:
	default:
	}
}

// isBroken polls for a break without waiting.
func (l *Link) isBroken() bool {
	if !l.broken {
		select {
		case <-l.breakCh:
			l.broken = true
		default:
		}
	}
	return l.broken
}

func (l *Link) notify(ctx context.Context, kind EventKind, mode int) {
	if h := l.Handler; h != nil {
		h.HandleEvent(ctx, Event{Kind: kind, Mode: mode, Time: l.Clock.Now()})
	}
}

func (l *Link) send(msg *lpf2.Message) {
	if glog.V(3) {
		glog.Infof("TX %s", msg)
	}
	if _, err := l.Port.Write(msg.Bytes()); err != nil {
		glog.Warningf("write error: %v", err)
	}
}

type waitResult int

const (
	waitElapsed waitResult = iota
	waitSatisfied
	waitBroken
	waitCanceled
)

// wait pauses for d while dispatching received messages to h. It returns
// early on break, cancellation or when until reports true.
func (l *Link) wait(ctx context.Context, d time.Duration, h handlerFunc, until func() bool) waitResult {
	if l.isBroken() {
		return waitBroken
	}
	timer := l.Clock.After(d)
	for {
		if until != nil && until() {
			return waitSatisfied
		}
		select {
		case <-ctx.Done():
			return waitCanceled
		case <-l.breakCh:
			l.broken = true
			return waitBroken
		case in := <-l.rxCh:
			if h != nil {
				h(ctx, in)
			}
		case <-timer:
			return waitElapsed
		}
	}
}

// pause waits for d ignoring breaks, received messages are dropped.
func (l *Link) pause(ctx context.Context, d time.Duration) bool {
	timer := l.Clock.After(d)
	for {
		select {
		case <-ctx.Done():
			return false
		case <-l.rxCh:
		case <-timer:
			return true
		}
	}
}
