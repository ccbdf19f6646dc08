package serial

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	bugst "go.bug.st/serial"

	"github.com/robotalks/pupsensor/pkg/link"
)

type chunkReader struct {
	chunks []interface{}
	closed chan struct{}
	once   sync.Once
}

func newChunkReader(chunks ...interface{}) *chunkReader {
	return &chunkReader{chunks: chunks, closed: make(chan struct{})}
}

func (r *chunkReader) Read(b []byte) (int, error) {
	if len(r.chunks) == 0 {
		<-r.closed
		return 0, io.ErrClosedPipe
	}
	chunk := r.chunks[0]
	r.chunks = r.chunks[1:]
	switch v := chunk.(type) {
	case error:
		return 0, v
	case []byte:
		return copy(b, v), nil
	}
	return 0, nil
}

func (r *chunkReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

type recordReceiver struct {
	lock   sync.Mutex
	data   []byte
	breaks int
}

func (r *recordReceiver) Receive(b []byte) {
	r.lock.Lock()
	r.data = append(r.data, b...)
	r.lock.Unlock()
}

func (r *recordReceiver) Break() {
	r.lock.Lock()
	r.breaks++
	r.lock.Unlock()
}

func TestPump(t *testing.T) {
	port := newChunkReader([]byte{1, 2}, []byte{}, errors.New("framing error"), []byte{3})
	recv := &recordReceiver{}
	pump := NewPump(port, recv)
	pump.ErrorDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pump.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for {
		recv.lock.Lock()
		n := len(recv.data)
		recv.lock.Unlock()
		if n == 3 {
			break
		}
		require.True(t, time.Now().Before(deadline), "timeout")
		time.Sleep(time.Millisecond)
	}
	cancel()
	require.Equal(t, context.Canceled, <-done)
	require.Equal(t, []byte{1, 2, 3}, recv.data)
	require.Equal(t, 1, recv.breaks)
}

type fakeBreaker struct {
	breaks  chan time.Duration
	release chan struct{}
}

func (b *fakeBreaker) Break(d time.Duration) error {
	b.breaks <- d
	<-b.release
	return nil
}

func TestBreakPin(t *testing.T) {
	b := &fakeBreaker{breaks: make(chan time.Duration), release: make(chan struct{})}
	pin := &BreakPin{Port: b, Duration: 200 * time.Millisecond}
	require.True(t, pin.Get())
	pin.Set(true)
	pin.Set(false)
	require.False(t, pin.Get())
	pin.Set(false)
	require.Equal(t, 200*time.Millisecond, <-b.breaks)
	select {
	case <-b.breaks:
		require.Fail(t, "second break while busy")
	case <-time.After(20 * time.Millisecond):
	}

	released := make(chan struct{})
	go func() {
		time.Sleep(30 * time.Millisecond)
		close(released)
		close(b.release)
	}()
	pin.Set(true)
	select {
	case <-released:
	default:
		require.Fail(t, "tx high before the break ended")
	}
	require.True(t, pin.Get())
}

func TestPinsBreakDuration(t *testing.T) {
	timing := link.DefaultTiming
	timing.ResetPulse = 50 * time.Millisecond
	tx, rx, err := Pins(&BugstPort{}, &Config{BreakTx: true}, timing)
	require.NoError(t, err)
	require.Equal(t, link.NopPin, rx)
	bp, ok := tx.(*BreakPin)
	require.True(t, ok)
	require.Equal(t, 50*time.Millisecond, bp.Duration)
}

type fakeStatus struct {
	bits *bugst.ModemStatusBits
	err  error
}

func (s *fakeStatus) ModemStatus() (*bugst.ModemStatusBits, error) {
	return s.bits, s.err
}

func TestStatusPin(t *testing.T) {
	status := &fakeStatus{bits: &bugst.ModemStatusBits{CTS: true, DSR: false, DCD: true}}
	_, err := NewStatusPin(status, "ri")
	require.Error(t, err)

	for line, expect := range map[string]bool{"CTS": true, "dsr": false, "dcd": true} {
		pin, err := NewStatusPin(status, line)
		require.NoError(t, err)
		require.Equal(t, expect, pin.Get(), line)
	}

	status.err = errors.New("gone")
	pin, _ := NewStatusPin(status, "dsr")
	require.True(t, pin.Get())

	var _ link.Pin = pin
	var _ link.Pin = &BreakPin{}
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(nil)
	require.Error(t, err)
	_, err = Open(&Config{Device: "/dev/null", Driver: "usb"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown serial driver")
}

type tarmLike struct {
	chunkReader
}

func (*tarmLike) Write(b []byte) (int, error)    { return len(b), nil }
func (*tarmLike) SetBaudRate(int) error          { return nil }
func (*tarmLike) SetEnabled(bool) error          { return nil }
func (*tarmLike) Flush() error                   { return nil }
func (*tarmLike) SetBufferSize(rx, tx int) error { return nil }

func TestPinsUnsupported(t *testing.T) {
	port := &tarmLike{}
	tx, rx, err := Pins(port, &Config{Driver: DriverTarm}, link.DefaultTiming)
	require.NoError(t, err)
	require.Equal(t, link.NopPin, tx)
	require.Equal(t, link.NopPin, rx)

	_, _, err = Pins(port, &Config{Driver: DriverTarm, BreakTx: true}, link.DefaultTiming)
	require.Error(t, err)
	_, _, err = Pins(port, &Config{Driver: DriverTarm, RxStatus: "cts"}, link.DefaultTiming)
	require.Error(t, err)
}
