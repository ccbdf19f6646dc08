package link

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/pupsensor/pkg/device"
	"github.com/robotalks/pupsensor/pkg/lpf2"
)

type testPort struct {
	lock    sync.Mutex
	written []byte
	baud    int
	enabled bool
	flushes int
}

func (p *testPort) Write(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *testPort) SetBaudRate(baud int) error {
	p.lock.Lock()
	p.baud = baud
	p.lock.Unlock()
	return nil
}

func (p *testPort) SetEnabled(enabled bool) error {
	p.lock.Lock()
	p.enabled = enabled
	p.lock.Unlock()
	return nil
}

func (p *testPort) Flush() error {
	p.lock.Lock()
	p.flushes++
	p.lock.Unlock()
	return nil
}

func (p *testPort) SetBufferSize(rx, tx int) error {
	return nil
}

func (p *testPort) messages(t *testing.T) []*lpf2.Message {
	p.lock.Lock()
	defer p.lock.Unlock()
	return decodeAll(t, p.written)
}

func decodeAll(t *testing.T, b []byte) []*lpf2.Message {
	dec := lpf2.NewDecoder()
	dec.Feed(b)
	var msgs []*lpf2.Message
	for {
		res := dec.Decode()
		if res == lpf2.NeedData {
			return msgs
		}
		require.Equal(t, lpf2.Decoded, res)
		msgs = append(msgs, dec.Message())
	}
}

func newTestLink(modes int) (*Link, *testPort, EventChan) {
	dev := device.New()
	dev.SetModeCount(modes)
	port := &testPort{}
	l := New(port, dev)
	events := make(EventChan, 64)
	l.Handler = events
	return l, port, events
}

func cmdMsg(t lpf2.CmdType, vals ...uint8) *lpf2.Message {
	msg := lpf2.NewCmd(t, len(vals))
	msg.PutUint8s(0, vals...)
	return msg.Seal()
}

func dataMsg(mode int, vals ...uint8) *lpf2.Message {
	msg := lpf2.NewData(mode, len(vals))
	msg.PutUint8s(0, vals...)
	return msg.Seal()
}

func nextEvent(t *testing.T, events EventChan) Event {
	select {
	case evt := <-events:
		return evt
	default:
		require.FailNow(t, "no event")
	}
	return Event{}
}

func TestExtModeAddressing(t *testing.T) {
	t0 := time.Now()
	testCases := []struct {
		name   string
		offset uint8
		extSeq int
		seq    int
		delay  time.Duration
		mode   int
	}{
		{"extended", 8, 10, 11, 50 * time.Millisecond, 11},
		{"offset 0", 0, 10, 11, 0, 3},
		{"sequence gap", 8, 10, 12, 0, 3},
		{"expired", 8, 10, 11, 250 * time.Millisecond, 3},
		{"at window", 8, 10, 11, 200 * time.Millisecond, 11},
		{"wrap", 8, SeqMax, 0, 0, 11},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l, _, events := newTestLink(12)
			ctx := context.Background()
			l.handleStreaming(ctx, received{seq: tc.extSeq, msg: cmdMsg(lpf2.CmdExtMode, tc.offset), at: t0})
			require.NotNil(t, l.streaming.ext)
			l.handleStreaming(ctx, received{seq: tc.seq, msg: dataMsg(3, 42), at: t0.Add(tc.delay)})
			require.Nil(t, l.streaming.ext)
			require.Equal(t, float64(42), l.Device.ModeData(tc.mode, 0))
			evt := nextEvent(t, events)
			require.Equal(t, EventModeDataWritten, evt.Kind)
			require.Equal(t, tc.mode, evt.Mode)
			require.Equal(t, 10+tc.mode, evt.Code())
		})
	}
}

func TestExtModeInvalidOffset(t *testing.T) {
	l, _, _ := newTestLink(12)
	ctx := context.Background()
	now := time.Now()
	l.handleStreaming(ctx, received{seq: 1, msg: cmdMsg(lpf2.CmdExtMode, 8), at: now})
	l.handleStreaming(ctx, received{seq: 2, msg: cmdMsg(lpf2.CmdExtMode, 4), at: now})
	require.Nil(t, l.streaming.ext)
	l.handleStreaming(ctx, received{seq: 3, msg: cmdMsg(lpf2.CmdSelect, 2), at: now})
	require.Equal(t, 2, l.Device.SelectedMode())
}

func TestSelect(t *testing.T) {
	l, _, _ := newTestLink(1)
	ctx := context.Background()
	now := time.Now()
	l.handleStreaming(ctx, received{seq: 0, msg: cmdMsg(lpf2.CmdSelect, 1), at: now})
	require.Equal(t, 0, l.Device.SelectedMode())

	l, _, _ = newTestLink(12)
	l.handleStreaming(ctx, received{seq: 0, msg: cmdMsg(lpf2.CmdExtMode, 8), at: now})
	l.handleStreaming(ctx, received{seq: 1, msg: cmdMsg(lpf2.CmdSelect, 1), at: now})
	require.Equal(t, 9, l.Device.SelectedMode())
	l.handleStreaming(ctx, received{seq: 2, msg: cmdMsg(lpf2.CmdExtMode, 8), at: now})
	l.handleStreaming(ctx, received{seq: 3, msg: cmdMsg(lpf2.CmdSelect, 4), at: now})
	require.Equal(t, 9, l.Device.SelectedMode())
}

func TestNackWatchdog(t *testing.T) {
	l, _, _ := newTestLink(1)
	at := time.Now().Add(time.Second)
	l.handleStreaming(context.Background(), received{msg: lpf2.NewSys(lpf2.SysNack), at: at})
	require.Equal(t, at, l.streaming.nackAt)
}

func TestWriteCombi(t *testing.T) {
	oversize := []uint8{0x20 | 64, 3}
	for n := 0; n < 64; n++ {
		oversize = append(oversize, 0x10|uint8(n%8))
	}
	preset := []device.CombiItem{{Mode: 0, Item: 0}}
	testCases := []struct {
		name   string
		msg    *lpf2.Message
		expect *device.Combi
	}{
		{"bind", cmdMsg(lpf2.CmdWrite, 0x22, 3, 0x00, 0x17),
			&device.Combi{Index: 3, Items: []device.CombiItem{{Mode: 0, Item: 0}, {Mode: 1, Item: 7}}}},
		{"clear", cmdMsg(lpf2.CmdWrite, 0x20, 3), nil},
		{"missing flag", cmdMsg(lpf2.CmdWrite, 0x02, 3, 0x00, 0x17), &device.Combi{Index: 3, Items: preset}},
		{"bad mode", cmdMsg(lpf2.CmdWrite, 0x21, 3, 0x20), &device.Combi{Index: 3, Items: preset}},
		{"bad item", cmdMsg(lpf2.CmdWrite, 0x21, 3, 0x01), &device.Combi{Index: 3, Items: preset}},
		{"truncated", cmdMsg(lpf2.CmdWrite, 0x25, 3, 0x00), &device.Combi{Index: 3, Items: preset}},
		{"oversize", cmdMsg(lpf2.CmdWrite, oversize...), &device.Combi{Index: 3, Items: preset}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l, _, _ := newTestLink(2)
			l.Device.SetModeFormat(1, 8, lpf2.Int32, 8, 0)
			require.NoError(t, l.Device.SetCombi(3, preset))
			l.handleStreaming(context.Background(), received{msg: tc.msg, at: time.Now()})
			require.Equal(t, tc.expect, l.Device.Combi(3))
		})
	}
}

func TestWriteCombiSlotRange(t *testing.T) {
	l, _, _ := newTestLink(1)
	l.handleStreaming(context.Background(), received{msg: cmdMsg(lpf2.CmdWrite, 0x21, 8, 0x00), at: time.Now()})
	for n := 0; n < device.MaxCombis; n++ {
		require.Nil(t, l.Device.Combi(n))
	}
}

func TestWriteData(t *testing.T) {
	l, _, events := newTestLink(1)
	l.Device.SetModeFormat(0, 2, lpf2.Int16, 6, 0)
	ctx := context.Background()

	l.handleStreaming(ctx, received{msg: dataMsg(0, 1, 0), at: time.Now()})
	require.Equal(t, []float64{0, 0}, l.Device.Mode(0).Data)
	require.Empty(t, events)

	msg := lpf2.NewData(0, 4)
	require.NoError(t, msg.PutValues(0, lpf2.Int16, -2, 300))
	l.handleStreaming(ctx, received{msg: msg.Seal(), at: time.Now()})
	require.Equal(t, []float64{-2, 300}, l.Device.Mode(0).Data)
	evt := nextEvent(t, events)
	require.Equal(t, Event{Kind: EventModeDataWritten, Mode: 0, Time: evt.Time}, evt)

	l.handleStreaming(ctx, received{msg: dataMsg(5, 1, 0, 0, 0), at: time.Now()})
	require.Empty(t, events)
}

func TestDataFrame(t *testing.T) {
	dev := device.New()
	dev.SetModeCount(12)
	dev.SetModeFormat(9, 2, lpf2.Int16, 6, 0)
	dev.WriteModeData(9, []float64{-1, 513})
	dev.SetModeData(0, 0, 7)

	mode, msg := DataFrame(dev.Snapshot())
	require.Equal(t, 0, mode)
	require.Equal(t, []byte{0xc0, 0x07, 0x38}, msg.Bytes())

	require.True(t, dev.SelectMode(9))
	mode, msg = DataFrame(dev.Snapshot())
	require.Equal(t, 9, mode)
	require.Equal(t, 1, msg.Mode())
	require.Equal(t, 4, msg.DataLen())
	require.Equal(t, float64(-1), msg.Value(0, lpf2.Int16))
	require.Equal(t, float64(513), msg.Value(2, lpf2.Int16))

	require.NoError(t, dev.SetCombi(2, []device.CombiItem{{Mode: 9, Item: 1}, {Mode: 0, Item: 0}}))
	require.True(t, dev.SelectMode(2))
	mode, msg = DataFrame(dev.Snapshot())
	require.Equal(t, 2, mode)
	require.Equal(t, 2, msg.Mode())
	require.Equal(t, 4, msg.DataLen())
	require.Equal(t, float64(513), msg.Value(0, lpf2.Int16))
	require.Equal(t, float64(7), msg.Value(2, lpf2.Int8))
	require.True(t, msg.Verify())
}

func TestDataFrameFallback(t *testing.T) {
	dev := device.New()
	dev.SetDefaultMode(5)
	dev.SetModeData(0, 0, 3)
	mode, msg := DataFrame(dev.Snapshot())
	require.Equal(t, 0, mode)
	require.Equal(t, 0, msg.Mode())
	require.Equal(t, float64(3), msg.Value(0, lpf2.Int8))

	dev.SetModeFormat(0, 2, lpf2.Int8, 3, 0)
	dev.SetModeData(0, 1, 9)
	require.NoError(t, dev.SetCombi(0, []device.CombiItem{{Mode: 0, Item: 1}}))
	mode, msg = DataFrame(dev.Snapshot())
	require.Equal(t, 0, mode)
	require.Equal(t, 1, msg.DataLen())
	require.Equal(t, float64(9), msg.Value(0, lpf2.Int8))
}

func TestStreamingNackTimeout(t *testing.T) {
	l, port, events := newTestLink(12)
	l.Device.SelectMode(10)
	next := l.runStreaming(context.Background())
	require.Equal(t, StateHandshake, next)
	require.Equal(t, EventConnected, nextEvent(t, events).Kind)
	require.Equal(t, EventDisconnected, nextEvent(t, events).Kind)

	msgs := port.messages(t)
	require.True(t, len(msgs) >= 2)
	require.Equal(t, 0, len(msgs)%2)
	for n := 0; n < len(msgs); n += 2 {
		require.True(t, msgs[n].IsCmd(lpf2.CmdExtMode))
		require.Equal(t, uint8(8), msgs[n].Uint8(0))
		require.Equal(t, lpf2.KindData, msgs[n+1].Kind())
		require.Equal(t, 2, msgs[n+1].Mode())
	}
}

func TestStreamingBreak(t *testing.T) {
	l, port, events := newTestLink(1)
	l.Break()
	require.Equal(t, StateIdle, l.runStreaming(context.Background()))
	require.Equal(t, EventConnected, nextEvent(t, events).Kind)
	require.Equal(t, EventDisconnected, nextEvent(t, events).Kind)
	require.Empty(t, port.messages(t))
}

func TestStreamingCancel(t *testing.T) {
	l, _, events := newTestLink(1)
	l.Timing.NackTimeout = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Equal(t, StateIdle, l.runStreaming(ctx))
	require.Equal(t, EventConnected, nextEvent(t, events).Kind)
	require.Equal(t, EventDisconnected, nextEvent(t, events).Kind)
}
