package link

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/pupsensor/pkg/device"
	"github.com/robotalks/pupsensor/pkg/lpf2"
)

type hookPort struct {
	testPort
	onWrite func([]byte)
}

func (p *hookPort) Write(b []byte) (int, error) {
	n, err := p.testPort.Write(b)
	if p.onWrite != nil {
		p.onWrite(b)
	}
	return n, err
}

func kinds(msgs []*lpf2.Message) []string {
	var names []string
	for _, msg := range msgs {
		switch msg.Kind() {
		case lpf2.KindCmd:
			names = append(names, [...]string{"TYPE", "MODES", "SPEED", "SELECT", "WRITE", "5", "EXT_MODE", "VERSION"}[msg.SubType()])
		case lpf2.KindInfo:
			names = append(names, map[byte]string{
				0: "NAME", 1: "RAW", 2: "PCT", 3: "SI", 4: "UNIT", 5: "MAPPING", 6: "COMBI", 0x80: "FORMAT",
			}[msg.SubType()])
		default:
			names = append(names, msg.Kind().String())
		}
	}
	return names
}

func TestAdvertisementDefault(t *testing.T) {
	msgs := Advertisement(device.New().Snapshot())
	require.Equal(t, []string{"TYPE", "MODES", "SPEED", "VERSION", "NAME", "FORMAT"}, kinds(msgs))
	require.Equal(t, []byte{0x40, 0xab, 0x14}, msgs[0].Bytes())
	require.Equal(t, []byte{0, 0}, msgs[1].Payload())
	require.Equal(t, uint32(115200), msgs[2].Uint32(0))
	require.Equal(t, uint32(0x10000000), msgs[3].Uint32(0))
	require.Equal(t, uint32(0x10000000), msgs[3].Uint32(4))
	require.Equal(t, "M0", msgs[4].StringAt(0))
	require.Equal(t, []byte{1, 0, 3, 0}, msgs[5].Payload())
	for _, msg := range msgs {
		require.True(t, msg.Verify())
	}
}

func TestAdvertisementFull(t *testing.T) {
	dev := device.New()
	dev.SetModeCount(9)
	dev.SetCombiCaps(0x0007)
	dev.SetRawRange(0, 0, 1023)
	dev.SetPctRange(0, 0, 100)
	dev.SetSIRange(0, 0, 10)
	dev.SetModeUnit(0, "PCT")
	dev.SetMapping(0, 0x10, 0x20)
	dev.SetModeName(8, "HIGH")
	dev.SetModeFormat(8, 4, lpf2.Float32, 8, 2)

	msgs := Advertisement(dev.Snapshot())
	require.Equal(t, []byte{8, 0, 8, 0}, msgs[1].Payload())

	names := kinds(msgs)
	require.Len(t, names, 4+8*2+8)
	require.Equal(t, []string{"NAME", "FORMAT"}, names[4:6])
	require.Equal(t, 8, msgs[4].Mode())
	require.Equal(t, "HIGH", msgs[4].StringAt(0))
	require.Equal(t, []byte{4, 3, 8, 2}, msgs[5].Payload())
	require.Equal(t,
		[]string{"NAME", "RAW", "PCT", "SI", "UNIT", "MAPPING", "COMBI", "FORMAT"},
		names[len(names)-8:])

	mode0 := msgs[len(msgs)-8:]
	for _, msg := range mode0 {
		require.Equal(t, 0, msg.Mode())
	}
	require.Equal(t, float32(1023), mode0[1].Float32(4))
	require.Equal(t, "PCT", mode0[4].StringAt(0))
	require.Equal(t, []byte{0x10, 0x20}, mode0[5].Payload())
	require.Equal(t, uint16(7), mode0[6].Uint16(0))
}

func newHandshakeLink(reply ...*lpf2.Message) (*Link, *hookPort) {
	port := &hookPort{}
	l := New(port, device.New())
	port.onWrite = func(b []byte) {
		if len(b) == 1 && b[0] == byte(lpf2.SysAck) {
			for _, msg := range reply {
				l.Receive(msg.Bytes())
			}
		}
	}
	return l, port
}

func speedMsg(baud uint32) *lpf2.Message {
	msg := lpf2.NewCmd(lpf2.CmdSpeed, 4)
	msg.PutUint32(0, baud)
	return msg.Seal()
}

func TestHandshake(t *testing.T) {
	testCases := []struct {
		name  string
		reply []*lpf2.Message
		baud  int
	}{
		{"ack", []*lpf2.Message{lpf2.NewSys(lpf2.SysAck)}, HandshakeBaud},
		{"speed", []*lpf2.Message{speedMsg(57600), lpf2.NewSys(lpf2.SysAck)}, 57600},
		{"speed high", []*lpf2.Message{speedMsg(1000000), lpf2.NewSys(lpf2.SysAck)}, MaxBaud},
		{"speed low", []*lpf2.Message{speedMsg(300), lpf2.NewSys(lpf2.SysAck)}, HandshakeBaud},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l, port := newHandshakeLink(tc.reply...)
			require.Equal(t, StateStreaming, l.runHandshake(context.Background()))
			require.Equal(t, tc.baud, port.baud)
			require.Equal(t, 1, port.flushes)
			names := kinds(port.messages(t))
			require.Equal(t, []string{"TYPE", "MODES", "SPEED", "VERSION", "NAME", "FORMAT", "SYS"}, names)
		})
	}
}

func TestHandshakeRetry(t *testing.T) {
	l, port := newHandshakeLink()
	l.Timing.RetryDelay = 20 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	require.Equal(t, StateIdle, l.runHandshake(ctx))
	names := kinds(port.messages(t))
	require.True(t, len(names) >= 14, "only %d messages", len(names))
	require.Equal(t, names[:7], names[7:14])
}

func TestHandshakeBreak(t *testing.T) {
	l, port := newHandshakeLink(lpf2.NewSys(lpf2.SysAck))
	l.Break()
	require.Equal(t, StateIdle, l.runHandshake(context.Background()))
	require.Empty(t, port.messages(t))
}

func TestReceiveSequence(t *testing.T) {
	l, port, _ := newTestLink(1)
	bad := cmdMsg(lpf2.CmdSelect, 1).Bytes()
	bad[1] ^= 0x10
	var stream []byte
	stream = append(stream, cmdMsg(lpf2.CmdSelect, 0).Bytes()...)
	stream = append(stream, bad...)
	stream = append(stream, byte(lpf2.SysNack))
	for n := range stream {
		l.Receive(stream[n : n+1])
	}
	require.Equal(t, 1, port.flushes)

	first := <-l.rxCh
	require.Equal(t, 0, first.seq)
	require.True(t, first.msg.IsCmd(lpf2.CmdSelect))
	second := <-l.rxCh
	require.Equal(t, 2, second.seq)
	require.True(t, second.msg.IsSys(lpf2.SysNack))
	require.Empty(t, l.rxCh)
}

func TestReceiveSequenceWraps(t *testing.T) {
	l, _, _ := newTestLink(1)
	l.rxSeq = SeqMax
	l.Receive([]byte{byte(lpf2.SysNack), byte(lpf2.SysNack)})
	require.Equal(t, SeqMax, (<-l.rxCh).seq)
	require.Equal(t, 0, (<-l.rxCh).seq)
}
