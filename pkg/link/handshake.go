package link

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/pupsensor/pkg/device"
	"github.com/robotalks/pupsensor/pkg/lpf2"
)

type handshakeState struct {
	ack  bool
	baud int
}

// Advertisement builds the messages describing the device to the hub, in
// the order they are sent.
func Advertisement(info *device.Info) []*lpf2.Message {
	var msgs []*lpf2.Message

	msg := lpf2.NewCmd(lpf2.CmdDeviceType, 1)
	msg.PutUint8(0, info.ID)
	msgs = append(msgs, msg.Seal())

	n := uint8(len(info.Modes) - 1)
	modes := []uint8{n, 0}
	if n >= 8 {
		modes = append(modes, n, 0)
	}
	msg = lpf2.NewCmd(lpf2.CmdModes, len(modes))
	msg.PutUint8s(0, modes...)
	msgs = append(msgs, msg.Seal())

	msg = lpf2.NewCmd(lpf2.CmdSpeed, 4)
	msg.PutUint32(0, MaxBaud)
	msgs = append(msgs, msg.Seal())

	msg = lpf2.NewCmd(lpf2.CmdVersion, 8)
	msg.PutUint32s(0, info.FwVersion, info.HwVersion)
	msgs = append(msgs, msg.Seal())

	for i := len(info.Modes) - 1; i >= 0; i-- {
		msgs = append(msgs, modeInfo(info.Modes[i], info.CombiCaps)...)
	}
	return msgs
}

func modeInfo(m *device.Mode, caps uint16) []*lpf2.Message {
	var msgs []*lpf2.Message

	msg := lpf2.NewInfo(lpf2.InfoName, m.Index, len(m.Name))
	msg.PutString(0, m.Name)
	msgs = append(msgs, msg.Seal())

	ranges := []struct {
		t lpf2.InfoType
		r *device.Range
	}{
		{lpf2.InfoRaw, m.Raw},
		{lpf2.InfoPct, m.Pct},
		{lpf2.InfoSI, m.SI},
	}
	for _, rng := range ranges {
		if rng.r == nil {
			continue
		}
		msg = lpf2.NewInfo(rng.t, m.Index, 8)
		msg.PutFloat32s(0, rng.r.Min, rng.r.Max)
		msgs = append(msgs, msg.Seal())
	}

	if m.Unit != "" {
		msg = lpf2.NewInfo(lpf2.InfoUnit, m.Index, len(m.Unit))
		msg.PutString(0, m.Unit)
		msgs = append(msgs, msg.Seal())
	}

	if m.Mapping != nil {
		msg = lpf2.NewInfo(lpf2.InfoMapping, m.Index, 2)
		msg.PutUint8s(0, m.Mapping.In, m.Mapping.Out)
		msgs = append(msgs, msg.Seal())
	}

	if m.Index == 0 && caps != 0 {
		msg = lpf2.NewInfo(lpf2.InfoCombi, m.Index, 2)
		msg.PutUint16(0, caps)
		msgs = append(msgs, msg.Seal())
	}

	f := m.Format
	msg = lpf2.NewInfo(lpf2.InfoFormat, m.Index, 4)
	msg.PutUint8s(0, uint8(f.Items), uint8(f.Type), uint8(f.Width), uint8(f.Decimals))
	return append(msgs, msg.Seal())
}

func (l *Link) runHandshake(ctx context.Context) State {
	if err := l.Port.SetBaudRate(HandshakeBaud); err != nil {
		glog.Warningf("set baud rate error: %v", err)
	}
	if l.wait(ctx, l.Timing.Poll, l.handleHandshake, nil) != waitElapsed {
		return StateIdle
	}
	for attempt := 1; ; attempt++ {
		switch l.advertise(ctx) {
		case waitSatisfied:
			if baud := l.handshake.baud; baud > 0 {
				glog.V(1).Infof("switch baud rate to %d", baud)
				if err := l.Port.SetBaudRate(baud); err != nil {
					glog.Warningf("set baud rate error: %v", err)
				}
			}
			return StateStreaming
		case waitElapsed:
			glog.V(2).Infof("handshake attempt %d: no ACK", attempt)
		default:
			return StateIdle
		}
		if l.wait(ctx, l.Timing.RetryDelay, l.handleHandshake, nil) != waitElapsed {
			return StateIdle
		}
	}
}

// advertise performs one handshake attempt. It returns waitSatisfied when
// the hub acknowledged, waitElapsed on timeout.
func (l *Link) advertise(ctx context.Context) waitResult {
	for i, msg := range Advertisement(l.Device.Snapshot()) {
		if i > 0 {
			if res := l.wait(ctx, l.Timing.Interval, l.handleHandshake, nil); res != waitElapsed {
				return res
			}
		}
		l.send(msg)
	}
	if res := l.wait(ctx, l.Timing.Interval, l.handleHandshake, nil); res != waitElapsed {
		return res
	}
	l.flushInput()
	l.handshake = handshakeState{}
	l.send(lpf2.NewSys(lpf2.SysAck))
	return l.wait(ctx, l.Timing.AckTimeout, l.handleHandshake, func() bool {
		return l.handshake.ack
	})
}

func (l *Link) handleHandshake(ctx context.Context, in received) {
	switch msg := in.msg; {
	case msg.IsCmd(lpf2.CmdSpeed):
		baud := int(msg.Uint32(0))
		if baud < HandshakeBaud {
			baud = HandshakeBaud
		} else if baud > MaxBaud {
			baud = MaxBaud
		}
		l.handshake.baud = baud
	case msg.IsSys(lpf2.SysAck):
		l.handshake.ack = true
	}
}
