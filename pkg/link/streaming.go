package link

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/pupsensor/pkg/device"
	"github.com/robotalks/pupsensor/pkg/lpf2"
)

const combiFlag = 0x20

type streamingState struct {
	nackAt time.Time
	ext    *extMode
}

// extMode is the offset latched by EXT_MODE for the following message.
type extMode struct {
	seq    int
	at     time.Time
	offset int
}

func (l *Link) runStreaming(ctx context.Context) State {
	l.notify(ctx, EventConnected, 0)
	defer l.notify(ctx, EventDisconnected, 0)

	l.streaming = streamingState{nackAt: l.Clock.Now()}
	for {
		if l.isBroken() {
			return StateIdle
		}
		if l.Clock.Now().Sub(l.streaming.nackAt) > l.Timing.NackTimeout {
			glog.V(1).Info("NACK timeout")
			return StateHandshake
		}
		mode, msg := DataFrame(l.Device.Snapshot())
		ext := lpf2.NewCmd(lpf2.CmdExtMode, 1)
		if mode >= 8 {
			ext.PutUint8(0, 8)
		}
		l.send(ext.Seal())
		l.send(msg)

		switch l.wait(ctx, l.Timing.Interval, l.handleStreaming, nil) {
		case waitBroken, waitCanceled:
			return StateIdle
		}
	}
}

// DataFrame builds the DATA message for the selected mode. It returns the
// effective mode, which falls back to 0 when the selection is invalid.
func DataFrame(info *device.Info) (int, *lpf2.Message) {
	mode := info.SelectedMode
	if c := boundCombi(info, mode); c != nil {
		return mode, combiData(info, c)
	}
	if mode >= 0 && mode < len(info.Modes) {
		return mode, modeData(info.Modes[mode])
	}
	if c := boundCombi(info, 0); c != nil {
		return 0, combiData(info, c)
	}
	return 0, modeData(info.Modes[0])
}

func boundCombi(info *device.Info, index int) *device.Combi {
	if index < 0 || index >= len(info.Combis) {
		return nil
	}
	if c := info.Combis[index]; c != nil && len(c.Items) > 0 {
		return c
	}
	return nil
}

func combiData(info *device.Info, c *device.Combi) *lpf2.Message {
	var size int
	for _, item := range c.Items {
		size += info.Modes[item.Mode].Format.Type.Size()
	}
	msg := lpf2.NewData(c.Index, size)
	off := 0
	for _, item := range c.Items {
		m := info.Modes[item.Mode]
		msg.PutValue(off, m.Format.Type, m.Data[item.Item])
		off += m.Format.Type.Size()
	}
	return msg.Seal()
}

func modeData(m *device.Mode) *lpf2.Message {
	msg := lpf2.NewData(m.Index, m.DataSize())
	msg.PutValues(0, m.Format.Type, m.Data...)
	return msg.Seal()
}

func (l *Link) handleStreaming(ctx context.Context, in received) {
	msg := in.msg
	if msg.IsCmd(lpf2.CmdExtMode) {
		switch offset := int(msg.Uint8(0)); offset {
		case 0, 8:
			l.streaming.ext = &extMode{seq: in.seq, at: in.at, offset: offset}
		default:
			l.streaming.ext = nil
		}
		return
	}

	switch {
	case msg.IsSys(lpf2.SysNack):
		l.streaming.nackAt = in.at
	case msg.IsCmd(lpf2.CmdSelect):
		mode := l.extendMode(in, int(msg.Uint8(0)))
		if !l.Device.SelectMode(mode) {
			glog.V(2).Infof("SELECT %d ignored", mode)
		}
	case msg.IsCmd(lpf2.CmdWrite):
		l.writeCombi(msg)
	case msg.Kind() == lpf2.KindData:
		l.writeData(ctx, l.extendMode(in, msg.Mode()), msg)
	}
	l.streaming.ext = nil
}

// extendMode adds the latched EXT_MODE offset when in immediately follows it.
func (l *Link) extendMode(in received, mode int) int {
	ext := l.streaming.ext
	if ext == nil {
		return mode
	}
	seq := ext.seq + 1
	if seq > SeqMax {
		seq = 0
	}
	if in.seq != seq || in.at.Sub(ext.at) > l.Timing.ExtModeWindow {
		return mode
	}
	return mode + ext.offset
}

// writeCombi handles WRITE carrying a combi definition:
//
//	byte 0: 0x20 | item count
//	byte 1: combi slot
//	byte 2+: mode<<4 | data item, one per item
//
// Invalid definitions are dropped.
func (l *Link) writeCombi(msg *lpf2.Message) {
	size := msg.DataLen()
	if size < 2 {
		return
	}
	head := msg.Uint8(0)
	if head&combiFlag == 0 {
		return
	}
	count := int(head &^ combiFlag)
	index := int(msg.Uint8(1))
	if index >= device.MaxCombis {
		return
	}
	if size == 2 {
		l.Device.RemoveCombi(index)
		return
	}
	if 2+count > size {
		glog.V(2).Infof("combi %d: %d items exceed payload", index, count)
		return
	}
	items := make([]device.CombiItem, 0, count)
	for n := 0; n < count; n++ {
		b := msg.Uint8(2 + n)
		items = append(items, device.CombiItem{Mode: int(b >> 4), Item: int(b & 0xf)})
	}
	if err := l.Device.SetCombi(index, items); err != nil {
		glog.V(2).Infof("combi %d rejected: %v", index, err)
	}
}

func (l *Link) writeData(ctx context.Context, mode int, msg *lpf2.Message) {
	m := l.Device.Mode(mode)
	if m == nil {
		return
	}
	f := m.Format
	if msg.DataLen() < m.DataSize() {
		return
	}
	vals := make([]float64, f.Items)
	for n := range vals {
		vals[n] = msg.Value(n*f.Type.Size(), f.Type)
	}
	if l.Device.WriteModeData(mode, vals) {
		l.notify(ctx, EventModeDataWritten, mode)
	}
}
