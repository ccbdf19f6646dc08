// Package hub emulates the hub side of an LPF2 link.
//
// A Peer parses the advertisement of a device, answers the handshake and
// keeps the device streaming with periodic NACKs. It is used to exercise
// the emulator without hardware.
package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/pupsensor/pkg/device"
	"github.com/robotalks/pupsensor/pkg/lpf2"
)

// DefaultKeepalive is the NACK interval of a real hub.
const DefaultKeepalive = 100 * time.Millisecond

var (
	// ErrNotSynced indicates the device has not completed the handshake.
	ErrNotSynced = errors.New("device not synced")
	// ErrUnknownMode indicates a mode the device did not advertise.
	ErrUnknownMode = errors.New("unknown mode")
)

// Data is a DATA message received from the device.
type Data struct {
	// Mode is the mode with the EXT_MODE offset applied.
	Mode    int
	Message *lpf2.Message
	Time    time.Time
}

// Peer is the hub end of a link.
type Peer struct {
	// Out sends bytes to the device.
	Out func([]byte) error
	// Keepalive is the NACK interval once synced.
	Keepalive time.Duration
	// Speed is requested before acknowledging the device, 0 keeps the
	// handshake speed.
	Speed int
	// DataCh receives DATA messages if not nil, dropped when full.
	DataCh chan Data

	lock    sync.Mutex
	decoder *lpf2.Decoder
	info    *device.Info
	synced  bool
	ext     int
	last    map[int]Data
}

// NewPeer creates a Peer writing to out.
func NewPeer(out func([]byte) error) *Peer {
	return &Peer{
		Out:       out,
		Keepalive: DefaultKeepalive,
		decoder:   lpf2.NewDecoder(),
		last:      make(map[int]Data),
	}
}

// Synced tells whether the handshake completed.
func (p *Peer) Synced() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.synced
}

// Info returns what the device advertised, nil before the first TYPE.
func (p *Peer) Info() *device.Info {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.info == nil {
		return nil
	}
	info := *p.info
	info.Modes = make([]*device.Mode, len(p.info.Modes))
	for n, m := range p.info.Modes {
		c := *m
		info.Modes[n] = &c
	}
	return &info
}

// LastData returns the last DATA received for mode.
func (p *Peer) LastData(mode int) (Data, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	d, ok := p.last[mode]
	return d, ok
}

// Receive processes bytes from the device.
func (p *Peer) Receive(b []byte) {
	now := time.Now()
	var reply []*lpf2.Message
	p.lock.Lock()
	p.decoder.Feed(b)
	for {
		res := p.decoder.Decode()
		if res == lpf2.NeedData {
			break
		}
		if res == lpf2.DecodeError {
			glog.V(2).Infof("hub: checksum error %s", p.decoder.Message())
			continue
		}
		reply = append(reply, p.process(p.decoder.Message(), now)...)
	}
	p.lock.Unlock()
	for _, msg := range reply {
		if err := p.Send(msg); err != nil {
			glog.Warningf("hub: reply error: %v", err)
		}
	}
}

func (p *Peer) process(msg *lpf2.Message, now time.Time) []*lpf2.Message {
	switch msg.Kind() {
	case lpf2.KindSys:
		if msg.IsSys(lpf2.SysAck) && p.info != nil && !p.synced {
			p.synced = true
			glog.V(1).Infof("hub: device 0x%02x synced, %d modes", p.info.ID, len(p.info.Modes))
			var reply []*lpf2.Message
			if p.Speed > 0 {
				speed := lpf2.NewCmd(lpf2.CmdSpeed, 4)
				speed.PutUint32(0, uint32(p.Speed))
				reply = append(reply, speed.Seal())
			}
			return append(reply, lpf2.NewSys(lpf2.SysAck))
		}
	case lpf2.KindCmd:
		p.processCmd(msg)
	case lpf2.KindInfo:
		if m := p.mode(msg.Mode()); m != nil {
			processInfo(m, msg, p.info)
		}
	case lpf2.KindData:
		d := Data{Mode: msg.Mode() + p.ext, Message: msg, Time: now}
		p.ext = 0
		p.last[d.Mode] = d
		if p.DataCh != nil {
			select {
			case p.DataCh <- d:
			default:
			}
		}
	}
	return nil
}

func (p *Peer) processCmd(msg *lpf2.Message) {
	switch lpf2.CmdType(msg.SubType()) {
	case lpf2.CmdDeviceType:
		p.info = &device.Info{ID: msg.Uint8(0)}
		p.synced = false
		p.ext = 0
		p.last = make(map[int]Data)
	case lpf2.CmdModes:
		if p.info == nil {
			return
		}
		count := int(msg.Uint8(0)) + 1
		if msg.DataLen() >= 4 && msg.Uint8(2) > msg.Uint8(0) {
			count = int(msg.Uint8(2)) + 1
		}
		p.info.Modes = make([]*device.Mode, count)
		for n := range p.info.Modes {
			p.info.Modes[n] = &device.Mode{Index: n}
		}
	case lpf2.CmdVersion:
		if p.info != nil {
			p.info.FwVersion, p.info.HwVersion = msg.Uint32(0), msg.Uint32(4)
		}
	case lpf2.CmdExtMode:
		p.ext = int(msg.Uint8(0))
	}
}

func (p *Peer) mode(index int) *device.Mode {
	if p.info == nil || index < 0 || index >= len(p.info.Modes) {
		return nil
	}
	return p.info.Modes[index]
}

func processInfo(m *device.Mode, msg *lpf2.Message, info *device.Info) {
	rng := func() *device.Range {
		return &device.Range{Min: msg.Float32(0), Max: msg.Float32(4)}
	}
	switch lpf2.InfoType(msg.SubType()) {
	case lpf2.InfoName:
		m.Name = msg.StringAt(0)
	case lpf2.InfoRaw:
		m.Raw = rng()
	case lpf2.InfoPct:
		m.Pct = rng()
	case lpf2.InfoSI:
		m.SI = rng()
	case lpf2.InfoUnit:
		m.Unit = msg.StringAt(0)
	case lpf2.InfoMapping:
		m.Mapping = &device.Mapping{In: msg.Uint8(0), Out: msg.Uint8(1)}
	case lpf2.InfoCombi:
		info.CombiCaps = msg.Uint16(0)
	case lpf2.InfoFormat:
		m.Format = device.Format{
			Items:    int(msg.Uint8(0)),
			Type:     lpf2.DataType(msg.Uint8(1)),
			Width:    int(msg.Uint8(2)),
			Decimals: int(msg.Uint8(3)),
		}
	}
}

// Send writes a raw message to the device.
func (p *Peer) Send(msg *lpf2.Message) error {
	if glog.V(3) {
		glog.Infof("hub: TX %s", msg)
	}
	return p.Out(msg.Bytes())
}

// sendExt sends EXT_MODE then msg addressing mode.
func (p *Peer) sendExt(mode int, msg *lpf2.Message) error {
	ext := lpf2.NewCmd(lpf2.CmdExtMode, 1)
	if mode >= 8 {
		ext.PutUint8(0, 8)
	}
	if err := p.Send(ext.Seal()); err != nil {
		return err
	}
	return p.Send(msg.Seal())
}

func (p *Peer) formatOf(mode int) (device.Format, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.synced {
		return device.Format{}, ErrNotSynced
	}
	m := p.mode(mode)
	if m == nil {
		return device.Format{}, ErrUnknownMode
	}
	return m.Format, nil
}

// Select asks the device to stream mode.
func (p *Peer) Select(mode int) error {
	if _, err := p.formatOf(mode); err != nil {
		return err
	}
	msg := lpf2.NewCmd(lpf2.CmdSelect, 1)
	msg.PutUint8(0, uint8(mode&7))
	return p.sendExt(mode, msg)
}

// WriteData writes data items to mode.
func (p *Peer) WriteData(mode int, vals ...float64) error {
	f, err := p.formatOf(mode)
	if err != nil {
		return err
	}
	msg := lpf2.NewData(mode, f.Items*f.Type.Size())
	if err := msg.PutValues(0, f.Type, vals...); err != nil {
		return err
	}
	return p.sendExt(mode, msg)
}

// WriteCombi binds items to combi slot.
func (p *Peer) WriteCombi(slot int, items ...device.CombiItem) error {
	if !p.Synced() {
		return ErrNotSynced
	}
	msg := lpf2.NewCmd(lpf2.CmdWrite, 2+len(items))
	if err := msg.PutUint8s(0, uint8(0x20|len(items)), uint8(slot)); err != nil {
		return err
	}
	for n, item := range items {
		if err := msg.PutUint8(2+n, uint8(item.Mode<<4|item.Item&0xf)); err != nil {
			return err
		}
	}
	return p.Send(msg.Seal())
}

// ClearCombi clears combi slot.
func (p *Peer) ClearCombi(slot int) error {
	if !p.Synced() {
		return ErrNotSynced
	}
	msg := lpf2.NewCmd(lpf2.CmdWrite, 2)
	msg.PutUint8s(0, 0x20, uint8(slot))
	return p.Send(msg.Seal())
}

// Values decodes the data items of d using the advertised format.
func (p *Peer) Values(d Data) ([]float64, error) {
	p.lock.Lock()
	m := p.mode(d.Mode)
	p.lock.Unlock()
	if m == nil {
		return nil, ErrUnknownMode
	}
	vals := make([]float64, m.Format.Items)
	for n := range vals {
		vals[n] = d.Message.Value(n*m.Format.Type.Size(), m.Format.Type)
	}
	return vals, nil
}

// Run sends NACKs while synced until ctx is done.
func (p *Peer) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if p.Synced() {
				if err := p.Send(lpf2.NewSys(lpf2.SysNack)); err != nil {
					glog.Warningf("hub: keepalive error: %v", err)
				}
			}
		}
	}
}
