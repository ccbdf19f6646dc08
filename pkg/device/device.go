// Package device holds the emulated sensor: its identity, modes and combis.
package device

import (
	"fmt"
	"sync"

	"github.com/robotalks/pupsensor/pkg/lpf2"
)

// Limits of the device model.
const (
	MaxModes   = 16
	MaxCombis  = 8
	MaxNameLen = 11
	MaxUnitLen = 10
	MaxItems   = 8
	MaxWidth   = 40
)

// Defaults of a new device.
const (
	DefaultID      = 0xab
	DefaultVersion = 0x10000000
)

// Format describes the data items of a mode.
type Format struct {
	Items    int
	Type     lpf2.DataType
	Width    int
	Decimals int
}

// Range is a RAW, PCT or SI value range.
type Range struct {
	Min float32
	Max float32
}

// Mapping is the input mapping pair advertised for a mode.
type Mapping struct {
	In  byte
	Out byte
}

// Mode is one virtual sensor channel.
type Mode struct {
	Index   int
	Name    string
	Unit    string
	Raw     *Range
	Pct     *Range
	SI      *Range
	Mapping *Mapping
	Format  Format
	Data    []float64
}

// DataSize returns the encoded size of all data items.
func (m *Mode) DataSize() int {
	return m.Format.Items * m.Format.Type.Size()
}

func (m *Mode) clone() *Mode {
	c := *m
	c.Raw, c.Pct, c.SI = cloneRange(m.Raw), cloneRange(m.Pct), cloneRange(m.SI)
	if m.Mapping != nil {
		mapping := *m.Mapping
		c.Mapping = &mapping
	}
	c.Data = append([]float64(nil), m.Data...)
	return &c
}

func cloneRange(r *Range) *Range {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func newMode(index int) *Mode {
	return &Mode{
		Index:  index,
		Name:   fmt.Sprintf("M%d", index),
		Format: Format{Items: 1, Type: lpf2.Int8, Width: 3},
		Data:   []float64{0},
	}
}

// Info is a snapshot of the device.
type Info struct {
	ID           byte
	FwVersion    uint32
	HwVersion    uint32
	CombiCaps    uint16
	SelectedMode int
	Modes        []*Mode
	Combis       [MaxCombis]*Combi
}

// Device is the emulated sensor. All methods are safe for concurrent use.
type Device struct {
	lock     sync.RWMutex
	id       byte
	fwVer    uint32
	hwVer    uint32
	caps     uint16
	selected int
	modes    []*Mode
	combis   [MaxCombis]*Combi
}

// New creates a device with a single default mode.
func New() *Device {
	return &Device{
		id:    DefaultID,
		fwVer: DefaultVersion,
		hwVer: DefaultVersion,
		modes: []*Mode{newMode(0)},
	}
}

// Snapshot returns a deep copy of the device state.
func (d *Device) Snapshot() *Info {
	d.lock.RLock()
	defer d.lock.RUnlock()
	info := &Info{
		ID:           d.id,
		FwVersion:    d.fwVer,
		HwVersion:    d.hwVer,
		CombiCaps:    d.caps,
		SelectedMode: d.selected,
		Modes:        make([]*Mode, len(d.modes)),
	}
	for n, m := range d.modes {
		info.Modes[n] = m.clone()
	}
	for n, c := range d.combis {
		if c != nil {
			info.Combis[n] = c.clone()
		}
	}
	return info
}

// ID gets the device type id.
func (d *Device) ID() byte {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.id
}

// SetID sets the device type id, clamped to 0..255.
func (d *Device) SetID(id int) {
	if id < 0 {
		id = 0
	} else if id > 0xff {
		id = 0xff
	}
	d.lock.Lock()
	d.id = byte(id)
	d.lock.Unlock()
}

// FwVersion gets the firmware version word.
func (d *Device) FwVersion() uint32 {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.fwVer
}

// SetFwVersion sets the firmware version word, see MakeVersion.
func (d *Device) SetFwVersion(ver uint32) {
	d.lock.Lock()
	d.fwVer = ver
	d.lock.Unlock()
}

// HwVersion gets the hardware version word.
func (d *Device) HwVersion() uint32 {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.hwVer
}

// SetHwVersion sets the hardware version word.
func (d *Device) SetHwVersion(ver uint32) {
	d.lock.Lock()
	d.hwVer = ver
	d.lock.Unlock()
}

// CombiCaps gets the combi capability bitmap.
func (d *Device) CombiCaps() uint16 {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.caps
}

// SetCombiCaps sets the combi capability bitmap, ignored outside 0..0xffff.
func (d *Device) SetCombiCaps(caps int) {
	if caps < 0 || caps > 0xffff {
		return
	}
	d.lock.Lock()
	d.caps = uint16(caps)
	d.lock.Unlock()
}

// SelectedMode gets the mode being streamed.
func (d *Device) SelectedMode() int {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.selected
}

// SetDefaultMode sets the selected mode, ignored outside 0..15.
// A mode beyond the mode count falls back to mode 0 when streaming.
func (d *Device) SetDefaultMode(mode int) {
	if mode < 0 || mode >= MaxModes {
		return
	}
	d.lock.Lock()
	d.selected = mode
	d.lock.Unlock()
}

// SelectMode selects an existing mode.
func (d *Device) SelectMode(mode int) bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	if mode < 0 || mode >= len(d.modes) {
		return false
	}
	d.selected = mode
	return true
}

// ModeCount gets the number of modes.
func (d *Device) ModeCount() int {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return len(d.modes)
}

// SetModeCount truncates or appends default modes, ignored outside 1..16.
func (d *Device) SetModeCount(count int) {
	if count < 1 || count > MaxModes {
		return
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if count <= len(d.modes) {
		d.modes = append([]*Mode(nil), d.modes[:count]...)
		d.pruneCombis()
		return
	}
	for n := len(d.modes); n < count; n++ {
		d.modes = append(d.modes, newMode(n))
	}
}

// Mode returns a copy of a mode, nil if out of range.
func (d *Device) Mode(index int) *Mode {
	d.lock.RLock()
	defer d.lock.RUnlock()
	if index < 0 || index >= len(d.modes) {
		return nil
	}
	return d.modes[index].clone()
}

func (d *Device) updateMode(index int, fn func(*Mode)) bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	if index < 0 || index >= len(d.modes) {
		return false
	}
	fn(d.modes[index])
	return true
}

// SetModeName sets the name, truncated to 11 characters.
func (d *Device) SetModeName(index int, name string) {
	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}
	d.updateMode(index, func(m *Mode) { m.Name = name })
}

// SetModeUnit sets the unit, truncated to 10 characters.
func (d *Device) SetModeUnit(index int, unit string) {
	if len(unit) > MaxUnitLen {
		unit = unit[:MaxUnitLen]
	}
	d.updateMode(index, func(m *Mode) { m.Unit = unit })
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// SetModeFormat sets the data format and resets the data items to zero.
func (d *Device) SetModeFormat(index, items int, typ lpf2.DataType, width, decimals int) {
	if !typ.IsValid() {
		typ = lpf2.Int8
	}
	f := Format{
		Items:    clamp(items, 1, MaxItems),
		Type:     typ,
		Width:    clamp(width, 0, MaxWidth),
		Decimals: clamp(decimals, 0, MaxWidth),
	}
	d.updateMode(index, func(m *Mode) {
		m.Format = f
		m.Data = make([]float64, f.Items)
		d.pruneCombis()
	})
}

// SetRawRange sets the RAW range.
func (d *Device) SetRawRange(index int, min, max float32) {
	d.updateMode(index, func(m *Mode) { m.Raw = &Range{Min: min, Max: max} })
}

// SetPctRange sets the PCT range.
func (d *Device) SetPctRange(index int, min, max float32) {
	d.updateMode(index, func(m *Mode) { m.Pct = &Range{Min: min, Max: max} })
}

// SetSIRange sets the SI range.
func (d *Device) SetSIRange(index int, min, max float32) {
	d.updateMode(index, func(m *Mode) { m.SI = &Range{Min: min, Max: max} })
}

// SetMapping sets the input mapping, ignored when a value is outside 0..255.
func (d *Device) SetMapping(index, in, out int) {
	if in < 0 || in > 0xff || out < 0 || out > 0xff {
		return
	}
	d.updateMode(index, func(m *Mode) { m.Mapping = &Mapping{In: byte(in), Out: byte(out)} })
}

// ModeData gets a data item, 0 if out of range.
func (d *Device) ModeData(mode, item int) float64 {
	d.lock.RLock()
	defer d.lock.RUnlock()
	if mode < 0 || mode >= len(d.modes) {
		return 0
	}
	m := d.modes[mode]
	if item < 0 || item >= m.Format.Items {
		return 0
	}
	return m.Data[item]
}

// SetModeData sets a data item, returns false if out of range.
func (d *Device) SetModeData(mode, item int, v float64) (ok bool) {
	d.updateMode(mode, func(m *Mode) {
		if ok = item >= 0 && item < m.Format.Items; ok {
			m.Data[item] = v
		}
	})
	return
}

// WriteModeData replaces all data items of a mode.
func (d *Device) WriteModeData(mode int, vals []float64) bool {
	return d.updateMode(mode, func(m *Mode) {
		copy(m.Data, vals)
	})
}
