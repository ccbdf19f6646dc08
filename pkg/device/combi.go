package device

import (
	"errors"

	"github.com/robotalks/pupsensor/pkg/lpf2"
)

// CombiItem references one data item of a mode.
type CombiItem struct {
	Mode int
	Item int
}

// Combi is an ordered list of data items streamed as one DATA message.
type Combi struct {
	Index int
	Items []CombiItem
}

func (c *Combi) clone() *Combi {
	return &Combi{Index: c.Index, Items: append([]CombiItem(nil), c.Items...)}
}

var (
	// ErrCombiIndex indicates a combi slot outside 0..7.
	ErrCombiIndex = errors.New("combi index out of range")
	// ErrCombiItem indicates a reference to a missing mode or data item.
	ErrCombiItem = errors.New("combi item out of range")
	// ErrCombiSize indicates the items do not fit in one message.
	ErrCombiSize = errors.New("combi data too large")
)

func (d *Device) validateCombi(items []CombiItem) error {
	var size int
	for _, item := range items {
		if item.Mode < 0 || item.Mode >= len(d.modes) {
			return ErrCombiItem
		}
		m := d.modes[item.Mode]
		if item.Item < 0 || item.Item >= m.Format.Items {
			return ErrCombiItem
		}
		size += m.Format.Type.Size()
	}
	if size > lpf2.MaxDataLen {
		return ErrCombiSize
	}
	return nil
}

// SetCombi binds items to a combi slot. The slot is unchanged on error.
func (d *Device) SetCombi(index int, items []CombiItem) error {
	if index < 0 || index >= MaxCombis {
		return ErrCombiIndex
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.validateCombi(items); err != nil {
		return err
	}
	d.combis[index] = &Combi{Index: index, Items: append([]CombiItem(nil), items...)}
	return nil
}

// RemoveCombi clears a combi slot, returns false if it was empty.
func (d *Device) RemoveCombi(index int) bool {
	if index < 0 || index >= MaxCombis {
		return false
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	removed := d.combis[index] != nil
	d.combis[index] = nil
	return removed
}

// Combi returns a copy of a combi slot, nil if empty or out of range.
func (d *Device) Combi(index int) *Combi {
	if index < 0 || index >= MaxCombis {
		return nil
	}
	d.lock.RLock()
	defer d.lock.RUnlock()
	if c := d.combis[index]; c != nil {
		return c.clone()
	}
	return nil
}

// pruneCombis drops combis which no longer match the mode table.
func (d *Device) pruneCombis() {
	for n, c := range d.combis {
		if c != nil && d.validateCombi(c.Items) != nil {
			d.combis[n] = nil
		}
	}
}
