package link

import (
	"context"

	"github.com/golang/glog"
)

// runIdle waits for the hub to release rx, then pulses tx low to signal
// the presence of a device.
func (l *Link) runIdle(ctx context.Context) State {
	l.Rx.SetPull(PullNone)
	for !l.Rx.Get() {
		if !l.pause(ctx, l.Timing.Poll) {
			return StateIdle
		}
	}
	l.Rx.SetPull(PullUp)

	for {
		err := l.Port.SetEnabled(false)
		if err == nil {
			break
		}
		glog.Warningf("disable port error: %v", err)
		if !l.pause(ctx, l.Timing.Poll) {
			return StateIdle
		}
	}
	l.Tx.Set(false)
	if !l.pause(ctx, l.Timing.ResetPulse) {
		return StateIdle
	}
	l.Tx.Set(true)
	if err := l.Port.SetEnabled(true); err != nil {
		glog.Warningf("enable port error: %v", err)
	}
	return StateHandshake
}
