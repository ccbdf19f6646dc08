package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/pupsensor/pkg/cli/sh"
	"github.com/robotalks/pupsensor/pkg/device"
	"github.com/robotalks/pupsensor/pkg/hub"
	"github.com/robotalks/pupsensor/pkg/link"
	"github.com/robotalks/pupsensor/pkg/lpf2"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		require.True(t, time.Now().Before(deadline), "timeout waiting for "+what)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNoPeer(t *testing.T) {
	s := sh.New(device.New(), nil)
	require.Error(t, s.Shell.Process("hub.info"))
	require.Error(t, s.Shell.Process("hub.select", "0"))
}

func TestSimulatedHub(t *testing.T) {
	dev := device.New()
	dev.SetModeCount(2)
	dev.SetModeFormat(1, 2, lpf2.Int16, 4, 0)

	lb := hub.NewLoopback(nil)
	l := link.New(lb, dev)
	lb.DeviceRx = l.Receive

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)
	go lb.Peer.Run(ctx)

	s := sh.New(dev, l)
	Attach(s, lb.Peer)

	waitFor(t, "streaming", func() bool { return l.State() == link.StateStreaming })
	require.NoError(t, s.Shell.Process("hub.info"))

	require.NoError(t, s.Shell.Process("hub.write", "1", "5", "-7"))
	waitFor(t, "data write", func() bool { return dev.ModeData(1, 1) == -7 })
	require.Equal(t, float64(5), dev.ModeData(1, 0))

	require.NoError(t, s.Shell.Process("hub.select", "1"))
	waitFor(t, "select", func() bool { return dev.SelectedMode() == 1 })
	waitFor(t, "mode 1 data", func() bool {
		_, ok := lb.Peer.LastData(1)
		return ok
	})
	require.NoError(t, s.Shell.Process("hub.data", "1"))

	require.NoError(t, s.Shell.Process("hub.combi", "0", "1", "0", "0", "0"))
	waitFor(t, "combi", func() bool { return dev.Combi(0) != nil })
	require.Equal(t, []device.CombiItem{{Mode: 1, Item: 0}, {Mode: 0, Item: 0}}, dev.Combi(0).Items)
	require.NoError(t, s.Shell.Process("hub.combi", "0"))
	waitFor(t, "combi clear", func() bool { return dev.Combi(0) == nil })

	require.Error(t, s.Shell.Process("hub.combi", "0", "1"))
	require.Error(t, s.Shell.Process("hub.write", "5", "1"))
	require.Error(t, s.Shell.Process("hub.data"))
}
