// Package hub adds shell commands driving a simulated hub.
package hub

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/pupsensor/pkg/cli/sh"
	"github.com/robotalks/pupsensor/pkg/device"
	"github.com/robotalks/pupsensor/pkg/hub"
)

const peerKey = "$peer"

// Attach makes peer available to the hub commands of s.
func Attach(s *sh.Shell, peer *hub.Peer) {
	s.Shell.Set(peerKey, peer)
}

func peerFrom(c *ishell.Context) *hub.Peer {
	peer, _ := c.Get(peerKey).(*hub.Peer)
	return peer
}

// MustHavePeer wraps command func requires a simulated hub.
func MustHavePeer(fn func(*ishell.Context, *hub.Peer)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		peer := peerFrom(c)
		if peer == nil {
			c.Err(fmt.Errorf("no simulated hub, start with -sim"))
			return
		}
		fn(c, peer)
	}
}

func parseInts(args []string) ([]int, error) {
	vals := make([]int, len(args))
	for n, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", arg)
		}
		vals[n] = v
	}
	return vals, nil
}

var (
	// HubInfoCmd shows what the hub learned from the advertisement.
	HubInfoCmd = ishell.Cmd{
		Name:    "hub.info",
		Aliases: []string{"hi"},
		Help:    "",
		Func: MustHavePeer(func(c *ishell.Context, peer *hub.Peer) {
			if !peer.Synced() {
				c.Println("not synced")
				return
			}
			info := peer.Info()
			c.Printf("id=0x%02x fw=%s hw=%s caps=0x%04x\n",
				info.ID, device.FormatVersion(info.FwVersion), device.FormatVersion(info.HwVersion), info.CombiCaps)
			for _, m := range info.Modes {
				c.Println(sh.FormatMode(m, false))
			}
		}),
	}

	// HubDataCmd shows the last data received for a mode.
	HubDataCmd = ishell.Cmd{
		Name:    "hub.data",
		Aliases: []string{"hd"},
		Help:    "MODE",
		Func: MustHavePeer(func(c *ishell.Context, peer *hub.Peer) {
			vals, err := parseInts(c.Args)
			if err != nil || len(vals) != 1 {
				c.Err(fmt.Errorf("expect MODE"))
				return
			}
			d, ok := peer.LastData(vals[0])
			if !ok {
				c.Err(fmt.Errorf("no data for mode %d", vals[0]))
				return
			}
			items, err := peer.Values(d)
			if err != nil {
				c.Err(err)
				return
			}
			strs := make([]string, len(items))
			for n, v := range items {
				strs[n] = strconv.FormatFloat(v, 'g', -1, 64)
			}
			c.Printf("mode %d @%s: %s\n", d.Mode, d.Time.Format("15:04:05.000"), strings.Join(strs, " "))
		}),
	}

	// HubSelectCmd sends SELECT.
	HubSelectCmd = ishell.Cmd{
		Name:    "hub.select",
		Aliases: []string{"hs"},
		Help:    "MODE",
		Func: MustHavePeer(func(c *ishell.Context, peer *hub.Peer) {
			vals, err := parseInts(c.Args)
			if err != nil || len(vals) != 1 {
				c.Err(fmt.Errorf("expect MODE"))
				return
			}
			if err := peer.Select(vals[0]); err != nil {
				c.Err(err)
			}
		}),
	}

	// HubWriteCmd sends a DATA write.
	HubWriteCmd = ishell.Cmd{
		Name:    "hub.write",
		Aliases: []string{"hw"},
		Help:    "MODE VALUE...",
		Func: MustHavePeer(func(c *ishell.Context, peer *hub.Peer) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("expect MODE VALUE..."))
				return
			}
			mode, err := strconv.Atoi(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("invalid mode %q", c.Args[0]))
				return
			}
			vals := make([]float64, len(c.Args)-1)
			for n, arg := range c.Args[1:] {
				if vals[n], err = strconv.ParseFloat(arg, 64); err != nil {
					c.Err(fmt.Errorf("invalid value %q", arg))
					return
				}
			}
			if err := peer.WriteData(mode, vals...); err != nil {
				c.Err(err)
			}
		}),
	}

	// HubCombiCmd sends WRITE combi, clearing the slot without items.
	HubCombiCmd = ishell.Cmd{
		Name:    "hub.combi",
		Aliases: []string{"hc"},
		Help:    "SLOT [MODE ITEM]...",
		Func: MustHavePeer(func(c *ishell.Context, peer *hub.Peer) {
			vals, err := parseInts(c.Args)
			if err != nil || len(vals) == 0 || len(vals)%2 != 1 {
				c.Err(fmt.Errorf("expect SLOT [MODE ITEM]..."))
				return
			}
			if len(vals) == 1 {
				err = peer.ClearCombi(vals[0])
			} else {
				items := make([]device.CombiItem, 0, len(vals)/2)
				for n := 1; n < len(vals); n += 2 {
					items = append(items, device.CombiItem{Mode: vals[n], Item: vals[n+1]})
				}
				err = peer.WriteCombi(vals[0], items...)
			}
			if err != nil {
				c.Err(err)
			}
		}),
	}
)

func init() {
	sh.AddCmds(
		&HubInfoCmd,
		&HubDataCmd,
		&HubSelectCmd,
		&HubWriteCmd,
		&HubCombiCmd,
	)
}
