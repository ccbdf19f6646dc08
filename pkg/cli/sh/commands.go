package sh

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/pupsensor/pkg/device"
	"github.com/robotalks/pupsensor/pkg/msgs"
)

func intArgs(c *ishell.Context, min int, names ...string) ([]int, bool) {
	if len(c.Args) < min {
		c.Err(fmt.Errorf("expect %s", strings.Join(names, " ")))
		return nil, false
	}
	vals := make([]int, len(c.Args))
	for n, arg := range c.Args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			c.Err(fmt.Errorf("invalid number %q", arg))
			return nil, false
		}
		vals[n] = v
	}
	return vals, true
}

func parseRef(s string) (device.CombiItem, error) {
	var ref device.CombiItem
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return ref, fmt.Errorf("invalid reference %q, expect MODE:ITEM", s)
	}
	var err error
	if ref.Mode, err = strconv.Atoi(parts[0]); err != nil {
		return ref, fmt.Errorf("invalid mode in %q", s)
	}
	if ref.Item, err = strconv.Atoi(parts[1]); err != nil {
		return ref, fmt.Errorf("invalid item in %q", s)
	}
	return ref, nil
}

func showItem(c *ishell.Context, mode, item int) {
	s := ShellFrom(c)
	v := s.Device.ModeData(mode, item)
	s.Print(c, map[string]interface{}{"mode": mode, "item": item, "value": v}, func() string {
		return strconv.FormatFloat(v, 'g', -1, 64)
	})
}

func adjust(c *ishell.Context, sign float64) {
	vals, ok := intArgs(c, 2, "MODE", "ITEM", "[STEP]")
	if !ok {
		return
	}
	step := 1
	if len(vals) > 2 {
		step = vals[2]
	}
	dev := ShellFrom(c).Device
	v := dev.ModeData(vals[0], vals[1]) + sign*float64(step)
	if !dev.SetModeData(vals[0], vals[1], v) {
		c.Err(fmt.Errorf("mode %d item %d out of range", vals[0], vals[1]))
		return
	}
	showItem(c, vals[0], vals[1])
}

var (
	// StatusCmd shows the link state and device identity.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			st := msgs.NewStatus(s.Device.Snapshot(), s.State())
			s.Print(c, st, func() string { return FormatStatus(st) })
		},
	}

	// ModesCmd lists the modes with current data.
	ModesCmd = ishell.Cmd{
		Name:    "modes",
		Aliases: []string{"ls"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			info := s.Device.Snapshot()
			data := make([]*msgs.ModeData, len(info.Modes))
			for n, m := range info.Modes {
				data[n] = msgs.NewModeData(m)
			}
			s.Print(c, data, func() string {
				lines := make([]string, len(info.Modes))
				for n, m := range info.Modes {
					lines[n] = FormatMode(m, n == info.SelectedMode)
				}
				return strings.Join(lines, "\n")
			})
		},
	}

	// GetCmd prints a data item.
	GetCmd = ishell.Cmd{
		Name: "get",
		Help: "MODE ITEM",
		Func: func(c *ishell.Context) {
			vals, ok := intArgs(c, 2, "MODE", "ITEM")
			if !ok {
				return
			}
			if m := ShellFrom(c).Device.Mode(vals[0]); m == nil || vals[1] < 0 || vals[1] >= m.Format.Items {
				c.Err(fmt.Errorf("mode %d item %d out of range", vals[0], vals[1]))
				return
			}
			showItem(c, vals[0], vals[1])
		},
	}

	// SetCmd sets a data item.
	SetCmd = ishell.Cmd{
		Name: "set",
		Help: "MODE ITEM VALUE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Err(fmt.Errorf("expect MODE ITEM VALUE"))
				return
			}
			mode, err1 := strconv.Atoi(c.Args[0])
			item, err2 := strconv.Atoi(c.Args[1])
			v, err3 := strconv.ParseFloat(c.Args[2], 64)
			if err1 != nil || err2 != nil || err3 != nil {
				c.Err(fmt.Errorf("invalid number"))
				return
			}
			if !(&msgs.SetModeData{Mode: int32(mode), Item: int32(item), Value: v}).Apply(ShellFrom(c).Device) {
				c.Err(fmt.Errorf("mode %d item %d out of range", mode, item))
				return
			}
			showItem(c, mode, item)
		},
	}

	// IncCmd increments a data item.
	IncCmd = ishell.Cmd{
		Name: "inc",
		Help: "MODE ITEM [STEP]",
		Func: func(c *ishell.Context) { adjust(c, 1) },
	}

	// DecCmd decrements a data item.
	DecCmd = ishell.Cmd{
		Name: "dec",
		Help: "MODE ITEM [STEP]",
		Func: func(c *ishell.Context) { adjust(c, -1) },
	}

	// SelectCmd selects the streamed mode.
	SelectCmd = ishell.Cmd{
		Name:    "select",
		Aliases: []string{"sel"},
		Help:    "MODE",
		Func: func(c *ishell.Context) {
			vals, ok := intArgs(c, 1, "MODE")
			if !ok {
				return
			}
			if !(&msgs.SelectMode{Mode: int32(vals[0])}).Apply(ShellFrom(c).Device) {
				c.Err(fmt.Errorf("mode %d out of range", vals[0]))
			}
		},
	}

	// CombiCmd lists combi slots or binds one.
	CombiCmd = ishell.Cmd{
		Name: "combi",
		Help: "[SLOT MODE:ITEM...]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) == 0 {
				var lines []string
				for _, combi := range s.Device.Snapshot().Combis {
					if combi != nil {
						lines = append(lines, FormatCombi(combi))
					}
				}
				c.Println(strings.Join(lines, "\n"))
				return
			}
			slot, err := strconv.Atoi(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("invalid slot %q", c.Args[0]))
				return
			}
			items := make([]device.CombiItem, 0, len(c.Args)-1)
			for _, arg := range c.Args[1:] {
				ref, err := parseRef(arg)
				if err != nil {
					c.Err(err)
					return
				}
				items = append(items, ref)
			}
			if err := s.Device.SetCombi(slot, items); err != nil {
				c.Err(err)
			}
		},
	}

	// CombiRemoveCmd clears a combi slot.
	CombiRemoveCmd = ishell.Cmd{
		Name:    "combi.rm",
		Aliases: []string{"crm"},
		Help:    "SLOT",
		Func: func(c *ishell.Context) {
			vals, ok := intArgs(c, 1, "SLOT")
			if !ok {
				return
			}
			if !ShellFrom(c).Device.RemoveCombi(vals[0]) {
				c.Err(fmt.Errorf("combi slot %d out of range", vals[0]))
			}
		},
	}

	// BreakCmd simulates a line break, dropping the session.
	BreakCmd = ishell.Cmd{
		Name: "break",
		Help: "",
		Func: MustHaveLink(func(c *ishell.Context) {
			ShellFrom(c).Link.Break()
		}),
	}
)
