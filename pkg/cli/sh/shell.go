// Package sh provides the interactive shell driving the emulated sensor.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/pupsensor/pkg/device"
	"github.com/robotalks/pupsensor/pkg/link"
	"github.com/robotalks/pupsensor/pkg/msgs"
)

// Link is the part of the connection state machine used by the shell.
type Link interface {
	State() link.State
	Break()
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Device *device.Device
	Link   Link
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&StatusCmd,
		&ModesCmd,
		&GetCmd,
		&SetCmd,
		&IncCmd,
		&DecCmd,
		&SelectCmd,
		&CombiCmd,
		&CombiRemoveCmd,
		&BreakCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(dev *device.Device, l Link) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Device: dev,
		Link:   l,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt("pup > ")
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustHaveLink wraps command func requires a link.
func MustHaveLink(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Link == nil {
			c.Err(fmt.Errorf("no link"))
			return
		}
		fn(c)
	}
}

// State returns the link state, Idle without a link.
func (s *Shell) State() link.State {
	if s.Link == nil {
		return link.StateIdle
	}
	return s.Link.State()
}

// Print writes msg as JSON or with the text formatter.
func (s *Shell) Print(c *ishell.Context, msg interface{}, text func() string) error {
	if s.OutputJSON {
		out, err := json.Marshal(msg)
		if err != nil {
			c.Err(err)
			return err
		}
		c.Println(string(out))
		return nil
	}
	c.Println(text())
	return nil
}

// FormatStatus renders a Status for display.
func FormatStatus(st *msgs.Status) string {
	return fmt.Sprintf("%s id=0x%02x fw=%s hw=%s modes=%d selected=%d",
		st.State, st.DeviceID, st.FwVersion, st.HwVersion, st.ModeCount, st.SelectedMode)
}

// FormatMode renders a mode for display, marking the selected one.
func FormatMode(m *device.Mode, selected bool) string {
	var w strings.Builder
	mark := " "
	if selected {
		mark = "*"
	}
	fmt.Fprintf(&w, "%s%2d %-11s", mark, m.Index, m.Name)
	if m.Unit != "" {
		fmt.Fprintf(&w, " [%s]", m.Unit)
	}
	fmt.Fprintf(&w, " %dx%s:", m.Format.Items, m.Format.Type)
	for _, v := range m.Data {
		fmt.Fprintf(&w, " %.*f", m.Format.Decimals, v)
	}
	return w.String()
}

// FormatCombi renders a combi slot for display.
func FormatCombi(c *device.Combi) string {
	refs := make([]string, len(c.Items))
	for n, item := range c.Items {
		refs[n] = fmt.Sprintf("%d:%d", item.Mode, item.Item)
	}
	return fmt.Sprintf("%d: %s", c.Index, strings.Join(refs, " "))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}
