package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/encodeous/bgpsim/state"
)

var errQuit = errors.New("quit")

const consoleHelp = `commands:
  prepare [origin] [observer]  compute a run (defaults from the config)
  next                         play the next event
  play [interval]              play the remaining events, default 1s apart
  reset                        discard the run
  tables [node]                show the current route tables
  status                       show the player state
  nodes                        list nodes and links
  toggle <a> <b>               enable/disable a link in the topology
  mask <a> <b>                 add/remove a link from the per-run overlay
  link <a> <b>                 create a link
  unlink <a> <b>               remove a link
  add [x y]                    add a node
  remove <node>                remove a node and its links
  rename <node> <label>        relabel a node
  lookup <node> <addr>         show the route a node uses for an address
  flights                      list packets in flight
  quit                         exit`

// Console reads commands line by line and runs them on the main loop.
type Console struct {
	In  io.Reader
	Out io.Writer

	overlay      state.LinkSet
	playing      bool
	quitWhenDone bool
}

func (c *Console) Init(s *state.State) error {
	if c.Out == nil {
		c.Out = io.Discard
	}
	c.overlay = make(state.LinkSet)
	if c.In != nil {
		go c.readLoop(s.Env)
	}
	return nil
}

func (c *Console) Cleanup(s *state.State) error {
	return nil
}

func (c *Console) readLoop(e *state.Env) {
	sc := bufio.NewScanner(c.In)
	for sc.Scan() {
		if e.Context.Err() != nil {
			return
		}
		line := sc.Text()
		e.Dispatch(func(s *state.State) error {
			c.Run(s, line)
			return nil
		})
	}
	e.Dispatch(func(s *state.State) error {
		if c.playing {
			c.quitWhenDone = true
			return nil
		}
		s.Cancel(io.EOF)
		return nil
	})
}

// Run executes one line and prints the outcome. It must be called on the
// main loop.
func (c *Console) Run(s *state.State, line string) {
	err := c.Exec(s, line)
	if errors.Is(err, errQuit) {
		s.Cancel(errQuit)
		return
	}
	if err != nil {
		c.printf("error: %v\n", err)
	}
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.Out, format, args...)
}

// Exec executes one command line.
func (c *Console) Exec(s *state.State, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 || strings.HasPrefix(args[0], "#") {
		return nil
	}
	p := Get[*Player](s)
	topo := s.Topology
	cmd, args := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "help", "?":
		c.printf("%s\n", consoleHelp)
	case "quit", "exit":
		return errQuit
	case "prepare":
		origin, observer := s.Origin, s.Observer
		var err error
		if len(args) > 0 {
			if origin, err = parseNodeId(args[0]); err != nil {
				return err
			}
		}
		if len(args) > 1 {
			if observer, err = parseNodeId(args[1]); err != nil {
				return err
			}
		}
		if p.State() != Idle {
			c.printf("a run is already prepared (%s), reset first\n", p.State())
			return nil
		}
		if err = p.Prepare(c.overlay, origin, observer); err != nil {
			return err
		}
		c.printf("prepared %d events: %s originates %s, observing %s\n",
			p.Len(), topo.Label(origin), p.Run().Prefix, topo.Label(observer))
	case "next", "n":
		c.next(s, p)
	case "play":
		interval := time.Second
		if len(args) > 0 {
			d, err := time.ParseDuration(args[0])
			if err != nil {
				return err
			}
			interval = d
		}
		return c.play(s, p, interval)
	case "reset":
		p.Reset()
		c.printf("reset\n")
	case "tables", "t":
		tables := p.Current()
		if len(args) > 0 {
			id, err := parseNodeId(args[0])
			if err != nil {
				return err
			}
			if _, ok := topo.Node(id); !ok {
				return fmt.Errorf("node %d: %w", id, state.ErrNodeNotFound)
			}
			RenderTable(c.Out, topo, id, tables.Get(id))
			return nil
		}
		RenderTables(c.Out, topo, tables)
	case "status":
		c.printf("state: %s, step %d/%d, topology version %d\n", p.State(), p.Cursor(), p.Len(), topo.Version())
		if len(c.overlay) > 0 {
			keys := make([]string, 0, len(c.overlay))
			for _, k := range c.overlay.Keys() {
				keys = append(keys, k.String())
			}
			c.printf("masked links: %s\n", strings.Join(keys, " "))
		}
		if e, ok := p.Last(); ok {
			c.printf("last: %s\n", e.Message)
		}
	case "nodes":
		for _, n := range topo.Nodes() {
			nbs := make([]string, 0, len(n.Neighbours))
			for _, nb := range n.Neighbours {
				mark := ""
				if !topo.IsLinkEnabled(n.Id, nb) {
					mark = "(off)"
				} else if c.overlay.Has(n.Id, nb) {
					mark = "(masked)"
				}
				nbs = append(nbs, nb.String()+mark)
			}
			c.printf("%s %s %s neighbours: %s\n", n.Id, n.Label, n.Prefix, strings.Join(nbs, ", "))
		}
	case "toggle", "link", "unlink":
		if len(args) != 2 {
			return fmt.Errorf("usage: %s <a> <b>", cmd)
		}
		a, b, err := parseNodePair(args[0], args[1])
		if err != nil {
			return err
		}
		return c.mutate(p, func() error {
			switch cmd {
			case "toggle":
				enabled, err := topo.ToggleLink(a, b)
				if err != nil {
					return err
				}
				c.printf("link %s %s\n", state.MakeLinkKey(a, b), onOff(enabled))
			case "link":
				if err := topo.AddLink(a, b); err != nil {
					return err
				}
				c.printf("linked %s\n", state.MakeLinkKey(a, b))
			default:
				if err := topo.RemoveLink(a, b); err != nil {
					return err
				}
				delete(c.overlay, state.MakeLinkKey(a, b))
				c.printf("unlinked %s\n", state.MakeLinkKey(a, b))
			}
			return nil
		})
	case "mask":
		if len(args) != 2 {
			return fmt.Errorf("usage: mask <a> <b>")
		}
		a, b, err := parseNodePair(args[0], args[1])
		if err != nil {
			return err
		}
		if !topo.HasLink(a, b) {
			return fmt.Errorf("mask %d-%d: %w", a, b, state.ErrLinkNotFound)
		}
		key := state.MakeLinkKey(a, b)
		if c.overlay.Has(a, b) {
			delete(c.overlay, key)
			c.printf("link %s unmasked, takes effect on the next prepare\n", key)
		} else {
			c.overlay.Add(a, b)
			c.printf("link %s masked, takes effect on the next prepare\n", key)
		}
	case "add":
		pos := state.CanvasCenter
		if len(args) == 2 {
			x, errX := strconv.ParseFloat(args[0], 64)
			y, errY := strconv.ParseFloat(args[1], 64)
			if errX != nil || errY != nil {
				return fmt.Errorf("usage: add [x y]")
			}
			pos = state.Position{X: x, Y: y}
		}
		return c.mutate(p, func() error {
			n := topo.AddNode(pos)
			c.printf("added %s (%s) with prefix %s\n", n.Label, n.Id, n.Prefix)
			return nil
		})
	case "remove":
		if len(args) != 1 {
			return fmt.Errorf("usage: remove <node>")
		}
		id, err := parseNodeId(args[0])
		if err != nil {
			return err
		}
		return c.mutate(p, func() error {
			if err := topo.RemoveNode(id); err != nil {
				return err
			}
			for k := range c.overlay {
				if k.A == id || k.B == id {
					delete(c.overlay, k)
				}
			}
			c.printf("removed node %s\n", id)
			return nil
		})
	case "rename":
		if len(args) < 2 {
			return fmt.Errorf("usage: rename <node> <label>")
		}
		id, err := parseNodeId(args[0])
		if err != nil {
			return err
		}
		label := strings.Join(args[1:], " ")
		return c.mutate(p, func() error {
			if err := topo.RenameNode(id, label); err != nil {
				return err
			}
			c.printf("node %s is now %s\n", id, topo.Label(id))
			return nil
		})
	case "lookup":
		if len(args) != 2 {
			return fmt.Errorf("usage: lookup <node> <addr>")
		}
		id, err := parseNodeId(args[0])
		if err != nil {
			return err
		}
		addr, err := netip.ParseAddr(args[1])
		if err != nil {
			return err
		}
		r, ok := p.Current().Get(id).Lookup(addr)
		if !ok {
			c.printf("%s has no selected route to %s\n", topo.Label(id), addr)
			return nil
		}
		c.printf("%s reaches %s via %s (%s, local pref %d)\n", topo.Label(id), addr, FormatPath(topo, r.Path), r.Prefix, r.LocalPref)
	case "flights":
		fl := Get[*Flights](s).InFlight()
		if len(fl) == 0 {
			c.printf("no packets in flight\n")
		}
		for _, f := range fl {
			c.printf("step %d: %s → %s carrying %s\n", f.Step, topo.Label(f.From), topo.Label(f.To), FormatPath(topo, f.Path))
		}
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

// mutate runs a topology mutation and reports when it discarded the run.
func (c *Console) mutate(p *Player, fn func() error) error {
	before := p.State()
	if err := fn(); err != nil {
		return err
	}
	if before != Idle && p.State() == Idle {
		c.printf("topology changed, the prepared run was discarded\n")
	}
	return nil
}

func (c *Console) next(s *state.State, p *Player) bool {
	if p.State() == Idle {
		c.printf("no run prepared\n")
		return false
	}
	e, ok := p.Next()
	if !ok {
		c.printf("simulation complete\n")
		return false
	}
	c.printf("%s\n", DescribeEvent(s.Topology, p.Cursor(), p.Len(), e))
	return true
}

func (c *Console) play(s *state.State, p *Player, interval time.Duration) error {
	if c.playing {
		return fmt.Errorf("already playing")
	}
	if p.State() == Idle {
		if err := p.Prepare(c.overlay, s.Origin, s.Observer); err != nil {
			return err
		}
	}
	c.playing = true
	s.RepeatTask(func(s *state.State) bool {
		if p.State() != Idle && p.State() != Done && c.next(s, p) && p.State() != Done {
			return true
		}
		c.playing = false
		if c.quitWhenDone {
			s.Cancel(io.EOF)
		}
		return false
	}, interval)
	return nil
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
