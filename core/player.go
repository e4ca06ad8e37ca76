package core

import (
	"log/slog"

	"github.com/encodeous/bgpsim/perf"
	"github.com/encodeous/bgpsim/state"
)

type PlayerState int

const (
	// Idle means no run is prepared.
	Idle PlayerState = iota
	// Ready means a run is prepared and nothing was played yet.
	Ready
	// Stepping means some, but not all, events were played.
	Stepping
	// Done means every event was played.
	Done
)

func (s PlayerState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Stepping:
		return "stepping"
	case Done:
		return "done"
	}
	return "unknown"
}

// EventSink is notified of every event a Player plays, and of resets.
type EventSink interface {
	Played(step int, e state.Event)
	Cleared()
}

// Player replays a Run one event at a time. Any change to the topology it
// was created for discards the prepared run.
type Player struct {
	topo    *state.Topology
	opts    []RunOption
	log     *slog.Logger
	sinks   []EventSink
	unsub   func()
	run     *Run
	cursor  int
	current state.Tables
}

func NewPlayer(topo *state.Topology, log *slog.Logger, opts ...RunOption) *Player {
	p := &Player{}
	p.attach(topo, log, opts...)
	return p
}

func (p *Player) attach(topo *state.Topology, log *slog.Logger, opts ...RunOption) {
	if log == nil {
		log = slog.Default()
	}
	p.topo = topo
	p.log = log
	p.opts = append([]RunOption{WithLogger(log)}, opts...)
	p.unsub = topo.Subscribe(p.invalidate)
}

func (p *Player) Init(s *state.State) error {
	p.attach(s.Topology, s.Log, WithSeed(s.Seed))
	p.AddSink(Get[*Trace](s))
	p.AddSink(Get[*Flights](s))
	return nil
}

func (p *Player) Cleanup(s *state.State) error {
	p.Close()
	return nil
}

// Close detaches the player from its topology.
func (p *Player) Close() {
	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
}

func (p *Player) AddSink(sink EventSink) {
	p.sinks = append(p.sinks, sink)
}

func (p *Player) invalidate(version uint64) {
	if p.run == nil {
		return
	}
	p.log.Info("topology changed, discarding prepared run", "version", version, "state", p.State())
	p.Reset()
}

func (p *Player) State() PlayerState {
	switch {
	case p.run == nil:
		return Idle
	case p.cursor == 0:
		return Ready
	case p.cursor >= len(p.run.Events):
		return Done
	default:
		return Stepping
	}
}

// Prepare computes a run. It does nothing unless the player is Idle.
func (p *Player) Prepare(disabled state.LinkSet, origin, observer state.NodeId) error {
	if p.run != nil {
		return nil
	}
	run, err := Propagate(p.topo, disabled, origin, observer, p.opts...)
	if err != nil {
		return err
	}
	p.run = run
	p.cursor = 0
	p.current = state.NewTables(run.Tables.Ids()...)
	p.log.Debug("run prepared", "origin", origin, "observer", observer, "events", len(run.Events))
	return nil
}

// Next plays the next event and makes its snapshot current. It returns false
// when there is nothing to play.
func (p *Player) Next() (state.Event, bool) {
	if p.run == nil || p.cursor >= len(p.run.Events) {
		return state.Event{}, false
	}
	e := p.run.Events[p.cursor]
	p.cursor++
	p.current = e.Tables
	perf.StepsPerSecond.Add(1)
	for _, sink := range p.sinks {
		sink.Played(p.cursor, e)
	}
	return e, true
}

// Reset discards the run and everything derived from it.
func (p *Player) Reset() {
	p.run = nil
	p.cursor = 0
	p.current = nil
	for _, sink := range p.sinks {
		sink.Cleared()
	}
}

// Current returns a copy of the tables as of the last played event. Before
// the first event every node has an empty table.
func (p *Player) Current() state.Tables {
	if p.current == nil {
		ids := make([]state.NodeId, 0)
		for _, n := range p.topo.Nodes() {
			ids = append(ids, n.Id)
		}
		return state.NewTables(ids...)
	}
	return p.current.Clone()
}

// Last returns the most recently played event.
func (p *Player) Last() (state.Event, bool) {
	if p.run == nil || p.cursor == 0 {
		return state.Event{}, false
	}
	return p.run.Events[p.cursor-1], true
}

func (p *Player) Cursor() int {
	return p.cursor
}

// Len is the number of events of the prepared run.
func (p *Player) Len() int {
	if p.run == nil {
		return 0
	}
	return len(p.run.Events)
}

// Run returns the prepared run, nil when Idle.
func (p *Player) Run() *Run {
	return p.run
}
