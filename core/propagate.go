package core

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/netip"
	"slices"
	"time"

	"github.com/encodeous/bgpsim/perf"
	"github.com/encodeous/bgpsim/state"
)

// Graph is the read-only view of a topology that a run consumes.
type Graph interface {
	Nodes() []state.Node
	Node(id state.NodeId) (state.Node, bool)
	NeighboursOf(id state.NodeId) []state.NodeId
	IsLinkEnabled(a, b state.NodeId) bool
}

// LocalPrefSource draws the local preference offset of each advertisement.
// *rand.Rand satisfies it.
type LocalPrefSource interface {
	IntN(n int) int
}

type runOpts struct {
	rand LocalPrefSource
	log  *slog.Logger
}

type RunOption func(o *runOpts)

// WithRand sets the local preference source.
func WithRand(src LocalPrefSource) RunOption {
	return func(o *runOpts) {
		o.rand = src
	}
}

// WithSeed makes local preference draws reproducible. A zero seed keeps the
// default random source.
func WithSeed(seed uint64) RunOption {
	return func(o *runOpts) {
		if seed != 0 {
			o.rand = rand.New(rand.NewPCG(seed, seed))
		}
	}
}

func WithLogger(l *slog.Logger) RunOption {
	return func(o *runOpts) {
		if l != nil {
			o.log = l
		}
	}
}

// Run is the complete output of one propagation.
type Run struct {
	Origin   state.NodeId
	Observer state.NodeId
	Prefix   netip.Prefix
	Events   []state.Event
	// Tables are the final tables, with selection applied.
	Tables state.Tables
}

// FinalPath is the observer's selected path, empty when it has no route.
func (r *Run) FinalPath() []state.NodeId {
	return r.Events[len(r.Events)-1].Path
}

// Advertisements counts the advertise events of the run.
func (r *Run) Advertisements() int {
	n := 0
	for _, e := range r.Events {
		if e.Kind == state.EventAdvertise {
			n++
		}
	}
	return n
}

type hop struct {
	id   state.NodeId
	path []state.NodeId // origin first
}

// Propagate floods the origin's prefix through g breadth-first and returns
// every intermediate step. A link is only traversed if it is enabled in g and
// not part of disabled. Each node forwards the route once, on the first
// advertisement it receives, but keeps every advertisement it is sent.
func Propagate(g Graph, disabled state.LinkSet, origin, observer state.NodeId, opts ...RunOption) (*Run, error) {
	o := runOpts{
		rand: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	src, ok := g.Node(origin)
	if !ok {
		return nil, fmt.Errorf("origin %d: %w", origin, state.ErrNodeNotFound)
	}
	if _, ok = g.Node(observer); !ok {
		return nil, fmt.Errorf("observer %d: %w", observer, state.ErrNodeNotFound)
	}

	start := time.Now()
	nodes := g.Nodes()
	labels := make(map[state.NodeId]string, len(nodes))
	ids := make([]state.NodeId, 0, len(nodes))
	for _, n := range nodes {
		labels[n.Id] = n.Label
		ids = append(ids, n.Id)
	}

	run := &Run{
		Origin:   origin,
		Observer: observer,
		Prefix:   src.Prefix,
		Tables:   state.NewTables(ids...),
	}
	tables := run.Tables

	tables[origin].Add(state.Route{
		Prefix:    src.Prefix,
		Path:      []state.NodeId{origin},
		LocalPref: state.DefaultLocalPref,
	})
	run.Events = append(run.Events, state.Event{
		Kind:    state.EventInit,
		Message: fmt.Sprintf("%s announces prefix %s", src.Label, src.Prefix),
		Prefix:  src.Prefix,
		Origin:  origin,
		Tables:  tables.Clone(),
	})

	queue := []hop{{origin, []state.NodeId{origin}}}
	visited := map[state.NodeId]struct{}{origin: {}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, nb := range g.NeighboursOf(cur.id) {
			if !g.IsLinkEnabled(cur.id, nb) || disabled.Has(cur.id, nb) {
				continue
			}
			next := append(slices.Clone(cur.path), nb)
			installed := slices.Clone(next)
			slices.Reverse(installed)
			lp := state.DefaultLocalPref + o.rand.IntN(state.LocalPrefSpread)

			tbl := tables[nb]
			if tbl == nil {
				tbl = &state.RouteTable{}
				tables[nb] = tbl
			}
			tbl.Add(state.Route{
				Prefix:    src.Prefix,
				Path:      installed,
				LocalPref: lp,
			})
			run.Events = append(run.Events, state.Event{
				Kind:      state.EventAdvertise,
				Message:   fmt.Sprintf("%s advertises route to %s", labelOf(labels, cur.id), labelOf(labels, nb)),
				Prefix:    src.Prefix,
				From:      cur.id,
				To:        nb,
				Path:      slices.Clone(installed),
				LocalPref: lp,
				Tables:    tables.Clone(),
			})
			if state.DBG_log_events {
				o.log.Debug("advertise", "from", cur.id, "to", nb, "path", state.PathString(installed), "lp", lp)
			}

			if _, seen := visited[nb]; !seen {
				visited[nb] = struct{}{}
				queue = append(queue, hop{nb, next})
			}
		}
	}

	SelectBest(tables)

	var final []state.NodeId
	if r, ok := tables.Get(observer).Selected(src.Prefix); ok {
		final = r.Path
	} else {
		final = make([]state.NodeId, 0)
	}
	run.Events = append(run.Events, state.Event{
		Kind:     state.EventComplete,
		Message:  "Path selection complete",
		Prefix:   src.Prefix,
		Observer: observer,
		Path:     final,
		Tables:   tables.Clone(),
	})

	elapsed := time.Since(start)
	perf.RunLatency.Add(float64(elapsed.Microseconds()))
	perf.AdvertisementsPerRun.Add(float64(run.Advertisements()))
	perf.Runs.Add(1)
	o.log.Debug("propagation complete",
		"origin", origin,
		"prefix", src.Prefix,
		"events", len(run.Events),
		"reached", len(visited),
		"observer", observer,
		"path", state.PathString(final),
		"elapsed", elapsed)
	if state.DBG_log_tables {
		o.log.Debug("final tables\n" + tables.String())
	}
	return run, nil
}

func labelOf(labels map[state.NodeId]string, id state.NodeId) string {
	if l, ok := labels[id]; ok {
		return l
	}
	return state.DefaultLabel(id)
}
