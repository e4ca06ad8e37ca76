package core

import (
	"io"
	"log/slog"
	"testing"

	"github.com/encodeous/bgpsim/state"
	"github.com/stretchr/testify/assert"
)

// seqPrefs hands out local preference offsets in draw order, 0 once they run
// out.
type seqPrefs struct {
	offsets []int
	draws   int
}

func (s *seqPrefs) IntN(n int) int {
	s.draws++
	if s.draws > len(s.offsets) {
		return 0
	}
	return min(s.offsets[s.draws-1], n-1)
}

// maxPrefs always draws the largest offset.
type maxPrefs struct{}

func (maxPrefs) IntN(n int) int {
	return n - 1
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ringTopology builds six nodes linked 1-2-3-4-5-6-1 with the chords 1-4
// and 2-5.
func ringTopology(t *testing.T) *state.Topology {
	t.Helper()
	topo := state.NewTopology()
	for range 6 {
		topo.AddNode(state.CanvasCenter)
	}
	for _, l := range [][2]state.NodeId{
		{1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 6}, {6, 1}, {1, 4}, {2, 5},
	} {
		assert.NoError(t, topo.AddLink(l[0], l[1]))
	}
	return topo
}

func propagate(t *testing.T, g Graph, disabled state.LinkSet, origin, observer state.NodeId, opts ...RunOption) *Run {
	t.Helper()
	opts = append([]RunOption{WithLogger(quietLogger())}, opts...)
	run, err := Propagate(g, disabled, origin, observer, opts...)
	assert.NoError(t, err)
	return run
}

func advertisements(run *Run) []state.Event {
	out := make([]state.Event, 0)
	for _, e := range run.Events {
		if e.Kind == state.EventAdvertise {
			out = append(out, e)
		}
	}
	return out
}

// edge is the (from, to) pair of an advertisement
type edge struct {
	From, To state.NodeId
}

func edges(run *Run) []edge {
	out := make([]edge, 0)
	for _, e := range advertisements(run) {
		out = append(out, edge{e.From, e.To})
	}
	return out
}

// reachable walks enabled links not in disabled from origin.
func reachable(g Graph, disabled state.LinkSet, origin state.NodeId) map[state.NodeId]bool {
	seen := map[state.NodeId]bool{origin: true}
	queue := []state.NodeId{origin}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range g.NeighboursOf(cur) {
			if !g.IsLinkEnabled(cur, nb) || disabled.Has(cur, nb) || seen[nb] {
				continue
			}
			seen[nb] = true
			queue = append(queue, nb)
		}
	}
	return seen
}
