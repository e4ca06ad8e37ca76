package core

import (
	"slices"
	"testing"

	"github.com/encodeous/bgpsim/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestPropagate_FloodOrder(t *testing.T) {
	topo := ringTopology(t)
	run := propagate(t, topo, nil, 6, 1, WithSeed(1))

	want := []edge{
		{6, 5}, {6, 1},
		{5, 4}, {5, 6}, {5, 2},
		{1, 2}, {1, 6}, {1, 4},
		{4, 3}, {4, 5}, {4, 1},
		{2, 1}, {2, 3}, {2, 5},
		{3, 2}, {3, 4},
	}
	if diff := cmp.Diff(want, edges(run)); diff != "" {
		t.Errorf("advertisement order mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, run.Events, 18)
	assert.Equal(t, state.EventInit, run.Events[0].Kind)
	assert.Equal(t, state.EventComplete, run.Events[17].Kind)
	assert.Equal(t, 16, run.Advertisements())
}

func TestPropagate_Messages(t *testing.T) {
	topo := ringTopology(t)
	run := propagate(t, topo, nil, 6, 1, WithSeed(1))

	assert.Equal(t, "AS6 announces prefix 10.6.0.0/16", run.Events[0].Message)
	assert.Equal(t, "AS6 advertises route to AS5", run.Events[1].Message)
	assert.Equal(t, "Path selection complete", run.Events[17].Message)
	assert.Equal(t, state.NodeId(6), run.Events[0].Origin)
	assert.Equal(t, state.NodeId(1), run.Events[17].Observer)
	for _, e := range run.Events {
		assert.Equal(t, run.Prefix, e.Prefix)
	}
}

func TestPropagate_InitSnapshot(t *testing.T) {
	topo := ringTopology(t)
	run := propagate(t, topo, nil, 6, 1, WithSeed(1))

	init := run.Events[0].Tables
	assert.Equal(t, []state.NodeId{1, 2, 3, 4, 5, 6}, init.Ids())
	assert.Equal(t, []state.Route{{
		Prefix:    run.Prefix,
		Path:      []state.NodeId{6},
		LocalPref: state.DefaultLocalPref,
	}}, init.Get(6).All())
	for _, id := range []state.NodeId{1, 2, 3, 4, 5} {
		assert.Equal(t, 0, init.Get(id).Len())
	}
}

func TestPropagate_NearestFirstPaths(t *testing.T) {
	topo := ringTopology(t)
	run := propagate(t, topo, nil, 6, 1, WithSeed(1))

	for _, e := range advertisements(run) {
		assert.Equal(t, e.To, e.Path[0], "path must start at the receiver")
		assert.Equal(t, e.From, e.Path[1], "sender must be the next hop")
		assert.Equal(t, state.NodeId(6), e.Path[len(e.Path)-1], "path must end at the origin")
		// the event path is the route that was just installed
		routes := e.Tables.Get(e.To).Routes(run.Prefix)
		assert.Equal(t, e.Path, routes[len(routes)-1].Path)
		assert.Equal(t, e.LocalPref, routes[len(routes)-1].LocalPref)
	}
}

func TestPropagate_LoopRoutesInstalled(t *testing.T) {
	topo := ringTopology(t)
	run := propagate(t, topo, nil, 6, 1, WithSeed(1))

	paths := make([][]state.NodeId, 0)
	for _, r := range run.Tables.Get(6).All() {
		paths = append(paths, r.Path)
	}
	assert.Equal(t, [][]state.NodeId{{6}, {6, 5, 6}, {6, 1, 6}}, paths)
}

func TestPropagate_LocalPrefRange(t *testing.T) {
	topo := ringTopology(t)
	for seed := uint64(1); seed <= 20; seed++ {
		run := propagate(t, topo, nil, 6, 1, WithSeed(seed))
		for _, e := range advertisements(run) {
			assert.GreaterOrEqual(t, e.LocalPref, 100)
			assert.LessOrEqual(t, e.LocalPref, 149)
		}
	}
	run := propagate(t, topo, nil, 6, 1, WithRand(maxPrefs{}))
	for _, e := range advertisements(run) {
		assert.Equal(t, 149, e.LocalPref)
	}
}

func TestPropagate_DeterministicModuloLocalPref(t *testing.T) {
	topo := ringTopology(t)
	a := propagate(t, topo, nil, 6, 1, WithSeed(3))
	b := propagate(t, topo, nil, 6, 1, WithSeed(97))
	c := propagate(t, topo, nil, 6, 1)

	for _, other := range []*Run{b, c} {
		assert.Equal(t, len(a.Events), len(other.Events))
		assert.Equal(t, edges(a), edges(other))
		for i := range a.Events {
			if a.Events[i].Kind == state.EventComplete {
				continue
			}
			assert.Equal(t, a.Events[i].Path, other.Events[i].Path)
			assert.Equal(t, a.Events[i].Message, other.Events[i].Message)
		}
		// the observer always selects something, whatever the preferences
		assert.NotEmpty(t, other.FinalPath())
	}
}

func TestPropagate_SameSeedSameRun(t *testing.T) {
	topo := ringTopology(t)
	a := propagate(t, topo, nil, 6, 1, WithSeed(42))
	b := propagate(t, topo, nil, 6, 1, WithSeed(42))
	for i := range a.Events {
		assert.Equal(t, a.Events[i].LocalPref, b.Events[i].LocalPref)
		assert.Equal(t, a.Events[i].Tables.String(), b.Events[i].Tables.String())
	}
}

func TestPropagate_SingleForwarding(t *testing.T) {
	topo := ringTopology(t)
	run := propagate(t, topo, nil, 6, 1, WithSeed(5))
	reach := reachable(topo, nil, 6)

	received := make(map[state.NodeId]bool)
	for _, e := range advertisements(run) {
		received[e.To] = true
	}
	for _, n := range topo.Nodes() {
		if n.Id == 6 {
			continue
		}
		assert.Equal(t, reach[n.Id], received[n.Id], "node %d", n.Id)
	}

	// each node forwards in one contiguous wave
	var order []state.NodeId
	for _, e := range edges(run) {
		if len(order) == 0 || order[len(order)-1] != e.From {
			assert.NotContains(t, order, e.From, "node %d forwarded twice", e.From)
			order = append(order, e.From)
		}
	}

	enabled := 0
	for _, l := range topo.Links() {
		if l.Enabled {
			enabled++
		}
	}
	assert.LessOrEqual(t, run.Advertisements(), 2*enabled)
}

func TestPropagate_TableMonotonicity(t *testing.T) {
	topo := ringTopology(t)
	run := propagate(t, topo, nil, 6, 1, WithSeed(11))

	for i := 1; i < len(run.Events); i++ {
		prev, cur := run.Events[i-1].Tables, run.Events[i].Tables
		for _, id := range prev.Ids() {
			before := prev.Get(id).Routes(run.Prefix)
			after := cur.Get(id).Routes(run.Prefix)
			assert.GreaterOrEqual(t, len(after), len(before))
			for j := range before {
				assert.Equal(t, before[j].Path, after[j].Path)
				assert.Equal(t, before[j].LocalPref, after[j].LocalPref)
			}
			if run.Events[i].Kind != state.EventComplete {
				for _, r := range after {
					assert.False(t, r.Selected, "selection must only happen at the end")
				}
			}
		}
	}
}

func TestPropagate_SelectionLaw(t *testing.T) {
	topo := ringTopology(t)
	for seed := uint64(1); seed <= 10; seed++ {
		run := propagate(t, topo, nil, 6, 1, WithSeed(seed))
		for _, id := range run.Tables.Ids() {
			routes := run.Tables.Get(id).Routes(run.Prefix)
			if len(routes) == 0 {
				continue
			}
			sel, ok := run.Tables.Get(id).Selected(run.Prefix)
			assert.True(t, ok)
			selected := 0
			for _, r := range routes {
				if r.Selected {
					selected++
				}
				assert.GreaterOrEqual(t, sel.LocalPref, r.LocalPref)
				if r.LocalPref == sel.LocalPref {
					assert.LessOrEqual(t, len(sel.Path), len(r.Path))
				}
			}
			assert.Equal(t, 1, selected)
		}
	}
}

func TestPropagate_LocalPrefBeatsLength(t *testing.T) {
	topo := ringTopology(t)
	// draw 11 is the 4 -> 1 advertisement carrying [1 4 5 6]
	prefs := &seqPrefs{offsets: []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 49}}
	run := propagate(t, topo, nil, 6, 1, WithRand(prefs))

	assert.Equal(t, 16, prefs.draws)
	assert.Equal(t, []state.NodeId{1, 4, 5, 6}, run.FinalPath())
	sel, _ := run.Tables.Get(1).Selected(run.Prefix)
	assert.Equal(t, 149, sel.LocalPref)
}

func TestPropagate_EqualPrefShortestWins(t *testing.T) {
	topo := ringTopology(t)
	run := propagate(t, topo, nil, 6, 1, WithRand(&seqPrefs{}))

	assert.Equal(t, []state.NodeId{1, 6}, run.FinalPath())
	// the origin keeps its own route
	sel, ok := run.Tables.Get(6).Selected(run.Prefix)
	assert.True(t, ok)
	assert.Equal(t, []state.NodeId{6}, sel.Path)
	// node 2 learns [2 5 6] before [2 1 6], both length 3
	sel, _ = run.Tables.Get(2).Selected(run.Prefix)
	assert.Equal(t, []state.NodeId{2, 5, 6}, sel.Path)
}

func TestPropagate_ObserverScenario(t *testing.T) {
	topo := ringTopology(t)
	for seed := uint64(1); seed <= 10; seed++ {
		run := propagate(t, topo, nil, 6, 1, WithSeed(seed))
		path := run.FinalPath()
		assert.Equal(t, state.NodeId(1), path[0])
		assert.Equal(t, state.NodeId(6), path[len(path)-1])
		assert.LessOrEqual(t, len(path), 4)

		selected := 0
		for _, r := range run.Tables.Get(1).All() {
			if r.Selected {
				selected++
			}
		}
		assert.Equal(t, 1, selected)
	}
}

func TestPropagate_SingleOriginLink(t *testing.T) {
	topo := ringTopology(t)
	disabled := state.NewLinkSet(state.MakeSortedPair[state.NodeId](1, 6))
	run := propagate(t, topo, disabled, 6, 1, WithSeed(7))

	for _, id := range run.Tables.Ids() {
		if id == 6 {
			continue
		}
		for _, r := range run.Tables.Get(id).All() {
			assert.Contains(t, r.Path, state.NodeId(5), "node %d path %v", id, r.Path)
			assert.Equal(t, state.NodeId(5), r.Path[len(r.Path)-2])
		}
	}
	for _, e := range edges(run) {
		assert.NotEqual(t, edge{6, 1}, e)
		assert.NotEqual(t, edge{1, 6}, e)
	}
}

func TestPropagate_DisconnectedNode(t *testing.T) {
	topo := ringTopology(t)
	_, err := topo.ToggleLink(2, 3)
	assert.NoError(t, err)
	_, err = topo.ToggleLink(3, 4)
	assert.NoError(t, err)

	run := propagate(t, topo, nil, 6, 1, WithSeed(7))
	assert.Equal(t, 0, run.Tables.Get(3).Len())
	for _, e := range advertisements(run) {
		assert.NotEqual(t, state.NodeId(3), e.From)
		assert.NotEqual(t, state.NodeId(3), e.To)
	}
	assert.Equal(t, 12, run.Advertisements())
}

func TestPropagate_UnreachableObserver(t *testing.T) {
	topo := ringTopology(t)
	disabled := state.NewLinkSet(
		state.MakeSortedPair[state.NodeId](2, 3),
		state.MakeSortedPair[state.NodeId](3, 4),
	)
	run := propagate(t, topo, disabled, 6, 3, WithSeed(7))
	assert.Empty(t, run.FinalPath())
	assert.NotNil(t, run.FinalPath())
	assert.Equal(t, state.EventComplete, run.Events[len(run.Events)-1].Kind)
}

func TestPropagate_IsolatedOrigin(t *testing.T) {
	topo := state.NewTopology()
	topo.AddNode(state.CanvasCenter)
	run := propagate(t, topo, nil, 1, 1, WithSeed(1))

	assert.Len(t, run.Events, 2)
	assert.Equal(t, []state.NodeId{1}, run.FinalPath())
}

func TestPropagate_OverlayDoesNotTouchTopology(t *testing.T) {
	topo := ringTopology(t)
	v := topo.Version()
	disabled := state.NewLinkSet(state.MakeSortedPair[state.NodeId](5, 6))
	propagate(t, topo, disabled, 6, 1, WithSeed(1))
	assert.Equal(t, v, topo.Version())
	assert.True(t, topo.IsLinkEnabled(5, 6))
}

func TestPropagate_UnknownNodes(t *testing.T) {
	topo := ringTopology(t)
	_, err := Propagate(topo, nil, 9, 1, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, state.ErrNodeNotFound)
	_, err = Propagate(topo, nil, 6, 9, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, state.ErrNodeNotFound)
}

func TestPropagate_SnapshotsAreIndependent(t *testing.T) {
	topo := ringTopology(t)
	run := propagate(t, topo, nil, 6, 1, WithSeed(1))

	before := run.Events[1].Tables.String()
	run.Events[2].Tables.Get(4).Add(state.Route{Prefix: run.Prefix, Path: []state.NodeId{4}})
	run.Tables.Get(5).Add(state.Route{Prefix: run.Prefix, Path: []state.NodeId{5}})
	assert.Equal(t, before, run.Events[1].Tables.String())
	assert.True(t, slices.Equal([]state.NodeId{5, 6}, run.Events[1].Tables.Get(5).All()[0].Path))
}
