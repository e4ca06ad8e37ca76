package state

import (
	"fmt"
	"math"
	"net/netip"
	"slices"
	"strconv"
	"time"
)

// NodeCfg describes one autonomous system of the initial topology.
type NodeCfg struct {
	Id       NodeId       `yaml:"id"`
	Label    string       `yaml:"label,omitempty"`
	Prefix   netip.Prefix `yaml:"prefix,omitempty"`
	Position Position     `yaml:"position,omitempty"`
}

// SimCfg is the on-disk description of a simulation: the initial topology and
// the run parameters.
type SimCfg struct {
	Nodes []NodeCfg `yaml:"nodes"`
	// Graph lists links, see ParseGraph for the syntax. Symbols are node ids.
	Graph []string `yaml:"graph"`
	// Disabled lists links (same syntax) that start out disabled.
	Disabled   []string      `yaml:"disabled,omitempty"`
	Origin     NodeId        `yaml:"origin"`
	Observer   NodeId        `yaml:"observer"`
	Seed       uint64        `yaml:"seed,omitempty"`        // 0 draws local preference from a random seed
	FlightTime time.Duration `yaml:"flight_time,omitempty"` // how long a packet marker stays in flight
	LogPath    string        `yaml:"log_path,omitempty"`    // if not empty, logs are also written to this file
}

// DefaultSimCfg is six autonomous systems on a circle, linked as a ring with
// three chords. AS6 originates, AS1 observes.
func DefaultSimCfg() SimCfg {
	const (
		count  = 6
		radius = 180
	)
	cfg := SimCfg{
		Graph: []string{
			"1, 2", "2, 3", "3, 4", "4, 5", "5, 6", "6, 1",
			"1, 4", "2, 5", "3, 6",
		},
		Origin:     6,
		Observer:   1,
		FlightTime: PacketFlightTime,
	}
	for i := range count {
		angle := float64(i)*math.Pi*2/count - math.Pi/2
		id := NodeId(i + 1)
		cfg.Nodes = append(cfg.Nodes, NodeCfg{
			Id:     id,
			Label:  DefaultLabel(id),
			Prefix: netip.PrefixFrom(netip.AddrFrom4([4]byte{10, byte(id), 0, 0}), 16),
			Position: Position{
				X: math.Round(CanvasCenter.X + radius*math.Cos(angle)),
				Y: math.Round(CanvasCenter.Y + radius*math.Sin(angle)),
			},
		})
	}
	return cfg
}

func (c *SimCfg) NodeIds() []NodeId {
	ids := make([]NodeId, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		ids = append(ids, n.Id)
	}
	return ids
}

func (c *SimCfg) IsNode(id NodeId) bool {
	return c.TryGetNode(id) != nil
}

func (c *SimCfg) TryGetNode(id NodeId) *NodeCfg {
	idx := slices.IndexFunc(c.Nodes, func(cfg NodeCfg) bool {
		return cfg.Id == id
	})
	if idx == -1 {
		return nil
	}
	return &c.Nodes[idx]
}

func (c *SimCfg) symbols() []string {
	out := make([]string, 0, len(c.Nodes))
	for _, id := range c.NodeIds() {
		out = append(out, id.String())
	}
	return out
}

func toNodePairs(pairs []Pair[string, string]) ([]Pair[NodeId, NodeId], error) {
	out := make([]Pair[NodeId, NodeId], 0, len(pairs))
	for _, p := range pairs {
		a, err := strconv.Atoi(p.V1)
		if err != nil {
			return nil, err
		}
		b, err := strconv.Atoi(p.V2)
		if err != nil {
			return nil, err
		}
		out = append(out, MakeSortedPair(NodeId(a), NodeId(b)))
	}
	return out, nil
}

// Edges returns the links declared in Graph, in declaration order.
func (c *SimCfg) Edges() ([]Pair[NodeId, NodeId], error) {
	pairs, err := ParseGraph(c.Graph, c.symbols())
	if err != nil {
		return nil, err
	}
	return toNodePairs(pairs)
}

// DisabledEdges returns the links declared in Disabled.
func (c *SimCfg) DisabledEdges() ([]Pair[NodeId, NodeId], error) {
	pairs, err := ParseGraph(c.Disabled, c.symbols())
	if err != nil {
		return nil, fmt.Errorf("disabled: %w", err)
	}
	return toNodePairs(pairs)
}

// ExpandSimConfig fills in the optional parts of a config: labels, prefixes
// and the flight time.
func ExpandSimConfig(cfg *SimCfg) {
	taken := make([]netip.Prefix, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		if n.Prefix.IsValid() {
			taken = append(taken, n.Prefix)
		}
	}
	for idx, n := range cfg.Nodes {
		if n.Label == "" {
			n.Label = DefaultLabel(n.Id)
		}
		if !n.Prefix.IsValid() {
			n.Prefix = AllocatePrefix(n.Id, taken)
			taken = append(taken, n.Prefix)
		}
		cfg.Nodes[idx] = n
	}
	if cfg.FlightTime <= 0 {
		cfg.FlightTime = PacketFlightTime
	}
}

// BuildTopology creates the topology described by cfg. The config must have
// been expanded and validated.
func BuildTopology(cfg *SimCfg) (*Topology, error) {
	t := NewTopology()
	for _, n := range cfg.Nodes {
		if _, ok := t.nodes[n.Id]; ok {
			return nil, fmt.Errorf("duplicate node id %d", n.Id)
		}
		t.insertNode(n.Id, n.Label, n.Prefix, n.Position)
	}
	edges, err := cfg.Edges()
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		err = t.AddLink(e.V1, e.V2)
		if err != nil {
			return nil, err
		}
	}
	disabled, err := cfg.DisabledEdges()
	if err != nil {
		return nil, err
	}
	for _, e := range disabled {
		if _, err = t.ToggleLink(e.V1, e.V2); err != nil {
			return nil, err
		}
	}
	t.version = 0
	return t, nil
}
