package state

import (
	"errors"
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"strings"

	"github.com/gaissmai/bart"
)

var (
	ErrInvalidLink  = errors.New("invalid link")
	ErrLinkNotFound = errors.New("link not found")
	ErrNodeNotFound = errors.New("node not found")
)

type NodeId int

func (id NodeId) String() string {
	return fmt.Sprintf("%d", int(id))
}

type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Node is an autonomous system. Values returned by Topology are copies.
type Node struct {
	Id         NodeId
	Label      string
	Prefix     netip.Prefix
	Position   Position
	Neighbours []NodeId
}

// LinkKey identifies a link by its unordered endpoints, A < B.
type LinkKey struct {
	A, B NodeId
}

func MakeLinkKey(a, b NodeId) LinkKey {
	p := MakeSortedPair(a, b)
	return LinkKey{p.V1, p.V2}
}

func (k LinkKey) String() string {
	return fmt.Sprintf("%d-%d", k.A, k.B)
}

// Other returns the endpoint that is not id.
func (k LinkKey) Other(id NodeId) NodeId {
	if k.A == id {
		return k.B
	}
	return k.A
}

type Link struct {
	LinkKey
	Enabled bool
}

// LinkSet is a set of links, used as the per-run disabled-link overlay.
type LinkSet map[LinkKey]struct{}

func NewLinkSet(pairs ...Pair[NodeId, NodeId]) LinkSet {
	s := make(LinkSet, len(pairs))
	for _, p := range pairs {
		s.Add(p.V1, p.V2)
	}
	return s
}

func (s LinkSet) Add(a, b NodeId) {
	s[MakeLinkKey(a, b)] = struct{}{}
}

// Has looks the link up in either direction.
func (s LinkSet) Has(a, b NodeId) bool {
	if s == nil {
		return false
	}
	_, ok := s[MakeLinkKey(a, b)]
	return ok
}

// Keys returns the links ordered by endpoints.
func (s LinkSet) Keys() []LinkKey {
	pairs := make([]Pair[NodeId, NodeId], 0, len(s))
	for k := range s {
		pairs = append(pairs, Pair[NodeId, NodeId]{k.A, k.B})
	}
	SortPairs(pairs)
	out := make([]LinkKey, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, LinkKey{p.V1, p.V2})
	}
	return out
}

// Topology owns the nodes and links of the simulated network. It is not safe
// for concurrent use; the runtime only touches it from the main loop.
type Topology struct {
	nodes   map[NodeId]*Node
	links   map[LinkKey]*Link
	order   []LinkKey
	lastId  NodeId
	version uint64
	subs    map[int]func(uint64)
	nextSub int
}

func NewTopology() *Topology {
	return &Topology{
		nodes: make(map[NodeId]*Node),
		links: make(map[LinkKey]*Link),
		subs:  make(map[int]func(uint64)),
	}
}

// Subscribe registers fn to be called synchronously after every successful
// mutation. The returned function removes the subscription.
func (t *Topology) Subscribe(fn func(version uint64)) func() {
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	return func() {
		delete(t.subs, id)
	}
}

func (t *Topology) Version() uint64 {
	return t.version
}

func (t *Topology) changed() {
	t.version++
	for _, id := range slices.Sorted(maps.Keys(t.subs)) {
		if fn, ok := t.subs[id]; ok {
			fn(t.version)
		}
	}
}

// AddNode creates a node with a fresh id, the default label and a prefix
// distinct from every existing one.
func (t *Topology) AddNode(pos Position) Node {
	id := t.lastId + 1
	n := t.insertNode(id, "", AllocatePrefix(id, t.prefixes()), pos)
	t.changed()
	return n
}

func (t *Topology) insertNode(id NodeId, label string, pfx netip.Prefix, pos Position) Node {
	if label == "" {
		label = DefaultLabel(id)
	}
	n := &Node{
		Id:       id,
		Label:    label,
		Prefix:   pfx,
		Position: pos,
	}
	t.nodes[id] = n
	t.lastId = max(t.lastId, id)
	return n.clone()
}

func DefaultLabel(id NodeId) string {
	return fmt.Sprintf("AS%d", id)
}

// RemoveNode removes the node after removing every link incident to it.
func (t *Topology) RemoveNode(id NodeId) error {
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("remove %d: %w", id, ErrNodeNotFound)
	}
	for _, nb := range slices.Clone(n.Neighbours) {
		t.unlink(MakeLinkKey(id, nb))
	}
	delete(t.nodes, id)
	t.changed()
	return nil
}

func (t *Topology) AddLink(a, b NodeId) error {
	if a == b {
		return fmt.Errorf("link %d-%d: endpoints must differ: %w", a, b, ErrInvalidLink)
	}
	na, okA := t.nodes[a]
	nb, okB := t.nodes[b]
	if !okA || !okB {
		return fmt.Errorf("link %d-%d: endpoint does not exist: %w", a, b, ErrInvalidLink)
	}
	key := MakeLinkKey(a, b)
	if _, ok := t.links[key]; ok {
		return fmt.Errorf("link %s already exists: %w", key, ErrInvalidLink)
	}
	t.links[key] = &Link{LinkKey: key, Enabled: true}
	t.order = append(t.order, key)
	na.Neighbours = append(na.Neighbours, b)
	nb.Neighbours = append(nb.Neighbours, a)
	t.changed()
	return nil
}

func (t *Topology) RemoveLink(a, b NodeId) error {
	key := MakeLinkKey(a, b)
	if _, ok := t.links[key]; !ok {
		return fmt.Errorf("unlink %s: %w", key, ErrLinkNotFound)
	}
	t.unlink(key)
	t.changed()
	return nil
}

func (t *Topology) unlink(key LinkKey) {
	delete(t.links, key)
	t.order = slices.DeleteFunc(t.order, func(k LinkKey) bool {
		return k == key
	})
	for _, id := range []NodeId{key.A, key.B} {
		if n, ok := t.nodes[id]; ok {
			other := key.Other(id)
			n.Neighbours = slices.DeleteFunc(n.Neighbours, func(x NodeId) bool {
				return x == other
			})
		}
	}
}

// ToggleLink flips the enabled state of a link and returns the new state.
func (t *Topology) ToggleLink(a, b NodeId) (bool, error) {
	l, ok := t.links[MakeLinkKey(a, b)]
	if !ok {
		return false, fmt.Errorf("toggle %d-%d: %w", a, b, ErrLinkNotFound)
	}
	l.Enabled = !l.Enabled
	t.changed()
	return l.Enabled, nil
}

// RenameNode sets the label of a node. Blank labels are ignored.
func (t *Topology) RenameNode(id NodeId, label string) error {
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("rename %d: %w", id, ErrNodeNotFound)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}
	n.Label = label
	t.changed()
	return nil
}

// Nodes returns every node ordered by id.
func (t *Topology) Nodes() []Node {
	out := make([]Node, 0, len(t.nodes))
	for _, id := range slices.Sorted(maps.Keys(t.nodes)) {
		out = append(out, t.nodes[id].clone())
	}
	return out
}

func (t *Topology) Node(id NodeId) (Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

func (t *Topology) NeighboursOf(id NodeId) []NodeId {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	return slices.Clone(n.Neighbours)
}

func (t *Topology) IsLinkEnabled(a, b NodeId) bool {
	l, ok := t.links[MakeLinkKey(a, b)]
	return ok && l.Enabled
}

func (t *Topology) HasLink(a, b NodeId) bool {
	_, ok := t.links[MakeLinkKey(a, b)]
	return ok
}

// Links returns every link in creation order.
func (t *Topology) Links() []Link {
	out := make([]Link, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, *t.links[k])
	}
	return out
}

// Label returns the node label, or the default label for unknown ids.
func (t *Topology) Label(id NodeId) string {
	if n, ok := t.nodes[id]; ok {
		return n.Label
	}
	return DefaultLabel(id)
}

// Owner returns the node whose prefix contains addr.
func (t *Topology) Owner(addr netip.Addr) (Node, bool) {
	var idx bart.Table[NodeId]
	for id, n := range t.nodes {
		idx.Insert(n.Prefix, id)
	}
	id, ok := idx.Lookup(addr)
	if !ok {
		return Node{}, false
	}
	return t.Node(id)
}

func (t *Topology) prefixes() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n.Prefix)
	}
	return out
}

func (n *Node) clone() Node {
	c := *n
	c.Neighbours = slices.Clone(n.Neighbours)
	return c
}
