package state

import (
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"strings"

	"github.com/gaissmai/bart"
)

const (
	// DefaultLocalPref is assigned to the route an origin installs for itself.
	DefaultLocalPref = 100
	// LocalPrefSpread is the number of distinct values a received route may
	// draw, starting at DefaultLocalPref.
	LocalPrefSpread = 50
)

// Route is a path to a destination prefix as held by one node. Path is
// nearest-first: Path[0] is the holder, the last element is the origin.
type Route struct {
	Prefix    netip.Prefix `yaml:"prefix"`
	Path      []NodeId     `yaml:"path"`
	LocalPref int          `yaml:"local_pref"`
	Selected  bool         `yaml:"selected"`
}

func (r Route) Clone() Route {
	r.Path = slices.Clone(r.Path)
	return r
}

func (r Route) String() string {
	sel := ""
	if r.Selected {
		sel = ", selected"
	}
	return fmt.Sprintf("(%s, path: %s, lp: %d%s)", r.Prefix, PathString(r.Path), r.LocalPref, sel)
}

func PathString(path []NodeId) string {
	parts := make([]string, 0, len(path))
	for _, id := range path {
		parts = append(parts, id.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// RouteTable holds every route a node learned, grouped by destination prefix
// in discovery order. The zero value is an empty table.
type RouteTable struct {
	tbl bart.Table[[]Route]
	n   int
}

// Add appends r to the routes known for r.Prefix.
func (t *RouteTable) Add(r Route) {
	routes, _ := t.tbl.Get(r.Prefix)
	routes = append(slices.Clone(routes), r.Clone())
	t.tbl.Insert(r.Prefix, routes)
	t.n++
}

// Len returns the number of routes across all prefixes.
func (t *RouteTable) Len() int {
	if t == nil {
		return 0
	}
	return t.n
}

// Prefixes returns the known destination prefixes in address order.
func (t *RouteTable) Prefixes() []netip.Prefix {
	if t == nil {
		return nil
	}
	out := make([]netip.Prefix, 0)
	for pfx := range t.tbl.All() {
		out = append(out, pfx)
	}
	slices.SortFunc(out, ComparePrefix)
	return out
}

// Routes returns a copy of the routes known for pfx.
func (t *RouteTable) Routes(pfx netip.Prefix) []Route {
	if t == nil {
		return nil
	}
	routes, _ := t.tbl.Get(pfx)
	return cloneRoutes(routes)
}

// All returns a copy of every route, ordered by prefix then discovery.
func (t *RouteTable) All() []Route {
	out := make([]Route, 0, t.Len())
	for _, pfx := range t.Prefixes() {
		out = append(out, t.Routes(pfx)...)
	}
	return out
}

// Selected returns the selected route for pfx, if selection ran and the node
// has a route.
func (t *RouteTable) Selected(pfx netip.Prefix) (Route, bool) {
	if t == nil {
		return Route{}, false
	}
	routes, _ := t.tbl.Get(pfx)
	return selectedOf(routes)
}

// Lookup finds the selected route of the longest prefix covering addr.
func (t *RouteTable) Lookup(addr netip.Addr) (Route, bool) {
	if t == nil {
		return Route{}, false
	}
	routes, ok := t.tbl.Lookup(addr)
	if !ok {
		return Route{}, false
	}
	return selectedOf(routes)
}

// Select marks routes[idx] of pfx as the selected route and clears the flag
// on every other route for pfx.
func (t *RouteTable) Select(pfx netip.Prefix, idx int) {
	routes, ok := t.tbl.Get(pfx)
	if !ok {
		return
	}
	routes = cloneRoutes(routes)
	for i := range routes {
		routes[i].Selected = i == idx
	}
	t.tbl.Insert(pfx, routes)
}

// Clone returns a deep copy that shares nothing with t.
func (t *RouteTable) Clone() *RouteTable {
	c := &RouteTable{}
	if t == nil {
		return c
	}
	for pfx, routes := range t.tbl.All() {
		c.tbl.Insert(pfx, cloneRoutes(routes))
	}
	c.n = t.n
	return c
}

func selectedOf(routes []Route) (Route, bool) {
	idx := slices.IndexFunc(routes, func(r Route) bool {
		return r.Selected
	})
	if idx == -1 {
		return Route{}, false
	}
	return routes[idx].Clone(), true
}

func cloneRoutes(routes []Route) []Route {
	if routes == nil {
		return nil
	}
	out := make([]Route, len(routes))
	for i, r := range routes {
		out[i] = r.Clone()
	}
	return out
}

// Tables maps every node to its route table.
type Tables map[NodeId]*RouteTable

// NewTables creates an empty table for each id.
func NewTables(ids ...NodeId) Tables {
	t := make(Tables, len(ids))
	for _, id := range ids {
		t[id] = &RouteTable{}
	}
	return t
}

// Clone deep copies every table.
func (t Tables) Clone() Tables {
	c := make(Tables, len(t))
	for id, tbl := range t {
		c[id] = tbl.Clone()
	}
	return c
}

// Get returns the table of id, nil if the node has none. A nil table behaves
// as an empty one for reads.
func (t Tables) Get(id NodeId) *RouteTable {
	return t[id]
}

// Ids returns the node ids in ascending order.
func (t Tables) Ids() []NodeId {
	return slices.Sorted(maps.Keys(t))
}

// Export flattens the tables into plain values, for serialization.
func (t Tables) Export() map[NodeId][]Route {
	out := make(map[NodeId][]Route, len(t))
	for id, tbl := range t {
		out[id] = tbl.All()
	}
	return out
}

func (t Tables) String() string {
	sb := strings.Builder{}
	for _, id := range t.Ids() {
		sb.WriteString(fmt.Sprintf("%s:", id))
		routes := t[id].All()
		if len(routes) == 0 {
			sb.WriteString(" (none)")
		}
		for _, r := range routes {
			sb.WriteString(" " + r.String())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
