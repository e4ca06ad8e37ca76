package core

import "github.com/encodeous/bgpsim/state"

// Better reports whether a beats b: higher local preference first, then the
// shorter AS path. Equal routes are not better than each other.
func Better(a, b state.Route) bool {
	if a.LocalPref != b.LocalPref {
		return a.LocalPref > b.LocalPref
	}
	return len(a.Path) < len(b.Path)
}

// BestRoute returns the index of the best route, -1 for none. Among equally
// good routes the first one discovered wins.
func BestRoute(routes []state.Route) int {
	best := -1
	for i, r := range routes {
		if best == -1 || Better(r, routes[best]) {
			best = i
		}
	}
	return best
}

// SelectBest runs best-path selection on every prefix of every table.
func SelectBest(tables state.Tables) {
	for _, tbl := range tables {
		for _, pfx := range tbl.Prefixes() {
			if best := BestRoute(tbl.Routes(pfx)); best != -1 {
				tbl.Select(pfx, best)
			}
		}
	}
}
