package state

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

func parseSymbolList(s string, validSymbols []string) ([]string, error) {
	line := make([]string, 0)
	for _, sym := range strings.Split(strings.TrimSpace(s), ",") {
		x := strings.TrimSpace(sym)
		if x == "" {
			continue
		}
		if !slices.Contains(validSymbols, x) {
			return nil, fmt.Errorf(`%s is not a valid node/group`, x)
		}
		line = append(line, x)
	}
	if len(line) == 0 {
		return nil, fmt.Errorf(`node/group list must not be empty`)
	}
	return line, nil
}

/*
ParseGraph expands link declarations into node pairs. Lines look like:

	core = 1, 2, 3      // group definition
	edge = 4, core      // groups may contain groups
	1, 2                // link 1-2
	core, 5             // link every node of core to 5
	core, core          // full mesh inside core

Every line that is not a group definition lists symbols that are linked
pairwise. Links between a node and itself are dropped.
The returned pairs are sorted (V1 < V2), deduplicated and ordered by first
appearance in the input, so the caller can rely on the declaration order
when building neighbour lists.
*/
func ParseGraph(graph []string, nodes []string) ([]Pair[string, string], error) {
	symbols := slices.Clone(nodes)
	groups := make(map[string][]string)

	// pass 0, collect group names so that definitions may refer to groups
	// declared further down
	for _, line := range graph {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, _, isGroup := strings.Cut(line, "=")
		if !isGroup {
			continue
		}
		if strings.Count(line, "=") != 1 {
			return nil, fmt.Errorf("invalid graph: %s. group definition must contain one '='", line)
		}
		name = strings.TrimSpace(name)
		if slices.Contains(nodes, name) {
			return nil, fmt.Errorf("group name must not be a node name: %s", name)
		}
		symbols = append(symbols, name)
	}

	// deps tracks, for every group, the groups it still needs expanded
	deps := make(map[string][]string)
	expansion := make(map[string][]string)
	links := make([][]string, 0)

	// pass 1, parse every line
	for _, line := range graph {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name, list, isGroup := strings.Cut(line, "="); isGroup {
			name = strings.TrimSpace(name)
			if _, ok := groups[name]; ok {
				return nil, fmt.Errorf("duplicate group name: %s", name)
			}
			members, err := parseSymbolList(list, symbols)
			if err != nil {
				return nil, err
			}
			groups[name] = members
			deps[name] = make([]string, 0)
			for _, m := range members {
				if slices.Contains(nodes, m) {
					expansion[name] = append(expansion[name], m)
				} else if !slices.Contains(deps[name], m) {
					deps[name] = append(deps[name], m)
				}
			}
			continue
		}
		names, err := parseSymbolList(line, symbols)
		if err != nil {
			return nil, err
		}
		if len(names) < 2 {
			return nil, fmt.Errorf("invalid pairing, %v", names)
		}
		links = append(links, names)
	}

	// pass 2, expand groups in dependency order
	for len(deps) > 0 {
		var free string
		for _, g := range slices.Sorted(maps.Keys(deps)) {
			if len(deps[g]) == 0 {
				free = g
				break
			}
		}
		if free == "" {
			return nil, fmt.Errorf("cycle detected in graph: %v", slices.Sorted(maps.Keys(deps)))
		}
		delete(deps, free)
		for g, d := range deps {
			if !slices.Contains(d, free) {
				continue
			}
			for _, m := range expansion[free] {
				if !slices.Contains(expansion[g], m) {
					expansion[g] = append(expansion[g], m)
				}
			}
			deps[g] = slices.DeleteFunc(d, func(x string) bool {
				return x == free
			})
		}
	}

	resolve := func(sym string) []string {
		if slices.Contains(nodes, sym) {
			return []string{sym}
		}
		return expansion[sym]
	}

	// pass 3, interconnect the symbols of every link line
	pairs := make([]Pair[string, string], 0)
	seen := make(map[Pair[string, string]]struct{})
	for _, names := range links {
		for i := range names {
			for j := i + 1; j < len(names); j++ {
				for _, x := range resolve(names[i]) {
					for _, y := range resolve(names[j]) {
						if x == y {
							continue
						}
						p := MakeSortedPair(x, y)
						if _, ok := seen[p]; ok {
							continue
						}
						seen[p] = struct{}{}
						pairs = append(pairs, p)
					}
				}
			}
		}
	}
	return pairs, nil
}
