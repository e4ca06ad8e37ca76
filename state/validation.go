package state

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
)

var namePattern, _ = regexp.Compile("^[0-9A-Za-z._-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

// NameValidator checks node labels.
func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func SimConfigValidator(cfg *SimCfg) error {
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("topology has no nodes")
	}
	ids := make([]NodeId, 0, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		if node.Id <= 0 {
			return fmt.Errorf("node id %d must be positive", node.Id)
		}
		if slices.Contains(ids, node.Id) {
			return fmt.Errorf("duplicate node id: %d", node.Id)
		}
		ids = append(ids, node.Id)
		if node.Label != "" {
			if err := NameValidator(node.Label); err != nil {
				return err
			}
		}
	}
	for i, a := range cfg.Nodes {
		if !a.Prefix.IsValid() {
			continue
		}
		if a.Prefix != a.Prefix.Masked() {
			return fmt.Errorf("prefix %s of node %d has host bits set, did you mean %s?", a.Prefix, a.Id, a.Prefix.Masked())
		}
		for _, b := range cfg.Nodes[i+1:] {
			if b.Prefix.IsValid() && a.Prefix.Overlaps(b.Prefix) {
				return fmt.Errorf("prefix %s of node %d overlaps prefix %s of node %d", a.Prefix, a.Id, b.Prefix, b.Id)
			}
		}
	}
	if !cfg.IsNode(cfg.Origin) {
		return fmt.Errorf("origin %d not defined", cfg.Origin)
	}
	if !cfg.IsNode(cfg.Observer) {
		return fmt.Errorf("observer %d not defined", cfg.Observer)
	}
	edges, err := cfg.Edges()
	if err != nil {
		return err
	}
	disabled, err := cfg.DisabledEdges()
	if err != nil {
		return err
	}
	for _, d := range disabled {
		if !slices.Contains(edges, d) {
			return fmt.Errorf("disabled link %d-%d is not part of the graph", d.V1, d.V2)
		}
	}
	if cfg.FlightTime < 0 {
		return fmt.Errorf("flight_time must not be negative")
	}
	return nil
}
