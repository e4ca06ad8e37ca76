package state

import (
	"fmt"
	"net/netip"
)

type EventKind int

const (
	// EventInit is emitted once, when the origin installs its own route.
	EventInit EventKind = iota
	// EventAdvertise is one hop of propagation.
	EventAdvertise
	// EventComplete ends every run and carries the observer's best path.
	EventComplete
)

func (k EventKind) String() string {
	switch k {
	case EventInit:
		return "init"
	case EventAdvertise:
		return "advertise"
	case EventComplete:
		return "complete"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one step of a simulation run. Tables is a snapshot owned by the
// event; it must not be mutated.
type Event struct {
	Kind    EventKind
	Message string
	Prefix  netip.Prefix
	// Origin is set on init events.
	Origin NodeId
	// From and To are set on advertise events.
	From, To NodeId
	// Path is the installed path on advertise events and the observer's
	// selected path on complete events. Nearest-first.
	Path      []NodeId
	LocalPref int
	// Observer is set on complete events.
	Observer NodeId
	Tables   Tables
}

func (e Event) String() string {
	switch e.Kind {
	case EventInit:
		return fmt.Sprintf("INIT %s %s", e.Origin, e.Prefix)
	case EventAdvertise:
		return fmt.Sprintf("ADVERTISE %s -> %s %s lp %d", e.From, e.To, PathString(e.Path), e.LocalPref)
	case EventComplete:
		return fmt.Sprintf("COMPLETE %s %s", e.Observer, PathString(e.Path))
	}
	return e.Kind.String()
}

// EventRecord is the serialized form of an Event.
type EventRecord struct {
	Step      int                `yaml:"step"`
	Kind      string             `yaml:"kind"`
	Message   string             `yaml:"message"`
	Prefix    netip.Prefix       `yaml:"prefix"`
	Origin    NodeId             `yaml:"origin,omitempty"`
	Observer  NodeId             `yaml:"observer,omitempty"`
	From      NodeId             `yaml:"from,omitempty"`
	To        NodeId             `yaml:"to,omitempty"`
	Path      []NodeId           `yaml:"path,omitempty"`
	LocalPref int                `yaml:"local_pref,omitempty"`
	Tables    map[NodeId][]Route `yaml:"tables,omitempty"`
}

// Record converts the event for serialization. Tables are only included
// when withTables is set.
func (e Event) Record(step int, withTables bool) EventRecord {
	rec := EventRecord{
		Step:      step,
		Kind:      e.Kind.String(),
		Message:   e.Message,
		Prefix:    e.Prefix,
		Origin:    e.Origin,
		Observer:  e.Observer,
		From:      e.From,
		To:        e.To,
		Path:      e.Path,
		LocalPref: e.LocalPref,
	}
	if withTables {
		rec.Tables = e.Tables.Export()
	}
	return rec
}
