package state

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type SimModule interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on a single Goroutine
type State struct {
	*Env
	Topology *Topology
	Modules  map[string]SimModule
	// init order, cleanup runs in reverse
	ModuleOrder []string
}

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan func(s *State) error
	SimCfg
	Context  context.Context
	Cancel   context.CancelCauseFunc
	Log      *slog.Logger
	Started  atomic.Bool
	Stopping atomic.Bool
}
