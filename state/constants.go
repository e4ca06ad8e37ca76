package state

import "time"

var (
	// PacketFlightTime is how long an advertisement stays "in flight" for the
	// presentation layer before its table snapshot settles.
	PacketFlightTime = 500 * time.Millisecond

	// CanvasCenter is the centre of the default layout.
	CanvasCenter = Position{X: 400, Y: 300}

	// DispatchQueueSize bounds the number of pending main loop tasks.
	DispatchQueueSize = 128
)

const DefaultConfigPath = "topology.yaml"

// Config paths, overridable by flags.
var (
	ConfigPath = DefaultConfigPath
)

// Debug switches, set by flags.
var (
	DBG_log_events = false
	DBG_log_tables = false
)
