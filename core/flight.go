package core

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/encodeous/bgpsim/state"
	"github.com/jellydator/ttlcache/v3"
)

// Flight is an advertisement still travelling along its link.
type Flight struct {
	From, To  state.NodeId
	Path      []state.NodeId
	LocalPref int
	Step      int
}

// Flights keeps a marker for every advertisement played within the last
// flight time. Markers expire on their own.
type Flights struct {
	cache   *ttlcache.Cache[state.LinkKey, Flight]
	log     *slog.Logger
	started bool
}

func NewFlights(ttl time.Duration, log *slog.Logger) *Flights {
	f := &Flights{}
	f.setup(ttl, log)
	return f
}

func (f *Flights) setup(ttl time.Duration, log *slog.Logger) {
	if ttl <= 0 {
		ttl = state.PacketFlightTime
	}
	if log == nil {
		log = slog.Default()
	}
	f.log = log
	f.cache = ttlcache.New[state.LinkKey, Flight](
		ttlcache.WithTTL[state.LinkKey, Flight](ttl),
		ttlcache.WithDisableTouchOnHit[state.LinkKey, Flight](),
	)
	f.cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[state.LinkKey, Flight]) {
		if reason == ttlcache.EvictionReasonExpired {
			fl := item.Value()
			f.log.Debug("packet landed", "from", fl.From, "to", fl.To, "step", fl.Step)
		}
	})
}

func (f *Flights) Init(s *state.State) error {
	f.setup(s.FlightTime, s.Log)
	f.started = true
	go f.cache.Start()
	return nil
}

func (f *Flights) Cleanup(s *state.State) error {
	if f.started {
		f.cache.Stop()
		f.started = false
	}
	return nil
}

func (f *Flights) Played(step int, e state.Event) {
	if e.Kind != state.EventAdvertise {
		return
	}
	f.cache.Set(state.MakeLinkKey(e.From, e.To), Flight{
		From:      e.From,
		To:        e.To,
		Path:      e.Path,
		LocalPref: e.LocalPref,
		Step:      step,
	}, ttlcache.DefaultTTL)
}

func (f *Flights) Cleared() {
	f.cache.DeleteAll()
}

// InFlight lists unexpired markers, oldest step first.
func (f *Flights) InFlight() []Flight {
	out := make([]Flight, 0)
	for _, k := range f.cache.Keys() {
		if it := f.cache.Get(k); it != nil {
			out = append(out, it.Value())
		}
	}
	slices.SortFunc(out, func(a, b Flight) int {
		return a.Step - b.Step
	})
	return out
}
