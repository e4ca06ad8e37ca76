package core

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-broadcast"
	"github.com/encodeous/bgpsim/state"
	"github.com/goccy/go-yaml"
)

// TraceMsg is what Trace subscribers receive. Reset is set when the player
// discarded its run; Event is meaningless then.
type TraceMsg struct {
	Step  int
	Event state.Event
	Reset bool
}

// Trace fans played events out to any number of subscribers.
type Trace struct {
	broadcast.Broadcaster
	submitted atomic.Int64
	done      chan struct{}
	writers   sync.WaitGroup
	closed    bool
}

func (n *Trace) Init(s *state.State) error {
	n.Broadcaster = broadcast.NewBroadcaster(1024)
	n.done = make(chan struct{})
	return nil
}

// Cleanup lets every stream catch up, then shuts the broadcaster down.
func (n *Trace) Cleanup(s *state.State) error {
	if n.closed || n.Broadcaster == nil {
		return nil
	}
	n.closed = true
	close(n.done)
	n.writers.Wait()
	return n.Broadcaster.Close()
}

func (n *Trace) Played(step int, e state.Event) {
	n.submit(TraceMsg{Step: step, Event: e})
}

func (n *Trace) Cleared() {
	n.submit(TraceMsg{Reset: true})
}

func (n *Trace) submit(m TraceMsg) {
	n.submitted.Add(1)
	n.Submit(m)
}

// Subscribe returns a channel receiving every TraceMsg. The channel must be
// drained until cancel is called.
func (n *Trace) Subscribe(buf int) (<-chan any, func()) {
	ch := make(chan any, buf)
	n.Register(ch)
	return ch, func() {
		n.Unregister(ch)
	}
}

// Stream writes every played event to w as a YAML document until the trace
// is cleaned up. Tables are included when withTables is set.
func (n *Trace) Stream(w io.Writer, withTables bool) {
	ch := make(chan any, 1024)
	n.Register(ch)
	base := n.submitted.Load()
	n.writers.Add(1)
	go func() {
		defer n.writers.Done()
		defer n.Unregister(ch)
		received := int64(0)
		write := func(m any) {
			received++
			writeTraceMsg(w, m, withTables)
		}
		for {
			select {
			case m := <-ch:
				write(m)
			case <-n.done:
				deadline := time.After(time.Second)
				for received < n.submitted.Load()-base {
					select {
					case m := <-ch:
						write(m)
					case <-deadline:
						return
					}
				}
				return
			}
		}
	}()
}

func writeTraceMsg(w io.Writer, m any, withTables bool) {
	msg, ok := m.(TraceMsg)
	if !ok {
		return
	}
	if msg.Reset {
		_, _ = fmt.Fprintln(w, "--- # reset")
		return
	}
	if err := WriteEvent(w, msg.Step, msg.Event, withTables); err != nil {
		_, _ = fmt.Fprintf(w, "--- # step %d: %v\n", msg.Step, err)
	}
}

// WriteEvent writes a single event as a YAML document.
func WriteEvent(w io.Writer, step int, e state.Event, withTables bool) error {
	out, err := yaml.Marshal(e.Record(step, withTables))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "---\n%s", out)
	return err
}
