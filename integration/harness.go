//go:build integration

package integration

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/encodeous/bgpsim/core"
	"github.com/encodeous/bgpsim/state"
	"github.com/goccy/go-yaml"
)

type Signal chan bool

func NewSignal() Signal {
	return make(chan bool)
}
func (s Signal) Trigger() {
	select {
	case <-s:
	default:
		close(s)
	}
}
func (s Signal) Wait() {
	<-s
}

type lockedBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

// SimHarness runs the whole simulator against a topology file on disk and
// drives its console through a pipe.
type SimHarness struct {
	Cfg     state.SimCfg
	Dir     string
	Out     lockedBuffer
	Trace   lockedBuffer
	Stopped Signal

	in  *io.PipeWriter
	err error
}

func (h *SimHarness) NewNode(id state.NodeId) {
	h.Cfg.Nodes = append(h.Cfg.Nodes, state.NodeCfg{Id: id})
}

// Start writes the config, reads it back like the CLI does and starts the
// simulator in the background.
func (h *SimHarness) Start() error {
	cfgPath := filepath.Join(h.Dir, "topology.yaml")
	out, err := yaml.Marshal(&h.Cfg)
	if err != nil {
		return err
	}
	if err = os.WriteFile(cfgPath, out, 0600); err != nil {
		return err
	}
	cfg, err := core.ReadSimConfig(cfgPath)
	if err != nil {
		return err
	}

	r, w := io.Pipe()
	h.in = w
	h.Stopped = NewSignal()
	opts := core.Options{
		In:       r,
		Out:      &h.Out,
		LogLevel: slog.LevelDebug,
		LogOut:   io.Discard,
		Trace:    &h.Trace,
	}
	go func() {
		defer h.Stopped.Trigger()
		h.err = core.Start(*cfg, opts, nil)
	}()
	return nil
}

// Send writes console commands, one per line.
func (h *SimHarness) Send(lines ...string) error {
	_, err := fmt.Fprintln(h.in, strings.Join(lines, "\n"))
	return err
}

// WaitFor blocks until the console printed s.
func (h *SimHarness) WaitFor(s string, timeout time.Duration) error {
	deadline := time.After(timeout)
	for !strings.Contains(h.Out.String(), s) {
		select {
		case <-deadline:
			return fmt.Errorf("timed out waiting for %q, output:\n%s", s, h.Out.String())
		case <-h.Stopped:
			if !strings.Contains(h.Out.String(), s) {
				return fmt.Errorf("stopped before printing %q, output:\n%s", s, h.Out.String())
			}
		case <-time.After(5 * time.Millisecond):
		}
	}
	return nil
}

// Stop closes the console input and waits for the simulator to exit.
func (h *SimHarness) Stop() error {
	_ = h.in.Close()
	h.Stopped.Wait()
	return h.err
}
