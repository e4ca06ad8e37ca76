//go:build integration

package integration

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/bgpsim/state"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	state.DBG_log_events = true
	os.Exit(m.Run())
}

// newHarness is the six node ring with chords 1-4 and 2-5, AS6 originating.
func newHarness(t *testing.T) *SimHarness {
	h := &SimHarness{Dir: t.TempDir()}
	for id := state.NodeId(1); id <= 6; id++ {
		h.NewNode(id)
	}
	h.Cfg.Graph = []string{
		"1, 2", "2, 3", "3, 4", "4, 5", "5, 6", "6, 1",
		"1, 4", "2, 5",
	}
	h.Cfg.Origin = 6
	h.Cfg.Observer = 1
	h.Cfg.Seed = 9
	return h
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)
	require.NoError(t, h.Start())
	require.NoError(t, h.Send("status"))
	require.NoError(t, h.WaitFor("state: idle", time.Second))
	assert.NoError(t, h.Stop())
}

func TestPlayToCompletion(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)
	require.NoError(t, h.Start())
	require.NoError(t, h.Send("prepare", "play 2ms"))
	require.NoError(t, h.WaitFor("[18/18] Path selection complete", 5*time.Second))
	require.NoError(t, h.Send("lookup 1 10.6.0.1"))
	require.NoError(t, h.WaitFor("AS1 reaches 10.6.0.1 via AS1", time.Second))
	assert.NoError(t, h.Stop())

	assert.Equal(t, 18, strings.Count(h.Trace.String(), "---\n"))
}

func TestDisabledLinksFromConfig(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)
	h.Cfg.Disabled = []string{"2, 3", "3, 4"}
	require.NoError(t, h.Start())
	require.NoError(t, h.Send("prepare 6 3", "play 1ms"))
	require.NoError(t, h.WaitFor("Path selection complete: AS3 uses (none)", 5*time.Second))
	require.NoError(t, h.Send("tables 3"))
	require.NoError(t, h.WaitFor("(no routes)", time.Second))
	assert.NoError(t, h.Stop())
}

func TestEditWhilePlaying(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)
	require.NoError(t, h.Start())
	require.NoError(t, h.Send("play 20ms"))
	require.NoError(t, h.WaitFor("[3/18]", 5*time.Second))
	require.NoError(t, h.Send("toggle 1 6"))
	require.NoError(t, h.WaitFor("topology changed, the prepared run was discarded", time.Second))
	require.NoError(t, h.Send("status"))
	require.NoError(t, h.WaitFor("state: idle", time.Second))
	assert.NoError(t, h.Stop())

	assert.NotContains(t, h.Out.String(), "[18/18]")
	assert.Contains(t, h.Trace.String(), "--- # reset")
}
