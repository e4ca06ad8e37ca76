package state

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNameValidator_Valid(t *testing.T) {
	assert.NoError(t, NameValidator("1"))
	assert.NoError(t, NameValidator("AS1"))
	assert.NoError(t, NameValidator("ab_cd"))
	assert.NoError(t, NameValidator("abcd-a.com"))
}

func TestNameValidator_Invalid(t *testing.T) {
	assert.Error(t, NameValidator("node name"))
	assert.Error(t, NameValidator(""))
	assert.Error(t, NameValidator("\t"))
	assert.Error(t, NameValidator("abcd-a.com\\hi"))
	assert.Error(t, NameValidator(strings.Repeat("a", 200)))
}

func validCfg() *SimCfg {
	return &SimCfg{
		Nodes: []NodeCfg{
			{Id: 1, Prefix: netip.MustParsePrefix("10.1.0.0/16")},
			{Id: 2, Prefix: netip.MustParsePrefix("10.2.0.0/16")},
			{Id: 3},
		},
		Graph:    []string{"1, 2", "2, 3"},
		Origin:   3,
		Observer: 1,
	}
}

func TestSimConfigValidator_Valid(t *testing.T) {
	assert.NoError(t, SimConfigValidator(validCfg()))
}

func TestSimConfigValidator_NoNodes(t *testing.T) {
	assert.ErrorContains(t, SimConfigValidator(&SimCfg{}), "topology has no nodes")
}

func TestSimConfigValidator_DuplicateNode(t *testing.T) {
	cfg := validCfg()
	cfg.Nodes[2].Id = 2
	assert.ErrorContains(t, SimConfigValidator(cfg), "duplicate node id: 2")
}

func TestSimConfigValidator_NonPositiveId(t *testing.T) {
	cfg := validCfg()
	cfg.Nodes[0].Id = 0
	assert.ErrorContains(t, SimConfigValidator(cfg), "must be positive")
}

func TestSimConfigValidator_BadLabel(t *testing.T) {
	cfg := validCfg()
	cfg.Nodes[0].Label = "two words"
	assert.ErrorContains(t, SimConfigValidator(cfg), "is not a valid name")
}

func TestSimConfigValidator_OverlappingPrefix(t *testing.T) {
	cfg := validCfg()
	cfg.Nodes[2].Prefix = netip.MustParsePrefix("10.0.0.0/8")
	assert.ErrorContains(t, SimConfigValidator(cfg), "overlaps")
}

func TestSimConfigValidator_HostBits(t *testing.T) {
	cfg := validCfg()
	cfg.Nodes[0].Prefix = netip.MustParsePrefix("10.1.0.1/16")
	assert.ErrorContains(t, SimConfigValidator(cfg), "did you mean 10.1.0.0/16?")
}

func TestSimConfigValidator_UnknownOrigin(t *testing.T) {
	cfg := validCfg()
	cfg.Origin = 9
	assert.ErrorContains(t, SimConfigValidator(cfg), "origin 9 not defined")
	cfg = validCfg()
	cfg.Observer = 9
	assert.ErrorContains(t, SimConfigValidator(cfg), "observer 9 not defined")
}

func TestSimConfigValidator_BadGraph(t *testing.T) {
	cfg := validCfg()
	cfg.Graph = append(cfg.Graph, "1, 4")
	assert.ErrorContains(t, SimConfigValidator(cfg), "4 is not a valid node/group")
}

func TestSimConfigValidator_DisabledNotInGraph(t *testing.T) {
	cfg := validCfg()
	cfg.Disabled = []string{"1, 3"}
	assert.ErrorContains(t, SimConfigValidator(cfg), "disabled link 1-3 is not part of the graph")
	cfg.Disabled = []string{"3, 2"}
	assert.NoError(t, SimConfigValidator(cfg))
}

func TestSimConfigValidator_NegativeFlightTime(t *testing.T) {
	cfg := validCfg()
	cfg.FlightTime = -time.Second
	assert.Error(t, SimConfigValidator(cfg))
}
