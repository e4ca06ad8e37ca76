package core

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/encodeous/bgpsim/state"
)

func Get[T state.SimModule](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}

func parseNodeId(s string) (state.NodeId, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%q is not a node id", s)
	}
	return state.NodeId(v), nil
}

func parseNodePair(a, b string) (state.NodeId, state.NodeId, error) {
	x, err := parseNodeId(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := parseNodeId(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
