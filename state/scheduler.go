package state

import (
	"fmt"
	"time"
)

// Dispatch Dispatches the function to run on the main thread without waiting for it to complete
func (e *Env) Dispatch(fun func(*State) error) {
	defer func() {
		if r := recover(); r != nil {
			// the main loop has stopped and closed the channel
			e.Cancel(fmt.Errorf("panic: %v", r))
		}
	}()
	e.DispatchChannel <- fun
}

// DispatchWait Dispatches the function to run on the main thread and wait for it to complete
func (e *Env) DispatchWait(fun func(*State) (any, error)) (any, error) {
	ret := make(chan Pair[any, error], 1)
	e.Dispatch(func(s *State) error {
		res, err := fun(s)
		ret <- Pair[any, error]{res, err}
		return err
	})
	select {
	case res := <-ret:
		return res.V1, res.V2
	case <-e.Context.Done():
		return nil, e.Context.Err()
	}
}

// RepeatTask runs fun on the main thread every delay until it returns false
// or the context ends.
func (e *Env) RepeatTask(fun func(*State) bool, delay time.Duration) {
	go e.repeatedTask(fun, delay)
}

func (e *Env) repeatedTask(fun func(*State) bool, delay time.Duration) {
	for e.Context.Err() == nil {
		res, err := e.DispatchWait(func(s *State) (any, error) {
			return fun(s), nil
		})
		if err != nil || !res.(bool) {
			return
		}
		select {
		case <-time.After(delay):
		case <-e.Context.Done():
			return
		}
	}
}
