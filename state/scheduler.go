package state

import (
	"fmt"
	"time"
)

// Dispatch Dispatches the function to run on the main thread without waiting for it to complete
func (e *Env) Dispatch(fun func(*State) error) {
	defer func() {
		if r := recover(); r != nil {
			e.Cancel(fmt.Errorf("panic: %v", r))
		}
	}()
	select {
	case e.DispatchChannel <- fun:
	case <-e.Context.Done():
	}
}

// TryDispatch queues the function only if the dispatch channel has room. It is
// safe to call from the main thread itself.
func (e *Env) TryDispatch(fun func(*State) error) bool {
	select {
	case e.DispatchChannel <- fun:
		return true
	default:
		return false
	}
}

// DispatchWait Dispatches the function to run on the main thread and wait for it to complete.
// Errors returned by fun are handed back to the caller and do not stop the main loop.
func (e *Env) DispatchWait(fun func(*State) (any, error)) (any, error) {
	if e.Context.Err() != nil {
		return nil, ErrEngineStopped
	}
	ret := make(chan Pair[any, error], 1)
	select {
	case e.DispatchChannel <- func(s *State) error {
		res, err := fun(s)
		ret <- Pair[any, error]{res, err}
		return nil
	}:
	case <-e.Context.Done():
		return nil, ErrEngineStopped
	}
	select {
	case res := <-ret:
		return res.V1, res.V2
	case <-e.Context.Done():
		return nil, ErrEngineStopped
	}
}

// Call is a typed DispatchWait.
func Call[T any](e *Env, fun func(*State) (T, error)) (T, error) {
	res, err := e.DispatchWait(func(s *State) (any, error) {
		return fun(s)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

func (e *Env) ScheduleTask(fun func(*State) error, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if e.Context.Err() != nil {
			return
		}
		e.Dispatch(fun)
	})
}

func (e *Env) repeatedTask(fun func(*State) error, delay time.Duration) {
	ticker := time.NewTicker(delay)
	defer ticker.Stop()
	for {
		select {
		case <-e.Context.Done():
			return
		case <-ticker.C:
			e.Dispatch(fun)
		}
	}
}

// RepeatTask dispatches fun every delay until the context is cancelled
func (e *Env) RepeatTask(fun func(*State) error, delay time.Duration) {
	go e.repeatedTask(fun, delay)
}
