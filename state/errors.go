package state

import "errors"

var (
	ErrUnknownNode      = errors.New("unknown node")
	ErrDuplicateNode    = errors.New("node already registered")
	ErrInvalidTelemetry = errors.New("invalid telemetry")
	ErrEngineStopped    = errors.New("engine stopped")
)
