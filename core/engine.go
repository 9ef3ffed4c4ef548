package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/encodeous/meshwatch/perf"
	"github.com/encodeous/meshwatch/state"
)

// Engine is the goroutine-safe handle to the mesh health engine. Every call is
// serialized onto the main loop, so a route rebuild never observes a registry
// that is half way through a heartbeat.
type Engine struct {
	env   *state.Env
	state *state.State
	done  chan struct{}
}

type Option func(e *state.Env)

func WithLogger(l *slog.Logger) Option {
	return func(e *state.Env) {
		e.Log = l
	}
}

// WithClock replaces the wall clock used for heartbeat and alert timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *state.Env) {
		e.Clock = clock
	}
}

func WithCollector(c *perf.Collector) Option {
	return func(e *state.Env) {
		e.Metrics = c
	}
}

func NewEngine(cfg state.Config, opts ...Option) (*Engine, error) {
	if err := state.ConfigValidator(&cfg); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	env := &state.Env{
		DispatchChannel: make(chan func(*state.State) error, state.DispatchBufferSize),
		Config:          cfg,
		Context:         ctx,
		Cancel:          cancel,
		Log:             slog.Default(),
	}
	for _, opt := range opts {
		opt(env)
	}
	s := state.NewState(env)
	if err := initModules(s); err != nil {
		cancel(err)
		return nil, err
	}
	return &Engine{
		env:   env,
		state: s,
		done:  make(chan struct{}),
	}, nil
}

// Run blocks on the main loop until the engine is stopped.
func (e *Engine) Run() error {
	if e.env.Started.Swap(true) {
		return errors.New("engine already started")
	}
	defer close(e.done)
	return MainLoop(e.state, e.env.DispatchChannel)
}

// Stop cancels the engine and waits for the main loop to clean up.
func (e *Engine) Stop() {
	e.env.Cancel(context.Canceled)
	if !e.env.Started.Swap(true) {
		// never ran, clean up here
		Stop(e.state)
		close(e.done)
		return
	}
	<-e.done
}

// Done is closed once the engine has stopped and cleaned up.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) Env() *state.Env {
	return e.env
}

func (e *Engine) Register(desc state.NodeDescriptor) (*state.Node, error) {
	return state.Call(e.env, func(s *state.State) (*state.Node, error) {
		return Get[*MeshRegistry](s).Register(s, desc)
	})
}

// HandleHeartbeat returns false if the node is not registered.
func (e *Engine) HandleHeartbeat(id state.NodeId, sample state.TelemetrySample) (bool, error) {
	return state.Call(e.env, func(s *state.State) (bool, error) {
		return Get[*MeshRegistry](s).HandleHeartbeat(s, id, sample), nil
	})
}

// ResolveAlert returns false if the alert is unknown or already resolved.
func (e *Engine) ResolveAlert(id string) (bool, error) {
	return state.Call(e.env, func(s *state.State) (bool, error) {
		return Get[*AlertEngine](s).Resolve(s, id), nil
	})
}

func (e *Engine) GetNode(id state.NodeId) (*state.Node, error) {
	return state.Call(e.env, func(s *state.State) (*state.Node, error) {
		n, ok := Get[*MeshRegistry](s).Get(s, id)
		if !ok {
			return nil, state.ErrUnknownNode
		}
		return n, nil
	})
}

func (e *Engine) ListAllNodes() ([]*state.Node, error) {
	return state.Call(e.env, func(s *state.State) ([]*state.Node, error) {
		return Get[*MeshRegistry](s).ListAll(s), nil
	})
}

func (e *Engine) ListOnlineNodes() ([]*state.Node, error) {
	return state.Call(e.env, func(s *state.State) ([]*state.Node, error) {
		return Get[*MeshRegistry](s).ListOnline(s), nil
	})
}

// GetBestRoute returns false when no path exists, including when either end
// is unknown or not routable.
func (e *Engine) GetBestRoute(from, to state.NodeId) (state.Route, bool, error) {
	type result struct {
		route state.Route
		ok    bool
	}
	res, err := state.Call(e.env, func(s *state.State) (result, error) {
		r, ok := Get[*MeshRouter](s).GetBestRoute(s, from, to)
		return result{r, ok}, nil
	})
	return res.route, res.ok, err
}

func (e *Engine) GetRoutes(from state.NodeId) ([]state.Route, error) {
	return state.Call(e.env, func(s *state.State) ([]state.Route, error) {
		return Get[*MeshRouter](s).GetRoutes(s, from), nil
	})
}

func (e *Engine) ListActiveAlerts() ([]*state.Alert, error) {
	return state.Call(e.env, func(s *state.State) ([]*state.Alert, error) {
		return Get[*AlertEngine](s).ListActive(s), nil
	})
}

// ListAlerts includes resolved alerts still within the retention window.
func (e *Engine) ListAlerts() ([]*state.Alert, error) {
	return state.Call(e.env, func(s *state.State) ([]*state.Alert, error) {
		return Get[*AlertEngine](s).ListAll(s), nil
	})
}

func (e *Engine) GetNetworkHealthSummary() (state.Summary, error) {
	return state.Call(e.env, func(s *state.State) (state.Summary, error) {
		return NetworkSummary(s), nil
	})
}

// Sweep runs one liveness tick immediately.
func (e *Engine) Sweep() error {
	_, err := state.Call(e.env, func(s *state.State) (struct{}, error) {
		return struct{}{}, SweepNodes(s)
	})
	return err
}

// Subscribe streams engine events until cancel is called or the engine stops.
// Events are dropped rather than delivered late when the subscriber falls
// behind.
func (e *Engine) Subscribe(buf int) (<-chan state.Event, func(), error) {
	buf = max(buf, 1)
	raw := make(chan any, buf)
	closed, err := state.Call(e.env, func(s *state.State) (<-chan struct{}, error) {
		return Get[*MeshTrace](s).subscribe(raw), nil
	})
	if err != nil {
		return nil, nil, err
	}
	out := make(chan state.Event, buf)
	stop := make(chan struct{})
	go relayEvents(e.env, raw, out, stop, closed)

	var once sync.Once
	return out, func() { once.Do(func() { close(stop) }) }, nil
}
