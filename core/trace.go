package core

import (
	"github.com/dustin/go-broadcast"
	"github.com/encodeous/meshwatch/perf"
	"github.com/encodeous/meshwatch/state"
)

// MeshTrace fans status changes and alert notifications out to subscribers.
// Publishing never blocks the main loop, a full buffer drops the event.
type MeshTrace struct {
	broadcast.Broadcaster
	subs   map[chan any]struct{}
	closed chan struct{}
}

func (n *MeshTrace) Init(s *state.State) error {
	n.Broadcaster = broadcast.NewBroadcaster(state.TraceBufferSize)
	n.subs = make(map[chan any]struct{})
	n.closed = make(chan struct{})
	return nil
}

func (n *MeshTrace) Cleanup(s *state.State) error {
	// relays are still draining, so unregistering cannot block the broadcaster
	for ch := range n.subs {
		n.Broadcaster.Unregister(ch)
	}
	clear(n.subs)
	err := n.Broadcaster.Close()
	close(n.closed)
	return err
}

func (n *MeshTrace) Publish(s *state.State, ev state.Event) {
	if !n.Broadcaster.TrySubmit(ev) {
		perf.EventsDropped.Add(1)
		s.Log.Warn("event dropped, trace buffer full", "type", ev.Type)
	}
}

func (n *MeshTrace) subscribe(ch chan any) <-chan struct{} {
	n.Broadcaster.Register(ch)
	n.subs[ch] = struct{}{}
	return n.closed
}

func (n *MeshTrace) unsubscribe(ch chan any) {
	if _, ok := n.subs[ch]; !ok {
		return
	}
	delete(n.subs, ch)
	n.Broadcaster.Unregister(ch)
}

// relayEvents converts broadcaster messages into typed events. It keeps
// draining raw until the channel is unregistered so the broadcaster goroutine
// never blocks on a departed subscriber.
func relayEvents(env *state.Env, raw chan any, out chan<- state.Event, stop, closed <-chan struct{}) {
	defer close(out)
	forward := func(m any) {
		ev, ok := m.(state.Event)
		if !ok {
			return
		}
		select {
		case out <- ev:
		default:
			perf.EventsDropped.Add(1)
		}
	}
	for {
		select {
		case m := <-raw:
			forward(m)
		case <-closed:
			return
		case <-stop:
			unreg := make(chan error, 1)
			go func() {
				_, err := env.DispatchWait(func(s *state.State) (any, error) {
					Get[*MeshTrace](s).unsubscribe(raw)
					return nil, nil
				})
				unreg <- err
			}()
			for {
				select {
				case <-raw:
				case err := <-unreg:
					if err == nil {
						return
					}
					// engine is stopping, cleanup unregisters us
					unreg = nil
				case <-closed:
					return
				}
			}
		}
	}
}
