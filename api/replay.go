package api

import (
	"time"

	"github.com/encodeous/meshwatch/state"
	"github.com/jellydator/ttlcache/v3"
)

type replayKey struct {
	Node state.NodeId
	Seq  uint64
}

// ReplayGuard remembers heartbeat sequence numbers for a short window so a
// frame delivered twice by the radio transport is only applied once.
type ReplayGuard struct {
	seen *ttlcache.Cache[replayKey, struct{}]
}

func NewReplayGuard(window time.Duration) *ReplayGuard {
	return &ReplayGuard{
		seen: ttlcache.New[replayKey, struct{}](
			ttlcache.WithTTL[replayKey, struct{}](window),
			ttlcache.WithDisableTouchOnHit[replayKey, struct{}](),
		),
	}
}

// Seen records (node, seq) and reports whether it was already recorded within
// the window.
func (g *ReplayGuard) Seen(node state.NodeId, seq uint64) bool {
	g.seen.DeleteExpired()
	_, loaded := g.seen.GetOrSet(replayKey{node, seq}, struct{}{})
	return loaded
}

// Forget drops (node, seq) so a retry of a frame the engine did not accept is
// not mistaken for a replay.
func (g *ReplayGuard) Forget(node state.NodeId, seq uint64) {
	g.seen.Delete(replayKey{node, seq})
}

func (g *ReplayGuard) Len() int {
	return g.seen.Len()
}
