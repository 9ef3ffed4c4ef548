package core

import (
	"slices"

	"github.com/encodeous/meshwatch/state"
)

// meshGc drops resolved alerts older than the retention window. Active alerts
// are never collected.
func meshGc(s *state.State) error {
	if s.AlertRetention <= 0 {
		return nil
	}
	cutoff := s.Now().Add(-s.AlertRetention)
	before := len(s.Alerts)
	s.Alerts = slices.DeleteFunc(s.Alerts, func(a *state.Alert) bool {
		return !a.Active() && a.ResolvedAt.Before(cutoff)
	})
	if pruned := before - len(s.Alerts); pruned > 0 {
		s.Log.Debug("pruned resolved alerts", "count", pruned)
	}
	return nil
}
