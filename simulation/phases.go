package simulation

import "time"

// Phase is the simulator's coarse session stage. It is a pure function
// of elapsed wall-clock time, except for the explicit terminal states.
type Phase string

const (
	PhaseNotStarted  Phase = "not_started"
	PhaseOpening     Phase = "opening"
	PhaseExploration Phase = "exploration"
	PhaseDeepening   Phase = "deepening"
	PhaseClosing     Phase = "closing"
	PhaseEnded       Phase = "ended"
)

// PhaseFor maps elapsed session time onto the active phase. "ended" is
// never returned here; it is reached only by an explicit End.
func PhaseFor(elapsed time.Duration) Phase {
	minutes := elapsed.Minutes()
	switch {
	case minutes < 5:
		return PhaseOpening
	case minutes < 15:
		return PhaseExploration
	case minutes < 30:
		return PhaseDeepening
	default:
		return PhaseClosing
	}
}
