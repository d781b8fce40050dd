// Package sync implements the per-tenant Coordinator: the linear state
// machine that drives one sync run from loading credentials through
// recording a watermark.
package sync

// Phase is one step of a sync run's linear state machine.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLoading   Phase = "loading"
	PhasePlanning  Phase = "planning"
	PhaseFetching  Phase = "fetching"
	PhaseChunking  Phase = "chunking"
	PhaseUpserting Phase = "upserting"
	PhaseRecording Phase = "recording"
	PhaseSuccess   Phase = "success"
	PhaseFailed    Phase = "failed"
)

// validTransitions enumerates the only moves the state machine allows.
// Every phase but the two terminal ones can additionally jump straight to
// PhaseFailed on a non-recoverable error; that edge is checked separately
// in canTransitionTo rather than listed here for every row.
var validTransitions = map[Phase][]Phase{
	PhaseIdle:      {PhaseLoading},
	PhaseLoading:   {PhasePlanning},
	PhasePlanning:  {PhaseFetching},
	PhaseFetching:  {PhaseChunking, PhaseRecording}, // empty result skips straight to Recording
	PhaseChunking:  {PhaseUpserting},
	PhaseUpserting: {PhaseRecording},
	PhaseRecording: {PhaseSuccess, PhaseFailed},
}

func (p Phase) IsTerminal() bool {
	return p == PhaseSuccess || p == PhaseFailed
}

func (p Phase) canTransitionTo(target Phase) bool {
	if target == PhaseFailed {
		return !p.IsTerminal()
	}
	for _, valid := range validTransitions[p] {
		if valid == target {
			return true
		}
	}
	return false
}
