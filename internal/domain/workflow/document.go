package workflow

import (
	"context"
	"fmt"
	"sync"
)

var documentLifecycle = sync.OnceValue(func() StateMachineBuilder {
	b := NewBuilder()

	b.Configure(StatePending).
		Permit(TriggerCompleteAnalysis, StateAnalyzed).
		Permit(TriggerFailAnalysis, StateFailed).
		Permit(TriggerManualEntry, StateAnalyzed)

	b.Configure(StateFailed).
		Permit(TriggerRetrySucceeded, StateAnalyzed).
		Permit(TriggerManualEntry, StateAnalyzed)

	b.Configure(StateAnalyzed)

	return b
})

// NewDocumentMachine returns the document lifecycle machine positioned at status.
//
//	PENDING --COMPLETE_ANALYSIS--> ANALYZED
//	PENDING --FAIL_ANALYSIS------> FAILED
//	FAILED  --RETRY_SUCCEEDED----> ANALYZED
//	PENDING|FAILED --MANUAL_ENTRY--> ANALYZED
func NewDocumentMachine(status string) (StateMachine, error) {
	state := State(status)
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, status)
	}
	return documentLifecycle().Build(state), nil
}

// NextState resolves the status reached by firing trigger from status without
// keeping the machine around.
func NextState(ctx context.Context, status string, trigger Trigger) (State, error) {
	m, err := NewDocumentMachine(status)
	if err != nil {
		return "", err
	}
	if err := m.Fire(ctx, trigger); err != nil {
		return "", err
	}
	return m.State(), nil
}

// Permits reports whether trigger is configured out of status. Unknown statuses
// permit nothing.
func Permits(status string, trigger Trigger) bool {
	m, err := NewDocumentMachine(status)
	if err != nil {
		return false
	}
	return m.CanFire(trigger)
}
