package workflow

// Trigger is an event that moves a document between statuses
type Trigger string

const (
	TriggerCompleteAnalysis Trigger = "COMPLETE_ANALYSIS"
	TriggerFailAnalysis     Trigger = "FAIL_ANALYSIS"
	TriggerRetrySucceeded   Trigger = "RETRY_SUCCEEDED"
	TriggerManualEntry      Trigger = "MANUAL_ENTRY"
)

func (t Trigger) String() string {
	return string(t)
}
