package workflow

// State is a document analysis status
type State string

const (
	StatePending  State = "PENDING"
	StateAnalyzed State = "ANALYZED"
	StateFailed   State = "FAILED"
)

// IsTerminal reports whether no trigger can move the document out of s.
// FAILED is not terminal: a retry or a manual entry can still complete it.
func (s State) IsTerminal() bool {
	return s == StateAnalyzed
}

func (s State) String() string {
	return string(s)
}

// IsValid returns true if s is a known document status
func (s State) IsValid() bool {
	switch s {
	case StatePending, StateAnalyzed, StateFailed:
		return true
	}
	return false
}
