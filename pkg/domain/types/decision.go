package types

import "fmt"

// DecisionAction represents the outcome of a semantic write decision
type DecisionAction string

const (
	DecisionCreate   DecisionAction = "CREATE"
	DecisionUpdate   DecisionAction = "UPDATE"
	DecisionRecreate DecisionAction = "RECREATE"
	DecisionSkip     DecisionAction = "SKIP"
)

// AllDecisionActions returns all valid decision actions
func AllDecisionActions() []DecisionAction {
	return []DecisionAction{
		DecisionCreate,
		DecisionUpdate,
		DecisionRecreate,
		DecisionSkip,
	}
}

// IsValid checks if the decision action is valid
func (a DecisionAction) IsValid() bool {
	switch a {
	case DecisionCreate,
		DecisionUpdate,
		DecisionRecreate,
		DecisionSkip:
		return true
	default:
		return false
	}
}

// String returns the string representation of the decision action
func (a DecisionAction) String() string {
	return string(a)
}

// EpisodicAction represents the outcome of an episodic capture decision
type EpisodicAction string

const (
	EpisodicCreate EpisodicAction = "CREATE"
	EpisodicMerge  EpisodicAction = "MERGE"
	EpisodicSkip   EpisodicAction = "SKIP"
)

// IsValid checks if the episodic action is valid
func (a EpisodicAction) IsValid() bool {
	switch a {
	case EpisodicCreate,
		EpisodicMerge,
		EpisodicSkip:
		return true
	default:
		return false
	}
}

// String returns the string representation of the episodic action
func (a EpisodicAction) String() string {
	return string(a)
}

// ParseDecisionAction parses a string into a DecisionAction
func ParseDecisionAction(s string) (DecisionAction, error) {
	action := DecisionAction(s)
	if !action.IsValid() {
		return "", fmt.Errorf("invalid decision action: %s", s)
	}
	return action, nil
}
