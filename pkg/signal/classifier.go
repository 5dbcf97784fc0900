package signal

import "errors"

// SignalClass categorizes a signal for scheduling.
type SignalClass string

const (
	ClassCognitive SignalClass = "COGNITIVE"
	ClassControl   SignalClass = "CONTROL"
	ClassExecution SignalClass = "EXECUTION"
	ClassFeedback  SignalClass = "FEEDBACK"
)

// Priority orders delivery relative to other signals.
type Priority string

const (
	// PriorityPreemptive bypasses normal ordering in a real scheduler.
	// Only CONTROL signals carry it.
	PriorityPreemptive Priority = "PREEMPTIVE"
	PriorityNormal     Priority = "NORMAL"
)

// ErrOrphanFeedback is returned when a feedback signal carries no parent.
// Every feedback signal must reference a causally prior signal.
var ErrOrphanFeedback = errors.New("signal: feedback signal must reference a parent signal")

var classByKeyword = map[string]SignalClass{
	"reason":   ClassCognitive,
	"plan":     ClassCognitive,
	"simulate": ClassCognitive,
	"think":    ClassCognitive,

	"pause":       ClassControl,
	"resume":      ClassControl,
	"halt":        ClassControl,
	"reconfigure": ClassControl,

	"execute":  ClassExecution,
	"dispatch": ClassExecution,
	"invoke":   ClassExecution,
	"run":      ClassExecution,

	"feedback": ClassFeedback,
	"outcome":  ClassFeedback,
	"error":    ClassFeedback,
	"metric":   ClassFeedback,
}

// Classify maps a signal type keyword to its class. Unknown keywords default
// to COGNITIVE.
func Classify(signalType string) SignalClass {
	if c, ok := classByKeyword[signalType]; ok {
		return c
	}
	return ClassCognitive
}

// ValidateFeedback checks the causal-parent requirement for feedback signals.
func ValidateFeedback(parentSignalID string) error {
	if parentSignalID == "" {
		return ErrOrphanFeedback
	}
	return nil
}

// PriorityOf returns the scheduling priority for a class. CONTROL is always
// preemptive; everything else is normal.
func PriorityOf(class SignalClass) Priority {
	if class == ClassControl {
		return PriorityPreemptive
	}
	return PriorityNormal
}
