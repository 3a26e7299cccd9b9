// Package status defines shared run-model types for regcheck.
// run states and outcome kinds used by runner, outcome, progress and notify packages.
package status

// State is a step of a single scenario run.
// Start → PageLoaded → ElementResolved → FormFilled → Submitted → terminal.
type State string

// run states, in the order a successful run passes through them.
const (
	StateStart           State = "start"
	StatePageLoaded      State = "page-loaded"
	StateElementResolved State = "element-resolved"
	StateFormFilled      State = "form-filled"
	StateSubmitted       State = "submitted"

	// terminal states
	StateSuccess        State = "success"
	StatePaymentPending State = "payment-pending"
	StateGenericSuccess State = "generic-success"
	StateFailure        State = "failure"
	StateTimeout        State = "timeout"
	StateAborted        State = "aborted" // resolution or interaction error stopped the run
)

// Terminal returns true if no transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StatePaymentPending, StateGenericSuccess, StateFailure, StateTimeout, StateAborted:
		return true
	}
	return false
}

// Passed returns true for terminal states counted as a successful registration.
func (s State) Passed() bool {
	return s == StateSuccess || s == StatePaymentPending || s == StateGenericSuccess
}

// Reportable returns true for terminal states handed to failure reporters.
func (s State) Reportable() bool {
	return s == StateFailure || s == StateTimeout || s == StateAborted
}

// Outcome is the classified result of a submission.
type Outcome string

// outcome kinds, in default signal priority order.
const (
	OutcomeSuccess        Outcome = "success"         // explicit confirmation text or element
	OutcomePaymentPending Outcome = "payment-pending" // third-party payment embed appeared
	OutcomeGenericSuccess Outcome = "generic-success" // generic "success"/"thank you" text
	OutcomeFailure        Outcome = "failure"         // explicit error text
	OutcomeTimeout        Outcome = "timeout"         // no signal within the wait budget
)

// State maps an outcome to its terminal run state.
func (o Outcome) State() State {
	switch o {
	case OutcomeSuccess:
		return StateSuccess
	case OutcomePaymentPending:
		return StatePaymentPending
	case OutcomeGenericSuccess:
		return StateGenericSuccess
	case OutcomeFailure:
		return StateFailure
	default:
		return StateTimeout
	}
}

// ParseOutcome converts a signal kind name into an Outcome. Timeout is not a signal kind.
func ParseOutcome(s string) (Outcome, bool) {
	switch o := Outcome(s); o {
	case OutcomeSuccess, OutcomePaymentPending, OutcomeGenericSuccess, OutcomeFailure:
		return o, true
	}
	return "", false
}
