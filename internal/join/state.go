package join

import "errors"

// State is the join workflow state.
type State int

const (
	// Idle: no club selected, modal closed.
	Idle State = iota
	// ModalOpen: club selected, passcode in progress.
	ModalOpen
	// Submitting: join request in flight, submit disabled.
	Submitting
	// Succeeded: club joined, handoff delivered.
	Succeeded
	// Failed: last attempt rejected, modal still open with the message set.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ModalOpen:
		return "modal_open"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidClub        = errors.New("club has no name")
	ErrInvalidTransition  = errors.New("invalid join workflow transition")
	ErrIncompletePasscode = errors.New("passcode is incomplete")
	ErrSubmitInFlight     = errors.New("a join request is already in flight")
	ErrStaleResponse      = errors.New("join response arrived for an abandoned session")
	ErrThrottled          = errors.New("too many join attempts")
)

// Messages shown to the user when the remote API gives no detail.
const (
	GenericFailureMessage = "Something went wrong while joining the club. Please try again."
	TimeoutMessage        = "The club service did not respond in time. Please try again."
	ThrottledMessage      = "Too many join attempts. Please wait a moment and try again."
)
