package join

import (
	"context"

	"clubportal/internal/club"
	"clubportal/internal/passcode"
)

// Target is the element a click landed on.
type Target int

const (
	// TargetOverlay is the dimmed backdrop around the modal body.
	TargetOverlay Target = iota
	// TargetBody is anything inside the modal body.
	TargetBody
)

// Modal is the join dialog as a controlled view over a Controller.
type Modal struct {
	c *Controller
}

func NewModal(c *Controller) Modal {
	return Modal{c: c}
}

// Visible reports whether a club is selected and the dialog is open.
func (m Modal) Visible() bool {
	return m.c.Snapshot().Visible
}

// CanSubmit is recomputed from the current entry on every call.
func (m Modal) CanSubmit() bool {
	return m.c.Snapshot().CanSubmit
}

// Click dispatches a click. Clicks on the body stop there; only a click on
// the overlay closes the dialog. It reports whether the dialog closed.
func (m Modal) Click(target Target) bool {
	if target != TargetOverlay {
		return false
	}
	if !m.Visible() {
		return false
	}
	m.c.Close()
	return true
}

// Close is the explicit close control. It behaves like an overlay click.
func (m Modal) Close() {
	m.c.Close()
}

// Submit hands a complete passcode to the controller.
func (m Modal) Submit(ctx context.Context) error {
	if !m.CanSubmit() {
		if m.c.State() == Submitting {
			return ErrSubmitInFlight
		}
		return ErrIncompletePasscode
	}
	return m.c.Submit(ctx)
}

// assembleRequest builds the join request, or reports false while the
// entry is incomplete.
func assembleRequest(c club.Club, e passcode.Entry) (club.JoinRequest, bool) {
	code, ok := e.Code()
	if !ok {
		return club.JoinRequest{}, false
	}
	return club.JoinRequest{ClubName: c.Name, Passcode: code}, true
}
