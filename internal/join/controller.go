// Package join implements the club join workflow: select a club from the
// search results, enter its passcode, submit, and hand off to the
// confirmation screen.
package join

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"clubportal/internal/club"
	"clubportal/internal/passcode"
)

// DefaultTimeout bounds a single join call.
const DefaultTimeout = 15 * time.Second

// Joiner is the remote join collaborator.
type Joiner interface {
	Join(ctx context.Context, req club.JoinRequest) error
}

// Navigator receives the handoff after a successful join.
type Navigator interface {
	Navigate(h club.Handoff)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(h club.Handoff)

func (f NavigatorFunc) Navigate(h club.Handoff) { f(h) }

// Config tunes a Controller. Zero values pick the defaults.
type Config struct {
	PasscodeLength int
	Timeout        time.Duration
	// Limiter throttles submissions; nil means unlimited.
	Limiter *rate.Limiter
	Focuser passcode.Focuser
	Logger  *slog.Logger
}

// View is a consistent snapshot of the workflow for rendering.
type View struct {
	State          State
	Visible        bool
	Club           club.Club
	Boxes          []string
	PasscodeLength int
	CanSubmit      bool
	Message        string
}

// Controller owns the join workflow state. All methods are safe for
// concurrent use; the join call itself runs without holding the lock so a
// Close can land while a request is in flight.
type Controller struct {
	joiner    Joiner
	navigator Navigator
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *slog.Logger
	tracer    trace.Tracer
	outcomes  metric.Int64Counter

	mu       sync.Mutex
	state    State
	selected *club.Club
	input    *passcode.Input
	attempt  uuid.UUID
	message  string
	handoff  *club.Handoff
}

func NewController(joiner Joiner, navigator Navigator, cfg Config) (*Controller, error) {
	if cfg.PasscodeLength == 0 {
		cfg.PasscodeLength = passcode.DefaultLength
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	input, err := passcode.NewInput(cfg.PasscodeLength, cfg.Focuser, nil)
	if err != nil {
		return nil, fmt.Errorf("new join controller: %w", err)
	}

	outcomes, err := otel.Meter("clubportal/join").Int64Counter(
		"club.join.outcomes",
		metric.WithDescription("Join submissions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create join outcome counter: %w", err)
	}

	return &Controller{
		joiner:    joiner,
		navigator: navigator,
		timeout:   cfg.Timeout,
		limiter:   cfg.Limiter,
		logger:    cfg.Logger,
		tracer:    otel.Tracer("clubportal/join"),
		outcomes:  outcomes,
		state:     Idle,
		input:     input,
	}, nil
}

// Select opens the modal for c. Selecting while another club is open
// switches to the new club with an empty passcode.
func (c *Controller) Select(selected club.Club) error {
	if strings.TrimSpace(selected.Name) == "" {
		return ErrInvalidClub
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Submitting {
		return ErrSubmitInFlight
	}
	c.selected = &selected
	c.state = ModalOpen
	c.message = ""
	c.input.Reset()
	return nil
}

// Close clears the selection and the passcode. Any join response still in
// flight is discarded when it arrives.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Submitting {
		c.logger.Info("join modal closed while request in flight", "club_id", c.selected.ID)
	}
	c.selected = nil
	c.state = Idle
	c.message = ""
	c.attempt = uuid.Nil
	c.input.Reset()
}

// Type forwards a box edit to the passcode control. Edits are ignored
// while the modal is closed or a join is in flight.
func (c *Controller) Type(position int, value string) bool {
	return c.edit(func(in *passcode.Input) bool { return in.Type(position, value) })
}

// Backspace forwards a backspace key press to the passcode control.
func (c *Controller) Backspace(position int) {
	c.edit(func(in *passcode.Input) bool {
		before := in.Entry()
		in.Backspace(position)
		return !before.Equal(in.Entry())
	})
}

// Paste forwards a multi-digit paste to the passcode control.
func (c *Controller) Paste(position int, text string) bool {
	return c.edit(func(in *passcode.Input) bool { return in.Paste(position, text) })
}

func (c *Controller) edit(apply func(*passcode.Input) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ModalOpen && c.state != Failed {
		return false
	}
	changed := apply(c.input)
	if changed && c.state == Failed {
		c.state = ModalOpen
		c.message = ""
	}
	return changed
}

// Submit sends the join request for the selected club. On success the
// navigator receives the handoff; on failure the modal stays open with the
// passcode intact and a message set.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case ModalOpen, Failed:
	case Submitting:
		c.mu.Unlock()
		return ErrSubmitInFlight
	default:
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	selected := *c.selected
	req, ok := assembleRequest(selected, c.input.Entry())
	if !ok {
		c.mu.Unlock()
		return ErrIncompletePasscode
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.state = Failed
		c.message = ThrottledMessage
		c.mu.Unlock()
		c.record(ctx, "throttled")
		return ErrThrottled
	}
	attempt := uuid.New()
	c.attempt = attempt
	c.state = Submitting
	c.message = ""
	c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "join.submit",
		trace.WithAttributes(
			attribute.String("club.id", selected.ID.String()),
			attribute.String("join.attempt", attempt.String()),
		),
	)
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.joiner.Join(callCtx, req)
	cancel()

	c.mu.Lock()
	if c.state != Submitting || c.attempt != attempt || c.selected == nil || c.selected.ID != selected.ID {
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "discarding stale join response", "club_id", selected.ID, "attempt", attempt)
		span.AddEvent("stale_response_discarded")
		c.record(ctx, "stale")
		return ErrStaleResponse
	}
	c.attempt = uuid.Nil

	if err != nil {
		c.state = Failed
		c.message = failureMessage(err)
		c.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "join failed")
		c.logger.WarnContext(ctx, "club join failed", "club_id", selected.ID, "error", err)
		c.record(ctx, "failed")
		return fmt.Errorf("join club %q: %w", selected.Name, err)
	}

	handoff := club.NewJoinHandoff(selected)
	c.state = Succeeded
	c.selected = nil
	c.message = ""
	c.handoff = &handoff
	c.input.Reset()
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "club joined", "club_id", selected.ID, "club_name", selected.Name)
	c.record(ctx, "succeeded")
	if c.navigator != nil {
		c.navigator.Navigate(handoff)
	}
	return nil
}

// State returns the current workflow state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Handoff returns the handoff of the last successful join.
func (c *Controller) Handoff() (club.Handoff, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handoff == nil {
		return club.Handoff{}, false
	}
	return *c.handoff, true
}

// Snapshot returns everything a view needs in one consistent read.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.input.Entry()
	v := View{
		State:          c.state,
		Boxes:          entry.Boxes(),
		PasscodeLength: entry.Len(),
		Message:        c.message,
	}
	if c.selected != nil && c.state != Idle && c.state != Succeeded {
		v.Visible = true
		v.Club = *c.selected
	}
	v.CanSubmit = v.Visible && c.state != Submitting && entry.Complete()
	return v
}

func (c *Controller) record(ctx context.Context, outcome string) {
	c.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// messenger is implemented by collaborator errors that carry a
// user-facing message.
type messenger interface {
	Message() string
}

func failureMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutMessage
	}
	var m messenger
	if errors.As(err, &m) && strings.TrimSpace(m.Message()) != "" {
		return m.Message()
	}
	return GenericFailureMessage
}
