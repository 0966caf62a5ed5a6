// Package wizard sequences the six registration steps on the client side. It
// gates forward progress on step-local validation and persists the full
// accumulated draft on every transition through a Persister.
//
// A Controller is single-user state and is not safe for concurrent use by
// design of the screen it drives; callers serialize access.
package wizard

import (
	"context"
	"fmt"
	"log/slog"

	"bizreg/internal/draft/models"
)

//go:generate mockgen -source=controller.go -destination=mocks/mocks.go -package=mocks Persister

// Persister saves an accumulated draft and returns the canonical snapshot.
type Persister interface {
	Save(ctx context.Context, req SaveRequest) (Snapshot, error)
}

// Controller drives one wizard session.
type Controller struct {
	persister Persister
	logger    *slog.Logger
	state     State
	closed    bool
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New starts a fresh session on step 1.
func New(persister Persister, opts ...Option) *Controller {
	c := &Controller{
		persister: persister,
		logger:    slog.Default(),
		state:     initialState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resume restores a session from a previously saved draft, on the step the
// draft was saved at.
func Resume(persister Persister, snap Snapshot, opts ...Option) *Controller {
	c := New(persister, opts...)
	c.state = stateFromSnapshot(snap)
	return c
}

// State returns a copy of the accumulated state.
func (c *Controller) State() State {
	return c.state.clone()
}

// Step returns the active step.
func (c *Controller) Step() models.Step {
	return c.state.Step
}

// Closed reports whether SaveAndExit has ended the session.
func (c *Controller) Closed() bool {
	return c.closed
}

// Advance merges input, checks the current step's gate, persists, and only
// then moves to the next step. Any failure leaves state unchanged.
func (c *Controller) Advance(ctx context.Context, input StepInput) error {
	if c.closed {
		return ErrSessionClosed
	}
	step := c.state.Step
	if step >= models.LastStep {
		return ErrTerminalStep
	}

	candidate := c.state.clone()
	candidate.merge(input)
	if err := models.CheckStep(step, candidate.gateView()); err != nil {
		return &GateError{Step: step, Err: err}
	}

	next := step + 1
	snap, err := c.persister.Save(ctx, candidate.saveRequest(next))
	if err != nil {
		c.logger.WarnContext(ctx, "wizard advance not persisted",
			"step", step.String(),
			"error", err,
		)
		return fmt.Errorf("save %s step: %w", step, err)
	}
	candidate.absorb(snap)
	candidate.Step = next
	c.state = candidate
	return nil
}

// Retreat moves back one step without validating or persisting.
func (c *Controller) Retreat() error {
	if c.closed {
		return ErrSessionClosed
	}
	if c.state.Step > models.FirstStep {
		c.state.Step--
	}
	return nil
}

// SaveAndExit persists whatever has been entered, complete or not, and closes
// the session. A failed save leaves the session open so the caller can retry.
func (c *Controller) SaveAndExit(ctx context.Context, input StepInput) error {
	if c.closed {
		return ErrSessionClosed
	}
	candidate := c.state.clone()
	candidate.merge(input)
	snap, err := c.persister.Save(ctx, candidate.saveRequest(candidate.Step))
	if err != nil {
		return fmt.Errorf("save and exit: %w", err)
	}
	candidate.absorb(snap)
	c.state = candidate
	c.closed = true
	return nil
}

// Restart forgets the draft id and every field, returning to step 1. The
// previously saved draft is left as it is on the server.
func (c *Controller) Restart() error {
	if c.closed {
		return ErrSessionClosed
	}
	if !c.state.DraftID.IsNil() {
		c.logger.Info("wizard restarted; previous draft left in place",
			"draft_id", c.state.DraftID.String(),
		)
	}
	c.state = initialState()
	return nil
}
