// Package cycle is the Execution Cycle Controller (C6): the pure state
// machine governing one project's current run, with store-backed
// transitions.
package cycle

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/hserrors"
	"github.com/hailstorm-project/hailstorm/internal/store"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

// Controller drives ExecutionCycle transitions for one project, enforcing
// its state machine:
//
//	(no cycle) --start--> STARTED --stop--> STOPPED --report--> REPORTED
//	              |                   \--exclude--> EXCLUDED --include--> STOPPED
//	              |--abort--> ABORTED
//	              `--terminate--> TERMINATED
type Controller struct {
	Store *store.CycleRepository
}

func New(cycles *store.CycleRepository) *Controller {
	return &Controller{Store: cycles}
}

// Start creates a new cycle in the started state. Fails with
// ExecutionCycleExistsException if one is already started — the unique
// partial index on the execution_cycles table enforces this even under
// concurrent callers, with the repository translating the constraint
// violation into the typed exception.
func (c *Controller) Start(ctx *hscontext.Context, projectID int64, threadsCount int) (*model.ExecutionCycle, error) {
	cy := &model.ExecutionCycle{ProjectID: projectID, StartedAt: now(), ThreadsCount: threadsCount}
	if err := c.Store.Start(ctx, cy); err != nil {
		return nil, err
	}
	return cy, nil
}

// Current returns the project's started cycle, or
// ExecutionCycleNotExistsException if none is running.
func (c *Controller) Current(ctx *hscontext.Context, projectID int64) (*model.ExecutionCycle, error) {
	return c.Store.GetStarted(ctx, projectID)
}

// Stop transitions a started cycle to stopped.
func (c *Controller) Stop(ctx *hscontext.Context, cy *model.ExecutionCycle) error {
	return c.transition(ctx, cy, model.CycleStopped)
}

// Abort transitions any non-terminal cycle to aborted — used both for the
// explicit abort command and as the failure path of start/stop.
func (c *Controller) Abort(ctx *hscontext.Context, cy *model.ExecutionCycle) error {
	return c.transition(ctx, cy, model.CycleAborted)
}

// Terminate transitions a cycle to terminated, a state that is never
// implicitly revoked.
func (c *Controller) Terminate(ctx *hscontext.Context, cy *model.ExecutionCycle) error {
	return c.transition(ctx, cy, model.CycleTerminated)
}

// Exclude moves a stopped cycle out of reporting consideration; Include
// reverses it. Both refuse once a cycle has been reported, a terminal
// state that is never implicitly revoked.
func (c *Controller) Exclude(ctx *hscontext.Context, cy *model.ExecutionCycle) error {
	if cy.Status != model.CycleStopped {
		return errors.Errorf("cannot exclude cycle %d: expected status %q, got %q", cy.ID, model.CycleStopped, cy.Status)
	}
	return c.transition(ctx, cy, model.CycleExcluded)
}

func (c *Controller) Include(ctx *hscontext.Context, cy *model.ExecutionCycle) error {
	if cy.Status != model.CycleExcluded {
		return errors.Errorf("cannot include cycle %d: expected status %q, got %q", cy.ID, model.CycleExcluded, cy.Status)
	}
	return c.transitionNoStop(ctx, cy, model.CycleStopped)
}

// Report flips a stopped cycle to reported after C8 has produced a
// document from it.
func (c *Controller) Report(ctx *hscontext.Context, cy *model.ExecutionCycle) error {
	if cy.Status != model.CycleStopped {
		return errors.Errorf("cannot report cycle %d: expected status %q, got %q", cy.ID, model.CycleStopped, cy.Status)
	}
	return c.transitionNoStop(ctx, cy, model.CycleReported)
}

func (c *Controller) transition(ctx *hscontext.Context, cy *model.ExecutionCycle, status model.CycleStatus) error {
	if cy.Status.Terminal() {
		return errors.Errorf("cycle %d is in terminal state %q, cannot transition to %q", cy.ID, cy.Status, status)
	}
	stoppedAt := now()
	if err := c.Store.Transition(ctx, cy.ID, status, &stoppedAt); err != nil {
		return err
	}
	cy.Status = status
	cy.StoppedAt = &stoppedAt
	return nil
}

// transitionNoStop is transition without stamping stopped_at, for
// transitions that happen strictly after the cycle already stopped
// (exclude/include/report).
func (c *Controller) transitionNoStop(ctx *hscontext.Context, cy *model.ExecutionCycle, status model.CycleStatus) error {
	if err := c.Store.Transition(ctx, cy.ID, status, cy.StoppedAt); err != nil {
		return err
	}
	cy.Status = status
	return nil
}

// RequireStarted returns hserrors.ExecutionCycleNotExistsException-shaped
// errors uniformly for commands that need a currently-started cycle.
func RequireStarted(cy *model.ExecutionCycle, projectID int64) error {
	if cy == nil || cy.Status != model.CycleStarted {
		return &hserrors.ExecutionCycleNotExistsException{ProjectID: projectID}
	}
	return nil
}

var now = time.Now
