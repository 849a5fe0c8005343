package model

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// CycleStatus is the execution cycle state machine.
type CycleStatus string

const (
	CycleStarted    CycleStatus = "started"
	CycleStopped    CycleStatus = "stopped"
	CycleAborted    CycleStatus = "aborted"
	CycleTerminated CycleStatus = "terminated"
	CycleExcluded   CycleStatus = "excluded"
	CycleReported   CycleStatus = "reported"
)

// Terminal reports whether status can never be implicitly revoked.
func (s CycleStatus) Terminal() bool {
	return s == CycleTerminated || s == CycleReported || s == CycleExcluded
}

// ExecutionCycle is the unit of reporting: one run from start to
// stop/abort/terminate.
type ExecutionCycle struct {
	ID           int64
	ProjectID    int64
	Status       CycleStatus
	StartedAt    time.Time
	StoppedAt    *time.Time
	ThreadsCount int
}

func (c *ExecutionCycle) Validate() error {
	switch c.Status {
	case CycleStarted, CycleStopped, CycleAborted, CycleTerminated, CycleExcluded, CycleReported:
	default:
		return errors.Errorf("unknown execution cycle status %q", c.Status)
	}
	return nil
}

// SequenceDir is the per-cycle workspace directory name under tmp/
//.
func (c *ExecutionCycle) SequenceDir() string {
	return "SEQUENCE-" + strconv.FormatInt(c.ID, 10)
}
