// Package hserrors defines the typed error taxonomy used across the
// orchestration engine. Callers use errors.As to recover a specific
// type from a wrapped chain; nothing here depends on gRPC or the CLI layer,
// keeping the taxonomy reusable by any transport.
package hserrors

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ConfigurationError reports invalid user-supplied configuration: a bad
// JMeter version, a malformed installer URL, a missing AMI for a
// non-standard SSH port, and similar. Setup nulls serial_version in response.
type ConfigurationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("invalid configuration for %q: %v", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid configuration for %q: %v (%s)", e.Field, e.Value, e.Message)
}

// ExecutionCycleExistsException is raised when start is called while a
// started cycle already exists for the project.
type ExecutionCycleExistsException struct {
	ProjectCode string
	ProjectID   int64
	CycleID     int64
}

func (e *ExecutionCycleExistsException) Error() string {
	if e.ProjectCode != "" {
		return fmt.Sprintf("project %q already has a started execution cycle (id=%d)", e.ProjectCode, e.CycleID)
	}
	return fmt.Sprintf("project %d already has a started execution cycle", e.ProjectID)
}

// ExecutionCycleNotExistsException is raised when a lifecycle command that
// requires a current cycle (stop/abort) finds none.
type ExecutionCycleNotExistsException struct {
	ProjectCode string
	ProjectID   int64
}

func (e *ExecutionCycleNotExistsException) Error() string {
	if e.ProjectCode != "" {
		return fmt.Sprintf("project %q has no started execution cycle", e.ProjectCode)
	}
	return fmt.Sprintf("project %d has no started execution cycle", e.ProjectID)
}

// MasterSlaveSwitchOnConflict is raised when more than one Master load agent
// is found active for a (cluster, plan) pair in master-slave mode.
type MasterSlaveSwitchOnConflict struct {
	PlanName    string
	ClusterID   int64
	MasterCount int
}

func (e *MasterSlaveSwitchOnConflict) Error() string {
	return fmt.Sprintf("plan %q on cluster %d has %d active master agents, expected at most 1",
		e.PlanName, e.ClusterID, e.MasterCount)
}

// TransientHostError reports an SSH or cloud-API call that failed for a
// reason expected to resolve itself on retry (timeout, connection refused,
// throttling). internal/util.Retry treats this type as retryable.
type TransientHostError struct {
	Host string
	Op   string
	Err  error
}

func (e *TransientHostError) Error() string {
	return fmt.Sprintf("transient failure performing %q against %q: %v", e.Op, e.Host, e.Err)
}

func (e *TransientHostError) Unwrap() error { return e.Err }

// TimeoutException is raised when internal/util.PollUntil exceeds its
// deadline waiting for a predicate to become true.
type TimeoutException struct {
	Label   string
	Timeout time.Duration
}

func (e *TimeoutException) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %q", e.Timeout, e.Label)
}

// SetupException aggregates independent partial failures from cluster and
// target-host setup. Wraps a *multierror.Error so individual causes survive.
type SetupException struct {
	Errs *multierror.Error
}

func NewSetupException() *SetupException {
	return &SetupException{Errs: &multierror.Error{}}
}

func (e *SetupException) Error() string {
	return e.Errs.Error()
}

func (e *SetupException) Unwrap() error {
	return e.Errs.Unwrap()
}

func (e *SetupException) Add(context string, err error) {
	if err == nil {
		return
	}
	e.Errs = multierror.Append(e.Errs, errors.Wrap(err, context))
}

func (e *SetupException) ErrorOrNil() error {
	if e == nil || e.Errs == nil || len(e.Errs.Errors) == 0 {
		return nil
	}
	return e
}

// UnknownCommandException and IncorrectCommandException belong to the CLI
// layer but are declared here since the error taxonomy is shared.

type UnknownCommandException struct {
	Command string
}

func (e *UnknownCommandException) Error() string {
	return fmt.Sprintf("unknown command %q", e.Command)
}

type IncorrectCommandException struct {
	Command string
	Reason  string
}

func (e *IncorrectCommandException) Error() string {
	return fmt.Sprintf("incorrect usage of command %q: %s", e.Command, e.Reason)
}
