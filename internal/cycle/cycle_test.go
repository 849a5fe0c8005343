package cycle

import (
	"errors"
	"testing"

	"github.com/hailstorm-project/hailstorm/internal/hserrors"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

func TestRequireStartedRejectsNilCycle(t *testing.T) {
	err := RequireStarted(nil, 7)
	var notExists *hserrors.ExecutionCycleNotExistsException
	if !errors.As(err, &notExists) {
		t.Fatalf("expected ExecutionCycleNotExistsException, got %v", err)
	}
	if notExists.ProjectID != 7 {
		t.Errorf("ProjectID = %d, want 7", notExists.ProjectID)
	}
}

func TestRequireStartedRejectsNonStartedCycle(t *testing.T) {
	cy := &model.ExecutionCycle{Status: model.CycleStopped}
	if err := RequireStarted(cy, 1); err == nil {
		t.Fatal("expected an error for a stopped cycle")
	}
}

func TestRequireStartedAcceptsStartedCycle(t *testing.T) {
	cy := &model.ExecutionCycle{Status: model.CycleStarted}
	if err := RequireStarted(cy, 1); err != nil {
		t.Fatalf("expected no error for a started cycle, got %v", err)
	}
}

// Exclude/Include/Report validate the cycle's current status before ever
// touching the store, so their guard clauses are exercisable without a
// database connection.

func TestExcludeRejectsNonStoppedCycleWithoutTouchingStore(t *testing.T) {
	c := &Controller{}
	cy := &model.ExecutionCycle{ID: 1, Status: model.CycleStarted}
	if err := c.Exclude(nil, cy); err == nil {
		t.Fatal("expected an error excluding a non-stopped cycle")
	}
}

func TestIncludeRejectsNonExcludedCycleWithoutTouchingStore(t *testing.T) {
	c := &Controller{}
	cy := &model.ExecutionCycle{ID: 1, Status: model.CycleStopped}
	if err := c.Include(nil, cy); err == nil {
		t.Fatal("expected an error including a non-excluded cycle")
	}
}

func TestReportRejectsNonStoppedCycleWithoutTouchingStore(t *testing.T) {
	c := &Controller{}
	cy := &model.ExecutionCycle{ID: 1, Status: model.CycleStarted}
	if err := c.Report(nil, cy); err == nil {
		t.Fatal("expected an error reporting a non-stopped cycle")
	}
}
