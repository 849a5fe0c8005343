package hserrors

import (
	"errors"
	"testing"
	"time"
)

func TestConfigurationErrorMessage(t *testing.T) {
	err := &ConfigurationError{Field: "jmeter_version", Value: "bogus"}
	if got, want := err.Error(), `invalid configuration for "jmeter_version": bogus`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	withMsg := &ConfigurationError{Field: "jmeter_version", Value: "bogus", Message: "not semver"}
	if got, want := withMsg.Error(), `invalid configuration for "jmeter_version": bogus (not semver)`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestExecutionCycleExistsExceptionPrefersProjectCode(t *testing.T) {
	err := &ExecutionCycleExistsException{ProjectCode: "load_test", ProjectID: 1, CycleID: 9}
	if got := err.Error(); got == "" {
		t.Fatal("expected non-empty error message")
	}
	byID := &ExecutionCycleExistsException{ProjectID: 1}
	if got := byID.Error(); got == "" {
		t.Fatal("expected non-empty error message when no code is set")
	}
}

func TestTransientHostErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TransientHostError{Host: "10.0.0.1", Op: "dial", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("expected TransientHostError to unwrap to its cause")
	}
}

func TestTimeoutExceptionMessage(t *testing.T) {
	err := &TimeoutException{Label: "agents ready", Timeout: 30 * time.Second}
	if got := err.Error(); got == "" {
		t.Fatal("expected non-empty message")
	}
}

func TestSetupExceptionAccumulatesAndNils(t *testing.T) {
	se := NewSetupException()
	if err := se.ErrorOrNil(); err != nil {
		t.Fatalf("expected nil for an empty SetupException, got %v", err)
	}

	se.Add("cluster 1", errors.New("boom"))
	se.Add("cluster 2", nil)
	if err := se.ErrorOrNil(); err == nil {
		t.Fatal("expected a non-nil error after adding one failure")
	}
	if len(se.Errs.Errors) != 1 {
		t.Fatalf("expected exactly 1 accumulated error, got %d", len(se.Errs.Errors))
	}
}

func TestIncorrectCommandExceptionMessage(t *testing.T) {
	err := &IncorrectCommandException{Command: "purge", Reason: `--scope must be "tests" or "all"`}
	if got := err.Error(); got == "" {
		t.Fatal("expected non-empty message")
	}
}
