package jmx

import (
	"os"
	"path/filepath"
	"testing"
)

const samplePlan = `<?xml version="1.0" encoding="UTF-8"?>
<jmeterTestPlan version="1.2">
  <hashTree>
    <TestPlan/>
    <hashTree>
      <ThreadGroup>
        <stringProp name="ThreadGroup.num_threads">50</stringProp>
        <stringProp name="ThreadGroup.ramp_time">10</stringProp>
        <CSVDataSet filename="users.csv"/>
      </ThreadGroup>
      <hashTree/>
      <ThreadGroup>
        <stringProp name="ThreadGroup.num_threads">25</stringProp>
        <CSVDataSet filename="accounts.csv"/>
      </ThreadGroup>
      <hashTree/>
    </hashTree>
  </hashTree>
</jmeterTestPlan>
`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.jmx")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing sample plan: %v", err)
	}
	return path
}

func TestParseSumsThreadGroupsAndCollectsDataFiles(t *testing.T) {
	path := writeSample(t, samplePlan)

	plan, err := New().Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if plan.ThreadCount != 75 {
		t.Fatalf("ThreadCount = %d, want 75", plan.ThreadCount)
	}
	want := map[string]bool{"users.csv": true, "accounts.csv": true}
	if len(plan.DataFiles) != len(want) {
		t.Fatalf("DataFiles = %v, want 2 entries", plan.DataFiles)
	}
	for _, f := range plan.DataFiles {
		if !want[f] {
			t.Errorf("unexpected data file %q", f)
		}
	}
}

func TestParseMissingThreadGroupErrors(t *testing.T) {
	path := writeSample(t, `<jmeterTestPlan><hashTree><TestPlan/></hashTree></jmeterTestPlan>`)

	if _, err := New().Parse(path); err == nil {
		t.Fatal("expected an error when no ThreadGroup is present")
	}
}

func TestParseMissingFileErrors(t *testing.T) {
	if _, err := New().Parse(filepath.Join(t.TempDir(), "missing.jmx")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
