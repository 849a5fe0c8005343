package csv

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.jtl")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing sample jtl: %v", err)
	}
	return path
}

func TestParseReadsSamplesInOrder(t *testing.T) {
	const content = `timeStamp,elapsed,label,responseCode,threadName,success,bytes
1700000000000,120,Home Page,200,Thread-1,true,1024
1700000000500,340,Login,500,Thread-1,false,512
`
	path := writeSample(t, content)

	samples, err := New().Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}

	first := samples[0]
	if first.Label != "Home Page" || first.ResponseTime != 120 || !first.Success || first.Bytes != 1024 {
		t.Errorf("unexpected first sample: %+v", first)
	}
	if !first.Timestamp.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("unexpected timestamp: %v", first.Timestamp)
	}

	second := samples[1]
	if second.Label != "Login" || second.Success {
		t.Errorf("unexpected second sample: %+v", second)
	}
}

func TestParseMissingRequiredColumnErrors(t *testing.T) {
	path := writeSample(t, "responseCode,threadName\n200,Thread-1\n")

	if _, err := New().Parse(path); err == nil {
		t.Fatal("expected an error when required columns are missing")
	}
}

func TestParseEmptyFileErrors(t *testing.T) {
	path := writeSample(t, "")

	if _, err := New().Parse(path); err == nil {
		t.Fatal("expected an error reading an empty file's header")
	}
}

func TestParseMissingFileErrors(t *testing.T) {
	if _, err := New().Parse(filepath.Join(t.TempDir(), "missing.jtl")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
