package fixed

import (
	"testing"

	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

func TestNewDefaultsSSHPort(t *testing.T) {
	b := New(Config{DataCenter: &model.DataCenter{}})
	if b.cfg.SSHPort != 22 {
		t.Fatalf("SSHPort = %d, want 22", b.cfg.SSHPort)
	}
}

func TestNewKeepsExplicitSSHPort(t *testing.T) {
	b := New(Config{DataCenter: &model.DataCenter{}, SSHPort: 2222})
	if b.cfg.SSHPort != 2222 {
		t.Fatalf("SSHPort = %d, want 2222", b.cfg.SSHPort)
	}
}

func TestRequiredAgentCountEqualsMachineCount(t *testing.T) {
	b := New(Config{DataCenter: &model.DataCenter{Machines: []string{"a", "b", "c"}}})
	n, err := b.RequiredAgentCount(&model.JmeterPlan{LatestThreadsCount: 500})
	if err != nil {
		t.Fatalf("RequiredAgentCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("RequiredAgentCount = %d, want 3", n)
	}
}

func TestNoOpLifecycleMethodsSucceed(t *testing.T) {
	b := New(Config{DataCenter: &model.DataCenter{Machines: []string{"a"}}})
	if err := b.EnsureAgents(nil, nil, 1); err != nil {
		t.Errorf("EnsureAgents: %v", err)
	}
	if err := b.StartAgent(nil, &model.LoadAgent{}); err != nil {
		t.Errorf("StartAgent: %v", err)
	}
	if err := b.StopAgent(nil, &model.LoadAgent{}); err != nil {
		t.Errorf("StopAgent: %v", err)
	}
	if err := b.TerminateAgent(nil, &model.LoadAgent{}); err != nil {
		t.Errorf("TerminateAgent: %v", err)
	}
}
