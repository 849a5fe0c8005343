package coordinator

import (
	"testing"

	"github.com/hailstorm-project/hailstorm/internal/config"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

func TestConfigSignatureIsDeterministic(t *testing.T) {
	cfg := &config.ProjectConfig{JmeterVersion: "5.5", MasterSlaveMode: true}
	sig1, err := ConfigSignature(cfg)
	if err != nil {
		t.Fatalf("ConfigSignature: %v", err)
	}
	sig2, err := ConfigSignature(cfg)
	if err != nil {
		t.Fatalf("ConfigSignature: %v", err)
	}
	if sig1 != sig2 {
		t.Fatalf("ConfigSignature is not deterministic: %q != %q", sig1, sig2)
	}
}

func TestConfigSignatureChangesWithConfig(t *testing.T) {
	a, err := ConfigSignature(&config.ProjectConfig{JmeterVersion: "5.5"})
	if err != nil {
		t.Fatalf("ConfigSignature: %v", err)
	}
	b, err := ConfigSignature(&config.ProjectConfig{JmeterVersion: "5.6"})
	if err != nil {
		t.Fatalf("ConfigSignature: %v", err)
	}
	if a == b {
		t.Fatal("expected different configs to produce different signatures")
	}
}

func TestRemoteDeployDirUsesTestPlanName(t *testing.T) {
	plan := &model.JmeterPlan{TestPlanName: "checkout-flow"}
	if got, want := remoteDeployDir(plan), "/opt/hailstorm/checkout-flow"; got != want {
		t.Fatalf("remoteDeployDir = %q, want %q", got, want)
	}
}

func TestDeployFilesIncludesPlanAndDataFiles(t *testing.T) {
	plan := &model.JmeterPlan{
		LocalPath: "/srv/plans/checkout.jmx",
		DataFiles: []string{"users.csv", "products.csv"},
	}
	files := deployFiles(plan)
	if len(files) != 3 {
		t.Fatalf("len(files) = %d, want 3", len(files))
	}
	if files["/srv/plans/checkout.jmx"] != "plan.jmx" {
		t.Fatalf("expected the plan itself to map to plan.jmx, got %+v", files)
	}
	if files["/srv/plans/users.csv"] != "users.csv" {
		t.Fatalf("expected users.csv resolved relative to the plan's directory, got %+v", files)
	}
	if files["/srv/plans/products.csv"] != "products.csv" {
		t.Fatalf("expected products.csv resolved relative to the plan's directory, got %+v", files)
	}
}

func TestDeployFilesWithNoDataFiles(t *testing.T) {
	plan := &model.JmeterPlan{LocalPath: "/srv/plans/solo.jmx"}
	files := deployFiles(plan)
	if len(files) != 1 {
		t.Fatalf("len(files) = %d, want 1", len(files))
	}
}

func TestExecutorForRejectsAgentWithNoPublicIP(t *testing.T) {
	c := &Coordinator{}
	resolve := c.executorFor(model.Cluster{ID: 1})
	if _, err := resolve(&model.LoadAgent{ID: 9}); err == nil {
		t.Fatal("expected an error resolving an executor for an agent with no public ip yet")
	}
}

func TestBreakupIntervalsParsesProjectConfig(t *testing.T) {
	project := &model.Project{SamplesBreakupInterval: "2,4,8"}
	got := breakupIntervals(project)
	want := []int{2, 4, 8}
	if len(got) != len(want) {
		t.Fatalf("breakupIntervals = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("breakupIntervals = %v, want %v", got, want)
		}
	}
}

func TestBreakupIntervalsFallsBackOnParseFailure(t *testing.T) {
	project := &model.Project{SamplesBreakupInterval: "not,numbers"}
	got := breakupIntervals(project)
	want := []int{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("breakupIntervals = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("breakupIntervals = %v, want %v", got, want)
		}
	}
}

func TestBreakupIntervalsFallsBackOnEmptyInterval(t *testing.T) {
	project := &model.Project{SamplesBreakupInterval: ""}
	got := breakupIntervals(project)
	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Fatalf("breakupIntervals = %v, want [1 3 5]", got)
	}
}
