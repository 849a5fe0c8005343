package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

func sampleData() ([]model.ExecutionCycle, []model.ClientStat, []model.TargetStat) {
	cycles := []model.ExecutionCycle{
		{ID: 1, Status: model.CycleReported, StartedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)},
	}
	clientStats := []model.ClientStat{
		{ExecutionCycleID: 1, JmeterPlanID: 2, ClusterableID: 3, ThreadsCount: 50, AggregateNinetyPercentile: 123.4, AggregateResponseThroughput: 56.7},
	}
	targetStats := []model.TargetStat{
		{ExecutionCycleID: 1, TargetHostID: 9, AverageCPUUsage: 12.3, AverageMemoryUsage: 45.6, AverageSwapUsage: 1.2},
	}
	return cycles, clientStats, targetStats
}

func TestTableRenderIncludesAllSections(t *testing.T) {
	cycles, clientStats, targetStats := sampleData()

	out, err := Table{}.Render(cycles, clientStats, targetStats)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	text := string(out)
	for _, want := range []string{"CYCLE", "STATUS", "90TH_PCTL_MS", "AVG_CPU%", "123.40", "12.3"} {
		if !strings.Contains(text, want) {
			t.Errorf("table output missing %q:\n%s", want, text)
		}
	}
}

func TestJSONRenderRoundTrips(t *testing.T) {
	cycles, clientStats, targetStats := sampleData()

	out, err := JSON{}.Render(cycles, clientStats, targetStats)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var doc struct {
		Cycles      []model.ExecutionCycle `json:"cycles"`
		ClientStats []model.ClientStat     `json:"client_stats"`
		TargetStats []model.TargetStat     `json:"target_stats"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshalling rendered JSON: %v", err)
	}
	if len(doc.Cycles) != 1 || doc.Cycles[0].ID != 1 {
		t.Errorf("unexpected cycles: %+v", doc.Cycles)
	}
	if len(doc.ClientStats) != 1 || doc.ClientStats[0].ClusterableID != 3 {
		t.Errorf("unexpected client stats: %+v", doc.ClientStats)
	}
	if len(doc.TargetStats) != 1 || doc.TargetStats[0].TargetHostID != 9 {
		t.Errorf("unexpected target stats: %+v", doc.TargetStats)
	}
}
