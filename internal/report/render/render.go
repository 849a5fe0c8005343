// Package render provides the report.Renderer implementations
// cmd/hailstorm wires into Coordinator.Results. No third-party table/report
// library in this module's dependency set is actually imported anywhere
// for CLI output, so this reaches for text/tabwriter, the standard
// library's own answer to the same problem.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

// Table renders a cycle report as an aligned plain-text table, one row per
// (plan, clusterable) ClientStat and its sample-count-weighted 90th
// percentile and throughput.
type Table struct{}

func (Table) Render(cycles []model.ExecutionCycle, clientStats []model.ClientStat, targetStats []model.TargetStat) ([]byte, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "CYCLE\tSTATUS\tSTARTED\tSTOPPED")
	for _, cy := range cycles {
		stopped := "-"
		if cy.StoppedAt != nil {
			stopped = cy.StoppedAt.Format("2006-01-02T15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", cy.ID, cy.Status, cy.StartedAt.Format("2006-01-02T15:04:05"), stopped)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "CYCLE\tPLAN\tCLUSTERABLE\tTHREADS\t90TH_PCTL_MS\tTHROUGHPUT/S")
	for _, cs := range clientStats {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%.2f\t%.2f\n",
			cs.ExecutionCycleID, cs.JmeterPlanID, cs.ClusterableID, cs.ThreadsCount,
			cs.AggregateNinetyPercentile, cs.AggregateResponseThroughput)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "CYCLE\tTARGET\tAVG_CPU%\tAVG_MEM%\tAVG_SWAP%")
	for _, ts := range targetStats {
		fmt.Fprintf(w, "%d\t%d\t%.1f\t%.1f\t%.1f\n",
			ts.ExecutionCycleID, ts.TargetHostID, ts.AverageCPUUsage, ts.AverageMemoryUsage, ts.AverageSwapUsage)
	}

	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JSON renders the same three collections as a single JSON document, for
// scripted consumption of `hailstorm results report --format json`.
type JSON struct{}

func (JSON) Render(cycles []model.ExecutionCycle, clientStats []model.ClientStat, targetStats []model.TargetStat) ([]byte, error) {
	doc := struct {
		Cycles      []model.ExecutionCycle `json:"cycles"`
		ClientStats []model.ClientStat     `json:"client_stats"`
		TargetStats []model.TargetStat     `json:"target_stats"`
	}{cycles, clientStats, targetStats}
	return json.MarshalIndent(doc, "", "  ")
}
