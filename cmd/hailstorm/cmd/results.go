package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hailstorm-project/hailstorm/internal/coordinator"
	"github.com/hailstorm-project/hailstorm/internal/hserrors"
	"github.com/hailstorm-project/hailstorm/internal/report"
	"github.com/hailstorm-project/hailstorm/internal/report/render"
)

func resultsCmd() *cobra.Command {
	parent := &cobra.Command{
		Use:   "results <show|exclude|include|export|report|import> <project-code>",
		Short: "Show, curate, export, import, or render a report over a project's execution cycles",
	}
	for _, op := range []coordinator.ResultsOp{
		coordinator.ResultsShow, coordinator.ResultsExclude, coordinator.ResultsInclude,
		coordinator.ResultsExport, coordinator.ResultsReport,
	} {
		parent.AddCommand(resultsSubCmd(op))
	}
	parent.AddCommand(resultsImportCmd())
	return parent
}

// resultsImportCmd attaches an externally produced .jtl file to a
// project's results. It takes file-specific arguments (a local path, a
// plan name, an optional target cycle id and thread count) that don't fit
// resultsSubCmd's --cycles/--out/--format shape, so it's wired up
// separately.
func resultsImportCmd() *cobra.Command {
	var planName string
	var targetCycle int64
	var threadsCount int
	c := &cobra.Command{
		Use:     "import <project-code> <jtl-path>",
		Short:   "Attach an externally produced .jtl file to a project's results",
		Args:    cobra.ExactArgs(2),
		PreRunE: withBootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a := hsContext(cmd)
			projectID, err := resolveProjectID(ctx, a, args[0])
			if err != nil {
				return err
			}
			if planName == "" {
				return &hserrors.IncorrectCommandException{Command: "results import", Reason: "--plan is required"}
			}
			cycleID, err := a.Coordinator.ImportResult(ctx, projectID, planName, args[1], targetCycle, threadsCount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s into cycle %d\n", args[1], cycleID)
			return nil
		},
	}
	c.Flags().StringVar(&planName, "plan", "", "Test plan name the .jtl belongs to (required)")
	c.Flags().Int64Var(&targetCycle, "cycle", 0, "Execution cycle id to attach the import to; creates a new stopped cycle when omitted")
	c.Flags().IntVar(&threadsCount, "threads", 0, "Thread count for the import; defaults to the plan's latest_threads_count")
	return c
}

func resultsSubCmd(op coordinator.ResultsOp) *cobra.Command {
	var cycleIDsRaw string
	var exportPath string
	var format string
	c := &cobra.Command{
		Use:     fmt.Sprintf("%s <project-code>", op),
		Short:   fmt.Sprintf("results %s", op),
		Args:    cobra.ExactArgs(1),
		PreRunE: withBootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a := hsContext(cmd)
			projectID, err := resolveProjectID(ctx, a, args[0])
			if err != nil {
				return err
			}

			var cycleIDs []int64
			if cycleIDsRaw != "" {
				for _, part := range strings.Split(cycleIDsRaw, ",") {
					id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
					if err != nil {
						return &hserrors.IncorrectCommandException{Command: "results " + string(op), Reason: fmt.Sprintf("invalid cycle id %q", part)}
					}
					cycleIDs = append(cycleIDs, id)
				}
			}
			if (op == coordinator.ResultsExclude || op == coordinator.ResultsInclude || op == coordinator.ResultsExport) && len(cycleIDs) == 0 {
				return &hserrors.IncorrectCommandException{Command: "results " + string(op), Reason: "--cycles is required"}
			}
			if op == coordinator.ResultsExport && exportPath == "" {
				return &hserrors.IncorrectCommandException{Command: "results export", Reason: "--out is required"}
			}

			var renderer report.Renderer = render.Table{}
			if format == "json" {
				renderer = render.JSON{}
			}

			result, err := a.Coordinator.Results(ctx, projectID, op, cycleIDs, exportPath, renderer)
			if err != nil {
				return err
			}
			return printResult(cmd, result)
		},
	}
	c.Flags().StringVar(&cycleIDsRaw, "cycles", "", "Comma-separated execution cycle ids")
	c.Flags().StringVar(&exportPath, "out", "", "Destination path for results export (results export only)")
	c.Flags().StringVar(&format, "format", "table", "Report rendering format: table or json (results report only)")
	return c
}

// printResult writes whatever Coordinator.Results returned: a []byte report
// is written raw (already formatted by the chosen Renderer), anything else
// is JSON-encoded for scripting.
func printResult(cmd *cobra.Command, result interface{}) error {
	if result == nil {
		return nil
	}
	if raw, ok := result.([]byte); ok {
		_, err := cmd.OutOrStdout().Write(raw)
		return err
	}
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
