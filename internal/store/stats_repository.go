package store

import (
	"encoding/json"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

type StatsRepository struct {
	pool *pgxpool.Pool
}

var (
	clientStatsTable   = goqu.T("client_stats")
	pageStatsTable     = goqu.T("page_stats")
	targetStatsTable   = goqu.T("target_stats")
	cycleArtifactsTable = goqu.T("cycle_artifacts")
)

// CreateClientStat inserts the per-(cycle, plan, clusterable) aggregate row
// produced by report aggregation.
func (r *StatsRepository) CreateClientStat(ctx *hscontext.Context, s *model.ClientStat) error {
	sql, args, err := dialect.Insert(clientStatsTable).Rows(goqu.Record{
		"execution_cycle_id":             s.ExecutionCycleID,
		"jmeter_plan_id":                 s.JmeterPlanID,
		"clusterable_id":                 s.ClusterableID,
		"clusterable_type":               string(s.ClusterableType),
		"threads_count":                  s.ThreadsCount,
		"aggregate_ninety_percentile":    s.AggregateNinetyPercentile,
		"aggregate_response_throughput":  s.AggregateResponseThroughput,
		"last_sample_at":                 s.LastSampleAt,
	}).Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	return r.pool.QueryRow(ctx.Context, sql, args...).Scan(&s.ID)
}

// CreatePageStats inserts the page-level rows belonging to a client stat, one
// INSERT per row, filling in each row's ID.
func (r *StatsRepository) CreatePageStats(ctx *hscontext.Context, stats []model.PageStat) error {
	for i := range stats {
		s := &stats[i]
		sql, args, err := dialect.Insert(pageStatsTable).Rows(goqu.Record{
			"client_stat_id":                   s.ClientStatID,
			"page_label":                       s.PageLabel,
			"samples_count":                    s.SamplesCount,
			"average_response_time":            s.AverageResponseTime,
			"median_response_time":             s.MedianResponseTime,
			"ninety_percentile_response_time":  s.NinetyPercentileResponseTime,
			"minimum_response_time":            s.MinimumResponseTime,
			"maximum_response_time":            s.MaximumResponseTime,
			"percentage_errors":                s.PercentageErrors,
			"response_throughput":              s.ResponseThroughput,
			"size_throughput":                  s.SizeThroughput,
			"standard_deviation":                s.StandardDeviation,
			"samples_breakup_json":             s.SamplesBreakupJSON,
		}).Returning("id").Prepared(true).ToSQL()
		if err != nil {
			return errors.WithStack(err)
		}
		if err := r.pool.QueryRow(ctx.Context, sql, args...).Scan(&s.ID); err != nil {
			return err
		}
	}
	return nil
}

// ListPageStats returns every page stat belonging to a client stat.
func (r *StatsRepository) ListPageStats(ctx *hscontext.Context, clientStatID int64) ([]model.PageStat, error) {
	sql, args, err := dialect.From(pageStatsTable).
		Select("id", "client_stat_id", "page_label", "samples_count", "average_response_time",
			"median_response_time", "ninety_percentile_response_time", "minimum_response_time",
			"maximum_response_time", "percentage_errors", "response_throughput", "size_throughput",
			"standard_deviation", "samples_breakup_json").
		Where(goqu.C("client_stat_id").Eq(clientStatID)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	rows, err := r.pool.Query(ctx.Context, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PageStat
	for rows.Next() {
		var p model.PageStat
		if err := rows.Scan(&p.ID, &p.ClientStatID, &p.PageLabel, &p.SamplesCount, &p.AverageResponseTime,
			&p.MedianResponseTime, &p.NinetyPercentileResponseTime, &p.MinimumResponseTime,
			&p.MaximumResponseTime, &p.PercentageErrors, &p.ResponseThroughput, &p.SizeThroughput,
			&p.StandardDeviation, &p.SamplesBreakupJSON); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListClientStats returns every client stat recorded for a cycle.
func (r *StatsRepository) ListClientStats(ctx *hscontext.Context, cycleID int64) ([]model.ClientStat, error) {
	sql, args, err := dialect.From(clientStatsTable).
		Select("id", "execution_cycle_id", "jmeter_plan_id", "clusterable_id", "clusterable_type",
			"threads_count", "aggregate_ninety_percentile", "aggregate_response_throughput", "last_sample_at").
		Where(goqu.C("execution_cycle_id").Eq(cycleID)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	rows, err := r.pool.Query(ctx.Context, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ClientStat
	for rows.Next() {
		var s model.ClientStat
		var clusterableType string
		if err := rows.Scan(&s.ID, &s.ExecutionCycleID, &s.JmeterPlanID, &s.ClusterableID, &clusterableType,
			&s.ThreadsCount, &s.AggregateNinetyPercentile, &s.AggregateResponseThroughput, &s.LastSampleAt); err != nil {
			return nil, err
		}
		s.ClusterableType = model.ClusterType(clusterableType)
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateTargetStat inserts a target host's per-cycle monitor summary,
// serialising its trend series (SPEC_FULL.md per-target trend export) as
// JSON since Postgres has no native array-of-struct column here.
func (r *StatsRepository) CreateTargetStat(ctx *hscontext.Context, s *model.TargetStat) error {
	cpuTrend, err := json.Marshal(s.CPUUsageTrend)
	if err != nil {
		return errors.Wrap(err, "marshalling cpu usage trend")
	}
	memTrend, err := json.Marshal(s.MemoryUsageTrend)
	if err != nil {
		return errors.Wrap(err, "marshalling memory usage trend")
	}
	swapTrend, err := json.Marshal(s.SwapUsageTrend)
	if err != nil {
		return errors.Wrap(err, "marshalling swap usage trend")
	}

	sql, args, err := dialect.Insert(targetStatsTable).Rows(goqu.Record{
		"execution_cycle_id":   s.ExecutionCycleID,
		"target_host_id":       s.TargetHostID,
		"average_cpu_usage":    s.AverageCPUUsage,
		"average_memory_usage": s.AverageMemoryUsage,
		"average_swap_usage":   s.AverageSwapUsage,
		"cpu_usage_trend":      string(cpuTrend),
		"memory_usage_trend":   string(memTrend),
		"swap_usage_trend":     string(swapTrend),
	}).Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	return r.pool.QueryRow(ctx.Context, sql, args...).Scan(&s.ID)
}

// ListTargetStats returns every target stat recorded for a cycle.
func (r *StatsRepository) ListTargetStats(ctx *hscontext.Context, cycleID int64) ([]model.TargetStat, error) {
	sql, args, err := dialect.From(targetStatsTable).
		Select("id", "execution_cycle_id", "target_host_id", "average_cpu_usage", "average_memory_usage",
			"average_swap_usage", "cpu_usage_trend", "memory_usage_trend", "swap_usage_trend").
		Where(goqu.C("execution_cycle_id").Eq(cycleID)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	rows, err := r.pool.Query(ctx.Context, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TargetStat
	for rows.Next() {
		var s model.TargetStat
		var cpuTrend, memTrend, swapTrend *string
		if err := rows.Scan(&s.ID, &s.ExecutionCycleID, &s.TargetHostID, &s.AverageCPUUsage, &s.AverageMemoryUsage,
			&s.AverageSwapUsage, &cpuTrend, &memTrend, &swapTrend); err != nil {
			return nil, err
		}
		if cpuTrend != nil {
			if err := json.Unmarshal([]byte(*cpuTrend), &s.CPUUsageTrend); err != nil {
				return nil, errors.Wrap(err, "unmarshalling cpu usage trend")
			}
		}
		if memTrend != nil {
			if err := json.Unmarshal([]byte(*memTrend), &s.MemoryUsageTrend); err != nil {
				return nil, errors.Wrap(err, "unmarshalling memory usage trend")
			}
		}
		if swapTrend != nil {
			if err := json.Unmarshal([]byte(*swapTrend), &s.SwapUsageTrend); err != nil {
				return nil, errors.Wrap(err, "unmarshalling swap usage trend")
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateArtifact records a collected .jtl file's location so a later export
// or re-parse doesn't require re-collecting from agents.
func (r *StatsRepository) CreateArtifact(ctx *hscontext.Context, a *model.CycleArtifact) error {
	sql, args, err := dialect.Insert(cycleArtifactsTable).Rows(goqu.Record{
		"execution_cycle_id": a.ExecutionCycleID,
		"jmeter_plan_id":      a.JmeterPlanID,
		"clusterable_id":      a.ClusterableID,
		"clusterable_type":    string(a.ClusterableType),
		"local_path":          a.LocalPath,
		"content_hash":        a.ContentHash,
	}).Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	return r.pool.QueryRow(ctx.Context, sql, args...).Scan(&a.ID)
}

// ListArtifacts returns every collected artifact for a cycle.
func (r *StatsRepository) ListArtifacts(ctx *hscontext.Context, cycleID int64) ([]model.CycleArtifact, error) {
	sql, args, err := dialect.From(cycleArtifactsTable).
		Select("id", "execution_cycle_id", "jmeter_plan_id", "clusterable_id", "clusterable_type", "local_path", "content_hash").
		Where(goqu.C("execution_cycle_id").Eq(cycleID)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	rows, err := r.pool.Query(ctx.Context, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CycleArtifact
	for rows.Next() {
		var a model.CycleArtifact
		var clusterableType string
		if err := rows.Scan(&a.ID, &a.ExecutionCycleID, &a.JmeterPlanID, &a.ClusterableID, &clusterableType, &a.LocalPath, &a.ContentHash); err != nil {
			return nil, err
		}
		a.ClusterableType = model.ClusterType(clusterableType)
		out = append(out, a)
	}
	return out, rows.Err()
}
