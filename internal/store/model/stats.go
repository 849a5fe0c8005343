package model

import "time"

// ClientStat aggregates PageStats for one (execution cycle, plan,
// clusterable) triple.
type ClientStat struct {
	ID                           int64
	ExecutionCycleID              int64
	JmeterPlanID                  int64
	ClusterableID                 int64
	ClusterableType               ClusterType
	ThreadsCount                  int
	AggregateNinetyPercentile     float64
	AggregateResponseThroughput   float64
	LastSampleAt                  *time.Time
}

// PageStat is one page_label's worth of parsed samples.
type PageStat struct {
	ID                         int64
	ClientStatID               int64
	PageLabel                  string
	SamplesCount               int64
	AverageResponseTime        float64
	MedianResponseTime         float64
	NinetyPercentileResponseTime float64
	MinimumResponseTime        float64
	MaximumResponseTime        float64
	PercentageErrors           float64
	ResponseThroughput         float64
	SizeThroughput             float64
	StandardDeviation          float64
	// SamplesBreakupJSON keys each configured interval boundary (project
	// samples_breakup_interval) to the count of samples at or below it.
	SamplesBreakupJSON string
}

// TrendPoint is one (timestamp, value) sample in a target monitor trend
// series (SPEC_FULL.md "per-target trend export" supplement).
type TrendPoint struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// TargetStat summarises one target host's monitor trend over a cycle.
type TargetStat struct {
	ID                 int64
	ExecutionCycleID   int64
	TargetHostID       int64
	AverageCPUUsage    float64
	AverageMemoryUsage float64
	AverageSwapUsage   float64
	CPUUsageTrend      []TrendPoint
	MemoryUsageTrend   []TrendPoint
	SwapUsageTrend     []TrendPoint
}

// CycleArtifact tracks a collected .jtl file's on-disk location independent
// of the PageStat rows parsed from it (SPEC_FULL.md §3 supplement), so
// export/re-parse don't require re-collecting from agents.
type CycleArtifact struct {
	ID               int64
	ExecutionCycleID int64
	JmeterPlanID     int64
	ClusterableID    int64
	ClusterableType  ClusterType
	LocalPath        string
	ContentHash      string
}
