// Package monitor is the Target Monitor Manager (C5): a uniform interface
// over target-host sampling backends (e.g. nmon), each running a
// ticker-driven sampling loop and summarising on stop.
package monitor

import (
	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

// Backend is one monitor implementation's capability set.
type Backend interface {
	// Install places the monitor executable on the host and records its
	// path, returning the remote path for later start/stop calls.
	Install(ctx *hscontext.Context, target *model.TargetHost) (execPath string, err error)

	// StartMonitoring launches the sampling loop at target.SamplingInterval
	// and records the executable's pid.
	StartMonitoring(ctx *hscontext.Context, target *model.TargetHost, execPath string) (pid int, err error)

	// StopMonitoring halts the sampling loop. When createTargetStat is
	// false (e.g. load generation stop failed), no Summary is returned, so
	// no biased TargetStat is persisted.
	StopMonitoring(ctx *hscontext.Context, target *model.TargetHost, createTargetStat bool) (*Summary, error)

	// Terminate removes the monitor's leftover sampling output from the host.
	Terminate(ctx *hscontext.Context, target *model.TargetHost) error
}

// Summary is one host's sampling run, reduced to the averages and trend
// series a TargetStat row is built from.
type Summary struct {
	AverageCPUUsage    float64
	AverageMemoryUsage float64
	AverageSwapUsage   float64
	CPUUsageTrend      []model.TrendPoint
	MemoryUsageTrend   []model.TrendPoint
	SwapUsageTrend     []model.TrendPoint
}
