// Package jtl declares the boundary to the sample-data parser: turning a
// JMeter .jtl results file into the per-sample tuples internal/report/stats
// aggregates into PageStat/ClientStat rows. internal/jtl/csv provides the
// CSV-format implementation wired into cmd/hailstorm; report.Aggregator
// depends only on the Parser interface below.
package jtl

import "time"

// Sample is one parsed result row.
type Sample struct {
	Label        string
	Timestamp    time.Time
	ResponseTime float64 // milliseconds
	Success      bool
	Bytes        int64
}

// Parser is implemented by whatever .jtl reader is wired in (CSV or XML
// JMeter formats); report.Aggregator depends only on this interface.
type Parser interface {
	Parse(path string) ([]Sample, error)
}
