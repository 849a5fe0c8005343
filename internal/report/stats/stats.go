// Package stats holds the pure aggregation functions behind the Result
// Aggregator & Reporter (C8): turning parsed jtl.Sample rows into PageStat
// and ClientStat values, and target monitor summaries into TargetStat
// values. Nothing here touches the store or the filesystem, so it is
// unit-testable without any I/O.
package stats

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hailstorm-project/hailstorm/internal/jtl"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

// AggregatePageStats groups samples by label and reduces each group to one
// PageStat: count, avg, median, p90, min, max, error%,
// throughput (bytes & samples/sec), stddev, and a samples-breakup histogram.
func AggregatePageStats(samples []jtl.Sample, breakupIntervals []int) []model.PageStat {
	byLabel := make(map[string][]jtl.Sample)
	var order []string
	for _, s := range samples {
		if _, ok := byLabel[s.Label]; !ok {
			order = append(order, s.Label)
		}
		byLabel[s.Label] = append(byLabel[s.Label], s)
	}

	out := make([]model.PageStat, 0, len(order))
	for _, label := range order {
		out = append(out, aggregateOne(label, byLabel[label], breakupIntervals))
	}
	return out
}

func aggregateOne(label string, samples []jtl.Sample, breakupIntervals []int) model.PageStat {
	n := len(samples)
	times := make([]float64, n)
	var errCount int
	var totalBytes int64
	var minTime, maxTime = math.MaxFloat64, -math.MaxFloat64
	var start, end int64 // unix millis span, for throughput

	for i, s := range samples {
		times[i] = s.ResponseTime
		if s.ResponseTime < minTime {
			minTime = s.ResponseTime
		}
		if s.ResponseTime > maxTime {
			maxTime = s.ResponseTime
		}
		if !s.Success {
			errCount++
		}
		totalBytes += s.Bytes
		ms := s.Timestamp.UnixMilli()
		if start == 0 || ms < start {
			start = ms
		}
		if ms > end {
			end = ms
		}
	}
	if n == 0 {
		minTime, maxTime = 0, 0
	}

	sort.Float64s(times)
	durationSeconds := float64(end-start) / 1000.0
	if durationSeconds <= 0 {
		durationSeconds = 1
	}

	return model.PageStat{
		PageLabel:                    label,
		SamplesCount:                 int64(n),
		AverageResponseTime:          mean(times),
		MedianResponseTime:           percentile(times, 50),
		NinetyPercentileResponseTime: percentile(times, 90),
		MinimumResponseTime:          minTime,
		MaximumResponseTime:          maxTime,
		PercentageErrors:             percentage(errCount, n),
		ResponseThroughput:           float64(n) / durationSeconds,
		SizeThroughput:               float64(totalBytes) / durationSeconds,
		StandardDeviation:            stddev(times),
		SamplesBreakupJSON:           breakupHistogram(times, breakupIntervals),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// percentile expects xs pre-sorted ascending; uses the nearest-rank method.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	rank := int(math.Ceil(p/100*float64(len(xs)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(xs) {
		rank = len(xs) - 1
	}
	return xs[rank]
}

func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// breakupHistogram buckets response times against the project's
// samples_breakup_interval boundaries (e.g. "1,3,5" seconds), counting
// samples at or below each boundary and returning a JSON object keyed by
// the boundary in seconds.
func breakupHistogram(sortedMillis []float64, boundariesSeconds []int) string {
	histogram := make(map[string]int, len(boundariesSeconds))
	for _, boundary := range boundariesSeconds {
		limit := float64(boundary) * 1000
		count := 0
		for _, t := range sortedMillis {
			if t <= limit {
				count++
			}
		}
		histogram[strconv.Itoa(boundary)] = count
	}
	encoded, err := json.Marshal(histogram)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

// AggregateClientStat reduces a plan+clusterable's PageStats to one
// ClientStat: the given threads count, weighted p90, total
// throughput, latest sample timestamp.
func AggregateClientStat(pageStats []model.PageStat, threadsCount int, samples []jtl.Sample) model.ClientStat {
	var weightedP90, totalSamples, totalThroughput float64
	for _, ps := range pageStats {
		weightedP90 += ps.NinetyPercentileResponseTime * float64(ps.SamplesCount)
		totalSamples += float64(ps.SamplesCount)
		totalThroughput += ps.ResponseThroughput
	}
	if totalSamples > 0 {
		weightedP90 /= totalSamples
	}

	var latest *model.TrendPoint
	for _, s := range samples {
		if latest == nil || s.Timestamp.After(latest.At) {
			latest = &model.TrendPoint{At: s.Timestamp}
		}
	}
	stat := model.ClientStat{
		ThreadsCount:                threadsCount,
		AggregateNinetyPercentile:   weightedP90,
		AggregateResponseThroughput: totalThroughput,
	}
	if latest != nil {
		at := latest.At
		stat.LastSampleAt = &at
	}
	return stat
}

// ParseBreakupIntervalList parses a comma-separated interval string (e.g.
// "1,3,5") into a sorted, de-duplicated slice of seconds.
func ParseBreakupIntervalList(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	sort.Ints(out)
	deduped := out[:0]
	for _, n := range out {
		if len(deduped) == 0 || n != deduped[len(deduped)-1] {
			deduped = append(deduped, n)
		}
	}
	return deduped, nil
}
