package stats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hailstorm-project/hailstorm/internal/jtl"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

func sample(label string, ms int64, respTime float64, success bool, bytes int64) jtl.Sample {
	return jtl.Sample{
		Label:        label,
		Timestamp:    time.UnixMilli(ms),
		ResponseTime: respTime,
		Success:      success,
		Bytes:        bytes,
	}
}

func TestAggregatePageStatsGroupsByLabelInFirstSeenOrder(t *testing.T) {
	samples := []jtl.Sample{
		sample("Login", 1000, 100, true, 200),
		sample("Home", 1000, 50, true, 100),
		sample("Login", 2000, 300, false, 400),
	}

	pageStats := AggregatePageStats(samples, []int{1, 3})
	if len(pageStats) != 2 {
		t.Fatalf("got %d page stats, want 2", len(pageStats))
	}
	if pageStats[0].PageLabel != "Login" || pageStats[1].PageLabel != "Home" {
		t.Fatalf("expected first-seen order Login, Home; got %s, %s", pageStats[0].PageLabel, pageStats[1].PageLabel)
	}

	login := pageStats[0]
	if login.SamplesCount != 2 {
		t.Errorf("SamplesCount = %d, want 2", login.SamplesCount)
	}
	if login.PercentageErrors != 50 {
		t.Errorf("PercentageErrors = %v, want 50", login.PercentageErrors)
	}
	if login.MinimumResponseTime != 100 || login.MaximumResponseTime != 300 {
		t.Errorf("min/max = %v/%v, want 100/300", login.MinimumResponseTime, login.MaximumResponseTime)
	}
}

func TestAggregatePageStatsEmptyInput(t *testing.T) {
	if got := AggregatePageStats(nil, []int{1}); len(got) != 0 {
		t.Fatalf("expected no page stats for empty input, got %v", got)
	}
}

func TestBreakupHistogramCountsAtOrBelowBoundary(t *testing.T) {
	samples := []jtl.Sample{
		sample("Page", 0, 500, true, 0),
		sample("Page", 1000, 1500, true, 0),
		sample("Page", 2000, 4000, true, 0),
	}
	pageStats := AggregatePageStats(samples, []int{1, 3, 5})
	var histogram map[string]int
	if err := json.Unmarshal([]byte(pageStats[0].SamplesBreakupJSON), &histogram); err != nil {
		t.Fatalf("unmarshalling histogram: %v", err)
	}
	if histogram["1"] != 1 {
		t.Errorf("histogram[1] = %d, want 1 (only the 500ms sample)", histogram["1"])
	}
	if histogram["3"] != 2 {
		t.Errorf("histogram[3] = %d, want 2", histogram["3"])
	}
	if histogram["5"] != 3 {
		t.Errorf("histogram[5] = %d, want 3", histogram["5"])
	}
}

func TestAggregateClientStatWeightsP90BySampleCount(t *testing.T) {
	pageStats := []model.PageStat{
		{NinetyPercentileResponseTime: 100, SamplesCount: 10, ResponseThroughput: 5},
		{NinetyPercentileResponseTime: 200, SamplesCount: 30, ResponseThroughput: 15},
	}

	stat := AggregateClientStat(pageStats, 50, nil)
	if stat.ThreadsCount != 50 {
		t.Errorf("ThreadsCount = %d, want 50", stat.ThreadsCount)
	}
	// weighted p90 = (100*10 + 200*30) / 40 = 175
	if got, want := stat.AggregateNinetyPercentile, 175.0; got != want {
		t.Errorf("AggregateNinetyPercentile = %v, want %v", got, want)
	}
	if got, want := stat.AggregateResponseThroughput, 20.0; got != want {
		t.Errorf("AggregateResponseThroughput = %v, want %v", got, want)
	}
	if stat.LastSampleAt != nil {
		t.Errorf("expected nil LastSampleAt with no samples, got %v", stat.LastSampleAt)
	}
}

func TestAggregateClientStatTracksLatestSampleTimestamp(t *testing.T) {
	samples := []jtl.Sample{
		sample("A", 1000, 10, true, 0),
		sample("A", 3000, 10, true, 0),
		sample("A", 2000, 10, true, 0),
	}
	stat := AggregateClientStat(nil, 10, samples)
	if stat.LastSampleAt == nil {
		t.Fatal("expected LastSampleAt to be set")
	}
	if !stat.LastSampleAt.Equal(time.UnixMilli(3000)) {
		t.Errorf("LastSampleAt = %v, want %v", stat.LastSampleAt, time.UnixMilli(3000))
	}
}

func TestParseBreakupIntervalListSortsAndDeduplicatesWhitespace(t *testing.T) {
	got, err := ParseBreakupIntervalList(" 5, 1 ,3, 5")
	if err != nil {
		t.Fatalf("ParseBreakupIntervalList: %v", err)
	}
	want := []int{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
