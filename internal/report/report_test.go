package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/jtl"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

// fakeCycleStore and fakeStatsStore are in-memory doubles for CycleStore and
// StatsStore, letting Import/CreateReport/Export be exercised without a
// database connection.
type fakeCycleStore struct {
	cycles map[int64]model.ExecutionCycle
	nextID int64
}

func newFakeCycleStore(seed ...model.ExecutionCycle) *fakeCycleStore {
	s := &fakeCycleStore{cycles: map[int64]model.ExecutionCycle{}}
	for _, c := range seed {
		s.cycles[c.ID] = c
		if c.ID >= s.nextID {
			s.nextID = c.ID + 1
		}
	}
	return s
}

func (s *fakeCycleStore) GetByID(ctx *hscontext.Context, id int64) (*model.ExecutionCycle, error) {
	c, ok := s.cycles[id]
	if !ok {
		return nil, errNotFound
	}
	return &c, nil
}

func (s *fakeCycleStore) ListByProject(ctx *hscontext.Context, projectID int64) ([]model.ExecutionCycle, error) {
	var out []model.ExecutionCycle
	for _, c := range s.cycles {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCycleStore) Transition(ctx *hscontext.Context, id int64, status model.CycleStatus, stoppedAt *time.Time) error {
	c := s.cycles[id]
	c.Status = status
	c.StoppedAt = stoppedAt
	s.cycles[id] = c
	return nil
}

func (s *fakeCycleStore) CreateImported(ctx *hscontext.Context, projectID int64, threadsCount int) (*model.ExecutionCycle, error) {
	s.nextID++
	c := &model.ExecutionCycle{ID: s.nextID, ProjectID: projectID, Status: model.CycleStopped, ThreadsCount: threadsCount}
	s.cycles[c.ID] = *c
	return c, nil
}

type fakeStatsStore struct {
	artifacts   []model.CycleArtifact
	clientStats []model.ClientStat
	pageStats   []model.PageStat
	nextStatID  int64
}

func (s *fakeStatsStore) CreateArtifact(ctx *hscontext.Context, a *model.CycleArtifact) error {
	s.artifacts = append(s.artifacts, *a)
	return nil
}

func (s *fakeStatsStore) ListArtifacts(ctx *hscontext.Context, cycleID int64) ([]model.CycleArtifact, error) {
	var out []model.CycleArtifact
	for _, a := range s.artifacts {
		if a.ExecutionCycleID == cycleID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStatsStore) CreateClientStat(ctx *hscontext.Context, cs *model.ClientStat) error {
	s.nextStatID++
	cs.ID = s.nextStatID
	s.clientStats = append(s.clientStats, *cs)
	return nil
}

func (s *fakeStatsStore) CreatePageStats(ctx *hscontext.Context, pageStats []model.PageStat) error {
	s.pageStats = append(s.pageStats, pageStats...)
	return nil
}

func (s *fakeStatsStore) ListClientStats(ctx *hscontext.Context, cycleID int64) ([]model.ClientStat, error) {
	var out []model.ClientStat
	for _, cs := range s.clientStats {
		if cs.ExecutionCycleID == cycleID {
			out = append(out, cs)
		}
	}
	return out, nil
}

func (s *fakeStatsStore) ListTargetStats(ctx *hscontext.Context, cycleID int64) ([]model.TargetStat, error) {
	return nil, nil
}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "not found" }

var errNotFound = &notFoundErr{}

// fakeParser returns a fixed set of samples regardless of the file's
// content; ProcessArtifact still hashes the file on disk, so the tests pass
// it a placeholder written by writeJTL.
type fakeParser struct {
	samples []jtl.Sample
	err     error
}

func (p *fakeParser) Parse(path string) ([]jtl.Sample, error) {
	return p.samples, p.err
}

func writeJTL(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.jtl")
	if err := os.WriteFile(path, []byte("timeStamp,elapsed,label,success\n"), 0o644); err != nil {
		t.Fatalf("writing placeholder jtl: %v", err)
	}
	return path
}

func sampleSamples() []jtl.Sample {
	return []jtl.Sample{
		{Label: "home", Timestamp: time.Now(), ResponseTime: 120, Success: true, Bytes: 512},
		{Label: "home", Timestamp: time.Now(), ResponseTime: 200, Success: true, Bytes: 512},
	}
}

func TestImportCreatesNewCycleWhenTargetIsZero(t *testing.T) {
	cycles := newFakeCycleStore()
	stats := &fakeStatsStore{}
	a := New(cycles, stats, &fakeParser{samples: sampleSamples()})

	cycleID, err := a.Import(hscontext.Background(), writeJTL(t), 7, 3, 5, model.ClusterTypeAmazonCloud, 0, 50, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if cycleID == 0 {
		t.Fatal("expected a non-zero cycle id to be created")
	}
	created, ok := cycles.cycles[cycleID]
	if !ok {
		t.Fatalf("expected cycle %d to exist in the store", cycleID)
	}
	if created.Status != model.CycleStopped {
		t.Fatalf("created cycle status = %q, want %q", created.Status, model.CycleStopped)
	}
	if created.ProjectID != 7 {
		t.Fatalf("created cycle ProjectID = %d, want 7", created.ProjectID)
	}
	if len(stats.artifacts) != 1 || stats.artifacts[0].ExecutionCycleID != cycleID {
		t.Fatalf("expected one artifact recorded under cycle %d, got %+v", cycleID, stats.artifacts)
	}
	if len(stats.clientStats) != 1 {
		t.Fatalf("expected one client stat recorded, got %d", len(stats.clientStats))
	}
}

func TestImportAttachesToExistingCycleWhenTargetGiven(t *testing.T) {
	cycles := newFakeCycleStore(model.ExecutionCycle{ID: 42, ProjectID: 7, Status: model.CycleStopped})
	stats := &fakeStatsStore{}
	a := New(cycles, stats, &fakeParser{samples: sampleSamples()})

	cycleID, err := a.Import(hscontext.Background(), writeJTL(t), 7, 3, 5, model.ClusterTypeAmazonCloud, 42, 50, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if cycleID != 42 {
		t.Fatalf("cycleID = %d, want 42 (should reuse the target cycle, not create a new one)", cycleID)
	}
	if len(cycles.cycles) != 1 {
		t.Fatalf("expected no new cycle to be created, got %d cycles", len(cycles.cycles))
	}
}

func TestImportPropagatesParseFailure(t *testing.T) {
	cycles := newFakeCycleStore()
	stats := &fakeStatsStore{}
	a := New(cycles, stats, &fakeParser{err: errParse})

	if _, err := a.Import(hscontext.Background(), writeJTL(t), 7, 3, 5, model.ClusterTypeAmazonCloud, 0, 50, nil); err == nil {
		t.Fatal("expected Import to fail when the parser fails")
	}
}

var errParse = &parseErr{}

type parseErr struct{}

func (*parseErr) Error() string { return "parse failure" }

func TestCreateReportTransitionsSelectedStoppedCyclesToReported(t *testing.T) {
	cycles := newFakeCycleStore(
		model.ExecutionCycle{ID: 1, ProjectID: 9, Status: model.CycleStopped},
		model.ExecutionCycle{ID: 2, ProjectID: 9, Status: model.CycleStopped},
	)
	stats := &fakeStatsStore{}
	a := New(cycles, stats, &fakeParser{})

	renderer := &fakeRenderer{}
	doc, err := a.CreateReport(hscontext.Background(), 9, []int64{1}, renderer)
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if string(doc) != "rendered" {
		t.Fatalf("doc = %q, want %q", doc, "rendered")
	}
	if cycles.cycles[1].Status != model.CycleReported {
		t.Fatalf("cycle 1 status = %q, want %q", cycles.cycles[1].Status, model.CycleReported)
	}
	if cycles.cycles[2].Status != model.CycleStopped {
		t.Fatal("cycle 2 was not selected and must not be transitioned")
	}
}

type fakeRenderer struct{}

func (*fakeRenderer) Render(cycles []model.ExecutionCycle, clientStats []model.ClientStat, targetStats []model.TargetStat) ([]byte, error) {
	return []byte("rendered"), nil
}
