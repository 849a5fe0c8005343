// Package report is the Result Aggregator & Reporter (C8): parses collected
// .jtl files into PageStat/ClientStat/TargetStat rows, exports/imports
// cycle artefacts as zip bundles, and hands off to an external report
// renderer to produce the final document.
package report

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/jtl"
	"github.com/hailstorm-project/hailstorm/internal/report/stats"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

// Renderer is the out-of-scope collaborator that turns aggregated stats
// into a human-facing document (PDF/HTML/whatever); Hailstorm depends only
// on this interface.
type Renderer interface {
	Render(cycles []model.ExecutionCycle, clientStats []model.ClientStat, targetStats []model.TargetStat) ([]byte, error)
}

// CycleStore is the slice of *store.CycleRepository the Aggregator needs,
// narrowed so Import/CreateReport are testable against a fake.
type CycleStore interface {
	GetByID(ctx *hscontext.Context, id int64) (*model.ExecutionCycle, error)
	ListByProject(ctx *hscontext.Context, projectID int64) ([]model.ExecutionCycle, error)
	Transition(ctx *hscontext.Context, id int64, status model.CycleStatus, stoppedAt *time.Time) error
	CreateImported(ctx *hscontext.Context, projectID int64, threadsCount int) (*model.ExecutionCycle, error)
}

// StatsStore is the slice of *store.StatsRepository the Aggregator needs.
type StatsStore interface {
	CreateArtifact(ctx *hscontext.Context, a *model.CycleArtifact) error
	ListArtifacts(ctx *hscontext.Context, cycleID int64) ([]model.CycleArtifact, error)
	CreateClientStat(ctx *hscontext.Context, cs *model.ClientStat) error
	CreatePageStats(ctx *hscontext.Context, pageStats []model.PageStat) error
	ListClientStats(ctx *hscontext.Context, cycleID int64) ([]model.ClientStat, error)
	ListTargetStats(ctx *hscontext.Context, cycleID int64) ([]model.TargetStat, error)
}

// Aggregator turns collected artefacts into stored stats and produces
// reports/export bundles from them.
type Aggregator struct {
	Cycles CycleStore
	Stats  StatsStore
	Parser jtl.Parser
}

func New(cycles CycleStore, stats StatsStore, parser jtl.Parser) *Aggregator {
	return &Aggregator{Cycles: cycles, Stats: stats, Parser: parser}
}

// ProcessArtifact parses one collected .jtl file and persists its PageStat
// rows under a new ClientStat. The artifact's own
// CycleArtifact row is recorded first so re-parsing never requires
// re-collecting from agents.
func (a *Aggregator) ProcessArtifact(ctx *hscontext.Context, cycleID, planID, clusterableID int64, clusterableType model.ClusterType, localPath string, threadsCount int, breakupIntervals []int) error {
	hash, err := contentHash(localPath)
	if err != nil {
		return err
	}
	artifact := &model.CycleArtifact{
		ExecutionCycleID: cycleID,
		JmeterPlanID:     planID,
		ClusterableID:    clusterableID,
		ClusterableType:  clusterableType,
		LocalPath:        localPath,
		ContentHash:      hash,
	}
	if err := a.Stats.CreateArtifact(ctx, artifact); err != nil {
		return err
	}

	samples, err := a.Parser.Parse(localPath)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", localPath)
	}

	pageStats := stats.AggregatePageStats(samples, breakupIntervals)
	clientStat := stats.AggregateClientStat(pageStats, threadsCount, samples)
	clientStat.ExecutionCycleID = cycleID
	clientStat.JmeterPlanID = planID
	clientStat.ClusterableID = clusterableID
	clientStat.ClusterableType = clusterableType

	if err := a.Stats.CreateClientStat(ctx, &clientStat); err != nil {
		return err
	}
	for i := range pageStats {
		pageStats[i].ClientStatID = clientStat.ID
	}
	return a.Stats.CreatePageStats(ctx, pageStats)
}

// CreateReport selects every stopped/reported cycle in cycleIDs, renders a
// document via renderer, and flips each included stopped cycle to reported
//.
func (a *Aggregator) CreateReport(ctx *hscontext.Context, projectID int64, cycleIDs []int64, renderer Renderer) ([]byte, error) {
	all, err := a.Cycles.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	wanted := toSet(cycleIDs)

	var selected []model.ExecutionCycle
	var clientStats []model.ClientStat
	var targetStats []model.TargetStat
	for _, cy := range all {
		if len(wanted) > 0 && !wanted[cy.ID] {
			continue
		}
		if cy.Status != model.CycleStopped && cy.Status != model.CycleReported {
			continue
		}
		selected = append(selected, cy)

		cs, err := a.Stats.ListClientStats(ctx, cy.ID)
		if err != nil {
			return nil, err
		}
		clientStats = append(clientStats, cs...)

		ts, err := a.Stats.ListTargetStats(ctx, cy.ID)
		if err != nil {
			return nil, err
		}
		targetStats = append(targetStats, ts...)
	}

	doc, err := renderer.Render(selected, clientStats, targetStats)
	if err != nil {
		return nil, errors.Wrap(err, "rendering report")
	}

	for _, cy := range selected {
		if cy.Status == model.CycleStopped {
			stoppedAt := cy.StoppedAt
			if err := a.Cycles.Transition(ctx, cy.ID, model.CycleReported, stoppedAt); err != nil {
				return nil, err
			}
		}
	}
	return doc, nil
}

// Export zips every artifact belonging to cycleIDs, laying them out under
// SEQUENCE-<cycle_id>/ within the archive exactly as the local workspace
// does.
func (a *Aggregator) Export(ctx *hscontext.Context, cycleIDs []int64, destZipPath string) error {
	out, err := os.Create(destZipPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", destZipPath)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	for _, cycleID := range cycleIDs {
		cy, err := a.Cycles.GetByID(ctx, cycleID)
		if err != nil {
			return err
		}
		artifacts, err := a.Stats.ListArtifacts(ctx, cycleID)
		if err != nil {
			return err
		}
		for _, artifact := range artifacts {
			if err := addFileToZip(zw, artifact.LocalPath, filepath.Join(cy.SequenceDir(), filepath.Base(artifact.LocalPath))); err != nil {
				return err
			}
		}
	}
	return nil
}

func addFileToZip(zw *zip.Writer, localPath, archivePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", localPath)
	}
	defer src.Close()

	dst, err := zw.Create(archivePath)
	if err != nil {
		return errors.Wrapf(err, "adding %s to archive", archivePath)
	}
	_, err = io.Copy(dst, src)
	return err
}

// Import reverses collection: given an external .jtl file, attach it to
// targetCycleID, or create a new stopped cycle for it when targetCycleID
// is 0, then recompute stats exactly as ProcessArtifact would for a
// collected file. Returns the cycle the artifact ended up under.
func (a *Aggregator) Import(ctx *hscontext.Context, localPath string, projectID, planID, clusterableID int64, clusterableType model.ClusterType, targetCycleID int64, threadsCount int, breakupIntervals []int) (int64, error) {
	cycleID := targetCycleID
	if cycleID == 0 {
		cy, err := a.Cycles.CreateImported(ctx, projectID, threadsCount)
		if err != nil {
			return 0, errors.Wrap(err, "creating cycle for import")
		}
		cycleID = cy.ID
	}
	if err := a.ProcessArtifact(ctx, cycleID, planID, clusterableID, clusterableType, localPath, threadsCount, breakupIntervals); err != nil {
		return 0, err
	}
	return cycleID, nil
}

func contentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
