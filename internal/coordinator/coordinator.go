// Package coordinator is the Project Coordinator (C7): the façade exposing
// setup/start/stop/abort/terminate/results/status/purge, orchestrating C3
// (cluster backends), C4 (agent manager), C5 (target monitors), and C6
// (execution cycle controller) under a per-project advisory lock.
package coordinator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/agent"
	"github.com/hailstorm-project/hailstorm/internal/cluster"
	"github.com/hailstorm-project/hailstorm/internal/cluster/elastic"
	"github.com/hailstorm-project/hailstorm/internal/cluster/fixed"
	"github.com/hailstorm-project/hailstorm/internal/cluster/registry"
	"github.com/hailstorm-project/hailstorm/internal/config"
	"github.com/hailstorm-project/hailstorm/internal/cycle"
	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/hserrors"
	"github.com/hailstorm-project/hailstorm/internal/metrics"
	"github.com/hailstorm-project/hailstorm/internal/monitor"
	"github.com/hailstorm-project/hailstorm/internal/remote"
	"github.com/hailstorm-project/hailstorm/internal/report"
	"github.com/hailstorm-project/hailstorm/internal/report/stats"
	"github.com/hailstorm-project/hailstorm/internal/store"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
	"github.com/hailstorm-project/hailstorm/internal/testplan"
	"github.com/hailstorm-project/hailstorm/internal/util"
)

// instrument times one coordinator command and records its outcome; call as
// `defer instrument(projectID, "start", &err)()` at the top of a command
// method with a named error return.
func instrument(projectID int64, command string, errOut *error) func() {
	started := time.Now()
	projectLabel := strconv.FormatInt(projectID, 10)
	return func() {
		metrics.CommandDurationSeconds.WithLabelValues(projectLabel, command).Observe(time.Since(started).Seconds())
		if errOut != nil && *errOut != nil {
			metrics.CommandFailuresTotal.WithLabelValues(projectLabel, command).Inc()
		}
	}
}

// Coordinator is the top-level API any CLI or RPC surface drives the
// engine through. One Coordinator serves every project; per-project
// exclusivity comes from Locks.
type Coordinator struct {
	Store        *store.Store
	Locks        *util.ProjectLock
	Cycles       *cycle.Controller
	Monitors     monitor.Backend
	TestPlans    testplan.Parser
	Reports      *report.Aggregator
	WorkspaceDir string // root under which SEQUENCE-<cycle_id>/ directories are created
}

func New(s *store.Store, testPlanParser testplan.Parser, monitorBackend monitor.Backend, reportAggregator *report.Aggregator, workspaceDir string) *Coordinator {
	return &Coordinator{
		Store:        s,
		Locks:        util.NewProjectLock(),
		Cycles:       cycle.New(s.Cycles),
		Monitors:     monitorBackend,
		TestPlans:    testPlanParser,
		Reports:      reportAggregator,
		WorkspaceDir: workspaceDir,
	}
}

// projectClusters resolves a backend per configured cluster, keyed by the
// Cluster row's id. Elastic/fixed parameters are built from the stored
// AmazonCloud/DataCenter rows plus the project's JMeter version/installer.
func (c *Coordinator) projectClusters(ctx *hscontext.Context, project *model.Project, cfg *config.ProjectConfig) (map[int64]cluster.Backend, map[int64]model.ClusterType, error) {
	clusters, err := c.Store.Clusters.ListClusters(ctx, project.ID)
	if err != nil {
		return nil, nil, err
	}
	backends := make(map[int64]cluster.Backend, len(clusters))
	kinds := make(map[int64]model.ClusterType, len(clusters))
	for _, cl := range clusters {
		kinds[cl.ID] = cl.ClusterType
		switch cl.ClusterType {
		case model.ClusterTypeAmazonCloud:
			cloud, err := c.Store.Clusters.GetAmazonCloud(ctx, cl.ID)
			if err != nil {
				return nil, nil, err
			}
			backend, err := registry.NewBackend(ctx, cl.ClusterType, &elastic.Config{
				Cloud:         cloud,
				ProjectCode:   project.Code,
				JmeterVersion: cfg.JmeterVersion,
				InstallerURL:  cfg.JmeterInstallerURL,
			}, nil)
			if err != nil {
				return nil, nil, err
			}
			backends[cl.ID] = backend
		case model.ClusterTypeDataCenter:
			dc, err := c.Store.Clusters.GetDataCenter(ctx, cl.ID)
			if err != nil {
				return nil, nil, err
			}
			backend, err := registry.NewBackend(ctx, cl.ClusterType, nil, &fixed.Config{DataCenter: dc})
			if err != nil {
				return nil, nil, err
			}
			backends[cl.ID] = backend
		}
	}
	return backends, kinds, nil
}

// ConfigSignature derives serial_version from a stable hash of every
// setup-relevant config input.
func ConfigSignature(cfg *config.ProjectConfig) (string, error) {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return "", errors.Wrap(err, "marshalling config for signature")
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// Setup re-runs cluster/target configuration only when the config
// signature changed or force is set. Partial cluster
// failures are aggregated into a SetupException; on any failure,
// serial_version is nulled to force retry next time.
func (c *Coordinator) Setup(ctx *hscontext.Context, projectID int64, cfg *config.ProjectConfig, force bool) (err error) {
	defer instrument(projectID, "setup", &err)()
	unlock := c.Locks.Lock(projectID)
	defer unlock()

	project, err := c.Store.Projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}

	signature, err := ConfigSignature(cfg)
	if err != nil {
		return err
	}
	if !force && project.SerialVersion != nil && *project.SerialVersion == signature {
		ctx.Log.Debug().Str("project_code", project.Code).Msg("setup skipped, configuration signature unchanged")
		return nil
	}

	setupErr := hserrors.NewSetupException()

	backends, kinds, err := c.projectClusters(ctx, project, cfg)
	if err != nil {
		setupErr.Add("resolving cluster backends", err)
	}
	for clusterID, backend := range backends {
		if err := backend.Setup(ctx); err != nil {
			setupErr.Add(fmt.Sprintf("cluster %d", clusterID), err)
			metrics.ClusterSetupFailuresTotal.WithLabelValues(project.Code, string(kinds[clusterID])).Inc()
		}
	}

	for _, tc := range cfg.TargetHosts {
		target := model.NewTargetHost(tc.HostName, tc.RoleName, tc.Type)
		target.ProjectID = project.ID
		target.SSHIdentity = tc.SSHIdentity
		target.UserName = tc.UserName
		if tc.SamplingInterval > 0 {
			target.SamplingInterval = tc.SamplingInterval
		}
		if err := target.Validate(); err != nil {
			setupErr.Add(fmt.Sprintf("target host %s", tc.HostName), err)
			continue
		}
		if err := c.Store.Targets.Create(ctx, target); err != nil {
			setupErr.Add(fmt.Sprintf("target host %s", tc.HostName), err)
		}
	}

	finalErr := setupErr.ErrorOrNil()
	if finalErr != nil {
		_ = c.Store.Projects.SetSerialVersion(ctx, projectID, nil)
		return finalErr
	}
	return c.Store.Projects.SetSerialVersion(ctx, projectID, &signature)
}

// Start refuses if a cycle is already started, otherwise creates one,
// implicitly runs setup, starts monitors before load, and aborts the cycle
// if either phase fails.
func (c *Coordinator) Start(ctx *hscontext.Context, projectID int64, cfg *config.ProjectConfig, redeploy bool) (cy *model.ExecutionCycle, err error) {
	defer instrument(projectID, "start", &err)()
	unlock := c.Locks.Lock(projectID)
	defer unlock()

	if _, err := c.Cycles.Current(ctx, projectID); err == nil {
		return nil, &hserrors.ExecutionCycleExistsException{ProjectID: projectID}
	} else if _, ok := err.(*hserrors.ExecutionCycleNotExistsException); !ok {
		return nil, err
	}

	if err := c.setupLocked(ctx, projectID, cfg, redeploy); err != nil {
		return nil, err
	}

	project, err := c.Store.Projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	plans, err := c.Store.Plans.ListActive(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	threadsTotal := 0
	for _, p := range plans {
		threadsTotal += p.LatestThreadsCount
	}

	cy, err = c.Cycles.Start(ctx, projectID, threadsTotal)
	if err != nil {
		return nil, err
	}

	targets, err := c.Store.Targets.ListByProject(ctx, project.ID)
	if err != nil {
		_ = c.Cycles.Abort(ctx, cy)
		return nil, err
	}
	if err := c.startMonitors(ctx, targets); err != nil {
		_ = c.Cycles.Abort(ctx, cy)
		return nil, err
	}

	if err := c.generateLoad(ctx, project, cfg, plans, cy, redeploy); err != nil {
		_ = c.Cycles.Abort(ctx, cy)
		return nil, err
	}
	return cy, nil
}

// setupLocked calls Setup without re-acquiring the project lock, since
// Start already holds it.
func (c *Coordinator) setupLocked(ctx *hscontext.Context, projectID int64, cfg *config.ProjectConfig, force bool) error {
	project, err := c.Store.Projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	signature, err := ConfigSignature(cfg)
	if err != nil {
		return err
	}
	if !force && project.SerialVersion != nil && *project.SerialVersion == signature {
		return nil
	}

	setupErr := hserrors.NewSetupException()
	backends, _, err := c.projectClusters(ctx, project, cfg)
	if err != nil {
		setupErr.Add("resolving cluster backends", err)
	}
	for clusterID, backend := range backends {
		if err := backend.Setup(ctx); err != nil {
			setupErr.Add(fmt.Sprintf("cluster %d", clusterID), err)
		}
	}
	if finalErr := setupErr.ErrorOrNil(); finalErr != nil {
		_ = c.Store.Projects.SetSerialVersion(ctx, projectID, nil)
		return finalErr
	}
	return c.Store.Projects.SetSerialVersion(ctx, projectID, &signature)
}

func (c *Coordinator) startMonitors(ctx *hscontext.Context, targets []model.TargetHost) error {
	pool := util.NewPool(util.DefaultPoolSize)
	return pool.Each(ctx, len(targets), func(ctx *hscontext.Context, i int) error {
		t := targets[i]
		execPath, err := c.Monitors.Install(ctx, &t)
		if err != nil {
			return errors.Wrapf(err, "installing monitor on %s", t.HostName)
		}
		pid, err := c.Monitors.StartMonitoring(ctx, &t, execPath)
		if err != nil {
			return errors.Wrapf(err, "starting monitor on %s", t.HostName)
		}
		return c.Store.Targets.SetMonitorState(ctx, t.ID, true, &execPath, &pid)
	})
}

// generateLoad reconciles and deploys each active plan's agents, then
// starts JMeter on each. It assumes one cluster per project, the common
// case and the first the schema names. redeploy forces every deploy file
// across regardless of remote content hash, for a plan whose local files
// changed without a content_hash bump the agents would otherwise see.
func (c *Coordinator) generateLoad(ctx *hscontext.Context, project *model.Project, cfg *config.ProjectConfig, plans []model.JmeterPlan, cy *model.ExecutionCycle, redeploy bool) error {
	clusters, err := c.Store.Clusters.ListClusters(ctx, project.ID)
	if err != nil {
		return err
	}
	if len(clusters) == 0 {
		return errors.New("project has no configured clusters")
	}
	primary := clusters[0]

	backends, _, err := c.projectClusters(ctx, project, cfg)
	if err != nil {
		return err
	}
	backend := backends[primary.ID]

	mgr := agent.New(c.Store.Agents, backend, c.executorFor(primary))
	sequenceDir := filepath.Join(c.WorkspaceDir, cy.SequenceDir())
	if err := os.MkdirAll(sequenceDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", sequenceDir)
	}

	for i := range plans {
		plan := &plans[i]
		agents, err := mgr.Reconcile(ctx, primary.ID, primary.ClusterType, plan, project.MasterSlaveMode)
		if err != nil {
			return err
		}
		if err := mgr.Deploy(ctx, agents, deployFiles(plan), remoteDeployDir(plan), redeploy); err != nil {
			return err
		}
		if err := mgr.Run(ctx, agents, remoteDeployDir(plan), nil); err != nil {
			return err
		}
	}
	return nil
}

func remoteDeployDir(plan *model.JmeterPlan) string {
	return fmt.Sprintf("/opt/hailstorm/%s", plan.TestPlanName)
}

// deployFiles maps each local file Deploy must upload to its remote
// filename: the test plan itself as plan.jmx, plus every data file
// IngestPlan recorded from the .jmx's CSVDataSet entries, resolved
// relative to the plan's local directory.
func deployFiles(plan *model.JmeterPlan) map[string]string {
	files := map[string]string{plan.LocalPath: "plan.jmx"}
	dir := filepath.Dir(plan.LocalPath)
	for _, name := range plan.DataFiles {
		files[filepath.Join(dir, name)] = name
	}
	return files
}

// executorFor builds a remote.Executor resolver for a cluster, reading
// host credentials from the agent's public IP and the cluster's identity.
func (c *Coordinator) executorFor(cl model.Cluster) func(*model.LoadAgent) (*remote.Executor, error) {
	return func(a *model.LoadAgent) (*remote.Executor, error) {
		if a.PublicIPAddress == nil {
			return nil, errors.Errorf("agent %d has no public ip yet", a.ID)
		}
		return remote.NewExecutor(remote.Host{Address: *a.PublicIPAddress, UserName: "ubuntu"})
	}
}

// Stop requires a started cycle; stops load generation then monitors
// (monitors stopped even if load-stop fails), transitioning to stopped on
// success or aborted on load-stop failure.
func (c *Coordinator) Stop(ctx *hscontext.Context, projectID int64, wait, suspend bool) (err error) {
	defer instrument(projectID, "stop", &err)()
	unlock := c.Locks.Lock(projectID)
	defer unlock()

	cy, err := c.Cycles.Current(ctx, projectID)
	if err != nil {
		return err
	}

	project, err := c.Store.Projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	plans, err := c.Store.Plans.ListActive(ctx, project.ID)
	if err != nil {
		return err
	}

	loadStopErr := c.stopLoad(ctx, project, plans, wait, suspend)

	targets, err := c.Store.Targets.ListByProject(ctx, project.ID)
	if err != nil {
		return err
	}
	_ = c.stopMonitors(ctx, targets, loadStopErr == nil, cy)

	if loadStopErr != nil {
		_ = c.Cycles.Abort(ctx, cy)
		return loadStopErr
	}

	if err := c.collectAndProcess(ctx, project, plans, cy); err != nil {
		ctx.Log.Error().Err(err).Int64("cycle_id", cy.ID).Msg("collecting/processing results failed, cycle still marked stopped")
	}
	if err := c.Cycles.Stop(ctx, cy); err != nil {
		return err
	}
	metrics.CycleDurationSeconds.WithLabelValues(project.Code).Observe(time.Since(cy.StartedAt).Seconds())
	return nil
}

// collectAndProcess pulls each plan's Master result file down to the
// cycle's workspace directory and aggregates it into PageStat/ClientStat
// rows.
func (c *Coordinator) collectAndProcess(ctx *hscontext.Context, project *model.Project, plans []model.JmeterPlan, cy *model.ExecutionCycle) error {
	clusters, err := c.Store.Clusters.ListClusters(ctx, project.ID)
	if err != nil || len(clusters) == 0 {
		return err
	}
	primary := clusters[0]
	cfg := &config.ProjectConfig{}
	backends, _, err := c.projectClusters(ctx, project, cfg)
	if err != nil {
		return err
	}
	backend := backends[primary.ID]
	mgr := agent.New(c.Store.Agents, backend, c.executorFor(primary))

	sequenceDir := filepath.Join(c.WorkspaceDir, cy.SequenceDir())
	if err := os.MkdirAll(sequenceDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", sequenceDir)
	}

	intervals := breakupIntervals(project)
	aggregateErr := hserrors.NewSetupException()
	for i := range plans {
		plan := &plans[i]
		agents, err := c.Store.Agents.ListByPlan(ctx, plan.ID)
		if err != nil {
			aggregateErr.Add(fmt.Sprintf("plan %d", plan.ID), err)
			continue
		}
		if err := mgr.Collect(ctx, agents, remoteDeployDir(plan), sequenceDir); err != nil {
			aggregateErr.Add(fmt.Sprintf("collecting plan %d", plan.ID), err)
			continue
		}
		for _, a := range agents {
			if a.Type != model.LoadAgentMaster {
				continue
			}
			localPath := filepath.Join(sequenceDir, fmt.Sprintf("agent-%d.jtl", a.ID))
			if err := c.Reports.ProcessArtifact(ctx, cy.ID, plan.ID, a.ClusterableID, a.ClusterableType, localPath, plan.LatestThreadsCount, intervals); err != nil {
				aggregateErr.Add(fmt.Sprintf("processing plan %d agent %d", plan.ID, a.ID), err)
			}
		}
	}
	return aggregateErr.ErrorOrNil()
}

func (c *Coordinator) stopLoad(ctx *hscontext.Context, project *model.Project, plans []model.JmeterPlan, wait, suspend bool) error {
	clusters, err := c.Store.Clusters.ListClusters(ctx, project.ID)
	if err != nil || len(clusters) == 0 {
		return err
	}
	primary := clusters[0]

	cfg := &config.ProjectConfig{} // backend Setup was already run; Stop only needs RequiredAgentCount-free operations
	backends, _, err := c.projectClusters(ctx, project, cfg)
	if err != nil {
		return err
	}
	backend := backends[primary.ID]
	mgr := agent.New(c.Store.Agents, backend, c.executorFor(primary))

	for i := range plans {
		agents, err := c.Store.Agents.ListByPlan(ctx, plans[i].ID)
		if err != nil {
			return err
		}
		if err := mgr.Stop(ctx, agents, wait, suspend); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) stopMonitors(ctx *hscontext.Context, targets []model.TargetHost, createTargetStat bool, cy *model.ExecutionCycle) error {
	pool := util.NewPool(util.DefaultPoolSize)
	return pool.Each(ctx, len(targets), func(ctx *hscontext.Context, i int) error {
		t := targets[i]
		summary, err := c.Monitors.StopMonitoring(ctx, &t, createTargetStat)
		if err != nil {
			return errors.Wrapf(err, "stopping monitor on %s", t.HostName)
		}
		if err := c.Store.Targets.SetMonitorState(ctx, t.ID, false, t.ExecutablePath, nil); err != nil {
			return err
		}
		if summary == nil {
			return nil
		}
		stat := model.TargetStat{
			ExecutionCycleID:   cy.ID,
			TargetHostID:       t.ID,
			AverageCPUUsage:    summary.AverageCPUUsage,
			AverageMemoryUsage: summary.AverageMemoryUsage,
			AverageSwapUsage:   summary.AverageSwapUsage,
			CPUUsageTrend:      summary.CPUUsageTrend,
			MemoryUsageTrend:   summary.MemoryUsageTrend,
			SwapUsageTrend:     summary.SwapUsageTrend,
		}
		return c.Store.Stats.CreateTargetStat(ctx, &stat)
	})
}

// Abort is Stop's forceful sibling: monitors are stopped without creating
// a TargetStat, load generation is stopped as in Stop but without waiting
// for JMeter to exit (no stronger signal than Stop's kill is sent), and the
// cycle lands in aborted whatever the outcome of those two steps.
func (c *Coordinator) Abort(ctx *hscontext.Context, projectID int64, suspend bool) (err error) {
	defer instrument(projectID, "abort", &err)()
	unlock := c.Locks.Lock(projectID)
	defer unlock()

	cy, err := c.Cycles.Current(ctx, projectID)
	if err != nil {
		return err
	}
	project, err := c.Store.Projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	plans, err := c.Store.Plans.ListActive(ctx, project.ID)
	if err != nil {
		return err
	}
	_ = c.stopLoad(ctx, project, plans, false, suspend)

	targets, err := c.Store.Targets.ListByProject(ctx, project.ID)
	if err == nil {
		_ = c.stopMonitors(ctx, targets, false, cy)
	}
	if err := c.Cycles.Abort(ctx, cy); err != nil {
		return err
	}
	metrics.CycleDurationSeconds.WithLabelValues(project.Code).Observe(time.Since(cy.StartedAt).Seconds())
	return nil
}

// Terminate releases every backend resource (agents terminated, AMIs
// kept), clears serial_version, and terminates the current cycle if any
//.
func (c *Coordinator) Terminate(ctx *hscontext.Context, projectID int64) (err error) {
	defer instrument(projectID, "terminate", &err)()
	unlock := c.Locks.Lock(projectID)
	defer unlock()

	project, err := c.Store.Projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	cfg := &config.ProjectConfig{}
	backends, _, err := c.projectClusters(ctx, project, cfg)
	if err != nil {
		return err
	}

	terminateErr := hserrors.NewSetupException()
	for clusterID, backend := range backends {
		plans, err := c.Store.Plans.ListActive(ctx, project.ID)
		if err != nil {
			terminateErr.Add(fmt.Sprintf("cluster %d", clusterID), err)
			continue
		}
		for _, plan := range plans {
			agents, err := c.Store.Agents.ListByPlan(ctx, plan.ID)
			if err != nil {
				terminateErr.Add(fmt.Sprintf("cluster %d plan %d", clusterID, plan.ID), err)
				continue
			}
			mgr := agent.New(c.Store.Agents, backend, c.executorFor(model.Cluster{ID: clusterID}))
			if err := mgr.Terminate(ctx, agents); err != nil {
				terminateErr.Add(fmt.Sprintf("cluster %d plan %d", clusterID, plan.ID), err)
			}
		}
		if err := backend.Cleanup(ctx); err != nil {
			terminateErr.Add(fmt.Sprintf("cluster %d cleanup", clusterID), err)
		}
	}

	if err := c.Store.Projects.SetSerialVersion(ctx, projectID, nil); err != nil {
		terminateErr.Add("clearing serial_version", err)
	}

	if cy, err := c.Cycles.Current(ctx, projectID); err == nil {
		if err := c.Cycles.Terminate(ctx, cy); err != nil {
			terminateErr.Add("terminating current cycle", err)
		}
	}
	return terminateErr.ErrorOrNil()
}

// Status lists agents whose stored jmeter_pid is non-nil for the project's
// current cycle; it reads the store only and does not probe the agents.
// Returns an empty slice if no cycle is running.
func (c *Coordinator) Status(ctx *hscontext.Context, projectID int64) ([]model.LoadAgent, error) {
	cy, err := c.Cycles.Current(ctx, projectID)
	if err != nil {
		if _, ok := err.(*hserrors.ExecutionCycleNotExistsException); ok {
			return nil, nil
		}
		return nil, err
	}
	_ = cy

	project, err := c.Store.Projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	plans, err := c.Store.Plans.ListActive(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	var running []model.LoadAgent
	for _, plan := range plans {
		agents, err := c.Store.Agents.ListByPlan(ctx, plan.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range agents {
			if a.Running() {
				running = append(running, a)
			}
		}
	}
	return running, nil
}

// ResultsOp is the operation selector for Results.
type ResultsOp string

const (
	ResultsShow    ResultsOp = "show"
	ResultsExclude ResultsOp = "exclude"
	ResultsInclude ResultsOp = "include"
	ResultsExport  ResultsOp = "export"
	ResultsReport  ResultsOp = "report"
)

// Results dispatches the results sub-commands over a set of cycle ids
//. Import is exposed separately via ImportResult
// since it takes file-specific arguments show/exclude/include/export/report
// don't need.
func (c *Coordinator) Results(ctx *hscontext.Context, projectID int64, op ResultsOp, cycleIDs []int64, exportPath string, renderer report.Renderer) (interface{}, error) {
	switch op {
	case ResultsShow:
		all, err := c.Store.Cycles.ListByProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if len(cycleIDs) == 0 {
			return all, nil
		}
		wanted := make(map[int64]bool, len(cycleIDs))
		for _, id := range cycleIDs {
			wanted[id] = true
		}
		var filtered []model.ExecutionCycle
		for _, cy := range all {
			if wanted[cy.ID] {
				filtered = append(filtered, cy)
			}
		}
		return filtered, nil
	case ResultsExclude, ResultsInclude:
		for _, id := range cycleIDs {
			cy, err := c.Store.Cycles.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if op == ResultsExclude {
				err = c.Cycles.Exclude(ctx, cy)
			} else {
				err = c.Cycles.Include(ctx, cy)
			}
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	case ResultsExport:
		return nil, c.Reports.Export(ctx, cycleIDs, exportPath)
	case ResultsReport:
		return c.Reports.CreateReport(ctx, projectID, cycleIDs, renderer)
	default:
		return nil, errors.Errorf("unknown results operation %q", op)
	}
}

// ImportResult attaches an externally produced .jtl file to a project's
// results: it reverses Collect/ProcessArtifact for data gathered outside
// a normal start/stop run. When targetCycleID is 0 a new stopped cycle is
// created to hold it rather than requiring one to already exist. Exposed
// separately from Results since it takes file-specific arguments (a local
// path, a plan name, an optional thread count) the other results
// sub-commands don't need.
func (c *Coordinator) ImportResult(ctx *hscontext.Context, projectID int64, planName, localPath string, targetCycleID int64, threadsCount int) (cycleID int64, err error) {
	defer instrument(projectID, "import", &err)()

	project, err := c.Store.Projects.GetByID(ctx, projectID)
	if err != nil {
		return 0, err
	}
	plan, err := c.Store.Plans.GetByName(ctx, projectID, planName)
	if err != nil {
		return 0, errors.Wrapf(err, "looking up plan %q", planName)
	}
	clusters, err := c.Store.Clusters.ListClusters(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if len(clusters) == 0 {
		return 0, errors.New("project has no configured clusters")
	}
	primary := clusters[0]
	if threadsCount == 0 {
		threadsCount = plan.LatestThreadsCount
	}
	return c.Reports.Import(ctx, localPath, projectID, plan.ID, primary.ID, primary.ClusterType, targetCycleID, threadsCount, breakupIntervals(project))
}

// Purge with scope="tests" marks every execution cycle of the project
// terminated; no cycle or stat rows are deleted. scope="all" deletes the
// whole project, relying on ON DELETE CASCADE for the rows under it.
func (c *Coordinator) Purge(ctx *hscontext.Context, projectID int64, scope string) (err error) {
	defer instrument(projectID, "purge", &err)()
	unlock := c.Locks.Lock(projectID)
	defer unlock()

	switch scope {
	case "tests":
		cycles, err := c.Store.Cycles.ListByProject(ctx, projectID)
		if err != nil {
			return err
		}
		for _, cy := range cycles {
			if err := c.Store.Cycles.Transition(ctx, cy.ID, model.CycleTerminated, cy.StoppedAt); err != nil {
				return err
			}
		}
		return nil
	case "all":
		return c.Store.Projects.PurgeAll(ctx, projectID)
	default:
		return errors.Errorf("unknown purge scope %q", scope)
	}
}

// IngestPlan parses a .jmx file at localPath and upserts its JmeterPlan row,
// deriving thread count/properties from the parse and content_hash from the
// file bytes.
func (c *Coordinator) IngestPlan(ctx *hscontext.Context, projectID int64, testPlanName, localPath string) (*model.JmeterPlan, error) {
	parsed, err := c.TestPlans.Parse(localPath)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing test plan %s", localPath)
	}
	hash, err := planContentHash(localPath)
	if err != nil {
		return nil, err
	}
	plan := &model.JmeterPlan{
		ProjectID:          projectID,
		TestPlanName:       testPlanName,
		ContentHash:        hash,
		Active:             true,
		Properties:         parsed.Properties,
		LatestThreadsCount: parsed.ThreadCount,
		LocalPath:          localPath,
		DataFiles:          parsed.DataFiles,
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := c.Store.Plans.Upsert(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func planContentHash(path string) (string, error) {
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

// breakupIntervals parses a project's samples_breakup_interval column into
// ints for report aggregation, defaulting to "1,3,5" on a parse failure.
func breakupIntervals(project *model.Project) []int {
	intervals, err := stats.ParseBreakupIntervalList(project.SamplesBreakupInterval)
	if err != nil || len(intervals) == 0 {
		return []int{1, 3, 5}
	}
	return intervals
}
