// Package agent is the Agent Manager (C4): reconciles each active
// JmeterPlan's load agents against a cluster.Backend's capacity, deploys
// test artefacts, and drives run/stop/collect/terminate.
package agent

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/cluster"
	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/hserrors"
	"github.com/hailstorm-project/hailstorm/internal/metrics"
	"github.com/hailstorm-project/hailstorm/internal/remote"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
	"github.com/hailstorm-project/hailstorm/internal/util"
)

// Store is the persistence surface the Agent Manager needs: a narrow slice
// of *store.AgentRepository's methods, so the reconciliation algorithm is
// testable against a fake without a database.
type Store interface {
	ListByPlan(ctx *hscontext.Context, planID int64) ([]model.LoadAgent, error)
	SetActive(ctx *hscontext.Context, id int64, active bool) error
	Create(ctx *hscontext.Context, a *model.LoadAgent) error
	CountActiveMasters(ctx *hscontext.Context, clusterableID int64, clusterableType model.ClusterType, planID int64) (int, error)
	SetIdentity(ctx *hscontext.Context, id int64, identifier string, publicIP, privateIP *string) error
	SetType(ctx *hscontext.Context, id int64, t model.LoadAgentType) error
	SetRuntime(ctx *hscontext.Context, id int64, publicIP, privateIP *string, pid *int) error
	Delete(ctx *hscontext.Context, id int64) error
}

// processWaitTimeout/processPollInterval bound Stop's optional wait for a
// Master agent's JMeter process to exit.
const (
	processWaitTimeout  = 10 * time.Minute
	processPollInterval = 5 * time.Second
)

// Manager owns the reconciliation algorithm and per-agent lifecycle
// operations for one cluster backend.
type Manager struct {
	Store   Store
	Backend cluster.Backend
	Pool    *util.Pool

	// Executor resolves the remote.Executor for one agent, supplied by the
	// caller since only it knows per-backend connection details (identity
	// file, port, user name).
	Executor func(agent *model.LoadAgent) (*remote.Executor, error)
}

func New(s Store, backend cluster.Backend, executor func(*model.LoadAgent) (*remote.Executor, error)) *Manager {
	return &Manager{Store: s, Backend: backend, Pool: util.NewPool(util.DefaultPoolSize), Executor: executor}
}

// Reconcile drives one plan's agent set against a clusterable (cluster-
// backed resource) toward its desired state, ensuring exactly the required
// agent count exists and master/slave assignment is unambiguous.
func (m *Manager) Reconcile(ctx *hscontext.Context, clusterableID int64, clusterableType model.ClusterType, plan *model.JmeterPlan, masterSlaveMode bool) ([]model.LoadAgent, error) {
	n, err := m.Backend.RequiredAgentCount(plan)
	if err != nil {
		return nil, err
	}

	all, err := m.Store.ListByPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}

	var active, inactive []model.LoadAgent
	for _, a := range all {
		if a.Active {
			active = append(active, a)
		} else {
			inactive = append(inactive, a)
		}
	}

	switch {
	case len(active) < n:
		if err := m.createOrEnable(ctx, &active, inactive, n-len(active), clusterableID, clusterableType, plan); err != nil {
			return nil, err
		}
	case len(active) > n:
		surplus := agentsToRemove(active, n)
		for i := range surplus {
			if err := m.Store.SetActive(ctx, surplus[i].ID, false); err != nil {
				return nil, err
			}
		}
		active = active[:len(active)-len(surplus)]
	}

	if masterSlaveMode {
		if err := m.assignMasterSlave(ctx, active, plan, clusterableID, clusterableType); err != nil {
			return nil, err
		}
	}

	if err := m.Backend.EnsureAgents(ctx, active, n); err != nil {
		return nil, err
	}

	// EnsureAgents only mutates the passed-in structs in memory (a new
	// identifier/public IP for a freshly launched host); persist that back
	// so a later reload (Stop, Collect, Status, Terminate) sees the real
	// host instead of a blank row.
	for i := range active {
		a := &active[i]
		if err := m.Store.SetIdentity(ctx, a.ID, a.Identifier, a.PublicIPAddress, a.PrivateIPAddress); err != nil {
			return nil, err
		}
	}

	masterCount, slaveCount := 0, 0
	for _, a := range active {
		if a.Type == model.LoadAgentMaster {
			masterCount++
		} else {
			slaveCount++
		}
	}
	projectLabel := strconv.FormatInt(plan.ProjectID, 10)
	metrics.ActiveAgentsGauge.WithLabelValues(projectLabel, string(model.LoadAgentMaster)).Set(float64(masterCount))
	metrics.ActiveAgentsGauge.WithLabelValues(projectLabel, string(model.LoadAgentSlave)).Set(float64(slaveCount))

	return active, nil
}

// createOrEnable flips disabled agents back to active first, then creates
// new ones via the backend, in that priority order.
func (m *Manager) createOrEnable(ctx *hscontext.Context, active *[]model.LoadAgent, inactive []model.LoadAgent, need int, clusterableID int64, clusterableType model.ClusterType, plan *model.JmeterPlan) error {
	for i := 0; need > 0 && i < len(inactive); i++ {
		if err := m.Store.SetActive(ctx, inactive[i].ID, true); err != nil {
			return err
		}
		inactive[i].Active = true
		*active = append(*active, inactive[i])
		need--
	}
	for ; need > 0; need-- {
		a := &model.LoadAgent{
			ClusterableID:   clusterableID,
			ClusterableType: clusterableType,
			JmeterPlanID:    plan.ID,
			Active:          true,
			Type:            model.LoadAgentSlave,
			// Identifier is left blank: the backend originates it
			// (EnsureAgents treats a blank identifier as "needs a new
			// host" and fills it in once the host exists).
		}
		if err := m.Store.Create(ctx, a); err != nil {
			return err
		}
		*active = append(*active, *a)
	}
	return nil
}

// agentsToRemove yields the surplus when shrinking to n, lowest-priority
// first: the agents currently least essential are removed before ones
// already known-good.
func agentsToRemove(active []model.LoadAgent, n int) []model.LoadAgent {
	surplus := len(active) - n
	if surplus <= 0 {
		return nil
	}
	ordered := make([]model.LoadAgent, len(active))
	copy(ordered, active)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID > ordered[j].ID })
	return ordered[:surplus]
}

// assignMasterSlave enforces at most one active Master per plan, raising
// MasterSlaveSwitchOnConflict when more than one is found, and persists a
// newly-elected Master via the store's CountActiveMasters/SetType rather
// than deciding from the in-memory slice alone, so a concurrent reconcile
// on the same plan can't elect two masters.
func (m *Manager) assignMasterSlave(ctx *hscontext.Context, active []model.LoadAgent, plan *model.JmeterPlan, clusterableID int64, clusterableType model.ClusterType) error {
	masters, err := m.Store.CountActiveMasters(ctx, clusterableID, clusterableType, plan.ID)
	if err != nil {
		return err
	}
	if masters > 1 {
		return &hserrors.MasterSlaveSwitchOnConflict{PlanName: plan.TestPlanName, ClusterID: clusterableID, MasterCount: masters}
	}
	if masters == 0 && len(active) > 0 {
		if err := m.Store.SetType(ctx, active[0].ID, model.LoadAgentMaster); err != nil {
			return err
		}
		active[0].Type = model.LoadAgentMaster
	}
	return nil
}

// Deploy uploads a plan's test-plan file, data files, and properties to
// each agent's working directory, creating the directory first since a
// fresh host has nothing under remoteDir yet. Upload itself skips a file
// whose content hash is already unchanged on the remote end unless
// redeploy forces the transfer regardless.
func (m *Manager) Deploy(ctx *hscontext.Context, agents []model.LoadAgent, files map[string]string, remoteDir string, redeploy bool) error {
	return m.Pool.Each(ctx, len(agents), func(ctx *hscontext.Context, i int) error {
		a := agents[i]
		exec, err := m.Executor(&a)
		if err != nil {
			return errors.Wrapf(err, "resolving executor for agent %d", a.ID)
		}
		if _, err := exec.Exec(ctx, fmt.Sprintf("mkdir -p %s", remoteDir)); err != nil {
			return errors.Wrapf(err, "creating %s on agent %d", remoteDir, a.ID)
		}
		for localPath, fileName := range files {
			remotePath := filepath.Join(remoteDir, fileName)
			if err := exec.Upload(ctx, localPath, remotePath, redeploy); err != nil {
				return errors.Wrapf(err, "deploying %s to agent %d", fileName, a.ID)
			}
		}
		return nil
	})
}

// Run starts JMeter on every Master agent (Slaves connect via RMI in
// master-slave mode) and records the resulting jmeter_pid.
func (m *Manager) Run(ctx *hscontext.Context, agents []model.LoadAgent, remoteDir string, slaveHosts []string) error {
	return m.Pool.Each(ctx, len(agents), func(ctx *hscontext.Context, i int) error {
		a := agents[i]
		if a.Type != model.LoadAgentMaster {
			return nil
		}
		exec, err := m.Executor(&a)
		if err != nil {
			return errors.Wrapf(err, "resolving executor for agent %d", a.ID)
		}
		cmd := fmt.Sprintf("cd %s && nohup jmeter -n -t plan.jmx -l result.jtl > jmeter.log 2>&1 & echo $!", remoteDir)
		result, err := exec.Exec(ctx, cmd)
		if err != nil {
			return err
		}
		var pid int
		if _, scanErr := fmt.Sscanf(result.Stdout, "%d", &pid); scanErr != nil {
			return errors.Wrapf(scanErr, "parsing jmeter pid from agent %d output %q", a.ID, result.Stdout)
		}
		return m.Store.SetRuntime(ctx, a.ID, a.PublicIPAddress, a.PrivateIPAddress, &pid)
	})
}

// Stop signals JMeter on each running Master agent, optionally waiting for
// the process to exit, and stops the underlying host when suspend is set
//.
func (m *Manager) Stop(ctx *hscontext.Context, agents []model.LoadAgent, wait, suspend bool) error {
	return m.Pool.Each(ctx, len(agents), func(ctx *hscontext.Context, i int) error {
		a := agents[i]
		if a.Type != model.LoadAgentMaster || a.JmeterPID == nil {
			return nil
		}
		exec, err := m.Executor(&a)
		if err != nil {
			return errors.Wrapf(err, "resolving executor for agent %d", a.ID)
		}
		if _, err := exec.Exec(ctx, fmt.Sprintf("kill %d", *a.JmeterPID)); err != nil {
			return err
		}
		if wait {
			if err := util.PollUntil(ctx, fmt.Sprintf("agent %d jmeter exit", a.ID), processWaitTimeout, processPollInterval, func() (bool, error) {
				result, execErr := exec.Exec(ctx, fmt.Sprintf("kill -0 %d 2>/dev/null && echo running || echo stopped", *a.JmeterPID))
				if execErr != nil {
					return false, execErr
				}
				return result.Stdout != "running\n" && result.Stdout != "running", nil
			}); err != nil {
				return err
			}
		}
		if err := m.Store.SetRuntime(ctx, a.ID, a.PublicIPAddress, a.PrivateIPAddress, nil); err != nil {
			return err
		}
		if suspend {
			if err := m.Backend.StopAgent(ctx, &a); err != nil {
				return err
			}
			return m.Store.SetRuntime(ctx, a.ID, nil, a.PrivateIPAddress, nil)
		}
		return nil
	})
}

// Collect pulls result files from each Master agent to the local cycle
// workspace under SEQUENCE-<cycle_id>/<agent-slug>.jtl.
func (m *Manager) Collect(ctx *hscontext.Context, agents []model.LoadAgent, remoteDir, localSequenceDir string) error {
	return m.Pool.Each(ctx, len(agents), func(ctx *hscontext.Context, i int) error {
		a := agents[i]
		if a.Type != model.LoadAgentMaster {
			return nil
		}
		exec, err := m.Executor(&a)
		if err != nil {
			return errors.Wrapf(err, "resolving executor for agent %d", a.ID)
		}
		localPath := filepath.Join(localSequenceDir, fmt.Sprintf("agent-%d.jtl", a.ID))
		return exec.Download(ctx, filepath.Join(remoteDir, "result.jtl"), localPath)
	})
}

// Terminate releases backend resources for each agent and deletes its
// store row once the backend confirms release.
func (m *Manager) Terminate(ctx *hscontext.Context, agents []model.LoadAgent) error {
	return m.Pool.Each(ctx, len(agents), func(ctx *hscontext.Context, i int) error {
		a := agents[i]
		if err := m.Backend.TerminateAgent(ctx, &a); err != nil {
			return errors.Wrapf(err, "terminating agent %d", a.ID)
		}
		return m.Store.Delete(ctx, a.ID)
	})
}
