// Package fixed implements the Static (DataCenter) cluster backend
//: a pre-provisioned fleet of machines reached over SSH,
// with no cloud-side lifecycle to manage.
package fixed

import (
	"os"

	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/cluster"
	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/hserrors"
	"github.com/hailstorm-project/hailstorm/internal/remote"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

// Config bundles a DataCenter row with the SSH port every machine in it is
// reached on.
type Config struct {
	DataCenter *model.DataCenter
	SSHPort    int
}

// Backend is the fixed cluster.Backend implementation.
type Backend struct {
	cfg Config
}

var _ cluster.Backend = (*Backend)(nil)

func New(cfg Config) *Backend {
	if cfg.SSHPort == 0 {
		cfg.SSHPort = 22
	}
	return &Backend{cfg: cfg}
}

// Setup validates SSH reachability to every configured machine in
// parallel; a machine that can't be reached surfaces as a
// partial failure in the aggregated SetupException rather than failing
// the whole cluster.
func (b *Backend) Setup(ctx *hscontext.Context) error {
	identity, err := os.ReadFile(b.cfg.DataCenter.SSHIdentity)
	if err != nil {
		return errors.Wrap(err, "reading ssh identity")
	}

	setupErr := hserrors.NewSetupException()
	group, groupCtx := hscontext.ErrGroup(ctx)
	results := make(chan error, len(b.cfg.DataCenter.Machines))
	for _, machine := range b.cfg.DataCenter.Machines {
		machine := machine
		group.Go(func() error {
			exec, err := remote.NewExecutor(remote.Host{
				Address:     machine,
				Port:        b.cfg.SSHPort,
				UserName:    b.cfg.DataCenter.UserName,
				IdentityKey: identity,
			})
			if err != nil {
				results <- errors.Wrapf(err, "machine %s", machine)
				return nil
			}
			results <- errors.Wrapf(exec.EnsureConnectivity(groupCtx), "machine %s", machine)
			return nil
		})
	}
	_ = group.Wait()
	close(results)
	for err := range results {
		setupErr.Add("data center reachability", err)
	}
	return setupErr.ErrorOrNil()
}

// RequiredAgentCount for a static backend is always the machine count
//.
func (b *Backend) RequiredAgentCount(plan *model.JmeterPlan) (int, error) {
	return len(b.cfg.DataCenter.Machines), nil
}

// EnsureAgents has nothing to reconcile on the host side: the machines
// already exist and are always "running" from the backend's perspective.
// Agent-to-machine binding happens in internal/agent.
func (b *Backend) EnsureAgents(ctx *hscontext.Context, agents []model.LoadAgent, n int) error {
	return nil
}

// StartAgent, StopAgent are no-ops for a static fleet: the engine never
// owns the machine's power state.
func (b *Backend) StartAgent(ctx *hscontext.Context, agent *model.LoadAgent) error { return nil }
func (b *Backend) StopAgent(ctx *hscontext.Context, agent *model.LoadAgent) error  { return nil }

// TerminateAgent is a no-op on the host for the static backend: a fixed
// machine is never powered off or reclaimed.
func (b *Backend) TerminateAgent(ctx *hscontext.Context, agent *model.LoadAgent) error { return nil }

// Cleanup has nothing backend-wide to release for a static fleet.
func (b *Backend) Cleanup(ctx *hscontext.Context) error { return nil }
