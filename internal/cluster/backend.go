// Package cluster defines the Cluster Backend Interface (C3): a closed set
// of backend kinds (Elastic, Fixed) behind one Go interface, per the
// "tagged variant, not open inheritance" design note. internal/cluster/elastic
// and internal/cluster/fixed provide the two concrete implementations;
// registry.NewBackend (internal/cluster/registry) picks between them.
package cluster

import (
	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

// Kind is the closed enumeration of cluster backend kinds.
type Kind string

const (
	Elastic Kind = "elastic"
	Fixed   Kind = "fixed"
)

// Backend is the capability set every cluster kind must provide.
type Backend interface {
	// Setup reconciles cloud/static prerequisites: security group, key
	// pair, AMI, AZ for Elastic; validated SSH reachability for Fixed.
	Setup(ctx *hscontext.Context) error

	// RequiredAgentCount derives the agent count a plan needs from this
	// backend's capacity.
	RequiredAgentCount(plan *model.JmeterPlan) (int, error)

	// EnsureAgents reconciles the backend-side resources for n agents,
	// filling in each agent's identifier and addresses in place in the
	// passed-in slice; it returns only an error.
	EnsureAgents(ctx *hscontext.Context, agents []model.LoadAgent, n int) error

	StartAgent(ctx *hscontext.Context, agent *model.LoadAgent) error
	StopAgent(ctx *hscontext.Context, agent *model.LoadAgent) error
	TerminateAgent(ctx *hscontext.Context, agent *model.LoadAgent) error

	// Cleanup releases backend-wide resources not tied to one agent:
	// auto-created key pairs, temporary identity files, builder
	// instances left behind by a crashed AMI build.
	Cleanup(ctx *hscontext.Context) error
}

// RoundOffMaxThreadsPerAgent rounds x to the nearest value in its band's
// step, half rounding up:
// x ≤ 10 → nearest multiple of 5; x ≤ 50 → nearest multiple of 10;
// x > 50 → nearest multiple of 50. Idempotent: f(f(x)) == f(x).
func RoundOffMaxThreadsPerAgent(x int) int {
	unit := 50
	switch {
	case x <= 10:
		unit = 5
	case x <= 50:
		unit = 10
	}
	return ((x*2 + unit) / (2 * unit)) * unit
}

// instanceFamilyDefault maps an EC2 instance type to its pre-round-off
// default max_threads_per_agent, scaling with instance size within a
// family so DefaultMaxThreadsPerAgent stays non-decreasing across sizes
//.
var instanceFamilyDefault = map[string]int{
	"t3a.small":   6,
	"t3a.medium":  10,
	"t3a.large":   20,
	"t3a.xlarge":  40,
	"t3a.2xlarge": 80,
	"m5.large":    25,
	"m5.xlarge":   50,
	"m5.2xlarge":  100,
	"m5.4xlarge":  200,
	"c5.large":    30,
	"c5.xlarge":   60,
	"c5.2xlarge":  120,
	"c5.4xlarge":  240,
}

// DefaultMaxThreadsPerAgent derives max_threads_per_agent from an instance
// type when a project/cluster leaves it unset, clamped
// to [3, 10000] and rounded per RoundOffMaxThreadsPerAgent.
func DefaultMaxThreadsPerAgent(instanceType string) int {
	raw, ok := instanceFamilyDefault[instanceType]
	if !ok {
		raw = 20 // unknown instance type: a conservative, widely-safe default
	}
	if raw < 3 {
		raw = 3
	}
	if raw > 10000 {
		raw = 10000
	}
	return RoundOffMaxThreadsPerAgent(raw)
}
