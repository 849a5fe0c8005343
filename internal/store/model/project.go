// Package model defines the relational data model: Project, JmeterPlan,
// Cluster (AmazonCloud|DataCenter), LoadAgent, TargetHost, ExecutionCycle,
// ClientStat, PageStat, TargetStat, and CycleArtifact. Each type owns a
// Validate method enforcing its own field invariants; the store package is
// responsible for persistence, not validation.
package model

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var projectCodePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// SlugifyProjectCode replaces every run of non-alphanumeric characters in s
// with a single underscore, producing a unique, filesystem- and
// URL-safe project code.
func SlugifyProjectCode(s string) string {
	var b strings.Builder
	lastWasUnderscore := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastWasUnderscore = false
		} else if !lastWasUnderscore {
			b.WriteRune('_')
			lastWasUnderscore = true
		}
	}
	return b.String()
}

// Project is the top-level aggregate root: owns Clusters, JmeterPlans,
// TargetHosts, and ExecutionCycles.
type Project struct {
	ID                     int64
	Code                   string
	MaxThreadsPerAgent     int
	MasterSlaveMode        bool
	SamplesBreakupInterval string
	SerialVersion          *string
}

func NewProject(code string) *Project {
	return &Project{
		Code:                   SlugifyProjectCode(code),
		MaxThreadsPerAgent:     50,
		SamplesBreakupInterval: "1,3,5",
	}
}

// Validate enforces invariant 7: project_code contains only [A-Za-z0-9_].
func (p *Project) Validate() error {
	if !projectCodePattern.MatchString(p.Code) {
		return errors.Errorf("project code %q contains characters outside [A-Za-z0-9_]", p.Code)
	}
	if p.MaxThreadsPerAgent <= 0 {
		return errors.New("max_threads_per_agent must be positive")
	}
	return nil
}

// BreakupIntervals parses SamplesBreakupInterval ("1,3,5") into ints.
func (p *Project) BreakupIntervals() ([]int, error) {
	return ParseBreakupIntervals(p.SamplesBreakupInterval)
}

func ParseBreakupIntervals(csv string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid samples_breakup_interval entry %q", part)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("samples_breakup_interval must contain at least one value")
	}
	return out, nil
}
