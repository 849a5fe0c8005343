package model

import "github.com/pkg/errors"

// JmeterPlan is created on setup from the supplied test-plan bundle and
// marked inactive (not deleted) when removed from config, preserving
// historical cycles that reference it.
type JmeterPlan struct {
	ID                 int64
	ProjectID          int64
	TestPlanName       string
	ContentHash        string
	Active             bool
	Properties         map[string]string
	LatestThreadsCount int

	// LocalPath is where the ingested .jmx lives on the machine running
	// hailstorm; DataFiles are the CSV/data set filenames it references,
	// relative to LocalPath's directory. Both are read by the Agent
	// Manager to know what to deploy before a run.
	LocalPath string
	DataFiles []string
}

func (p *JmeterPlan) Validate() error {
	if p.TestPlanName == "" {
		return errors.New("test_plan_name is required")
	}
	if p.ContentHash == "" {
		return errors.New("content_hash is required")
	}
	return nil
}
