package model

import "github.com/pkg/errors"

// LoadAgentType discriminates Master (starts the test) from Slave (receives
// commands via RMI in master-slave mode).
type LoadAgentType string

const (
	LoadAgentMaster LoadAgentType = "master"
	LoadAgentSlave  LoadAgentType = "slave"
)

// LoadAgent is a remote host running the load-generation runtime. It points
// back at its concrete clusterable via (ClusterableID, ClusterableType),
// same arena/id pattern as Cluster.
type LoadAgent struct {
	ID                int64
	ClusterableID     int64
	ClusterableType   ClusterType
	JmeterPlanID      int64
	PublicIPAddress   *string
	PrivateIPAddress  *string
	Active            bool
	Type              LoadAgentType
	JmeterPID         *int
	Identifier        string
}

func (a *LoadAgent) Validate() error {
	if a.Type != LoadAgentMaster && a.Type != LoadAgentSlave {
		return errors.Errorf("unknown load agent type %q", a.Type)
	}
	if a.Identifier == "" {
		return errors.New("identifier is required")
	}
	return nil
}

func (a *LoadAgent) Running() bool {
	return a.JmeterPID != nil
}
