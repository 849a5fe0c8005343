package model

import "github.com/pkg/errors"

// ClusterType discriminates the concrete clusterable a Cluster row points
// to: a closed enumeration plus a registry (internal/cluster), not open
// inheritance.
type ClusterType string

const (
	ClusterTypeAmazonCloud ClusterType = "amazon_cloud"
	ClusterTypeDataCenter  ClusterType = "data_center"
)

// Cluster is the abstract row; the concrete AmazonCloud or DataCenter row
// points back at it via its ClusterID, and ClusterType names which kind it
// is, rather than an owning object cycle.
type Cluster struct {
	ID          int64
	ProjectID   int64
	ClusterType ClusterType
}

// AmazonCloud is one concrete clusterable backing an elastic (AWS) cluster.
type AmazonCloud struct {
	ID                  int64
	ClusterID           int64
	AccessKey           string
	SecretKey           string
	SSHIdentity         string
	Region              string
	Zone                string
	InstanceType        string
	AgentAMI            *string
	Active              bool
	UserName            string
	SecurityGroup       string
	AutogeneratedSSHKey bool
	SSHPort             int
	MaxThreadsPerAgent  *int
}

func NewAmazonCloud() *AmazonCloud {
	return &AmazonCloud{UserName: "ubuntu", SSHPort: 22}
}

// Validate enforces that an active cluster using a non-standard ssh_port
// must have agent_ami pre-supplied.
func (a *AmazonCloud) Validate() error {
	if a.Active && a.SSHPort != 22 && (a.AgentAMI == nil || *a.AgentAMI == "") {
		return errors.New("agent_ami must be pre-supplied when active with a non-standard ssh_port")
	}
	if a.AccessKey == "" || a.SecretKey == "" {
		return errors.New("access_key and secret_key are required")
	}
	if a.Region == "" {
		return errors.New("region is required")
	}
	return nil
}

// DataCenter is one concrete clusterable backing a fixed, static fleet.
type DataCenter struct {
	ID          int64
	ClusterID   int64
	UserName    string
	SSHIdentity string
	Machines    []string
	Title       string
}

func (d *DataCenter) Validate() error {
	if len(d.Machines) == 0 {
		return errors.New("machines must be non-empty")
	}
	if d.UserName == "" {
		return errors.New("user_name is required")
	}
	return nil
}
