package model

import "github.com/pkg/errors"

// TargetHost is a server-side machine monitored by a Target Monitor Manager
// backend; Type discriminates which monitor implementation
// (e.g. "nmon") samples it.
type TargetHost struct {
	ID               int64
	HostName         string
	ProjectID        int64
	Type             string
	RoleName         string
	ExecutablePath   *string
	ExecutablePID    *int
	SSHIdentity      string
	UserName         string
	SamplingInterval int
	Active           bool
}

func NewTargetHost(hostName, roleName, monitorType string) *TargetHost {
	return &TargetHost{
		HostName:         hostName,
		RoleName:         roleName,
		Type:             monitorType,
		SamplingInterval: 10,
	}
}

func (t *TargetHost) Validate() error {
	if t.HostName == "" {
		return errors.New("host_name is required")
	}
	if t.RoleName == "" {
		return errors.New("role_name is required")
	}
	if t.SamplingInterval <= 0 {
		return errors.New("sampling_interval must be positive")
	}
	return nil
}
