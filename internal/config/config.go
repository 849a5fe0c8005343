// Package config loads and validates the configuration inputs consumed by
// the Project Coordinator's setup command: JMeter version/installer,
// cluster definitions, target hosts, and master-slave mode.
package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/hailstorm-project/hailstorm/internal/hserrors"
	"github.com/hailstorm-project/hailstorm/internal/logging"
)

var jmeterVersionPattern = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)

// AmazonCloudConfig mirrors the amazon_clouds table shape.
type AmazonCloudConfig struct {
	AccessKey          string `mapstructure:"access_key" validate:"required"`
	SecretKey           string `mapstructure:"secret_key" validate:"required"`
	SSHIdentity         string `mapstructure:"ssh_identity"`
	Region              string `mapstructure:"region" validate:"required"`
	Zone                string `mapstructure:"zone"`
	InstanceType        string `mapstructure:"instance_type" validate:"required"`
	AgentAMI            string `mapstructure:"agent_ami"`
	Active              bool   `mapstructure:"active"`
	UserName            string `mapstructure:"user_name"`
	SecurityGroup       string `mapstructure:"security_group" validate:"required"`
	AutogeneratedSSHKey bool   `mapstructure:"autogenerated_ssh_key"`
	SSHPort             int    `mapstructure:"ssh_port"`
	MaxThreadsPerAgent  int    `mapstructure:"max_threads_per_agent"`
}

// DataCenterConfig mirrors the data_centers table shape.
type DataCenterConfig struct {
	UserName    string   `mapstructure:"user_name" validate:"required"`
	SSHIdentity string   `mapstructure:"ssh_identity" validate:"required"`
	Machines    []string `mapstructure:"machines" validate:"required,min=1"`
	Title       string   `mapstructure:"title"`
}

// ClusterConfig is a tagged variant of the two supported backend kinds.
type ClusterConfig struct {
	Type        string             `mapstructure:"type" validate:"required,oneof=elastic fixed"`
	AmazonCloud *AmazonCloudConfig `mapstructure:"amazon_cloud"`
	DataCenter  *DataCenterConfig  `mapstructure:"data_center"`
}

// TargetHostConfig mirrors the target_hosts table shape.
type TargetHostConfig struct {
	HostName         string `mapstructure:"host_name" validate:"required"`
	RoleName         string `mapstructure:"role_name" validate:"required"`
	Type             string `mapstructure:"type" validate:"required"`
	SSHIdentity      string `mapstructure:"ssh_identity"`
	UserName         string `mapstructure:"user_name"`
	SamplingInterval int    `mapstructure:"sampling_interval"`
}

// ProjectConfig is the full configuration input to Project Coordinator.setup.
type ProjectConfig struct {
	JmeterVersion        string             `mapstructure:"jmeter_version"`
	JmeterInstallerURL   string             `mapstructure:"jmeter_custom_installer_url"`
	MasterSlaveMode      bool               `mapstructure:"master_slave_mode"`
	MaxThreadsPerAgent   int                `mapstructure:"max_threads_per_agent"`
	SamplesBreakupInterval string           `mapstructure:"samples_breakup_interval"`
	Clusters             []ClusterConfig    `mapstructure:"clusters"`
	TargetHosts          []TargetHostConfig `mapstructure:"target_hosts"`
}

// Load reads a YAML configuration file at path into a ProjectConfig using
// viper, with mapstructure decode hooks for durations and comma-separated
// slices.
func Load(path string) (*ProjectConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config file %q", path)
	}

	var cfg ProjectConfig
	decodeHooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHooks); err != nil {
		return nil, errors.Wrapf(err, "decoding config file %q", path)
	}
	if cfg.SamplesBreakupInterval == "" {
		cfg.SamplesBreakupInterval = "1,3,5"
	}
	if cfg.MaxThreadsPerAgent == 0 {
		cfg.MaxThreadsPerAgent = 50
	}
	return &cfg, Validate(&cfg)
}

// Validate checks a ProjectConfig for invalid or missing fields, returning
// a *hserrors.ConfigurationError for the first one found.
func Validate(cfg *ProjectConfig) error {
	if cfg.JmeterVersion == "" && cfg.JmeterInstallerURL == "" {
		return &hserrors.ConfigurationError{Field: "jmeter_version", Message: "either jmeter_version or jmeter_custom_installer_url must be set"}
	}
	if cfg.JmeterVersion != "" {
		if err := ValidateJmeterVersion(cfg.JmeterVersion); err != nil {
			return err
		}
	}
	if cfg.JmeterInstallerURL != "" {
		if _, err := ParseInstallerVersion(cfg.JmeterInstallerURL); err != nil {
			return err
		}
	}
	for i := range cfg.Clusters {
		if err := validateCluster(&cfg.Clusters[i]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateJmeterVersion enforces "\d+\.\d+(\.\d+)? and >= 2.6".
func ValidateJmeterVersion(version string) error {
	if !jmeterVersionPattern.MatchString(version) {
		return &hserrors.ConfigurationError{Field: "jmeter_version", Value: version, Message: `must match \d+\.\d+(\.\d+)?`}
	}
	var major, minor int
	if _, err := fmt.Sscanf(version, "%d.%d", &major, &minor); err != nil {
		return &hserrors.ConfigurationError{Field: "jmeter_version", Value: version, Message: "could not parse major.minor"}
	}
	if major < 2 || (major == 2 && minor < 6) {
		return &hserrors.ConfigurationError{Field: "jmeter_version", Value: version, Message: "must be >= 2.6"}
	}
	return nil
}

var installerNamePattern = regexp.MustCompile(`[_-]jmeter-(\d+(?:\.\d+){1,2})`)

// ParseInstallerVersion extracts a JMeter version from a custom installer
// URL. The URL must end in .tgz or .tar.gz; the version is taken
// from the filename matching `^<family>-jmeter-(<ver>)`, else the filename
// stem is used verbatim.
func ParseInstallerVersion(url string) (string, error) {
	if !strings.HasSuffix(url, ".tgz") && !strings.HasSuffix(url, ".tar.gz") {
		return "", &hserrors.ConfigurationError{Field: "jmeter_custom_installer_url", Value: url, Message: "must end in .tgz or .tar.gz"}
	}
	name := url
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	stem := strings.TrimSuffix(strings.TrimSuffix(name, ".tar.gz"), ".tgz")
	if m := installerNamePattern.FindStringSubmatch(stem); m != nil {
		return m[1], nil
	}
	return stem, nil
}

func validateCluster(c *ClusterConfig) error {
	switch c.Type {
	case "elastic":
		if c.AmazonCloud == nil {
			return &hserrors.ConfigurationError{Field: "clusters[].amazon_cloud", Message: "required when type=elastic"}
		}
		return validateAmazonCloud(c.AmazonCloud)
	case "fixed":
		if c.DataCenter == nil {
			return &hserrors.ConfigurationError{Field: "clusters[].data_center", Message: "required when type=fixed"}
		}
		if len(c.DataCenter.Machines) == 0 {
			return &hserrors.ConfigurationError{Field: "clusters[].data_center.machines", Message: "must be non-empty"}
		}
		return nil
	default:
		return &hserrors.ConfigurationError{Field: "clusters[].type", Value: c.Type, Message: "must be elastic or fixed"}
	}
}

var instanceTypePattern = regexp.MustCompile(`^[a-zA-Z0-9]+\.[a-zA-Z0-9]+$`)

func validateAmazonCloud(a *AmazonCloudConfig) error {
	if a.Active && a.SSHPort != 0 && a.SSHPort != 22 && a.AgentAMI == "" {
		return &hserrors.ConfigurationError{Field: "agent_ami", Message: "required when active and ssh_port != 22"}
	}
	if !instanceTypePattern.MatchString(a.InstanceType) {
		return &hserrors.ConfigurationError{Field: "instance_type", Value: a.InstanceType, Message: "must be of form <family>.<size>"}
	}
	return nil
}

// MustConfigureLogging is a convenience wrapper so cmd/hailstorm can bring up
// logging from this package during startup; it configures logging only and
// loads no project config.
func MustConfigureLogging(cfg logging.Config) {
	logging.MustConfigure(cfg)
}
