package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "project.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	path := writeConfig(t, `
jmeter_version: "5.4.1"
clusters:
  - type: elastic
    amazon_cloud:
      access_key: AKIA
      secret_key: secret
      region: us-east-1
      instance_type: t3.medium
      security_group: sg-1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SamplesBreakupInterval != "1,3,5" {
		t.Errorf("SamplesBreakupInterval default = %q, want %q", cfg.SamplesBreakupInterval, "1,3,5")
	}
	if cfg.MaxThreadsPerAgent != 50 {
		t.Errorf("MaxThreadsPerAgent default = %d, want 50", cfg.MaxThreadsPerAgent)
	}
	if len(cfg.Clusters) != 1 || cfg.Clusters[0].Type != "elastic" {
		t.Fatalf("unexpected clusters: %+v", cfg.Clusters)
	}
}

func TestLoadRejectsMissingVersionOrInstaller(t *testing.T) {
	path := writeConfig(t, "clusters: []\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when neither jmeter_version nor installer url is set")
	}
}

func TestValidateJmeterVersion(t *testing.T) {
	cases := map[string]bool{
		"5.4.1": true,
		"2.6":   true,
		"2.5":   false,
		"bogus": false,
		"5":     false,
	}
	for version, wantOK := range cases {
		err := ValidateJmeterVersion(version)
		if (err == nil) != wantOK {
			t.Errorf("ValidateJmeterVersion(%q) error = %v, want ok=%v", version, err, wantOK)
		}
	}
}

func TestParseInstallerVersionExtractsFromFilename(t *testing.T) {
	got, err := ParseInstallerVersion("https://example.com/dist/apache-jmeter-5.4.1.tgz")
	if err != nil {
		t.Fatalf("ParseInstallerVersion: %v", err)
	}
	if got != "5.4.1" {
		t.Errorf("got %q, want %q", got, "5.4.1")
	}
}

func TestParseInstallerVersionRejectsBadExtension(t *testing.T) {
	if _, err := ParseInstallerVersion("https://example.com/dist/jmeter.zip"); err == nil {
		t.Fatal("expected an error for a non-tarball URL")
	}
}

func TestValidateClusterRequiresMatchingPayload(t *testing.T) {
	cfg := &ProjectConfig{
		JmeterVersion: "5.4.1",
		Clusters: []ClusterConfig{
			{Type: "elastic"},
		},
	}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error when type=elastic has no amazon_cloud block")
	}
}

func TestValidateAmazonCloudRequiresAMIForNonStandardPort(t *testing.T) {
	cfg := &ProjectConfig{
		JmeterVersion: "5.4.1",
		Clusters: []ClusterConfig{
			{
				Type: "elastic",
				AmazonCloud: &AmazonCloudConfig{
					AccessKey: "AKIA", SecretKey: "s", Region: "us-east-1",
					InstanceType: "t3.medium", SecurityGroup: "sg-1",
					Active: true, SSHPort: 2222,
				},
			},
		},
	}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error requiring agent_ami for a non-standard ssh_port")
	}
}
