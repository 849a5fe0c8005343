package logging

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Configure(DefaultConfig()); err != nil {
		t.Fatalf("expected the default config to be valid, got %v", err)
	}
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Console.Level = "bogus"
	if err := Configure(cfg); err == nil {
		t.Fatal("expected an error for an unknown console log level")
	}
}

func TestConfigureRejectsUnknownFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Console.Format = "xml"
	if err := Configure(cfg); err == nil {
		t.Fatal("expected an error for an unknown console log format")
	}
}

func TestConfigureRejectsIncompleteRotationSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.File.Enabled = true
	cfg.File.Level = "info"
	cfg.File.Format = string(FormatJSON)
	cfg.File.Rotation.Enabled = true
	cfg.File.Rotation.MaxSizeMb = 0
	if err := Configure(cfg); err == nil {
		t.Fatal("expected an error when rotation is enabled with maxSizeMb <= 0")
	}
}

func TestConfigureAcceptsFileLoggingWithRotation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.File.Enabled = true
	cfg.File.Level = "debug"
	cfg.File.Format = string(FormatColour)
	cfg.File.LogFile = t.TempDir() + "/hailstorm.log"
	cfg.File.Rotation.Enabled = true
	cfg.File.Rotation.MaxSizeMb = 10
	cfg.File.Rotation.MaxBackups = 3
	cfg.File.Rotation.MaxAgeDays = 7
	if err := Configure(cfg); err != nil {
		t.Fatalf("expected valid file+rotation config to configure cleanly, got %v", err)
	}
}
