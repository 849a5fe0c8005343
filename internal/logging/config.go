package logging

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Config defines Hailstorm's logging configuration.
type Config struct {
	Console struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"console"`
	File struct {
		Enabled  bool   `yaml:"enabled"`
		Level    string `yaml:"level"`
		Format   string `yaml:"format"`
		LogFile  string `yaml:"logfile"`
		Rotation struct {
			Enabled    bool `yaml:"enabled"`
			MaxSizeMb  int  `yaml:"maxSizeMb"`
			MaxBackups int  `yaml:"maxBackups"`
			MaxAgeDays int  `yaml:"maxAgeDays"`
			Compress   bool `yaml:"compress"`
		} `yaml:"rotation"`
	} `yaml:"file"`
}

type LogFormat string

const (
	FormatText   LogFormat = "text"
	FormatJSON   LogFormat = "json"
	FormatColour LogFormat = "colour"
)

func DefaultConfig() Config {
	c := Config{}
	c.Console.Level = "info"
	c.Console.Format = string(FormatText)
	return c
}

func validate(c Config) error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Console.Level)); err != nil {
		return errors.Wrapf(err, "invalid console log level %q", c.Console.Level)
	}
	if err := validateFormat(c.Console.Format); err != nil {
		return err
	}
	if c.File.Enabled {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.File.Level)); err != nil {
			return errors.Wrapf(err, "invalid file log level %q", c.File.Level)
		}
		if err := validateFormat(c.File.Format); err != nil {
			return err
		}
		r := c.File.Rotation
		if r.Enabled {
			if r.MaxSizeMb <= 0 {
				return errors.New("rotation.maxSizeMb must be greater than zero")
			}
			if r.MaxBackups <= 0 {
				return errors.New("rotation.maxBackups must be greater than zero")
			}
			if r.MaxAgeDays <= 0 {
				return errors.New("rotation.maxAgeDays must be greater than zero")
			}
		}
	}
	return nil
}

func validateFormat(f string) error {
	switch LogFormat(f) {
	case FormatText, FormatJSON, FormatColour:
		return nil
	default:
		return errors.Errorf("unknown log format %q: valid formats are text, json, colour", f)
	}
}
