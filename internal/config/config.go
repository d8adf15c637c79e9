package config

import (
	"fmt"
	"strings"

	"github.com/zmcp/odata-codec/internal/constants"
)

// Config holds all configuration options of the odata-codec CLI
type Config struct {
	// Protocol
	Version     string `mapstructure:"version"`      // version of both sides unless overridden
	FromVersion string `mapstructure:"from_version"` // version of the input payload
	ToVersion   string `mapstructure:"to_version"`   // version of the output payload
	ServerMode  bool   `mapstructure:"server_mode"`  // write self/edit links, operations and eTags
	MaxDepth    int    `mapstructure:"max_depth"`
	Metadata    string `mapstructure:"metadata"` // $metadata file declaring enums and type definitions
	LegacyDates bool   `mapstructure:"legacy_dates"`

	// Transcoding
	Kind string `mapstructure:"kind"`
	From string `mapstructure:"from"` // content type of the input
	To   string `mapstructure:"to"`   // content type of the output

	// Output and debugging
	Pretty   bool   `mapstructure:"pretty"`
	Verbose  bool   `mapstructure:"verbose"`
	Trace    bool   `mapstructure:"trace"`
	TraceDir string `mapstructure:"trace_dir"`
	Metrics  bool   `mapstructure:"metrics"` // dump codec metrics to stderr on exit
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Version: constants.V4.String(),
		From:    constants.ContentTypeJSON,
		To:      constants.ContentTypeJSON,
		Pretty:  true,
	}
}

// Versions resolves the input and output protocol versions
func (c *Config) Versions() (from, to constants.Version, err error) {
	base := c.Version
	if base == "" {
		base = constants.V4.String()
	}
	if from, err = parseVersion("from-version", c.FromVersion, base); err != nil {
		return 0, 0, err
	}
	if to, err = parseVersion("to-version", c.ToVersion, base); err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

func parseVersion(flag, value, fallback string) (constants.Version, error) {
	if strings.TrimSpace(value) == "" {
		value = fallback
	}
	v, err := constants.ParseVersion(value)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return v, nil
}

// Validate checks the options a transcode run needs
func (c *Config) Validate() error {
	if c.Kind == "" {
		return fmt.Errorf("payload kind not provided. Use --kind or the ODATA_KIND environment variable")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("--max-depth must not be negative")
	}
	_, _, err := c.Versions()
	return err
}
