// Package config provides Segward's host-facing configuration:
// functional options, JSON file loading, and semver-gated API
// compatibility checks. None of it touches a running allocator — it only
// describes how one should be built.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
)

// APIVersion is the semantic version of this module's public API. Hosts
// that want to pin against a compatible range pass
// WithAPIVersionConstraint and it is checked at segward.Create time.
const APIVersion = "1.0.0"

// Config holds the parameters a Segward allocator is built from.
type Config struct {
	SegmentSize          uintptr `json:"segment_size"`
	TotalSize            uintptr `json:"total_size"`
	APIVersionConstraint string  `json:"api_version_constraint,omitempty"`
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithSegmentSize sets the requested segment size in bytes. The allocator
// rounds it up to the next power of two and validates it against
// [4KiB, 1GiB] at Create time.
func WithSegmentSize(n uintptr) Option {
	return func(c *Config) { c.SegmentSize = n }
}

// WithTotalSize sets the requested total arena size in bytes.
func WithTotalSize(n uintptr) Option {
	return func(c *Config) { c.TotalSize = n }
}

// WithAPIVersionConstraint gates Create on a semver constraint (e.g.
// ">=1.0.0, <2.0.0") checked against APIVersion. Leave unset to skip the
// check entirely.
func WithAPIVersionConstraint(constraint string) Option {
	return func(c *Config) { c.APIVersionConstraint = constraint }
}

// New builds a Config from the given options.
func New(opts ...Option) *Config {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Load reads and parses a JSON config file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &c, nil
}

// CheckAPIVersion validates APIVersionConstraint (if set) against
// APIVersion, returning a descriptive error on mismatch.
func (c *Config) CheckAPIVersion() error {
	if c.APIVersionConstraint == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(c.APIVersionConstraint)
	if err != nil {
		return fmt.Errorf("config: invalid api_version_constraint %q: %w", c.APIVersionConstraint, err)
	}

	version, err := semver.NewVersion(APIVersion)
	if err != nil {
		return fmt.Errorf("config: invalid module API version %q: %w", APIVersion, err)
	}

	if !constraint.Check(version) {
		return fmt.Errorf("config: module API version %s does not satisfy constraint %q", APIVersion, c.APIVersionConstraint)
	}

	return nil
}
