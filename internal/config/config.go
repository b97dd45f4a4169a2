package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidRegions contains all Hetzner Cloud locations stackzner deploys to.
// https://docs.hetzner.com/cloud/general/locations/
var ValidRegions = map[string]bool{
	"nbg1": true, // Nuremberg, Germany
	"fsn1": true, // Falkenstein, Germany
	"hel1": true, // Helsinki, Finland
	"ash":  true, // Ashburn, USA
	"hil":  true, // Hillsboro, USA
	"sin":  true, // Singapore
}

// Config holds the stackzner deployment tool configuration.
type Config struct {
	// Deployment names the deployment. Cloud resource names and labels
	// derive from it, so it must be DNS-safe.
	Deployment string `mapstructure:"deployment" yaml:"deployment"`

	// Region is the Hetzner Cloud location resources are created in.
	Region string `mapstructure:"region" yaml:"region"`

	// Concurrency bounds how many resources of one tier are realized in
	// parallel. Default: 4.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency,omitempty"`

	// Admin configures the administrative SSH key placed on instances.
	Admin AdminConfig `mapstructure:"admin" yaml:"admin,omitempty"`

	// Artifacts configures payload distribution.
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts,omitempty"`

	// Health supplies probe defaults for instances that opt into health
	// gating without referencing a health-probe descriptor.
	Health HealthConfig `mapstructure:"health" yaml:"health,omitempty"`

	// Scale clamps instance-set sizes.
	Scale ScaleConfig `mapstructure:"scale" yaml:"scale,omitempty"`
}

// AdminConfig configures the administrative SSH key.
type AdminConfig struct {
	// KeyFile is the path to a public key placed on every instance.
	// When empty, stackzner generates an ed25519 pair at deploy time and
	// writes the private key next to the configuration file.
	KeyFile string `mapstructure:"key_file" yaml:"key_file,omitempty"`
}

// ArtifactsConfig configures payload distribution and access grants.
type ArtifactsConfig struct {
	// GrantTTL is how long substituted artifact URLs stay valid.
	// Default: 1h, generously above instance boot time.
	GrantTTL time.Duration `mapstructure:"grant_ttl" yaml:"grant_ttl,omitempty"`
}

// HealthConfig supplies probe defaults. A health-probe descriptor referenced
// from an instance overrides these per field.
type HealthConfig struct {
	Protocol  string        `mapstructure:"protocol" yaml:"protocol,omitempty"`
	Port      int           `mapstructure:"port" yaml:"port,omitempty"`
	Path      string        `mapstructure:"path" yaml:"path,omitempty"`
	Interval  time.Duration `mapstructure:"interval" yaml:"interval,omitempty"`
	Threshold int           `mapstructure:"threshold" yaml:"threshold,omitempty"`
	Window    time.Duration `mapstructure:"window" yaml:"window,omitempty"`
}

// ScaleConfig clamps the size of instance sets.
type ScaleConfig struct {
	Min int `mapstructure:"min" yaml:"min,omitempty"`
	Max int `mapstructure:"max" yaml:"max,omitempty"`
}

// Default values applied by ApplyDefaults.
const (
	DefaultConcurrency    = 4
	DefaultGrantTTL       = time.Hour
	DefaultProbeProtocol  = "tcp"
	DefaultProbePort      = 80
	DefaultProbeInterval  = 5 * time.Second
	DefaultProbeThreshold = 3
	DefaultProbeWindow    = 2 * time.Minute
	DefaultScaleMin       = 1
	DefaultScaleMax       = 10
)

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Artifacts.GrantTTL == 0 {
		c.Artifacts.GrantTTL = DefaultGrantTTL
	}
	if c.Health.Protocol == "" {
		c.Health.Protocol = DefaultProbeProtocol
	}
	if c.Health.Port == 0 {
		c.Health.Port = DefaultProbePort
	}
	if c.Health.Interval == 0 {
		c.Health.Interval = DefaultProbeInterval
	}
	if c.Health.Threshold == 0 {
		c.Health.Threshold = DefaultProbeThreshold
	}
	if c.Health.Window == 0 {
		c.Health.Window = DefaultProbeWindow
	}
	if c.Scale.Min == 0 {
		c.Scale.Min = DefaultScaleMin
	}
	if c.Scale.Max == 0 {
		c.Scale.Max = DefaultScaleMax
	}
}

// Validate checks the configuration and returns a detailed error if it is
// unusable. Defaults are expected to have been applied.
func (c *Config) Validate() error {
	if c.Deployment == "" {
		return fmt.Errorf("deployment is required")
	}
	if !isValidDNSName(c.Deployment) {
		return fmt.Errorf("deployment %q must be DNS-safe: lowercase alphanumeric and hyphens, starting with a letter", c.Deployment)
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if !ValidRegions[c.Region] {
		return fmt.Errorf("invalid region %q: must be one of %v", c.Region, regionNames())
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Artifacts.GrantTTL <= 0 {
		return fmt.Errorf("artifacts.grant_ttl must be positive, got %s", c.Artifacts.GrantTTL)
	}
	if err := c.validateHealth(); err != nil {
		return fmt.Errorf("health validation failed: %w", err)
	}
	if err := c.validateScale(); err != nil {
		return fmt.Errorf("scale validation failed: %w", err)
	}
	return nil
}

func (c *Config) validateHealth() error {
	switch c.Health.Protocol {
	case "tcp", "http":
	default:
		return fmt.Errorf("invalid probe protocol %q: must be tcp or http", c.Health.Protocol)
	}
	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("invalid probe port %d", c.Health.Port)
	}
	if c.Health.Interval <= 0 {
		return fmt.Errorf("probe interval must be positive, got %s", c.Health.Interval)
	}
	if c.Health.Threshold < 1 {
		return fmt.Errorf("probe threshold must be at least 1, got %d", c.Health.Threshold)
	}
	if c.Health.Window <= 0 {
		return fmt.Errorf("probe window must be positive, got %s", c.Health.Window)
	}
	return nil
}

func (c *Config) validateScale() error {
	if c.Scale.Min < 1 {
		return fmt.Errorf("scale.min must be at least 1, got %d", c.Scale.Min)
	}
	if c.Scale.Max < c.Scale.Min {
		return fmt.Errorf("scale.max (%d) must not be below scale.min (%d)", c.Scale.Max, c.Scale.Min)
	}
	return nil
}

// ObjectStorageEndpoint returns the Hetzner object storage endpoint for the
// configured region.
func (c *Config) ObjectStorageEndpoint() string {
	return "https://" + c.Region + ".your-objectstorage.com"
}

func regionNames() []string {
	names := make([]string, 0, len(ValidRegions))
	for name := range ValidRegions {
		names = append(names, name)
	}
	return names
}

// isValidDNSName checks that a name is lowercase alphanumeric with hyphens,
// starts with a letter, ends alphanumeric, and is at most 63 characters.
func isValidDNSName(name string) bool {
	if len(name) == 0 || len(name) > 63 {
		return false
	}
	if name[0] < 'a' || name[0] > 'z' {
		return false
	}
	last := name[len(name)-1]
	if (last < 'a' || last > 'z') && (last < '0' || last > '9') {
		return false
	}
	for _, c := range name {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return !strings.Contains(name, "--")
}
