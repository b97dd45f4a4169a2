package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Deployment: "web-shop",
		Region:     "fsn1",
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{Deployment: "demo", Region: "fsn1"}
	cfg.ApplyDefaults()

	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, time.Hour, cfg.Artifacts.GrantTTL)
	assert.Equal(t, "tcp", cfg.Health.Protocol)
	assert.Equal(t, 80, cfg.Health.Port)
	assert.Equal(t, 5*time.Second, cfg.Health.Interval)
	assert.Equal(t, 3, cfg.Health.Threshold)
	assert.Equal(t, 2*time.Minute, cfg.Health.Window)
	assert.Equal(t, 1, cfg.Scale.Min)
	assert.Equal(t, 10, cfg.Scale.Max)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Deployment:  "demo",
		Region:      "fsn1",
		Concurrency: 8,
		Artifacts:   ArtifactsConfig{GrantTTL: 30 * time.Minute},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 30*time.Minute, cfg.Artifacts.GrantTTL)
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"missing deployment", func(c *Config) { c.Deployment = "" }, "deployment is required"},
		{"uppercase deployment", func(c *Config) { c.Deployment = "Web-Shop" }, "DNS-safe"},
		{"leading digit", func(c *Config) { c.Deployment = "1shop" }, "DNS-safe"},
		{"double hyphen", func(c *Config) { c.Deployment = "web--shop" }, "DNS-safe"},
		{"missing region", func(c *Config) { c.Region = "" }, "region is required"},
		{"unknown region", func(c *Config) { c.Region = "mars1" }, "invalid region"},
		{"negative concurrency", func(c *Config) { c.Concurrency = -1 }, "concurrency"},
		{"negative grant ttl", func(c *Config) { c.Artifacts.GrantTTL = -time.Minute }, "grant_ttl"},
		{"bad probe protocol", func(c *Config) { c.Health.Protocol = "udp" }, "probe protocol"},
		{"bad probe port", func(c *Config) { c.Health.Port = 70000 }, "probe port"},
		{"negative interval", func(c *Config) { c.Health.Interval = -time.Second }, "interval"},
		{"negative threshold", func(c *Config) { c.Health.Threshold = -1 }, "threshold"},
		{"negative window", func(c *Config) { c.Health.Window = -time.Minute }, "window"},
		{"scale min below one", func(c *Config) { c.Scale.Min = -2 }, "scale.min"},
		{"scale max below min", func(c *Config) { c.Scale.Min = 5; c.Scale.Max = 2 }, "scale.max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestObjectStorageEndpoint(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	assert.Equal(t, "https://fsn1.your-objectstorage.com", cfg.ObjectStorageEndpoint())
}

func TestWizardResultToConfig(t *testing.T) {
	t.Parallel()

	result := &WizardResult{Name: "demo", Region: "hel1", ServerType: "cx33", Instances: 3}
	cfg := result.ToConfig()

	assert.Equal(t, "demo", cfg.Deployment)
	assert.Equal(t, "hel1", cfg.Region)
	assert.NoError(t, cfg.Validate())
}
