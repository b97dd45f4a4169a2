package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	cmd := Plan()

	require.NotNil(t, cmd)
	assert.Equal(t, "plan", cmd.Use)
	assert.Equal(t, "Show the execution plan without touching the cloud", cmd.Short)
	assert.Contains(t, cmd.Long, "Show the order resources would be realized in")
}

func TestPlan_ConfigFlag(t *testing.T) {
	cmd := Plan()

	flag := cmd.Flags().Lookup("config")
	require.NotNil(t, flag, "config flag should exist")
	assert.Equal(t, "c", flag.Shorthand)
	assert.Equal(t, "", flag.DefValue)
}

func TestPlan_ManifestFlag(t *testing.T) {
	cmd := Plan()

	flag := cmd.Flags().Lookup("manifest")
	require.NotNil(t, flag, "manifest flag should exist")
	assert.Equal(t, "m", flag.Shorthand)
	assert.Equal(t, "", flag.DefValue)
}

func TestPlan_RunE(t *testing.T) {
	cmd := Plan()
	assert.NotNil(t, cmd.RunE, "Plan command should have RunE function")
}

func TestPlan_LongDescription(t *testing.T) {
	cmd := Plan()

	assert.Contains(t, cmd.Long, "tier")
	assert.Contains(t, cmd.Long, "deterministic")
}
