package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	cmd := Init()

	require.NotNil(t, cmd)
	assert.Equal(t, "init", cmd.Use)
	assert.Equal(t, "Create a configuration and starter manifest interactively", cmd.Short)
	assert.Contains(t, cmd.Long, "interactive wizard")
	assert.Contains(t, cmd.Long, "stackzner.yaml")
	assert.Contains(t, cmd.Long, "deployment.yaml")
}

func TestInit_NoFlags(t *testing.T) {
	cmd := Init()
	assert.False(t, cmd.Flags().HasFlags(), "Init command should not define flags")
}

func TestInit_RunE(t *testing.T) {
	cmd := Init()
	assert.NotNil(t, cmd.RunE, "Init command should have RunE function")
}
