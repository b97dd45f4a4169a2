package deploy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()
	base := errors.New("api said no")

	assert.True(t, IsTransient(Transient(base)))
	assert.True(t, IsPermanent(Permanent(base)))
	assert.False(t, IsTransient(Permanent(base)))
	assert.False(t, IsPermanent(Transient(base)))
	assert.False(t, IsTransient(base))
	assert.False(t, IsPermanent(base))
}

func TestErrorClassification_Nil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Transient(nil))
	assert.NoError(t, Permanent(nil))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsPermanent(nil))
	assert.False(t, IsAlreadyExists(nil))
}

func TestErrorClassification_SurvivesWrapping(t *testing.T) {
	t.Parallel()
	wrapped := fmt.Errorf("creating network: %w", Transient(errors.New("rate limited")))
	assert.True(t, IsTransient(wrapped))

	conflict := fmt.Errorf("creating bucket: %w", &AlreadyExistsError{Resource: "assets"})
	assert.True(t, IsAlreadyExists(conflict))
	assert.Contains(t, conflict.Error(), "resource already exists: assets")
}

func TestErrorClassification_PreservesCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("locked")
	assert.ErrorIs(t, Transient(cause), cause)
	assert.ErrorIs(t, Permanent(cause), cause)
	assert.Equal(t, "locked", Transient(cause).Error())
}

func TestCycleError_Message(t *testing.T) {
	t.Parallel()
	err := &CycleError{IDs: []string{"a", "b", "a"}}
	assert.Equal(t, "dependency cycle detected: a -> b -> a", err.Error())
}

func TestUnknownDependencyError_Message(t *testing.T) {
	t.Parallel()
	err := &UnknownDependencyError{From: "web", To: "ghost"}
	assert.Contains(t, err.Error(), `"web"`)
	assert.Contains(t, err.Error(), `"ghost"`)
}
