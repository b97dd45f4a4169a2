package deploy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/stackzner/internal/deploy"
	"github.com/imamik/stackzner/internal/fakes"
	"github.com/imamik/stackzner/internal/util/retry"
)

func createdState(id string, kind deploy.Kind) *deploy.ResourceState {
	return &deploy.ResourceState{
		Descriptor: deploy.Descriptor{ID: id, Kind: kind},
		Status:     deploy.StatusCreated,
		Handle:     fakes.HandleFor(id),
	}
}

func TestRollback_Run_ReverseOrder(t *testing.T) {
	t.Parallel()
	provider := fakes.NewFakeProvider()
	rb := deploy.NewRollback(provider)

	states := []*deploy.ResourceState{
		createdState("net", deploy.KindNetwork),
		createdState("subnet", deploy.KindSubnet),
		createdState("web", deploy.KindComputeInstance),
	}
	err := rb.Run(context.Background(), states)

	require.NoError(t, err)
	assert.Equal(t, []string{
		string(fakes.HandleFor("web")),
		string(fakes.HandleFor("subnet")),
		string(fakes.HandleFor("net")),
	}, provider.DeleteOrder)
	for _, st := range states {
		assert.Equal(t, deploy.StatusRolledBack, st.Status, st.Descriptor.ID)
	}
}

func TestRollback_Run_TouchesOnlyCreated(t *testing.T) {
	t.Parallel()
	provider := fakes.NewFakeProvider()
	rb := deploy.NewRollback(provider)

	pending := &deploy.ResourceState{
		Descriptor: deploy.Descriptor{ID: "web", Kind: deploy.KindComputeInstance},
		Status:     deploy.StatusPending,
	}
	failed := &deploy.ResourceState{
		Descriptor: deploy.Descriptor{ID: "subnet", Kind: deploy.KindSubnet},
		Status:     deploy.StatusFailed,
		Err:        errors.New("range overlaps"),
	}
	states := []*deploy.ResourceState{
		createdState("net", deploy.KindNetwork),
		failed,
		pending,
		createdState("pool", deploy.KindLoadBalancer),
	}
	err := rb.Run(context.Background(), states)

	require.NoError(t, err)
	assert.Equal(t, []string{
		string(fakes.HandleFor("pool")),
		string(fakes.HandleFor("net")),
	}, provider.DeleteOrder)
	assert.Equal(t, deploy.StatusPending, pending.Status)
	assert.Equal(t, deploy.StatusFailed, failed.Status)
}

func TestRollback_Run_ContinuesPastFailures(t *testing.T) {
	t.Parallel()
	provider := fakes.NewFakeProvider().
		WithDeleteErrors(fakes.HandleFor("subnet"), deploy.Permanent(errors.New("still in use")))
	rb := deploy.NewRollback(provider)

	states := []*deploy.ResourceState{
		createdState("net", deploy.KindNetwork),
		createdState("subnet", deploy.KindSubnet),
		createdState("web", deploy.KindComputeInstance),
	}
	err := rb.Run(context.Background(), states)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rollback of subnet")

	// The failure does not interrupt the pass: both neighbours are gone.
	assert.Equal(t, []string{
		string(fakes.HandleFor("web")),
		string(fakes.HandleFor("net")),
	}, provider.DeleteOrder)

	// What could not be deleted keeps its status for the final report.
	assert.Equal(t, deploy.StatusCreated, states[1].Status)
	assert.Equal(t, deploy.StatusRolledBack, states[0].Status)
	assert.Equal(t, deploy.StatusRolledBack, states[2].Status)
}

func TestRollback_Run_JoinsAllFailures(t *testing.T) {
	t.Parallel()
	provider := fakes.NewFakeProvider().
		WithDeleteErrors(fakes.HandleFor("net"), deploy.Permanent(errors.New("net stuck"))).
		WithDeleteErrors(fakes.HandleFor("web"), deploy.Permanent(errors.New("web stuck")))
	rb := deploy.NewRollback(provider)

	err := rb.Run(context.Background(), []*deploy.ResourceState{
		createdState("net", deploy.KindNetwork),
		createdState("web", deploy.KindComputeInstance),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "net stuck")
	assert.Contains(t, err.Error(), "web stuck")
}

func TestRollback_Run_RetriesTransientDelete(t *testing.T) {
	t.Parallel()
	provider := fakes.NewFakeProvider().
		WithDeleteErrors(fakes.HandleFor("net"), deploy.Transient(errors.New("locked")), nil)
	rb := deploy.NewRollback(provider,
		deploy.WithRollbackRetryOptions(retry.WithInitialDelay(time.Millisecond)))

	states := []*deploy.ResourceState{createdState("net", deploy.KindNetwork)}
	err := rb.Run(context.Background(), states)

	require.NoError(t, err)
	assert.Equal(t, 2, provider.DeleteCalls[fakes.HandleFor("net")])
	assert.Equal(t, deploy.StatusRolledBack, states[0].Status)
}

func TestRollback_Run_Empty(t *testing.T) {
	t.Parallel()
	rb := deploy.NewRollback(fakes.NewFakeProvider())
	require.NoError(t, rb.Run(context.Background(), nil))
}
