package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/imamik/stackzner/internal/config"
	"github.com/imamik/stackzner/internal/deploy"
	"github.com/imamik/stackzner/internal/platform/hcloud"
	"github.com/imamik/stackzner/internal/platform/objstore"
	"github.com/imamik/stackzner/internal/ui/tui"
	"github.com/imamik/stackzner/internal/util/naming"
)

// DestroyOptions carries the destroy command's flag values.
type DestroyOptions struct {
	ConfigPath   string
	ManifestPath string
	Yes          bool
	NoTUI        bool
}

// confirmDestroy prompts for confirmation - can be replaced in tests.
var confirmDestroy = func(ctx context.Context, deployment string) (bool, error) {
	confirmed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Destroy deployment %q?", deployment)).
				Description("All resources and stored artifacts will be deleted. This cannot be undone.").
				Affirmative("Destroy").
				Negative("Cancel").
				Value(&confirmed),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return false, err
	}
	return confirmed, nil
}

// Destroy removes the deployment's resources from Hetzner Cloud.
//
// Every resource the manifest declares is checked in dependency order,
// which fills the provider's reference registry the same way a deploy run
// would, and the ones found are deleted in reverse. Missing resources are
// skipped; a failed delete is retried when transient and otherwise reported
// without stopping the remaining teardown.
func Destroy(ctx context.Context, opts DestroyOptions) error {
	cfg, _, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	mf, _, err := loadManifest(opts.ManifestPath)
	if err != nil {
		return err
	}

	descriptors := mf.Descriptors()
	plan, err := deploy.BuildPlan(descriptors)
	if err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}

	if !opts.Yes {
		if !stdoutIsTerminal() {
			return fmt.Errorf("refusing to destroy %s without --yes in a non-interactive session", cfg.Deployment)
		}
		confirmed, err := confirmDestroy(ctx, cfg.Deployment)
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !confirmed {
			fmt.Println("Destroy canceled.")
			return nil
		}
	}

	token, err := cloudToken()
	if err != nil {
		return err
	}

	storeClient, err := objectStoreFor(cfg, descriptors, nil)
	if err != nil {
		return err
	}

	provider := newProvider(token, storeClient, hcloud.AdapterConfig{
		Deployment: cfg.Deployment,
		Location:   cfg.Region,
		ScaleMin:   cfg.Scale.Min,
		ScaleMax:   cfg.Scale.Max,
	})

	destroyed := 0
	run := func(obs deploy.Observer) error {
		return runDestroy(ctx, obs, plan, provider, &destroyed)
	}

	var runErr error
	if opts.NoTUI || !stdoutIsTerminal() {
		runErr = run(deploy.NewConsoleObserver())
	} else {
		model := tui.NewDestroyModel(cfg.Deployment, cfg.Region, descriptors)
		runErr = runDashboard(model, run)
	}
	if runErr != nil {
		return fmt.Errorf("destroy of %s failed: %w", cfg.Deployment, runErr)
	}

	if len(mf.Artifacts) > 0 {
		cleanupArtifactBucket(ctx, cfg, storeClient)
	}

	fmt.Println()
	if destroyed == 0 {
		fmt.Printf("Nothing to destroy: no resources of deployment %s were found.\n", cfg.Deployment)
	} else {
		fmt.Printf("Deployment %s destroyed: %d resources removed.\n", cfg.Deployment, destroyed)
	}
	return nil
}

// runDestroy walks the plan forward to discover realized resources, then
// tears them down in reverse realization order.
func runDestroy(ctx context.Context, obs deploy.Observer, plan *deploy.Plan, provider deploy.Provider, destroyed *int) error {
	teardown := deploy.Phase{Name: "teardown", Run: func(ctx context.Context) error {
		var states []*deploy.ResourceState
		for _, desc := range plan.Descriptors() {
			handle, ok, err := provider.Exists(ctx, desc)
			if err != nil {
				return fmt.Errorf("checking %s: %w", desc.ID, err)
			}
			if !ok {
				continue
			}
			states = append(states, &deploy.ResourceState{
				Descriptor: desc,
				Status:     deploy.StatusCreated,
				Handle:     handle,
			})
		}
		if len(states) == 0 {
			obs.Printf("No resources of this deployment were found.")
			return nil
		}

		remover := deploy.NewRollback(provider,
			deploy.WithRollbackObserver(obs),
			deploy.WithRollbackRetryOptions(retryOptions()...),
		)
		if err := remover.Run(ctx, states); err != nil {
			return err
		}
		*destroyed = len(states)
		return nil
	}}

	return deploy.RunPhases(ctx, obs, []deploy.Phase{teardown})
}

// cleanupArtifactBucket removes the deployment's artifact bucket and its
// contents. Failures are reported but never fail the destroy.
func cleanupArtifactBucket(ctx context.Context, cfg *config.Config, client *objstore.Client) {
	if client == nil {
		accessKey := os.Getenv("HETZNER_S3_ACCESS_KEY")
		secretKey := os.Getenv("HETZNER_S3_SECRET_KEY")
		if accessKey == "" || secretKey == "" {
			fmt.Println("Object storage credentials not set, skipping artifact bucket cleanup.")
			return
		}
		var err error
		client, err = newObjectStore(cfg.ObjectStorageEndpoint(), cfg.Region, accessKey, secretKey)
		if err != nil {
			fmt.Printf("Warning: artifact bucket cleanup skipped: %v\n", err)
			return
		}
	}

	bucket := naming.ArtifactBucket(cfg.Deployment)
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		fmt.Printf("Warning: could not check artifact bucket %s: %v\n", bucket, err)
		return
	}
	if !exists {
		return
	}
	if err := client.DeleteAllObjects(ctx, bucket, ""); err != nil {
		fmt.Printf("Warning: failed to empty artifact bucket %s: %v\n", bucket, err)
		return
	}
	if err := client.DeleteBucket(ctx, bucket); err != nil {
		fmt.Printf("Warning: failed to delete artifact bucket %s: %v\n", bucket, err)
		return
	}
	fmt.Printf("Artifact bucket %s removed.\n", bucket)
}
