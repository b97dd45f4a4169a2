// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/imamik/stackzner/internal/artifact"
	"github.com/imamik/stackzner/internal/config"
	"github.com/imamik/stackzner/internal/deploy"
	"github.com/imamik/stackzner/internal/health"
	"github.com/imamik/stackzner/internal/manifest"
	"github.com/imamik/stackzner/internal/platform/hcloud"
	"github.com/imamik/stackzner/internal/platform/objstore"
	"github.com/imamik/stackzner/internal/ui/tui"
	"github.com/imamik/stackzner/internal/util/keygen"
	"github.com/imamik/stackzner/internal/util/naming"
	"github.com/imamik/stackzner/internal/util/retry"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newProvider creates the cloud provider for one run.
	newProvider = func(token string, store *objstore.Client, cfg hcloud.AdapterConfig) deploy.Provider {
		return hcloud.NewAdapter(hcloud.NewRealClient(token), store, cfg)
	}

	// newObjectStore creates the object storage client.
	newObjectStore = objstore.NewClient

	// newArtifactStore wraps the object storage client for payload distribution.
	newArtifactStore = func(client *objstore.Client, bucket string) artifact.Store {
		return objstore.NewArtifactStore(client, bucket)
	}

	// runDashboard drives a run under the live terminal dashboard.
	runDashboard = tui.Run

	// stdoutIsTerminal reports whether stdout is an interactive terminal.
	stdoutIsTerminal = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}

	// loadConfigFile loads configuration from file (for testing injection).
	loadConfigFile = config.LoadFile

	// loadManifestFile loads the manifest from file (for testing injection).
	loadManifestFile = manifest.LoadFile

	// writeFile writes data to a file (for testing injection).
	writeFile = os.WriteFile

	// readFile reads a file (for testing injection).
	readFile = os.ReadFile

	// generateKeyPair generates the admin SSH key pair.
	generateKeyPair = keygen.GenerateEd25519KeyPair
)

// DeployOptions carries the deploy command's flag values.
type DeployOptions struct {
	ConfigPath   string
	ManifestPath string
	NoTUI        bool
}

// deployOutcome captures what a run produced so the report can be printed
// after the dashboard has released the terminal.
type deployOutcome struct {
	published int
	result    *deploy.Result
	report    *health.Report
}

// Deploy provisions a deployment on Hetzner Cloud.
//
// The run has three sequential phases:
//  1. Artifacts: payloads are published to object storage and every
//     artifact:// reference in resource configuration is replaced with a
//     time-scoped signed URL.
//  2. Provision: resources are realized tier by tier in dependency order.
//     Existing resources are adopted, transient cloud errors are retried,
//     and a failure rolls the run's resources back in reverse order.
//  3. Health: instances that opted into a pool are probed until they meet
//     their consecutive-success threshold, then registered with their
//     load balancer.
//
// Progress is rendered on a live dashboard when stdout is a terminal; the
// per-resource report is printed afterwards either way.
func Deploy(ctx context.Context, opts DeployOptions) error {
	cfg, cfgDir, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	mf, manifestDir, err := loadManifest(opts.ManifestPath)
	if err != nil {
		return err
	}

	descriptors := mf.Descriptors()
	// Surface graph problems before anything talks to the cloud.
	if _, err := deploy.BuildPlan(descriptors); err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}

	payloads, err := mf.Payloads(manifestDir)
	if err != nil {
		return err
	}

	token, err := cloudToken()
	if err != nil {
		return err
	}

	adminKey, err := adminPublicKey(cfg, cfgDir)
	if err != nil {
		return err
	}

	storeClient, err := objectStoreFor(cfg, descriptors, payloads)
	if err != nil {
		return err
	}

	provider := newProvider(token, storeClient, hcloud.AdapterConfig{
		Deployment: cfg.Deployment,
		Location:   cfg.Region,
		AdminKey:   adminKey,
		ScaleMin:   cfg.Scale.Min,
		ScaleMax:   cfg.Scale.Max,
	})

	outcome := &deployOutcome{published: len(payloads)}
	run := func(obs deploy.Observer) error {
		return runDeploy(ctx, obs, cfg, provider, storeClient, descriptors, payloads, outcome)
	}

	var runErr error
	if opts.NoTUI || !stdoutIsTerminal() {
		runErr = run(deploy.NewConsoleObserver())
	} else {
		model := tui.NewDeployModel(cfg.Deployment, cfg.Region, descriptors, len(payloads))
		runErr = runDashboard(model, run)
	}

	printDeployReport(outcome)
	if runErr != nil {
		return fmt.Errorf("deployment of %s failed: %w", cfg.Deployment, runErr)
	}

	printDeploySuccess(cfg, outcome)
	return nil
}

// runDeploy executes the phases of one deployment run against the observer
// the caller selected.
func runDeploy(ctx context.Context, obs deploy.Observer, cfg *config.Config, provider deploy.Provider, storeClient *objstore.Client, descriptors []deploy.Descriptor, payloads []artifact.Payload, outcome *deployOutcome) error {
	// Grant substitution produces the descriptors provisioning works on.
	// Without artifacts they pass through unchanged.
	substituted := descriptors

	var phases []deploy.Phase

	if len(payloads) > 0 {
		store := newArtifactStore(storeClient, naming.ArtifactBucket(cfg.Deployment))
		distributor := artifact.NewDistributor(store,
			artifact.WithTTL(cfg.Artifacts.GrantTTL),
			artifact.WithObserver(obs),
		)
		phases = append(phases, deploy.Phase{Name: "artifacts", Run: func(ctx context.Context) error {
			if err := distributor.Publish(ctx, payloads); err != nil {
				return err
			}
			out, err := distributor.SubstituteGrants(ctx, descriptors)
			if err != nil {
				return err
			}
			substituted = out
			return nil
		}})
	}

	phases = append(phases, deploy.Phase{Name: "provision", Run: func(ctx context.Context) error {
		plan, err := deploy.BuildPlan(substituted)
		if err != nil {
			return err
		}
		executor := deploy.NewExecutor(provider,
			deploy.WithObserver(obs),
			deploy.WithConcurrency(cfg.Concurrency),
			deploy.WithRetryOptions(retryOptions()...),
		)
		result, err := executor.Apply(ctx, plan)
		outcome.result = result
		return err
	}})

	phases = append(phases, deploy.Phase{Name: "health", Run: func(ctx context.Context) error {
		bindings, err := health.Resolve(substituted, outcome.result, defaultCheck(cfg))
		if err != nil {
			return err
		}
		if len(bindings) == 0 {
			obs.Printf("No instances opted into pool membership.")
			return nil
		}
		manager := health.NewManager(provider,
			health.WithObserver(obs),
			health.WithConcurrency(cfg.Concurrency),
		)
		report, err := manager.Await(ctx, bindings)
		outcome.report = report
		return err
	}})

	return deploy.RunPhases(ctx, obs, phases)
}

// loadConfig loads and validates the deployment configuration. It returns
// the configuration and the directory it was loaded from, which anchors
// files the configuration references.
// If path is empty, stackzner.yaml in the current directory is used.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		path = config.DefaultConfigFilename
		if _, err := os.Stat(path); err != nil {
			return nil, "", fmt.Errorf("no configuration file found: %w\nRun 'stackzner init' to create one", err)
		}
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, filepath.Dir(path), nil
}

// loadManifest loads and validates the deployment manifest. It returns the
// manifest and the directory it was loaded from, which anchors relative
// artifact file paths.
// If path is empty, deployment.yaml in the current directory is used.
func loadManifest(path string) (*manifest.Manifest, string, error) {
	if path == "" {
		path = manifest.DefaultManifestFilename
		if _, err := os.Stat(path); err != nil {
			return nil, "", fmt.Errorf("no deployment manifest found: %w\nRun 'stackzner init' to create one", err)
		}
	}
	mf, err := loadManifestFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load manifest: %w", err)
	}
	return mf, filepath.Dir(path), nil
}

// cloudToken reads the Hetzner Cloud API token from the environment.
func cloudToken() (string, error) {
	token := os.Getenv("HCLOUD_TOKEN")
	if token == "" {
		return "", fmt.Errorf("HCLOUD_TOKEN is not set")
	}
	return token, nil
}

// objectStoreFor creates the object storage client when the manifest needs
// one: for publishing artifact payloads or realizing storage resources.
// Deployments that use neither run without credentials and get nil.
func objectStoreFor(cfg *config.Config, descriptors []deploy.Descriptor, payloads []artifact.Payload) (*objstore.Client, error) {
	if !needsObjectStore(descriptors, payloads) {
		return nil, nil
	}
	accessKey := os.Getenv("HETZNER_S3_ACCESS_KEY")
	secretKey := os.Getenv("HETZNER_S3_SECRET_KEY")
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("the manifest declares artifacts or storage resources: set HETZNER_S3_ACCESS_KEY and HETZNER_S3_SECRET_KEY")
	}
	client, err := newObjectStore(cfg.ObjectStorageEndpoint(), cfg.Region, accessKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}
	return client, nil
}

func needsObjectStore(descriptors []deploy.Descriptor, payloads []artifact.Payload) bool {
	if len(payloads) > 0 {
		return true
	}
	for _, d := range descriptors {
		switch d.Kind {
		case deploy.KindStorageAccount, deploy.KindBlobContainer, deploy.KindBlob:
			return true
		}
	}
	return false
}

// adminPublicKey resolves the public key placed on every instance. A
// configured key file wins; otherwise a previously generated key next to the
// configuration is reused, and failing that a fresh ed25519 pair is
// generated there with the private key written mode 0600.
func adminPublicKey(cfg *config.Config, dir string) (string, error) {
	if cfg.Admin.KeyFile != "" {
		path := cfg.Admin.KeyFile
		if rest, ok := strings.CutPrefix(path, "~/"); ok {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("expanding admin key path %s: %w", path, err)
			}
			path = filepath.Join(home, rest)
		}
		data, err := readFile(path)
		if err != nil {
			return "", fmt.Errorf("reading admin key %s: %w", cfg.Admin.KeyFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	keyName := naming.AdminKey(cfg.Deployment)
	publicPath := filepath.Join(dir, keyName+".pub")
	if data, err := readFile(publicPath); err == nil {
		return strings.TrimSpace(string(data)), nil
	}

	pair, err := generateKeyPair(keyName)
	if err != nil {
		return "", fmt.Errorf("generating admin key: %w", err)
	}
	if err := writeFile(filepath.Join(dir, keyName), pair.PrivateKey, 0o600); err != nil {
		return "", fmt.Errorf("writing admin private key: %w", err)
	}
	if err := writeFile(publicPath, pair.PublicKey, 0o644); err != nil {
		return "", fmt.Errorf("writing admin public key: %w", err)
	}
	return strings.TrimSpace(string(pair.PublicKey)), nil
}

// defaultCheck builds the probe defaults applied to instances that name no
// health-probe descriptor.
func defaultCheck(cfg *config.Config) health.CheckSpec {
	return health.CheckSpec{
		Probe: deploy.ProbeSpec{
			Protocol: cfg.Health.Protocol,
			Port:     cfg.Health.Port,
			Path:     cfg.Health.Path,
		},
		Interval:  cfg.Health.Interval,
		Threshold: cfg.Health.Threshold,
		Window:    cfg.Health.Window,
	}
}

// retryOptions derives the retry policy for cloud calls from the
// environment-configurable timeouts.
func retryOptions() []retry.Option {
	timeouts := config.LoadTimeouts()
	return []retry.Option{
		retry.WithMaxRetries(timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(timeouts.RetryInitialDelay),
	}
}

// printDeployReport prints the per-resource report of a run. It runs after
// the dashboard exits so the outcome stays on the terminal.
func printDeployReport(outcome *deployOutcome) {
	if outcome.result == nil {
		return
	}

	fmt.Println()
	fmt.Println("Resource report")
	fmt.Println("---------------")
	for _, st := range outcome.result.States {
		line := fmt.Sprintf("  %-11s %-20s %s", st.Status, st.Descriptor.ID, st.Descriptor.Kind)
		if st.Err != nil {
			line += ": " + st.Err.Error()
		}
		fmt.Println(line)
	}

	if outcome.result.RolledBack {
		fmt.Println()
		fmt.Println("Realized resources were rolled back after the failure.")
		if outcome.result.RollbackErr != nil {
			fmt.Printf("Rollback left residue: %v\n", outcome.result.RollbackErr)
		}
	}

	if outcome.report != nil && len(outcome.report.Members) > 0 {
		fmt.Println()
		fmt.Println("Pool membership")
		fmt.Println("---------------")
		for _, m := range outcome.report.Members {
			status := string(m.Status)
			if m.Registered {
				status = "registered"
			}
			line := fmt.Sprintf("  %-11s %-24s pool %s", status, m.Address, m.PoolID)
			if m.Err != nil {
				line += ": " + m.Err.Error()
			}
			fmt.Println(line)
		}
	}
}

// printDeploySuccess outputs the completion summary and next steps.
func printDeploySuccess(cfg *config.Config, outcome *deployOutcome) {
	fmt.Println()
	fmt.Println("Deployment complete!")
	fmt.Println()
	fmt.Printf("  Deployment: %s (%s)\n", cfg.Deployment, cfg.Region)
	if outcome.result != nil {
		fmt.Printf("  Resources:  %d realized\n", len(outcome.result.States))
	}
	if outcome.published > 0 {
		fmt.Printf("  Artifacts:  %d published\n", outcome.published)
	}
	if outcome.report != nil && len(outcome.report.Members) > 0 {
		fmt.Printf("  Pool:       %d members registered\n", len(outcome.report.Members))
	}
	fmt.Println()
	fmt.Println("Re-running 'stackzner deploy' is safe: existing resources are adopted.")
}
