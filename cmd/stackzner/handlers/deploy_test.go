package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/stackzner/internal/artifact"
	"github.com/imamik/stackzner/internal/deploy"
	"github.com/imamik/stackzner/internal/fakes"
	"github.com/imamik/stackzner/internal/platform/hcloud"
	"github.com/imamik/stackzner/internal/platform/objstore"
	"github.com/imamik/stackzner/internal/ui/tui"
	"github.com/imamik/stackzner/internal/util/keygen"
	"github.com/imamik/stackzner/internal/util/retry"
)

// testConfig keeps probe timings tiny so health gating settles instantly.
const testConfig = `deployment: demo
region: nbg1
health:
  interval: 1ms
  threshold: 2
  window: 250ms
`

// testManifest declares a minimal two-tier stack: no artifacts, no pools.
const testManifest = `resources:
  - id: net
    kind: network
  - id: web
    kind: compute-instance
    config:
      network: net
    depends_on: [net]
`

// testPooledManifest adds a load balancer, a pooled instance bootstrapped
// from an artifact, and the artifact itself.
const testPooledManifest = `resources:
  - id: net
    kind: network
  - id: lb
    kind: load-balancer
    config:
      network: net
    depends_on: [net]
  - id: web
    kind: compute-instance
    config:
      network: net
      pool: lb
      user_data: "artifact://bootstrap"
    depends_on: [net]
artifacts:
  - id: bootstrap
    container: scripts
    name: bootstrap.sh
    content: "#!/bin/sh\necho ok\n"
    overwrite: true
`

func saveAndRestoreFactories(t *testing.T) {
	t.Helper()
	origNewProvider := newProvider
	origNewObjectStore := newObjectStore
	origNewArtifactStore := newArtifactStore
	origRunDashboard := runDashboard
	origStdoutIsTerminal := stdoutIsTerminal
	origLoadConfigFile := loadConfigFile
	origLoadManifestFile := loadManifestFile
	origWriteFile := writeFile
	origReadFile := readFile
	origGenerateKeyPair := generateKeyPair
	origConfirmDestroy := confirmDestroy

	t.Cleanup(func() {
		newProvider = origNewProvider
		newObjectStore = origNewObjectStore
		newArtifactStore = origNewArtifactStore
		runDashboard = origRunDashboard
		stdoutIsTerminal = origStdoutIsTerminal
		loadConfigFile = origLoadConfigFile
		loadManifestFile = origLoadManifestFile
		writeFile = origWriteFile
		readFile = origReadFile
		generateKeyPair = origGenerateKeyPair
		confirmDestroy = origConfirmDestroy
	})
}

// captureOutput captures stdout produced by f.
func captureOutput(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// writeFixtures writes a config and manifest into a temp dir and returns
// their paths.
func writeFixtures(t *testing.T, configYAML, manifestYAML string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "stackzner.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o644))
	manifestPath := filepath.Join(dir, "deployment.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifestYAML), 0o644))
	return configPath, manifestPath
}

// useFakeProvider routes provider construction to the fake and returns a
// pointer to the adapter configuration the handler built.
func useFakeProvider(fake *fakes.FakeProvider) *hcloud.AdapterConfig {
	captured := &hcloud.AdapterConfig{}
	newProvider = func(_ string, _ *objstore.Client, cfg hcloud.AdapterConfig) deploy.Provider {
		*captured = cfg
		return fake
	}
	return captured
}

func TestDeploy_NoConfigFile(t *testing.T) {
	saveAndRestoreFactories(t)
	t.Chdir(t.TempDir())

	err := Deploy(context.Background(), DeployOptions{NoTUI: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no configuration file found")
	assert.Contains(t, err.Error(), "stackzner init")
}

func TestDeploy_NoManifestFile(t *testing.T) {
	saveAndRestoreFactories(t)
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("stackzner.yaml", []byte(testConfig), 0o644))

	err := Deploy(context.Background(), DeployOptions{NoTUI: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no deployment manifest found")
}

func TestDeploy_CyclicManifest(t *testing.T) {
	saveAndRestoreFactories(t)
	cyclic := `resources:
  - id: a
    kind: network
    depends_on: [b]
  - id: b
    kind: network
    depends_on: [a]
`
	configPath, manifestPath := writeFixtures(t, testConfig, cyclic)

	err := Deploy(context.Background(), DeployOptions{ConfigPath: configPath, ManifestPath: manifestPath, NoTUI: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "planning failed")
}

func TestDeploy_MissingToken(t *testing.T) {
	saveAndRestoreFactories(t)
	configPath, manifestPath := writeFixtures(t, testConfig, testManifest)
	t.Setenv("HCLOUD_TOKEN", "")

	err := Deploy(context.Background(), DeployOptions{ConfigPath: configPath, ManifestPath: manifestPath, NoTUI: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HCLOUD_TOKEN")
}

func TestDeploy_MissingStorageCredentials(t *testing.T) {
	saveAndRestoreFactories(t)
	configPath, manifestPath := writeFixtures(t, testConfig, testPooledManifest)
	t.Setenv("HCLOUD_TOKEN", "test-token")
	t.Setenv("HETZNER_S3_ACCESS_KEY", "")
	t.Setenv("HETZNER_S3_SECRET_KEY", "")

	err := Deploy(context.Background(), DeployOptions{ConfigPath: configPath, ManifestPath: manifestPath, NoTUI: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HETZNER_S3_ACCESS_KEY")
}

func TestDeploy_Succeeds(t *testing.T) {
	saveAndRestoreFactories(t)
	configPath, manifestPath := writeFixtures(t, testConfig, testManifest)
	t.Setenv("HCLOUD_TOKEN", "test-token")

	fake := fakes.NewFakeProvider()
	captured := useFakeProvider(fake)

	var err error
	out := captureOutput(func() {
		err = Deploy(context.Background(), DeployOptions{ConfigPath: configPath, ManifestPath: manifestPath, NoTUI: true})
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"net", "web"}, fake.CreateOrder)
	assert.Equal(t, "demo", captured.Deployment)
	assert.Equal(t, "nbg1", captured.Location)
	assert.Contains(t, out, "Resource report")
	assert.Contains(t, out, "Deployment complete!")
	assert.Contains(t, out, "Resources:  2 realized")
	assert.Contains(t, out, "existing resources are adopted")
}

func TestDeploy_AdoptsExistingResources(t *testing.T) {
	saveAndRestoreFactories(t)
	configPath, manifestPath := writeFixtures(t, testConfig, testManifest)
	t.Setenv("HCLOUD_TOKEN", "test-token")

	fake := fakes.NewFakeProvider().WithExisting("net")
	useFakeProvider(fake)

	var err error
	out := captureOutput(func() {
		err = Deploy(context.Background(), DeployOptions{ConfigPath: configPath, ManifestPath: manifestPath, NoTUI: true})
	})
	require.NoError(t, err)

	// Only the missing resource is created.
	assert.Equal(t, []string{"web"}, fake.CreateOrder)
	assert.Contains(t, out, "adopted")
}

func TestDeploy_PublishesArtifactsAndRegistersPool(t *testing.T) {
	saveAndRestoreFactories(t)
	configPath, manifestPath := writeFixtures(t, testConfig, testPooledManifest)
	t.Setenv("HCLOUD_TOKEN", "test-token")
	t.Setenv("HETZNER_S3_ACCESS_KEY", "access")
	t.Setenv("HETZNER_S3_SECRET_KEY", "secret")

	fake := fakes.NewFakeProvider()
	useFakeProvider(fake)
	store := fakes.NewFakeStore(clock.WallClock)
	newArtifactStore = func(*objstore.Client, string) artifact.Store { return store }

	var err error
	out := captureOutput(func() {
		err = Deploy(context.Background(), DeployOptions{ConfigPath: configPath, ManifestPath: manifestPath, NoTUI: true})
	})
	require.NoError(t, err)

	assert.Equal(t, 1, store.PutCalls)
	members := fake.Pools[fakes.HandleFor("lb")]
	require.Len(t, members, 1)
	assert.Equal(t, "web.internal", members[0].Address)

	assert.Contains(t, out, "Pool membership")
	assert.Contains(t, out, "registered")
	assert.Contains(t, out, "Artifacts:  1 published")
	assert.Contains(t, out, "Pool:       1 members registered")
}

func TestDeploy_FailureRollsBack(t *testing.T) {
	saveAndRestoreFactories(t)
	configPath, manifestPath := writeFixtures(t, testConfig, testManifest)
	t.Setenv("HCLOUD_TOKEN", "test-token")

	fake := fakes.NewFakeProvider().
		WithCreateErrors("web", retry.Fatal(errors.New("quota exceeded")))
	useFakeProvider(fake)

	var err error
	out := captureOutput(func() {
		err = Deploy(context.Background(), DeployOptions{ConfigPath: configPath, ManifestPath: manifestPath, NoTUI: true})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deployment of demo failed")

	assert.Equal(t, []string{string(fakes.HandleFor("net"))}, fake.DeleteOrder)
	assert.Contains(t, out, "quota exceeded")
	assert.Contains(t, out, "Realized resources were rolled back after the failure.")
	assert.NotContains(t, out, "Deployment complete!")
}

func TestDeploy_GeneratesAdminKey(t *testing.T) {
	saveAndRestoreFactories(t)
	configPath, manifestPath := writeFixtures(t, testConfig, testManifest)
	t.Setenv("HCLOUD_TOKEN", "test-token")

	fake := fakes.NewFakeProvider()
	captured := useFakeProvider(fake)

	var err error
	captureOutput(func() {
		err = Deploy(context.Background(), DeployOptions{ConfigPath: configPath, ManifestPath: manifestPath, NoTUI: true})
	})
	require.NoError(t, err)

	dir := filepath.Dir(configPath)
	pub, err := os.ReadFile(filepath.Join(dir, "demo-admin.pub"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pub), "ssh-ed25519 "))
	assert.Equal(t, strings.TrimSpace(string(pub)), captured.AdminKey)

	info, err := os.Stat(filepath.Join(dir, "demo-admin"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDeploy_ReusesExistingAdminKey(t *testing.T) {
	saveAndRestoreFactories(t)
	configPath, manifestPath := writeFixtures(t, testConfig, testManifest)
	t.Setenv("HCLOUD_TOKEN", "test-token")

	dir := filepath.Dir(configPath)
	existing := "ssh-ed25519 AAAAexisting demo-admin"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo-admin.pub"), []byte(existing+"\n"), 0o644))
	generateKeyPair = func(string) (*keygen.KeyPair, error) {
		return nil, errors.New("a fresh pair must not be generated")
	}

	fake := fakes.NewFakeProvider()
	captured := useFakeProvider(fake)

	var err error
	captureOutput(func() {
		err = Deploy(context.Background(), DeployOptions{ConfigPath: configPath, ManifestPath: manifestPath, NoTUI: true})
	})
	require.NoError(t, err)
	assert.Equal(t, existing, captured.AdminKey)
}

func TestDeploy_AdminKeyFromConfiguredFile(t *testing.T) {
	saveAndRestoreFactories(t)
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "id_ed25519.pub")
	require.NoError(t, os.WriteFile(keyPath, []byte("ssh-ed25519 BBBBconfigured ops\n"), 0o644))

	configPath, manifestPath := writeFixtures(t, testConfig+"admin:\n  key_file: "+keyPath+"\n", testManifest)
	t.Setenv("HCLOUD_TOKEN", "test-token")

	fake := fakes.NewFakeProvider()
	captured := useFakeProvider(fake)

	var err error
	captureOutput(func() {
		err = Deploy(context.Background(), DeployOptions{ConfigPath: configPath, ManifestPath: manifestPath, NoTUI: true})
	})
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 BBBBconfigured ops", captured.AdminKey)
}

func TestDeploy_UsesDashboardWhenInteractive(t *testing.T) {
	saveAndRestoreFactories(t)
	configPath, manifestPath := writeFixtures(t, testConfig, testManifest)
	t.Setenv("HCLOUD_TOKEN", "test-token")

	fake := fakes.NewFakeProvider()
	useFakeProvider(fake)
	stdoutIsTerminal = func() bool { return true }

	dashboardUsed := false
	runDashboard = func(_ tui.Model, fn func(deploy.Observer) error) error {
		dashboardUsed = true
		return fn(deploy.NopObserver{})
	}

	var err error
	captureOutput(func() {
		err = Deploy(context.Background(), DeployOptions{ConfigPath: configPath, ManifestPath: manifestPath})
	})
	require.NoError(t, err)
	assert.True(t, dashboardUsed)
	assert.Equal(t, []string{"net", "web"}, fake.CreateOrder)
}

func TestDeploy_NoTUISkipsDashboard(t *testing.T) {
	saveAndRestoreFactories(t)
	configPath, manifestPath := writeFixtures(t, testConfig, testManifest)
	t.Setenv("HCLOUD_TOKEN", "test-token")

	fake := fakes.NewFakeProvider()
	useFakeProvider(fake)
	stdoutIsTerminal = func() bool { return true }
	runDashboard = func(tui.Model, func(deploy.Observer) error) error {
		t.Error("dashboard must not run with --no-tui")
		return nil
	}

	var err error
	captureOutput(func() {
		err = Deploy(context.Background(), DeployOptions{ConfigPath: configPath, ManifestPath: manifestPath, NoTUI: true})
	})
	require.NoError(t, err)
}
