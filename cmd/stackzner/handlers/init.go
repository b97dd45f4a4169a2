package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/imamik/stackzner/internal/config"
	"github.com/imamik/stackzner/internal/manifest"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// runWizard runs the interactive configuration wizard.
	runWizard = config.RunWizard

	// saveConfig writes the configuration to a file.
	saveConfig = config.Save
)

// Init runs the configuration wizard and writes stackzner.yaml plus a
// starter deployment.yaml describing a load-balanced web stack sized from
// the wizard's answers.
func Init(ctx context.Context) error {
	for _, path := range []string{config.DefaultConfigFilename, manifest.DefaultManifestFilename} {
		if fileExists(path) {
			fmt.Printf("Warning: %s already exists and will be overwritten.\n", path)
		}
	}

	printWelcome()

	result, err := runWizard(ctx)
	if err != nil {
		return fmt.Errorf("wizard canceled: %w", err)
	}

	cfg := result.ToConfig()
	if err := saveConfig(cfg, config.DefaultConfigFilename); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := writeFile(manifest.DefaultManifestFilename, starterManifest(result), 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	printInitSuccess(result)
	return nil
}

// starterManifest renders the starter web stack: a private network and
// firewall, a pooled instance set bootstrapped from an artifact, and a load
// balancer that admits instances once they probe healthy.
func starterManifest(result *config.WizardResult) []byte {
	return fmt.Appendf(nil, `# deployment.yaml - stackzner deployment manifest
#
# Resources are realized in dependency order; resources with no dependency
# relationship are created concurrently. Run 'stackzner plan' to preview
# the execution tiers without touching the cloud.

resources:
  - id: net
    kind: network

  - id: internal
    kind: subnet
    config:
      network: net
      cidr: 10.0.1.0/24
    depends_on: [net]

  - id: fw
    kind: security-group

  - id: allow-http
    kind: security-rule
    config:
      group: fw
      direction: in
      protocol: tcp
      port: "80"
    depends_on: [fw]

  - id: allow-ssh
    kind: security-rule
    config:
      group: fw
      direction: in
      protocol: tcp
      port: "22"
    depends_on: [fw]

  - id: web-probe
    kind: health-probe
    config:
      protocol: http
      port: "80"
      path: /

  - id: lb
    kind: load-balancer
    config:
      network: net
      algorithm: round_robin
    depends_on: [internal]

  - id: web
    kind: instance-set
    config:
      count: "%d"
      server_type: %s
      network: net
      pool: lb
      probe: web-probe
      user_data: |
        #!/bin/sh
        set -e
        curl -fsSL 'artifact://bootstrap' -o /opt/bootstrap.sh
        sh /opt/bootstrap.sh
    depends_on: [internal, fw, web-probe]

  - id: web-rule
    kind: lb-rule
    config:
      load_balancer: lb
      protocol: http
      port: "80"
      probe: web-probe
    depends_on: [lb, web-probe]

artifacts:
  - id: bootstrap
    container: scripts
    name: bootstrap.sh
    overwrite: true
    content: |
      #!/bin/sh
      # Runs on every web instance at first boot.
      apt-get update -qq
      apt-get install -y -qq nginx
      echo "stackzner: $(hostname)" > /var/www/html/index.html
      systemctl enable --now nginx
`, result.Instances, result.ServerType)
}

// printWelcome prints the welcome message.
func printWelcome() {
	fmt.Println()
	fmt.Println("stackzner - Application stacks on Hetzner Cloud")
	fmt.Println("===============================================")
	fmt.Println()
	fmt.Println("This wizard creates a deployment configuration and a starter")
	fmt.Println("manifest for a small load-balanced web stack.")
	fmt.Println()
}

// printInitSuccess prints the success message with summary and next steps.
func printInitSuccess(result *config.WizardResult) {
	fmt.Println()
	fmt.Println("Configuration saved!")
	fmt.Println()
	fmt.Printf("  Config:   %s\n", config.DefaultConfigFilename)
	fmt.Printf("  Manifest: %s\n", manifest.DefaultManifestFilename)
	fmt.Println()

	fmt.Println("Deployment Summary")
	fmt.Println("------------------")
	fmt.Printf("  Name:     %s\n", result.Name)
	fmt.Printf("  Region:   %s\n", result.Region)
	fmt.Printf("  Web tier: %d x %s behind a load balancer\n", result.Instances, result.ServerType)
	fmt.Println()

	fmt.Println("Next Steps")
	fmt.Println("----------")
	fmt.Println("  1. Set your Hetzner Cloud API token:")
	fmt.Println("     export HCLOUD_TOKEN=<your-token>")
	fmt.Println()
	fmt.Println("  2. Set object storage credentials for artifact distribution:")
	fmt.Println("     export HETZNER_S3_ACCESS_KEY=<access-key>")
	fmt.Println("     export HETZNER_S3_SECRET_KEY=<secret-key>")
	fmt.Println()
	fmt.Println("  3. Preview the execution plan:")
	fmt.Println("     stackzner plan")
	fmt.Println()
	fmt.Println("  4. Deploy:")
	fmt.Println("     stackzner deploy")
	fmt.Println()
}
