package config

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
)

// WizardResult holds the user's choices from the init wizard.
type WizardResult struct {
	Name       string
	Region     string
	ServerType string
	Instances  int
}

// RunWizard walks the user through scaffolding a new deployment.
func RunWizard(ctx context.Context) (*WizardResult, error) {
	result := &WizardResult{
		Region:     "fsn1",
		ServerType: "cx23",
		Instances:  2,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Deployment name").
				Description("A unique name for this deployment (DNS-safe, lowercase)").
				Placeholder("my-stack").
				Value(&result.Name).
				Validate(validateDeploymentName),
		),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Region").
				Description("Hetzner Cloud datacenter location").
				Options(
					huh.NewOption("Falkenstein, Germany (fsn1)", "fsn1"),
					huh.NewOption("Nuremberg, Germany (nbg1)", "nbg1"),
					huh.NewOption("Helsinki, Finland (hel1)", "hel1"),
				).
				Value(&result.Region),
		),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Instance size").
				Description("Shared vCPU instances (cost-effective)").
				Options(
					huh.NewOption("CX23 - 2 vCPU, 4GB RAM", "cx23"),
					huh.NewOption("CX33 - 4 vCPU, 8GB RAM", "cx33"),
					huh.NewOption("CX43 - 8 vCPU, 16GB RAM", "cx43"),
				).
				Value(&result.ServerType),

			huh.NewSelect[int]().
				Title("Web tier size").
				Description("Number of pooled web instances").
				Options(
					huh.NewOption("1 instance", 1),
					huh.NewOption("2 instances", 2),
					huh.NewOption("3 instances", 3),
					huh.NewOption("5 instances", 5),
				).
				Value(&result.Instances),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("wizard canceled: %w", err)
	}

	return result, nil
}

// ToConfig converts the wizard result to a defaulted Config.
func (r *WizardResult) ToConfig() *Config {
	cfg := &Config{
		Deployment: r.Name,
		Region:     r.Region,
	}
	cfg.ApplyDefaults()
	return cfg
}

// validateDeploymentName validates the deployment name as the user types.
func validateDeploymentName(s string) error {
	if s == "" {
		return fmt.Errorf("deployment name is required")
	}
	if !isValidDNSName(s) {
		return fmt.Errorf("name can only contain lowercase letters, numbers, and hyphens, starting with a letter")
	}
	return nil
}
