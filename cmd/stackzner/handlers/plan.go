package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/stackzner/internal/deploy"
)

// Plan prints the tiered execution order for the manifest without touching
// the cloud. The listing is deterministic: tiers follow the dependency
// graph, and resources within a tier are sorted by id.
func Plan(_ context.Context, configPath, manifestPath string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	mf, _, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}

	plan, err := deploy.BuildPlan(mf.Descriptors())
	if err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}

	fmt.Printf("Deployment plan: %s (%s)\n", cfg.Deployment, cfg.Region)
	fmt.Printf("  %d resources in %d tiers", plan.Size(), len(plan.Tiers))
	if len(mf.Artifacts) > 0 {
		fmt.Printf(", %d artifacts published first", len(mf.Artifacts))
	}
	fmt.Println()

	for i, tier := range plan.Tiers {
		fmt.Println()
		fmt.Printf("Tier %d:\n", i+1)
		for _, desc := range tier {
			fmt.Printf("  %-24s %s\n", desc.ID, desc.Kind)
		}
	}

	fmt.Println()
	fmt.Println("Resources in the same tier are realized concurrently; a tier starts")
	fmt.Println("only after the previous one has fully settled.")
	return nil
}
