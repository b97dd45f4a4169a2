package deploy

import (
	"context"
	"fmt"
	"time"
)

// Phase is one sequential stage of a deployment run, such as artifact
// publication, infrastructure provisioning, or the health gate.
type Phase struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunPhases executes all phases sequentially, stopping at the first failure.
func RunPhases(ctx context.Context, obs Observer, phases []Phase) error {
	start := time.Now()
	obs.Printf("Starting %d-phase run...", len(phases))

	for i, phase := range phases {
		phaseStart := time.Now()
		obs.Event(Event{
			Type:    EventPhaseStarted,
			Phase:   phase.Name,
			Message: fmt.Sprintf("starting (%d/%d)", i+1, len(phases)),
		})

		if err := phase.Run(ctx); err != nil {
			obs.Event(Event{
				Type:    EventPhaseFailed,
				Phase:   phase.Name,
				Message: fmt.Sprintf("failed: %v", err),
			})
			return fmt.Errorf("%s phase failed: %w", phase.Name, err)
		}

		obs.Event(Event{
			Type:    EventPhaseCompleted,
			Phase:   phase.Name,
			Message: fmt.Sprintf("completed in %v", time.Since(phaseStart).Round(time.Millisecond)),
		})
	}

	obs.Printf("All phases completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}
