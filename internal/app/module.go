package app

import (
	"context"
	"fmt"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment"
)

func (a *App) initModules() error {
	if a.config.GetBool("modules.equipment.enabled") {
		mod, err := equipment.New(equipment.Dependency{
			Config:    a.config,
			Router:    a.router,
			Auth:      a.auth,
			Goroutine: a.goroutine,
			Context:   a.ctx,
			ID:        a.snowflake,
			EventID:   a.uuid,
		})
		if err != nil {
			return fmt.Errorf("failed to init module equipment: %w", err)
		}

		if a.closerFn == nil {
			a.closerFn = map[string]func(context.Context) error{}
		}
		a.closerFn["Equipment"] = mod.Close
	}

	return nil
}
