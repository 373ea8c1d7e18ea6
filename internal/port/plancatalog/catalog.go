// Package plancatalog defines the read-only plan catalog port.
package plancatalog

import (
	"context"

	"github.com/fitcore/billing/internal/domain/plan"
)

// Catalog resolves plan definitions. The billing engine only reads plans;
// it never owns or mutates them.
type Catalog interface {
	GetPlanByID(ctx context.Context, planID string) (*plan.Plan, error)
}
