// Package staticplans implements the plan catalog port from a YAML file.
// The billing engine does not own plan definitions; in deployments without a
// catalog service the definitions ship as configuration.
package staticplans

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/plan"
)

// Catalog is a read-only, file-backed plan catalog.
type Catalog struct {
	plans map[string]plan.Plan
}

// Load reads plan definitions from a YAML file. A missing file yields an
// empty catalog rather than an error: entitlement reads degrade to
// status-only and every plan lookup returns not-found.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from config
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{plans: map[string]plan.Plan{}}, nil
		}
		return nil, fmt.Errorf("read plans %s: %w", path, err)
	}

	var doc struct {
		Plans []plan.Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse plans %s: %w", path, err)
	}

	c := &Catalog{plans: make(map[string]plan.Plan, len(doc.Plans))}
	for _, p := range doc.Plans {
		c.plans[p.ID] = p
	}
	return c, nil
}

// GetPlanByID resolves a plan definition.
func (c *Catalog) GetPlanByID(_ context.Context, planID string) (*plan.Plan, error) {
	p, ok := c.plans[planID]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", planID, domain.ErrNotFound)
	}
	return &p, nil
}
