package models

import (
	"time"

	"github.com/starford/finplan/internal/finance"
)

// Scenario is a persisted timeline scenario generated for a plan.
type Scenario struct {
	ID     string `json:"id"`
	PlanID string `json:"plan_id"`
	finance.Scenario
	CreatedAt time.Time `json:"created_at"`
}
