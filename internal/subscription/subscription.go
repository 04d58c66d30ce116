// Package subscription models subscription tiers and the features they unlock.
package subscription

import (
	"fmt"
	"slices"
	"strings"

	"github.com/starford/finplan/internal/apperr"
)

// Tier is a subscription level.
type Tier string

// Tiers, lowest first.
const (
	Free    Tier = "free"
	Premium Tier = "premium"
	Pro     Tier = "pro"
)

// Tiers lists every tier in ascending order.
var Tiers = []Tier{Free, Premium, Pro}

// Feature is a gated capability.
type Feature string

// Gated features.
const (
	MonteCarlo      Feature = "monte_carlo"
	Sensitivity     Feature = "sensitivity"
	ScenarioCompare Feature = "scenario_compare"
	Export          Feature = "export"
	UnlimitedPlans  Feature = "unlimited_plans"
)

// FreePlanLimit is the number of plans a free account may keep.
const FreePlanLimit = 3

var minTier = map[Feature]Tier{
	MonteCarlo:      Premium,
	Sensitivity:     Premium,
	ScenarioCompare: Premium,
	Export:          Pro,
	UnlimitedPlans:  Premium,
}

// ParseTier parses a tier name, case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Tiers, t) {
		return "", fmt.Errorf("unknown tier %q: %w", s, apperr.ErrInvalidInput)
	}
	return t, nil
}

func (t Tier) rank() int {
	return slices.Index(Tiers, t)
}

// Allows reports whether tier t unlocks f. Unknown tiers unlock nothing.
func (t Tier) Allows(f Feature) bool {
	need, ok := minTier[f]
	if !ok {
		return false
	}
	r := t.rank()
	return r >= 0 && r >= need.rank()
}

// Require returns ErrFeatureLocked when t does not unlock f.
func (t Tier) Require(f Feature) error {
	if t.Allows(f) {
		return nil
	}
	return fmt.Errorf("%s requires %s tier: %w", f, minTier[f], apperr.ErrFeatureLocked)
}

// PlanLimit returns the maximum number of plans for t; 0 means unlimited.
func (t Tier) PlanLimit() int {
	if t.Allows(UnlimitedPlans) {
		return 0
	}
	return FreePlanLimit
}

// Features lists the features t unlocks, sorted by name.
func (t Tier) Features() []Feature {
	var out []Feature
	for f := range minTier {
		if t.Allows(f) {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return out
}
