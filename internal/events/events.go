// Package events defines domain change events and the publishers that fan
// them out to SSE clients and message brokers.
package events

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Type names a domain event.
type Type string

// Event types.
const (
	PlanCreated        Type = "plan.created"
	PlanUpdated        Type = "plan.updated"
	PlanDeleted        Type = "plan.deleted"
	ScenariosGenerated Type = "scenarios.generated"
	ScenarioDeleted    Type = "scenario.deleted"
	BudgetCreated      Type = "budget.created"
	BudgetUpdated      Type = "budget.updated"
	BudgetDeleted      Type = "budget.deleted"
	BudgetAlert        Type = "budget.alert"
	ExpenseCreated     Type = "expense.created"
	ExpenseUpdated     Type = "expense.updated"
	ExpenseDeleted     Type = "expense.deleted"
	RatesUpdated       Type = "rates.updated"
	AnalyticsUpdated   Type = "analytics.updated"
)

// Event is a domain change. Owner scopes delivery; empty means everyone.
type Event struct {
	Type  Type      `json:"type"`
	Owner string    `json:"owner,omitempty"`
	Data  any       `json:"data"`
	At    time.Time `json:"at"`
}

// New returns an event stamped with the current time.
func New(t Type, owner string, data any) Event {
	return Event{Type: t, Owner: owner, Data: data, At: time.Now().UTC()}
}

// AffectsAnalytics reports whether e changes spending analytics.
func (e Event) AffectsAnalytics() bool {
	return strings.HasPrefix(string(e.Type), "budget.") || strings.HasPrefix(string(e.Type), "expense.")
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
