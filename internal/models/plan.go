// Package models defines the domain types for finplan.
package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/finplan/internal/finance"
)

// PlanType is the kind of purchase a plan finances.
type PlanType string

// Plan types.
const (
	PlanHomePurchase PlanType = "home_purchase"
	PlanCarPurchase  PlanType = "car_purchase"
	PlanRefinance    PlanType = "refinance"
	PlanInvestment   PlanType = "investment"
	PlanOther        PlanType = "other"
)

// PlanStatus tracks a plan's lifecycle.
type PlanStatus string

// Plan statuses.
const (
	StatusDraft     PlanStatus = "draft"
	StatusActive    PlanStatus = "active"
	StatusCompleted PlanStatus = "completed"
	StatusArchived  PlanStatus = "archived"
)

// Visibility controls whether a plan can be read through its share link.
type Visibility string

// Visibilities.
const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// MaxTermMonths is the longest accepted loan term (50 years).
const MaxTermMonths = 600

// Plan is a financial plan owned by a single user.
type Plan struct {
	ID          string     `json:"id"`
	Owner       string     `json:"owner"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	PlanType    PlanType   `json:"plan_type"`
	Status      PlanStatus `json:"status"`
	Visibility  Visibility `json:"visibility"`
	finance.LoanParams
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyDefaults fills unset enum fields.
func (p *Plan) ApplyDefaults() {
	if p.PlanType == "" {
		p.PlanType = PlanHomePurchase
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if p.Visibility == "" {
		p.Visibility = VisibilityPrivate
	}
}

// Validate checks the plan's fields and loan parameters.
func (p *Plan) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Description, validation.Length(0, 2000)),
		validation.Field(&p.PlanType, validation.Required,
			validation.In(PlanHomePurchase, PlanCarPurchase, PlanRefinance, PlanInvestment, PlanOther)),
		validation.Field(&p.Status, validation.Required,
			validation.In(StatusDraft, StatusActive, StatusCompleted, StatusArchived)),
		validation.Field(&p.Visibility, validation.Required,
			validation.In(VisibilityPrivate, VisibilityPublic)),
		validation.Field(&p.PurchasePrice, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&p.DownPayment, validation.Min(0.0), validation.Max(p.PurchasePrice)),
		validation.Field(&p.AnnualRate, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&p.TermMonths, validation.Required, validation.Min(1), validation.Max(MaxTermMonths)),
		validation.Field(&p.MonthlyIncome, validation.Min(0.0)),
		validation.Field(&p.MonthlyExpenses, validation.Min(0.0)),
	)
}

// Fingerprint is the subset of a plan that its checksum covers.
type Fingerprint struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	PlanType    PlanType           `json:"plan_type"`
	Status      PlanStatus         `json:"status"`
	Visibility  Visibility         `json:"visibility"`
	Params      finance.LoanParams `json:"params"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Fingerprint returns the checksum input for p.
func (p *Plan) Fingerprint() Fingerprint {
	return Fingerprint{
		Name:        p.Name,
		Description: p.Description,
		PlanType:    p.PlanType,
		Status:      p.Status,
		Visibility:  p.Visibility,
		Params:      p.LoanParams,
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

// ValidateLoan checks loan parameters supplied without a stored plan.
func ValidateLoan(p *finance.LoanParams) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.PurchasePrice, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&p.DownPayment, validation.Min(0.0), validation.Max(p.PurchasePrice)),
		validation.Field(&p.AnnualRate, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&p.TermMonths, validation.Required, validation.Min(1), validation.Max(MaxTermMonths)),
		validation.Field(&p.MonthlyIncome, validation.Min(0.0)),
		validation.Field(&p.MonthlyExpenses, validation.Min(0.0)),
	)
}
