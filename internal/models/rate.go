package models

import (
	"errors"
	"regexp"
	"time"

	"cloud.google.com/go/civil"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ProductType is the loan product a rate applies to.
type ProductType string

// Product types.
const (
	ProductMortgage  ProductType = "mortgage"
	ProductAuto      ProductType = "auto"
	ProductPersonal  ProductType = "personal"
	ProductRefinance ProductType = "refinance"
)

// RateSource tells where a rate record came from.
type RateSource string

// Rate sources.
const (
	SourceCatalog   RateSource = "catalog"
	SourceReference RateSource = "reference"
)

var rateIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// Rate is a bank's interest-rate offer for a loan product.
type Rate struct {
	ID                string      `json:"id"`
	Bank              string      `json:"bank"`
	Product           string      `json:"product"`
	ProductType       ProductType `json:"product_type"`
	RateMin           float64     `json:"rate_min"`
	RateMax           float64     `json:"rate_max"`
	ProcessingFee     float64     `json:"processing_fee"`
	EarlyRepaymentFee float64     `json:"early_repayment_fee"`
	MinIncome         float64     `json:"min_income"`
	MaxLTV            float64     `json:"max_ltv"`
	MaxTermMonths     int         `json:"max_term_months"`
	ValidUntil        *civil.Date `json:"valid_until,omitempty"`
	Source            RateSource  `json:"source"`
	Checksum          string      `json:"-"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Expired reports whether the offer ended before today. Offers without an end date never expire.
func (r *Rate) Expired(today civil.Date) bool {
	return r.ValidUntil != nil && r.ValidUntil.Before(today)
}

// Validate checks the rate definition.
func (r *Rate) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Required, validation.Match(rateIDRe)),
		validation.Field(&r.Bank, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Product, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.ProductType, validation.Required,
			validation.In(ProductMortgage, ProductAuto, ProductPersonal, ProductRefinance)),
		validation.Field(&r.RateMin, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&r.RateMax, validation.Min(r.RateMin), validation.Max(100.0)),
		validation.Field(&r.ProcessingFee, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&r.EarlyRepaymentFee, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&r.MinIncome, validation.Min(0.0)),
		validation.Field(&r.MaxLTV, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&r.MaxTermMonths, validation.Min(0), validation.Max(MaxTermMonths)),
		validation.Field(&r.ValidUntil, validation.By(optionalDate)),
		validation.Field(&r.Source, validation.In(SourceCatalog, SourceReference)),
	)
}

func optionalDate(v any) error {
	d, ok := v.(*civil.Date)
	if !ok || d == nil || d.IsValid() {
		return nil
	}
	return errors.New("must be a valid date")
}
