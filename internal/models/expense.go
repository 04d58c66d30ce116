package models

import (
	"time"

	"cloud.google.com/go/civil"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// Expense is a single spending record.
type Expense struct {
	ID          string          `json:"id"`
	Owner       string          `json:"owner"`
	Date        civil.Date      `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Validate checks the expense fields.
func (e *Expense) Validate() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.Date, validation.By(validDate)),
		validation.Field(&e.Amount, validation.By(positiveAmount)),
		validation.Field(&e.Category, validation.Required, validation.Length(1, 64)),
		validation.Field(&e.Description, validation.Length(0, 500)),
	)
}
