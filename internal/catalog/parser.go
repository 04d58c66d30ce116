// Package catalog keeps the interest-rate catalog: a YAML file that is the
// source of truth for bank offers, mirrored into the store, watched for edits
// and supplemented by a reference rate feed.
package catalog

import (
	"bytes"
	"fmt"

	"cloud.google.com/go/civil"
	"gopkg.in/yaml.v3"

	"github.com/starford/finplan/internal/checksum"
	"github.com/starford/finplan/internal/models"
)

// entry is the on-disk shape of a catalog rate.
type entry struct {
	ID                string  `yaml:"id"`
	Bank              string  `yaml:"bank"`
	Product           string  `yaml:"product"`
	ProductType       string  `yaml:"product_type"`
	RateMin           float64 `yaml:"rate_min"`
	RateMax           float64 `yaml:"rate_max"`
	ProcessingFee     float64 `yaml:"processing_fee,omitempty"`
	EarlyRepaymentFee float64 `yaml:"early_repayment_fee,omitempty"`
	MinIncome         float64 `yaml:"min_income,omitempty"`
	MaxLTV            float64 `yaml:"max_ltv,omitempty"`
	MaxTermMonths     int     `yaml:"max_term_months,omitempty"`
	ValidUntil        string  `yaml:"valid_until,omitempty"`
}

type document struct {
	Rates []entry `yaml:"rates"`
}

// Parse decodes and validates catalog YAML. Every returned rate carries a
// checksum of its definition so unchanged entries can be skipped on sync.
func Parse(data []byte) ([]models.Rate, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Rate{}, nil
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}

	out := make([]models.Rate, 0, len(doc.Rates))
	seen := make(map[string]struct{}, len(doc.Rates))
	for i, e := range doc.Rates {
		r, err := e.rate()
		if err != nil {
			return nil, fmt.Errorf("catalog: rate %d (%s): %w", i, e.ID, err)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate rate id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

// Encode renders rates as catalog YAML.
func Encode(rates []models.Rate) ([]byte, error) {
	doc := document{Rates: make([]entry, 0, len(rates))}
	for _, r := range rates {
		doc.Rates = append(doc.Rates, entryOf(r))
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("catalog: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e entry) rate() (models.Rate, error) {
	r := models.Rate{
		ID:                e.ID,
		Bank:              e.Bank,
		Product:           e.Product,
		ProductType:       models.ProductType(e.ProductType),
		RateMin:           e.RateMin,
		RateMax:           e.RateMax,
		ProcessingFee:     e.ProcessingFee,
		EarlyRepaymentFee: e.EarlyRepaymentFee,
		MinIncome:         e.MinIncome,
		MaxLTV:            e.MaxLTV,
		MaxTermMonths:     e.MaxTermMonths,
		Source:            models.SourceCatalog,
	}
	if e.ValidUntil != "" {
		d, err := civil.ParseDate(e.ValidUntil)
		if err != nil {
			return r, fmt.Errorf("valid_until: %w", err)
		}
		r.ValidUntil = &d
	}
	if err := r.Validate(); err != nil {
		return r, err
	}
	cs, err := checksum.JSON(e)
	if err != nil {
		return r, err
	}
	r.Checksum = cs
	return r, nil
}

func entryOf(r models.Rate) entry {
	e := entry{
		ID:                r.ID,
		Bank:              r.Bank,
		Product:           r.Product,
		ProductType:       string(r.ProductType),
		RateMin:           r.RateMin,
		RateMax:           r.RateMax,
		ProcessingFee:     r.ProcessingFee,
		EarlyRepaymentFee: r.EarlyRepaymentFee,
		MinIncome:         r.MinIncome,
		MaxLTV:            r.MaxLTV,
		MaxTermMonths:     r.MaxTermMonths,
	}
	if r.ValidUntil != nil {
		e.ValidUntil = r.ValidUntil.String()
	}
	return e
}
