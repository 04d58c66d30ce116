package store

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/starford/finplan/internal/models"
)

// RateFilter narrows rate listings.
type RateFilter struct {
	Bank        string
	ProductType models.ProductType
	Source      models.RateSource
	// ActiveOn excludes offers that expired before this date when set.
	ActiveOn civil.Date
}

const rateColumns = `id, bank, product, product_type, rate_min, rate_max, processing_fee, early_repayment_fee,
	min_income, max_ltv, max_term_months, valid_until, source, checksum, updated_at`

func scanRate(s scanner) (*models.Rate, error) {
	var r models.Rate
	var validUntil string
	if err := s.Scan(&r.ID, &r.Bank, &r.Product, &r.ProductType, &r.RateMin, &r.RateMax, &r.ProcessingFee,
		&r.EarlyRepaymentFee, &r.MinIncome, &r.MaxLTV, &r.MaxTermMonths, &validUntil, &r.Source, &r.Checksum,
		&r.UpdatedAt); err != nil {
		return nil, err
	}
	if validUntil != "" {
		d, err := parseDate(validUntil)
		if err != nil {
			return nil, err
		}
		r.ValidUntil = &d
	}
	r.UpdatedAt = utc(r.UpdatedAt)
	return &r, nil
}

// UpsertRate inserts or replaces a rate record.
func (db *DB) UpsertRate(ctx context.Context, r *models.Rate) error {
	validUntil := ""
	if r.ValidUntil != nil {
		validUntil = r.ValidUntil.String()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO interest_rates (`+rateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			bank                = excluded.bank,
			product             = excluded.product,
			product_type        = excluded.product_type,
			rate_min            = excluded.rate_min,
			rate_max            = excluded.rate_max,
			processing_fee      = excluded.processing_fee,
			early_repayment_fee = excluded.early_repayment_fee,
			min_income          = excluded.min_income,
			max_ltv             = excluded.max_ltv,
			max_term_months     = excluded.max_term_months,
			valid_until         = excluded.valid_until,
			source              = excluded.source,
			checksum            = excluded.checksum,
			updated_at          = excluded.updated_at
	`, r.ID, r.Bank, r.Product, r.ProductType, r.RateMin, r.RateMax, r.ProcessingFee, r.EarlyRepaymentFee,
		r.MinIncome, r.MaxLTV, r.MaxTermMonths, validUntil, r.Source, r.Checksum, utc(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store: upsert rate: %w", err)
	}
	return nil
}

// GetRate returns a single rate record.
func (db *DB) GetRate(ctx context.Context, id string) (*models.Rate, error) {
	r, err := scanRate(db.conn.QueryRowContext(ctx, `SELECT `+rateColumns+` FROM interest_rates WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

// DeleteRate removes a rate record.
func (db *DB) DeleteRate(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM interest_rates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete rate: %w", err)
	}
	return affected(res)
}

// ListRates returns matching rates ordered by lowest rate first.
func (db *DB) ListRates(ctx context.Context, f RateFilter) ([]models.Rate, error) {
	var where []string
	var args []any
	if f.Bank != "" {
		where = append(where, "bank = ? COLLATE NOCASE")
		args = append(args, f.Bank)
	}
	if f.ProductType != "" {
		where = append(where, "product_type = ?")
		args = append(args, f.ProductType)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if !models.DateIsZero(f.ActiveOn) {
		where = append(where, "(valid_until = '' OR valid_until >= ?)")
		args = append(args, f.ActiveOn.String())
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+rateColumns+` FROM interest_rates`+clause+` ORDER BY rate_min, bank, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list rates: %w", err)
	}
	defer rows.Close()

	out := []models.Rate{}
	for rows.Next() {
		r, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// RateChecksums returns id -> checksum for every record from source.
func (db *DB) RateChecksums(ctx context.Context, source models.RateSource) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, checksum FROM interest_rates WHERE source = ?`, source)
	if err != nil {
		return nil, fmt.Errorf("store: rate checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}
