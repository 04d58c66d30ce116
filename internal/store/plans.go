package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/finplan/internal/apperr"
	"github.com/starford/finplan/internal/models"
)

// PlanFilter narrows plan listings. Empty fields match everything.
type PlanFilter struct {
	Owner      string
	Status     models.PlanStatus
	PlanType   models.PlanType
	Visibility models.Visibility
	Limit      int
	Offset     int
}

const planColumns = `id, owner, name, description, plan_type, status, visibility,
	purchase_price, down_payment, annual_rate, term_months, monthly_income, monthly_expenses,
	checksum, created_at, updated_at`

func scanPlan(s scanner) (*models.Plan, error) {
	var p models.Plan
	err := s.Scan(&p.ID, &p.Owner, &p.Name, &p.Description, &p.PlanType, &p.Status, &p.Visibility,
		&p.PurchasePrice, &p.DownPayment, &p.AnnualRate, &p.TermMonths, &p.MonthlyIncome, &p.MonthlyExpenses,
		&p.Checksum, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = utc(p.CreatedAt)
	p.UpdatedAt = utc(p.UpdatedAt)
	return &p, nil
}

// CreatePlan inserts a new plan.
func (db *DB) CreatePlan(ctx context.Context, p *models.Plan) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO plans (`+planColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Owner, p.Name, p.Description, p.PlanType, p.Status, p.Visibility,
		p.PurchasePrice, p.DownPayment, p.AnnualRate, p.TermMonths, p.MonthlyIncome, p.MonthlyExpenses,
		p.Checksum, utc(p.CreatedAt), utc(p.UpdatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("store: create plan: %w", err)
	}
	return nil
}

// GetPlan returns the plan with the given id.
func (db *DB) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// UpdatePlan replaces a plan's mutable fields. When expectedChecksum is
// non-empty the write only succeeds if the stored checksum still matches,
// otherwise apperr.ErrConflict is returned.
func (db *DB) UpdatePlan(ctx context.Context, p *models.Plan, expectedChecksum string) error {
	query := `UPDATE plans SET
		name = ?, description = ?, plan_type = ?, status = ?, visibility = ?,
		purchase_price = ?, down_payment = ?, annual_rate = ?, term_months = ?,
		monthly_income = ?, monthly_expenses = ?, checksum = ?, updated_at = ?
		WHERE id = ?`
	args := []any{p.Name, p.Description, p.PlanType, p.Status, p.Visibility,
		p.PurchasePrice, p.DownPayment, p.AnnualRate, p.TermMonths,
		p.MonthlyIncome, p.MonthlyExpenses, p.Checksum, utc(p.UpdatedAt), p.ID}
	if expectedChecksum != "" {
		query += ` AND checksum = ?`
		args = append(args, expectedChecksum)
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: update plan: %w", err)
	}
	if err := affected(res); err != nil {
		if expectedChecksum != "" {
			if _, getErr := db.GetPlan(ctx, p.ID); getErr == nil {
				return apperr.ErrConflict
			}
		}
		return err
	}
	return nil
}

// DeletePlan removes a plan and, through the foreign key, its scenarios.
func (db *DB) DeletePlan(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete plan: %w", err)
	}
	return affected(res)
}

// ListPlans returns one page of plans matching f, newest first, and the total match count.
func (db *DB) ListPlans(ctx context.Context, f PlanFilter) ([]models.Plan, int, error) {
	var where []string
	var args []any
	if f.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, f.Owner)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.PlanType != "" {
		where = append(where, "plan_type = ?")
		args = append(args, f.PlanType)
	}
	if f.Visibility != "" {
		where = append(where, "visibility = ?")
		args = append(args, f.Visibility)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM plans`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count plans: %w", err)
	}

	limit, offset := page(f.Limit, f.Offset)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+planColumns+` FROM plans`+clause+` ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list plans: %w", err)
	}
	defer rows.Close()

	out := []models.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// CountPlans returns how many plans owner has.
func (db *DB) CountPlans(ctx context.Context, owner string) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM plans WHERE owner = ?`, owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count plans: %w", err)
	}
	return n, nil
}
