package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/starford/finplan/internal/models"
)

const budgetColumns = `id, owner, name, total_amount, period, start_date, alert_threshold, status, created_at, updated_at`

func scanBudget(s scanner) (*models.Budget, error) {
	var b models.Budget
	var total, start string
	if err := s.Scan(&b.ID, &b.Owner, &b.Name, &total, &b.Period, &start, &b.AlertThreshold, &b.Status,
		&b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if b.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("store: decode budget total: %w", err)
	}
	if b.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	b.CreatedAt = utc(b.CreatedAt)
	b.UpdatedAt = utc(b.UpdatedAt)
	return &b, nil
}

func writeAllocations(ctx context.Context, tx *sql.Tx, b *models.Budget) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM budget_allocations WHERE budget_id = ?`, b.ID); err != nil {
		return fmt.Errorf("store: clear allocations: %w", err)
	}
	for i, a := range b.Allocations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO budget_allocations (budget_id, position, category, amount) VALUES (?, ?, ?, ?)`,
			b.ID, i, a.Category, a.Amount.String()); err != nil {
			return fmt.Errorf("store: insert allocation: %w", err)
		}
	}
	return nil
}

func (db *DB) loadAllocations(ctx context.Context, b *models.Budget) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT category, amount FROM budget_allocations WHERE budget_id = ? ORDER BY position`, b.ID)
	if err != nil {
		return fmt.Errorf("store: list allocations: %w", err)
	}
	defer rows.Close()

	b.Allocations = []models.Allocation{}
	for rows.Next() {
		var a models.Allocation
		var amount string
		if err := rows.Scan(&a.Category, &amount); err != nil {
			return err
		}
		if a.Amount, err = decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("store: decode allocation amount: %w", err)
		}
		b.Allocations = append(b.Allocations, a)
	}
	return rows.Err()
}

// CreateBudget inserts a budget together with its allocations.
func (db *DB) CreateBudget(ctx context.Context, b *models.Budget) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.Owner, b.Name, b.TotalAmount.String(), b.Period, b.StartDate.String(), b.AlertThreshold,
			b.Status, utc(b.CreatedAt), utc(b.UpdatedAt))
		if err != nil {
			return fmt.Errorf("store: create budget: %w", err)
		}
		return writeAllocations(ctx, tx, b)
	})
}

// GetBudget returns a budget with its allocations.
func (db *DB) GetBudget(ctx context.Context, id string) (*models.Budget, error) {
	b, err := scanBudget(db.conn.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	if err := db.loadAllocations(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBudget replaces a budget definition and its allocations.
func (db *DB) UpdateBudget(ctx context.Context, b *models.Budget) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE budgets SET
			name = ?, total_amount = ?, period = ?, start_date = ?, alert_threshold = ?, status = ?, updated_at = ?
			WHERE id = ?`,
			b.Name, b.TotalAmount.String(), b.Period, b.StartDate.String(), b.AlertThreshold, b.Status,
			utc(b.UpdatedAt), b.ID)
		if err != nil {
			return fmt.Errorf("store: update budget: %w", err)
		}
		if err := affected(res); err != nil {
			return err
		}
		return writeAllocations(ctx, tx, b)
	})
}

// SetBudgetStatus records the status computed by the last recalculation.
func (db *DB) SetBudgetStatus(ctx context.Context, id string, status models.BudgetStatus) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE budgets SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("store: set budget status: %w", err)
	}
	return affected(res)
}

// DeleteBudget removes a budget and its allocations.
func (db *DB) DeleteBudget(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete budget: %w", err)
	}
	return affected(res)
}

// ListBudgets returns every budget of owner, oldest first.
func (db *DB) ListBudgets(ctx context.Context, owner string) ([]models.Budget, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE owner = ? ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("store: list budgets: %w", err)
	}
	var out []models.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := db.loadAllocations(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []models.Budget{}
	}
	return out, nil
}
