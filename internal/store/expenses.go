package store

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/starford/finplan/internal/models"
)

// ExpenseFilter narrows expense listings. Zero dates leave the range open.
type ExpenseFilter struct {
	Owner    string
	From     civil.Date
	To       civil.Date
	Category string
	Limit    int
	Offset   int
}

func (f ExpenseFilter) where() (string, []any) {
	where := []string{"owner = ?"}
	args := []any{f.Owner}
	if !models.DateIsZero(f.From) {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !models.DateIsZero(f.To) {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

const expenseColumns = `id, owner, date, amount, category, description, created_at`

func scanExpense(s scanner) (*models.Expense, error) {
	var e models.Expense
	var date, amount string
	if err := s.Scan(&e.ID, &e.Owner, &date, &amount, &e.Category, &e.Description, &e.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if e.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("store: decode expense amount: %w", err)
	}
	e.CreatedAt = utc(e.CreatedAt)
	return &e, nil
}

// CreateExpense inserts an expense.
func (db *DB) CreateExpense(ctx context.Context, e *models.Expense) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Owner, e.Date.String(), e.Amount.String(), e.Category, e.Description, utc(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: create expense: %w", err)
	}
	return nil
}

// GetExpense returns a single expense.
func (db *DB) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	e, err := scanExpense(db.conn.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// UpdateExpense replaces an expense's date, amount, category and description.
func (db *DB) UpdateExpense(ctx context.Context, e *models.Expense) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE expenses SET date = ?, amount = ?, category = ?, description = ? WHERE id = ?`,
		e.Date.String(), e.Amount.String(), e.Category, e.Description, e.ID)
	if err != nil {
		return fmt.Errorf("store: update expense: %w", err)
	}
	return affected(res)
}

// DeleteExpense removes an expense.
func (db *DB) DeleteExpense(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete expense: %w", err)
	}
	return affected(res)
}

// ListExpenses returns one page of matching expenses, newest first, and the total match count.
func (db *DB) ListExpenses(ctx context.Context, f ExpenseFilter) ([]models.Expense, int, error) {
	clause, args := f.where()

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM expenses`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count expenses: %w", err)
	}

	limit, offset := page(f.Limit, f.Offset)
	out, err := db.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses`+clause+` ORDER BY date DESC, created_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ExpensesInRange returns every expense of owner dated within [from, to], oldest first.
func (db *DB) ExpensesInRange(ctx context.Context, owner string, from, to civil.Date) ([]models.Expense, error) {
	clause, args := ExpenseFilter{Owner: owner, From: from, To: to}.where()
	return db.queryExpenses(ctx, `SELECT `+expenseColumns+` FROM expenses`+clause+` ORDER BY date, created_at`, args...)
}

// SumByCategory totals owner's expenses per category within [from, to].
func (db *DB) SumByCategory(ctx context.Context, owner string, from, to civil.Date) (map[string]decimal.Decimal, error) {
	expenses, err := db.ExpensesInRange(ctx, owner, from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		out[e.Category] = out[e.Category].Add(e.Amount)
	}
	return out, nil
}

func (db *DB) queryExpenses(ctx context.Context, query string, args ...any) ([]models.Expense, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list expenses: %w", err)
	}
	defer rows.Close()

	out := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
