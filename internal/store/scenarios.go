package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/models"
)

// ScenarioFilter narrows scenario listings for one plan.
type ScenarioFilter struct {
	PlanID    string
	Type      finance.ScenarioType
	RiskLevel finance.RiskLevel
}

const scenarioColumns = `id, plan_id, name, scenario_type, risk_level, params, metrics, created_at`

func scanScenario(s scanner) (*models.Scenario, error) {
	var sc models.Scenario
	var params, metrics string
	if err := s.Scan(&sc.ID, &sc.PlanID, &sc.Name, &sc.Type, &sc.RiskLevel, &params, &metrics, &sc.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &sc.Params); err != nil {
		return nil, fmt.Errorf("store: decode scenario params: %w", err)
	}
	if err := json.Unmarshal([]byte(metrics), &sc.Metrics); err != nil {
		return nil, fmt.Errorf("store: decode scenario metrics: %w", err)
	}
	sc.CreatedAt = utc(sc.CreatedAt)
	return &sc, nil
}

// ReplaceScenarios atomically swaps the stored scenarios of a plan for scenarios.
func (db *DB) ReplaceScenarios(ctx context.Context, planID string, scenarios []models.Scenario) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM scenarios WHERE plan_id = ?`, planID); err != nil {
			return fmt.Errorf("store: clear scenarios: %w", err)
		}
		if len(scenarios) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO scenarios
			(id, plan_id, position, name, scenario_type, risk_level, params, metrics, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare scenario insert: %w", err)
		}
		defer stmt.Close()

		for i, sc := range scenarios {
			params, _ := json.Marshal(sc.Params)
			metrics, _ := json.Marshal(sc.Metrics)
			if _, err := stmt.ExecContext(ctx, sc.ID, planID, i, sc.Name, sc.Type, sc.RiskLevel,
				string(params), string(metrics), utc(sc.CreatedAt)); err != nil {
				return fmt.Errorf("store: insert scenario: %w", err)
			}
		}
		return nil
	})
}

// ListScenarios returns a plan's scenarios in generation order.
func (db *DB) ListScenarios(ctx context.Context, f ScenarioFilter) ([]models.Scenario, error) {
	where := []string{"plan_id = ?"}
	args := []any{f.PlanID}
	if f.Type != "" {
		where = append(where, "scenario_type = ?")
		args = append(args, f.Type)
	}
	if f.RiskLevel != "" {
		where = append(where, "risk_level = ?")
		args = append(args, f.RiskLevel)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+scenarioColumns+` FROM scenarios WHERE `+strings.Join(where, " AND ")+` ORDER BY position`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list scenarios: %w", err)
	}
	defer rows.Close()

	out := []models.Scenario{}
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

// GetScenario returns a single scenario.
func (db *DB) GetScenario(ctx context.Context, id string) (*models.Scenario, error) {
	sc, err := scanScenario(db.conn.QueryRowContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return sc, nil
}

// DeleteScenario removes a single scenario.
func (db *DB) DeleteScenario(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM scenarios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete scenario: %w", err)
	}
	return affected(res)
}
