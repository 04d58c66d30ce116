package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/starford/finplan/internal/apperr"
	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "finplan-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() {
		os.Remove(f.Name())
		os.Remove(f.Name() + "-wal")
		os.Remove(f.Name() + "-shm")
	})

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func samplePlan(id, owner string) *models.Plan {
	now := time.Now().UTC().Truncate(time.Second)
	p := &models.Plan{
		ID:    id,
		Owner: owner,
		Name:  "Plan " + id,
		LoanParams: finance.LoanParams{
			PurchasePrice: 500_000, DownPayment: 100_000, AnnualRate: 6, TermMonths: 360,
			MonthlyIncome: 10_000, MonthlyExpenses: 3_000,
		},
		Checksum:  "cs-" + id,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.ApplyDefaults()
	return p
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"plans", "scenarios", "budgets", "budget_allocations", "expenses", "interest_rates"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Errorf("%s table missing: %v", table, err)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	f, err := os.CreateTemp("", "finplan-migrate-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	if err := Migrate(f.Name()); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := Migrate(f.Name()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestPlanCRUD(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := samplePlan("p1", "alice")
	if err := db.CreatePlan(ctx, p); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if err := db.CreatePlan(ctx, p); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate create = %v, want ErrAlreadyExists", err)
	}

	got, err := db.GetPlan(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.Name != p.Name || got.LoanParams != p.LoanParams || !got.UpdatedAt.Equal(p.UpdatedAt) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, p)
	}

	if _, err := db.GetPlan(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetPlan missing = %v", err)
	}

	if err := db.DeletePlan(ctx, "p1"); err != nil {
		t.Fatalf("DeletePlan: %v", err)
	}
	if err := db.DeletePlan(ctx, "p1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete = %v", err)
	}
}

func TestUpdatePlan_Checksum(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := samplePlan("p1", "alice")
	_ = db.CreatePlan(ctx, p)

	p.Name = "Renamed"
	p.Checksum = "cs-2"
	if err := db.UpdatePlan(ctx, p, "cs-p1"); err != nil {
		t.Fatalf("update with matching checksum: %v", err)
	}

	p.Name = "Stale"
	p.Checksum = "cs-3"
	if err := db.UpdatePlan(ctx, p, "cs-p1"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale update = %v, want ErrConflict", err)
	}
	got, _ := db.GetPlan(ctx, "p1")
	if got.Name != "Renamed" {
		t.Errorf("name = %q after rejected update", got.Name)
	}

	if err := db.UpdatePlan(ctx, p, ""); err != nil {
		t.Errorf("unconditional update: %v", err)
	}

	missing := samplePlan("nope", "alice")
	if err := db.UpdatePlan(ctx, missing, "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update missing = %v, want ErrNotFound", err)
	}
}

func TestListPlans_FiltersAndPaging(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c", "d"} {
		p := samplePlan(id, "alice")
		p.UpdatedAt = p.UpdatedAt.Add(time.Duration(i) * time.Minute)
		if id == "d" {
			p.Visibility = models.VisibilityPublic
		}
		_ = db.CreatePlan(ctx, p)
	}
	_ = db.CreatePlan(ctx, samplePlan("z", "bob"))

	plans, total, err := db.ListPlans(ctx, PlanFilter{Owner: "alice", Limit: 2})
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if total != 4 || len(plans) != 2 {
		t.Fatalf("total=%d len=%d", total, len(plans))
	}
	if plans[0].ID != "d" {
		t.Errorf("first = %s, want newest d", plans[0].ID)
	}

	public, total, _ := db.ListPlans(ctx, PlanFilter{Owner: "alice", Visibility: models.VisibilityPublic})
	if total != 1 || public[0].ID != "d" {
		t.Errorf("public filter = %+v", public)
	}

	n, _ := db.CountPlans(ctx, "bob")
	if n != 1 {
		t.Errorf("CountPlans(bob) = %d", n)
	}
}

func TestScenarios_ReplaceFilterCascade(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := samplePlan("p1", "alice")
	_ = db.CreatePlan(ctx, p)

	var recs []models.Scenario
	for i, s := range finance.GenerateScenarios(p.LoanParams) {
		recs = append(recs, models.Scenario{ID: string(rune('a' + i)), PlanID: "p1", Scenario: s, CreatedAt: time.Now()})
	}
	if err := db.ReplaceScenarios(ctx, "p1", recs); err != nil {
		t.Fatalf("ReplaceScenarios: %v", err)
	}
	if err := db.ReplaceScenarios(ctx, "p1", recs); err != nil {
		t.Fatalf("second ReplaceScenarios: %v", err)
	}

	all, err := db.ListScenarios(ctx, ScenarioFilter{PlanID: "p1"})
	if err != nil {
		t.Fatalf("ListScenarios: %v", err)
	}
	if len(all) != len(recs) || all[0].Type != finance.ScenarioBaseline {
		t.Fatalf("scenarios = %+v", all)
	}
	if all[0].Metrics != recs[0].Metrics {
		t.Errorf("metrics not preserved")
	}

	stress, _ := db.ListScenarios(ctx, ScenarioFilter{PlanID: "p1", Type: finance.ScenarioStressTest})
	if len(stress) != 1 {
		t.Errorf("type filter = %d", len(stress))
	}

	if err := db.DeleteScenario(ctx, all[1].ID); err != nil {
		t.Fatalf("DeleteScenario: %v", err)
	}
	if _, err := db.GetScenario(ctx, all[1].ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted scenario still present: %v", err)
	}

	_ = db.DeletePlan(ctx, "p1")
	left, _ := db.ListScenarios(ctx, ScenarioFilter{PlanID: "p1"})
	if len(left) != 0 {
		t.Errorf("scenarios not cascaded: %d", len(left))
	}
}

func TestBudgetRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	b := &models.Budget{
		ID: "b1", Owner: "alice", Name: "Home", TotalAmount: decimal.RequireFromString("1500.50"),
		Period: models.PeriodMonthly, StartDate: civil.Date{Year: 2025, Month: 1, Day: 1},
		AlertThreshold: 80, Status: models.BudgetOK, CreatedAt: now, UpdatedAt: now,
		Allocations: []models.Allocation{
			{Category: "food", Amount: decimal.NewFromInt(600)},
			{Category: "transport", Amount: decimal.NewFromInt(200)},
		},
	}
	if err := db.CreateBudget(ctx, b); err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	got, err := db.GetBudget(ctx, "b1")
	if err != nil {
		t.Fatalf("GetBudget: %v", err)
	}
	if !got.TotalAmount.Equal(b.TotalAmount) || got.StartDate != b.StartDate || len(got.Allocations) != 2 {
		t.Fatalf("round trip = %+v", got)
	}
	if got.Allocations[0].Category != "food" || !got.Allocations[0].Amount.Equal(decimal.NewFromInt(600)) {
		t.Errorf("allocation = %+v", got.Allocations[0])
	}

	got.Allocations = got.Allocations[:1]
	got.Name = "Home v2"
	if err := db.UpdateBudget(ctx, got); err != nil {
		t.Fatalf("UpdateBudget: %v", err)
	}
	if err := db.SetBudgetStatus(ctx, "b1", models.BudgetWarning); err != nil {
		t.Fatalf("SetBudgetStatus: %v", err)
	}
	list, _ := db.ListBudgets(ctx, "alice")
	if len(list) != 1 || list[0].Name != "Home v2" || len(list[0].Allocations) != 1 || list[0].Status != models.BudgetWarning {
		t.Errorf("after update = %+v", list)
	}

	if err := db.DeleteBudget(ctx, "b1"); err != nil {
		t.Fatalf("DeleteBudget: %v", err)
	}
	var n int
	_ = db.conn.QueryRow(`SELECT count(*) FROM budget_allocations`).Scan(&n)
	if n != 0 {
		t.Errorf("allocations left after delete: %d", n)
	}
}

func TestExpensesRangeAndSums(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	add := func(id string, day int, amount, cat string) {
		t.Helper()
		e := &models.Expense{
			ID: id, Owner: "alice", Date: civil.Date{Year: 2025, Month: 3, Day: day},
			Amount: decimal.RequireFromString(amount), Category: cat, CreatedAt: time.Now(),
		}
		if err := db.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}
	add("e1", 1, "10.10", "food")
	add("e2", 5, "20.20", "food")
	add("e3", 9, "5", "transport")
	add("e4", 20, "100", "rent")

	from := civil.Date{Year: 2025, Month: 3, Day: 2}
	to := civil.Date{Year: 2025, Month: 3, Day: 9}
	inRange, err := db.ExpensesInRange(ctx, "alice", from, to)
	if err != nil {
		t.Fatalf("ExpensesInRange: %v", err)
	}
	if len(inRange) != 2 || inRange[0].ID != "e2" || inRange[1].ID != "e3" {
		t.Errorf("range = %+v", inRange)
	}

	sums, _ := db.SumByCategory(ctx, "alice", civil.Date{}, civil.Date{})
	if !sums["food"].Equal(decimal.RequireFromString("30.30")) || !sums["rent"].Equal(decimal.NewFromInt(100)) {
		t.Errorf("sums = %v", sums)
	}

	page1, total, _ := db.ListExpenses(ctx, ExpenseFilter{Owner: "alice", Limit: 3})
	if total != 4 || len(page1) != 3 || page1[0].ID != "e4" {
		t.Errorf("page = %d/%d first=%s", len(page1), total, page1[0].ID)
	}
	food, total, _ := db.ListExpenses(ctx, ExpenseFilter{Owner: "alice", Category: "food"})
	if total != 2 || len(food) != 2 {
		t.Errorf("category filter = %d", total)
	}

	e, _ := db.GetExpense(ctx, "e3")
	e.Amount = decimal.NewFromInt(7)
	if err := db.UpdateExpense(ctx, e); err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}
	e, _ = db.GetExpense(ctx, "e3")
	if !e.Amount.Equal(decimal.NewFromInt(7)) {
		t.Errorf("amount = %s", e.Amount)
	}
	if err := db.DeleteExpense(ctx, "e3"); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if _, err := db.GetExpense(ctx, "e3"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted expense: %v", err)
	}
}

func TestRates(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	past := civil.Date{Year: 2020, Month: 1, Day: 1}
	rates := []models.Rate{
		{ID: "b-high", Bank: "Beta", Product: "Home", ProductType: models.ProductMortgage, RateMin: 9, RateMax: 11, Source: models.SourceCatalog, Checksum: "1"},
		{ID: "a-low", Bank: "Alpha", Product: "Home", ProductType: models.ProductMortgage, RateMin: 6, RateMax: 8, Source: models.SourceCatalog, Checksum: "2"},
		{ID: "old", Bank: "Alpha", Product: "Car", ProductType: models.ProductAuto, RateMin: 5, RateMax: 7, ValidUntil: &past, Source: models.SourceCatalog, Checksum: "3"},
		{ID: "ref", Bank: "Reference", Product: "Key", ProductType: models.ProductMortgage, RateMin: 7, RateMax: 7, Source: models.SourceReference},
	}
	for i := range rates {
		if err := db.UpsertRate(ctx, &rates[i]); err != nil {
			t.Fatalf("UpsertRate: %v", err)
		}
	}

	mortgages, _ := db.ListRates(ctx, RateFilter{ProductType: models.ProductMortgage})
	if len(mortgages) != 3 || mortgages[0].ID != "a-low" {
		t.Errorf("mortgages = %+v", mortgages)
	}
	active, _ := db.ListRates(ctx, RateFilter{ActiveOn: civil.Date{Year: 2025, Month: 1, Day: 1}})
	if len(active) != 3 {
		t.Errorf("active = %d, want 3", len(active))
	}
	alpha, _ := db.ListRates(ctx, RateFilter{Bank: "alpha"})
	if len(alpha) != 2 {
		t.Errorf("bank filter = %d", len(alpha))
	}

	old, _ := db.GetRate(ctx, "old")
	if old.ValidUntil == nil || *old.ValidUntil != past {
		t.Errorf("valid_until = %v", old.ValidUntil)
	}

	rates[0].RateMin = 4
	rates[0].Checksum = "changed"
	_ = db.UpsertRate(ctx, &rates[0])
	cs, _ := db.RateChecksums(ctx, models.SourceCatalog)
	if len(cs) != 3 || cs["b-high"] != "changed" {
		t.Errorf("checksums = %v", cs)
	}

	if err := db.DeleteRate(ctx, "ref"); err != nil {
		t.Fatalf("DeleteRate: %v", err)
	}
	if _, err := db.GetRate(ctx, "ref"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted rate: %v", err)
	}
}
