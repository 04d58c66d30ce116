package planservice

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/starford/finplan/internal/apperr"
	"github.com/starford/finplan/internal/cache"
	"github.com/starford/finplan/internal/events"
	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/models"
	"github.com/starford/finplan/internal/store"
	"github.com/starford/finplan/internal/subscription"
	"github.com/starford/finplan/internal/testutil"
)

var (
	alice = subscription.Principal{Owner: "alice", Tier: subscription.Pro}
	bob   = subscription.Principal{Owner: "bob", Tier: subscription.Free}
)

type recorder struct{ types []events.Type }

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.types = append(r.types, e.Type)
	return nil
}

func newService(t *testing.T) (*Service, *store.DB, *recorder) {
	t.Helper()
	db := testutil.TestStore(t)
	rec := &recorder{}
	svc := NewService(db, Config{Iterations: 2000, Events: rec, Logger: testutil.Logger()})
	return svc, db, rec
}

func homeInput(name string) PlanInput {
	return PlanInput{
		Name:     name,
		PlanType: models.PlanHomePurchase,
		LoanParams: finance.LoanParams{
			PurchasePrice: 400_000, DownPayment: 80_000, AnnualRate: 6.5, TermMonths: 360,
			MonthlyIncome: 9_000, MonthlyExpenses: 2_500,
		},
	}
}

func TestCreateAndGetPlan(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, alice, homeInput("House"))
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if p.ID == "" || p.Checksum == "" || p.Owner != "alice" {
		t.Errorf("unexpected plan: %+v", p)
	}
	if p.Status != models.StatusDraft || p.Visibility != models.VisibilityPrivate {
		t.Errorf("defaults not applied: %s %s", p.Status, p.Visibility)
	}

	got, err := svc.GetPlan(ctx, "alice", p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Checksum != p.Checksum {
		t.Errorf("checksum mismatch: %s vs %s", got.Checksum, p.Checksum)
	}

	if _, err := svc.GetPlan(ctx, "bob", p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("other owner err = %v", err)
	}
	if len(rec.types) != 1 || rec.types[0] != events.PlanCreated {
		t.Errorf("events = %v", rec.types)
	}
}

func TestCreatePlan_Invalid(t *testing.T) {
	svc, _, _ := newService(t)
	in := homeInput("Bad")
	in.DownPayment = in.PurchasePrice + 1
	if _, err := svc.CreatePlan(context.Background(), alice, in); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestCreatePlan_FreeTierLimit(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	for i := 0; i < subscription.FreePlanLimit; i++ {
		if _, err := svc.CreatePlan(ctx, bob, homeInput("p")); err != nil {
			t.Fatalf("plan %d: %v", i, err)
		}
	}
	if _, err := svc.CreatePlan(ctx, bob, homeInput("one too many")); !errors.Is(err, apperr.ErrLimitReached) {
		t.Errorf("err = %v", err)
	}
	// Paid tiers are not limited.
	premium := subscription.Principal{Owner: "bob", Tier: subscription.Premium}
	if _, err := svc.CreatePlan(ctx, premium, homeInput("premium")); err != nil {
		t.Errorf("premium create: %v", err)
	}
}

func TestUpdatePlan_IfMatch(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, _ := svc.CreatePlan(ctx, alice, homeInput("House"))

	in := homeInput("House v2")
	in.AnnualRate = 5.5
	if _, err := svc.UpdatePlan(ctx, "alice", p.ID, in, "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale if-match err = %v", err)
	}

	updated, err := svc.UpdatePlan(ctx, "alice", p.ID, in, p.Checksum)
	if err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}
	if updated.Name != "House v2" || updated.AnnualRate != 5.5 {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.Checksum == p.Checksum {
		t.Error("checksum did not change")
	}

	// The old checksum is now stale.
	if _, err := svc.UpdatePlan(ctx, "alice", p.ID, in, p.Checksum); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("reused checksum err = %v", err)
	}
	// Without If-Match the update is unconditional.
	if _, err := svc.UpdatePlan(ctx, "alice", p.ID, homeInput("House v3"), ""); err != nil {
		t.Errorf("unconditional update: %v", err)
	}
	if _, err := svc.UpdatePlan(ctx, "bob", p.ID, in, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("other owner update err = %v", err)
	}
}

func TestDeleteAndListPlans(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()
	a, _ := svc.CreatePlan(ctx, alice, homeInput("A"))
	_, _ = svc.CreatePlan(ctx, alice, homeInput("B"))
	_, _ = svc.CreatePlan(ctx, bob, homeInput("C"))

	plans, total, err := svc.ListPlans(ctx, "alice", store.PlanFilter{Owner: "bob"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(plans) != 2 {
		t.Errorf("alice sees %d/%d plans", len(plans), total)
	}

	if err := svc.DeletePlan(ctx, "bob", a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("cross-owner delete err = %v", err)
	}
	if err := svc.DeletePlan(ctx, "alice", a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetPlan(ctx, "alice", a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
	if rec.types[len(rec.types)-1] != events.PlanDeleted {
		t.Errorf("last event = %v", rec.types[len(rec.types)-1])
	}
}

func TestGetShared(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	private, _ := svc.CreatePlan(ctx, alice, homeInput("Private"))
	in := homeInput("Public")
	in.Visibility = models.VisibilityPublic
	public, _ := svc.CreatePlan(ctx, alice, in)

	if _, err := svc.GetShared(ctx, private.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("private share err = %v", err)
	}
	got, err := svc.GetShared(ctx, public.ID)
	if err != nil || got.Name != "Public" {
		t.Errorf("public share = %+v, %v", got, err)
	}
}

func TestScenarios(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()
	p, _ := svc.CreatePlan(ctx, alice, homeInput("House"))

	generated, err := svc.GenerateScenarios(ctx, "alice", p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(generated) != len(finance.ScenarioTypes) {
		t.Fatalf("generated %d scenarios", len(generated))
	}
	if rec.types[len(rec.types)-1] != events.ScenariosGenerated {
		t.Errorf("last event = %v", rec.types[len(rec.types)-1])
	}

	// Regenerating replaces rather than appends.
	if _, err := svc.GenerateScenarios(ctx, "alice", p.ID); err != nil {
		t.Fatal(err)
	}
	all, err := svc.ListScenarios(ctx, "alice", p.ID, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(finance.ScenarioTypes) {
		t.Errorf("after regenerate: %d scenarios", len(all))
	}

	stress, err := svc.ListScenarios(ctx, "alice", p.ID, finance.ScenarioStressTest, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(stress) != 1 || stress[0].Type != finance.ScenarioStressTest {
		t.Errorf("stress filter = %+v", stress)
	}
	if _, err := svc.ListScenarios(ctx, "alice", p.ID, "sideways", ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad type err = %v", err)
	}
	if _, err := svc.ListScenarios(ctx, "bob", p.ID, "", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("other owner err = %v", err)
	}

	if err := svc.DeleteScenario(ctx, "bob", stress[0].ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("cross-owner delete err = %v", err)
	}
	if err := svc.DeleteScenario(ctx, "alice", stress[0].ID); err != nil {
		t.Fatal(err)
	}
	all, _ = svc.ListScenarios(ctx, "alice", p.ID, "", "")
	if len(all) != len(finance.ScenarioTypes)-1 {
		t.Errorf("after delete: %d scenarios", len(all))
	}
}

func TestCompareScenarios(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, _ := svc.CreatePlan(ctx, alice, homeInput("House"))

	// Without stored scenarios a fresh set is compared.
	c, err := svc.CompareScenarios(ctx, alice, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Baseline != "Baseline" || len(c.Deltas) != len(finance.ScenarioTypes) {
		t.Errorf("comparison = %+v", c)
	}
	if c.LowestCost != "Optimistic" {
		t.Errorf("lowest cost = %q, want Optimistic", c.LowestCost)
	}

	free := subscription.Principal{Owner: "alice", Tier: subscription.Free}
	if _, err := svc.CompareScenarios(ctx, free, p.ID); !errors.Is(err, apperr.ErrFeatureLocked) {
		t.Errorf("free tier err = %v", err)
	}
}

func TestSchedule(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, _ := svc.CreatePlan(ctx, alice, homeInput("House"))

	res, err := svc.Schedule(ctx, "alice", p.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Years) != 30 || res.Installments != nil {
		t.Errorf("years=%d installments=%d", len(res.Years), len(res.Installments))
	}
	detailed, _ := svc.Schedule(ctx, "alice", p.ID, true)
	if len(detailed.Installments) != 360 {
		t.Errorf("installments = %d", len(detailed.Installments))
	}
	if detailed.Principal != 320_000 {
		t.Errorf("principal = %v", detailed.Principal)
	}
}

func TestSimulate_DeterministicAndCached(t *testing.T) {
	db := testutil.TestStore(t)
	sims := cache.NewLRU[finance.Simulation](8, time.Hour)
	svc := NewService(db, Config{Iterations: 1000, Simulations: sims, Logger: testutil.Logger()})
	ctx := context.Background()
	params := homeInput("x").LoanParams

	a, err := svc.Simulate(ctx, params, finance.SimulationOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Iterations != 1000 || a.Seed == 0 {
		t.Errorf("iterations=%d seed=%d", a.Iterations, a.Seed)
	}
	if sims.Len() != 1 {
		t.Errorf("cache size = %d", sims.Len())
	}
	b, _ := svc.Simulate(ctx, params, finance.SimulationOptions{})
	if a != b {
		t.Error("same inputs produced different results")
	}
	if !(a.Percentile5 <= a.Median && a.Median <= a.Percentile95) {
		t.Errorf("percentiles out of order: %+v", a)
	}

	c, _ := svc.Simulate(ctx, params, finance.SimulationOptions{Seed: 42})
	if c.Seed != 42 {
		t.Errorf("explicit seed lost: %d", c.Seed)
	}
	if sims.Len() != 2 {
		t.Errorf("cache size = %d", sims.Len())
	}
}

func TestMonteCarloAndSensitivity_TierGated(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, _ := svc.CreatePlan(ctx, alice, homeInput("House"))
	free := subscription.Principal{Owner: "alice", Tier: subscription.Free}

	if _, err := svc.MonteCarlo(ctx, free, p.ID, finance.SimulationOptions{}); !errors.Is(err, apperr.ErrFeatureLocked) {
		t.Errorf("monte carlo free err = %v", err)
	}
	if _, err := svc.Sensitivity(ctx, free, p.ID); !errors.Is(err, apperr.ErrFeatureLocked) {
		t.Errorf("sensitivity free err = %v", err)
	}

	sim, err := svc.MonteCarlo(ctx, alice, p.ID, finance.SimulationOptions{Iterations: 500})
	if err != nil {
		t.Fatal(err)
	}
	if sim.Iterations != 500 {
		t.Errorf("iterations = %d", sim.Iterations)
	}
	factors, err := svc.Sensitivity(ctx, alice, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(factors) != 4 {
		t.Errorf("factors = %d", len(factors))
	}
}

const ratesYAML = `
rates:
  - id: cheap-mortgage
    bank: Alpha
    product: Fixed 30
    product_type: mortgage
    rate_min: 5.1
    rate_max: 5.9
    processing_fee: 1
    min_income: 5000
    max_ltv: 80
    max_term_months: 360
  - id: rich-only
    bank: Beta
    product: Private
    product_type: mortgage
    rate_min: 4.2
    rate_max: 4.5
    min_income: 50000
  - id: short-term
    bank: Gamma
    product: Fixed 15
    product_type: mortgage
    rate_min: 4.8
    rate_max: 5.0
    max_term_months: 180
  - id: expired
    bank: Delta
    product: Promo
    product_type: mortgage
    rate_min: 3.0
    rate_max: 3.0
    valid_until: "2001-01-01"
  - id: open-mortgage
    bank: Epsilon
    product: Flex
    product_type: mortgage
    rate_min: 6.2
    rate_max: 7.0
  - id: car-loan
    bank: Alpha
    product: Auto
    product_type: auto
    rate_min: 2.0
    rate_max: 3.0
`

func TestMatchingRates(t *testing.T) {
	svc, db, _ := newService(t)
	testutil.TestCatalog(t, db, ratesYAML)
	ctx := context.Background()
	p, _ := svc.CreatePlan(ctx, alice, homeInput("House"))

	matches, err := svc.MatchingRates(ctx, "alice", p.ID)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	if strings.Join(ids, ",") != "cheap-mortgage,open-mortgage" {
		t.Fatalf("matches = %v", ids)
	}
	first := matches[0]
	if want := finance.MonthlyPayment(320_000, 5.1, 360); first.MonthlyPayment != want {
		t.Errorf("payment = %v, want %v", first.MonthlyPayment, want)
	}
	if first.UpfrontFee != 3200 {
		t.Errorf("upfront fee = %v", first.UpfrontFee)
	}
}

func TestEligible(t *testing.T) {
	params := homeInput("x").LoanParams // LTV 80, income 9000, term 360
	today := civil.DateOf(time.Now())
	cases := []struct {
		name string
		r    models.Rate
		want bool
	}{
		{"unrestricted", models.Rate{}, true},
		{"ltv at limit", models.Rate{MaxLTV: 80}, true},
		{"ltv over limit", models.Rate{MaxLTV: 75}, false},
		{"income short", models.Rate{MinIncome: 9001}, false},
		{"term too long", models.Rate{MaxTermMonths: 240}, false},
	}
	for _, c := range cases {
		if got := Eligible(c.r, params, today); got != c.want {
			t.Errorf("%s: Eligible = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestExport(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, _ := svc.CreatePlan(ctx, alice, homeInput("House, big"))
	if _, err := svc.GenerateScenarios(ctx, "alice", p.ID); err != nil {
		t.Fatal(err)
	}

	premium := subscription.Principal{Owner: "alice", Tier: subscription.Premium}
	if _, err := svc.Export(ctx, premium, p.ID, "json"); !errors.Is(err, apperr.ErrFeatureLocked) {
		t.Errorf("premium export err = %v", err)
	}
	if _, err := svc.Export(ctx, alice, p.ID, "xlsx"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("xlsx err = %v", err)
	}

	jf, err := svc.Export(ctx, alice, p.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if jf.ContentType != "application/json" || !strings.HasSuffix(jf.Name, ".json") {
		t.Errorf("json file = %s %s", jf.Name, jf.ContentType)
	}
	var doc struct {
		Plan      models.Plan       `json:"plan"`
		Scenarios []models.Scenario `json:"scenarios"`
	}
	if err := json.Unmarshal(jf.Data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Plan.ID != p.ID || len(doc.Scenarios) != 5 {
		t.Errorf("json doc: plan=%s scenarios=%d", doc.Plan.ID, len(doc.Scenarios))
	}

	cf, err := svc.Export(ctx, alice, p.ID, "CSV")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(cf.Data, []byte(utf8BOM)) {
		t.Error("csv missing BOM")
	}
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(cf.Data, []byte(utf8BOM))))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if rows[0][0] != "Plan" || rows[0][1] != "House, big" {
		t.Errorf("first row = %v", rows[0])
	}
	scenarioRows := 0
	for _, row := range rows {
		if len(row) == 9 && row[0] != "Scenario" {
			scenarioRows++
		}
	}
	if scenarioRows != 5 {
		t.Errorf("scenario rows = %d", scenarioRows)
	}
}
