package subscription

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/finplan/internal/apperr"
)

func TestAllows(t *testing.T) {
	cases := []struct {
		tier Tier
		f    Feature
		want bool
	}{
		{Free, MonteCarlo, false},
		{Free, Export, false},
		{Premium, MonteCarlo, true},
		{Premium, Sensitivity, true},
		{Premium, ScenarioCompare, true},
		{Premium, Export, false},
		{Pro, Export, true},
		{Pro, UnlimitedPlans, true},
		{Tier("gold"), MonteCarlo, false},
		{Pro, Feature("teleport"), false},
	}
	for _, c := range cases {
		if got := c.tier.Allows(c.f); got != c.want {
			t.Errorf("%s.Allows(%s) = %v, want %v", c.tier, c.f, got, c.want)
		}
	}
}

func TestRequire(t *testing.T) {
	if err := Free.Require(Export); !errors.Is(err, apperr.ErrFeatureLocked) {
		t.Errorf("err = %v", err)
	}
	if err := Pro.Require(Export); err != nil {
		t.Errorf("err = %v", err)
	}
}

func TestPlanLimit(t *testing.T) {
	if Free.PlanLimit() != 3 {
		t.Errorf("free limit = %d", Free.PlanLimit())
	}
	if Premium.PlanLimit() != 0 || Pro.PlanLimit() != 0 {
		t.Error("paid tiers should be unlimited")
	}
}

func TestFeatures(t *testing.T) {
	if len(Free.Features()) != 0 {
		t.Errorf("free features = %v", Free.Features())
	}
	pro := Pro.Features()
	if len(pro) != 5 || !slices.IsSorted(pro) {
		t.Errorf("pro features = %v", pro)
	}
}

func TestParseTier(t *testing.T) {
	if got, err := ParseTier(" Premium "); err != nil || got != Premium {
		t.Errorf("got %q, %v", got, err)
	}
	if _, err := ParseTier("gold"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("s3cret")
	tok, err := IssueToken(secret, "alice", Pro, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	p, err := ParseToken(secret, tok, Free)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if p.Owner != "alice" || p.Tier != Pro || p.Admin {
		t.Errorf("principal = %+v", p)
	}

	admin, err := IssueAdminToken(secret, "root", Free, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if p, err := ParseToken(secret, admin, Free); err != nil || !p.Admin || p.Owner != "root" {
		t.Errorf("admin principal = %+v, %v", p, err)
	}
}

func TestParseToken_DefaultTier(t *testing.T) {
	secret := []byte("s3cret")
	tok, err := IssueToken(secret, "bob", "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	p, err := ParseToken(secret, tok, Premium)
	if err != nil {
		t.Fatal(err)
	}
	if p.Tier != Premium {
		t.Errorf("tier = %q, want premium", p.Tier)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	secret := []byte("s3cret")

	expired, _ := IssueToken(secret, "alice", Free, -time.Minute)
	if _, err := ParseToken(secret, expired, Free); err == nil {
		t.Error("expired token accepted")
	}

	good, _ := IssueToken(secret, "alice", Free, time.Hour)
	if _, err := ParseToken([]byte("other"), good, Free); err == nil {
		t.Error("wrong secret accepted")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(secret, raw, Free); err == nil {
		t.Error("unsigned token accepted")
	}

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	raw, _ = noSub.SignedString(secret)
	if _, err := ParseToken(secret, raw, Free); err == nil {
		t.Error("token without subject accepted")
	}
}

func TestPrincipalContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context has principal")
	}
	ctx := WithPrincipal(context.Background(), Principal{Owner: "alice", Tier: Pro})
	p, ok := FromContext(ctx)
	if !ok || p.Owner != "alice" {
		t.Errorf("principal = %+v, %v", p, ok)
	}
}
