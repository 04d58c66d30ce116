package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin in the role claim allows editing shared data such as the rate catalog.
const RoleAdmin = "admin"

// Claims are the JWT claims the API accepts.
type Claims struct {
	Tier Tier   `json:"tier,omitempty"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	Owner string `json:"owner"`
	Tier  Tier   `json:"tier"`
	Admin bool   `json:"admin"`
}

// IssueToken signs an HS256 token for owner with the given tier.
func IssueToken(secret []byte, owner string, tier Tier, ttl time.Duration) (string, error) {
	return issue(secret, owner, tier, "", ttl)
}

// IssueAdminToken is IssueToken with the admin role claim.
func IssueAdminToken(secret []byte, owner string, tier Tier, ttl time.Duration) (string, error) {
	return issue(secret, owner, tier, RoleAdmin, ttl)
}

func issue(secret []byte, owner string, tier Tier, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Tier: tier,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return s, nil
}

// ParseToken verifies an HS256 token and returns its principal. A token
// without a tier claim gets defaultTier; only role "admin" grants Admin.
func ParseToken(secret []byte, raw string, defaultTier Tier) (Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("invalid token: missing subject")
	}
	tier := defaultTier
	if claims.Tier != "" {
		if tier, err = ParseTier(string(claims.Tier)); err != nil {
			return Principal{}, fmt.Errorf("invalid token: %w", err)
		}
	}
	return Principal{Owner: claims.Subject, Tier: tier, Admin: claims.Role == RoleAdmin}, nil
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
