// Package auth issues and verifies capability tokens for custody operations.
//
// Capabilities are short-lived HMAC-signed JWTs carrying the caller's account
// and entity-scoped role grants: a role is held for a specific item or
// collection, or for every entity via the wildcard grant. The verifier pulls
// the token from the request context, so transports only need to stash the
// raw token with WithToken.
package auth

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/custody.space/internal/errors"
	"github.com/louisbranch/custody.space/internal/platform/id"
)

// Roles recognized by the custody engine.
const (
	// RoleCustodianAgent may check items in and out on the custodian's behalf.
	RoleCustodianAgent = "custodian-agent"
	// RoleSeller may submit tax amounts for its own items.
	RoleSeller = "seller"
	// RoleOwner may request checkout of items it holds the escrow token for.
	RoleOwner = "owner"
	// RoleBuyer may clear checkout requests by paying the submitted tax.
	RoleBuyer = "buyer"
	// RoleFractionalizer may resolve liquidation auctions.
	RoleFractionalizer = "fractionalizer"
)

// GrantAllEntities is the grant key holding roles for every entity.
const GrantAllEntities = "*"

// ErrRoleMissing indicates the caller lacks a required role.
var ErrRoleMissing = apperrors.New(apperrors.CodeRoleMissing, "caller lacks the required role")

type contextKey struct{}

// WithToken stashes a raw capability token in the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKey{}, token)
}

func tokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(contextKey{}).(string)
	return token, ok && token != ""
}

// Claims is the capability token payload. Grants maps an entity (an item id,
// a collection, or GrantAllEntities) to the roles held for it.
type Claims struct {
	jwt.RegisteredClaims
	Grants map[string][]string `json:"grants"`
}

// HasRole reports whether the claims grant the role for the entity, either
// directly or through the wildcard grant.
func (c Claims) HasRole(role, entity string) bool {
	if slices.Contains(c.Grants[entity], role) {
		return true
	}
	return slices.Contains(c.Grants[GrantAllEntities], role)
}

// Verifier issues and checks capability tokens.
type Verifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewVerifier builds a verifier around a shared HMAC secret.
func NewVerifier(secret []byte, ttl time.Duration) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("auth secret is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Verifier{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue signs a capability token for an account with the given entity-scoped
// role grants.
func (v *Verifier) Issue(accountID string, grants map[string][]string) (string, error) {
	if accountID == "" {
		return "", fmt.Errorf("account id is required")
	}
	tokenID, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	now := v.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
		Grants: grants,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign capability token: %w", err)
	}
	return signed, nil
}

// Verify parses a raw token and returns its claims.
func (v *Verifier) Verify(raw string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil {
		return Claims{}, ErrRoleMissing.WithCause(err)
	}
	return claims, nil
}

// Require checks that the context carries a valid capability token granting
// the role for the entity, and returns the caller's account id.
func (v *Verifier) Require(ctx context.Context, role, entity string) (string, error) {
	raw, ok := tokenFromContext(ctx)
	if !ok {
		return "", ErrRoleMissing.WithMetadata(map[string]string{"Role": role, "Entity": entity})
	}
	claims, err := v.Verify(raw)
	if err != nil {
		return "", err
	}
	if !claims.HasRole(role, entity) {
		return "", ErrRoleMissing.WithMetadata(map[string]string{"Role": role, "Entity": entity})
	}
	return claims.Subject, nil
}
