package custodyfakes

import (
	"context"
	"sync"

	"github.com/louisbranch/custody.space/internal/auth"
	custody "github.com/louisbranch/custody.space/internal/custody/domain"
)

// TokenLayer is an in-memory token system that records custody notifications.
type TokenLayer struct {
	mu       sync.Mutex
	active   []custody.ItemID
	escrowed []custody.ItemID
	burned   []custody.ItemID
	// EligibleErr, when set, fails every eligibility check.
	EligibleErr error
}

// NewTokenLayer returns an empty token layer fake.
func NewTokenLayer() *TokenLayer {
	return &TokenLayer{}
}

// VerifyEligible reports the configured eligibility result.
func (f *TokenLayer) VerifyEligible(_ context.Context, _ custody.ItemID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.EligibleErr
}

// NotifyCheckedIn records a custody notification.
func (f *TokenLayer) NotifyCheckedIn(_ context.Context, id custody.ItemID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = append(f.active, id)
	return nil
}

// EscrowToken records a token escrow.
func (f *TokenLayer) EscrowToken(_ context.Context, id custody.ItemID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escrowed = append(f.escrowed, id)
	return nil
}

// BurnToken records a token burn.
func (f *TokenLayer) BurnToken(_ context.Context, id custody.ItemID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.burned = append(f.burned, id)
	return nil
}

// Escrowed returns every recorded escrow.
func (f *TokenLayer) Escrowed() []custody.ItemID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]custody.ItemID(nil), f.escrowed...)
}

// Burned returns every recorded burn.
func (f *TokenLayer) Burned() []custody.ItemID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]custody.ItemID(nil), f.burned...)
}

// Authorizer grants fixed roles to fixed actors.
type Authorizer struct {
	// Grants maps a grant key to the actor holding it. A "role@entity" key
	// scopes the grant to one entity; a bare role key covers every entity.
	Grants map[string]string
}

// NewAuthorizer returns an authorizer fake with the given role grants.
func NewAuthorizer(grants map[string]string) *Authorizer {
	return &Authorizer{Grants: grants}
}

// Require returns the actor granted the role for the entity, or a
// role-missing error.
func (a *Authorizer) Require(_ context.Context, role, entity string) (string, error) {
	if actor, ok := a.Grants[role+"@"+entity]; ok {
		return actor, nil
	}
	if actor, ok := a.Grants[role]; ok {
		return actor, nil
	}
	return "", auth.ErrRoleMissing.WithMetadata(map[string]string{"Role": role, "Entity": entity})
}
