package custodyfakes

import (
	"context"
	"sync"

	custody "github.com/louisbranch/custody.space/internal/custody/domain"
)

// Credit records one funds-ledger credit.
type Credit struct {
	AccountID string
	Currency  string
	Amount    int64
}

// FundsLedger is an in-memory funds ledger that records credits per account.
type FundsLedger struct {
	mu      sync.Mutex
	credits []Credit
	// Err, when set, is returned by every credit attempt.
	Err error
}

// NewFundsLedger returns an empty funds ledger fake.
func NewFundsLedger() *FundsLedger {
	return &FundsLedger{}
}

// IncreaseAvailableFunds records a credit.
func (f *FundsLedger) IncreaseAvailableFunds(_ context.Context, accountID, currency string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.credits = append(f.credits, Credit{AccountID: accountID, Currency: currency, Amount: amount})
	return nil
}

// Credits returns every recorded credit in order.
func (f *FundsLedger) Credits() []Credit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Credit(nil), f.credits...)
}

// Balance sums the recorded credits for one account.
func (f *FundsLedger) Balance(accountID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, c := range f.credits {
		if c.AccountID == accountID {
			total += c.Amount
		}
	}
	return total
}

// Mint records one fraction mint.
type Mint struct {
	ItemID     custody.ItemID
	Collection string
	Supply     int64
	Base       bool
}

// Fractionalizer is an in-memory token layer that records fraction mints.
type Fractionalizer struct {
	mu    sync.Mutex
	mints []Mint
	// Err, when set, is returned by every mint attempt.
	Err error
}

// NewFractionalizer returns an empty fractionalizer fake.
func NewFractionalizer() *Fractionalizer {
	return &Fractionalizer{}
}

// MintFractions records a base-supply mint.
func (f *Fractionalizer) MintFractions(_ context.Context, id custody.ItemID, supply int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.mints = append(f.mints, Mint{ItemID: id, Collection: id.Collection, Supply: supply, Base: true})
	return nil
}

// MintAdditionalFractions records an incremental mint.
func (f *Fractionalizer) MintAdditionalFractions(_ context.Context, collection string, fractions int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.mints = append(f.mints, Mint{Collection: collection, Supply: fractions})
	return nil
}

// Mints returns every recorded mint in order.
func (f *Fractionalizer) Mints() []Mint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Mint(nil), f.mints...)
}
