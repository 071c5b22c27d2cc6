package domain

import (
	"fmt"
	"time"

	custody "github.com/louisbranch/custody.space/internal/custody/domain"
	apperrors "github.com/louisbranch/custody.space/internal/errors"
)

// TargetKind distinguishes standalone item vaults from pooled collection vaults.
type TargetKind int

const (
	// KindItem targets a standalone item vault.
	KindItem TargetKind = iota + 1
	// KindCollection targets a pooled collection vault.
	KindCollection
)

// Target identifies a vault record by item or by collection.
type Target struct {
	Kind       TargetKind
	Collection string
	// Sequence is set only for item targets.
	Sequence uint64
}

// ItemTarget builds a target for a standalone item vault.
func ItemTarget(id custody.ItemID) Target {
	return Target{Kind: KindItem, Collection: id.Collection, Sequence: id.Sequence}
}

// CollectionTarget builds a target for a pooled collection vault.
func CollectionTarget(collection string) Target {
	return Target{Kind: KindCollection, Collection: collection}
}

// String returns the canonical storage key for the target.
func (t Target) String() string {
	if t.Kind == KindCollection {
		return fmt.Sprintf("collection/%s", t.Collection)
	}
	return fmt.Sprintf("item/%s/%d", t.Collection, t.Sequence)
}

// ItemID returns the item identifier for an item target.
func (t Target) ItemID() custody.ItemID {
	return custody.ItemID{Collection: t.Collection, Sequence: t.Sequence}
}

// Vault is a prepaid custodian-fee ledger record.
//
// A vault is active while ItemCount > 0. A closed vault holds nothing and
// tracks nothing: balance zero, cursor zero.
type Vault struct {
	Target Target

	// Balance is the prepaid amount in the currency's smallest unit.
	Balance int64
	// Cursor marks the point up to which fees have been settled.
	Cursor time.Time
	// ItemCount is the number of items the record represents.
	ItemCount int64

	// AuctionOpen is set while a trigger auction raised for this vault is
	// unresolved. AuctionEndsAt records the scheduled end of that auction.
	AuctionOpen   bool
	AuctionEndsAt time.Time
}

var (
	// ErrInactive indicates an operation on a closed vault.
	ErrInactive = apperrors.New(apperrors.CodeVaultInactive, "inactive vault")
	// ErrPeriodNotOver indicates a release before a full fee period elapsed.
	ErrPeriodNotOver = apperrors.New(apperrors.CodeVaultPeriodNotOver, "period not over")
	// ErrAuctionOngoing indicates a release while a trigger auction is unresolved.
	ErrAuctionOngoing = apperrors.New(apperrors.CodeVaultAuctionOngoing, "auction ongoing")
	// ErrInvariant indicates a record that violates the closed-vault invariant.
	// This is a fatal condition, never clamped.
	ErrInvariant = apperrors.New(apperrors.CodeVaultInvariant, "closed-vault invariant violated")
	// ErrAmountNotPositive indicates a zero or negative amount.
	ErrAmountNotPositive = apperrors.New(apperrors.CodeAmountNotPositive, "amount must be greater than zero")
)

// Open returns a fresh standalone or pooled vault with a zero balance.
func Open(target Target, cursor time.Time, itemCount int64) Vault {
	return Vault{
		Target:    target,
		Balance:   0,
		Cursor:    cursor.UTC(),
		ItemCount: itemCount,
	}
}

// Active reports whether the vault currently represents any items.
func (v Vault) Active() bool {
	return v.ItemCount > 0
}

// Validate checks the closed-vault invariant and field sanity.
func (v Vault) Validate() error {
	if v.Balance < 0 || v.ItemCount < 0 {
		return ErrInvariant.WithCause(fmt.Errorf("negative balance %d or item count %d", v.Balance, v.ItemCount))
	}
	closed := v.ItemCount == 0
	empty := v.Balance == 0 && v.Cursor.IsZero()
	if closed != empty {
		return ErrInvariant.WithCause(fmt.Errorf("itemCount=%d balance=%d cursor=%v", v.ItemCount, v.Balance, v.Cursor))
	}
	return nil
}

// closed returns the vault's closed form, keeping only the target.
func (v Vault) closed() Vault {
	return Vault{Target: v.Target}
}

// TopUp increases the balance of an active vault.
func TopUp(v Vault, amount int64) (Vault, error) {
	if amount <= 0 {
		return Vault{}, ErrAmountNotPositive
	}
	if !v.Active() {
		return Vault{}, ErrInactive.WithMetadata(map[string]string{"Target": v.Target.String()})
	}
	balance, err := addAmount(v.Balance, amount)
	if err != nil {
		return Vault{}, err
	}
	v.Balance = balance
	return v, nil
}
