package domain

import (
	"fmt"
	"time"

	apperrors "github.com/louisbranch/custody.space/internal/errors"
)

// ItemID identifies an item by its collection and sequence number.
type ItemID struct {
	Collection string
	Sequence   uint64
}

// String returns the canonical "collection/sequence" form.
func (id ItemID) String() string {
	return fmt.Sprintf("%s/%d", id.Collection, id.Sequence)
}

// IsZero reports whether the identifier is empty.
func (id ItemID) IsZero() bool {
	return id.Collection == "" && id.Sequence == 0
}

// Item is a tokenized asset tracked by the custody state machine.
type Item struct {
	ID     ItemID
	Status Status

	// CustodianID is the entity physically holding the item.
	CustodianID string
	// SellerID is the original seller, paid any submitted tax at clearing.
	SellerID string
	// OwnerID is the current escrow-token owner (the buyer after a sale).
	OwnerID string

	// TaxAmount is the seller-submitted settlement adjustment. Zero means
	// no amount was submitted.
	TaxAmount int64

	// ReferencePrice is the item's sale price, used to derive default
	// liquidation-auction parameters.
	ReferencePrice int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrAmountNotPositive indicates a zero or negative amount.
	ErrAmountNotPositive = apperrors.New(apperrors.CodeAmountNotPositive, "amount must be greater than zero")
	// ErrTaxOutsideRequest indicates a tax submission outside the checkout-requested window.
	ErrTaxOutsideRequest = apperrors.New(apperrors.CodeCustodyStatusDisallowsOp, "tax amount is only accepted while a checkout request is open")
)

// ApplyCheckIn moves an item into custodian possession.
func ApplyCheckIn(item Item, now time.Time) (Item, error) {
	if err := requireStatus(item.Status, StatusNone, StatusCheckedIn); err != nil {
		return Item{}, err
	}
	item.Status = StatusCheckedIn
	item.UpdatedAt = now.UTC()
	return item, nil
}

// ApplyCheckOutRequest records the owner's request to reclaim the item.
func ApplyCheckOutRequest(item Item, now time.Time) (Item, error) {
	if err := requireStatus(item.Status, StatusCheckedIn, StatusCheckOutRequested); err != nil {
		return Item{}, err
	}
	item.Status = StatusCheckOutRequested
	item.UpdatedAt = now.UTC()
	return item, nil
}

// ApplySubmitTax attaches a seller tax amount to an open checkout request.
// Resubmitting overwrites any previous amount.
func ApplySubmitTax(item Item, amount int64, now time.Time) (Item, error) {
	if amount <= 0 {
		return Item{}, ErrAmountNotPositive
	}
	if item.Status != StatusCheckOutRequested {
		return Item{}, ErrTaxOutsideRequest.WithMetadata(map[string]string{
			"Status":    item.Status.String(),
			"Operation": "submit tax amount",
		})
	}
	item.TaxAmount = amount
	item.UpdatedAt = now.UTC()
	return item, nil
}

// ApplyClearCheckoutRequest clears an open checkout request.
func ApplyClearCheckoutRequest(item Item, now time.Time) (Item, error) {
	if err := requireStatus(item.Status, StatusCheckOutRequested, StatusCheckOutRequestCleared); err != nil {
		return Item{}, err
	}
	item.Status = StatusCheckOutRequestCleared
	item.UpdatedAt = now.UTC()
	return item, nil
}

// ApplyCheckOut finalizes removal from custody.
func ApplyCheckOut(item Item, now time.Time) (Item, error) {
	if err := requireStatus(item.Status, StatusCheckOutRequestCleared, StatusCheckedOut); err != nil {
		return Item{}, err
	}
	item.Status = StatusCheckedOut
	item.UpdatedAt = now.UTC()
	return item, nil
}
