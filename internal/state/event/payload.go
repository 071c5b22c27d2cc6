package event

import "time"

// CheckedInPayload describes a custody.checked_in event.
type CheckedInPayload struct {
	ItemID      string `json:"item_id"`
	CustodianID string `json:"custodian_id"`
}

// CheckOutRequestedPayload describes a custody.checkout_requested event.
type CheckOutRequestedPayload struct {
	ItemID  string `json:"item_id"`
	OwnerID string `json:"owner_id"`
}

// TaxSubmittedPayload describes a custody.tax_submitted event.
type TaxSubmittedPayload struct {
	ItemID string `json:"item_id"`
	Amount int64  `json:"amount"`
}

// CheckOutClearedPayload describes a custody.checkout_cleared event.
type CheckOutClearedPayload struct {
	ItemID     string `json:"item_id"`
	TaxAmount  int64  `json:"tax_amount,omitempty"`
	TaxPaidTo  string `json:"tax_paid_to,omitempty"`
	ClearedBy  string `json:"cleared_by"`
}

// CheckedOutPayload describes a custody.checked_out event.
type CheckedOutPayload struct {
	ItemID          string `json:"item_id"`
	CustodianPayoff int64  `json:"custodian_payoff"`
	OwnerRefund     int64  `json:"owner_refund"`
}

// VaultToppedUpPayload describes a vault.topped_up event.
type VaultToppedUpPayload struct {
	Target  string `json:"target"`
	Amount  int64  `json:"amount"`
	Balance int64  `json:"balance"`
}

// VaultReleasedPayload describes a vault.released event.
type VaultReleasedPayload struct {
	Target  string    `json:"target"`
	Payout  int64     `json:"payout"`
	Periods int64     `json:"periods"`
	Balance int64     `json:"balance"`
	Cursor  time.Time `json:"cursor"`
}

// PoolJoinedPayload describes a vault.pool_joined event.
type PoolJoinedPayload struct {
	ItemID     string `json:"item_id"`
	Collection string `json:"collection"`
	Payoff     int64  `json:"payoff"`
	Pooled     int64  `json:"pooled"`
	ItemCount  int64  `json:"item_count"`
}

// PoolLeftPayload describes a vault.pool_left event.
type PoolLeftPayload struct {
	ItemID     string `json:"item_id"`
	Collection string `json:"collection"`
	Payoff     int64  `json:"payoff"`
	Residual   int64  `json:"residual"`
	ItemCount  int64  `json:"item_count"`
}

// FundsIncreasedPayload describes a funds.increased event.
type FundsIncreasedPayload struct {
	EntityID string `json:"entity_id"`
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

// AuctionStartedPayload describes an auction.started event.
type AuctionStartedPayload struct {
	Collection    string    `json:"collection"`
	Fractions     int64     `json:"fractions"`
	BaseSupply    int64     `json:"base_supply,omitempty"`
	AuctionEndsAt time.Time `json:"auction_ends_at"`
}

// AuctionResolvedPayload describes an auction.resolved event.
type AuctionResolvedPayload struct {
	Collection string `json:"collection"`
}
