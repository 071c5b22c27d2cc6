package event

import (
	"encoding/json"
	"time"
)

// Type identifies the type of a custody or ledger event.
type Type string

// Custody lifecycle events.
const (
	// TypeCheckedIn records an item entering custodian possession.
	TypeCheckedIn Type = "custody.checked_in"
	// TypeCheckOutRequested records an owner's checkout request.
	TypeCheckOutRequested Type = "custody.checkout_requested"
	// TypeTaxSubmitted records a seller tax amount attachment.
	TypeTaxSubmitted Type = "custody.tax_submitted"
	// TypeCheckOutCleared records a cleared checkout request.
	TypeCheckOutCleared Type = "custody.checkout_cleared"
	// TypeCheckedOut records an item leaving custody for good.
	TypeCheckedOut Type = "custody.checked_out"
)

// Vault ledger events.
const (
	// TypeVaultToppedUp records a prepaid balance increase.
	TypeVaultToppedUp Type = "vault.topped_up"
	// TypeVaultReleased records a periodic fee release.
	TypeVaultReleased Type = "vault.released"
	// TypePoolJoined records an item vault folded into a collection vault.
	TypePoolJoined Type = "vault.pool_joined"
	// TypePoolLeft records an item leaving a collection vault.
	TypePoolLeft Type = "vault.pool_left"
	// TypeFundsIncreased records an available-funds increase forwarded to
	// the funds collaborator.
	TypeFundsIncreased Type = "funds.increased"
)

// Auction trigger events.
const (
	// TypeAuctionStarted records a liquidation auction trigger.
	TypeAuctionStarted Type = "auction.started"
	// TypeAuctionResolved records the external resolution of an auction.
	TypeAuctionResolved Type = "auction.resolved"
)

// ActorType identifies who caused an event.
type ActorType string

const (
	// ActorTypeSystem marks events produced by the engine itself.
	ActorTypeSystem ActorType = "SYSTEM"
	// ActorTypeCaller marks events produced on behalf of an external caller.
	ActorTypeCaller ActorType = "CALLER"
)

// Event is one entry in the append-only custody journal.
type Event struct {
	// ID is the journal sequence number, assigned by the store.
	ID int64
	// Collection scopes the event to one collection's items and vaults.
	Collection  string
	Timestamp   time.Time
	Type        Type
	ActorType   ActorType
	ActorID     string
	EntityType  string
	EntityID    string
	PayloadJSON json.RawMessage
}
