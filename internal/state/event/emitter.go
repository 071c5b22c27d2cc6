package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Store defines the interface for persisting events.
type Store interface {
	AppendEvent(ctx context.Context, evt Event) (Event, error)
}

// Emitter provides event emission capabilities for state mutations.
type Emitter struct {
	store Store
	now   func() time.Time
}

// NewEmitter creates a new event emitter.
func NewEmitter(store Store) *Emitter {
	return &Emitter{
		store: store,
		now:   time.Now,
	}
}

// EmitInput describes the input for emitting an event.
type EmitInput struct {
	Collection string
	Type       Type
	ActorType  ActorType
	ActorID    string
	EntityType string
	EntityID   string
	Payload    any
}

// Emit appends an event to the unified custody journal.
func (e *Emitter) Emit(ctx context.Context, input EmitInput) (Event, error) {
	if e.store == nil {
		return Event{}, fmt.Errorf("event store is not configured")
	}

	payloadJSON, err := json.Marshal(input.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event payload: %w", err)
	}

	actorType := input.ActorType
	if actorType == "" {
		actorType = ActorTypeSystem
	}

	evt := Event{
		Collection:  input.Collection,
		Timestamp:   e.now().UTC(),
		Type:        input.Type,
		ActorType:   actorType,
		ActorID:     input.ActorID,
		EntityType:  input.EntityType,
		EntityID:    input.EntityID,
		PayloadJSON: payloadJSON,
	}

	return e.store.AppendEvent(ctx, evt)
}

// EmitCheckedIn emits a custody.checked_in event.
func (e *Emitter) EmitCheckedIn(ctx context.Context, collection, actorID string, payload CheckedInPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		Collection: collection,
		Type:       TypeCheckedIn,
		ActorType:  ActorTypeCaller,
		ActorID:    actorID,
		EntityType: "item",
		EntityID:   payload.ItemID,
		Payload:    payload,
	})
}

// EmitCheckOutRequested emits a custody.checkout_requested event.
func (e *Emitter) EmitCheckOutRequested(ctx context.Context, collection, actorID string, payload CheckOutRequestedPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		Collection: collection,
		Type:       TypeCheckOutRequested,
		ActorType:  ActorTypeCaller,
		ActorID:    actorID,
		EntityType: "item",
		EntityID:   payload.ItemID,
		Payload:    payload,
	})
}

// EmitTaxSubmitted emits a custody.tax_submitted event.
func (e *Emitter) EmitTaxSubmitted(ctx context.Context, collection, actorID string, payload TaxSubmittedPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		Collection: collection,
		Type:       TypeTaxSubmitted,
		ActorType:  ActorTypeCaller,
		ActorID:    actorID,
		EntityType: "item",
		EntityID:   payload.ItemID,
		Payload:    payload,
	})
}

// EmitCheckOutCleared emits a custody.checkout_cleared event.
func (e *Emitter) EmitCheckOutCleared(ctx context.Context, collection, actorID string, payload CheckOutClearedPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		Collection: collection,
		Type:       TypeCheckOutCleared,
		ActorType:  ActorTypeCaller,
		ActorID:    actorID,
		EntityType: "item",
		EntityID:   payload.ItemID,
		Payload:    payload,
	})
}

// EmitCheckedOut emits a custody.checked_out event.
func (e *Emitter) EmitCheckedOut(ctx context.Context, collection, actorID string, payload CheckedOutPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		Collection: collection,
		Type:       TypeCheckedOut,
		ActorType:  ActorTypeCaller,
		ActorID:    actorID,
		EntityType: "item",
		EntityID:   payload.ItemID,
		Payload:    payload,
	})
}

// EmitVaultToppedUp emits a vault.topped_up event.
func (e *Emitter) EmitVaultToppedUp(ctx context.Context, collection, actorID string, payload VaultToppedUpPayload) (Event, error) {
	actorType := ActorTypeSystem
	if actorID != "" {
		actorType = ActorTypeCaller
	}
	return e.Emit(ctx, EmitInput{
		Collection: collection,
		Type:       TypeVaultToppedUp,
		ActorType:  actorType,
		ActorID:    actorID,
		EntityType: "vault",
		EntityID:   payload.Target,
		Payload:    payload,
	})
}

// EmitVaultReleased emits a vault.released event.
func (e *Emitter) EmitVaultReleased(ctx context.Context, collection string, payload VaultReleasedPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		Collection: collection,
		Type:       TypeVaultReleased,
		EntityType: "vault",
		EntityID:   payload.Target,
		Payload:    payload,
	})
}

// EmitPoolJoined emits a vault.pool_joined event.
func (e *Emitter) EmitPoolJoined(ctx context.Context, collection string, payload PoolJoinedPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		Collection: collection,
		Type:       TypePoolJoined,
		EntityType: "vault",
		EntityID:   payload.ItemID,
		Payload:    payload,
	})
}

// EmitPoolLeft emits a vault.pool_left event.
func (e *Emitter) EmitPoolLeft(ctx context.Context, collection string, payload PoolLeftPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		Collection: collection,
		Type:       TypePoolLeft,
		EntityType: "vault",
		EntityID:   payload.ItemID,
		Payload:    payload,
	})
}

// EmitFundsIncreased emits a funds.increased event.
func (e *Emitter) EmitFundsIncreased(ctx context.Context, collection string, payload FundsIncreasedPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		Collection: collection,
		Type:       TypeFundsIncreased,
		EntityType: "funds",
		EntityID:   payload.EntityID,
		Payload:    payload,
	})
}

// EmitAuctionStarted emits an auction.started event.
func (e *Emitter) EmitAuctionStarted(ctx context.Context, collection string, payload AuctionStartedPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		Collection: collection,
		Type:       TypeAuctionStarted,
		EntityType: "auction",
		EntityID:   payload.Collection,
		Payload:    payload,
	})
}

// EmitAuctionResolved emits an auction.resolved event.
func (e *Emitter) EmitAuctionResolved(ctx context.Context, collection string, payload AuctionResolvedPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		Collection: collection,
		Type:       TypeAuctionResolved,
		EntityType: "auction",
		EntityID:   payload.Collection,
		Payload:    payload,
	})
}
