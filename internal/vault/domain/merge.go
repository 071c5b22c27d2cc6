package domain

import "time"

// MergeResult describes an item vault folded into a collection vault.
type MergeResult struct {
	// Item is the item vault in its closed form.
	Item Vault
	// Collection is the updated (or newly opened) collection vault.
	Collection Vault
	// Payoff is the custodian settlement for the item's accrued time.
	Payoff int64
	// Created is set when this merge opened the collection vault.
	Created bool
}

// MergeIntoCollection folds a standalone item vault into its collection's
// pooled vault at setupTime.
//
// An active item vault is first settled linearly (partial periods allowed)
// and the custodian payoff deducted; whatever remains moves into the
// collection balance. An already-closed item vault contributes nothing and
// only grows the pool, which is the path taken right after an underfunded
// release emptied it. The collection vault is opened with cursor = setupTime
// when this is the collection's first pooled item.
func MergeIntoCollection(item Vault, collection Vault, sched FeeSchedule, setupTime time.Time) (MergeResult, error) {
	if err := item.Validate(); err != nil {
		return MergeResult{}, err
	}
	if err := collection.Validate(); err != nil {
		return MergeResult{}, err
	}

	var payoff, remainder int64
	if item.Active() {
		var err error
		payoff, remainder, err = ApplySettle(item, sched, setupTime)
		if err != nil {
			return MergeResult{}, err
		}
	}

	created := false
	if !collection.Active() {
		collection = Open(CollectionTarget(item.Target.Collection), setupTime, 0)
		created = true
	}

	balance, err := addAmount(collection.Balance, remainder)
	if err != nil {
		return MergeResult{}, err
	}
	collection.Balance = balance
	collection.ItemCount++

	result := MergeResult{
		Item:       item.closed(),
		Collection: collection,
		Payoff:     payoff,
		Created:    created,
	}
	if err := result.Collection.Validate(); err != nil {
		return MergeResult{}, err
	}
	return result, nil
}

// SplitResult describes an item leaving a pooled collection vault.
type SplitResult struct {
	// Collection is the updated collection vault, closed when the last
	// item left.
	Collection Vault
	// Item is the reopened standalone vault for the leaving item.
	Item Vault
	// Payoff is the custodian settlement attributable to the leaving item.
	Payoff int64
	// Residual is the undistributed balance carried into the reopened item
	// vault when the last item leaves; zero otherwise.
	Residual int64
}

// SplitFromCollection settles one item out of a pooled collection vault at
// redemptionTime.
//
// The leaving item's payoff is its own linear accrual since joinedAt, capped
// by an equal division of the pooled balance across the items being settled.
// Redemption resolves any open trigger auction on the vault. When the last
// item leaves, the remaining pooled balance follows it into the reopened
// standalone vault so no prepaid funds are destroyed.
func SplitFromCollection(collection Vault, leaving Target, sched FeeSchedule, joinedAt, redemptionTime time.Time) (SplitResult, error) {
	if err := collection.Validate(); err != nil {
		return SplitResult{}, err
	}
	if !collection.Active() {
		return SplitResult{}, ErrInactive.WithMetadata(map[string]string{"Target": collection.Target.String()})
	}

	elapsed := redemptionTime.Sub(joinedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	accrued, err := prorate(elapsed, sched.FeeAmount, sched.FeePeriod)
	if err != nil {
		return SplitResult{}, err
	}
	equalShare := collection.Balance / collection.ItemCount
	payoff := accrued
	if payoff > equalShare {
		payoff = equalShare
	}

	collection.Balance -= payoff
	collection.ItemCount--
	collection.AuctionOpen = false
	collection.AuctionEndsAt = time.Time{}

	var residual int64
	if collection.ItemCount == 0 {
		residual = collection.Balance
		collection = collection.closed()
	}

	item := Open(leaving, redemptionTime, 1)
	item.Balance = residual

	result := SplitResult{Collection: collection, Item: item, Payoff: payoff, Residual: residual}
	if err := result.Collection.Validate(); err != nil {
		return SplitResult{}, err
	}
	if err := result.Item.Validate(); err != nil {
		return SplitResult{}, err
	}
	return result, nil
}
