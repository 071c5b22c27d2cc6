// Package service orchestrates vault ledger operations: top-ups, periodic
// releases, pool membership, and the liquidation auctions raised when a
// release finds the balance short.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	custody "github.com/louisbranch/custody.space/internal/custody/domain"
	apperrors "github.com/louisbranch/custody.space/internal/errors"
	"github.com/louisbranch/custody.space/internal/state/event"
	"github.com/louisbranch/custody.space/internal/storage"
	"github.com/louisbranch/custody.space/internal/vault/domain"
)

// Store is the persistence surface the vault service needs.
type Store interface {
	storage.ItemStore
	storage.VaultStore
	storage.ScheduleStore
	storage.TriggerConfigStore
	storage.PoolMemberStore
}

// FundsLedger credits accounts in the marketplace's payment layer. The
// engine never holds currency itself; every payout and refund crosses this
// boundary.
type FundsLedger interface {
	IncreaseAvailableFunds(ctx context.Context, accountID, currency string, amount int64) error
}

// Fractionalizer mints ownership fractions in the token layer.
type Fractionalizer interface {
	// MintFractions mints the base ownership supply for an item's first
	// liquidity event.
	MintFractions(ctx context.Context, id custody.ItemID, supply int64) error
	// MintAdditionalFractions mints the incremental fractions sold by a
	// partial auction.
	MintAdditionalFractions(ctx context.Context, collection string, fractions int64) error
}

// ErrFundsTransfer indicates the payment layer rejected a credit.
var ErrFundsTransfer = apperrors.New(apperrors.CodeFundsTransferFailed, "funds transfer failed")

// Service serializes all vault mutations behind a single lock so that
// release arithmetic never races pool membership changes.
type Service struct {
	mu        sync.Mutex
	store     Store
	events    *event.Emitter
	funds     FundsLedger
	fractions Fractionalizer
	defaults  domain.TriggerDefaults
	logger    *slog.Logger
	now       func() time.Time
}

// New wires a vault service over its collaborators.
func New(store Store, events *event.Emitter, funds FundsLedger, fractions Fractionalizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		events:    events,
		funds:     funds,
		fractions: fractions,
		defaults:  domain.DefaultTriggers,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) logEmit(_ event.Event, err error) {
	if err != nil {
		s.logger.Warn("journal append failed", "error", err)
	}
}

func mapNotFound(err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(apperrors.CodeNotFound, msg).WithCause(err)
	}
	return err
}

// pay credits an account and journals the transfer.
func (s *Service) pay(ctx context.Context, sched domain.FeeSchedule, accountID string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	if s.funds == nil {
		return ErrFundsTransfer.WithMetadata(map[string]string{"Account": accountID})
	}
	if err := s.funds.IncreaseAvailableFunds(ctx, accountID, sched.Currency, amount); err != nil {
		return ErrFundsTransfer.WithCause(err).WithMetadata(map[string]string{"Account": accountID})
	}
	s.logEmit(s.events.EmitFundsIncreased(ctx, sched.Collection, event.FundsIncreasedPayload{
		EntityID: accountID,
		Currency: sched.Currency,
		Amount:   amount,
	}))
	return nil
}

// SetSchedule records a collection's fee schedule. Schedules are immutable:
// a second write for the same collection is rejected.
func (s *Service) SetSchedule(ctx context.Context, sched domain.FeeSchedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.store.GetSchedule(ctx, sched.Collection)
	if err == nil {
		return apperrors.New(apperrors.CodeAlreadyExists, "fee schedule already recorded").
			WithMetadata(map[string]string{"Collection": sched.Collection})
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return s.store.PutSchedule(ctx, sched)
}

// GetSchedule loads a collection's fee schedule.
func (s *Service) GetSchedule(ctx context.Context, collection string) (domain.FeeSchedule, error) {
	sched, err := s.store.GetSchedule(ctx, collection)
	return sched, mapNotFound(err, "fee schedule not found")
}

// GetVault loads one vault record.
func (s *Service) GetVault(ctx context.Context, target domain.Target) (domain.Vault, error) {
	v, err := s.store.GetVault(ctx, target)
	return v, mapNotFound(err, "vault not found")
}

// OpenItem opens a standalone vault for an item entering custody, with the
// fee cursor starting now.
func (s *Service) OpenItem(ctx context.Context, id custody.ItemID) (domain.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := domain.ItemTarget(id)
	existing, err := s.store.GetVault(ctx, target)
	if err == nil && existing.Active() {
		return domain.Vault{}, apperrors.New(apperrors.CodeAlreadyExists, "vault already open").
			WithMetadata(map[string]string{"Target": target.String()})
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return domain.Vault{}, err
	}

	v := domain.Open(target, s.now(), 1)
	if err := s.store.PutVault(ctx, v); err != nil {
		return domain.Vault{}, err
	}
	return v, nil
}

// TopUp adds prepaid fee balance to an active vault.
func (s *Service) TopUp(ctx context.Context, target domain.Target, amount int64, actorID string) (domain.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.store.GetVault(ctx, target)
	if err != nil {
		return domain.Vault{}, mapNotFound(err, "vault not found")
	}
	updated, err := domain.TopUp(v, amount)
	if err != nil {
		return domain.Vault{}, err
	}
	if err := s.store.PutVault(ctx, updated); err != nil {
		return domain.Vault{}, err
	}
	s.logEmit(s.events.EmitVaultToppedUp(ctx, target.Collection, actorID, event.VaultToppedUpPayload{
		Target:  target.String(),
		Amount:  amount,
		Balance: updated.Balance,
	}))
	return updated, nil
}

// ReleaseOutcome reports what a release did beyond the ledger arithmetic.
type ReleaseOutcome struct {
	Result domain.ReleaseResult
	// AuctionStarted is set when the release was underfunded and raised a
	// liquidation auction.
	AuctionStarted bool
	// Plan is the auction plan applied when AuctionStarted is set.
	Plan domain.TriggerPlan
}

// Release settles the vault's whole elapsed fee periods. A fully funded
// release pays the custodian and advances the cursor. An underfunded release
// pays out the remaining balance, folds a standalone item into its
// collection's pool, and raises a liquidation auction on the pool.
func (s *Service) Release(ctx context.Context, target domain.Target) (ReleaseOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(ctx, target)
}

func (s *Service) releaseLocked(ctx context.Context, target domain.Target) (ReleaseOutcome, error) {
	v, err := s.store.GetVault(ctx, target)
	if err != nil {
		return ReleaseOutcome{}, mapNotFound(err, "vault not found")
	}
	sched, err := s.store.GetSchedule(ctx, target.Collection)
	if err != nil {
		return ReleaseOutcome{}, mapNotFound(err, "fee schedule not found")
	}

	now := s.now()
	res, err := domain.ApplyRelease(v, sched, now)
	if err != nil {
		return ReleaseOutcome{}, err
	}

	if !res.Shortfall {
		if err := s.store.PutVault(ctx, res.Vault); err != nil {
			return ReleaseOutcome{}, err
		}
		if err := s.pay(ctx, sched, sched.CustodianID, res.Payout); err != nil {
			return ReleaseOutcome{}, err
		}
		s.logEmit(s.events.EmitVaultReleased(ctx, target.Collection, event.VaultReleasedPayload{
			Target:  target.String(),
			Payout:  res.Payout,
			Periods: res.Periods,
			Balance: res.Vault.Balance,
			Cursor:  res.Vault.Cursor,
		}))
		return ReleaseOutcome{Result: res}, nil
	}

	if target.Kind == domain.KindItem {
		return s.shortfallItem(ctx, target, sched, res, now)
	}
	return s.shortfallCollection(ctx, target, sched, res, now)
}

// shortfallItem folds an underfunded standalone vault into its collection's
// pool and raises the auction there.
func (s *Service) shortfallItem(ctx context.Context, target domain.Target, sched domain.FeeSchedule, res domain.ReleaseResult, now time.Time) (ReleaseOutcome, error) {
	id := target.ItemID()
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return ReleaseOutcome{}, mapNotFound(err, "item not found")
	}

	poolTarget := domain.CollectionTarget(target.Collection)
	pool, err := s.store.GetVault(ctx, poolTarget)
	if errors.Is(err, storage.ErrNotFound) {
		pool = domain.Vault{Target: poolTarget}
	} else if err != nil {
		return ReleaseOutcome{}, err
	}

	merge, err := domain.MergeIntoCollection(res.Vault, pool, sched, now)
	if err != nil {
		return ReleaseOutcome{}, err
	}
	pool = merge.Collection

	// The pool may itself owe whole periods; settle them before the
	// auction flag blocks further releases.
	var poolRelease domain.ReleaseResult
	poolReleased := false
	pres, err := domain.ApplyRelease(pool, sched, now)
	switch {
	case err == nil:
		poolRelease = pres
		poolReleased = true
		pool = pres.Vault
	case apperrors.IsCode(err, apperrors.CodeVaultPeriodNotOver):
		// Nothing due on the pool yet.
	default:
		return ReleaseOutcome{}, err
	}

	plan, created, err := s.planAuction(ctx, target.Collection, sched, item.ReferencePrice, now)
	if err != nil {
		return ReleaseOutcome{}, err
	}
	// The auction proceeds cover the unpaid time, so the fee clock restarts
	// at the auction start.
	pool.Cursor = now
	pool.AuctionOpen = true
	pool.AuctionEndsAt = plan.AuctionEndsAt

	if err := s.store.PutVault(ctx, merge.Item); err != nil {
		return ReleaseOutcome{}, err
	}
	member := storage.PoolMember{ItemID: id, Collection: target.Collection, JoinedAt: now}
	if err := s.store.PutPoolMember(ctx, member); err != nil {
		return ReleaseOutcome{}, err
	}
	if created {
		if err := s.store.PutTriggerParams(ctx, plan.Params); err != nil {
			return ReleaseOutcome{}, err
		}
	}
	if err := s.store.PutVault(ctx, pool); err != nil {
		return ReleaseOutcome{}, err
	}

	if err := s.mint(ctx, id, plan); err != nil {
		return ReleaseOutcome{}, err
	}
	if err := s.pay(ctx, sched, sched.CustodianID, res.Payout+merge.Payoff); err != nil {
		return ReleaseOutcome{}, err
	}
	if poolReleased {
		if err := s.pay(ctx, sched, sched.CustodianID, poolRelease.Payout); err != nil {
			return ReleaseOutcome{}, err
		}
	}

	s.logEmit(s.events.EmitVaultReleased(ctx, target.Collection, event.VaultReleasedPayload{
		Target:  target.String(),
		Payout:  res.Payout,
		Periods: res.Periods,
		Balance: 0,
	}))
	s.logEmit(s.events.EmitPoolJoined(ctx, target.Collection, event.PoolJoinedPayload{
		ItemID:     id.String(),
		Collection: target.Collection,
		Payoff:     merge.Payoff,
		Pooled:     pool.Balance,
		ItemCount:  pool.ItemCount,
	}))
	if poolReleased {
		s.logEmit(s.events.EmitVaultReleased(ctx, target.Collection, event.VaultReleasedPayload{
			Target:  poolTarget.String(),
			Payout:  poolRelease.Payout,
			Periods: poolRelease.Periods,
			Balance: pool.Balance,
			Cursor:  pool.Cursor,
		}))
	}
	s.logEmit(s.events.EmitAuctionStarted(ctx, target.Collection, event.AuctionStartedPayload{
		Collection:    target.Collection,
		Fractions:     plan.Fractions,
		BaseSupply:    plan.BaseSupply,
		AuctionEndsAt: plan.AuctionEndsAt,
	}))
	return ReleaseOutcome{Result: res, AuctionStarted: true, Plan: plan}, nil
}

// shortfallCollection raises an incremental auction on an underfunded pool.
func (s *Service) shortfallCollection(ctx context.Context, target domain.Target, sched domain.FeeSchedule, res domain.ReleaseResult, now time.Time) (ReleaseOutcome, error) {
	params, err := s.store.GetTriggerParams(ctx, target.Collection)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ReleaseOutcome{}, domain.ErrInvalidTriggerParams.
				WithMetadata(map[string]string{"Collection": target.Collection}).
				WithCause(err)
		}
		return ReleaseOutcome{}, err
	}
	plan, err := domain.PlanIncremental(params, now)
	if err != nil {
		return ReleaseOutcome{}, err
	}

	pool := res.Vault
	// The auction proceeds cover the unpaid time, so the fee clock restarts
	// at the auction start.
	pool.Cursor = now
	pool.AuctionOpen = true
	pool.AuctionEndsAt = plan.AuctionEndsAt
	if err := s.store.PutVault(ctx, pool); err != nil {
		return ReleaseOutcome{}, err
	}

	if err := s.mint(ctx, custody.ItemID{}, plan); err != nil {
		return ReleaseOutcome{}, err
	}
	if err := s.pay(ctx, sched, sched.CustodianID, res.Payout); err != nil {
		return ReleaseOutcome{}, err
	}

	s.logEmit(s.events.EmitVaultReleased(ctx, target.Collection, event.VaultReleasedPayload{
		Target:  target.String(),
		Payout:  res.Payout,
		Periods: res.Periods,
		Balance: 0,
		Cursor:  pool.Cursor,
	}))
	s.logEmit(s.events.EmitAuctionStarted(ctx, target.Collection, event.AuctionStartedPayload{
		Collection:    target.Collection,
		Fractions:     plan.Fractions,
		AuctionEndsAt: plan.AuctionEndsAt,
	}))
	return ReleaseOutcome{Result: res, AuctionStarted: true, Plan: plan}, nil
}

// planAuction resolves the auction plan for a collection: recorded trigger
// parameters drive an incremental auction, otherwise the protocol defaults
// derive a first-liquidity plan from the item's reference sale price.
func (s *Service) planAuction(ctx context.Context, collection string, sched domain.FeeSchedule, referencePrice int64, now time.Time) (domain.TriggerPlan, bool, error) {
	params, err := s.store.GetTriggerParams(ctx, collection)
	if err == nil {
		plan, err := domain.PlanIncremental(params, now)
		return plan, false, err
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.TriggerPlan{}, false, err
	}
	plan, err := s.defaults.Plan(collection, sched, referencePrice, now)
	if err != nil {
		return domain.TriggerPlan{}, false, err
	}
	return plan, true, nil
}

func (s *Service) mint(ctx context.Context, id custody.ItemID, plan domain.TriggerPlan) error {
	if s.fractions == nil {
		return nil
	}
	if plan.MintBase {
		if err := s.fractions.MintFractions(ctx, id, plan.BaseSupply); err != nil {
			return apperrors.New(apperrors.CodeFundsTransferFailed, "fraction mint failed").WithCause(err)
		}
	}
	if plan.Fractions > 0 {
		if err := s.fractions.MintAdditionalFractions(ctx, plan.Params.Collection, plan.Fractions); err != nil {
			return apperrors.New(apperrors.CodeFundsTransferFailed, "fraction mint failed").WithCause(err)
		}
	}
	return nil
}

// ResolveAuction closes a collection's liquidation auction, crediting the
// sale proceeds to the pooled balance. Settlement is accepted whenever an
// auction is open; the fractionalizer owns the window, so an early close is
// its call to make.
func (s *Service) ResolveAuction(ctx context.Context, collection string, proceeds int64) (domain.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := domain.CollectionTarget(collection)
	pool, err := s.store.GetVault(ctx, target)
	if err != nil {
		return domain.Vault{}, mapNotFound(err, "vault not found")
	}
	if !pool.AuctionOpen {
		return domain.Vault{}, apperrors.New(apperrors.CodeNotFound, "no open auction").
			WithMetadata(map[string]string{"Collection": collection})
	}

	pool.AuctionOpen = false
	pool.AuctionEndsAt = time.Time{}
	pool, err = domain.TopUp(pool, proceeds)
	if err != nil {
		return domain.Vault{}, err
	}
	if err := s.store.PutVault(ctx, pool); err != nil {
		return domain.Vault{}, err
	}

	s.logEmit(s.events.EmitAuctionResolved(ctx, collection, event.AuctionResolvedPayload{
		Collection: collection,
	}))
	s.logEmit(s.events.EmitVaultToppedUp(ctx, collection, "", event.VaultToppedUpPayload{
		Target:  target.String(),
		Amount:  proceeds,
		Balance: pool.Balance,
	}))
	return pool, nil
}

// JoinPool folds an item's standalone vault into its collection's pool: the
// custodian is settled for the item's accrued time and the remaining prepaid
// balance moves into the pooled ledger. An externally fractionalized item may
// carry its trigger parameters in; the first join records them for the
// collection so a later pool shortfall can raise an incremental auction.
// Parameters already on record are never overridden.
func (s *Service) JoinPool(ctx context.Context, id custody.ItemID, params *domain.TriggerParams) (domain.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := domain.ItemTarget(id)
	v, err := s.store.GetVault(ctx, target)
	if err != nil {
		return domain.Vault{}, mapNotFound(err, "vault not found")
	}
	sched, err := s.store.GetSchedule(ctx, id.Collection)
	if err != nil {
		return domain.Vault{}, mapNotFound(err, "fee schedule not found")
	}

	if params != nil {
		p := *params
		p.Collection = id.Collection
		if err := p.Validate(); err != nil {
			return domain.Vault{}, err
		}
		_, err := s.store.GetTriggerParams(ctx, id.Collection)
		switch {
		case err == nil:
			// Recorded parameters win; a later join never rewrites them.
		case errors.Is(err, storage.ErrNotFound):
			if err := s.store.PutTriggerParams(ctx, p); err != nil {
				return domain.Vault{}, err
			}
		default:
			return domain.Vault{}, err
		}
	}

	poolTarget := domain.CollectionTarget(id.Collection)
	pool, err := s.store.GetVault(ctx, poolTarget)
	if errors.Is(err, storage.ErrNotFound) {
		pool = domain.Vault{Target: poolTarget}
	} else if err != nil {
		return domain.Vault{}, err
	}

	now := s.now()
	merge, err := domain.MergeIntoCollection(v, pool, sched, now)
	if err != nil {
		return domain.Vault{}, err
	}

	if err := s.store.PutVault(ctx, merge.Item); err != nil {
		return domain.Vault{}, err
	}
	if err := s.store.PutVault(ctx, merge.Collection); err != nil {
		return domain.Vault{}, err
	}
	member := storage.PoolMember{ItemID: id, Collection: id.Collection, JoinedAt: now}
	if err := s.store.PutPoolMember(ctx, member); err != nil {
		return domain.Vault{}, err
	}

	if err := s.pay(ctx, sched, sched.CustodianID, merge.Payoff); err != nil {
		return domain.Vault{}, err
	}
	s.logEmit(s.events.EmitPoolJoined(ctx, id.Collection, event.PoolJoinedPayload{
		ItemID:     id.String(),
		Collection: id.Collection,
		Payoff:     merge.Payoff,
		Pooled:     merge.Collection.Balance,
		ItemCount:  merge.Collection.ItemCount,
	}))
	return merge.Collection, nil
}

// LeavePool settles an item out of its collection's pool on redemption. The
// custodian receives the item's accrued share and the item gets a fresh
// standalone vault; redemption also resolves any open auction on the pool.
func (s *Service) LeavePool(ctx context.Context, id custody.ItemID) (domain.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, err := s.store.GetPoolMember(ctx, id)
	if err != nil {
		return domain.Vault{}, mapNotFound(err, "pool membership not found")
	}
	sched, err := s.store.GetSchedule(ctx, member.Collection)
	if err != nil {
		return domain.Vault{}, mapNotFound(err, "fee schedule not found")
	}
	pool, err := s.store.GetVault(ctx, domain.CollectionTarget(member.Collection))
	if err != nil {
		return domain.Vault{}, mapNotFound(err, "vault not found")
	}
	auctionResolved := pool.AuctionOpen

	split, err := domain.SplitFromCollection(pool, domain.ItemTarget(id), sched, member.JoinedAt, s.now())
	if err != nil {
		return domain.Vault{}, err
	}

	if err := s.store.PutVault(ctx, split.Collection); err != nil {
		return domain.Vault{}, err
	}
	if err := s.store.PutVault(ctx, split.Item); err != nil {
		return domain.Vault{}, err
	}
	if err := s.store.DeletePoolMember(ctx, id); err != nil {
		return domain.Vault{}, err
	}

	if err := s.pay(ctx, sched, sched.CustodianID, split.Payoff); err != nil {
		return domain.Vault{}, err
	}
	s.logEmit(s.events.EmitPoolLeft(ctx, member.Collection, event.PoolLeftPayload{
		ItemID:     id.String(),
		Collection: member.Collection,
		Payoff:     split.Payoff,
		Residual:   split.Residual,
		ItemCount:  split.Collection.ItemCount,
	}))
	if auctionResolved {
		s.logEmit(s.events.EmitAuctionResolved(ctx, member.Collection, event.AuctionResolvedPayload{
			Collection: member.Collection,
		}))
	}
	return split.Item, nil
}

// CloseResult reports the final settlement of an item's vault on checkout.
type CloseResult struct {
	// Payoff is the custodian's linearly accrued fee.
	Payoff int64
	// Refund is the unused prepaid balance returned to the owner.
	Refund int64
}

// Close settles and closes an item's standalone vault when the item leaves
// custody: the custodian is paid its accrued fee and the unused balance is
// refunded to the owner's account.
func (s *Service) Close(ctx context.Context, id custody.ItemID, ownerID string) (CloseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := domain.ItemTarget(id)
	v, err := s.store.GetVault(ctx, target)
	if err != nil {
		return CloseResult{}, mapNotFound(err, "vault not found")
	}
	sched, err := s.store.GetSchedule(ctx, id.Collection)
	if err != nil {
		return CloseResult{}, mapNotFound(err, "fee schedule not found")
	}

	payoff, refund, err := domain.ApplySettle(v, sched, s.now())
	if err != nil {
		return CloseResult{}, err
	}
	if err := s.store.PutVault(ctx, domain.Vault{Target: target}); err != nil {
		return CloseResult{}, err
	}

	if err := s.pay(ctx, sched, sched.CustodianID, payoff); err != nil {
		return CloseResult{}, err
	}
	if err := s.pay(ctx, sched, ownerID, refund); err != nil {
		return CloseResult{}, err
	}
	s.logEmit(s.events.EmitVaultReleased(ctx, id.Collection, event.VaultReleasedPayload{
		Target: target.String(),
		Payout: payoff,
	}))
	return CloseResult{Payoff: payoff, Refund: refund}, nil
}
