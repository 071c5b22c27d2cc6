// Package service orchestrates the item custody lifecycle: check-in,
// checkout requests, tax clearing, and final checkout with vault settlement.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/louisbranch/custody.space/internal/auth"
	"github.com/louisbranch/custody.space/internal/custody/domain"
	apperrors "github.com/louisbranch/custody.space/internal/errors"
	"github.com/louisbranch/custody.space/internal/state/event"
	"github.com/louisbranch/custody.space/internal/storage"
	vaultdomain "github.com/louisbranch/custody.space/internal/vault/domain"
	vaultservice "github.com/louisbranch/custody.space/internal/vault/service"
)

// Store is the persistence surface the custody service needs.
type Store interface {
	storage.ItemStore
	storage.ScheduleStore
}

// Authorizer resolves the caller behind a context and checks it holds a role
// for an entity (an item id or a collection).
type Authorizer interface {
	Require(ctx context.Context, role, entity string) (actorID string, err error)
}

// TokenLayer is the marketplace token system holding the escrow tokens that
// mirror custodied items.
type TokenLayer interface {
	// VerifyEligible checks the item's token can enter custody for the seller.
	VerifyEligible(ctx context.Context, id domain.ItemID, sellerID string) error
	// NotifyCheckedIn tells the token layer the physical item is custodied.
	NotifyCheckedIn(ctx context.Context, id domain.ItemID) error
	// EscrowToken locks the owner's token while a checkout request is open.
	EscrowToken(ctx context.Context, id domain.ItemID, ownerID string) error
	// BurnToken destroys the token when the item leaves custody for good.
	BurnToken(ctx context.Context, id domain.ItemID) error
}

// VaultLedger is the custodian-fee ledger backing custodied items.
type VaultLedger interface {
	OpenItem(ctx context.Context, id domain.ItemID) (vaultdomain.Vault, error)
	LeavePool(ctx context.Context, id domain.ItemID) (vaultdomain.Vault, error)
	Close(ctx context.Context, id domain.ItemID, ownerID string) (vaultservice.CloseResult, error)
}

// FundsLedger credits marketplace accounts, used to forward cleared tax
// amounts to the seller.
type FundsLedger interface {
	IncreaseAvailableFunds(ctx context.Context, accountID, currency string, amount int64) error
}

var (
	// ErrNotEligible indicates the token layer rejected a check-in.
	ErrNotEligible = apperrors.New(apperrors.CodeCustodyNotEligible, "item token is not eligible for custody")
	// ErrTaxMismatch indicates a clearing payment that differs from the
	// submitted tax amount.
	ErrTaxMismatch = apperrors.New(apperrors.CodeTaxAmountMismatch, "paid amount does not match the submitted tax amount")
)

// Service drives the custody state machine.
type Service struct {
	mu     sync.Mutex
	store  Store
	vaults VaultLedger
	funds  FundsLedger
	tokens TokenLayer
	authz  Authorizer
	events *event.Emitter
	logger *slog.Logger
	now    func() time.Time
}

// New wires a custody service over its collaborators.
func New(store Store, vaults VaultLedger, funds FundsLedger, tokens TokenLayer, authz Authorizer, events *event.Emitter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		vaults: vaults,
		funds:  funds,
		tokens: tokens,
		authz:  authz,
		events: events,
		logger: logger,
		now:    time.Now,
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

// GetItem loads one item custody record.
func (s *Service) GetItem(ctx context.Context, id domain.ItemID) (domain.Item, error) {
	item, err := s.store.GetItem(ctx, id)
	return item, mapNotFound(err, "item not found")
}

// CheckInInput describes an item entering custody.
type CheckInInput struct {
	ID          domain.ItemID
	CustodianID string
	SellerID    string
	// ReferencePrice is the sale price used later to derive default
	// liquidation-auction parameters.
	ReferencePrice int64
}

// CheckIn puts an item into custodian possession. The caller needs the
// custodian-agent role; the token layer confirms eligibility before the fee
// vault opens with its cursor at the check-in time.
func (s *Service) CheckIn(ctx context.Context, input CheckInInput) (domain.Item, error) {
	actorID, err := s.authz.Require(ctx, auth.RoleCustodianAgent, input.ID.Collection)
	if err != nil {
		return domain.Item{}, err
	}
	if input.ReferencePrice <= 0 {
		return domain.Item{}, vaultdomain.ErrInvalidReferencePrice
	}
	if err := s.tokens.VerifyEligible(ctx, input.ID, input.SellerID); err != nil {
		return domain.Item{}, ErrNotEligible.WithCause(err).
			WithMetadata(map[string]string{"ItemID": input.ID.String()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.store.GetItem(ctx, input.ID)
	if errors.Is(err, storage.ErrNotFound) {
		item = domain.Item{ID: input.ID, Status: domain.StatusNone, CreatedAt: s.now().UTC()}
	} else if err != nil {
		return domain.Item{}, err
	}

	item, err = domain.ApplyCheckIn(item, s.now())
	if err != nil {
		return domain.Item{}, err
	}
	item.CustodianID = input.CustodianID
	item.SellerID = input.SellerID
	item.OwnerID = input.SellerID
	item.ReferencePrice = input.ReferencePrice
	item.TaxAmount = 0

	if _, err := s.vaults.OpenItem(ctx, input.ID); err != nil {
		return domain.Item{}, err
	}
	if err := s.store.PutItem(ctx, item); err != nil {
		return domain.Item{}, err
	}
	if err := s.tokens.NotifyCheckedIn(ctx, input.ID); err != nil {
		return domain.Item{}, err
	}

	s.logEmit(s.events.EmitCheckedIn(ctx, input.ID.Collection, actorID, event.CheckedInPayload{
		ItemID:      input.ID.String(),
		CustodianID: input.CustodianID,
	}))
	return item, nil
}

// RequestCheckOut opens a checkout request for the item's current owner. The
// owner grant is scoped to the item, so whoever the token layer issued it to
// is the owner of record: a sale settled outside the engine surfaces here,
// and the item adopts the caller as owner. The owner's escrow token locks
// until the request is cleared.
func (s *Service) RequestCheckOut(ctx context.Context, id domain.ItemID) (domain.Item, error) {
	actorID, err := s.authz.Require(ctx, auth.RoleOwner, id.String())
	if err != nil {
		return domain.Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return domain.Item{}, mapNotFound(err, "item not found")
	}

	item, err = domain.ApplyCheckOutRequest(item, s.now())
	if err != nil {
		return domain.Item{}, err
	}
	item.OwnerID = actorID
	if err := s.tokens.EscrowToken(ctx, id, item.OwnerID); err != nil {
		return domain.Item{}, err
	}
	if err := s.store.PutItem(ctx, item); err != nil {
		return domain.Item{}, err
	}

	s.logEmit(s.events.EmitCheckOutRequested(ctx, id.Collection, actorID, event.CheckOutRequestedPayload{
		ItemID:  id.String(),
		OwnerID: item.OwnerID,
	}))
	return item, nil
}

// SubmitTaxAmount records the seller's settlement adjustment for an open
// checkout request. Resubmitting overwrites the previous amount.
func (s *Service) SubmitTaxAmount(ctx context.Context, id domain.ItemID, amount int64) (domain.Item, error) {
	actorID, err := s.authz.Require(ctx, auth.RoleSeller, id.String())
	if err != nil {
		return domain.Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return domain.Item{}, mapNotFound(err, "item not found")
	}
	if actorID != item.SellerID {
		return domain.Item{}, auth.ErrRoleMissing.
			WithMetadata(map[string]string{"Role": auth.RoleSeller, "Entity": id.String()})
	}

	item, err = domain.ApplySubmitTax(item, amount, s.now())
	if err != nil {
		return domain.Item{}, err
	}
	if err := s.store.PutItem(ctx, item); err != nil {
		return domain.Item{}, err
	}

	s.logEmit(s.events.EmitTaxSubmitted(ctx, id.Collection, actorID, event.TaxSubmittedPayload{
		ItemID: id.String(),
		Amount: amount,
	}))
	return item, nil
}

// ClearCheckoutRequest settles an open checkout request. When a tax amount
// was submitted, the buyer who requested the checkout must pay exactly that
// amount and it is forwarded to the seller's funds; without a submitted tax
// the item's seller may clear the request directly.
func (s *Service) ClearCheckoutRequest(ctx context.Context, id domain.ItemID, paidAmount int64) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return domain.Item{}, mapNotFound(err, "item not found")
	}

	actorID, err := s.authz.Require(ctx, auth.RoleBuyer, id.String())
	if err == nil && actorID != item.OwnerID {
		err = auth.ErrRoleMissing.
			WithMetadata(map[string]string{"Role": auth.RoleBuyer, "Entity": id.String()})
	}
	if err != nil {
		if item.TaxAmount > 0 {
			return domain.Item{}, err
		}
		actorID, err = s.authz.Require(ctx, auth.RoleSeller, id.String())
		if err != nil {
			return domain.Item{}, err
		}
		if actorID != item.SellerID {
			return domain.Item{}, auth.ErrRoleMissing.
				WithMetadata(map[string]string{"Role": auth.RoleSeller, "Entity": id.String()})
		}
	}

	if paidAmount != item.TaxAmount {
		return domain.Item{}, ErrTaxMismatch.WithMetadata(map[string]string{
			"ItemID": id.String(),
		})
	}

	item, err = domain.ApplyClearCheckoutRequest(item, s.now())
	if err != nil {
		return domain.Item{}, err
	}

	if item.TaxAmount > 0 {
		sched, err := s.store.GetSchedule(ctx, id.Collection)
		if err != nil {
			return domain.Item{}, mapNotFound(err, "fee schedule not found")
		}
		if err := s.funds.IncreaseAvailableFunds(ctx, item.SellerID, sched.Currency, item.TaxAmount); err != nil {
			return domain.Item{}, apperrors.New(apperrors.CodeFundsTransferFailed, "tax forwarding failed").
				WithCause(err).
				WithMetadata(map[string]string{"Account": item.SellerID})
		}
		s.logEmit(s.events.EmitFundsIncreased(ctx, id.Collection, event.FundsIncreasedPayload{
			EntityID: item.SellerID,
			Currency: sched.Currency,
			Amount:   item.TaxAmount,
		}))
	}

	if err := s.store.PutItem(ctx, item); err != nil {
		return domain.Item{}, err
	}

	s.logEmit(s.events.EmitCheckOutCleared(ctx, id.Collection, actorID, event.CheckOutClearedPayload{
		ItemID:    id.String(),
		TaxAmount: item.TaxAmount,
		TaxPaidTo: item.SellerID,
		ClearedBy: actorID,
	}))
	return item, nil
}

// CheckOutResult reports the vault settlement of a final checkout.
type CheckOutResult struct {
	Item domain.Item
	// Payoff is the custodian's linearly accrued fee at checkout time.
	Payoff int64
	// Refund is the unused prepaid balance returned to the owner.
	Refund int64
}

// CheckOut finalizes an item's removal from custody: a pooled item is first
// settled out of its collection's pool, the standalone vault is closed with
// the custodian paid and the owner refunded, and the escrow token burns.
func (s *Service) CheckOut(ctx context.Context, id domain.ItemID) (CheckOutResult, error) {
	actorID, err := s.authz.Require(ctx, auth.RoleCustodianAgent, id.Collection)
	if err != nil {
		return CheckOutResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return CheckOutResult{}, mapNotFound(err, "item not found")
	}
	item, err = domain.ApplyCheckOut(item, s.now())
	if err != nil {
		return CheckOutResult{}, err
	}

	// A redeemed item may still sit in its collection's pool; settle it out
	// before closing the standalone vault.
	if _, err := s.vaults.LeavePool(ctx, id); err != nil && !apperrors.IsCode(err, apperrors.CodeNotFound) {
		return CheckOutResult{}, err
	}
	settlement, err := s.vaults.Close(ctx, id, item.OwnerID)
	if err != nil {
		return CheckOutResult{}, err
	}

	if err := s.tokens.BurnToken(ctx, id); err != nil {
		return CheckOutResult{}, err
	}
	if err := s.store.PutItem(ctx, item); err != nil {
		return CheckOutResult{}, err
	}

	s.logEmit(s.events.EmitCheckedOut(ctx, id.Collection, actorID, event.CheckedOutPayload{
		ItemID:          id.String(),
		CustodianPayoff: settlement.Payoff,
		OwnerRefund:     settlement.Refund,
	}))
	return CheckOutResult{Item: item, Payoff: settlement.Payoff, Refund: settlement.Refund}, nil
}
