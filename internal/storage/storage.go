package storage

import (
	"context"
	"errors"
	"time"

	custody "github.com/louisbranch/custody.space/internal/custody/domain"
	"github.com/louisbranch/custody.space/internal/state/event"
	vault "github.com/louisbranch/custody.space/internal/vault/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a duplicate record insertion.
var ErrAlreadyExists = errors.New("record already exists")

// ItemStore persists item custody records.
type ItemStore interface {
	PutItem(ctx context.Context, item custody.Item) error
	GetItem(ctx context.Context, id custody.ItemID) (custody.Item, error)
}

// VaultStore persists vault ledger records keyed by item or collection target.
type VaultStore interface {
	PutVault(ctx context.Context, v vault.Vault) error
	GetVault(ctx context.Context, target vault.Target) (vault.Vault, error)
	// ListActiveVaults returns every vault with a nonzero item count, for
	// the release sweeper.
	ListActiveVaults(ctx context.Context) ([]vault.Vault, error)
}

// ScheduleStore persists per-collection fee schedules.
type ScheduleStore interface {
	PutSchedule(ctx context.Context, sched vault.FeeSchedule) error
	GetSchedule(ctx context.Context, collection string) (vault.FeeSchedule, error)
}

// TriggerConfigStore persists per-collection auction trigger parameters.
type TriggerConfigStore interface {
	PutTriggerParams(ctx context.Context, params vault.TriggerParams) error
	GetTriggerParams(ctx context.Context, collection string) (vault.TriggerParams, error)
}

// PoolMember records one item's membership in a pooled collection vault.
type PoolMember struct {
	ItemID     custody.ItemID
	Collection string
	JoinedAt   time.Time
}

// PoolMemberStore persists pooled-vault memberships and join times.
type PoolMemberStore interface {
	PutPoolMember(ctx context.Context, member PoolMember) error
	GetPoolMember(ctx context.Context, id custody.ItemID) (PoolMember, error)
	DeletePoolMember(ctx context.Context, id custody.ItemID) error
}

// FundsStore tracks available marketplace funds per account and currency.
// Only credits flow through the custody engine; withdrawals belong to the
// payment layer.
type FundsStore interface {
	IncreaseAvailableFunds(ctx context.Context, accountID, currency string, amount int64) error
	GetAvailableFunds(ctx context.Context, accountID, currency string) (int64, error)
}

// EventStore persists the append-only custody journal.
type EventStore interface {
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns up to limit events for a collection in append order.
	ListEvents(ctx context.Context, collection string, limit int) ([]event.Event, error)
}
