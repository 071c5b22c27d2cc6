// Package sqlite provides a SQLite-backed custody storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	custody "github.com/louisbranch/custody.space/internal/custody/domain"
	"github.com/louisbranch/custody.space/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/custody.space/internal/state/event"
	"github.com/louisbranch/custody.space/internal/storage"
	"github.com/louisbranch/custody.space/internal/storage/sqlite/migrations"
	vault "github.com/louisbranch/custody.space/internal/vault/domain"
	_ "modernc.org/sqlite"
)

// Store persists custody state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite custody store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PutItem upserts one item custody record.
func (s *Store) PutItem(ctx context.Context, item custody.Item) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if item.ID.Collection == "" {
		return fmt.Errorf("item collection is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO items (
		   collection, sequence, status, custodian_id, seller_id, owner_id,
		   tax_amount, reference_price, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (collection, sequence) DO UPDATE SET
		   status = excluded.status,
		   custodian_id = excluded.custodian_id,
		   seller_id = excluded.seller_id,
		   owner_id = excluded.owner_id,
		   tax_amount = excluded.tax_amount,
		   reference_price = excluded.reference_price,
		   updated_at = excluded.updated_at`,
		item.ID.Collection,
		int64(item.ID.Sequence),
		int(item.Status),
		item.CustodianID,
		item.SellerID,
		item.OwnerID,
		item.TaxAmount,
		item.ReferencePrice,
		toMillis(item.CreatedAt),
		toMillis(item.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// GetItem loads one item custody record.
func (s *Store) GetItem(ctx context.Context, id custody.ItemID) (custody.Item, error) {
	if err := s.ready(ctx); err != nil {
		return custody.Item{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT status, custodian_id, seller_id, owner_id, tax_amount,
		        reference_price, created_at, updated_at
		   FROM items WHERE collection = ? AND sequence = ?`,
		id.Collection,
		int64(id.Sequence),
	)
	item := custody.Item{ID: id}
	var status int
	var createdAt, updatedAt int64
	err := row.Scan(&status, &item.CustodianID, &item.SellerID, &item.OwnerID,
		&item.TaxAmount, &item.ReferencePrice, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return custody.Item{}, storage.ErrNotFound
	}
	if err != nil {
		return custody.Item{}, fmt.Errorf("get item: %w", err)
	}
	item.Status = custody.Status(status)
	item.CreatedAt = fromMillis(createdAt)
	item.UpdatedAt = fromMillis(updatedAt)
	return item, nil
}

// PutVault upserts one vault ledger record.
func (s *Store) PutVault(ctx context.Context, v vault.Vault) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if v.Target.Collection == "" {
		return fmt.Errorf("vault collection is required")
	}
	auctionOpen := 0
	if v.AuctionOpen {
		auctionOpen = 1
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO vaults (
		   target, kind, collection, sequence, balance, cursor_at,
		   item_count, auction_open, auction_ends_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (target) DO UPDATE SET
		   balance = excluded.balance,
		   cursor_at = excluded.cursor_at,
		   item_count = excluded.item_count,
		   auction_open = excluded.auction_open,
		   auction_ends_at = excluded.auction_ends_at`,
		v.Target.String(),
		int(v.Target.Kind),
		v.Target.Collection,
		int64(v.Target.Sequence),
		v.Balance,
		toMillis(v.Cursor),
		v.ItemCount,
		auctionOpen,
		toMillis(v.AuctionEndsAt),
	)
	if err != nil {
		return fmt.Errorf("put vault: %w", err)
	}
	return nil
}

func scanVault(scan func(dest ...any) error) (vault.Vault, error) {
	var v vault.Vault
	var kind int
	var sequence, cursorAt, auctionEndsAt int64
	var auctionOpen int
	err := scan(&kind, &v.Target.Collection, &sequence, &v.Balance,
		&cursorAt, &v.ItemCount, &auctionOpen, &auctionEndsAt)
	if err != nil {
		return vault.Vault{}, err
	}
	v.Target.Kind = vault.TargetKind(kind)
	v.Target.Sequence = uint64(sequence)
	v.Cursor = fromMillis(cursorAt)
	v.AuctionOpen = auctionOpen != 0
	v.AuctionEndsAt = fromMillis(auctionEndsAt)
	return v, nil
}

// GetVault loads one vault ledger record.
func (s *Store) GetVault(ctx context.Context, target vault.Target) (vault.Vault, error) {
	if err := s.ready(ctx); err != nil {
		return vault.Vault{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT kind, collection, sequence, balance, cursor_at, item_count,
		        auction_open, auction_ends_at
		   FROM vaults WHERE target = ?`,
		target.String(),
	)
	v, err := scanVault(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return vault.Vault{}, storage.ErrNotFound
	}
	if err != nil {
		return vault.Vault{}, fmt.Errorf("get vault: %w", err)
	}
	return v, nil
}

// ListActiveVaults returns every vault currently representing items.
func (s *Store) ListActiveVaults(ctx context.Context) ([]vault.Vault, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT kind, collection, sequence, balance, cursor_at, item_count,
		        auction_open, auction_ends_at
		   FROM vaults WHERE item_count > 0 ORDER BY target`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active vaults: %w", err)
	}
	defer rows.Close()

	var vaults []vault.Vault
	for rows.Next() {
		v, err := scanVault(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan vault: %w", err)
		}
		vaults = append(vaults, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vaults: %w", err)
	}
	return vaults, nil
}

// PutSchedule upserts one collection fee schedule.
func (s *Store) PutSchedule(ctx context.Context, sched vault.FeeSchedule) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if sched.Collection == "" {
		return fmt.Errorf("schedule collection is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO fee_schedules (collection, custodian_id, currency, fee_amount, fee_period_ms)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection) DO UPDATE SET
		   custodian_id = excluded.custodian_id,
		   currency = excluded.currency,
		   fee_amount = excluded.fee_amount,
		   fee_period_ms = excluded.fee_period_ms`,
		sched.Collection,
		sched.CustodianID,
		sched.Currency,
		sched.FeeAmount,
		sched.FeePeriod.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("put schedule: %w", err)
	}
	return nil
}

// GetSchedule loads one collection fee schedule.
func (s *Store) GetSchedule(ctx context.Context, collection string) (vault.FeeSchedule, error) {
	if err := s.ready(ctx); err != nil {
		return vault.FeeSchedule{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT custodian_id, currency, fee_amount, fee_period_ms
		   FROM fee_schedules WHERE collection = ?`,
		collection,
	)
	sched := vault.FeeSchedule{Collection: collection}
	var periodMillis int64
	err := row.Scan(&sched.CustodianID, &sched.Currency, &sched.FeeAmount, &periodMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return vault.FeeSchedule{}, storage.ErrNotFound
	}
	if err != nil {
		return vault.FeeSchedule{}, fmt.Errorf("get schedule: %w", err)
	}
	sched.FeePeriod = time.Duration(periodMillis) * time.Millisecond
	return sched, nil
}

// PutTriggerParams upserts one collection's auction trigger parameters.
func (s *Store) PutTriggerParams(ctx context.Context, params vault.TriggerParams) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if params.Collection == "" {
		return fmt.Errorf("trigger params collection is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO trigger_params (
		   collection, partial_auction_threshold, partial_auction_duration_ms,
		   liquidation_threshold, new_fractions_per_auction
		 ) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection) DO UPDATE SET
		   partial_auction_threshold = excluded.partial_auction_threshold,
		   partial_auction_duration_ms = excluded.partial_auction_duration_ms,
		   liquidation_threshold = excluded.liquidation_threshold,
		   new_fractions_per_auction = excluded.new_fractions_per_auction`,
		params.Collection,
		params.PartialAuctionThreshold,
		params.PartialAuctionDuration.Milliseconds(),
		params.LiquidationThreshold,
		params.NewFractionsPerAuction,
	)
	if err != nil {
		return fmt.Errorf("put trigger params: %w", err)
	}
	return nil
}

// GetTriggerParams loads one collection's auction trigger parameters.
func (s *Store) GetTriggerParams(ctx context.Context, collection string) (vault.TriggerParams, error) {
	if err := s.ready(ctx); err != nil {
		return vault.TriggerParams{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT partial_auction_threshold, partial_auction_duration_ms,
		        liquidation_threshold, new_fractions_per_auction
		   FROM trigger_params WHERE collection = ?`,
		collection,
	)
	params := vault.TriggerParams{Collection: collection}
	var durationMillis int64
	err := row.Scan(&params.PartialAuctionThreshold, &durationMillis,
		&params.LiquidationThreshold, &params.NewFractionsPerAuction)
	if errors.Is(err, sql.ErrNoRows) {
		return vault.TriggerParams{}, storage.ErrNotFound
	}
	if err != nil {
		return vault.TriggerParams{}, fmt.Errorf("get trigger params: %w", err)
	}
	params.PartialAuctionDuration = time.Duration(durationMillis) * time.Millisecond
	return params, nil
}

// PutPoolMember upserts one pooled-vault membership.
func (s *Store) PutPoolMember(ctx context.Context, member storage.PoolMember) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO pool_members (collection, sequence, pool_collection, joined_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (collection, sequence) DO UPDATE SET
		   pool_collection = excluded.pool_collection,
		   joined_at = excluded.joined_at`,
		member.ItemID.Collection,
		int64(member.ItemID.Sequence),
		member.Collection,
		toMillis(member.JoinedAt),
	)
	if err != nil {
		return fmt.Errorf("put pool member: %w", err)
	}
	return nil
}

// GetPoolMember loads one pooled-vault membership.
func (s *Store) GetPoolMember(ctx context.Context, id custody.ItemID) (storage.PoolMember, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PoolMember{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT pool_collection, joined_at FROM pool_members
		  WHERE collection = ? AND sequence = ?`,
		id.Collection,
		int64(id.Sequence),
	)
	member := storage.PoolMember{ItemID: id}
	var joinedAt int64
	err := row.Scan(&member.Collection, &joinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.PoolMember{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.PoolMember{}, fmt.Errorf("get pool member: %w", err)
	}
	member.JoinedAt = fromMillis(joinedAt)
	return member, nil
}

// DeletePoolMember removes one pooled-vault membership.
func (s *Store) DeletePoolMember(ctx context.Context, id custody.ItemID) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM pool_members WHERE collection = ? AND sequence = ?`,
		id.Collection,
		int64(id.Sequence),
	)
	if err != nil {
		return fmt.Errorf("delete pool member: %w", err)
	}
	return nil
}

// IncreaseAvailableFunds credits an account's balance in one currency.
func (s *Store) IncreaseAvailableFunds(ctx context.Context, accountID, currency string, amount int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if accountID == "" {
		return fmt.Errorf("account id is required")
	}
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO funds (account_id, currency, balance) VALUES (?, ?, ?)
		 ON CONFLICT (account_id, currency) DO UPDATE SET
		   balance = balance + excluded.balance`,
		accountID,
		currency,
		amount,
	)
	if err != nil {
		return fmt.Errorf("increase funds: %w", err)
	}
	return nil
}

// GetAvailableFunds returns an account's balance in one currency. Accounts
// never credited report zero.
func (s *Store) GetAvailableFunds(ctx context.Context, accountID, currency string) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var balance int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT balance FROM funds WHERE account_id = ? AND currency = ?`,
		accountID,
		currency,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get funds: %w", err)
	}
	return balance, nil
}

// AppendEvent appends one journal event and assigns its sequence number.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := s.ready(ctx); err != nil {
		return event.Event{}, err
	}
	payload := string(evt.PayloadJSON)
	if payload == "" {
		payload = "{}"
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO events (
		   collection, timestamp, type, actor_type, actor_id,
		   entity_type, entity_id, payload
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.Collection,
		toMillis(evt.Timestamp),
		string(evt.Type),
		string(evt.ActorType),
		evt.ActorID,
		evt.EntityType,
		evt.EntityID,
		payload,
	)
	if err != nil {
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return event.Event{}, fmt.Errorf("event id: %w", err)
	}
	evt.ID = id
	return evt, nil
}

// ListEvents returns up to limit events for one collection in append order.
func (s *Store) ListEvents(ctx context.Context, collection string, limit int) ([]event.Event, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, timestamp, type, actor_type, actor_id, entity_type, entity_id, payload
		   FROM events WHERE collection = ? ORDER BY id LIMIT ?`,
		collection,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		evt := event.Event{Collection: collection}
		var timestamp int64
		var eventType, actorType, payload string
		if err := rows.Scan(&evt.ID, &timestamp, &eventType, &actorType,
			&evt.ActorID, &evt.EntityType, &evt.EntityID, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Timestamp = fromMillis(timestamp)
		evt.Type = event.Type(eventType)
		evt.ActorType = event.ActorType(actorType)
		evt.PayloadJSON = []byte(payload)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
