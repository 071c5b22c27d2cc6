package sweeper_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	custody "github.com/louisbranch/custody.space/internal/custody/domain"
	"github.com/louisbranch/custody.space/internal/state/event"
	"github.com/louisbranch/custody.space/internal/sweeper"
	"github.com/louisbranch/custody.space/internal/testkit/custodyfakes"
	"github.com/louisbranch/custody.space/internal/vault/domain"
	"github.com/louisbranch/custody.space/internal/vault/service"
)

func TestSweepReleasesOnlyDueVaults(t *testing.T) {
	store := custodyfakes.NewStore()
	funds := custodyfakes.NewFundsLedger()
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	svc := service.New(store, event.NewEmitter(store), funds, custodyfakes.NewFractionalizer(), slog.New(slog.DiscardHandler))
	svc.SetNow(func() time.Time { return now })

	ctx := context.Background()
	sched := domain.FeeSchedule{
		Collection:  "col-1",
		CustodianID: "cust-1",
		Currency:    "USDX",
		FeeAmount:   100,
		FeePeriod:   24 * time.Hour,
	}
	if err := svc.SetSchedule(ctx, sched); err != nil {
		t.Fatalf("set schedule: %v", err)
	}

	due := custody.ItemID{Collection: "col-1", Sequence: 1}
	fresh := custody.ItemID{Collection: "col-1", Sequence: 2}
	for _, id := range []custody.ItemID{due, fresh} {
		if _, err := svc.OpenItem(ctx, id); err != nil {
			t.Fatalf("open item %v: %v", id, err)
		}
		if _, err := svc.TopUp(ctx, domain.ItemTarget(id), 500, "owner-1"); err != nil {
			t.Fatalf("top up %v: %v", id, err)
		}
	}

	// Push only the first vault past a full period by rewinding its cursor.
	v, err := svc.GetVault(ctx, domain.ItemTarget(due))
	if err != nil {
		t.Fatalf("get vault: %v", err)
	}
	v.Cursor = now.Add(-48 * time.Hour)
	if err := store.PutVault(ctx, v); err != nil {
		t.Fatalf("rewind cursor: %v", err)
	}

	sw := sweeper.New(store, svc, time.Minute, slog.New(slog.DiscardHandler))
	sw.Sweep(ctx)

	released, err := svc.GetVault(ctx, domain.ItemTarget(due))
	if err != nil {
		t.Fatalf("get released vault: %v", err)
	}
	if released.Balance != 300 {
		t.Fatalf("due balance = %d, want 300 after two periods", released.Balance)
	}
	untouched, err := svc.GetVault(ctx, domain.ItemTarget(fresh))
	if err != nil {
		t.Fatalf("get fresh vault: %v", err)
	}
	if untouched.Balance != 500 {
		t.Fatalf("fresh balance = %d, want untouched 500", untouched.Balance)
	}
	if got := funds.Balance("cust-1"); got != 200 {
		t.Fatalf("custodian funds = %d, want 200", got)
	}

	// A second sweep in the same instant releases nothing further.
	sw.Sweep(ctx)
	if got := funds.Balance("cust-1"); got != 200 {
		t.Fatalf("custodian funds after re-sweep = %d, want 200", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := custodyfakes.NewStore()
	svc := service.New(store, event.NewEmitter(store), custodyfakes.NewFundsLedger(), custodyfakes.NewFractionalizer(), slog.New(slog.DiscardHandler))
	sw := sweeper.New(store, svc, time.Millisecond, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sw.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run error = %v, want %v", err, context.DeadlineExceeded)
	}
}
