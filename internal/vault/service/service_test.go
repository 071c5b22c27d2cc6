package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	custody "github.com/louisbranch/custody.space/internal/custody/domain"
	apperrors "github.com/louisbranch/custody.space/internal/errors"
	"github.com/louisbranch/custody.space/internal/state/event"
	"github.com/louisbranch/custody.space/internal/testkit/custodyfakes"
	"github.com/louisbranch/custody.space/internal/vault/domain"
	"github.com/louisbranch/custody.space/internal/vault/service"
)

type fixture struct {
	svc   *service.Service
	store *custodyfakes.Store
	funds *custodyfakes.FundsLedger
	mints *custodyfakes.Fractionalizer
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: custodyfakes.NewStore(),
		funds: custodyfakes.NewFundsLedger(),
		mints: custodyfakes.NewFractionalizer(),
		now:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
	emitter := event.NewEmitter(f.store)
	f.svc = service.New(f.store, emitter, f.funds, f.mints, slog.New(slog.DiscardHandler))
	f.svc.SetNow(func() time.Time { return f.now })
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

var testSchedule = domain.FeeSchedule{
	Collection:  "col-1",
	CustodianID: "cust-1",
	Currency:    "USDX",
	FeeAmount:   100,
	FeePeriod:   24 * time.Hour,
}

func (f *fixture) seed(t *testing.T) custody.ItemID {
	t.Helper()
	ctx := context.Background()
	if err := f.svc.SetSchedule(ctx, testSchedule); err != nil {
		t.Fatalf("set schedule: %v", err)
	}
	id := custody.ItemID{Collection: "col-1", Sequence: 7}
	item := custody.Item{
		ID:             id,
		Status:         custody.StatusCheckedIn,
		CustodianID:    "cust-1",
		SellerID:       "seller-1",
		OwnerID:        "owner-1",
		ReferencePrice: 60_000,
		CreatedAt:      f.now,
		UpdatedAt:      f.now,
	}
	if err := f.store.PutItem(ctx, item); err != nil {
		t.Fatalf("put item: %v", err)
	}
	if _, err := f.svc.OpenItem(ctx, id); err != nil {
		t.Fatalf("open item vault: %v", err)
	}
	return id
}

func TestSetScheduleImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SetSchedule(ctx, testSchedule); err != nil {
		t.Fatalf("set schedule: %v", err)
	}
	err := f.svc.SetSchedule(ctx, testSchedule)
	if !apperrors.IsCode(err, apperrors.CodeAlreadyExists) {
		t.Fatalf("error = %v, want code %s", err, apperrors.CodeAlreadyExists)
	}
}

func TestOpenItemRejectsSecondOpen(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)

	_, err := f.svc.OpenItem(context.Background(), id)
	if !apperrors.IsCode(err, apperrors.CodeAlreadyExists) {
		t.Fatalf("error = %v, want code %s", err, apperrors.CodeAlreadyExists)
	}
}

func TestFundedRelease(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)
	ctx := context.Background()
	target := domain.ItemTarget(id)

	if _, err := f.svc.TopUp(ctx, target, 300, "owner-1"); err != nil {
		t.Fatalf("top up: %v", err)
	}

	// Two and a half fee periods: only the two whole ones release.
	f.advance(60 * time.Hour)
	outcome, err := f.svc.Release(ctx, target)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if outcome.AuctionStarted {
		t.Fatal("funded release started an auction")
	}
	if outcome.Result.Payout != 200 || outcome.Result.Periods != 2 {
		t.Fatalf("payout = %d periods = %d, want 200 and 2", outcome.Result.Payout, outcome.Result.Periods)
	}

	v, err := f.svc.GetVault(ctx, target)
	if err != nil {
		t.Fatalf("get vault: %v", err)
	}
	if v.Balance != 100 {
		t.Fatalf("balance = %d, want 100", v.Balance)
	}
	wantCursor := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	if !v.Cursor.Equal(wantCursor) {
		t.Fatalf("cursor = %v, want %v", v.Cursor, wantCursor)
	}
	if got := f.funds.Balance("cust-1"); got != 200 {
		t.Fatalf("custodian funds = %d, want 200", got)
	}
}

func TestReleaseBeforePeriodEnds(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)
	ctx := context.Background()
	target := domain.ItemTarget(id)

	if _, err := f.svc.TopUp(ctx, target, 300, "owner-1"); err != nil {
		t.Fatalf("top up: %v", err)
	}
	f.advance(12 * time.Hour)

	_, err := f.svc.Release(ctx, target)
	if !apperrors.IsCode(err, apperrors.CodeVaultPeriodNotOver) {
		t.Fatalf("error = %v, want code %s", err, apperrors.CodeVaultPeriodNotOver)
	}
}

func TestUnderfundedReleaseStartsFirstAuction(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)
	ctx := context.Background()
	target := domain.ItemTarget(id)

	if _, err := f.svc.TopUp(ctx, target, 100, "owner-1"); err != nil {
		t.Fatalf("top up: %v", err)
	}
	// Three periods elapse against one period of funding.
	f.advance(72 * time.Hour)

	outcome, err := f.svc.Release(ctx, target)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !outcome.AuctionStarted {
		t.Fatal("underfunded release did not start an auction")
	}
	if outcome.Result.Payout != 100 || !outcome.Result.Shortfall {
		t.Fatalf("payout = %d shortfall = %v, want 100 and true", outcome.Result.Payout, outcome.Result.Shortfall)
	}

	// The item vault closes and the pool takes over.
	itemVault, err := f.svc.GetVault(ctx, target)
	if err != nil {
		t.Fatalf("get item vault: %v", err)
	}
	if itemVault.Active() {
		t.Fatalf("item vault still active: %+v", itemVault)
	}
	pool, err := f.svc.GetVault(ctx, domain.CollectionTarget("col-1"))
	if err != nil {
		t.Fatalf("get pool vault: %v", err)
	}
	if pool.ItemCount != 1 || !pool.AuctionOpen {
		t.Fatalf("pool = %+v, want one item and an open auction", pool)
	}
	wantEnds := f.now.Add(6 * time.Hour)
	if !pool.AuctionEndsAt.Equal(wantEnds) {
		t.Fatalf("auction ends = %v, want %v", pool.AuctionEndsAt, wantEnds)
	}
	if !pool.Cursor.Equal(f.now) {
		t.Fatalf("cursor = %v, want the auction start %v", pool.Cursor, f.now)
	}

	// First liquidity event: trigger params derive from the defaults and
	// the reference sale price (3*100 fee threshold, 60000 price).
	params, err := f.store.GetTriggerParams(ctx, "col-1")
	if err != nil {
		t.Fatalf("get trigger params: %v", err)
	}
	if params.PartialAuctionThreshold != 300 || params.NewFractionsPerAuction != 50 {
		t.Fatalf("params = %+v, want threshold 300 fractions 50", params)
	}

	mints := f.mints.Mints()
	if len(mints) != 2 {
		t.Fatalf("mints = %d, want base + incremental", len(mints))
	}
	if !mints[0].Base || mints[0].Supply != 10_000 {
		t.Fatalf("base mint = %+v, want supply 10000", mints[0])
	}
	if mints[1].Base || mints[1].Supply != 50 {
		t.Fatalf("incremental mint = %+v, want supply 50", mints[1])
	}

	if _, err := f.store.GetPoolMember(ctx, id); err != nil {
		t.Fatalf("pool membership missing: %v", err)
	}
}

func TestPoolShortfallStartsIncrementalAuction(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	params := domain.TriggerParams{
		Collection:              "col-1",
		PartialAuctionThreshold: 300,
		PartialAuctionDuration:  6 * time.Hour,
		LiquidationThreshold:    100,
		NewFractionsPerAuction:  50,
	}
	if err := f.store.PutTriggerParams(ctx, params); err != nil {
		t.Fatalf("put trigger params: %v", err)
	}
	pool := domain.Open(domain.CollectionTarget("col-1"), f.now, 2)
	pool.Balance = 150
	if err := f.store.PutVault(ctx, pool); err != nil {
		t.Fatalf("put pool vault: %v", err)
	}

	f.advance(48 * time.Hour)
	outcome, err := f.svc.Release(ctx, pool.Target)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !outcome.AuctionStarted || outcome.Plan.MintBase {
		t.Fatalf("outcome = %+v, want incremental auction", outcome)
	}
	if outcome.Plan.Fractions != 50 {
		t.Fatalf("fractions = %d, want 50", outcome.Plan.Fractions)
	}

	mints := f.mints.Mints()
	if len(mints) != 1 || mints[0].Base {
		t.Fatalf("mints = %+v, want a single incremental mint", mints)
	}
	if got := f.funds.Balance("cust-1"); got != 150 {
		t.Fatalf("custodian funds = %d, want the emptied balance 150", got)
	}

	// The shortfall restarts the fee clock at the auction start, so the
	// unpaid periods are not billed a second time once proceeds arrive.
	v, err := f.svc.GetVault(ctx, pool.Target)
	if err != nil {
		t.Fatalf("get pool vault: %v", err)
	}
	if !v.Cursor.Equal(f.now) {
		t.Fatalf("cursor = %v, want the auction start %v", v.Cursor, f.now)
	}

	if _, err := f.svc.ResolveAuction(ctx, "col-1", 1000); err != nil {
		t.Fatalf("resolve auction: %v", err)
	}
	_, err = f.svc.Release(ctx, pool.Target)
	if !apperrors.IsCode(err, apperrors.CodeVaultPeriodNotOver) {
		t.Fatalf("release error = %v, want code %s", err, apperrors.CodeVaultPeriodNotOver)
	}
	if got := f.funds.Balance("cust-1"); got != 150 {
		t.Fatalf("custodian funds = %d, want no payment for the auctioned periods", got)
	}
}

func TestItemShortfallRestartsPoolClock(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)
	ctx := context.Background()

	// A pool already exists with half a period of unpaid time behind it.
	pool := domain.Open(domain.CollectionTarget("col-1"), f.now.Add(-12*time.Hour), 1)
	pool.Balance = 40
	if err := f.store.PutVault(ctx, pool); err != nil {
		t.Fatalf("put pool vault: %v", err)
	}

	if _, err := f.svc.TopUp(ctx, domain.ItemTarget(id), 100, "owner-1"); err != nil {
		t.Fatalf("top up: %v", err)
	}
	f.advance(72 * time.Hour)
	outcome, err := f.svc.Release(ctx, domain.ItemTarget(id))
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !outcome.AuctionStarted {
		t.Fatal("underfunded release did not start an auction")
	}

	got, err := f.svc.GetVault(ctx, domain.CollectionTarget("col-1"))
	if err != nil {
		t.Fatalf("get pool vault: %v", err)
	}
	if !got.Cursor.Equal(f.now) {
		t.Fatalf("cursor = %v, want the auction start %v", got.Cursor, f.now)
	}
	// Item balance 100 plus the pool's own shortfall release of 40.
	if funds := f.funds.Balance("cust-1"); funds != 140 {
		t.Fatalf("custodian funds = %d, want 140", funds)
	}
}

func TestReleaseBlockedWhileAuctionOpen(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	pool := domain.Open(domain.CollectionTarget("col-1"), f.now, 1)
	pool.Balance = 500
	pool.AuctionOpen = true
	pool.AuctionEndsAt = f.now.Add(6 * time.Hour)
	if err := f.store.PutVault(ctx, pool); err != nil {
		t.Fatalf("put pool vault: %v", err)
	}

	f.advance(48 * time.Hour)
	_, err := f.svc.Release(ctx, pool.Target)
	if !apperrors.IsCode(err, apperrors.CodeVaultAuctionOngoing) {
		t.Fatalf("error = %v, want code %s", err, apperrors.CodeVaultAuctionOngoing)
	}
}

func TestResolveAuction(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	pool := domain.Open(domain.CollectionTarget("col-1"), f.now, 1)
	pool.AuctionOpen = true
	pool.AuctionEndsAt = f.now.Add(6 * time.Hour)
	if err := f.store.PutVault(ctx, pool); err != nil {
		t.Fatalf("put pool vault: %v", err)
	}

	// The fractionalizer may settle before the window ends; the proceeds
	// land either way.
	resolved, err := f.svc.ResolveAuction(ctx, "col-1", 400)
	if err != nil {
		t.Fatalf("resolve auction: %v", err)
	}
	if resolved.AuctionOpen || resolved.Balance != 400 {
		t.Fatalf("pool = %+v, want closed auction with balance 400", resolved)
	}

	if _, err := f.svc.ResolveAuction(ctx, "col-1", 400); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("second resolve error = %v, want code %s", err, apperrors.CodeNotFound)
	}
}

func TestJoinAndLeavePoolConservesFunds(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)
	ctx := context.Background()

	if _, err := f.svc.TopUp(ctx, domain.ItemTarget(id), 500, "owner-1"); err != nil {
		t.Fatalf("top up: %v", err)
	}

	// Half a period accrues 50 before pooling.
	f.advance(12 * time.Hour)
	pool, err := f.svc.JoinPool(ctx, id, nil)
	if err != nil {
		t.Fatalf("join pool: %v", err)
	}
	if pool.Balance != 450 || pool.ItemCount != 1 {
		t.Fatalf("pool = %+v, want balance 450 and one item", pool)
	}
	if got := f.funds.Balance("cust-1"); got != 50 {
		t.Fatalf("custodian funds = %d, want 50", got)
	}

	// Another half period accrues 50 against the pooled balance. The last
	// leave carries the undistributed remainder into the standalone vault.
	f.advance(12 * time.Hour)
	item, err := f.svc.LeavePool(ctx, id)
	if err != nil {
		t.Fatalf("leave pool: %v", err)
	}
	if item.Balance != 400 || item.ItemCount != 1 {
		t.Fatalf("item vault = %+v, want residual 400", item)
	}
	if got := f.funds.Balance("cust-1"); got != 100 {
		t.Fatalf("custodian funds = %d, want 100", got)
	}

	pool, err = f.svc.GetVault(ctx, domain.CollectionTarget("col-1"))
	if err != nil {
		t.Fatalf("get pool vault: %v", err)
	}
	if pool.Active() || pool.Balance != 0 {
		t.Fatalf("pool = %+v, want closed", pool)
	}
	if _, err := f.store.GetPoolMember(ctx, id); err == nil {
		t.Fatal("pool membership survived the leave")
	}
}

func TestJoinPoolRecordsTriggerParams(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)
	ctx := context.Background()

	if _, err := f.svc.TopUp(ctx, domain.ItemTarget(id), 100, "owner-1"); err != nil {
		t.Fatalf("top up: %v", err)
	}
	params := &domain.TriggerParams{
		PartialAuctionThreshold: 300,
		PartialAuctionDuration:  6 * time.Hour,
		LiquidationThreshold:    100,
		NewFractionsPerAuction:  50,
	}
	if _, err := f.svc.JoinPool(ctx, id, params); err != nil {
		t.Fatalf("join pool: %v", err)
	}

	recorded, err := f.store.GetTriggerParams(ctx, "col-1")
	if err != nil {
		t.Fatalf("get trigger params: %v", err)
	}
	if recorded.Collection != "col-1" || recorded.NewFractionsPerAuction != 50 {
		t.Fatalf("recorded = %+v, want col-1 with 50 fractions", recorded)
	}

	// Two periods fall due against the pooled 100; the shortfall raises an
	// incremental auction from the parameters the join carried in.
	f.advance(48 * time.Hour)
	outcome, err := f.svc.Release(ctx, domain.CollectionTarget("col-1"))
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !outcome.AuctionStarted || outcome.Plan.MintBase {
		t.Fatalf("outcome = %+v, want incremental auction", outcome)
	}
	if outcome.Plan.Fractions != 50 {
		t.Fatalf("fractions = %d, want 50", outcome.Plan.Fractions)
	}
}

func TestJoinPoolKeepsRecordedTriggerParams(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)
	ctx := context.Background()

	recorded := domain.TriggerParams{
		Collection:              "col-1",
		PartialAuctionThreshold: 300,
		PartialAuctionDuration:  6 * time.Hour,
		LiquidationThreshold:    100,
		NewFractionsPerAuction:  50,
	}
	if err := f.store.PutTriggerParams(ctx, recorded); err != nil {
		t.Fatalf("put trigger params: %v", err)
	}

	if _, err := f.svc.JoinPool(ctx, id, &domain.TriggerParams{
		PartialAuctionThreshold: 900,
		PartialAuctionDuration:  time.Hour,
		NewFractionsPerAuction:  999,
	}); err != nil {
		t.Fatalf("join pool: %v", err)
	}

	got, err := f.store.GetTriggerParams(ctx, "col-1")
	if err != nil {
		t.Fatalf("get trigger params: %v", err)
	}
	if got != recorded {
		t.Fatalf("params = %+v, want the recorded %+v untouched", got, recorded)
	}
}

func TestLeavePoolResolvesOpenAuction(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)
	ctx := context.Background()

	if _, err := f.svc.TopUp(ctx, domain.ItemTarget(id), 100, "owner-1"); err != nil {
		t.Fatalf("top up: %v", err)
	}
	f.advance(72 * time.Hour)
	if _, err := f.svc.Release(ctx, domain.ItemTarget(id)); err != nil {
		t.Fatalf("release: %v", err)
	}

	item, err := f.svc.LeavePool(ctx, id)
	if err != nil {
		t.Fatalf("leave pool: %v", err)
	}
	if !item.Active() {
		t.Fatalf("item vault = %+v, want reopened", item)
	}

	pool, err := f.svc.GetVault(ctx, domain.CollectionTarget("col-1"))
	if err != nil {
		t.Fatalf("get pool vault: %v", err)
	}
	if pool.AuctionOpen {
		t.Fatal("redemption left the auction open")
	}

	types := f.store.EventTypes()
	var resolved bool
	for _, typ := range types {
		if typ == event.TypeAuctionResolved {
			resolved = true
		}
	}
	if !resolved {
		t.Fatalf("events = %v, want %s", types, event.TypeAuctionResolved)
	}
}

func TestCloseSettlesCustodianAndRefundsOwner(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)
	ctx := context.Background()

	if _, err := f.svc.TopUp(ctx, domain.ItemTarget(id), 300, "owner-1"); err != nil {
		t.Fatalf("top up: %v", err)
	}

	// One and a half periods accrue 150 linearly.
	f.advance(36 * time.Hour)
	result, err := f.svc.Close(ctx, id, "owner-1")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if result.Payoff != 150 || result.Refund != 150 {
		t.Fatalf("result = %+v, want payoff 150 refund 150", result)
	}
	if got := f.funds.Balance("cust-1"); got != 150 {
		t.Fatalf("custodian funds = %d, want 150", got)
	}
	if got := f.funds.Balance("owner-1"); got != 150 {
		t.Fatalf("owner funds = %d, want 150", got)
	}

	v, err := f.svc.GetVault(ctx, domain.ItemTarget(id))
	if err != nil {
		t.Fatalf("get vault: %v", err)
	}
	if v.Active() {
		t.Fatalf("vault = %+v, want closed", v)
	}
}

func TestFundsTransferFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t)
	ctx := context.Background()
	target := domain.ItemTarget(id)

	if _, err := f.svc.TopUp(ctx, target, 300, "owner-1"); err != nil {
		t.Fatalf("top up: %v", err)
	}
	f.funds.Err = context.DeadlineExceeded

	f.advance(24 * time.Hour)
	_, err := f.svc.Release(ctx, target)
	if !apperrors.IsCode(err, apperrors.CodeFundsTransferFailed) {
		t.Fatalf("error = %v, want code %s", err, apperrors.CodeFundsTransferFailed)
	}
}
