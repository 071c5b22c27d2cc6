package domain

import (
	"errors"
	"testing"
	"time"
)

var testSchedule = FeeSchedule{
	Collection: "col-1",
	Currency:   "USDX",
	FeeAmount:  100,
	FeePeriod:  24 * time.Hour,
}

func testItemTarget(seq uint64) Target {
	return Target{Kind: KindItem, Collection: "col-1", Sequence: seq}
}

func TestApplyReleaseExactPeriods(t *testing.T) {
	t0 := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	v := Open(testItemTarget(1), t0, 1)
	v.Balance = 300

	// Two full periods elapsed, a bit of a third.
	now := t0.Add(2*testSchedule.FeePeriod + time.Hour)
	result, err := ApplyRelease(v, testSchedule, now)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if result.Shortfall {
		t.Fatal("unexpected shortfall")
	}
	if result.Payout != 200 {
		t.Fatalf("payout = %d, want 200", result.Payout)
	}
	if result.Periods != 2 {
		t.Fatalf("periods = %d, want 2", result.Periods)
	}
	if result.Vault.Balance != 100 {
		t.Fatalf("balance = %d, want 100", result.Vault.Balance)
	}
	wantCursor := t0.Add(2 * testSchedule.FeePeriod)
	if !result.Vault.Cursor.Equal(wantCursor) {
		t.Fatalf("cursor = %v, want %v", result.Vault.Cursor, wantCursor)
	}
}

func TestApplyReleasePeriodNotOver(t *testing.T) {
	t0 := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	v := Open(testItemTarget(1), t0, 1)
	v.Balance = 300

	_, err := ApplyRelease(v, testSchedule, t0.Add(testSchedule.FeePeriod-time.Second))
	if !errors.Is(err, ErrPeriodNotOver) {
		t.Fatalf("error = %v, want %v", err, ErrPeriodNotOver)
	}
}

func TestApplyReleaseShortfallPaysRemainder(t *testing.T) {
	t0 := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	v := Open(testItemTarget(1), t0, 1)
	v.Balance = 150

	// Two periods due (200) against a 150 balance.
	result, err := ApplyRelease(v, testSchedule, t0.Add(2*testSchedule.FeePeriod+time.Minute))
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !result.Shortfall {
		t.Fatal("expected shortfall")
	}
	if result.Payout != 150 {
		t.Fatalf("payout = %d, want 150", result.Payout)
	}
	if result.Due != 200 {
		t.Fatalf("due = %d, want 200", result.Due)
	}
	if result.Vault.Balance != 0 {
		t.Fatalf("balance = %d, want 0", result.Vault.Balance)
	}
}

func TestApplyReleaseFiveFundedPeriodsNoAuction(t *testing.T) {
	t0 := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	v := Open(testItemTarget(1), t0, 1)
	v.Balance = 500

	result, err := ApplyRelease(v, testSchedule, t0.Add(5*testSchedule.FeePeriod+time.Second))
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if result.Shortfall {
		t.Fatal("unexpected shortfall with exactly five funded periods")
	}
	if result.Payout != 500 {
		t.Fatalf("payout = %d, want 500", result.Payout)
	}
	if result.Vault.Balance != 0 {
		t.Fatalf("balance = %d, want 0", result.Vault.Balance)
	}
}

func TestApplyReleaseInactiveVault(t *testing.T) {
	v := Vault{Target: testItemTarget(1)}
	_, err := ApplyRelease(v, testSchedule, time.Now())
	if !errors.Is(err, ErrInactive) {
		t.Fatalf("error = %v, want %v", err, ErrInactive)
	}
}

func TestApplyReleaseAuctionOngoing(t *testing.T) {
	t0 := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	v := Open(CollectionTarget("col-1"), t0, 2)
	v.AuctionOpen = true
	v.AuctionEndsAt = t0.Add(6 * time.Hour)

	_, err := ApplyRelease(v, testSchedule, t0.Add(3*testSchedule.FeePeriod))
	if !errors.Is(err, ErrAuctionOngoing) {
		t.Fatalf("error = %v, want %v", err, ErrAuctionOngoing)
	}
}

func TestApplyReleaseScenarioTopUpThreePeriods(t *testing.T) {
	// Vault created at t0 and topped up with 3F; at t0+2P release yields
	// 2F to the custodian, balance F, cursor t0+2P.
	t0 := time.Date(2026, time.April, 10, 12, 0, 0, 0, time.UTC)
	v := Open(testItemTarget(7), t0, 1)
	v, err := TopUp(v, 3*testSchedule.FeeAmount)
	if err != nil {
		t.Fatalf("top up: %v", err)
	}

	result, err := ApplyRelease(v, testSchedule, t0.Add(2*testSchedule.FeePeriod))
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if result.Payout != 2*testSchedule.FeeAmount {
		t.Fatalf("payout = %d, want %d", result.Payout, 2*testSchedule.FeeAmount)
	}
	if result.Vault.Balance != testSchedule.FeeAmount {
		t.Fatalf("balance = %d, want %d", result.Vault.Balance, testSchedule.FeeAmount)
	}
	if !result.Vault.Cursor.Equal(t0.Add(2 * testSchedule.FeePeriod)) {
		t.Fatalf("cursor = %v, want %v", result.Vault.Cursor, t0.Add(2*testSchedule.FeePeriod))
	}
}

func TestApplySettleLinearProration(t *testing.T) {
	t0 := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	v := Open(testItemTarget(1), t0, 1)
	v.Balance = 1000

	// Half a period accrues half a fee.
	payoff, remainder, err := ApplySettle(v, testSchedule, t0.Add(testSchedule.FeePeriod/2))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if payoff != 50 {
		t.Fatalf("payoff = %d, want 50", payoff)
	}
	if remainder != 950 {
		t.Fatalf("remainder = %d, want 950", remainder)
	}
}

func TestApplySettleCappedByBalance(t *testing.T) {
	t0 := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	v := Open(testItemTarget(1), t0, 1)
	v.Balance = 30

	payoff, remainder, err := ApplySettle(v, testSchedule, t0.Add(10*testSchedule.FeePeriod))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if payoff != 30 {
		t.Fatalf("payoff = %d, want 30", payoff)
	}
	if remainder != 0 {
		t.Fatalf("remainder = %d, want 0", remainder)
	}
}

func TestTopUpValidation(t *testing.T) {
	t0 := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		vault  Vault
		amount int64
		err    error
	}{
		{
			name:   "zero amount",
			vault:  Open(testItemTarget(1), t0, 1),
			amount: 0,
			err:    ErrAmountNotPositive,
		},
		{
			name:   "negative amount",
			vault:  Open(testItemTarget(1), t0, 1),
			amount: -5,
			err:    ErrAmountNotPositive,
		},
		{
			name:   "inactive vault",
			vault:  Vault{Target: testItemTarget(1)},
			amount: 100,
			err:    ErrInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TopUp(tt.vault, tt.amount)
			if !errors.Is(err, tt.err) {
				t.Fatalf("error = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestVaultValidateClosedInvariant(t *testing.T) {
	t0 := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		vault Vault
		valid bool
	}{
		{name: "closed empty", vault: Vault{Target: testItemTarget(1)}, valid: true},
		{name: "active funded", vault: Vault{Target: testItemTarget(1), Balance: 10, Cursor: t0, ItemCount: 1}, valid: true},
		{name: "closed with balance", vault: Vault{Target: testItemTarget(1), Balance: 10}, valid: false},
		{name: "closed with cursor", vault: Vault{Target: testItemTarget(1), Cursor: t0}, valid: false},
		{name: "active without cursor", vault: Vault{Target: testItemTarget(1), ItemCount: 1}, valid: false},
		{name: "negative balance", vault: Vault{Target: testItemTarget(1), Balance: -1, Cursor: t0, ItemCount: 1}, valid: false},
		{name: "negative item count", vault: Vault{Target: testItemTarget(1), ItemCount: -1}, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.vault.Validate()
			if tt.valid && err != nil {
				t.Fatalf("validate: %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvariant) {
				t.Fatalf("error = %v, want %v", err, ErrInvariant)
			}
		})
	}
}
