package domain

import "time"

// ReleaseResult describes the outcome of a periodic release computation.
type ReleaseResult struct {
	// Vault is the updated record. On a shortfall the balance is emptied
	// and the cursor left untouched; the caller decides how the record is
	// closed and folded into a collection vault.
	Vault Vault
	// Payout is the amount released to the custodian in this step.
	Payout int64
	// Periods is the number of whole fee periods settled.
	Periods int64
	// Due is the full amount owed for the elapsed whole periods.
	Due int64
	// Shortfall is set when the balance could not cover the due amount,
	// which obliges the caller to start a liquidation auction.
	Shortfall bool
}

// ApplyRelease settles whole elapsed fee periods against the vault balance.
//
// Partial periods are never released: the cursor only ever advances by whole
// multiples of the fee period. When the balance cannot cover the due amount
// the entire remaining balance is paid out and Shortfall is set.
func ApplyRelease(v Vault, sched FeeSchedule, now time.Time) (ReleaseResult, error) {
	if err := sched.Validate(); err != nil {
		return ReleaseResult{}, err
	}
	if err := v.Validate(); err != nil {
		return ReleaseResult{}, err
	}
	if !v.Active() {
		return ReleaseResult{}, ErrInactive.WithMetadata(map[string]string{"Target": v.Target.String()})
	}
	if v.AuctionOpen {
		return ReleaseResult{}, ErrAuctionOngoing.WithMetadata(map[string]string{"Target": v.Target.String()})
	}

	elapsed := now.Sub(v.Cursor)
	if elapsed < sched.FeePeriod {
		return ReleaseResult{}, ErrPeriodNotOver.WithMetadata(map[string]string{"Target": v.Target.String()})
	}

	periods := int64(elapsed / sched.FeePeriod)
	due, err := mulAmount(periods, sched.FeeAmount)
	if err != nil {
		return ReleaseResult{}, err
	}

	if v.Balance < due {
		payout := v.Balance
		v.Balance = 0
		return ReleaseResult{Vault: v, Payout: payout, Periods: periods, Due: due, Shortfall: true}, nil
	}

	v.Balance -= due
	v.Cursor = v.Cursor.Add(time.Duration(periods) * sched.FeePeriod)
	return ReleaseResult{Vault: v, Payout: due, Periods: periods, Due: due}, nil
}

// ApplySettle prorates the fee accrued up to asOf linearly, partial periods
// included, capped by the available balance. It returns the custodian payoff
// and the balance remaining after it. The vault record is not modified; the
// caller folds the remainder wherever the settlement dictates.
func ApplySettle(v Vault, sched FeeSchedule, asOf time.Time) (payoff, remainder int64, err error) {
	if err := sched.Validate(); err != nil {
		return 0, 0, err
	}
	if !v.Active() {
		return 0, 0, ErrInactive.WithMetadata(map[string]string{"Target": v.Target.String()})
	}

	elapsed := asOf.Sub(v.Cursor)
	if elapsed < 0 {
		elapsed = 0
	}
	accrued, err := prorate(elapsed, sched.FeeAmount, sched.FeePeriod)
	if err != nil {
		return 0, 0, err
	}
	payoff = accrued
	if payoff > v.Balance {
		payoff = v.Balance
	}
	return payoff, v.Balance - payoff, nil
}
