package domain

import (
	"time"

	apperrors "github.com/louisbranch/custody.space/internal/errors"
)

// TriggerParams configure liquidation auctions for a fractionalized
// collection. Recorded at the collection's first fractionalization; items
// joining later adopt the recorded parameters unchanged.
type TriggerParams struct {
	Collection string
	// PartialAuctionThreshold is the balance level below which a partial
	// auction starts once the collection carries a trigger config.
	PartialAuctionThreshold int64
	// PartialAuctionDuration extends the running auction window on each
	// incremental trigger.
	PartialAuctionDuration time.Duration
	// LiquidationThreshold is the balance level treated as fully depleted.
	LiquidationThreshold int64
	// NewFractionsPerAuction is how many fractions each incremental
	// auction mints.
	NewFractionsPerAuction int64
}

var (
	// ErrInvalidTriggerParams indicates unusable auction trigger parameters.
	ErrInvalidTriggerParams = apperrors.New(apperrors.CodeTriggerParamsInvalid, "auction trigger parameters are invalid")
	// ErrInvalidReferencePrice indicates a non-positive reference sale price.
	ErrInvalidReferencePrice = apperrors.New(apperrors.CodeReferencePriceInvalid, "reference sale price must be greater than zero")
)

// Validate checks the parameters can drive auction planning.
func (p TriggerParams) Validate() error {
	if p.PartialAuctionThreshold <= 0 || p.PartialAuctionDuration <= 0 || p.NewFractionsPerAuction <= 0 {
		return ErrInvalidTriggerParams
	}
	if p.LiquidationThreshold < 0 {
		return ErrInvalidTriggerParams
	}
	return nil
}

// TriggerDefaults are the protocol-wide parameters used for a collection's
// first liquidity event, before any trigger config exists.
type TriggerDefaults struct {
	// ThresholdPeriods expresses the partial-auction threshold as a
	// multiple of one fee period's amount.
	ThresholdPeriods int64
	// DurationDivisor derives the auction duration as feePeriod / divisor.
	DurationDivisor int64
	// FractionSupply is the base ownership fraction supply minted when an
	// item is first fractionalized.
	FractionSupply int64
}

// DefaultTriggers are the stock protocol defaults.
var DefaultTriggers = TriggerDefaults{
	ThresholdPeriods: 3,
	DurationDivisor:  4,
	FractionSupply:   10_000,
}

// TriggerPlan is a resolved auction trigger decision.
type TriggerPlan struct {
	// Params are the trigger parameters to record (first event) or the
	// recorded parameters applied (incremental event).
	Params TriggerParams
	// MintBase is set on a collection's first fractionalization, when the
	// base fraction supply must be minted alongside the trigger fractions.
	MintBase bool
	// BaseSupply is the base fraction supply to mint when MintBase is set.
	BaseSupply int64
	// Fractions is the number of additional fractions this auction sells.
	Fractions int64
	// AuctionEndsAt is when the auction window closes.
	AuctionEndsAt time.Time
}

// Plan derives a first-liquidity auction plan from the item's reference sale
// price: threshold is ThresholdPeriods fee amounts, duration is one fee
// period over DurationDivisor, and the fraction count scales the threshold
// into the base supply at the reference price.
func (d TriggerDefaults) Plan(collection string, sched FeeSchedule, referencePrice int64, now time.Time) (TriggerPlan, error) {
	if d.ThresholdPeriods <= 0 || d.DurationDivisor <= 0 || d.FractionSupply <= 0 {
		return TriggerPlan{}, ErrInvalidTriggerParams
	}
	if err := sched.Validate(); err != nil {
		return TriggerPlan{}, err
	}
	if referencePrice <= 0 {
		return TriggerPlan{}, ErrInvalidReferencePrice
	}

	threshold, err := mulAmount(d.ThresholdPeriods, sched.FeeAmount)
	if err != nil {
		return TriggerPlan{}, err
	}
	fractions, err := mulDiv(threshold, d.FractionSupply, referencePrice)
	if err != nil {
		return TriggerPlan{}, err
	}
	if fractions <= 0 {
		return TriggerPlan{}, ErrInvalidTriggerParams.WithCause(ErrInvalidReferencePrice)
	}
	duration := sched.FeePeriod / time.Duration(d.DurationDivisor)

	params := TriggerParams{
		Collection:              collection,
		PartialAuctionThreshold: threshold,
		PartialAuctionDuration:  duration,
		LiquidationThreshold:    sched.FeeAmount,
		NewFractionsPerAuction:  fractions,
	}
	return TriggerPlan{
		Params:        params,
		MintBase:      true,
		BaseSupply:    d.FractionSupply,
		Fractions:     fractions,
		AuctionEndsAt: now.Add(duration).UTC(),
	}, nil
}

// PlanIncremental derives a follow-up auction plan from a collection's
// recorded trigger parameters: only the incremental fraction count is
// minted and the auction window extends by the configured duration.
func PlanIncremental(params TriggerParams, now time.Time) (TriggerPlan, error) {
	if err := params.Validate(); err != nil {
		return TriggerPlan{}, err
	}
	return TriggerPlan{
		Params:        params,
		Fractions:     params.NewFractionsPerAuction,
		AuctionEndsAt: now.Add(params.PartialAuctionDuration).UTC(),
	}, nil
}
