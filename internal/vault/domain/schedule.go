package domain

import (
	"time"

	apperrors "github.com/louisbranch/custody.space/internal/errors"
)

// FeeSchedule defines the custodian fee for one collection.
// Immutable after the first item of the collection checks in.
type FeeSchedule struct {
	Collection string
	// CustodianID is the account credited when fees release.
	CustodianID string
	// Currency identifies the payment currency forwarded to the funds
	// collaborator; the engine never holds the currency itself.
	Currency string
	// FeeAmount is the amount due per fee period, in smallest units.
	FeeAmount int64
	// FeePeriod is the accrual period length.
	FeePeriod time.Duration
}

// ErrInvalidSchedule indicates a missing or non-positive fee schedule.
var ErrInvalidSchedule = apperrors.New(apperrors.CodeFeeScheduleInvalid, "fee schedule is missing or invalid")

// Validate checks the schedule can drive release arithmetic.
func (s FeeSchedule) Validate() error {
	if s.FeeAmount <= 0 || s.FeePeriod <= 0 {
		return ErrInvalidSchedule
	}
	return nil
}
