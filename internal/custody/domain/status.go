package domain

import apperrors "github.com/louisbranch/custody.space/internal/errors"

// Status describes where an item is in the custody lifecycle.
type Status int

const (
	// StatusNone indicates an item not yet in custodian possession.
	StatusNone Status = iota
	// StatusCheckedIn indicates an item physically held by the custodian.
	StatusCheckedIn
	// StatusCheckOutRequested indicates the owner asked to reclaim the item.
	StatusCheckOutRequested
	// StatusCheckOutRequestCleared indicates the request was cleared for release.
	StatusCheckOutRequestCleared
	// StatusCheckedOut indicates the item left custody for good.
	StatusCheckedOut
)

// String returns the status name used in errors and event payloads.
func (s Status) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusCheckedIn:
		return "CHECKED_IN"
	case StatusCheckOutRequested:
		return "CHECK_OUT_REQUESTED"
	case StatusCheckOutRequestCleared:
		return "CHECK_OUT_REQUEST_CLEARED"
	case StatusCheckedOut:
		return "CHECKED_OUT"
	default:
		return "UNKNOWN"
	}
}

// ErrInvalidTransition indicates an out-of-order custody transition.
var ErrInvalidTransition = apperrors.New(apperrors.CodeCustodyInvalidTransition, "invalid custody status")

// requireStatus returns an expected-vs-actual transition error unless the
// item is exactly in the expected status.
func requireStatus(actual, expected, requested Status) error {
	if actual == expected {
		return nil
	}
	return ErrInvalidTransition.WithMetadata(map[string]string{
		"ExpectedStatus":  expected.String(),
		"ActualStatus":    actual.String(),
		"RequestedStatus": requested.String(),
	})
}
