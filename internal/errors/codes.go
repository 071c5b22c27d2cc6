// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Authorization errors
	CodeRoleMissing Code = "AUTH_ROLE_MISSING"

	// Custody errors
	CodeCustodyInvalidTransition Code = "CUSTODY_INVALID_STATUS_TRANSITION"
	CodeCustodyStatusDisallowsOp Code = "CUSTODY_STATUS_DISALLOWS_OPERATION"
	CodeCustodyNotEligible       Code = "CUSTODY_TOKEN_NOT_ELIGIBLE"

	// Vault errors
	CodeVaultInactive       Code = "VAULT_INACTIVE"
	CodeVaultPeriodNotOver  Code = "VAULT_PERIOD_NOT_OVER"
	CodeVaultAuctionOngoing Code = "VAULT_AUCTION_ONGOING"
	CodeVaultInvariant      Code = "VAULT_CLOSED_INVARIANT_VIOLATED"

	// Value errors
	CodeAmountNotPositive     Code = "VALUE_AMOUNT_NOT_POSITIVE"
	CodeArithmeticOverflow    Code = "VALUE_ARITHMETIC_OVERFLOW"
	CodeReferencePriceInvalid Code = "VALUE_REFERENCE_PRICE_INVALID"
	CodeFeeScheduleInvalid    Code = "VALUE_FEE_SCHEDULE_INVALID"
	CodeTriggerParamsInvalid  Code = "VALUE_TRIGGER_PARAMS_INVALID"

	// Funds-transfer errors
	CodeFundsTransferFailed Code = "FUNDS_TRANSFER_FAILED"
	CodeTaxAmountMismatch   Code = "FUNDS_TAX_AMOUNT_MISMATCH"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeAmountNotPositive,
		CodeArithmeticOverflow,
		CodeReferencePriceInvalid,
		CodeFeeScheduleInvalid,
		CodeTriggerParamsInvalid,
		CodeTaxAmountMismatch:
		return codes.InvalidArgument

	// FailedPrecondition - state or timing doesn't allow the operation
	case CodeCustodyInvalidTransition,
		CodeCustodyStatusDisallowsOp,
		CodeCustodyNotEligible,
		CodeVaultInactive,
		CodeVaultPeriodNotOver,
		CodeVaultAuctionOngoing,
		CodeFundsTransferFailed:
		return codes.FailedPrecondition

	// PermissionDenied - caller lacks the required role
	case CodeRoleMissing:
		return codes.PermissionDenied

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// AlreadyExists - duplicate record
	case CodeAlreadyExists:
		return codes.AlreadyExists

	// Internal - invariant violations are never a caller problem
	case CodeVaultInvariant:
		return codes.Internal

	default:
		return codes.Internal
	}
}
