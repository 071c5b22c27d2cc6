package i18n

// Error codes must match the codes defined in internal/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeRoleMissing              = "AUTH_ROLE_MISSING"
	CodeCustodyInvalidTransition = "CUSTODY_INVALID_STATUS_TRANSITION"
	CodeCustodyStatusDisallowsOp = "CUSTODY_STATUS_DISALLOWS_OPERATION"
	CodeCustodyNotEligible       = "CUSTODY_TOKEN_NOT_ELIGIBLE"
	CodeVaultInactive            = "VAULT_INACTIVE"
	CodeVaultPeriodNotOver       = "VAULT_PERIOD_NOT_OVER"
	CodeVaultAuctionOngoing      = "VAULT_AUCTION_ONGOING"
	CodeVaultInvariant           = "VAULT_CLOSED_INVARIANT_VIOLATED"
	CodeAmountNotPositive        = "VALUE_AMOUNT_NOT_POSITIVE"
	CodeArithmeticOverflow       = "VALUE_ARITHMETIC_OVERFLOW"
	CodeReferencePriceInvalid    = "VALUE_REFERENCE_PRICE_INVALID"
	CodeFeeScheduleInvalid       = "VALUE_FEE_SCHEDULE_INVALID"
	CodeTriggerParamsInvalid     = "VALUE_TRIGGER_PARAMS_INVALID"
	CodeFundsTransferFailed      = "FUNDS_TRANSFER_FAILED"
	CodeTaxAmountMismatch        = "FUNDS_TAX_AMOUNT_MISMATCH"
	CodeNotFound                 = "NOT_FOUND"
	CodeAlreadyExists            = "ALREADY_EXISTS"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		// Authorization errors
		CodeRoleMissing: "Caller does not hold role {{.Role}} for {{.Entity}}",

		// Custody errors
		CodeCustodyInvalidTransition: "Cannot move item from {{.ActualStatus}} to {{.RequestedStatus}}, expected {{.ExpectedStatus}}",
		CodeCustodyStatusDisallowsOp: "Item status {{.Status}} does not allow {{.Operation}}",
		CodeCustodyNotEligible:       "Escrow token is not eligible for custody",

		// Vault errors
		CodeVaultInactive:       "Vault {{.Target}} is not active",
		CodeVaultPeriodNotOver:  "Fee period is not over for vault {{.Target}}",
		CodeVaultAuctionOngoing: "A liquidation auction is still ongoing for vault {{.Target}}",
		CodeVaultInvariant:      "Vault record violates the closed-vault invariant",

		// Value errors
		CodeAmountNotPositive:     "Amount must be greater than zero",
		CodeArithmeticOverflow:    "Amount arithmetic overflowed",
		CodeReferencePriceInvalid: "Reference sale price must be greater than zero",
		CodeFeeScheduleInvalid:    "Fee schedule is missing or invalid",
		CodeTriggerParamsInvalid:  "Auction trigger parameters are invalid",

		// Funds-transfer errors
		CodeFundsTransferFailed: "Funds transfer was rejected by the payment collaborator",
		CodeTaxAmountMismatch:   "Transferred amount does not match the submitted tax amount",

		// Storage errors
		CodeNotFound:      "Record not found",
		CodeAlreadyExists: "Record already exists",
	},
}
