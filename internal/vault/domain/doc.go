// Package domain implements the custodian-vault ledger arithmetic.
//
// A vault is a prepaid fee balance plus an accrual cursor, kept either per
// item (standalone) or per collection (pooled). The functions here are pure:
// they take a vault, compute a release, merge, or split, and return the
// updated records plus the custodian payout. Every arithmetic step is
// overflow-checked and fails rather than wrapping, and no function ever
// returns a record violating the closed-vault invariant
// (itemCount == 0 iff balance == 0 and cursor == 0).
package domain
